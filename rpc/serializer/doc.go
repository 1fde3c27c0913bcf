// Package serializer encodes the messages of the shared cache protocol
// (rpc/common.Message) for the transport layer.
//
// Three implementations are available and selected by name with ByName:
//
//   - binary: type byte, a flag byte naming the fields that follow, then each
//     present field with a uint32 length prefix. Smallest payloads and the
//     fastest codec, default of the CLI.
//   - json: readable messages with named message types ("getByIndex", "put",
//     ...). Useful when debugging with curl.
//   - gob: encoding/gob. Kept for comparison in the benchmarks.
//
// Client and server must use the same serializer. All implementations are
// stateless and safe for concurrent use. Deserialize never returns a Value
// that aliases the input buffer of the binary format.
//
//	s, _ := serializer.ByName("binary")
//	data, err := s.Serialize(common.NewRemoveRequest("app.users", id))
package serializer
