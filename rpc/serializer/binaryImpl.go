package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dCol/rpc/common"
)

// NewBinarySerializer returns the compact flag based serializer. It is the
// default of the CLI.
func NewBinarySerializer() IRPCSerializer {
	return binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: MsgType (1 byte) | flags (1 byte) | fields present in flags, in
// flag order. Strings and byte slices are prefixed with their big endian
// uint32 length, Ok is a single byte.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasNamespace byte = 1 << 0
	hasField     byte = 1 << 1
	hasID        byte = 1 << 2
	hasValue     byte = 1 << 3
	hasOk        byte = 1 << 4
	hasErr       byte = 1 << 5
)

const headerSize = 2

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Name() string { return "binary" }

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	result := make([]byte, headerSize, b.sizeBytes(msg))
	result[0] = byte(msg.MsgType)

	var flags byte
	if msg.Namespace != "" {
		flags |= hasNamespace
		result = appendBytes(result, []byte(msg.Namespace))
	}
	if msg.Field != "" {
		flags |= hasField
		result = appendBytes(result, []byte(msg.Field))
	}
	if msg.ID != "" {
		flags |= hasID
		result = appendBytes(result, []byte(msg.ID))
	}
	if msg.Value != nil {
		flags |= hasValue
		result = appendBytes(result, msg.Value)
	}
	if msg.Ok {
		flags |= hasOk
		result = append(result, 1)
	}
	if msg.Err != "" {
		flags |= hasErr
		result = appendBytes(result, []byte(msg.Err))
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags
	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := data[1]
	r := reader{data: data, pos: headerSize}

	if flags&hasNamespace != 0 {
		msg.Namespace = string(r.bytes("namespace"))
	}
	if flags&hasField != 0 {
		msg.Field = string(r.bytes("field"))
	}
	if flags&hasID != 0 {
		msg.ID = string(r.bytes("id"))
	}
	if flags&hasValue != 0 {
		// copy, the caller may reuse data
		v := r.bytes("value")
		if r.err == nil {
			msg.Value = append(make([]byte, 0, len(v)), v...)
		}
	}
	if flags&hasOk != 0 {
		msg.Ok = r.byte("ok") == 1
	}
	if flags&hasErr != 0 {
		msg.Err = string(r.bytes("err"))
	}
	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the exact size of the serialized message
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize
	if msg.Namespace != "" {
		size += 4 + len(msg.Namespace)
	}
	if msg.Field != "" {
		size += 4 + len(msg.Field)
	}
	if msg.ID != "" {
		size += 4 + len(msg.ID)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Ok {
		size++
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	return size
}

// appendBytes appends the length prefixed data to buf
func appendBytes(buf, data []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

// reader reads length prefixed fields, the first error sticks
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) byte(name string) byte {
	if r.err != nil {
		return 0
	}
	if r.pos >= len(r.data) {
		r.err = fmt.Errorf("data too short for %s", name)
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *reader) bytes(name string) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+4 > len(r.data) {
		r.err = fmt.Errorf("data too short for %s length", name)
		return nil
	}
	n := int(binary.BigEndian.Uint32(r.data[r.pos : r.pos+4]))
	r.pos += 4
	if r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", name)
		return nil
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v
}
