package serializer

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/ValentinKolb/dCol/rpc/common"
)

// NewGOBSerializer returns a serializer using encoding/gob. Every message is
// a self describing gob stream, so payloads are larger than with the binary
// serializer.
func NewGOBSerializer() IRPCSerializer {
	return gobSerializerImpl{}
}

type gobSerializerImpl struct{}

var gobBuffers = sync.Pool{New: func() any { return new(bytes.Buffer) }}

func (gobSerializerImpl) Name() string { return "gob" }

func (gobSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	buf := gobBuffers.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		gobBuffers.Put(buf)
	}()

	if err := gob.NewEncoder(buf).Encode(msg); err != nil {
		return nil, fmt.Errorf("gob: encode %s message: %w", msg.MsgType, err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

func (gobSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	var decoded common.Message
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&decoded); err != nil {
		return fmt.Errorf("gob: decode message: %w", err)
	}
	*msg = decoded
	return nil
}
