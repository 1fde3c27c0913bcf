package serializer

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dCol/rpc/common"
)

// NewJSONSerializer returns a serializer writing messages as JSON objects with
// named message types, useful when inspecting traffic.
func NewJSONSerializer() IRPCSerializer {
	return jsonSerializerImpl{}
}

type jsonSerializerImpl struct{}

func (jsonSerializerImpl) Name() string { return "json" }

func (jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("json: encode %s message: %w", msg.MsgType, err)
	}
	return b, nil
}

func (jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	var decoded common.Message
	if err := json.Unmarshal(b, &decoded); err != nil {
		return fmt.Errorf("json: decode message: %w", err)
	}
	*msg = decoded
	return nil
}
