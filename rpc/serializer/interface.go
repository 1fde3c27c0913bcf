package serializer

import (
	"fmt"
	"sort"

	"github.com/ValentinKolb/dCol/rpc/common"
)

// IRPCSerializer converts cache protocol messages to and from bytes.
type IRPCSerializer interface {
	// Name is the name the serializer is selected by (see ByName).
	Name() string
	// Serialize encodes msg.
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg. Fields of msg that are absent in b are
	// reset to their zero value.
	Deserialize(b []byte, msg *common.Message) error
}

var constructors = map[string]func() IRPCSerializer{
	"binary": NewBinarySerializer,
	"json":   NewJSONSerializer,
	"gob":    NewGOBSerializer,
}

// ByName returns the serializer registered as name. The empty name selects
// the binary serializer.
func ByName(name string) (IRPCSerializer, error) {
	if name == "" {
		name = "binary"
	}
	newSerializer, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("invalid serializer %s (available: %v)", name, Names())
	}
	return newSerializer(), nil
}

// Names lists the registered serializer names.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
