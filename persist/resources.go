package persist

// resources.go mirrors registry.go for pecs.Resources entries.
// Resources never pass through RegisterComponent, so their
// on-disk ComponentTypeID comes from pecs.DeriveTypeID instead of
// pecs.GetTypeID, and the codec operates on the boxed `any` value
// Resources.All returns rather than an archetype column.

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/fenwick-systems/pecs"
)

type resourceCodec struct {
	typeID        pecs.ComponentTypeID
	name          string
	schemaVersion uint32
	encode        func(value any) (payload []byte, persist bool, err error)
	decodeNew     func(payload []byte) (any, error)
}

var (
	resourceCodecsByTypeID = make(map[pecs.ComponentTypeID]*resourceCodec)
	resourceCodecsByGoType = make(map[reflect.Type]*resourceCodec)
)

// RegisterResource makes resource type T persistable. Resources are stored
// as *T (see pecs.Resources.Add/GetResource), so *T must implement
// SerializableComponent; RegisterResource panics otherwise. As with
// Register, a TransientComponent resource type is a no-op.
func RegisterResource[T any]() {
	var zero T
	if _, transient := any(&zero).(TransientComponent); transient {
		return
	}
	sc, ok := any(&zero).(SerializableComponent)
	if !ok {
		panic(fmt.Sprintf("persist: %T does not implement persist.SerializableComponent", zero))
	}

	typeID := pecs.DeriveTypeID[T]()
	codec := &resourceCodec{
		typeID:        typeID,
		name:          pecs.TypeName[T](),
		schemaVersion: sc.PersistentVersion(),
		encode: func(value any) ([]byte, bool, error) {
			inst, ok := value.(SerializableComponent)
			if !ok || !inst.IsPersistent() {
				return nil, false, nil
			}
			var buf bytes.Buffer
			if err := inst.Serialize(&buf); err != nil {
				return nil, false, &ComponentCodecError{TypeName: pecs.TypeName[T](), Op: "encode", Err: err}
			}
			return buf.Bytes(), true, nil
		},
		decodeNew: func(payload []byte) (any, error) {
			value := new(T)
			inst, ok := any(value).(SerializableComponent)
			if !ok {
				return nil, fmt.Errorf("persist: resource %s does not implement SerializableComponent", pecs.TypeName[T]())
			}
			if err := inst.Deserialize(bytes.NewReader(payload)); err != nil {
				return nil, &ComponentCodecError{TypeName: pecs.TypeName[T](), Op: "decode", Err: err}
			}
			return value, nil
		},
	}
	resourceCodecsByTypeID[typeID] = codec
	resourceCodecsByGoType[reflect.TypeOf(&zero)] = codec
}

func resourceCodecFor(value any) (*resourceCodec, bool) {
	c, ok := resourceCodecsByGoType[reflect.TypeOf(value)]
	return c, ok
}

func resourceCodecByTypeID(typeID pecs.ComponentTypeID) (*resourceCodec, bool) {
	c, ok := resourceCodecsByTypeID[typeID]
	return c, ok
}
