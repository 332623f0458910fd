package persist

// registry.go bridges persist's runtime-only knowledge of an on-disk
// ComponentTypeID to the compile-time generics pecs.ComponentAt[T] and
// pecs.SetComponent[T] require. A Plugin walks archetype columns knowing
// only the ComponentTypeID it read from the type registry section; Register
// closes over the concrete Go type once, at package-init time, so the save
// and load paths can dispatch through a map instead of a type switch.

import (
	"bytes"
	"fmt"
	"io"
	"reflect"

	"github.com/fenwick-systems/pecs"
)

type componentCodec struct {
	typeID        pecs.ComponentTypeID
	name          string
	schemaVersion uint32
	sizeHint      uint32
	encodeRow     func(arch *pecs.Archetype, row int) (payload []byte, persist bool, err error)
	encodeValue   func(w *pecs.World, e pecs.Entity) (payload []byte, persist bool, err error)
	decodeInto    func(w *pecs.World, e pecs.Entity, r io.Reader) error
	removeFrom    func(w *pecs.World, e pecs.Entity) bool
}

var codecsByTypeID = make(map[pecs.ComponentTypeID]*componentCodec)

// Register makes T available to binary and JSON plugins. T (or *T) must
// implement SerializableComponent; Register panics otherwise, since a
// misregistered codec is a programmer error best caught at init time.
// Call once per component type, typically from an init func alongside
// pecs.RegisterComponent[T].
//
// A type implementing TransientComponent is a type-level persistence
// opt-out: Register is a no-op for it even if it also implements
// SerializableComponent, so a save never emits a codec entry for it and
// buildArchetypeBlocks falls back to its already-unregistered-type path.
func Register[T any]() {
	var zero T
	if _, transient := any(&zero).(TransientComponent); transient {
		return
	}
	sc, ok := any(&zero).(SerializableComponent)
	if !ok {
		panic(fmt.Sprintf("persist: %T does not implement persist.SerializableComponent", zero))
	}

	serialize := func(inst SerializableComponent) ([]byte, bool, error) {
		if !inst.IsPersistent() {
			return nil, false, nil
		}
		var buf bytes.Buffer
		if err := inst.Serialize(&buf); err != nil {
			return nil, false, &ComponentCodecError{TypeName: pecs.TypeName[T](), Op: "encode", Err: err}
		}
		return buf.Bytes(), true, nil
	}

	typeID := pecs.GetTypeID[T]()
	codec := &componentCodec{
		typeID:        typeID,
		name:          pecs.TypeName[T](),
		schemaVersion: sc.PersistentVersion(),
		sizeHint:      uint32(reflect.TypeOf(zero).Size()),
		encodeRow: func(arch *pecs.Archetype, row int) ([]byte, bool, error) {
			ptr, ok := pecs.ComponentAt[T](arch, row)
			if !ok {
				return nil, false, nil
			}
			inst, ok := any(ptr).(SerializableComponent)
			if !ok {
				return nil, false, nil
			}
			return serialize(inst)
		},
		encodeValue: func(w *pecs.World, e pecs.Entity) ([]byte, bool, error) {
			ptr, ok := pecs.GetComponent[T](w, e)
			if !ok {
				return nil, false, nil
			}
			inst, ok := any(ptr).(SerializableComponent)
			if !ok {
				return nil, false, nil
			}
			return serialize(inst)
		},
		decodeInto: func(w *pecs.World, e pecs.Entity, r io.Reader) error {
			var value T
			inst, ok := any(&value).(SerializableComponent)
			if !ok {
				return fmt.Errorf("persist: %s does not implement SerializableComponent", pecs.TypeName[T]())
			}
			if err := inst.Deserialize(r); err != nil {
				return &ComponentCodecError{TypeName: pecs.TypeName[T](), Op: "decode", Err: err}
			}
			pecs.SetComponent[T](w, e, value)
			return nil
		},
		removeFrom: func(w *pecs.World, e pecs.Entity) bool {
			return pecs.RemoveComponent[T](w, e)
		},
	}
	codecsByTypeID[typeID] = codec
}

func lookupCodec(typeID pecs.ComponentTypeID) (*componentCodec, bool) {
	c, ok := codecsByTypeID[typeID]
	return c, ok
}
