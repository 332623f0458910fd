package pecs

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// ComponentID is a process-local dense identifier for a component type,
// assigned in registration order and reused across process restarts only by
// coincidence. Hot-path code (archetype columns, masks, queries) indexes by
// ComponentID because it is a small dense integer.
type ComponentID uint32

// ComponentTypeID is a stable, content-derived identifier for a component
// type that a save file can rely on even across a process restart where
// registration order differs. It is the xxhash-based fingerprint of the
// type's registered name, split across two 64-bit lanes for 128 bits of
// namespace, wide enough that accidental collisions across a real
// component catalog are not a practical concern.
type ComponentTypeID [16]byte

// String renders the type id as lowercase hex, matching the style of
// other fixed-width identifiers in this package.
func (id ComponentTypeID) String() string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 32)
	for i, b := range id {
		buf[i*2] = hexDigits[b>>4]
		buf[i*2+1] = hexDigits[b&0xf]
	}
	return string(buf)
}

func deriveComponentTypeID(name string) ComponentTypeID {
	var id ComponentTypeID
	h1 := xxhash.Sum64String(name)
	h2 := xxhash.Sum64String(name + "\x00pecs-salt")
	binary.BigEndian.PutUint64(id[0:8], h1)
	binary.BigEndian.PutUint64(id[8:16], h2)
	return id
}

const (
	bitsPerWord            = 64
	maskWords              = 4
	maxComponentTypes      = maskWords * bitsPerWord
	defaultWorldCapacity   = 16 // World's default initial row capacity when WorldOptions.InitialCapacity is unset
)

// componentRegistration lists what the global registry records per component
// type: its process-local dense id, its stable on-disk fingerprint, and the
// byte size used to size archetype columns. The registry itself keeps these
// in the separate maps and array below, not in this struct.
type componentRegistration struct {
	id     ComponentID
	typeID ComponentTypeID
	size   uintptr
	typ    reflect.Type
}

var (
	nextComponentID ComponentID
	typeToID        = make(map[reflect.Type]ComponentID, maxComponentTypes)
	idToType        = make(map[ComponentID]reflect.Type, maxComponentTypes)
	idToTypeID      = make(map[ComponentID]ComponentTypeID, maxComponentTypes)
	typeIDToID      = make(map[ComponentTypeID]ComponentID, maxComponentTypes)
	componentSizes  [maxComponentTypes]uintptr
)

// ResetGlobalRegistry resets the global component registry. Useful for
// tests that need independent component-ID spaces.
func ResetGlobalRegistry() {
	nextComponentID = 0
	typeToID = make(map[reflect.Type]ComponentID, maxComponentTypes)
	idToType = make(map[ComponentID]reflect.Type, maxComponentTypes)
	idToTypeID = make(map[ComponentID]ComponentTypeID, maxComponentTypes)
	typeIDToID = make(map[ComponentTypeID]ComponentID, maxComponentTypes)
	componentSizes = [maxComponentTypes]uintptr{}
}

// RegisterComponent registers a component type and returns its unique
// process-local ID. If the component type is already registered, it returns
// the existing ID. It panics if the maximum number of component types is
// exceeded.
func RegisterComponent[T any]() ComponentID {
	var t T
	compType := reflect.TypeOf(t)

	if id, ok := typeToID[compType]; ok {
		return id
	}

	if int(nextComponentID) >= maxComponentTypes {
		panic(fmt.Sprintf("cannot register component %s: maximum number of component types (%d) reached", compType.Name(), maxComponentTypes))
	}

	id := nextComponentID
	typeID := deriveComponentTypeID(qualifiedName(compType))
	typeToID[compType] = id
	idToType[id] = compType
	idToTypeID[id] = typeID
	typeIDToID[typeID] = id
	componentSizes[id] = unsafe.Sizeof(t)
	nextComponentID++
	return id
}

func qualifiedName(t reflect.Type) string {
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}

// GetID returns the ComponentID for a given component type.
// It panics if the component type has not been registered.
func GetID[T any]() ComponentID {
	var zero T
	typ := reflect.TypeOf(zero)
	id, ok := typeToID[typ]
	if !ok {
		panic(fmt.Sprintf("component type %s not registered", typ))
	}
	return id
}

// TryGetID returns the ComponentID for a given component type and a boolean
// indicating if it was found. It does not panic if the component type is
// not registered.
func TryGetID[T any]() (ComponentID, bool) {
	var zero T
	typ := reflect.TypeOf(zero)
	id, ok := typeToID[typ]
	return id, ok
}

// GetTypeID returns the stable on-disk ComponentTypeID for a registered
// component type.
func GetTypeID[T any]() ComponentTypeID {
	return idToTypeID[GetID[T]()]
}

// ComponentIDForTypeID resolves a stable ComponentTypeID recovered from a
// save file back to the current process's ComponentID, reporting whether
// the type is registered at all in this process. Exported for the persist
// subpackage's load path, which only has the on-disk fingerprint to work
// from until it has matched it against the runtime registry.
func ComponentIDForTypeID(typeID ComponentTypeID) (ComponentID, bool) {
	id, ok := typeIDToID[typeID]
	return id, ok
}

// TypeIDForComponentID is the inverse of ComponentIDForTypeID: it resolves
// a runtime ComponentID to the stable on-disk ComponentTypeID, for walking
// an archetype's columns when saving.
func TypeIDForComponentID(id ComponentID) (ComponentTypeID, bool) {
	typeID, ok := idToTypeID[id]
	return typeID, ok
}

// DeriveTypeID returns the stable on-disk ComponentTypeID for any Go type,
// independent of whether it has been registered with RegisterComponent.
// Resources never go through archetype storage or RegisterComponent, so the
// persist subpackage uses this to identify resource types instead.
func DeriveTypeID[T any]() ComponentTypeID {
	var zero T
	return deriveComponentTypeID(qualifiedName(reflect.TypeOf(zero)))
}

// TypeName returns the qualified Go type name used to derive T's
// ComponentTypeID, for diagnostics and type-registry sections in a saved
// file.
func TypeName[T any]() string {
	var zero T
	return qualifiedName(reflect.TypeOf(zero))
}
