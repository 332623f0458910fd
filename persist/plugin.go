// Package persist implements self-describing save/load codecs for a
// pecs.World: a byte-exact, checksummed binary format plus a semantically
// equivalent JSON alternative, both built on the same Plugin contract.
package persist

import (
	"io"

	"github.com/fenwick-systems/pecs"
)

// SerializableComponent is implemented by component (and resource) types
// that opt into persistence. PersistentVersion identifies the on-disk
// schema the Serialize/Deserialize pair speaks; a ComponentMigration
// translates older versions forward before Deserialize ever sees them.
type SerializableComponent interface {
	Serialize(w io.Writer) error
	Deserialize(r io.Reader) error
	PersistentVersion() uint32
	IsPersistent() bool
}

// TransientComponent is a marker interface a component type implements to
// opt out of persistence entirely at the type level (as opposed to
// IsPersistent's per-instance opt-out).
type TransientComponent interface {
	transient()
}

// Plugin is a full codec pair for a pecs.World plus self-identification.
type Plugin interface {
	// Save encodes w to out. Filters (if any) narrow which
	// (entity, component type) pairs are actually written.
	Save(w *pecs.World, out io.Writer, filters ...Filter) error

	// Load decodes a new World from in.
	Load(in io.Reader) (*pecs.World, error)

	// FormatName identifies the plugin's on-disk format, e.g. "pecs-binary".
	FormatName() string

	// FormatVersion reports the (major, minor) version this plugin writes.
	FormatVersion() (major, minor uint16)

	// CanLoad reports whether in's leading bytes look like this plugin's
	// format, without consuming more than a small fixed-size prefix. Used
	// for format auto-detection across multiple registered plugins.
	CanLoad(in io.Reader) bool
}

// Filter is a user-supplied persistence predicate over (entity, component
// type) pairs, composed with All/Any semantics.
type Filter interface {
	// Allow reports whether the named component type should be persisted
	// for the given entity.
	Allow(e pecs.Entity, typeID pecs.ComponentTypeID) bool
}

// FilterFunc adapts a plain function to Filter.
type FilterFunc func(e pecs.Entity, typeID pecs.ComponentTypeID) bool

func (f FilterFunc) Allow(e pecs.Entity, typeID pecs.ComponentTypeID) bool { return f(e, typeID) }

// All composes filters with AND semantics: every filter must allow.
func All(filters ...Filter) Filter {
	return FilterFunc(func(e pecs.Entity, typeID pecs.ComponentTypeID) bool {
		for _, f := range filters {
			if !f.Allow(e, typeID) {
				return false
			}
		}
		return true
	})
}

// Any composes filters with OR semantics: at least one filter must allow.
// An empty Any allows everything, matching the "no filters configured"
// default.
func Any(filters ...Filter) Filter {
	if len(filters) == 0 {
		return FilterFunc(func(pecs.Entity, pecs.ComponentTypeID) bool { return true })
	}
	return FilterFunc(func(e pecs.Entity, typeID pecs.ComponentTypeID) bool {
		for _, f := range filters {
			if f.Allow(e, typeID) {
				return true
			}
		}
		return false
	})
}

// ChangeKind classifies one entry in a delta change stream.
type ChangeKind uint8

const (
	ChangeCreated ChangeKind = iota
	ChangeModified
	ChangeDeleted
)

// Change is one entry of the delta form: a single entity's creation,
// in-place modification, or deletion, carrying a host-supplied monotonic
// timestamp for ordering across a change stream.
type Change struct {
	Kind       ChangeKind
	Entity     pecs.Entity
	Stable     pecs.StableID
	Timestamp  uint64
	Components []ComponentSnapshot // populated for Created/Modified
	Removed    []pecs.ComponentTypeID
}

// ComponentSnapshot is one component's persisted value inside a Change,
// keyed by its stable on-disk type id.
type ComponentSnapshot struct {
	TypeID  pecs.ComponentTypeID
	Payload []byte
}
