package pecs

import (
	"unsafe"
)

// componentPtr returns a typed pointer into an archetype column at row.
func componentPtr[T any](arch *Archetype, compID ComponentID, row int) (*T, bool) {
	idx := arch.getSlot(compID)
	if idx == -1 {
		return nil, false
	}
	size := int(componentSizes[compID])
	if size == 0 {
		// Zero-sized components occupy no column bytes; any *T is valid.
		if row < 0 || row >= len(arch.entities) {
			return nil, false
		}
		return new(T), true
	}
	data := arch.componentData[idx]
	if row*size >= len(data) {
		return nil, false
	}
	return (*T)(unsafe.Pointer(&data[row*size])), true
}

// zeroExtend grows column id in newArch by one zeroed row slot, used when an
// added component has no source row to copy from.
func zeroExtend(arch *Archetype, compID ComponentID) {
	idx := arch.getSlot(compID)
	if idx == -1 {
		return
	}
	size := int(componentSizes[compID])
	arch.componentData[idx] = extendColumnBytes(arch.componentData[idx], size)
}

// writeComponent copies a component's bytes into its column row, growing
// the column by one row first if the row does not exist yet.
func writeComponent[T any](arch *Archetype, compID ComponentID, row int, value T, wasPresent bool) {
	idx := arch.getSlot(compID)
	if idx == -1 {
		return
	}
	size := int(componentSizes[compID])
	src := unsafe.Slice((*byte)(unsafe.Pointer(&value)), size)
	data := arch.componentData[idx]
	if wasPresent {
		copy(data[row*size:(row+1)*size], src)
		return
	}
	data = extendColumnBytes(data, size)
	copy(data[len(data)-size:], src)
	arch.componentData[idx] = data
}

// AddComponent adds a component of type T to an entity, leaving it
// zero-valued. It returns a pointer to the newly added component (or the
// existing one, if already present) and whether the entity is alive and T
// is registered.
func AddComponent[T any](w *World, e Entity) (*T, bool) {
	loc, ok := w.alloc.locationOf(e)
	if !ok {
		return nil, false
	}
	if err := w.requireNotIterating(); err != nil {
		return nil, false
	}
	compID, ok := TryGetID[T]()
	if !ok {
		return nil, false
	}

	oldArch := loc.Archetype
	if oldArch.mask.has(compID) {
		return componentPtr[T](oldArch, compID, loc.Row)
	}

	addMask := makeMask1(compID)
	newArch, copies := w.transitionAdd(oldArch, addMask)
	newRow := moveEntityBetweenArchetypes(e, loc.Row, oldArch, newArch, copies)
	zeroExtend(newArch, compID)

	w.alloc.setLocation(e, EntityLocation{Archetype: newArch, Row: newRow})
	w.removeEntityFromArchetype(e, oldArch, loc.Row)

	return componentPtr[T](newArch, compID, newRow)
}

// AddComponent2 adds two components to an entity if not already present.
func AddComponent2[T1 any, T2 any](w *World, e Entity) (*T1, *T2, bool) {
	loc, ok := w.alloc.locationOf(e)
	if !ok {
		return nil, nil, false
	}
	if err := w.requireNotIterating(); err != nil {
		return nil, nil, false
	}
	id1, ok1 := TryGetID[T1]()
	id2, ok2 := TryGetID[T2]()
	if !ok1 || !ok2 {
		return nil, nil, false
	}

	oldArch := loc.Archetype
	addMask := makeMask2(id1, id2)
	if includesAll(oldArch.mask, addMask) {
		p1, ok1 := componentPtr[T1](oldArch, id1, loc.Row)
		p2, ok2 := componentPtr[T2](oldArch, id2, loc.Row)
		return p1, p2, ok1 && ok2
	}

	newArch, copies := w.transitionAdd(oldArch, addMask)
	newRow := moveEntityBetweenArchetypes(e, loc.Row, oldArch, newArch, copies)
	for _, id := range [...]ComponentID{id1, id2} {
		if !oldArch.mask.has(id) {
			zeroExtend(newArch, id)
		}
	}

	w.alloc.setLocation(e, EntityLocation{Archetype: newArch, Row: newRow})
	w.removeEntityFromArchetype(e, oldArch, loc.Row)

	p1, ok1 := componentPtr[T1](newArch, id1, newRow)
	p2, ok2 := componentPtr[T2](newArch, id2, newRow)
	return p1, p2, ok1 && ok2
}

// AddComponent3 adds three components to an entity if not already present.
func AddComponent3[T1 any, T2 any, T3 any](w *World, e Entity) (*T1, *T2, *T3, bool) {
	loc, ok := w.alloc.locationOf(e)
	if !ok {
		return nil, nil, nil, false
	}
	if err := w.requireNotIterating(); err != nil {
		return nil, nil, nil, false
	}
	id1, ok1 := TryGetID[T1]()
	id2, ok2 := TryGetID[T2]()
	id3, ok3 := TryGetID[T3]()
	if !ok1 || !ok2 || !ok3 {
		return nil, nil, nil, false
	}

	oldArch := loc.Archetype
	addMask := makeMask3(id1, id2, id3)
	if includesAll(oldArch.mask, addMask) {
		p1, ok1 := componentPtr[T1](oldArch, id1, loc.Row)
		p2, ok2 := componentPtr[T2](oldArch, id2, loc.Row)
		p3, ok3 := componentPtr[T3](oldArch, id3, loc.Row)
		return p1, p2, p3, ok1 && ok2 && ok3
	}

	newArch, copies := w.transitionAdd(oldArch, addMask)
	newRow := moveEntityBetweenArchetypes(e, loc.Row, oldArch, newArch, copies)
	for _, id := range [...]ComponentID{id1, id2, id3} {
		if !oldArch.mask.has(id) {
			zeroExtend(newArch, id)
		}
	}

	w.alloc.setLocation(e, EntityLocation{Archetype: newArch, Row: newRow})
	w.removeEntityFromArchetype(e, oldArch, loc.Row)

	p1, ok1 := componentPtr[T1](newArch, id1, newRow)
	p2, ok2 := componentPtr[T2](newArch, id2, newRow)
	p3, ok3 := componentPtr[T3](newArch, id3, newRow)
	return p1, p2, p3, ok1 && ok2 && ok3
}

// AddComponent4 adds four components to an entity if not already present.
func AddComponent4[T1 any, T2 any, T3 any, T4 any](w *World, e Entity) (*T1, *T2, *T3, *T4, bool) {
	loc, ok := w.alloc.locationOf(e)
	if !ok {
		return nil, nil, nil, nil, false
	}
	if err := w.requireNotIterating(); err != nil {
		return nil, nil, nil, nil, false
	}
	id1, ok1 := TryGetID[T1]()
	id2, ok2 := TryGetID[T2]()
	id3, ok3 := TryGetID[T3]()
	id4, ok4 := TryGetID[T4]()
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, nil, nil, nil, false
	}

	oldArch := loc.Archetype
	addMask := makeMask4(id1, id2, id3, id4)
	if includesAll(oldArch.mask, addMask) {
		p1, ok1 := componentPtr[T1](oldArch, id1, loc.Row)
		p2, ok2 := componentPtr[T2](oldArch, id2, loc.Row)
		p3, ok3 := componentPtr[T3](oldArch, id3, loc.Row)
		p4, ok4 := componentPtr[T4](oldArch, id4, loc.Row)
		return p1, p2, p3, p4, ok1 && ok2 && ok3 && ok4
	}

	newArch, copies := w.transitionAdd(oldArch, addMask)
	newRow := moveEntityBetweenArchetypes(e, loc.Row, oldArch, newArch, copies)
	for _, id := range [...]ComponentID{id1, id2, id3, id4} {
		if !oldArch.mask.has(id) {
			zeroExtend(newArch, id)
		}
	}

	w.alloc.setLocation(e, EntityLocation{Archetype: newArch, Row: newRow})
	w.removeEntityFromArchetype(e, oldArch, loc.Row)

	p1, ok1 := componentPtr[T1](newArch, id1, newRow)
	p2, ok2 := componentPtr[T2](newArch, id2, newRow)
	p3, ok3 := componentPtr[T3](newArch, id3, newRow)
	p4, ok4 := componentPtr[T4](newArch, id4, newRow)
	return p1, p2, p3, p4, ok1 && ok2 && ok3 && ok4
}

// AddComponent5 adds five components to an entity if not already present.
func AddComponent5[T1 any, T2 any, T3 any, T4 any, T5 any](w *World, e Entity) (*T1, *T2, *T3, *T4, *T5, bool) {
	loc, ok := w.alloc.locationOf(e)
	if !ok {
		return nil, nil, nil, nil, nil, false
	}
	if err := w.requireNotIterating(); err != nil {
		return nil, nil, nil, nil, nil, false
	}
	id1, ok1 := TryGetID[T1]()
	id2, ok2 := TryGetID[T2]()
	id3, ok3 := TryGetID[T3]()
	id4, ok4 := TryGetID[T4]()
	id5, ok5 := TryGetID[T5]()
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return nil, nil, nil, nil, nil, false
	}

	oldArch := loc.Archetype
	addMask := makeMask5(id1, id2, id3, id4, id5)
	if includesAll(oldArch.mask, addMask) {
		p1, ok1 := componentPtr[T1](oldArch, id1, loc.Row)
		p2, ok2 := componentPtr[T2](oldArch, id2, loc.Row)
		p3, ok3 := componentPtr[T3](oldArch, id3, loc.Row)
		p4, ok4 := componentPtr[T4](oldArch, id4, loc.Row)
		p5, ok5 := componentPtr[T5](oldArch, id5, loc.Row)
		return p1, p2, p3, p4, p5, ok1 && ok2 && ok3 && ok4 && ok5
	}

	newArch, copies := w.transitionAdd(oldArch, addMask)
	newRow := moveEntityBetweenArchetypes(e, loc.Row, oldArch, newArch, copies)
	for _, id := range [...]ComponentID{id1, id2, id3, id4, id5} {
		if !oldArch.mask.has(id) {
			zeroExtend(newArch, id)
		}
	}

	w.alloc.setLocation(e, EntityLocation{Archetype: newArch, Row: newRow})
	w.removeEntityFromArchetype(e, oldArch, loc.Row)

	p1, ok1 := componentPtr[T1](newArch, id1, newRow)
	p2, ok2 := componentPtr[T2](newArch, id2, newRow)
	p3, ok3 := componentPtr[T3](newArch, id3, newRow)
	p4, ok4 := componentPtr[T4](newArch, id4, newRow)
	p5, ok5 := componentPtr[T5](newArch, id5, newRow)
	return p1, p2, p3, p4, p5, ok1 && ok2 && ok3 && ok4 && ok5
}

// SetComponent sets the component value for an entity, adding it (via an
// archetype transition) if the entity does not already have it.
func SetComponent[T any](w *World, e Entity, comp T) bool {
	loc, ok := w.alloc.locationOf(e)
	if !ok {
		return false
	}
	if err := w.requireNotIterating(); err != nil {
		return false
	}
	compID, ok := TryGetID[T]()
	if !ok {
		return false
	}

	oldArch := loc.Archetype
	if oldArch.mask.has(compID) {
		writeComponent(oldArch, compID, loc.Row, comp, true)
		return true
	}

	addMask := makeMask1(compID)
	newArch, copies := w.transitionAdd(oldArch, addMask)
	newRow := moveEntityBetweenArchetypes(e, loc.Row, oldArch, newArch, copies)
	writeComponent(newArch, compID, newRow, comp, false)

	w.alloc.setLocation(e, EntityLocation{Archetype: newArch, Row: newRow})
	w.removeEntityFromArchetype(e, oldArch, loc.Row)
	return true
}

// SetComponent2 sets two components for an entity, adding any missing ones.
func SetComponent2[T1 any, T2 any](w *World, e Entity, comp1 T1, comp2 T2) bool {
	loc, ok := w.alloc.locationOf(e)
	if !ok {
		return false
	}
	if err := w.requireNotIterating(); err != nil {
		return false
	}
	id1, ok1 := TryGetID[T1]()
	id2, ok2 := TryGetID[T2]()
	if !ok1 || !ok2 {
		return false
	}

	oldArch := loc.Archetype
	setMask := makeMask2(id1, id2)
	if includesAll(oldArch.mask, setMask) {
		writeComponent(oldArch, id1, loc.Row, comp1, true)
		writeComponent(oldArch, id2, loc.Row, comp2, true)
		return true
	}

	newArch, copies := w.transitionAdd(oldArch, setMask)
	newRow := moveEntityBetweenArchetypes(e, loc.Row, oldArch, newArch, copies)
	writeComponent(newArch, id1, newRow, comp1, oldArch.mask.has(id1))
	writeComponent(newArch, id2, newRow, comp2, oldArch.mask.has(id2))

	w.alloc.setLocation(e, EntityLocation{Archetype: newArch, Row: newRow})
	w.removeEntityFromArchetype(e, oldArch, loc.Row)
	return true
}

// SetComponent3 sets three components for an entity, adding any missing ones.
func SetComponent3[T1 any, T2 any, T3 any](w *World, e Entity, comp1 T1, comp2 T2, comp3 T3) bool {
	loc, ok := w.alloc.locationOf(e)
	if !ok {
		return false
	}
	if err := w.requireNotIterating(); err != nil {
		return false
	}
	id1, ok1 := TryGetID[T1]()
	id2, ok2 := TryGetID[T2]()
	id3, ok3 := TryGetID[T3]()
	if !ok1 || !ok2 || !ok3 {
		return false
	}

	oldArch := loc.Archetype
	setMask := makeMask3(id1, id2, id3)
	if includesAll(oldArch.mask, setMask) {
		writeComponent(oldArch, id1, loc.Row, comp1, true)
		writeComponent(oldArch, id2, loc.Row, comp2, true)
		writeComponent(oldArch, id3, loc.Row, comp3, true)
		return true
	}

	newArch, copies := w.transitionAdd(oldArch, setMask)
	newRow := moveEntityBetweenArchetypes(e, loc.Row, oldArch, newArch, copies)
	writeComponent(newArch, id1, newRow, comp1, oldArch.mask.has(id1))
	writeComponent(newArch, id2, newRow, comp2, oldArch.mask.has(id2))
	writeComponent(newArch, id3, newRow, comp3, oldArch.mask.has(id3))

	w.alloc.setLocation(e, EntityLocation{Archetype: newArch, Row: newRow})
	w.removeEntityFromArchetype(e, oldArch, loc.Row)
	return true
}

// SetComponent4 sets four components for an entity, adding any missing ones.
func SetComponent4[T1 any, T2 any, T3 any, T4 any](w *World, e Entity, comp1 T1, comp2 T2, comp3 T3, comp4 T4) bool {
	loc, ok := w.alloc.locationOf(e)
	if !ok {
		return false
	}
	if err := w.requireNotIterating(); err != nil {
		return false
	}
	id1, ok1 := TryGetID[T1]()
	id2, ok2 := TryGetID[T2]()
	id3, ok3 := TryGetID[T3]()
	id4, ok4 := TryGetID[T4]()
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return false
	}

	oldArch := loc.Archetype
	setMask := makeMask4(id1, id2, id3, id4)
	if includesAll(oldArch.mask, setMask) {
		writeComponent(oldArch, id1, loc.Row, comp1, true)
		writeComponent(oldArch, id2, loc.Row, comp2, true)
		writeComponent(oldArch, id3, loc.Row, comp3, true)
		writeComponent(oldArch, id4, loc.Row, comp4, true)
		return true
	}

	newArch, copies := w.transitionAdd(oldArch, setMask)
	newRow := moveEntityBetweenArchetypes(e, loc.Row, oldArch, newArch, copies)
	writeComponent(newArch, id1, newRow, comp1, oldArch.mask.has(id1))
	writeComponent(newArch, id2, newRow, comp2, oldArch.mask.has(id2))
	writeComponent(newArch, id3, newRow, comp3, oldArch.mask.has(id3))
	writeComponent(newArch, id4, newRow, comp4, oldArch.mask.has(id4))

	w.alloc.setLocation(e, EntityLocation{Archetype: newArch, Row: newRow})
	w.removeEntityFromArchetype(e, oldArch, loc.Row)
	return true
}

// SetComponent5 sets five components for an entity, adding any missing ones.
func SetComponent5[T1 any, T2 any, T3 any, T4 any, T5 any](w *World, e Entity, comp1 T1, comp2 T2, comp3 T3, comp4 T4, comp5 T5) bool {
	loc, ok := w.alloc.locationOf(e)
	if !ok {
		return false
	}
	if err := w.requireNotIterating(); err != nil {
		return false
	}
	id1, ok1 := TryGetID[T1]()
	id2, ok2 := TryGetID[T2]()
	id3, ok3 := TryGetID[T3]()
	id4, ok4 := TryGetID[T4]()
	id5, ok5 := TryGetID[T5]()
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return false
	}

	oldArch := loc.Archetype
	setMask := makeMask5(id1, id2, id3, id4, id5)
	if includesAll(oldArch.mask, setMask) {
		writeComponent(oldArch, id1, loc.Row, comp1, true)
		writeComponent(oldArch, id2, loc.Row, comp2, true)
		writeComponent(oldArch, id3, loc.Row, comp3, true)
		writeComponent(oldArch, id4, loc.Row, comp4, true)
		writeComponent(oldArch, id5, loc.Row, comp5, true)
		return true
	}

	newArch, copies := w.transitionAdd(oldArch, setMask)
	newRow := moveEntityBetweenArchetypes(e, loc.Row, oldArch, newArch, copies)
	writeComponent(newArch, id1, newRow, comp1, oldArch.mask.has(id1))
	writeComponent(newArch, id2, newRow, comp2, oldArch.mask.has(id2))
	writeComponent(newArch, id3, newRow, comp3, oldArch.mask.has(id3))
	writeComponent(newArch, id4, newRow, comp4, oldArch.mask.has(id4))
	writeComponent(newArch, id5, newRow, comp5, oldArch.mask.has(id5))

	w.alloc.setLocation(e, EntityLocation{Archetype: newArch, Row: newRow})
	w.removeEntityFromArchetype(e, oldArch, loc.Row)
	return true
}

// removeComponents is the shared body of RemoveComponentN: transitions e out
// of any of removeMask's components that it currently carries.
func removeComponents(w *World, e Entity, removeMask mask256) bool {
	loc, ok := w.alloc.locationOf(e)
	if !ok {
		return false
	}
	if err := w.requireNotIterating(); err != nil {
		return false
	}
	oldArch := loc.Archetype
	if !intersects(oldArch.mask, removeMask) {
		return true
	}

	newArch, copies := w.transitionRemove(oldArch, removeMask)
	newRow := moveEntityBetweenArchetypes(e, loc.Row, oldArch, newArch, copies)

	w.alloc.setLocation(e, EntityLocation{Archetype: newArch, Row: newRow})
	w.removeEntityFromArchetype(e, oldArch, loc.Row)
	return true
}

// RemoveComponent removes a component of type T from an entity. Returns
// true if the entity is alive and T is registered, whether or not the
// entity actually carried the component.
func RemoveComponent[T any](w *World, e Entity) bool {
	compID, ok := TryGetID[T]()
	if !ok {
		return false
	}
	return removeComponents(w, e, makeMask1(compID))
}

// RemoveComponent2 removes two components from an entity if present.
func RemoveComponent2[T1 any, T2 any](w *World, e Entity) bool {
	id1, ok1 := TryGetID[T1]()
	id2, ok2 := TryGetID[T2]()
	if !ok1 || !ok2 {
		return false
	}
	return removeComponents(w, e, makeMask2(id1, id2))
}

// RemoveComponent3 removes three components from an entity if present.
func RemoveComponent3[T1 any, T2 any, T3 any](w *World, e Entity) bool {
	id1, ok1 := TryGetID[T1]()
	id2, ok2 := TryGetID[T2]()
	id3, ok3 := TryGetID[T3]()
	if !ok1 || !ok2 || !ok3 {
		return false
	}
	return removeComponents(w, e, makeMask3(id1, id2, id3))
}

// RemoveComponent4 removes four components from an entity if present.
func RemoveComponent4[T1 any, T2 any, T3 any, T4 any](w *World, e Entity) bool {
	id1, ok1 := TryGetID[T1]()
	id2, ok2 := TryGetID[T2]()
	id3, ok3 := TryGetID[T3]()
	id4, ok4 := TryGetID[T4]()
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return false
	}
	return removeComponents(w, e, makeMask4(id1, id2, id3, id4))
}

// RemoveComponent5 removes five components from an entity if present.
func RemoveComponent5[T1 any, T2 any, T3 any, T4 any, T5 any](w *World, e Entity) bool {
	id1, ok1 := TryGetID[T1]()
	id2, ok2 := TryGetID[T2]()
	id3, ok3 := TryGetID[T3]()
	id4, ok4 := TryGetID[T4]()
	id5, ok5 := TryGetID[T5]()
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return false
	}
	return removeComponents(w, e, makeMask5(id1, id2, id3, id4, id5))
}

// GetComponent retrieves a pointer to the component of type T for the given
// entity, and whether it was found.
func GetComponent[T any](w *World, e Entity) (*T, bool) {
	loc, ok := w.alloc.locationOf(e)
	if !ok {
		return nil, false
	}
	compID, ok := TryGetID[T]()
	if !ok {
		return nil, false
	}
	return componentPtr[T](loc.Archetype, compID, loc.Row)
}

// ComponentAt returns a pointer to component T at a given row of arch,
// without resolving an Entity handle first. Used for bulk, row-ordered
// walks over a whole archetype, persistence save/load in particular, where
// looking every row up by Entity would be wasted indirection.
func ComponentAt[T any](arch *Archetype, row int) (*T, bool) {
	compID, ok := TryGetID[T]()
	if !ok {
		return nil, false
	}
	return componentPtr[T](arch, compID, row)
}

// HasComponent reports whether a live entity currently carries component T.
func HasComponent[T any](w *World, e Entity) bool {
	loc, ok := w.alloc.locationOf(e)
	if !ok {
		return false
	}
	compID, ok := TryGetID[T]()
	if !ok {
		return false
	}
	return loc.Archetype.mask.has(compID)
}
