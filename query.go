package pecs

import "unsafe"

// assertDistinct panics with ErrBorrowConflict when the same component type
// appears more than once in a query's fetch list. Every fetch yields a
// mutable pointer into its column, so a duplicate would alias mutable
// access to the same component. Catching it at construction beats a data
// race mid-iteration.
func assertDistinct(ids ...ComponentID) {
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if ids[i] == ids[j] {
				panic(ErrBorrowConflict)
			}
		}
	}
}

// Query1 is a compile-time-typed iterator over entities that carry
// component type T1. An active Next() loop holds the world's iteration
// lock (beginIteration/endIteration), blocking structural mutation for
// the iterator's lifetime.
type Query1[T1 any] struct {
	world       *World
	includeMask mask256
	excludeMask mask256
	id1         ComponentID

	archIdx       int
	index         int
	currentArch   *Archetype
	base1         unsafe.Pointer
	stride1       uintptr
	currentEntity Entity
	locked        bool
}

// NewQuery1 creates a query over entities carrying T1, optionally excluding
// any of the given component IDs.
func NewQuery1[T1 any](w *World, excludes ...ComponentID) *Query1[T1] {
	id1 := GetID[T1]()
	return &Query1[T1]{
		world:       w,
		includeMask: makeMask1(id1),
		excludeMask: makeMask(excludes),
		id1:         id1,
		archIdx:     0,
		index:       -1,
	}
}

// Reset rewinds the query for reuse and releases any held iteration lock.
func (q *Query1[T1]) Reset() {
	q.release()
	q.archIdx = 0
	q.index = -1
	q.currentArch = nil
}

func (q *Query1[T1]) acquire() {
	if !q.locked {
		q.world.beginIteration()
		q.locked = true
	}
}

func (q *Query1[T1]) release() {
	if q.locked {
		q.world.endIteration()
		q.locked = false
	}
}

// Next advances to the next matching entity. Returns false (and releases
// the iteration lock) once exhausted.
func (q *Query1[T1]) Next() bool {
	q.acquire()
	q.index++
	if q.currentArch != nil && q.index < len(q.currentArch.entities) {
		q.currentEntity = q.currentArch.entities[q.index]
		return true
	}

	for q.archIdx < len(q.world.archetypesList) {
		arch := q.world.archetypesList[q.archIdx]
		q.archIdx++
		if len(arch.entities) == 0 || !includesAll(arch.mask, q.includeMask) || intersects(arch.mask, q.excludeMask) {
			continue
		}
		q.currentArch = arch
		slot1 := arch.getSlot(q.id1)
		if slot1 < 0 {
			panic("pecs: missing component in matching archetype")
		}
		if len(arch.componentData[slot1]) > 0 {
			q.base1 = unsafe.Pointer(&arch.componentData[slot1][0])
		} else {
			q.base1 = nil
		}
		q.stride1 = componentSizes[q.id1]
		q.index = 0
		q.currentEntity = arch.entities[0]
		return true
	}
	q.release()
	return false
}

// Get returns a pointer to the component for the current entity.
func (q *Query1[T1]) Get() *T1 {
	p1 := unsafe.Pointer(uintptr(q.base1) + uintptr(q.index)*q.stride1)
	return (*T1)(p1)
}

// Entity returns the current entity.
func (q *Query1[T1]) Entity() Entity {
	return q.currentEntity
}

// Query2 iterates entities carrying component types T1 and T2.
type Query2[T1 any, T2 any] struct {
	world       *World
	includeMask mask256
	excludeMask mask256
	id1, id2    ComponentID

	archIdx               int
	index                 int
	currentArch           *Archetype
	base1, base2          unsafe.Pointer
	stride1, stride2      uintptr
	currentEntity         Entity
	locked                bool
}

// NewQuery2 creates a query over entities carrying T1 and T2.
func NewQuery2[T1 any, T2 any](w *World, excludes ...ComponentID) *Query2[T1, T2] {
	id1 := GetID[T1]()
	id2 := GetID[T2]()
	assertDistinct(id1, id2)
	return &Query2[T1, T2]{
		world:       w,
		includeMask: makeMask2(id1, id2),
		excludeMask: makeMask(excludes),
		id1:         id1,
		id2:         id2,
		archIdx:     0,
		index:       -1,
	}
}

func (q *Query2[T1, T2]) Reset() {
	q.release()
	q.archIdx = 0
	q.index = -1
	q.currentArch = nil
}

func (q *Query2[T1, T2]) acquire() {
	if !q.locked {
		q.world.beginIteration()
		q.locked = true
	}
}

func (q *Query2[T1, T2]) release() {
	if q.locked {
		q.world.endIteration()
		q.locked = false
	}
}

func (q *Query2[T1, T2]) Next() bool {
	q.acquire()
	q.index++
	if q.currentArch != nil && q.index < len(q.currentArch.entities) {
		q.currentEntity = q.currentArch.entities[q.index]
		return true
	}

	for q.archIdx < len(q.world.archetypesList) {
		arch := q.world.archetypesList[q.archIdx]
		q.archIdx++
		if len(arch.entities) == 0 || !includesAll(arch.mask, q.includeMask) || intersects(arch.mask, q.excludeMask) {
			continue
		}
		q.currentArch = arch
		q.base1, q.stride1 = columnBase(arch, q.id1)
		q.base2, q.stride2 = columnBase(arch, q.id2)
		q.index = 0
		q.currentEntity = arch.entities[0]
		return true
	}
	q.release()
	return false
}

func (q *Query2[T1, T2]) Get() (*T1, *T2) {
	p1 := unsafe.Pointer(uintptr(q.base1) + uintptr(q.index)*q.stride1)
	p2 := unsafe.Pointer(uintptr(q.base2) + uintptr(q.index)*q.stride2)
	return (*T1)(p1), (*T2)(p2)
}

func (q *Query2[T1, T2]) Entity() Entity {
	return q.currentEntity
}

// Query3 iterates entities carrying component types T1, T2, and T3.
type Query3[T1 any, T2 any, T3 any] struct {
	world       *World
	includeMask mask256
	excludeMask mask256
	id1, id2, id3 ComponentID

	archIdx                      int
	index                        int
	currentArch                  *Archetype
	base1, base2, base3          unsafe.Pointer
	stride1, stride2, stride3    uintptr
	currentEntity                Entity
	locked                       bool
}

// NewQuery3 creates a query over entities carrying T1, T2, and T3.
func NewQuery3[T1 any, T2 any, T3 any](w *World, excludes ...ComponentID) *Query3[T1, T2, T3] {
	id1, id2, id3 := GetID[T1](), GetID[T2](), GetID[T3]()
	assertDistinct(id1, id2, id3)
	return &Query3[T1, T2, T3]{
		world:       w,
		includeMask: makeMask3(id1, id2, id3),
		excludeMask: makeMask(excludes),
		id1:         id1,
		id2:         id2,
		id3:         id3,
		archIdx:     0,
		index:       -1,
	}
}

func (q *Query3[T1, T2, T3]) Reset() {
	q.release()
	q.archIdx = 0
	q.index = -1
	q.currentArch = nil
}

func (q *Query3[T1, T2, T3]) acquire() {
	if !q.locked {
		q.world.beginIteration()
		q.locked = true
	}
}

func (q *Query3[T1, T2, T3]) release() {
	if q.locked {
		q.world.endIteration()
		q.locked = false
	}
}

func (q *Query3[T1, T2, T3]) Next() bool {
	q.acquire()
	q.index++
	if q.currentArch != nil && q.index < len(q.currentArch.entities) {
		q.currentEntity = q.currentArch.entities[q.index]
		return true
	}

	for q.archIdx < len(q.world.archetypesList) {
		arch := q.world.archetypesList[q.archIdx]
		q.archIdx++
		if len(arch.entities) == 0 || !includesAll(arch.mask, q.includeMask) || intersects(arch.mask, q.excludeMask) {
			continue
		}
		q.currentArch = arch
		q.base1, q.stride1 = columnBase(arch, q.id1)
		q.base2, q.stride2 = columnBase(arch, q.id2)
		q.base3, q.stride3 = columnBase(arch, q.id3)
		q.index = 0
		q.currentEntity = arch.entities[0]
		return true
	}
	q.release()
	return false
}

func (q *Query3[T1, T2, T3]) Get() (*T1, *T2, *T3) {
	p1 := unsafe.Pointer(uintptr(q.base1) + uintptr(q.index)*q.stride1)
	p2 := unsafe.Pointer(uintptr(q.base2) + uintptr(q.index)*q.stride2)
	p3 := unsafe.Pointer(uintptr(q.base3) + uintptr(q.index)*q.stride3)
	return (*T1)(p1), (*T2)(p2), (*T3)(p3)
}

func (q *Query3[T1, T2, T3]) Entity() Entity {
	return q.currentEntity
}

// Query4 iterates entities carrying component types T1..T4.
type Query4[T1 any, T2 any, T3 any, T4 any] struct {
	world       *World
	includeMask mask256
	excludeMask mask256
	id1, id2, id3, id4 ComponentID

	archIdx                            int
	index                              int
	currentArch                        *Archetype
	base1, base2, base3, base4         unsafe.Pointer
	stride1, stride2, stride3, stride4 uintptr
	currentEntity                      Entity
	locked                             bool
}

// NewQuery4 creates a query over entities carrying T1..T4.
func NewQuery4[T1 any, T2 any, T3 any, T4 any](w *World, excludes ...ComponentID) *Query4[T1, T2, T3, T4] {
	id1, id2, id3, id4 := GetID[T1](), GetID[T2](), GetID[T3](), GetID[T4]()
	assertDistinct(id1, id2, id3, id4)
	return &Query4[T1, T2, T3, T4]{
		world:       w,
		includeMask: makeMask4(id1, id2, id3, id4),
		excludeMask: makeMask(excludes),
		id1:         id1,
		id2:         id2,
		id3:         id3,
		id4:         id4,
		archIdx:     0,
		index:       -1,
	}
}

func (q *Query4[T1, T2, T3, T4]) Reset() {
	q.release()
	q.archIdx = 0
	q.index = -1
	q.currentArch = nil
}

func (q *Query4[T1, T2, T3, T4]) acquire() {
	if !q.locked {
		q.world.beginIteration()
		q.locked = true
	}
}

func (q *Query4[T1, T2, T3, T4]) release() {
	if q.locked {
		q.world.endIteration()
		q.locked = false
	}
}

func (q *Query4[T1, T2, T3, T4]) Next() bool {
	q.acquire()
	q.index++
	if q.currentArch != nil && q.index < len(q.currentArch.entities) {
		q.currentEntity = q.currentArch.entities[q.index]
		return true
	}

	for q.archIdx < len(q.world.archetypesList) {
		arch := q.world.archetypesList[q.archIdx]
		q.archIdx++
		if len(arch.entities) == 0 || !includesAll(arch.mask, q.includeMask) || intersects(arch.mask, q.excludeMask) {
			continue
		}
		q.currentArch = arch
		q.base1, q.stride1 = columnBase(arch, q.id1)
		q.base2, q.stride2 = columnBase(arch, q.id2)
		q.base3, q.stride3 = columnBase(arch, q.id3)
		q.base4, q.stride4 = columnBase(arch, q.id4)
		q.index = 0
		q.currentEntity = arch.entities[0]
		return true
	}
	q.release()
	return false
}

func (q *Query4[T1, T2, T3, T4]) Get() (*T1, *T2, *T3, *T4) {
	p1 := unsafe.Pointer(uintptr(q.base1) + uintptr(q.index)*q.stride1)
	p2 := unsafe.Pointer(uintptr(q.base2) + uintptr(q.index)*q.stride2)
	p3 := unsafe.Pointer(uintptr(q.base3) + uintptr(q.index)*q.stride3)
	p4 := unsafe.Pointer(uintptr(q.base4) + uintptr(q.index)*q.stride4)
	return (*T1)(p1), (*T2)(p2), (*T3)(p3), (*T4)(p4)
}

func (q *Query4[T1, T2, T3, T4]) Entity() Entity {
	return q.currentEntity
}

// Query5 iterates entities carrying component types T1..T5.
type Query5[T1 any, T2 any, T3 any, T4 any, T5 any] struct {
	world       *World
	includeMask mask256
	excludeMask mask256
	id1, id2, id3, id4, id5 ComponentID

	archIdx                                    int
	index                                      int
	currentArch                                *Archetype
	base1, base2, base3, base4, base5          unsafe.Pointer
	stride1, stride2, stride3, stride4, stride5 uintptr
	currentEntity                              Entity
	locked                                     bool
}

// NewQuery5 creates a query over entities carrying T1..T5.
func NewQuery5[T1 any, T2 any, T3 any, T4 any, T5 any](w *World, excludes ...ComponentID) *Query5[T1, T2, T3, T4, T5] {
	id1, id2, id3, id4, id5 := GetID[T1](), GetID[T2](), GetID[T3](), GetID[T4](), GetID[T5]()
	assertDistinct(id1, id2, id3, id4, id5)
	return &Query5[T1, T2, T3, T4, T5]{
		world:       w,
		includeMask: makeMask5(id1, id2, id3, id4, id5),
		excludeMask: makeMask(excludes),
		id1:         id1,
		id2:         id2,
		id3:         id3,
		id4:         id4,
		id5:         id5,
		archIdx:     0,
		index:       -1,
	}
}

func (q *Query5[T1, T2, T3, T4, T5]) Reset() {
	q.release()
	q.archIdx = 0
	q.index = -1
	q.currentArch = nil
}

func (q *Query5[T1, T2, T3, T4, T5]) acquire() {
	if !q.locked {
		q.world.beginIteration()
		q.locked = true
	}
}

func (q *Query5[T1, T2, T3, T4, T5]) release() {
	if q.locked {
		q.world.endIteration()
		q.locked = false
	}
}

func (q *Query5[T1, T2, T3, T4, T5]) Next() bool {
	q.acquire()
	q.index++
	if q.currentArch != nil && q.index < len(q.currentArch.entities) {
		q.currentEntity = q.currentArch.entities[q.index]
		return true
	}

	for q.archIdx < len(q.world.archetypesList) {
		arch := q.world.archetypesList[q.archIdx]
		q.archIdx++
		if len(arch.entities) == 0 || !includesAll(arch.mask, q.includeMask) || intersects(arch.mask, q.excludeMask) {
			continue
		}
		q.currentArch = arch
		q.base1, q.stride1 = columnBase(arch, q.id1)
		q.base2, q.stride2 = columnBase(arch, q.id2)
		q.base3, q.stride3 = columnBase(arch, q.id3)
		q.base4, q.stride4 = columnBase(arch, q.id4)
		q.base5, q.stride5 = columnBase(arch, q.id5)
		q.index = 0
		q.currentEntity = arch.entities[0]
		return true
	}
	q.release()
	return false
}

func (q *Query5[T1, T2, T3, T4, T5]) Get() (*T1, *T2, *T3, *T4, *T5) {
	p1 := unsafe.Pointer(uintptr(q.base1) + uintptr(q.index)*q.stride1)
	p2 := unsafe.Pointer(uintptr(q.base2) + uintptr(q.index)*q.stride2)
	p3 := unsafe.Pointer(uintptr(q.base3) + uintptr(q.index)*q.stride3)
	p4 := unsafe.Pointer(uintptr(q.base4) + uintptr(q.index)*q.stride4)
	p5 := unsafe.Pointer(uintptr(q.base5) + uintptr(q.index)*q.stride5)
	return (*T1)(p1), (*T2)(p2), (*T3)(p3), (*T4)(p4), (*T5)(p5)
}

func (q *Query5[T1, T2, T3, T4, T5]) Entity() Entity {
	return q.currentEntity
}

// columnBase returns the base pointer and stride for a component column in
// arch, or (nil, stride) if the archetype currently has zero rows.
func columnBase(arch *Archetype, id ComponentID) (unsafe.Pointer, uintptr) {
	slot := arch.getSlot(id)
	if slot < 0 {
		panic("pecs: missing component in matching archetype")
	}
	if len(arch.componentData[slot]) > 0 {
		return unsafe.Pointer(&arch.componentData[slot][0]), componentSizes[id]
	}
	return nil, componentSizes[id]
}
