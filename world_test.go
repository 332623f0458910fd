package pecs

import "testing"

type Position struct{ X, Y float32 }
type Velocity struct{ DX, DY float32 }
type Health struct{ Cur, Max int }
type Tag struct{} // zero-sized

func init() {
	// Shared fixture types used across every _test.go file in this package.
	RegisterComponent[Position]()
	RegisterComponent[Velocity]()
	RegisterComponent[Health]()
	RegisterComponent[Tag]()
}

func TestNewWorld(t *testing.T) {
	w := NewWorld()
	if w.Len() != 0 {
		t.Errorf("expected empty world, got len %d", w.Len())
	}
	// The empty archetype always exists.
	if len(w.Archetypes()) != 1 {
		t.Errorf("expected 1 (empty) archetype, got %d", len(w.Archetypes()))
	}
}

func TestWorldSpawnDespawn(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	if !w.IsAlive(e) {
		t.Fatal("spawned entity should be alive")
	}
	if w.Len() != 1 {
		t.Errorf("expected len 1, got %d", w.Len())
	}

	if !w.Despawn(e) {
		t.Error("despawn of a live entity should return true")
	}
	// Despawn is deferred until FlushDespawns.
	if !w.IsAlive(e) {
		t.Error("entity should still be alive before FlushDespawns")
	}
	if removed := w.FlushDespawns(); removed != 1 {
		t.Errorf("expected 1 removal, got %d", removed)
	}
	if w.IsAlive(e) {
		t.Error("entity should be dead after FlushDespawns")
	}
	if w.Len() != 0 {
		t.Errorf("expected len 0, got %d", w.Len())
	}
}

// S8: despawn(spawn()) is identity on world length and archetype content.
func TestSpawnDespawnIdentity(t *testing.T) {
	w := NewWorld()
	before := w.Len()
	beforeArchCount := len(w.Archetypes())

	e := w.Spawn()
	w.Despawn(e)
	w.FlushDespawns()

	if w.Len() != before {
		t.Errorf("expected length to return to %d, got %d", before, w.Len())
	}
	if len(w.Archetypes()) != beforeArchCount {
		t.Errorf("expected archetype count to return to %d, got %d", beforeArchCount, len(w.Archetypes()))
	}
}

// S5: generation invalidation on respawn into a freed slot.
func TestGenerationInvalidationOnRespawn(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	w.Despawn(e)
	w.FlushDespawns()

	f := w.Spawn()
	if f.ID != e.ID {
		t.Errorf("expected slot reuse, got index %d vs %d", f.ID, e.ID)
	}
	if f.Version != e.Version+1 {
		t.Errorf("expected generation bump, got %d vs %d", f.Version, e.Version)
	}
	if w.IsAlive(e) {
		t.Error("stale handle must not be alive")
	}
	if !w.IsAlive(f) {
		t.Error("new handle must be alive")
	}
	// Despawn of a stale handle returns false and is a no-op.
	if w.Despawn(e) {
		t.Error("despawning a stale handle must return false")
	}
	if removed := w.FlushDespawns(); removed != 0 {
		t.Errorf("expected no removals for a stale handle, got %d", removed)
	}
	if !w.IsAlive(f) {
		t.Error("despawning a stale handle must not disturb other entities")
	}
}

func TestWorldSpawnBatch(t *testing.T) {
	w := NewWorld()
	entities := w.SpawnBatch(5)
	if len(entities) != 5 {
		t.Fatalf("expected 5 entities, got %d", len(entities))
	}
	if w.Len() != 5 {
		t.Errorf("expected world len 5, got %d", w.Len())
	}
	seen := make(map[uint32]bool)
	for _, e := range entities {
		if !w.IsAlive(e) {
			t.Errorf("entity %+v should be alive", e)
		}
		if seen[e.ID] {
			t.Errorf("duplicate entity index %d", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestWorldClear(t *testing.T) {
	w := NewWorld()
	e1 := w.Spawn()
	AddComponent[Position](w, e1)
	w.Clear()

	if w.Len() != 0 {
		t.Errorf("expected len 0 after Clear, got %d", w.Len())
	}
	if w.IsAlive(e1) {
		t.Error("old entity must not be alive after Clear")
	}
	// Clear must still leave the world usable.
	e2 := w.Spawn()
	if !w.IsAlive(e2) {
		t.Error("world should be usable after Clear")
	}
}

// S2: archetype transitions preserve previously-added component values.
func TestArchetypeTransitionPreservesComponents(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()

	pos, _ := AddComponent[Position](w, e)
	pos.X, pos.Y = 1, 2

	vel, _ := AddComponent[Velocity](w, e)
	vel.DX, vel.DY = 3, 4
	if p, ok := GetComponent[Position](w, e); !ok || p.X != 1 || p.Y != 2 {
		t.Errorf("Position lost across transition: %+v ok=%v", p, ok)
	}

	hp, _ := AddComponent[Health](w, e)
	hp.Cur, hp.Max = 7, 10
	if p, ok := GetComponent[Position](w, e); !ok || p.X != 1 || p.Y != 2 {
		t.Errorf("Position lost across second transition: %+v ok=%v", p, ok)
	}
	if v, ok := GetComponent[Velocity](w, e); !ok || v.DX != 3 || v.DY != 4 {
		t.Errorf("Velocity lost across second transition: %+v ok=%v", v, ok)
	}

	if !HasComponent[Position](w, e) || !HasComponent[Velocity](w, e) || !HasComponent[Health](w, e) {
		t.Fatal("expected entity to carry all three components")
	}

	loc, _ := w.alloc.locationOf(e)
	if loc.Archetype.Len() != 1 {
		t.Errorf("expected containing archetype to have exactly 1 row, got %d", loc.Archetype.Len())
	}
}

// S9: add then remove the same component returns the entity to its
// original archetype with other components' values intact.
func TestAddThenRemoveReturnsToOriginalArchetype(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	pos, _ := AddComponent[Position](w, e)
	pos.X, pos.Y = 5, 6
	originalLoc, _ := w.alloc.locationOf(e)
	originalArch := originalLoc.Archetype

	AddComponent[Velocity](w, e)
	if !RemoveComponent[Velocity](w, e) {
		t.Fatal("expected RemoveComponent to report success")
	}

	newLoc, _ := w.alloc.locationOf(e)
	if newLoc.Archetype != originalArch {
		t.Error("expected entity to return to its original archetype")
	}
	if p, ok := GetComponent[Position](w, e); !ok || p.X != 5 || p.Y != 6 {
		t.Errorf("Position value not preserved: %+v ok=%v", p, ok)
	}
	if HasComponent[Velocity](w, e) {
		t.Error("Velocity should have been removed")
	}
}

func TestZeroSizedComponent(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	AddComponent[Tag](w, e)
	if !HasComponent[Tag](w, e) {
		t.Error("expected Tag component to be present")
	}
	AddComponent[Position](w, e)
	if !HasComponent[Tag](w, e) || !HasComponent[Position](w, e) {
		t.Error("Tag should survive an archetype transition alongside a real component")
	}
}

func TestSwapRemoveRelocatesLastEntity(t *testing.T) {
	w := NewWorld()
	e1 := w.Spawn()
	e2 := w.Spawn()
	e3 := w.Spawn()
	AddComponent[Position](w, e1)
	p2, _ := AddComponent[Position](w, e2)
	p2.X = 22
	p3, _ := AddComponent[Position](w, e3)
	p3.X = 33

	w.Despawn(e1)
	w.FlushDespawns()

	if p, ok := GetComponent[Position](w, e2); !ok || p.X != 22 {
		t.Errorf("e2's Position corrupted by swap-remove: %+v ok=%v", p, ok)
	}
	if p, ok := GetComponent[Position](w, e3); !ok || p.X != 33 {
		t.Errorf("e3's Position corrupted by swap-remove: %+v ok=%v", p, ok)
	}
	loc2, _ := w.alloc.locationOf(e2)
	if loc2.Archetype.Entities()[loc2.Row] != e2 {
		t.Error("entity_location invariant violated after swap-remove")
	}
}

func TestStableIDRoundTripsThroughWorld(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	stable, ok := w.StableID(e)
	if !ok {
		t.Fatal("expected a stable id for a live entity")
	}
	back, ok := w.EntityByStableID(stable)
	if !ok || back != e {
		t.Errorf("expected round trip to %+v, got %+v ok=%v", e, back, ok)
	}
}

func TestWorldEntitiesIteratesAllLiveEntities(t *testing.T) {
	w := NewWorld()
	e1 := w.Spawn()
	AddComponent[Position](w, e1)
	e2 := w.Spawn()
	AddComponent[Velocity](w, e2)

	seen := map[uint32]bool{}
	for e := range w.Entities() {
		seen[e.ID] = true
	}
	if len(seen) != 2 || !seen[e1.ID] || !seen[e2.ID] {
		t.Errorf("expected both entities visited, got %+v", seen)
	}
}

func TestWorldEntitiesHoldsIterationLock(t *testing.T) {
	w := NewWorld()
	w.Spawn()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected Spawn during Entities() iteration to panic")
		}
		if err, ok := r.(error); !ok || err != ErrStructuralDuringIteration {
			t.Errorf("expected ErrStructuralDuringIteration, got %v", r)
		}
	}()
	for range w.Entities() {
		w.Spawn()
	}
}
