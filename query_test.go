package pecs

import "testing"

func TestQuery1BasicIteration(t *testing.T) {
	w := NewWorld()
	e1 := w.Spawn()
	p1, _ := AddComponent[Position](w, e1)
	p1.X = 1
	e2 := w.Spawn()
	p2, _ := AddComponent[Position](w, e2)
	p2.X = 2
	// A Velocity-only entity must not match a Position query.
	e3 := w.Spawn()
	AddComponent[Velocity](w, e3)

	q := NewQuery1[Position](w)
	seen := map[uint32]float32{}
	for q.Next() {
		pos := q.Get()
		seen[q.Entity().ID] = pos.X
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(seen))
	}
	if seen[e1.ID] != 1 || seen[e2.ID] != 2 {
		t.Errorf("unexpected values: %+v", seen)
	}
}

func TestQueryEmptyWorldYieldsNothing(t *testing.T) {
	w := NewWorld()
	q := NewQuery1[Position](w)
	if q.Next() {
		t.Error("expected no matches on an empty world")
	}
}

func TestQueryNoMatchingArchetype(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	AddComponent[Velocity](w, e)

	q := NewQuery1[Position](w)
	if q.Next() {
		t.Error("expected zero items when no archetype carries the required component")
	}
}

func TestQueryWithExclude(t *testing.T) {
	w := NewWorld()
	e1 := w.Spawn()
	AddComponent[Position](w, e1)

	e2 := w.Spawn()
	AddComponent2[Position, Velocity](w, e2)

	velID := GetID[Velocity]()
	q := NewQuery1[Position](w, velID)
	count := 0
	var got Entity
	for q.Next() {
		count++
		got = q.Entity()
	}
	if count != 1 || got != e1 {
		t.Errorf("expected only e1 to match (excluding Velocity), got count=%d got=%+v", count, got)
	}
}

func TestQueryMutationVisibleAfterIteration(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	p, _ := AddComponent[Position](w, e)
	p.X = 1

	q := NewQuery1[Position](w)
	for q.Next() {
		q.Get().X = 100
	}

	got, _ := GetComponent[Position](w, e)
	if got.X != 100 {
		t.Errorf("expected mutation through query to stick, got %v", got.X)
	}
}

func TestQuery2TwoComponents(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	AddComponent2[Position, Velocity](w, e)

	q := NewQuery2[Position, Velocity](w)
	if !q.Next() {
		t.Fatal("expected one match")
	}
	pos, vel := q.Get()
	pos.X, pos.Y = 1, 2
	vel.DX, vel.DY = 3, 4
	if q.Next() {
		t.Error("expected exactly one match")
	}

	gp, _ := GetComponent[Position](w, e)
	gv, _ := GetComponent[Velocity](w, e)
	if gp.X != 1 || gp.Y != 2 || gv.DX != 3 || gv.DY != 4 {
		t.Errorf("unexpected values: pos=%+v vel=%+v", gp, gv)
	}
}

// Structural mutation is disallowed while a query iterator is
// alive, and must resume once the iterator has been exhausted or reset.
func TestStructuralMutationDuringIterationPanics(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	AddComponent[Position](w, e)

	q := NewQuery1[Position](w)
	if !q.Next() {
		t.Fatal("expected a match to begin iterating")
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected Spawn during active iteration to panic")
		}
		if err, ok := r.(error); !ok || err != ErrStructuralDuringIteration {
			t.Errorf("expected ErrStructuralDuringIteration, got %v", r)
		}
	}()
	w.Spawn()
}

func TestStructuralMutationAllowedAfterIterationEnds(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	AddComponent[Position](w, e)

	q := NewQuery1[Position](w)
	for q.Next() {
		// drain
	}
	// Iterator exhausted; the world's iteration lock should be released.
	w.Spawn()
}

func TestOptionalFetchAbsentComponent(t *testing.T) {
	w := NewWorld()
	e1 := w.Spawn()
	AddComponent[Position](w, e1)

	e2 := w.Spawn()
	AddComponent2[Position, Health](w, e2)
	hp, _ := GetComponent[Health](w, e2)
	hp.Cur = 7

	q := NewQuery1Opt1[Position, Health](w)
	results := map[uint32]bool{}
	for q.Next() {
		_, opt := q.Get()
		results[q.Entity().ID] = opt.Present
	}
	if results[e1.ID] {
		t.Error("expected e1's optional Health to be absent")
	}
	if !results[e2.ID] {
		t.Error("expected e2's optional Health to be present")
	}
}

func TestOptionalFetchDoesNotAffectMatching(t *testing.T) {
	w := NewWorld()
	// Optional<Health> must not narrow the required set.
	e := w.Spawn()
	AddComponent[Position](w, e)

	q := NewQuery1Opt1[Position, Health](w)
	if !q.Next() {
		t.Fatal("expected Position-only entity to match a query with an optional Health fetch")
	}
}

func TestDuplicateFetchTypeRejected(t *testing.T) {
	w := NewWorld()
	defer func() {
		if r := recover(); r != ErrBorrowConflict {
			t.Errorf("expected ErrBorrowConflict panic, got %v", r)
		}
	}()
	NewQuery2[Position, Position](w)
}

type neverRegistered struct{ N int }

func TestOptionalUnregisteredTypeAlwaysAbsent(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	SetComponent(w, e, Position{X: 1})

	q := NewQuery1Opt1[Position, neverRegistered](w)
	if !q.Next() {
		t.Fatal("expected the entity to match on its required component")
	}
	_, opt := q.Get()
	if opt.Present {
		t.Error("expected an unregistered optional type to always read as absent")
	}
}
