package pecs

import "testing"

type opComp1 struct{ V int }
type opComp2 struct{ V int }
type opComp3 struct{ V int }
type opComp4 struct{ V int }
type opComp5 struct{ V int }

func init() {
	RegisterComponent[opComp1]()
	RegisterComponent[opComp2]()
	RegisterComponent[opComp3]()
	RegisterComponent[opComp4]()
	RegisterComponent[opComp5]()
}

func TestAddComponentIdempotent(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	p1, ok := AddComponent[Position](w, e)
	if !ok {
		t.Fatal("expected AddComponent to succeed")
	}
	p1.X = 9

	p2, ok := AddComponent[Position](w, e)
	if !ok {
		t.Fatal("expected second AddComponent to succeed (idempotent)")
	}
	if p2.X != 9 {
		t.Errorf("expected re-adding an existing component to preserve its value, got %v", p2.X)
	}
}

func TestAddComponentOnDeadEntity(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	w.Despawn(e)
	w.FlushDespawns()

	if _, ok := AddComponent[Position](w, e); ok {
		t.Error("expected AddComponent on a dead entity to fail")
	}
	if _, ok := GetComponent[Position](w, e); ok {
		t.Error("expected GetComponent on a dead entity to fail")
	}
	if HasComponent[Position](w, e) {
		t.Error("expected HasComponent on a dead entity to be false")
	}
}

func TestAddComponentUnregisteredType(t *testing.T) {
	type neverRegistered struct{}
	w := NewWorld()
	e := w.Spawn()
	if _, ok := AddComponent[neverRegistered](w, e); ok {
		t.Error("expected AddComponent of an unregistered type to fail, not panic")
	}
}

func TestMultiArityAddSetRemove(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()

	p1, p2, p3, p4, p5, ok := AddComponent5[opComp1, opComp2, opComp3, opComp4, opComp5](w, e)
	if !ok {
		t.Fatal("AddComponent5 failed")
	}
	*p1, *p2, *p3, *p4, *p5 = opComp1{1}, opComp2{2}, opComp3{3}, opComp4{4}, opComp5{5}

	if !SetComponent2[opComp1, opComp2](w, e, opComp1{10}, opComp2{20}) {
		t.Fatal("SetComponent2 failed")
	}
	got1, ok := GetComponent[opComp1](w, e)
	if !ok || got1.V != 10 {
		t.Errorf("expected opComp1.V=10, got %+v ok=%v", got1, ok)
	}
	got2, ok := GetComponent[opComp2](w, e)
	if !ok || got2.V != 20 {
		t.Errorf("expected opComp2.V=20, got %+v ok=%v", got2, ok)
	}
	// Untouched components from AddComponent5 should survive SetComponent2's
	// transition.
	got3, ok := GetComponent[opComp3](w, e)
	if !ok || got3.V != 3 {
		t.Errorf("expected opComp3.V=3 preserved, got %+v ok=%v", got3, ok)
	}

	if !RemoveComponent2[opComp1, opComp2](w, e) {
		t.Fatal("RemoveComponent2 failed")
	}
	if HasComponent[opComp1](w, e) || HasComponent[opComp2](w, e) {
		t.Error("expected opComp1/opComp2 removed")
	}
	if !HasComponent[opComp3](w, e) || !HasComponent[opComp4](w, e) || !HasComponent[opComp5](w, e) {
		t.Error("expected opComp3/4/5 to remain after removing 1/2")
	}
}

func TestRemoveComponentNotPresentStillSucceeds(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	// Per contract: RemoveComponent reports success as long as the entity
	// is alive and T is registered, regardless of whether T was present.
	if !RemoveComponent[Position](w, e) {
		t.Error("expected RemoveComponent to succeed even when absent")
	}
}

func TestSetComponentAddsWhenAbsent(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	if !SetComponent[Velocity](w, e, Velocity{DX: 1, DY: 2}) {
		t.Fatal("SetComponent should add the component when absent")
	}
	v, ok := GetComponent[Velocity](w, e)
	if !ok || v.DX != 1 || v.DY != 2 {
		t.Errorf("expected Velocity{1,2}, got %+v ok=%v", v, ok)
	}
}

func TestComponentAtByRow(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	p, _ := AddComponent[Position](w, e)
	p.X = 42

	loc, _ := w.alloc.locationOf(e)
	got, ok := ComponentAt[Position](loc.Archetype, loc.Row)
	if !ok || got.X != 42 {
		t.Errorf("expected ComponentAt to find Position{X:42}, got %+v ok=%v", got, ok)
	}
}
