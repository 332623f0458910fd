package pecs

// Predicate is a node in an archetype filter expression tree: With/Without
// leaves test one component, And/Or/Not combine sub-predicates. An
// expression tree supports query forms more expressive than a single
// include/exclude mask pair.
type Predicate interface {
	matches(mask mask256) bool
}

type withPredicate struct{ id ComponentID }

func (p withPredicate) matches(mask mask256) bool { return mask.has(p.id) }

type withoutPredicate struct{ id ComponentID }

func (p withoutPredicate) matches(mask mask256) bool { return !mask.has(p.id) }

type andPredicate struct{ terms []Predicate }

func (p andPredicate) matches(mask mask256) bool {
	for _, t := range p.terms {
		if !t.matches(mask) {
			return false
		}
	}
	return true
}

type orPredicate struct{ terms []Predicate }

func (p orPredicate) matches(mask mask256) bool {
	for _, t := range p.terms {
		if t.matches(mask) {
			return true
		}
	}
	return false
}

type notPredicate struct{ term Predicate }

func (p notPredicate) matches(mask mask256) bool { return !p.term.matches(mask) }

// With builds a predicate requiring component T to be present.
func With[T any]() Predicate {
	id, _ := TryGetID[T]()
	return withPredicate{id: id}
}

// Without builds a predicate requiring component T to be absent.
func Without[T any]() Predicate {
	id, _ := TryGetID[T]()
	return withoutPredicate{id: id}
}

// And combines predicates, matching only if all of them match.
func And(terms ...Predicate) Predicate { return andPredicate{terms: terms} }

// Or combines predicates, matching if any of them match.
func Or(terms ...Predicate) Predicate { return orPredicate{terms: terms} }

// Not negates a predicate.
func Not(term Predicate) Predicate { return notPredicate{term: term} }

// Filter is a cached, predicate-driven iterator over every entity whose
// archetype satisfies an arbitrary Predicate expression. The
// matching-archetype list is rebuilt lazily, invalidated by comparing
// against World.version whenever the archetype set has grown.
type Filter struct {
	world          *World
	pred           Predicate
	matchingArches []*Archetype
	lastVersion    uint32
	curMatchIdx    int
	curIdx         int
	curEnt         Entity
	locked         bool
}

// NewFilter creates a Filter evaluating pred against every archetype.
func NewFilter(w *World, pred Predicate) *Filter {
	f := &Filter{world: w, pred: pred, curMatchIdx: 0, curIdx: -1, matchingArches: make([]*Archetype, 0, 4)}
	f.updateMatching()
	return f
}

func (f *Filter) updateMatching() {
	f.matchingArches = f.matchingArches[:0]
	for _, a := range f.world.archetypesList {
		if f.pred.matches(a.mask) {
			f.matchingArches = append(f.matchingArches, a)
		}
	}
	f.lastVersion = f.world.version
}

func (f *Filter) acquire() {
	if !f.locked {
		f.world.beginIteration()
		f.locked = true
	}
}

func (f *Filter) release() {
	if f.locked {
		f.world.endIteration()
		f.locked = false
	}
}

// Reset rewinds the filter, refreshing its matching-archetype cache if the
// world's archetype set has changed since it was last built.
func (f *Filter) Reset() {
	f.release()
	if f.world.version != f.lastVersion {
		f.updateMatching()
	}
	f.curMatchIdx = 0
	f.curIdx = -1
}

// Next advances to the next matching entity.
func (f *Filter) Next() bool {
	f.acquire()
	for {
		f.curIdx++
		if f.curMatchIdx >= len(f.matchingArches) {
			f.release()
			return false
		}
		a := f.matchingArches[f.curMatchIdx]
		if f.curIdx >= len(a.entities) {
			f.curMatchIdx++
			f.curIdx = -1
			continue
		}
		f.curEnt = a.entities[f.curIdx]
		return true
	}
}

// Entity returns the current entity.
func (f *Filter) Entity() Entity {
	return f.curEnt
}

// Count returns the total number of entities currently matched, without
// advancing the iterator.
func (f *Filter) Count() int {
	if f.world.version != f.lastVersion {
		f.updateMatching()
	}
	n := 0
	for _, a := range f.matchingArches {
		n += len(a.entities)
	}
	return n
}
