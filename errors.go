package pecs

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra data.
var (
	// ErrStructuralDuringIteration reports a spawn/despawn/add/
	// remove-component call attempted while a Query or Filter holds an
	// active borrow on the world. Spawn, SpawnBatch, Despawn and
	// FlushDespawns panic with it, SpawnWithStableID returns it, and the
	// component add/set/remove functions report the failure through their
	// bool result.
	ErrStructuralDuringIteration = errors.New("pecs: structural mutation attempted during active iteration")

	// ErrBorrowConflict is the value query constructors panic with when a
	// fetch list names the same component type more than once.
	ErrBorrowConflict = errors.New("pecs: query requests conflicting borrows of the same component type")

	// ErrEntityNotAlive is returned when an operation targets an Entity
	// handle that is stale or was never allocated.
	ErrEntityNotAlive = errors.New("pecs: entity is not alive")

	// ErrComponentNotRegistered is returned when an operation references a
	// component type that was never passed to RegisterComponent.
	ErrComponentNotRegistered = errors.New("pecs: component type not registered")

	// ErrUnknownStableID is returned when a persisted stable identity does
	// not resolve to any live entity.
	ErrUnknownStableID = errors.New("pecs: stable id does not resolve to a live entity")
)

// DuplicateStableIDError reports an attempt to allocate an entity with a
// StableID that is already in use, which should only be possible when
// loading corrupt or hand-edited persisted state.
type DuplicateStableIDError struct {
	Stable StableID
}

func (e *DuplicateStableIDError) Error() string {
	return fmt.Sprintf("pecs: stable id %016x%016x already allocated", e.Stable.Hi, e.Stable.Lo)
}

// SpawnHandleError reports a command buffer replay failure when a recorded
// command references a SpawnHandle that was never resolved (typically
// because the spawn command preceding it was itself skipped).
type SpawnHandleError struct {
	Handle SpawnHandle
}

func (e *SpawnHandleError) Error() string {
	return fmt.Sprintf("pecs: spawn handle %d was never resolved during apply", e.Handle.index)
}

// StaleEntityError reports a command buffer command that targeted an
// entity which was no longer alive by the time the buffer was applied.
type StaleEntityError struct {
	Entity Entity
	Op     string
}

func (e *StaleEntityError) Error() string {
	return fmt.Sprintf("pecs: command %q skipped, entity %+v no longer alive", e.Op, e.Entity)
}

// Unwrap lets errors.Is(err, ErrEntityNotAlive) match through an
// ApplyReport's skipped-command chain.
func (e *StaleEntityError) Unwrap() error { return ErrEntityNotAlive }
