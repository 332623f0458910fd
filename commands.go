package pecs

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"sync/atomic"
)

// SpawnHandle is an opaque forward reference to an entity a CommandBuffer
// will spawn when Apply runs. A command recorded earlier in the same
// buffer can target a SpawnHandle before the entity it names actually
// exists, since the buffer reserves the handle's StableID immediately at
// record time; the ephemeral slot is allocated only at apply time.
type SpawnHandle struct {
	index int
}

// Target identifies the entity a recorded command applies to: either an
// already-live Entity, or a SpawnHandle recorded earlier in the same
// buffer.
type Target struct {
	entity   Entity
	handle   SpawnHandle
	isHandle bool
}

// ForEntity builds a Target naming an already-live entity.
func ForEntity(e Entity) Target { return Target{entity: e} }

// ForHandle builds a Target naming a SpawnHandle recorded earlier in the
// same buffer.
func ForHandle(h SpawnHandle) Target { return Target{handle: h, isHandle: true} }

func (t Target) String() string {
	if t.isHandle {
		return fmt.Sprintf("handle#%d", t.handle.index)
	}
	return fmt.Sprintf("entity{%d,%d}", t.entity.ID, t.entity.Version)
}

type commandKind uint8

const (
	cmdSpawn commandKind = iota
	cmdDespawn
	cmdInsert
	cmdRemove
)

func (k commandKind) String() string {
	switch k {
	case cmdSpawn:
		return "spawn"
	case cmdDespawn:
		return "despawn"
	case cmdInsert:
		return "insert"
	case cmdRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// command is one entry in a CommandBuffer's append-only log. Insert/Remove
// carry their type-erased work as a closure captured at record time by the
// generic Insert/Remove functions below; a closure is the cheapest
// type-erased payload box Go offers for this shape.
type command struct {
	kind   commandKind
	target Target
	run    func(w *World, e Entity) error
}

// CommandBuffer lets host code, possibly on a worker goroutine, record
// structural and component-level mutations for later, deterministic
// application against a World, without ever touching the world itself
// while recording. Recording appends to the buffer's own slices and
// nothing else, so any number of goroutines can each fill their own
// buffer in parallel and hand them to the writer goroutine to apply.
type CommandBuffer struct {
	commands []command
	spawns   []StableID

	seedHi  uint64
	counter uint64
}

var cmdBufferFallbackSeed uint64

// NewCommandBuffer creates an empty, independently owned buffer. Buffers
// are movable between goroutines; recording touches only the buffer.
func NewCommandBuffer() *CommandBuffer {
	var seed [8]byte
	if _, err := rand.Read(seed[:]); err != nil {
		binary.LittleEndian.PutUint64(seed[:], atomic.AddUint64(&cmdBufferFallbackSeed, 1))
	}
	return &CommandBuffer{
		seedHi: binary.LittleEndian.Uint64(seed[:]),
	}
}

// Len returns the number of recorded commands.
func (cb *CommandBuffer) Len() int { return len(cb.commands) }

// Reset discards every recorded command and spawn reservation, allowing the
// buffer to be reused without reallocating its backing slices.
func (cb *CommandBuffer) Reset() {
	cb.commands = cb.commands[:0]
	cb.spawns = cb.spawns[:0]
}

// Spawn reserves a stable identity for a not-yet-created entity and
// returns an opaque handle that subsequent Insert/Remove/Despawn calls in
// this buffer may target before the entity exists. The reservation is
// pure bookkeeping: no entity is allocated on any World until Apply runs.
func (cb *CommandBuffer) Spawn() SpawnHandle {
	cb.counter++
	stable := StableID{Hi: cb.seedHi, Lo: cb.counter}
	idx := len(cb.spawns)
	cb.spawns = append(cb.spawns, stable)
	h := SpawnHandle{index: idx}
	cb.commands = append(cb.commands, command{kind: cmdSpawn, target: ForHandle(h)})
	return h
}

// Despawn records a deferred despawn of target.
func (cb *CommandBuffer) Despawn(target Target) {
	cb.commands = append(cb.commands, command{kind: cmdDespawn, target: target})
}

// Insert records a deferred insertion of a component value on target. The
// value is copied into the closure at record time, so later mutation of
// the caller's variable does not change what Apply writes.
func Insert[T any](cb *CommandBuffer, target Target, value T) {
	cb.commands = append(cb.commands, command{
		kind:   cmdInsert,
		target: target,
		run: func(w *World, e Entity) error {
			if !SetComponent(w, e, value) {
				return ErrComponentNotRegistered
			}
			return nil
		},
	})
}

// Remove records a deferred removal of component type T from target.
func Remove[T any](cb *CommandBuffer, target Target) {
	cb.commands = append(cb.commands, command{
		kind:   cmdRemove,
		target: target,
		run: func(w *World, e Entity) error {
			if !RemoveComponent[T](w, e) {
				return ErrComponentNotRegistered
			}
			return nil
		},
	})
}

// Merge appends other's commands after cb's, renumbering other's spawn
// handles so they keep referring to the same reserved StableIDs once
// concatenated.
func (cb *CommandBuffer) Merge(other *CommandBuffer) {
	offset := len(cb.spawns)
	cb.spawns = append(cb.spawns, other.spawns...)
	for _, c := range other.commands {
		if c.target.isHandle {
			c.target.handle.index += offset
		}
		cb.commands = append(cb.commands, c)
	}
}

// SkippedCommand reports one command that Apply could not execute.
type SkippedCommand struct {
	Index int
	Kind  string
	Err   error
}

// ApplyReport is returned as Apply's error whenever one or more commands
// were skipped; its Unwrap exposes the first skipped command's error. A non-nil ApplyReport
// never means the whole buffer failed: the apply loop is not atomic, and
// earlier commands remain applied.
type ApplyReport struct {
	Skipped []SkippedCommand
}

func (r *ApplyReport) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pecs: %d command(s) skipped during apply", len(r.Skipped))
	for _, s := range r.Skipped {
		fmt.Fprintf(&b, "; #%d (%s): %v", s.Index, s.Kind, s.Err)
	}
	return b.String()
}

// Unwrap exposes the first skipped command's error for errors.Is/As chains.
func (r *ApplyReport) Unwrap() error {
	if len(r.Skipped) == 0 {
		return nil
	}
	return r.Skipped[0].Err
}

// Apply replays every recorded command against w in recorded order.
// Spawn-handle targets are resolved to the entity created by that buffer's
// own earlier Spawn call. A command whose target cannot be resolved (a
// stale entity, or a spawn that failed to apply) is skipped and recorded
// in the returned ApplyReport rather than aborting the whole buffer.
func (cb *CommandBuffer) Apply(w *World) (applied int, err error) {
	resolved := make([]Entity, len(cb.spawns))
	resolvedOK := make([]bool, len(cb.spawns))
	// Entities despawned by an earlier command in this buffer. World
	// removal is deferred to the FlushDespawns below, so IsAlive alone
	// would still say true; without this set a later command in the same
	// buffer could target an entity the buffer itself already despawned.
	despawned := make(map[Entity]bool)
	var report ApplyReport

	resolve := func(t Target, op string) (Entity, error) {
		var e Entity
		if !t.isHandle {
			if !w.IsAlive(t.entity) {
				return Entity{}, &StaleEntityError{Entity: t.entity, Op: op}
			}
			e = t.entity
		} else {
			if t.handle.index < 0 || t.handle.index >= len(resolved) || !resolvedOK[t.handle.index] {
				return Entity{}, &SpawnHandleError{Handle: t.handle}
			}
			e = resolved[t.handle.index]
		}
		if despawned[e] {
			return Entity{}, &StaleEntityError{Entity: e, Op: op}
		}
		return e, nil
	}

	for i, c := range cb.commands {
		switch c.kind {
		case cmdSpawn:
			stable := cb.spawns[c.target.handle.index]
			e, spawnErr := w.spawnWithStable(stable)
			if spawnErr != nil {
				report.Skipped = append(report.Skipped, SkippedCommand{Index: i, Kind: c.kind.String(), Err: spawnErr})
				continue
			}
			resolved[c.target.handle.index] = e
			resolvedOK[c.target.handle.index] = true
			applied++

		case cmdDespawn:
			e, resolveErr := resolve(c.target, "despawn")
			if resolveErr != nil {
				report.Skipped = append(report.Skipped, SkippedCommand{Index: i, Kind: c.kind.String(), Err: resolveErr})
				continue
			}
			if !w.Despawn(e) {
				report.Skipped = append(report.Skipped, SkippedCommand{Index: i, Kind: c.kind.String(), Err: &StaleEntityError{Entity: e, Op: "despawn"}})
				continue
			}
			despawned[e] = true
			applied++

		default: // cmdInsert, cmdRemove
			e, resolveErr := resolve(c.target, c.kind.String())
			if resolveErr != nil {
				report.Skipped = append(report.Skipped, SkippedCommand{Index: i, Kind: c.kind.String(), Err: resolveErr})
				continue
			}
			if runErr := c.run(w, e); runErr != nil {
				report.Skipped = append(report.Skipped, SkippedCommand{Index: i, Kind: c.kind.String(), Err: runErr})
				continue
			}
			applied++
		}
	}

	w.FlushDespawns()

	if len(report.Skipped) > 0 {
		return applied, &report
	}
	return applied, nil
}
