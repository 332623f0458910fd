package persist

// delta.go is the optional delta form of the codec: instead of a full
// world snapshot, a stream of per-entity Created/Modified/Deleted changes,
// each keyed by stable identity so it can be applied to a world restored in
// a different process. The container reuses the full format's header and
// checksummed footer with the delta feature flag set, so CanLoad and
// version handling keep working unchanged.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/fenwick-systems/pecs"
)

// DeltaPlugin is implemented by plugins that also speak the delta form.
// Callers obtain it by type-asserting a Plugin:
//
//	dp, ok := NewBinaryPlugin().(DeltaPlugin)
type DeltaPlugin interface {
	// SaveChanges encodes a change stream to out. Changes are written in
	// the order given; callers wanting timestamp order sort first.
	SaveChanges(changes []Change, out io.Writer) error

	// LoadChanges decodes a change stream previously written by
	// SaveChanges.
	LoadChanges(in io.Reader) ([]Change, error)

	// ApplyChanges replays a change stream against w in order. On error,
	// changes already applied remain applied; the world is never rolled
	// back, mirroring CommandBuffer.Apply's non-atomicity.
	ApplyChanges(w *pecs.World, changes []Change) error
}

func (p *binaryPlugin) SaveChanges(changes []Change, out io.Writer) error {
	var body bytes.Buffer
	for _, c := range changes {
		body.WriteByte(byte(c.Kind))
		if err := writeStableID(&body, c.Stable); err != nil {
			return err
		}
		var ts [8]byte
		binary.LittleEndian.PutUint64(ts[:], c.Timestamp)
		body.Write(ts[:])

		var count [4]byte
		binary.LittleEndian.PutUint32(count[:], uint32(len(c.Components)))
		body.Write(count[:])
		for _, snap := range c.Components {
			if err := writeComponentArrayHeader(&body, snap.TypeID, uint64(len(snap.Payload))); err != nil {
				return err
			}
			body.Write(snap.Payload)
		}

		binary.LittleEndian.PutUint32(count[:], uint32(len(c.Removed)))
		body.Write(count[:])
		for _, typeID := range c.Removed {
			if _, err := body.Write(typeID[:]); err != nil {
				return err
			}
		}
	}

	h := header{
		Major:       formatMajor,
		Minor:       formatMinor,
		Flags:       flagDelta,
		EntityCount: uint64(len(changes)),
	}
	if p.opts.compress {
		h.Flags |= flagCompressed
	}
	var headerBuf bytes.Buffer
	if err := writeHeader(&headerBuf, h); err != nil {
		return err
	}
	bodyBytes := body.Bytes()
	sum := payloadChecksum(headerBuf.Bytes(), bodyBytes)

	if _, err := out.Write(headerBuf.Bytes()); err != nil {
		return err
	}
	cw := newCountingWriter(out)
	if p.opts.compress {
		zw, err := newZstdWriter(cw)
		if err != nil {
			return err
		}
		if _, err := zw.Write(bodyBytes); err != nil {
			zw.Close()
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
	} else {
		if _, err := cw.Write(bodyBytes); err != nil {
			return err
		}
	}

	return writeFooter(out, footer{
		ChecksumAlgo: checksumAlgoXXH64,
		Checksum:     sum,
		TotalSize:    uint64(headerSize) + uint64(cw.BytesWritten()) + footerSize,
	})
}

func (p *binaryPlugin) LoadChanges(in io.Reader) ([]Change, error) {
	h, headerBytes, err := readHeader(in)
	if err != nil {
		return nil, err
	}
	if h.Flags&flagDelta == 0 {
		return nil, &CorruptedDataError{Reason: "stream is a full snapshot, not a delta"}
	}

	rest, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("persist: reading delta body: %w", err)
	}
	if len(rest) < footerSize {
		return nil, &CorruptedDataError{Reason: "delta stream shorter than one footer"}
	}
	payload := rest[:len(rest)-footerSize]
	f, err := readFooter(bytes.NewReader(rest[len(rest)-footerSize:]))
	if err != nil {
		return nil, err
	}

	body := payload
	if h.Flags&flagCompressed != 0 {
		zr, err := newZstdReader(bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		body, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("persist: decompressing delta body: %w", err)
		}
	}
	if got := payloadChecksum(headerBytes, body); got != f.Checksum {
		return nil, &ChecksumMismatchError{Want: f.Checksum, Got: got}
	}

	r := bytes.NewReader(body)
	changes := make([]Change, 0, h.EntityCount)
	for i := uint64(0); i < h.EntityCount; i++ {
		var c Change
		kind, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("persist: reading change %d kind: %w", i, err)
		}
		c.Kind = ChangeKind(kind)
		if c.Stable, err = readStableID(r); err != nil {
			return nil, fmt.Errorf("persist: reading change %d stable id: %w", i, err)
		}
		var ts [8]byte
		if _, err := io.ReadFull(r, ts[:]); err != nil {
			return nil, fmt.Errorf("persist: reading change %d timestamp: %w", i, err)
		}
		c.Timestamp = binary.LittleEndian.Uint64(ts[:])

		var count [4]byte
		if _, err := io.ReadFull(r, count[:]); err != nil {
			return nil, fmt.Errorf("persist: reading change %d component count: %w", i, err)
		}
		compCount := binary.LittleEndian.Uint32(count[:])
		for j := uint32(0); j < compCount; j++ {
			typeID, size, err := readComponentArrayHeader(r)
			if err != nil {
				return nil, fmt.Errorf("persist: reading change %d component %d: %w", i, j, err)
			}
			data := make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, fmt.Errorf("persist: reading change %d component %d payload: %w", i, j, err)
			}
			c.Components = append(c.Components, ComponentSnapshot{TypeID: typeID, Payload: data})
		}

		if _, err := io.ReadFull(r, count[:]); err != nil {
			return nil, fmt.Errorf("persist: reading change %d removed count: %w", i, err)
		}
		removedCount := binary.LittleEndian.Uint32(count[:])
		for j := uint32(0); j < removedCount; j++ {
			var typeID pecs.ComponentTypeID
			if _, err := io.ReadFull(r, typeID[:]); err != nil {
				return nil, fmt.Errorf("persist: reading change %d removed type %d: %w", i, j, err)
			}
			c.Removed = append(c.Removed, typeID)
		}
		changes = append(changes, c)
	}
	return changes, nil
}

func (p *binaryPlugin) ApplyChanges(w *pecs.World, changes []Change) error {
	defer w.FlushDespawns()
	for i, c := range changes {
		switch c.Kind {
		case ChangeCreated:
			e, err := w.SpawnWithStableID(c.Stable)
			if err != nil {
				return fmt.Errorf("persist: applying change %d: %w", i, err)
			}
			if err := applySnapshots(w, e, c.Components, p.opts); err != nil {
				return fmt.Errorf("persist: applying change %d: %w", i, err)
			}

		case ChangeModified:
			e, ok := w.EntityByStableID(c.Stable)
			if !ok {
				return fmt.Errorf("persist: applying change %d to %016x%016x: %w", i, c.Stable.Hi, c.Stable.Lo, pecs.ErrUnknownStableID)
			}
			if err := applySnapshots(w, e, c.Components, p.opts); err != nil {
				return fmt.Errorf("persist: applying change %d: %w", i, err)
			}
			for _, typeID := range c.Removed {
				codec, ok := lookupCodec(typeID)
				if !ok {
					logUnknownType(p.opts.logger, typeID.String(), "<component>")
					continue
				}
				codec.removeFrom(w, e)
			}

		case ChangeDeleted:
			e, ok := w.EntityByStableID(c.Stable)
			if !ok {
				return fmt.Errorf("persist: applying change %d to %016x%016x: %w", i, c.Stable.Hi, c.Stable.Lo, pecs.ErrUnknownStableID)
			}
			w.Despawn(e)

		default:
			return &CorruptedDataError{Reason: fmt.Sprintf("change %d has unknown kind %d", i, c.Kind)}
		}
	}
	return nil
}

func applySnapshots(w *pecs.World, e pecs.Entity, snaps []ComponentSnapshot, opts *options) error {
	for _, snap := range snaps {
		codec, ok := lookupCodec(snap.TypeID)
		if !ok {
			logUnknownType(opts.logger, snap.TypeID.String(), "<component>")
			continue
		}
		if err := codec.decodeInto(w, e, bytes.NewReader(snap.Payload)); err != nil {
			return err
		}
	}
	return nil
}

// CaptureCreated snapshots a live entity into a Created change carrying
// every codec-registered, currently-persistent component it holds, in
// deterministic type-id order. Hosts building incremental saves use this
// for newly spawned entities and assemble Modified/Deleted changes from
// their own dirty tracking.
func CaptureCreated(w *pecs.World, e pecs.Entity, timestamp uint64) (Change, error) {
	stable, ok := w.StableID(e)
	if !ok {
		return Change{}, fmt.Errorf("persist: capturing entity %+v: %w", e, pecs.ErrEntityNotAlive)
	}
	c := Change{Kind: ChangeCreated, Entity: e, Stable: stable, Timestamp: timestamp}
	for _, codec := range codecsByTypeID {
		payload, persist, err := codec.encodeValue(w, e)
		if err != nil {
			return Change{}, err
		}
		if !persist {
			continue
		}
		c.Components = append(c.Components, ComponentSnapshot{TypeID: codec.typeID, Payload: payload})
	}
	sort.Slice(c.Components, func(i, j int) bool {
		return bytes.Compare(c.Components[i].TypeID[:], c.Components[j].TypeID[:]) < 0
	})
	return c, nil
}
