package persist

// binary_save.go implements the save half of the codec: walk archetypes
// once to build the type registry and entity-data blocks, then assemble the
// fixed sections in order (header, type registry, archetype table, entity
// data, resources, footer). Saves are built fully in memory before being
// written out, so the header's "streaming" feature flag stays unset.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fenwick-systems/pecs"
)

type archetypeBlock struct {
	archetypeID    uint64
	entityCount    uint32
	componentTypes []pecs.ComponentTypeID
	data           []byte
}

func (p *binaryPlugin) Save(w *pecs.World, out io.Writer, filters ...Filter) error {
	filter := All(filters...)
	metrics := p.metrics
	logSaveStart(p.opts.logger, p.FormatName(), w.Len())

	blocks, typeIDsUsed, totalEntities, err := buildArchetypeBlocks(w, filter, p.opts)
	if err != nil {
		metrics.incSaveError()
		return err
	}

	var typeRegistryBuf bytes.Buffer
	typeEntries := make([]typeRegistryEntry, 0, len(typeIDsUsed))
	for typeID := range typeIDsUsed {
		codec, ok := lookupCodec(typeID)
		if !ok {
			continue
		}
		flags := uint32(0)
		if codec.sizeHint == 0 {
			flags |= typeFlagZeroSized
		}
		typeEntries = append(typeEntries, typeRegistryEntry{
			TypeID:        codec.typeID,
			Name:          codec.name,
			SchemaVersion: codec.schemaVersion,
			Flags:         flags,
			SizeHint:      codec.sizeHint,
		})
	}
	for _, e := range typeEntries {
		if err := writeTypeEntry(&typeRegistryBuf, e); err != nil {
			metrics.incSaveError()
			return err
		}
	}

	var entityDataBuf bytes.Buffer
	var archetypeTableBuf bytes.Buffer
	for _, b := range blocks {
		offset := uint64(entityDataBuf.Len())
		if err := writeArchetypeEntry(&archetypeTableBuf, archetypeTableEntry{
			ArchetypeID:    b.archetypeID,
			EntityCount:    b.entityCount,
			ComponentTypes: b.componentTypes,
			Offset:         offset,
			ByteSize:       uint64(len(b.data)),
		}); err != nil {
			metrics.incSaveError()
			return err
		}
		entityDataBuf.Write(b.data)
	}

	resourcesBuf, resourceCount, err := buildResourcesSection(w, filter, p.opts)
	if err != nil {
		metrics.incSaveError()
		return err
	}

	var body bytes.Buffer
	body.Write(typeRegistryBuf.Bytes())
	body.Write(archetypeTableBuf.Bytes())
	body.Write(entityDataBuf.Bytes())
	body.Write(resourcesBuf.Bytes())

	flags := uint32(0)
	if p.opts.compress {
		flags |= flagCompressed
	}

	h := header{
		Major:              formatMajor,
		Minor:              formatMinor,
		Flags:              flags,
		EntityCount:        totalEntities,
		ArchetypeCount:     uint32(len(blocks)),
		ComponentTypeCount: uint32(len(typeEntries)),
		ResourceCount:      uint32(resourceCount),
	}

	// The footer's checksum covers the bytes from start-of-header through
	// end-of-resources, computed over the uncompressed body so the same
	// digest verifies regardless of whether the stream was compressed on
	// the way to disk.
	var headerBuf bytes.Buffer
	if err := writeHeader(&headerBuf, h); err != nil {
		metrics.incSaveError()
		return err
	}
	bodyBytes := body.Bytes()
	sum := payloadChecksum(headerBuf.Bytes(), bodyBytes)

	if _, err := out.Write(headerBuf.Bytes()); err != nil {
		metrics.incSaveError()
		return err
	}
	cw := newCountingWriter(out)
	if p.opts.compress {
		zw, err := newZstdWriter(cw)
		if err != nil {
			metrics.incSaveError()
			return err
		}
		if _, err := zw.Write(bodyBytes); err != nil {
			zw.Close()
			metrics.incSaveError()
			return err
		}
		if err := zw.Close(); err != nil {
			metrics.incSaveError()
			return err
		}
	} else {
		if _, err := cw.Write(bodyBytes); err != nil {
			metrics.incSaveError()
			return err
		}
	}

	f := footer{
		ChecksumAlgo: checksumAlgoXXH64,
		Checksum:     sum,
		TotalSize:    uint64(headerSize) + uint64(cw.BytesWritten()) + footerSize,
	}
	if err := writeFooter(out, f); err != nil {
		metrics.incSaveError()
		return err
	}

	metrics.incSave()
	metrics.addBytesWritten(int64(headerSize) + cw.BytesWritten() + footerSize)
	logSaveDone(p.opts.logger, p.FormatName(), int64(headerSize)+cw.BytesWritten()+footerSize)
	return nil
}

// buildArchetypeBlocks walks every non-empty archetype and encodes its
// entity-data block: StableIds in row order, then one length-prefixed
// ComponentArray per column that has a registered codec and at least one
// persisted row (a column with no persisted row is omitted). Filter and
// IsPersistent are both evaluated per row, so two entities sharing an
// archetype can disagree on whether a given component gets persisted; a
// row a filter excludes is written as an absent presence byte, same as a
// row IsPersistent() rejects.
func buildArchetypeBlocks(w *pecs.World, filter Filter, opts *options) ([]archetypeBlock, map[pecs.ComponentTypeID]bool, uint64, error) {
	var blocks []archetypeBlock
	used := make(map[pecs.ComponentTypeID]bool)
	var totalEntities uint64

	for _, arch := range w.Archetypes() {
		entities := arch.Entities()
		if len(entities) == 0 {
			continue
		}

		type column struct {
			typeID pecs.ComponentTypeID
			codec  *componentCodec
		}
		var cols []column
		for _, cid := range arch.ComponentIDs() {
			typeID, ok := pecs.TypeIDForComponentID(cid)
			if !ok {
				continue
			}
			codec, ok := lookupCodec(typeID)
			if !ok {
				logSkippedComponent(opts.logger, typeID.String())
				continue
			}
			cols = append(cols, column{typeID: typeID, codec: codec})
		}

		var buf bytes.Buffer
		for _, e := range entities {
			stable, ok := w.StableID(e)
			if !ok {
				continue
			}
			if err := writeStableID(&buf, stable); err != nil {
				return nil, nil, 0, err
			}
		}

		componentTypes := make([]pecs.ComponentTypeID, 0, len(cols))
		for _, c := range cols {
			var colBuf bytes.Buffer
			anyWritten := false
			for row, e := range entities {
				payload, ok, err := c.codec.encodeRow(arch, row)
				if err != nil {
					return nil, nil, 0, err
				}
				if ok && !filter.Allow(e, c.typeID) {
					ok = false
					payload = nil
				}
				// A leading presence byte disambiguates "filtered out /
				// IsPersistent()==false" from "present, zero-byte payload"
				// (a persisted zero-sized component): row length alone
				// can't carry that distinction.
				if ok {
					colBuf.WriteByte(1)
					var lenBuf [8]byte
					binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))
					colBuf.Write(lenBuf[:])
					colBuf.Write(payload)
				} else {
					colBuf.WriteByte(0)
				}
				anyWritten = anyWritten || ok
			}
			if !anyWritten {
				continue
			}
			if err := writeComponentArrayHeader(&buf, c.typeID, uint64(colBuf.Len())); err != nil {
				return nil, nil, 0, err
			}
			buf.Write(colBuf.Bytes())
			componentTypes = append(componentTypes, c.typeID)
			used[c.typeID] = true
		}

		blocks = append(blocks, archetypeBlock{
			archetypeID:    arch.ID(),
			entityCount:    uint32(len(entities)),
			componentTypes: componentTypes,
			data:           buf.Bytes(),
		})
		totalEntities += uint64(len(entities))
	}
	return blocks, used, totalEntities, nil
}

func buildResourcesSection(w *pecs.World, filter Filter, opts *options) (*bytes.Buffer, int, error) {
	var buf bytes.Buffer
	count := 0
	for _, entry := range w.Resources.All() {
		codec, ok := resourceCodecFor(entry.Value)
		if !ok {
			logSkippedResource(opts.logger, fmt.Sprintf("%T", entry.Value))
			continue
		}
		if !filter.Allow(pecs.Entity{}, codec.typeID) {
			continue
		}
		payload, ok, err := codec.encode(entry.Value)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			continue
		}
		if err := writeComponentArrayHeader(&buf, codec.typeID, uint64(len(payload))); err != nil {
			return nil, 0, err
		}
		if _, err := buf.Write(payload); err != nil {
			return nil, 0, err
		}
		count++
	}
	return &buf, count, nil
}
