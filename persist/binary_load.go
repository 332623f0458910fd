package persist

// binary_load.go implements the load half of the codec: validate the
// header and footer checksum, resolve the type registry against this
// process's runtime registrations (unknown types are logged and their
// bytes discarded rather than aborting the whole load), spawn entities
// with their original StableIds preserved, and materialize each
// archetype's columns back onto the new World.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fenwick-systems/pecs"
)

func (p *binaryPlugin) Load(in io.Reader) (*pecs.World, error) {
	metrics := p.metrics
	logLoadStart(p.opts.logger, p.FormatName())

	h, headerBytes, err := readHeader(in)
	if err != nil {
		metrics.incLoadError()
		return nil, err
	}
	if h.Flags&flagDelta != 0 {
		metrics.incLoadError()
		return nil, &CorruptedDataError{Reason: "stream is a delta change stream, not a full snapshot; use LoadChanges"}
	}

	rest, err := io.ReadAll(in)
	if err != nil {
		metrics.incLoadError()
		return nil, fmt.Errorf("persist: reading body: %w", err)
	}
	if len(rest) < footerSize {
		metrics.incLoadError()
		return nil, &CorruptedDataError{Reason: "stream shorter than one footer"}
	}
	payload := rest[:len(rest)-footerSize]
	f, err := readFooter(bytes.NewReader(rest[len(rest)-footerSize:]))
	if err != nil {
		metrics.incLoadError()
		return nil, err
	}
	if want := uint64(headerSize) + uint64(len(rest)); f.TotalSize != want {
		metrics.incLoadError()
		return nil, &CorruptedDataError{Reason: fmt.Sprintf("footer declares %d bytes, stream carries %d", f.TotalSize, want)}
	}

	body := payload
	if h.Flags&flagCompressed != 0 {
		zr, err := newZstdReader(bytes.NewReader(payload))
		if err != nil {
			metrics.incLoadError()
			return nil, err
		}
		body, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			metrics.incLoadError()
			return nil, fmt.Errorf("persist: decompressing body: %w", err)
		}
	}

	// The checksum covers header through end-of-resources over the
	// uncompressed body, so verification happens after decompression.
	if got := payloadChecksum(headerBytes, body); got != f.Checksum {
		metrics.incChecksumFailure()
		logChecksumFailure(p.opts.logger, f.Checksum, got)
		return nil, &ChecksumMismatchError{Want: f.Checksum, Got: got}
	}

	if want := uint32(h.Major)<<16 | uint32(h.Minor); want != formatVersionKey() {
		migrated, err := p.opts.formatMigrations.apply(want, formatVersionKey(), p.opts.allowLossyMigration, body)
		if err != nil {
			metrics.incLoadError()
			return nil, err
		}
		body = migrated
		logMigrationApplied(p.opts.logger, "format", want, formatVersionKey(), false)
		metrics.incMigration()
	}

	r := bytes.NewReader(body)

	fileSchemaVersions := make(map[pecs.ComponentTypeID]uint32, h.ComponentTypeCount)
	for i := uint32(0); i < h.ComponentTypeCount; i++ {
		entry, err := readTypeEntry(r)
		if err != nil {
			metrics.incLoadError()
			return nil, fmt.Errorf("persist: reading type registry entry %d: %w", i, err)
		}
		fileSchemaVersions[entry.TypeID] = entry.SchemaVersion
		if _, ok := pecs.ComponentIDForTypeID(entry.TypeID); !ok {
			if _, ok := lookupCodec(entry.TypeID); !ok {
				logUnknownType(p.opts.logger, entry.TypeID.String(), entry.Name)
			}
		}
	}

	archEntries := make([]archetypeTableEntry, h.ArchetypeCount)
	for i := range archEntries {
		entry, err := readArchetypeEntry(r)
		if err != nil {
			metrics.incLoadError()
			return nil, fmt.Errorf("persist: reading archetype table entry %d: %w", i, err)
		}
		archEntries[i] = entry
	}

	var entityDataLen uint64
	for _, e := range archEntries {
		if end := e.Offset + e.ByteSize; end > entityDataLen {
			entityDataLen = end
		}
	}
	entityData := make([]byte, entityDataLen)
	if entityDataLen > 0 {
		if _, err := io.ReadFull(r, entityData); err != nil {
			metrics.incLoadError()
			return nil, fmt.Errorf("persist: reading entity data section: %w", err)
		}
	}

	w := pecs.NewWorld()

	for _, entry := range archEntries {
		block := entityData[entry.Offset : entry.Offset+entry.ByteSize]
		if err := loadArchetypeBlock(w, p, block, entry, fileSchemaVersions); err != nil {
			metrics.incLoadError()
			return nil, err
		}
	}

	for i := uint32(0); i < h.ResourceCount; i++ {
		typeID, dataSize, err := readComponentArrayHeader(r)
		if err != nil {
			metrics.incLoadError()
			return nil, fmt.Errorf("persist: reading resource %d: %w", i, err)
		}
		payload := make([]byte, dataSize)
		if _, err := io.ReadFull(r, payload); err != nil {
			metrics.incLoadError()
			return nil, fmt.Errorf("persist: reading resource %d payload: %w", i, err)
		}
		codec, ok := resourceCodecByTypeID(typeID)
		if !ok {
			logUnknownType(p.opts.logger, typeID.String(), "<resource>")
			continue
		}
		if fromVersion, ok := fileSchemaVersions[typeID]; ok && fromVersion != codec.schemaVersion {
			migrated, err := p.opts.componentMigrations.apply(codec.name, fromVersion, codec.schemaVersion, p.opts.allowLossyMigration, payload)
			if err != nil {
				metrics.incLoadError()
				return nil, err
			}
			payload = migrated
			metrics.incMigration()
		}
		value, err := codec.decodeNew(payload)
		if err != nil {
			metrics.incLoadError()
			return nil, err
		}
		w.Resources.Add(value)
	}

	metrics.incLoad()
	metrics.addBytesRead(int64(headerSize) + int64(len(rest)))
	logLoadDone(p.opts.logger, p.FormatName(), w.Len(), int64(headerSize)+int64(len(rest)))
	return w, nil
}

func formatVersionKey() uint32 { return uint32(formatMajor)<<16 | uint32(formatMinor) }

func loadArchetypeBlock(w *pecs.World, p *binaryPlugin, block []byte, entry archetypeTableEntry, fileSchemaVersions map[pecs.ComponentTypeID]uint32) error {
	r := bytes.NewReader(block)

	entities := make([]pecs.Entity, entry.EntityCount)
	for row := uint32(0); row < entry.EntityCount; row++ {
		stable, err := readStableID(r)
		if err != nil {
			return fmt.Errorf("persist: reading stable id for archetype %d row %d: %w", entry.ArchetypeID, row, err)
		}
		e, err := w.SpawnWithStableID(stable)
		if err != nil {
			return fmt.Errorf("persist: spawning entity for archetype %d row %d: %w", entry.ArchetypeID, row, err)
		}
		entities[row] = e
	}

	for r.Len() > 0 {
		typeID, dataSize, err := readComponentArrayHeader(r)
		if err != nil {
			return fmt.Errorf("persist: reading component array header for archetype %d: %w", entry.ArchetypeID, err)
		}
		colData := make([]byte, dataSize)
		if _, err := io.ReadFull(r, colData); err != nil {
			return fmt.Errorf("persist: reading component array for archetype %d: %w", entry.ArchetypeID, err)
		}

		codec, ok := lookupCodec(typeID)
		if !ok {
			logUnknownType(p.opts.logger, typeID.String(), "<component>")
			continue
		}

		colReader := bytes.NewReader(colData)
		for row := uint32(0); row < entry.EntityCount; row++ {
			var presence [1]byte
			if _, err := io.ReadFull(colReader, presence[:]); err != nil {
				return fmt.Errorf("persist: reading row presence for %s row %d: %w", codec.name, row, err)
			}
			if presence[0] == 0 {
				continue
			}
			var lenBuf [8]byte
			if _, err := io.ReadFull(colReader, lenBuf[:]); err != nil {
				return fmt.Errorf("persist: reading row length for %s row %d: %w", codec.name, row, err)
			}
			rowLen := binary.LittleEndian.Uint64(lenBuf[:])
			rowPayload := make([]byte, rowLen)
			if _, err := io.ReadFull(colReader, rowPayload); err != nil {
				return fmt.Errorf("persist: reading row payload for %s row %d: %w", codec.name, row, err)
			}
			if fromVersion, ok := fileSchemaVersions[typeID]; ok && fromVersion != codec.schemaVersion {
				migrated, err := p.opts.componentMigrations.apply(codec.name, fromVersion, codec.schemaVersion, p.opts.allowLossyMigration, rowPayload)
				if err != nil {
					return err
				}
				rowPayload = migrated
				p.metrics.incMigration()
			}
			if err := codec.decodeInto(w, entities[row], bytes.NewReader(rowPayload)); err != nil {
				return err
			}
		}
	}
	return nil
}
