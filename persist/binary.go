package persist

// binary.go defines the byte-exact container format: header, type
// registry, archetype table, entity data, resources, footer. Framing is
// built directly on encoding/binary plus manual length prefixes; the
// container's shape is bespoke enough that a general framing library
// would not buy anything here.

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fenwick-systems/pecs"
)

// binaryPlugin is the primary container format: a single self-describing,
// checksummed byte stream. NewBinaryPlugin is the constructor most callers
// reach for first.
type binaryPlugin struct {
	opts    *options
	metrics metricsSink
}

// NewBinaryPlugin returns a Plugin implementing the binary format. The
// metrics sink is built once here: Prometheus collectors must be registered
// exactly once per registry, not once per Save/Load call.
func NewBinaryPlugin(opts ...Option) Plugin {
	o := applyOptions(opts)
	return &binaryPlugin{opts: o, metrics: newMetricsSink(o.registry)}
}

func (p *binaryPlugin) FormatName() string { return "pecs-binary" }

func (p *binaryPlugin) FormatVersion() (major, minor uint16) { return formatMajor, formatMinor }

// CanLoad peeks the stream's leading 4 bytes for the format magic. Callers
// doing format auto-detection across multiple plugins should share one
// bufio.Reader between CanLoad and the eventual Load call, since a plain
// io.Reader cannot be rewound after the peek.
func (p *binaryPlugin) CanLoad(in io.Reader) bool {
	br, ok := in.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(in)
	}
	prefix, err := br.Peek(4)
	if err != nil {
		return false
	}
	return prefix[0] == magicHeader[0] && prefix[1] == magicHeader[1] && prefix[2] == magicHeader[2] && prefix[3] == magicHeader[3]
}

var magicHeader = [4]byte{'P', 'E', 'C', 'S'}
var magicFooter = [4]byte{'S', 'C', 'E', 'P'}

const (
	formatMajor = 1
	formatMinor = 0

	headerSize = 64
	footerSize = 32

	flagCompressed = uint32(1) << 0
	flagBigEndian  = uint32(1) << 1
	flagStreaming  = uint32(1) << 2
	flagDelta      = uint32(1) << 3
	flagExtended   = uint32(1) << 4
)

// header is the decoded form of the 64-byte section 1.
type header struct {
	Major             uint16
	Minor             uint16
	Flags             uint32
	EntityCount       uint64
	ArchetypeCount    uint32
	ComponentTypeCount uint32
	ResourceCount     uint32
	CreatedAtMillis   uint64
}

func writeHeader(w io.Writer, h header) error {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magicHeader[:])
	binary.LittleEndian.PutUint16(buf[4:6], h.Major)
	binary.LittleEndian.PutUint16(buf[6:8], h.Minor)
	binary.LittleEndian.PutUint32(buf[8:12], h.Flags)
	binary.LittleEndian.PutUint64(buf[12:20], h.EntityCount)
	binary.LittleEndian.PutUint32(buf[20:24], h.ArchetypeCount)
	binary.LittleEndian.PutUint32(buf[24:28], h.ComponentTypeCount)
	binary.LittleEndian.PutUint32(buf[28:32], h.ResourceCount)
	binary.LittleEndian.PutUint64(buf[32:40], h.CreatedAtMillis)
	// bytes 40:64 reserved, left zero
	_, err := w.Write(buf)
	return err
}

// readHeader decodes the fixed header and also returns its raw bytes, which
// the caller needs because the footer checksum's domain starts at the
// header's first byte.
func readHeader(r io.Reader) (header, []byte, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return header{}, nil, fmt.Errorf("persist: reading header: %w", err)
	}
	if buf[0] != magicHeader[0] || buf[1] != magicHeader[1] || buf[2] != magicHeader[2] || buf[3] != magicHeader[3] {
		return header{}, nil, &CorruptedDataError{Reason: "bad header magic"}
	}
	h := header{
		Major:              binary.LittleEndian.Uint16(buf[4:6]),
		Minor:              binary.LittleEndian.Uint16(buf[6:8]),
		Flags:              binary.LittleEndian.Uint32(buf[8:12]),
		EntityCount:        binary.LittleEndian.Uint64(buf[12:20]),
		ArchetypeCount:     binary.LittleEndian.Uint32(buf[20:24]),
		ComponentTypeCount: binary.LittleEndian.Uint32(buf[24:28]),
		ResourceCount:      binary.LittleEndian.Uint32(buf[28:32]),
		CreatedAtMillis:    binary.LittleEndian.Uint64(buf[32:40]),
	}
	if h.Major > formatMajor {
		return header{}, nil, &UnsupportedVersionError{Major: h.Major, Minor: h.Minor}
	}
	return h, buf, nil
}

// footer is the decoded form of the 32-byte final section: checksum
// algorithm id, checksum, total file size, reverse magic, 8 reserved
// bytes.
type footer struct {
	ChecksumAlgo uint32
	Checksum     uint64
	TotalSize    uint64
}

func writeFooter(w io.Writer, f footer) error {
	buf := make([]byte, footerSize)
	binary.LittleEndian.PutUint32(buf[0:4], f.ChecksumAlgo)
	binary.LittleEndian.PutUint64(buf[4:12], f.Checksum)
	binary.LittleEndian.PutUint64(buf[12:20], f.TotalSize)
	copy(buf[20:24], magicFooter[:])
	// bytes 24:32 reserved, left zero
	_, err := w.Write(buf)
	return err
}

func readFooter(r io.Reader) (footer, error) {
	buf := make([]byte, footerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return footer{}, fmt.Errorf("persist: reading footer: %w", err)
	}
	if buf[20] != magicFooter[0] || buf[21] != magicFooter[1] || buf[22] != magicFooter[2] || buf[23] != magicFooter[3] {
		return footer{}, &CorruptedDataError{Reason: "bad footer magic"}
	}
	return footer{
		ChecksumAlgo: binary.LittleEndian.Uint32(buf[0:4]),
		Checksum:     binary.LittleEndian.Uint64(buf[4:12]),
		TotalSize:    binary.LittleEndian.Uint64(buf[12:20]),
	}, nil
}

// typeRegistryEntry is one row of section 2.
type typeRegistryEntry struct {
	TypeID         pecs.ComponentTypeID
	Name           string
	SchemaVersion  uint32
	Flags          uint32
	SizeHint       uint32
}

const (
	typeFlagTransient = uint32(1) << 0
	typeFlagZeroSized = uint32(1) << 1
)

func writeTypeEntry(w io.Writer, e typeRegistryEntry) error {
	if _, err := w.Write(e.TypeID[:]); err != nil {
		return err
	}
	nameBytes := []byte(e.Name)
	if len(nameBytes) > 0xFFFF {
		return fmt.Errorf("persist: type name %q too long to encode", e.Name)
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(nameBytes)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(nameBytes); err != nil {
		return err
	}
	var rest [12]byte
	binary.LittleEndian.PutUint32(rest[0:4], e.SchemaVersion)
	binary.LittleEndian.PutUint32(rest[4:8], e.Flags)
	binary.LittleEndian.PutUint32(rest[8:12], e.SizeHint)
	_, err := w.Write(rest[:])
	return err
}

func readTypeEntry(r io.Reader) (typeRegistryEntry, error) {
	var e typeRegistryEntry
	if _, err := io.ReadFull(r, e.TypeID[:]); err != nil {
		return e, err
	}
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return e, err
	}
	nameLen := binary.LittleEndian.Uint16(lenBuf[:])
	nameBytes := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBytes); err != nil {
		return e, err
	}
	e.Name = string(nameBytes)
	var rest [12]byte
	if _, err := io.ReadFull(r, rest[:]); err != nil {
		return e, err
	}
	e.SchemaVersion = binary.LittleEndian.Uint32(rest[0:4])
	e.Flags = binary.LittleEndian.Uint32(rest[4:8])
	e.SizeHint = binary.LittleEndian.Uint32(rest[8:12])
	return e, nil
}

// archetypeTableEntry is one row of section 3.
type archetypeTableEntry struct {
	ArchetypeID    uint64
	EntityCount    uint32
	ComponentTypes []pecs.ComponentTypeID
	Offset         uint64
	ByteSize       uint64
}

func writeArchetypeEntry(w io.Writer, e archetypeTableEntry) error {
	var head [16]byte
	binary.LittleEndian.PutUint64(head[0:8], e.ArchetypeID)
	binary.LittleEndian.PutUint32(head[8:12], e.EntityCount)
	binary.LittleEndian.PutUint32(head[12:16], uint32(len(e.ComponentTypes)))
	if _, err := w.Write(head[:]); err != nil {
		return err
	}
	for _, id := range e.ComponentTypes {
		if _, err := w.Write(id[:]); err != nil {
			return err
		}
	}
	var tail [16]byte
	binary.LittleEndian.PutUint64(tail[0:8], e.Offset)
	binary.LittleEndian.PutUint64(tail[8:16], e.ByteSize)
	_, err := w.Write(tail[:])
	return err
}

func readArchetypeEntry(r io.Reader) (archetypeTableEntry, error) {
	var e archetypeTableEntry
	var head [16]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return e, err
	}
	e.ArchetypeID = binary.LittleEndian.Uint64(head[0:8])
	e.EntityCount = binary.LittleEndian.Uint32(head[8:12])
	compCount := binary.LittleEndian.Uint32(head[12:16])
	e.ComponentTypes = make([]pecs.ComponentTypeID, compCount)
	for i := range e.ComponentTypes {
		if _, err := io.ReadFull(r, e.ComponentTypes[i][:]); err != nil {
			return e, err
		}
	}
	var tail [16]byte
	if _, err := io.ReadFull(r, tail[:]); err != nil {
		return e, err
	}
	e.Offset = binary.LittleEndian.Uint64(tail[0:8])
	e.ByteSize = binary.LittleEndian.Uint64(tail[8:16])
	return e, nil
}

func writeStableID(w io.Writer, id pecs.StableID) error {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], id.Hi)
	binary.LittleEndian.PutUint64(buf[8:16], id.Lo)
	_, err := w.Write(buf[:])
	return err
}

func readStableID(r io.Reader) (pecs.StableID, error) {
	var buf [16]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return pecs.StableID{}, err
	}
	return pecs.StableID{
		Hi: binary.LittleEndian.Uint64(buf[0:8]),
		Lo: binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

func writeComponentArrayHeader(w io.Writer, typeID pecs.ComponentTypeID, dataSize uint64) error {
	if _, err := w.Write(typeID[:]); err != nil {
		return err
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], dataSize)
	_, err := w.Write(buf[:])
	return err
}

func readComponentArrayHeader(r io.Reader) (pecs.ComponentTypeID, uint64, error) {
	var typeID pecs.ComponentTypeID
	if _, err := io.ReadFull(r, typeID[:]); err != nil {
		return typeID, 0, err
	}
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return typeID, 0, err
	}
	return typeID, binary.LittleEndian.Uint64(buf[:]), nil
}
