package persist

// json.go is the textual alternative to the binary format: a semantically
// equivalent plugin (no attempt at a byte-exact JSON layout), reusing the
// same componentCodec/resourceCodec registries so a
// type registered once with Register/RegisterResource works with either
// plugin. Useful for diffing saves in review or debugging a migration by
// hand.

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fenwick-systems/pecs"
)

const jsonMagic = "pecs-json-v1"

type jsonDocument struct {
	Magic       string          `json:"magic"`
	Major       uint16          `json:"major"`
	Minor       uint16          `json:"minor"`
	Archetypes  []jsonArchetype `json:"archetypes"`
	Resources   []jsonComponent `json:"resources"`
}

type jsonArchetype struct {
	ArchetypeID uint64       `json:"archetype_id"`
	Entities    []jsonEntity `json:"entities"`
}

type jsonEntity struct {
	StableHi   uint64          `json:"stable_hi"`
	StableLo   uint64          `json:"stable_lo"`
	Components []jsonComponent `json:"components"`
}

type jsonComponent struct {
	TypeID        string `json:"type_id"`
	SchemaVersion uint32 `json:"schema_version"`
	Data          []byte `json:"data"`
}

type jsonPlugin struct {
	opts    *options
	metrics metricsSink
}

// NewJSONPlugin returns a Plugin implementing the textual format. As with
// NewBinaryPlugin, the metrics sink is built once per plugin so Prometheus
// collectors register exactly once per registry.
func NewJSONPlugin(opts ...Option) Plugin {
	o := applyOptions(opts)
	return &jsonPlugin{opts: o, metrics: newMetricsSink(o.registry)}
}

func (p *jsonPlugin) FormatName() string { return "pecs-json" }

func (p *jsonPlugin) FormatVersion() (major, minor uint16) { return formatMajor, formatMinor }

// CanLoad looks for the magic marker within the stream's leading bytes
// without requiring a complete, parseable JSON document, since a truncated
// Peek is rarely valid JSON on its own. Shares the same rewind caveat as
// binaryPlugin.CanLoad: pass a bufio.Reader shared with the later Load call.
func (p *jsonPlugin) CanLoad(in io.Reader) bool {
	br, ok := in.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(in)
	}
	prefix, _ := br.Peek(128)
	return bytes.Contains(prefix, []byte(`"magic":"`+jsonMagic+`"`))
}

func (p *jsonPlugin) Save(w *pecs.World, out io.Writer, filters ...Filter) error {
	filter := All(filters...)
	metrics := p.metrics
	logSaveStart(p.opts.logger, p.FormatName(), w.Len())

	doc := jsonDocument{Magic: jsonMagic, Major: formatMajor, Minor: formatMinor}

	for _, arch := range w.Archetypes() {
		entities := arch.Entities()
		if len(entities) == 0 {
			continue
		}
		jsonArch := jsonArchetype{ArchetypeID: arch.ID(), Entities: make([]jsonEntity, 0, len(entities))}
		for row, e := range entities {
			stable, ok := w.StableID(e)
			if !ok {
				continue
			}
			je := jsonEntity{StableHi: stable.Hi, StableLo: stable.Lo}
			for _, cid := range arch.ComponentIDs() {
				typeID, ok := pecs.TypeIDForComponentID(cid)
				if !ok {
					continue
				}
				codec, ok := lookupCodec(typeID)
				if !ok {
					continue
				}
				if !filter.Allow(e, typeID) {
					continue
				}
				payload, ok, err := codec.encodeRow(arch, row)
				if err != nil {
					metrics.incSaveError()
					return err
				}
				if !ok {
					continue
				}
				je.Components = append(je.Components, jsonComponent{
					TypeID:        typeID.String(),
					SchemaVersion: codec.schemaVersion,
					Data:          payload,
				})
			}
			jsonArch.Entities = append(jsonArch.Entities, je)
		}
		doc.Archetypes = append(doc.Archetypes, jsonArch)
	}

	for _, entry := range w.Resources.All() {
		codec, ok := resourceCodecFor(entry.Value)
		if !ok {
			continue
		}
		if !filter.Allow(pecs.Entity{}, codec.typeID) {
			continue
		}
		payload, ok, err := codec.encode(entry.Value)
		if err != nil {
			metrics.incSaveError()
			return err
		}
		if !ok {
			continue
		}
		doc.Resources = append(doc.Resources, jsonComponent{
			TypeID:        codec.typeID.String(),
			SchemaVersion: codec.schemaVersion,
			Data:          payload,
		})
	}

	enc := json.NewEncoder(out)
	if err := enc.Encode(doc); err != nil {
		metrics.incSaveError()
		return err
	}
	metrics.incSave()
	logSaveDone(p.opts.logger, p.FormatName(), -1)
	return nil
}

func (p *jsonPlugin) Load(in io.Reader) (*pecs.World, error) {
	metrics := p.metrics
	logLoadStart(p.opts.logger, p.FormatName())

	var doc jsonDocument
	if err := json.NewDecoder(in).Decode(&doc); err != nil {
		metrics.incLoadError()
		return nil, fmt.Errorf("persist: decoding json document: %w", err)
	}
	if doc.Magic != jsonMagic {
		metrics.incLoadError()
		return nil, &CorruptedDataError{Reason: "missing pecs-json magic"}
	}

	w := pecs.NewWorld()

	for _, arch := range doc.Archetypes {
		for _, je := range arch.Entities {
			e, err := w.SpawnWithStableID(pecs.StableID{Hi: je.StableHi, Lo: je.StableLo})
			if err != nil {
				metrics.incLoadError()
				return nil, fmt.Errorf("persist: spawning entity in archetype %d: %w", arch.ArchetypeID, err)
			}
			for _, jc := range je.Components {
				typeID, err := parseTypeIDHex(jc.TypeID)
				if err != nil {
					metrics.incLoadError()
					return nil, err
				}
				codec, ok := lookupCodec(typeID)
				if !ok {
					logUnknownType(p.opts.logger, jc.TypeID, "<component>")
					continue
				}
				payload := jc.Data
				if jc.SchemaVersion != codec.schemaVersion {
					migrated, err := p.opts.componentMigrations.apply(codec.name, jc.SchemaVersion, codec.schemaVersion, p.opts.allowLossyMigration, payload)
					if err != nil {
						metrics.incLoadError()
						return nil, err
					}
					payload = migrated
					metrics.incMigration()
				}
				if err := codec.decodeInto(w, e, bytes.NewReader(payload)); err != nil {
					metrics.incLoadError()
					return nil, err
				}
			}
		}
	}

	for _, jr := range doc.Resources {
		typeID, err := parseTypeIDHex(jr.TypeID)
		if err != nil {
			metrics.incLoadError()
			return nil, err
		}
		codec, ok := resourceCodecByTypeID(typeID)
		if !ok {
			logUnknownType(p.opts.logger, jr.TypeID, "<resource>")
			continue
		}
		payload := jr.Data
		if jr.SchemaVersion != codec.schemaVersion {
			migrated, err := p.opts.componentMigrations.apply(codec.name, jr.SchemaVersion, codec.schemaVersion, p.opts.allowLossyMigration, payload)
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
	logLoadDone(p.opts.logger, p.FormatName(), w.Len(), -1)
	return w, nil
}

func parseTypeIDHex(s string) (pecs.ComponentTypeID, error) {
	var id pecs.ComponentTypeID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, &CorruptedDataError{Reason: fmt.Sprintf("bad type id %q", s)}
	}
	copy(id[:], b)
	return id, nil
}
