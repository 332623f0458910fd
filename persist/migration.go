package persist

// migration.go implements forward-only migration chains for both the
// container format and individual component schemas. Each registry
// is a small directed graph (one edge per registered migration) searched
// breadth-first for the shortest from->to path, mirroring how little state
// a real deployment ever accumulates (a handful of format bumps, not
// hundreds), so a full shortest-path library would be overkill here.

import "fmt"

// FormatMigration upgrades an entire saved stream from one container format
// version to the next. Most deployments never need more than an identity
// chain; FormatMigration exists for the rare case the header layout itself
// changes.
type FormatMigration interface {
	FromVersion() uint32
	ToVersion() uint32
	IsLossy() bool
	Migrate(data []byte) ([]byte, error)
}

// MigrationRegistry holds registered FormatMigrations and finds the
// shortest chain between two versions.
type MigrationRegistry struct {
	edges map[uint32][]FormatMigration
}

func NewMigrationRegistry() *MigrationRegistry {
	return &MigrationRegistry{edges: make(map[uint32][]FormatMigration)}
}

// Register adds a single from->to edge. Panics on a duplicate edge, since
// an ambiguous migration graph is a configuration bug worth catching at
// startup rather than at load time.
func (r *MigrationRegistry) Register(m FormatMigration) {
	for _, existing := range r.edges[m.FromVersion()] {
		if existing.ToVersion() == m.ToVersion() {
			panic(fmt.Sprintf("persist: duplicate format migration %d->%d", m.FromVersion(), m.ToVersion()))
		}
	}
	r.edges[m.FromVersion()] = append(r.edges[m.FromVersion()], m)
}

// path returns the shortest chain of migrations from->to, breadth-first.
func (r *MigrationRegistry) path(from, to uint32) ([]FormatMigration, bool) {
	if from == to {
		return nil, true
	}
	type node struct {
		version uint32
		chain   []FormatMigration
	}
	seen := map[uint32]bool{from: true}
	queue := []node{{version: from}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, m := range r.edges[cur.version] {
			next := m.ToVersion()
			if seen[next] {
				continue
			}
			chain := append(append([]FormatMigration{}, cur.chain...), m)
			if next == to {
				return chain, true
			}
			seen[next] = true
			queue = append(queue, node{version: next, chain: chain})
		}
	}
	return nil, false
}

// apply runs a migration chain over a full section's bytes, honoring the
// lossy gate.
func (r *MigrationRegistry) apply(from, to uint32, allowLossy bool, data []byte) ([]byte, error) {
	chain, ok := r.path(from, to)
	if !ok {
		return nil, &NoMigrationPathError{Kind: "format", From: from, To: to}
	}
	for _, m := range chain {
		if m.IsLossy() && !allowLossy {
			return nil, &LossyMigrationError{Kind: "format", From: m.FromVersion(), To: m.ToVersion()}
		}
		migrated, err := m.Migrate(data)
		if err != nil {
			return nil, &MigrationFailedError{Kind: "format", From: m.FromVersion(), To: m.ToVersion(), Err: err}
		}
		data = migrated
	}
	return data, nil
}

// ComponentMigration upgrades a single component's encoded bytes from one
// PersistentVersion to the next.
type ComponentMigration interface {
	TypeName() string
	FromVersion() uint32
	ToVersion() uint32
	IsLossy() bool
	Migrate(data []byte) ([]byte, error)
}

// ComponentMigrationRegistry mirrors MigrationRegistry, scoped per component
// type name so two unrelated components can reuse the same version numbers.
type ComponentMigrationRegistry struct {
	edges map[string]map[uint32][]ComponentMigration
}

func NewComponentMigrationRegistry() *ComponentMigrationRegistry {
	return &ComponentMigrationRegistry{edges: make(map[string]map[uint32][]ComponentMigration)}
}

func (r *ComponentMigrationRegistry) Register(m ComponentMigration) {
	byVersion, ok := r.edges[m.TypeName()]
	if !ok {
		byVersion = make(map[uint32][]ComponentMigration)
		r.edges[m.TypeName()] = byVersion
	}
	for _, existing := range byVersion[m.FromVersion()] {
		if existing.ToVersion() == m.ToVersion() {
			panic(fmt.Sprintf("persist: duplicate component migration for %s: %d->%d", m.TypeName(), m.FromVersion(), m.ToVersion()))
		}
	}
	byVersion[m.FromVersion()] = append(byVersion[m.FromVersion()], m)
}

func (r *ComponentMigrationRegistry) path(typeName string, from, to uint32) ([]ComponentMigration, bool) {
	if from == to {
		return nil, true
	}
	edges := r.edges[typeName]
	type node struct {
		version uint32
		chain   []ComponentMigration
	}
	seen := map[uint32]bool{from: true}
	queue := []node{{version: from}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, m := range edges[cur.version] {
			next := m.ToVersion()
			if seen[next] {
				continue
			}
			chain := append(append([]ComponentMigration{}, cur.chain...), m)
			if next == to {
				return chain, true
			}
			seen[next] = true
			queue = append(queue, node{version: next, chain: chain})
		}
	}
	return nil, false
}

func (r *ComponentMigrationRegistry) apply(typeName string, from, to uint32, allowLossy bool, data []byte) ([]byte, error) {
	chain, ok := r.path(typeName, from, to)
	if !ok {
		return nil, &NoMigrationPathError{Kind: "component " + typeName, From: from, To: to}
	}
	for _, m := range chain {
		if m.IsLossy() && !allowLossy {
			return nil, &LossyMigrationError{Kind: "component " + typeName, From: m.FromVersion(), To: m.ToVersion()}
		}
		migrated, err := m.Migrate(data)
		if err != nil {
			return nil, &MigrationFailedError{Kind: "component " + typeName, From: m.FromVersion(), To: m.ToVersion(), Err: err}
		}
		data = migrated
	}
	return data, nil
}
