package persist

// options.go holds a private config struct filled in by defaultOptions()
// and mutated only through exported functional options, so the struct
// itself never needs to be public and new knobs never break callers.

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type options struct {
	logger              *zap.Logger
	registry            *prometheus.Registry
	formatMigrations    *MigrationRegistry
	componentMigrations *ComponentMigrationRegistry
	allowLossyMigration bool
	compress            bool
}

func defaultOptions() *options {
	return &options{
		logger:              zap.NewNop(),
		formatMigrations:    NewMigrationRegistry(),
		componentMigrations: NewComponentMigrationRegistry(),
	}
}

// Option configures a binary or JSON Plugin at construction time.
type Option func(*options)

// WithLogger plugs an external zap.Logger. Plugins never log on the
// per-row hot path; only save/load start-finish, migrations run, checksum
// failures, and warnings for component or resource types without a codec
// are logged.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics for this Plugin instance. Passing
// nil disables metrics (the default), in which case a no-op sink is used.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithFormatMigrations registers a MigrationRegistry for translating older
// on-disk format versions forward during Load.
func WithFormatMigrations(reg *MigrationRegistry) Option {
	return func(o *options) {
		if reg != nil {
			o.formatMigrations = reg
		}
	}
}

// WithComponentMigrations registers a ComponentMigrationRegistry for
// translating older per-component schema versions forward during Load.
func WithComponentMigrations(reg *ComponentMigrationRegistry) Option {
	return func(o *options) {
		if reg != nil {
			o.componentMigrations = reg
		}
	}
}

// WithAllowLossyMigration permits Load to apply migrations flagged lossy.
// Without this option, Load fails rather than silently discard data.
func WithAllowLossyMigration() Option {
	return func(o *options) { o.allowLossyMigration = true }
}

// WithCompression enables zstd compression of everything between the
// header and the footer on Save (type registry, archetype table, entity
// data and resources), and sets the header's compressed flag.
func WithCompression() Option {
	return func(o *options) { o.compress = true }
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}
