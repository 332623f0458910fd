package persist

// log.go centralises the handful of events a Plugin logs: save/load
// start-finish, migrations applied, checksum failures, and warnings for
// component or resource types that have no codec (which can fire once per
// archetype column or resource). Per-row work stays silent; the
// per-component encode/decode hot path never logs.

import "go.uber.org/zap"

func logSaveStart(log *zap.Logger, format string, entityCount int) {
	log.Info("persist: save starting", zap.String("format", format), zap.Int("entities", entityCount))
}

func logSaveDone(log *zap.Logger, format string, bytesWritten int64) {
	log.Info("persist: save finished", zap.String("format", format), zap.Int64("bytes", bytesWritten))
}

func logLoadStart(log *zap.Logger, format string) {
	log.Info("persist: load starting", zap.String("format", format))
}

func logLoadDone(log *zap.Logger, format string, entityCount int, bytesRead int64) {
	log.Info("persist: load finished", zap.String("format", format), zap.Int("entities", entityCount), zap.Int64("bytes", bytesRead))
}

func logMigrationApplied(log *zap.Logger, kind string, from, to uint32, lossy bool) {
	log.Warn("persist: migration applied", zap.String("kind", kind), zap.Uint32("from", from), zap.Uint32("to", to), zap.Bool("lossy", lossy))
}

func logChecksumFailure(log *zap.Logger, want, got uint64) {
	log.Error("persist: checksum mismatch", zap.Uint64("want", want), zap.Uint64("got", got))
}

func logUnknownType(log *zap.Logger, typeID string, name string) {
	log.Warn("persist: unknown component type on load, bytes discarded", zap.String("type_id", typeID), zap.String("name", name))
}

func logSkippedResource(log *zap.Logger, name string) {
	log.Warn("persist: resource type has no registered codec, skipped", zap.String("type", name))
}

func logSkippedComponent(log *zap.Logger, typeID string) {
	log.Warn("persist: component type has no registered codec, column skipped", zap.String("type_id", typeID))
}
