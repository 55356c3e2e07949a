package area

import "go.uber.org/zap"

// ProblemReporter receives streaming, fire-and-forget diagnostics about
// malformed input. Implementations must not panic — a reporter that
// throws leaves the assembler's own error handling undefined, per
// spec.md §7.
type ProblemReporter interface {
	ReportDuplicateNode(idA, idB int64, loc Location)
	ReportIntersection(objectID, way1ID int64, w1p1, w1p2 Location, way2ID int64, w2p1, w2p2 Location, at Location)
	ReportRingNotClosed(objectID int64, start, end Location)
	ReportRoleShouldBeOuter(objectID, wayID int64, p1, p2 Location)
	ReportRoleShouldBeInner(objectID, wayID int64, p1, p2 Location)
}

// NoopReporter discards every diagnostic. It is the default when an
// Assembler is constructed without an explicit reporter.
type NoopReporter struct{}

func (NoopReporter) ReportDuplicateNode(int64, int64, Location) {}
func (NoopReporter) ReportIntersection(int64, int64, Location, Location, int64, Location, Location, Location) {
}
func (NoopReporter) ReportRingNotClosed(int64, Location, Location)           {}
func (NoopReporter) ReportRoleShouldBeOuter(int64, int64, Location, Location) {}
func (NoopReporter) ReportRoleShouldBeInner(int64, int64, Location, Location) {}

// LoggingReporter emits every diagnostic as a structured zap log line,
// the concrete form of spec.md §6's debug traces and the teacher's
// logging convention (internal/logger) applied to assembler problems.
type LoggingReporter struct {
	Log *zap.Logger
}

// NewLoggingReporter wraps log, falling back to zap.NewNop() if nil.
func NewLoggingReporter(log *zap.Logger) *LoggingReporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingReporter{Log: log}
}

func (r *LoggingReporter) ReportDuplicateNode(idA, idB int64, loc Location) {
	r.Log.Warn("duplicate node",
		zap.Int64("node_a", idA), zap.Int64("node_b", idB),
		zap.Float64("lon", loc.Lon()), zap.Float64("lat", loc.Lat()))
}

func (r *LoggingReporter) ReportIntersection(objectID, way1ID int64, w1p1, w1p2 Location, way2ID int64, w2p1, w2p2 Location, at Location) {
	r.Log.Warn("segment intersection",
		zap.Int64("object_id", objectID),
		zap.Int64("way1_id", way1ID), zap.Int64("way2_id", way2ID),
		zap.Float64("at_lon", at.Lon()), zap.Float64("at_lat", at.Lat()))
}

func (r *LoggingReporter) ReportRingNotClosed(objectID int64, start, end Location) {
	r.Log.Warn("ring not closed",
		zap.Int64("object_id", objectID),
		zap.Float64("start_lon", start.Lon()), zap.Float64("start_lat", start.Lat()),
		zap.Float64("end_lon", end.Lon()), zap.Float64("end_lat", end.Lat()))
}

func (r *LoggingReporter) ReportRoleShouldBeOuter(objectID, wayID int64, p1, p2 Location) {
	r.Log.Warn("role should be outer", zap.Int64("object_id", objectID), zap.Int64("way_id", wayID))
}

func (r *LoggingReporter) ReportRoleShouldBeInner(objectID, wayID int64, p1, p2 Location) {
	r.Log.Warn("role should be inner", zap.Int64("object_id", objectID), zap.Int64("way_id", wayID))
}
