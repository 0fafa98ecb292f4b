package db

import (
	"context"
	"encoding/json"

	"github.com/banshee-data/vitals.report/internal/session"
	"github.com/banshee-data/vitals.report/internal/timeutil"
)

// Recorder is a sink that keeps the sessions table in step with the
// status stream. Metrics only bump a counter.
type Recorder struct {
	db     *DB
	source string
	config string
	clock  timeutil.Clock
}

// NewRecorder returns a Recorder. cfg is stored as JSON alongside the row;
// pass nil to store "{}".
func NewRecorder(db *DB, source string, cfg interface{}, clock timeutil.Clock) (*Recorder, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	configJSON := "{}"
	if cfg != nil {
		b, err := json.Marshal(cfg)
		if err != nil {
			return nil, err
		}
		configJSON = string(b)
	}
	return &Recorder{db: db, source: source, config: configJSON, clock: clock}, nil
}

func (r *Recorder) Name() string { return "sqlite" }

func (r *Recorder) PublishMetrics(ctx context.Context, m session.Metrics) error {
	return r.db.IncrementMetricsEmitted(ctx, m.SessionID)
}

func (r *Recorder) PublishStatus(ctx context.Context, st session.Status) error {
	switch st.Status {
	case session.StatusReady:
		return r.db.StartSession(ctx, st.SessionID, r.source, st.Status, r.config, r.clock.Now())
	case session.StatusStopped:
		return r.db.FinishSession(ctx, st.SessionID, st.Status, int64(st.FramesProcessed), r.clock.Now())
	default:
		return r.db.UpdateSessionProgress(ctx, st.SessionID, st.Status, int64(st.FramesProcessed))
	}
}

// Close leaves the database open; its owner closes it.
func (r *Recorder) Close() error { return nil }
