package db

import (
	"context"
	"testing"
	"time"

	"github.com/banshee-data/vitals.report/internal/session"
	"github.com/banshee-data/vitals.report/internal/timeutil"
)

func TestRecorderFollowsStatusStream(t *testing.T) {
	db := setupTestDB(t)
	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	rec, err := NewRecorder(db, "serial:/dev/ttyACM0", map[string]string{"emit_interval": "500ms"}, clock)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	steps := []func() error{
		func() error {
			return rec.PublishStatus(ctx, session.Status{SessionID: "s1", Type: session.TypeStatus, Status: session.StatusReady})
		},
		func() error { return rec.PublishMetrics(ctx, session.Metrics{SessionID: "s1", Type: session.TypeCore}) },
		func() error {
			return rec.PublishStatus(ctx, session.Status{SessionID: "s1", Type: session.TypeStatus, Status: session.StatusProcessing, FramesProcessed: 50})
		},
		func() error { return rec.PublishMetrics(ctx, session.Metrics{SessionID: "s1", Type: session.TypeEdge}) },
		func() error {
			clock.Advance(30 * time.Second)
			return rec.PublishStatus(ctx, session.Status{SessionID: "s1", Type: session.TypeStatus, Status: session.StatusStopped, FramesProcessed: 64})
		},
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	s, err := db.GetSession(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != session.StatusStopped || s.FramesProcessed != 64 || s.MetricsEmitted != 2 {
		t.Errorf("unexpected row: %+v", s)
	}
	if s.Source != "serial:/dev/ttyACM0" || s.ConfigJSON != `{"emit_interval":"500ms"}` {
		t.Errorf("unexpected source/config: %+v", s)
	}
	if s.Duration() != 30*time.Second {
		t.Errorf("Duration = %v, want 30s", s.Duration())
	}
	if rec.Name() != "sqlite" {
		t.Errorf("Name = %q", rec.Name())
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	if err := db.Ping(); err != nil {
		t.Errorf("Close closed the database: %v", err)
	}
}

func TestRecorderMetricsBeforeStart(t *testing.T) {
	db := setupTestDB(t)
	rec, err := NewRecorder(db, "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.PublishMetrics(context.Background(), session.Metrics{SessionID: "ghost"}); err == nil {
		t.Error("expected error for unknown session")
	}
}
