// Package session drives the vitals estimators for one subject: it feeds
// analysed frames in arrival order, throttles estimate polling and publishes
// metrics and lifecycle status messages.
package session

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/vitals.report/internal/config"
	"github.com/banshee-data/vitals.report/internal/monitoring"
	"github.com/banshee-data/vitals.report/internal/timeutil"
	"github.com/banshee-data/vitals.report/internal/vitals"
)

// Publisher receives everything a session emits. Publish failures are logged
// and never interrupt ingestion.
type Publisher interface {
	PublishMetrics(ctx context.Context, m Metrics) error
	PublishStatus(ctx context.Context, s Status) error
}

// Options configures a Session.
type Options struct {
	ID                   string
	Vitals               vitals.Config
	EmitInterval         time.Duration
	StatsInterval        time.Duration
	StatusIntervalFrames int
	Clock                timeutil.Clock
}

// DefaultOptions returns the options used when no tuning file is given.
func DefaultOptions(id string) Options {
	return Options{
		ID:                   id,
		Vitals:               vitals.DefaultConfig(),
		EmitInterval:         500 * time.Millisecond,
		StatsInterval:        10 * time.Second,
		StatusIntervalFrames: 50,
		Clock:                timeutil.RealClock{},
	}
}

// OptionsFromTuning builds Options from a loaded tuning file.
func OptionsFromTuning(id string, cfg *config.TuningConfig) Options {
	o := DefaultOptions(id)
	o.Vitals = vitals.ConfigFromTuning(cfg)
	o.EmitInterval = cfg.GetEmitInterval()
	o.StatsInterval = cfg.GetStatsInterval()
	o.StatusIntervalFrames = cfg.GetStatusIntervalFrames()
	return o
}

// Snapshot is a consistent copy of a session's state for debug views.
type Snapshot struct {
	ID        string
	Started   time.Time
	Stopped   bool
	Frames    int
	Faces     int
	Latest    *Metrics
	HeartRate vitals.HeartRate
	Breathing vitals.Breathing
	Colors    []vitals.ColorSample
	Landmarks []vitals.LandmarkSample
	Pulse     *vitals.PulseSignal
	Config    vitals.Config
}

// Session owns one heart-rate and one breathing estimator. All methods are
// safe for concurrent use; Feed calls must still arrive in timestamp order.
type Session struct {
	opts  Options
	pub   Publisher
	clock timeutil.Clock

	mu        sync.Mutex
	hr        *vitals.HeartRateEstimator
	br        *vitals.BreathingEstimator
	started   time.Time
	stopped   bool
	frames    int
	faces     int
	emitted   bool
	lastEmit  time.Time
	latest    *Metrics
	statsAt   time.Time
	statsFrom time.Time
	statsN    int
	logged    bool
}

// New creates a session. A nil Clock in opts uses the real clock.
func New(opts Options, pub Publisher) *Session {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.StatusIntervalFrames <= 0 {
		opts.StatusIntervalFrames = 50
	}
	return &Session{
		opts:  opts,
		pub:   pub,
		clock: opts.Clock,
		hr:    vitals.NewHeartRateEstimator(opts.Vitals),
		br:    vitals.NewBreathingEstimator(opts.Vitals),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.opts.ID }

// Start publishes the ready status.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	s.started = s.clock.Now()
	s.statsFrom = s.started
	s.mu.Unlock()

	monitoring.Logf("[vitals] Session: %s", s.opts.ID)
	s.publishStatus(ctx, StatusReady, 0)
}

// Stop publishes the stopped status once.
func (s *Session) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	frames := s.frames
	s.mu.Unlock()

	monitoring.Logf("[vitals] EOF/signal, shutting down after %d frames", frames)
	s.publishStatus(ctx, StatusStopped, frames)
}

// Feed processes one frame. Frames without a face only count towards the
// frame total and status heartbeats.
func (s *Session) Feed(ctx context.Context, f Frame) {
	s.mu.Lock()
	s.frames++
	s.statsN++
	s.logStatsLocked()

	var metrics *Metrics
	if f.Face {
		s.faces++
		if f.RGB != nil {
			s.hr.AddSample(f.TimestampMs, *f.RGB)
		}
		if f.ChinY != nil {
			s.br.AddLandmarkSample(f.TimestampMs, *f.ChinY)
		}

		now := s.clock.Now()
		if !s.emitted || now.Sub(s.lastEmit) >= s.opts.EmitInterval {
			s.emitted = true
			s.lastEmit = now
			m := s.estimateLocked(f, now)
			s.latest = &m
			metrics = &m
		}
	}

	frames := s.frames
	heartbeat := frames%s.opts.StatusIntervalFrames == 0
	s.mu.Unlock()

	if metrics != nil {
		if err := s.pub.PublishMetrics(ctx, *metrics); err != nil {
			monitoring.Logf("[vitals] publish metrics: %v", err)
		}
	}
	if heartbeat {
		s.publishStatus(ctx, StatusProcessing, frames)
	}
}

func (s *Session) estimateLocked(f Frame, now time.Time) Metrics {
	hr := s.hr.Estimate()

	var br vitals.Breathing
	if pulse, ok := s.hr.PulseSignal(); ok {
		br = s.br.Estimate(&pulse)
	} else {
		br = s.br.Estimate(nil)
	}
	return NewMetrics(s.opts.ID, hr, br, f.Blinking, f.Talking, now.UnixMilli())
}

func (s *Session) logStatsLocked() {
	if s.logged && s.clock.Since(s.statsAt) < s.opts.StatsInterval {
		return
	}
	now := s.clock.Now()
	elapsed := now.Sub(s.statsFrom).Seconds()
	fps := 0.0
	if elapsed > 0 {
		fps = float64(s.statsN) / elapsed
	}
	pct := 100 * float64(s.faces) / float64(max(1, s.frames))
	monitoring.Logf("[vitals] Stats: effective_fps=%.1f, frames=%d, faces=%d (%.0f%%), rppg_buffer=%d",
		fps, s.frames, s.faces, pct, s.hr.Len())

	s.logged = true
	s.statsAt = now
	s.statsFrom = now
	s.statsN = 0
}

func (s *Session) publishStatus(ctx context.Context, status string, frames int) {
	st := Status{SessionID: s.opts.ID, Type: TypeStatus, Status: status, FramesProcessed: frames}
	if err := s.pub.PublishStatus(ctx, st); err != nil {
		monitoring.Logf("[vitals] publish status %s: %v", status, err)
	}
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.opts.ID,
		Started:   s.started,
		Stopped:   s.stopped,
		Frames:    s.frames,
		Faces:     s.faces,
		HeartRate: s.hr.Last(),
		Breathing: s.br.Last(),
		Colors:    s.hr.Samples(),
		Landmarks: s.br.Samples(),
		Config:    s.opts.Vitals,
	}
	if s.latest != nil {
		m := *s.latest
		snap.Latest = &m
	}
	if p, ok := s.hr.PulseSignal(); ok {
		snap.Pulse = &p
	}
	return snap
}

// Run feeds lines until lines is closed or ctx is cancelled, then stops the
// session. Blank, malformed and ignored lines are skipped.
func (s *Session) Run(ctx context.Context, lines <-chan string) error {
	s.Start(ctx)
	defer s.Stop(context.WithoutCancel(ctx))

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			raw := bytes.TrimSpace([]byte(line))
			if len(raw) == 0 {
				continue
			}
			f, err := ParseFrame(raw)
			if errors.Is(err, ErrIgnored) {
				continue
			}
			if err != nil {
				monitoring.Logf("[vitals] %v", err)
				continue
			}
			s.Feed(ctx, f)
		}
	}
}
