// Package monitor serves the debug pages for a running session: a status
// page, the latest estimate as JSON, a spectrum plot and waveform charts.
package monitor

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/vitals.report/internal/httputil"
	"github.com/banshee-data/vitals.report/internal/session"
	"github.com/banshee-data/vitals.report/internal/version"
)

// Source provides consistent views of a session.
type Source interface {
	Snapshot() session.Snapshot
}

//go:embed templates/*
var templateFS embed.FS

var statusTemplate = template.Must(template.ParseFS(templateFS, "templates/status.html.tmpl"))

// FeedStats reports on the live metrics feed.
type FeedStats interface {
	Subscribers() int
	Dropped() int64
}

// Server renders debug views of one session.
type Server struct {
	src  Source
	feed FeedStats
}

// New returns a Server reading from src.
func New(src Source) *Server {
	return &Server{src: src}
}

// WithFeed adds live feed counters to the status views.
func (s *Server) WithFeed(feed FeedStats) *Server {
	s.feed = feed
	return s
}

type feedView struct {
	Subscribers int   `json:"subscribers"`
	Dropped     int64 `json:"dropped"`
}

func (s *Server) feedView() *feedView {
	if s.feed == nil {
		return nil
	}
	return &feedView{Subscribers: s.feed.Subscribers(), Dropped: s.feed.Dropped()}
}

// AttachAdminRoutes registers the session pages under /debug/vitals.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("vitals", "session status and latest vitals", s.handleStatus)
	debug.HandleSilentFunc("vitals/latest", s.handleLatest)
	debug.HandleSilentFunc("vitals/state", s.handleState)
	debug.HandleFunc("vitals/spectrum.png", "pulse magnitude spectrum", s.handleSpectrum)
	debug.HandleFunc("vitals/waveform", "pulse and chin waveforms", s.handleWaveform)
}

type statusView struct {
	session.Snapshot
	Version   string
	Uptime    time.Duration
	FacePct   float64
	Window    time.Duration
	HasPulse  bool
	PulseSize int
	Feed      *feedView
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	view := statusView{
		Snapshot: snap,
		Version:  version.Version,
		Window:   snap.Config.Window,
		HasPulse: snap.Pulse != nil,
		Feed:     s.feedView(),
	}
	if !snap.Started.IsZero() {
		view.Uptime = time.Since(snap.Started).Round(time.Second)
	}
	if snap.Frames > 0 {
		view.FacePct = 100 * float64(snap.Faces) / float64(snap.Frames)
	}
	if snap.Pulse != nil {
		view.PulseSize = len(snap.Pulse.Samples)
	}

	var buf bytes.Buffer
	if err := statusTemplate.Execute(&buf, view); err != nil {
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	if snap.Latest == nil {
		httputil.NotFound(w, "no estimate yet")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap.Latest)
}

// stateResponse is the machine-readable form of the status page.
type stateResponse struct {
	SessionID    string           `json:"session_id"`
	Started      time.Time        `json:"started"`
	Stopped      bool             `json:"stopped"`
	Frames       int              `json:"frames"`
	Faces        int              `json:"faces"`
	ColorSamples int              `json:"color_samples"`
	ChinSamples  int              `json:"chin_samples"`
	PulseSamples int              `json:"pulse_samples"`
	SampleRate   float64          `json:"sample_rate"`
	Latest       *session.Metrics `json:"latest,omitempty"`
	Feed         *feedView        `json:"feed,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	resp := stateResponse{
		SessionID:    snap.ID,
		Started:      snap.Started,
		Stopped:      snap.Stopped,
		Frames:       snap.Frames,
		Faces:        snap.Faces,
		ColorSamples: len(snap.Colors),
		ChinSamples:  len(snap.Landmarks),
		Latest:       snap.Latest,
		Feed:         s.feedView(),
	}
	if snap.Pulse != nil {
		resp.PulseSamples = len(snap.Pulse.Samples)
		resp.SampleRate = snap.Pulse.SampleRate
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
