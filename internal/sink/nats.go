package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/banshee-data/vitals.report/internal/session"
)

// NATSConn is the subset of *nats.Conn used by the sink.
type NATSConn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATS publishes metrics on <subject>.<session_id> and status messages on
// <subject>.<session_id>.status.
type NATS struct {
	conn    NATSConn
	subject string
}

// DialNATS connects to url, retrying forever on disconnect.
func DialNATS(url, subject string) (*NATS, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("vitals.report"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return NewNATS(conn, subject), nil
}

// NewNATS wraps an existing connection; Close closes it.
func NewNATS(conn NATSConn, subject string) *NATS {
	return &NATS{conn: conn, subject: subject}
}

func (s *NATS) Name() string { return "nats" }

func (s *NATS) PublishMetrics(_ context.Context, m session.Metrics) error {
	return s.publish(s.subject+"."+m.SessionID, m)
}

func (s *NATS) PublishStatus(ctx context.Context, st session.Status) error {
	if err := s.publish(s.subject+"."+st.SessionID+".status", st); err != nil {
		return err
	}
	if st.Status != session.StatusStopped {
		return nil
	}
	// make sure the final status leaves before the process exits
	return s.conn.FlushWithContext(ctx)
}

func (s *NATS) publish(subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

func (s *NATS) Close() error {
	s.conn.Close()
	return nil
}
