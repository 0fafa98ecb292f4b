// Package sink delivers session output to downstream consumers.
//
// Every sink implements session.Publisher. A session normally talks to a
// Multi that fans each message out to the configured sinks; a failing sink
// never prevents the others from receiving the message.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/vitals.report/internal/session"
)

// Sink is a Publisher that owns a connection.
type Sink interface {
	session.Publisher
	Name() string
	Close() error
}

// Multi fans messages out to several sinks in order.
type Multi []Sink

var _ session.Publisher = Multi(nil)

// PublishMetrics sends m to every sink and joins their errors.
func (ms Multi) PublishMetrics(ctx context.Context, m session.Metrics) error {
	var errs []error
	for _, s := range ms {
		if err := s.PublishMetrics(ctx, m); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// PublishStatus sends st to every sink and joins their errors.
func (ms Multi) PublishStatus(ctx context.Context, st session.Status) error {
	var errs []error
	for _, s := range ms {
		if err := s.PublishStatus(ctx, st); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink, last opened first.
func (ms Multi) Close() error {
	var errs []error
	for i := len(ms) - 1; i >= 0; i-- {
		if err := ms[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", ms[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Names lists the sinks for logging.
func (ms Multi) Names() []string {
	names := make([]string, len(ms))
	for i, s := range ms {
		names[i] = s.Name()
	}
	return names
}
