package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/banshee-data/vitals.report/internal/session"
)

// DefaultStreamMaxLen caps the Redis stream, approximately.
const DefaultStreamMaxLen = 10000

// Redis appends each message to a stream with XADD. Entries carry the
// session id, the message type and the JSON document under "data".
type Redis struct {
	client *redis.Client
	stream string
	maxLen int64
	owned  bool
}

// DialRedis connects to addr and checks the connection with PING.
func DialRedis(ctx context.Context, addr, stream string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	r := NewRedis(client, stream, DefaultStreamMaxLen)
	r.owned = true
	return r, nil
}

// NewRedis wraps an existing client. The caller keeps ownership of client.
func NewRedis(client *redis.Client, stream string, maxLen int64) *Redis {
	return &Redis{client: client, stream: stream, maxLen: maxLen}
}

func (s *Redis) Name() string { return "redis" }

func (s *Redis) PublishMetrics(ctx context.Context, m session.Metrics) error {
	return s.add(ctx, m.SessionID, m.Type, m)
}

func (s *Redis) PublishStatus(ctx context.Context, st session.Status) error {
	return s.add(ctx, st.SessionID, st.Type, st)
}

func (s *Redis) add(ctx context.Context, id, typ string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"session_id": id,
			"type":       typ,
			"data":       string(data),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

func (s *Redis) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
