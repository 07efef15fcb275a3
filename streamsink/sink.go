// Package streamsink bridges the in-process eventstream.Stream to
// out-of-process consumers (dashboards, SSE relays) over a Redis-backed
// goa.design/pulse stream. It is optional: controllers that run in a
// single process never need it.
package streamsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"

	"github.com/agentctl/controlplane/event"
)

// Client exposes the subset of Pulse operations the sink needs. Mirrors
// the upstream goa.design/pulse streaming.Streamer surface so a thin
// Redis-backed implementation can be swapped for a fake in tests.
type Client interface {
	Stream(name string, opts ...streamopts.Stream) (Stream, error)
	Close(ctx context.Context) error
}

// Stream is a single named Pulse stream.
type Stream interface {
	Add(ctx context.Context, name string, payload []byte) (string, error)
	NewSink(ctx context.Context, name string, opts ...streamopts.Sink) (PulseSink, error)
	Destroy(ctx context.Context) error
}

// PulseSink is a consumer group reading from a Pulse stream.
type PulseSink interface {
	Subscribe() <-chan *streaming.Event
	Ack(ctx context.Context, e *streaming.Event) error
	Close(ctx context.Context)
}

// Options configures NewRedisClient.
type Options struct {
	// Redis is the connection backing every Pulse stream. Required.
	Redis *redis.Client
	// StreamMaxLen bounds entries retained per stream; 0 uses Pulse defaults.
	StreamMaxLen int
}

// NewRedisClient constructs a Client backed by the given Redis connection.
func NewRedisClient(opts Options) (Client, error) {
	if opts.Redis == nil {
		return nil, errors.New("streamsink: redis client is required")
	}
	return &redisClient{redis: opts.Redis, maxLen: opts.StreamMaxLen}, nil
}

type redisClient struct {
	redis  *redis.Client
	maxLen int
}

func (c *redisClient) Stream(name string, opts ...streamopts.Stream) (Stream, error) {
	if c.maxLen > 0 {
		opts = append(opts, streamopts.WithStreamMaxLen(c.maxLen))
	}
	s, err := streaming.NewStream(name, c.redis, opts...)
	if err != nil {
		return nil, fmt.Errorf("streamsink: open stream %q: %w", name, err)
	}
	return &redisStream{s: s}, nil
}

func (c *redisClient) Close(context.Context) error { return nil }

type redisStream struct{ s *streaming.Stream }

func (s *redisStream) Add(ctx context.Context, name string, payload []byte) (string, error) {
	return s.s.Add(ctx, name, payload)
}

func (s *redisStream) NewSink(ctx context.Context, name string, opts ...streamopts.Sink) (PulseSink, error) {
	return s.s.NewSink(ctx, name, opts...)
}

func (s *redisStream) Destroy(ctx context.Context) error { return s.s.Destroy(ctx) }

// Envelope wraps one control-plane event for transmission over a Pulse
// stream. Payload holds the concrete event value itself (typed any,
// because Event is a closed set of concrete structs, not one serializable
// type) and is marshaled from that struct's exported fields.
type Envelope struct {
	Type      event.Kind `json:"type"`
	EventID   int64      `json:"event_id"`
	Source    event.Source `json:"source"`
	Cause     int64      `json:"cause,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	Payload   any        `json:"payload"`
}

// StreamIDFunc derives the target Pulse stream name for an event. The
// default groups every event from one session into one stream.
type StreamIDFunc func(sessionID string) string

// DefaultStreamID returns "session/<sessionID>".
func DefaultStreamID(sessionID string) string { return "session/" + sessionID }

// Sink publishes events appended to an eventstream.Stream into a Pulse
// stream, so an out-of-process consumer can follow a session live.
type Sink struct {
	client    Client
	sessionID string
	streamIDf StreamIDFunc
}

// NewSink constructs a Sink that forwards events for one session.
func NewSink(client Client, sessionID string, streamIDf StreamIDFunc) *Sink {
	if streamIDf == nil {
		streamIDf = DefaultStreamID
	}
	return &Sink{client: client, sessionID: sessionID, streamIDf: streamIDf}
}

// Forward is an eventstream.Handler: wire it up via Stream.Subscribe to
// mirror every published event onto the backing Pulse stream.
func (s *Sink) Forward(ctx context.Context, evt event.Event) error {
	stream, err := s.client.Stream(s.streamIDf(s.sessionID))
	if err != nil {
		return err
	}
	env := Envelope{
		Type:      evt.Type(),
		EventID:   evt.ID(),
		Source:    evt.Src(),
		Cause:     evt.Cause(),
		Timestamp: time.Now().UTC(),
		Payload:   evt,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("streamsink: marshal envelope: %w", err)
	}
	_, err = stream.Add(ctx, string(evt.Type()), data)
	return err
}
