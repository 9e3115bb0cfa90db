// Package redissink publishes the latest report body to Redis so dashboards
// can read it without touching the report file.
package redissink

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sawpanic/gemscan/internal/report"
)

// Options configures Dial.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Dial connects to Redis and pings it.
func Dial(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return client, nil
}

// Sink stores each report under a fixed key, replacing the previous one.
type Sink struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// New creates a sink writing to key. A zero ttl keeps the key until the next
// run replaces it.
func New(client redis.Cmdable, key string, ttl time.Duration) *Sink {
	return &Sink{client: client, key: key, ttl: ttl}
}

// Name implements the scan sink interface.
func (s *Sink) Name() string {
	return "redis"
}

// Key returns the key reports are stored under.
func (s *Sink) Key() string {
	return s.key
}

// Publish stores the exact report bytes and the id of the run behind them.
func (s *Sink) Publish(ctx context.Context, pub report.Publication) error {
	if err := s.client.Set(ctx, s.key, pub.Body, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	if err := s.client.Set(ctx, s.key+":run_id", pub.RunID, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s:run_id: %w", s.key, err)
	}
	return nil
}

// Latest returns the stored report body, or nil when there is none.
func (s *Sink) Latest(ctx context.Context) ([]byte, error) {
	body, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return body, nil
}
