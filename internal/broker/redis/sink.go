package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"sigmaflow/internal/consumer"
)

// SinkConfig configures list-based Redis egress and dead-lettering.
type SinkConfig struct {
	Addr         string
	Password     string
	DB           int
	OutputKey    string
	DLQKey       string // optional; WriteDLQ is a no-op if unset
	WriteTimeout time.Duration
}

// Sink is a consumer.Sink that RPUSHes match batches and DLQ records onto
// Redis lists, mirroring Source's BLPOP ingress (§4.8 step 2, §6 "DLQ
// payload format").
type Sink struct {
	client    *goredis.Client
	outputKey string
	dlqKey    string
	timeout   time.Duration
}

// NewSink constructs a Redis list sink.
func NewSink(cfg SinkConfig) (*Sink, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.OutputKey == "" {
		return nil, errRequired("redis sink output key")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Sink{
		client:    client,
		outputKey: cfg.OutputKey,
		dlqKey:    cfg.DLQKey,
		timeout:   cfg.WriteTimeout,
	}, nil
}

// Write implements consumer.Sink: each match in the batch is encoded to
// the canonical JSON shape of §6 and RPUSHed individually, so a
// downstream BLPOP consumer sees one match record per list element
// rather than having to split a batch payload.
func (s *Sink) Write(ctx context.Context, partition string, offset int64, results []consumer.MatchJSON) error {
	if len(results) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	encoded := make([]interface{}, len(results))
	for i, r := range results {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode match record: %w", err)
		}
		encoded[i] = b
	}
	if err := s.client.RPush(ctx, s.outputKey, encoded...).Err(); err != nil {
		return fmt.Errorf("rpush match batch to %s: %w", s.outputKey, err)
	}
	return nil
}

// WriteDLQ implements consumer.Sink. If no DLQ key was configured, the
// record is dropped silently and nil is returned, so the consumer does
// not log it either (§7's "dlq_topic (optional)").
func (s *Sink) WriteDLQ(ctx context.Context, rec consumer.DLQRecord) error {
	if s.dlqKey == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode dlq record: %w", err)
	}
	if err := s.client.RPush(ctx, s.dlqKey, b).Err(); err != nil {
		return fmt.Errorf("rpush dlq record to %s: %w", s.dlqKey, err)
	}
	return nil
}

// Close implements consumer.Sink.
func (s *Sink) Close() error { return s.client.Close() }
