// Package stdio provides trivial stdin/stdout-backed Source, Sink, and
// OffsetCommitter implementations for the `--input stdin`/`--output
// stdout` CLI modes (spec.md §6), so the consumer can be exercised
// without a broker. One JSON event per line on ingress; one JSON match
// record per line on egress.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"sigmaflow/internal/consumer"
)

// EOFSignal is returned by Fetch once the underlying reader is
// exhausted, distinguishing "stream ended" from "no line available this
// call" so the CLI can cancel the pipeline instead of busy-polling a
// dead reader forever.
var EOFSignal = fmt.Errorf("stdio: input exhausted")

// Source reads newline-delimited JSON events from r, tagging every
// message with the fixed partition name "stdin" and a monotonically
// increasing offset (§3 "Offset handle": a single ordered stream trivially
// satisfies the per-partition total order).
type Source struct {
	scanner *bufio.Scanner
	seq     int64
	atEOF   int32

	mu     sync.Mutex
	paused bool
}

// NewSource wraps r as a line-oriented event source.
func NewSource(r io.Reader) *Source {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &Source{scanner: sc}
}

// Fetch implements consumer.Source. Once the underlying reader hits EOF,
// every subsequent call returns EOFSignal rather than spinning the
// ingress loop against a scanner that will never produce another line.
func (s *Source) Fetch(ctx context.Context) (*consumer.Message, error) {
	if ctx.Err() != nil {
		return nil, nil
	}
	if atomic.LoadInt32(&s.atEOF) == 1 {
		select {
		case <-ctx.Done():
		case <-time.After(50 * time.Millisecond):
		}
		return nil, EOFSignal
	}
	if !s.scanner.Scan() {
		atomic.StoreInt32(&s.atEOF, 1)
		if err := s.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, EOFSignal
	}
	line := s.scanner.Bytes()
	if len(line) == 0 {
		return nil, nil
	}
	payload := make([]byte, len(line))
	copy(payload, line)

	offset := atomic.AddInt64(&s.seq, 1)
	return &consumer.Message{Partition: "stdin", Offset: offset, Payload: payload}, nil
}

// AtEOF reports whether the underlying reader has been fully consumed,
// so a caller (the CLI) can decide to shut the pipeline down instead of
// leaving it polling a dead stream.
func (s *Source) AtEOF() bool { return atomic.LoadInt32(&s.atEOF) == 1 }

// Pause implements consumer.Source. Stdin cannot be paused mid-read
// without blocking the whole process, so this only records intent for
// status reporting; the consumer's backpressure loop already stops
// calling Fetch while paused.
func (s *Source) Pause(string) {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume implements consumer.Source.
func (s *Source) Resume(string) {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

// Revoked implements consumer.Source. A single stdin stream has no
// consumer-group rebalance concept, so there is never anything to
// revoke; this returns a nil channel, which never fires.
func (s *Source) Revoked() <-chan []string { return nil }

// Close implements consumer.Source; stdin is owned by the process, not
// this Source, so Close is a no-op.
func (s *Source) Close() error { return nil }

// Sink writes match batches as newline-delimited JSON to out, and DLQ
// records as newline-delimited JSON to dlq (nil discards them).
type Sink struct {
	mu  sync.Mutex
	out *json.Encoder
	dlq *json.Encoder
}

// NewSink wraps out/dlq writers as a consumer.Sink.
func NewSink(out io.Writer, dlq io.Writer) *Sink {
	s := &Sink{out: json.NewEncoder(out)}
	if dlq != nil {
		s.dlq = json.NewEncoder(dlq)
	}
	return s
}

// Write implements consumer.Sink.
func (s *Sink) Write(_ context.Context, _ string, _ int64, results []consumer.MatchJSON) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		if err := s.out.Encode(r); err != nil {
			return fmt.Errorf("encode match record to stdout: %w", err)
		}
	}
	return nil
}

// WriteDLQ implements consumer.Sink.
func (s *Sink) WriteDLQ(_ context.Context, rec consumer.DLQRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dlq == nil {
		return nil
	}
	if err := s.dlq.Encode(rec); err != nil {
		return fmt.Errorf("encode dlq record: %w", err)
	}
	return nil
}

// Close implements consumer.Sink; the underlying writers are owned by
// the process.
func (s *Sink) Close() error { return nil }

// Committer is an in-memory consumer.OffsetCommitter: stdin/stdout mode
// has no durable broker to commit against, so it just records the
// highest committed offset per partition for status/debug purposes.
type Committer struct {
	mu        sync.Mutex
	committed map[string]int64
}

// NewCommitter constructs an in-memory committer.
func NewCommitter() *Committer {
	return &Committer{committed: make(map[string]int64)}
}

// Commit implements consumer.OffsetCommitter.
func (c *Committer) Commit(_ context.Context, partition string, offset int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed[partition] = offset
	return nil
}

// Committed returns the last committed offset for partition, for tests
// and debug logging.
func (c *Committer) Committed(partition string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed[partition]
}
