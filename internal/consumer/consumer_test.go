package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	"sigmaflow/internal/ruleset"
)

// fakeSource serves a fixed slice of messages once each, then blocks (returns
// nil, nil) until ctx is done, so Run's ingress loop never busy-spins once
// drained.
type fakeSource struct {
	mu       sync.Mutex
	messages []*Message
	pos      int
	paused   map[string]bool
	revoked  chan []string
}

func newFakeSource(messages []*Message) *fakeSource {
	return &fakeSource{messages: messages, paused: make(map[string]bool)}
}

func (s *fakeSource) Fetch(ctx context.Context) (*Message, error) {
	s.mu.Lock()
	if s.paused[""] {
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
		return nil, nil
	}
	if s.pos >= len(s.messages) {
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
		return nil, nil
	}
	msg := s.messages[s.pos]
	s.pos++
	s.mu.Unlock()
	return msg, nil
}

func (s *fakeSource) Pause(partition string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused[partition] = true
}

func (s *fakeSource) Resume(partition string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused[partition] = false
}

func (s *fakeSource) Revoked() <-chan []string { return s.revoked }

func (s *fakeSource) Close() error { return nil }

type fakeSink struct {
	mu     sync.Mutex
	writes []string
}

func (s *fakeSink) Write(ctx context.Context, partition string, offset int64, results []MatchJSON) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, offsetString(&Message{Partition: partition, Offset: offset}))
	return nil
}

func (s *fakeSink) WriteDLQ(ctx context.Context, rec DLQRecord) error { return nil }

func (s *fakeSink) Close() error { return nil }

type fakeCommitter struct {
	mu       sync.Mutex
	commits  map[string]int64
	commitCh chan struct{}
}

func newFakeCommitter() *fakeCommitter {
	return &fakeCommitter{commits: make(map[string]int64), commitCh: make(chan struct{}, 64)}
}

func (c *fakeCommitter) Commit(ctx context.Context, partition string, offset int64) error {
	c.mu.Lock()
	c.commits[partition] = offset
	c.mu.Unlock()
	select {
	case c.commitCh <- struct{}{}:
	default:
	}
	return nil
}

func (c *fakeCommitter) get(partition string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.commits[partition]
	return v, ok
}

func TestConsumerRunDrainsAndCommits(t *testing.T) {
	msgs := []*Message{
		{Partition: "p0", Offset: 0, Payload: []byte(`{"a":"b"}`)},
		{Partition: "p0", Offset: 1, Payload: []byte(`{"a":"b"}`)},
		{Partition: "p0", Offset: 2, Payload: []byte(`{"a":"b"}`)},
	}
	src := newFakeSource(msgs)
	sink := &fakeSink{}
	committer := newFakeCommitter()
	rs := ruleset.New()

	cfg := DefaultConfig()
	cfg.CommitInterval = 10 * time.Millisecond
	cfg.ShutdownGrace = time.Second
	c := New(src, sink, committer, rs, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	if err := c.Run(ctx); err == nil {
		t.Fatalf("expected Run to return ctx.Err() on shutdown")
	}

	offset, ok := committer.get("p0")
	if !ok || offset != 2 {
		t.Fatalf("expected partition p0 committed at offset 2, got %d (ok=%v)", offset, ok)
	}
}

func TestConsumerHandleRevocationDrainsAndCommitsNamedPartitions(t *testing.T) {
	src := newFakeSource(nil)
	sink := &fakeSink{}
	committer := newFakeCommitter()
	rs := ruleset.New()
	c := New(src, sink, committer, rs, DefaultConfig())

	// Simulate two completed offsets on p0 and none on p1.
	c.cursor.complete("p0", 0)
	c.cursor.complete("p0", 1)

	c.handleRevocation(context.Background(), []string{"p0", "p1"})

	if !src.paused["p0"] || !src.paused["p1"] {
		t.Fatalf("expected both revoked partitions paused, got %+v", src.paused)
	}
	offset, ok := committer.get("p0")
	if !ok || offset != 1 {
		t.Fatalf("expected p0 committed at its highest contiguous offset 1, got %d (ok=%v)", offset, ok)
	}
	if _, ok := committer.get("p1"); ok {
		t.Fatalf("expected p1 to have nothing to commit (no completions recorded)")
	}
}

func TestConsumerDrainPartitionWaitsForInflight(t *testing.T) {
	src := newFakeSource(nil)
	sink := &fakeSink{}
	committer := newFakeCommitter()
	rs := ruleset.New()
	c := New(src, sink, committer, rs, DefaultConfig())

	c.partitionInflight["p0"] = 1
	done := make(chan struct{})
	go func() {
		c.drainPartition(context.Background(), "p0")
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("drainPartition returned before in-flight count reached zero")
	case <-time.After(20 * time.Millisecond):
	}

	c.partitionMu.Lock()
	c.partitionInflight["p0"] = 0
	c.partitionMu.Unlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("drainPartition did not return after in-flight count reached zero")
	}
}
