package consumer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"sigmaflow/internal/event"
	"sigmaflow/internal/logger"
	"sigmaflow/internal/ruleset"
)

var log = logger.Component("consumer")

// Consumer drives the ingress/processing/retry/backpressure/offset-
// management/shutdown pipeline of §4.8 around a compiled Ruleset. One
// Consumer handles one Run call at a time.
type Consumer struct {
	source    Source
	sink      Sink
	committer OffsetCommitter
	rules     *ruleset.Ruleset
	cfg       Config

	inflight    int64 // atomic
	cursor      *cursorTracker
	checkCommit chan struct{}

	partitionMu       sync.Mutex
	partitionInflight map[string]int64
}

// New builds a Consumer. Zero fields in cfg fall back to DefaultConfig's
// values (normalizeConfig), except DLQAfterRetries, which falls back to
// MaxRetries, and Workers, which falls back to runtime.NumCPU();
// matching the teacher's main.go "apply defaults after load" convention.
func New(source Source, sink Sink, committer OffsetCommitter, rules *ruleset.Ruleset, cfg Config) *Consumer {
	return &Consumer{
		source:            source,
		sink:              sink,
		committer:         committer,
		rules:             rules,
		cfg:               normalizeConfig(cfg),
		cursor:            newCursorTracker(),
		partitionInflight: make(map[string]int64),
	}
}

func normalizeConfig(cfg Config) Config {
	def := DefaultConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.DLQAfterRetries <= 0 {
		cfg.DLQAfterRetries = cfg.MaxRetries
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = def.QueueCapacity
	}
	if cfg.HighWatermarkRatio <= 0 {
		cfg.HighWatermarkRatio = def.HighWatermarkRatio
	}
	if cfg.LowWatermarkRatio <= 0 {
		cfg.LowWatermarkRatio = def.LowWatermarkRatio
	}
	if cfg.CommitInterval <= 0 {
		cfg.CommitInterval = def.CommitInterval
	}
	if cfg.CommitEveryN <= 0 {
		cfg.CommitEveryN = def.CommitEveryN
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = def.ShutdownGrace
	}
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = def.EvalTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return cfg
}

var errEvalTimeout = errors.New("evaluation exceeded soft deadline")

// Run drives the pipeline until ctx is canceled, then performs the
// two-step shutdown §9 calls for: broadcast (ctx cancellation itself is
// the broadcast token), drain workers for at most ShutdownGrace, commit
// the highest contiguous completed offset per partition, return.
// Stragglers still running when the grace period expires are abandoned
// (Go has no mechanism to forcibly preempt a running goroutine); their
// offsets are never committed, so they are reprocessed on restart.
func (c *Consumer) Run(ctx context.Context) error {
	jobs := make(chan *Message, c.cfg.QueueCapacity)
	c.checkCommit = make(chan struct{}, 1)
	stopCommit := make(chan struct{})

	ingressDone := make(chan struct{})
	go func() {
		defer close(ingressDone)
		c.ingressLoop(ctx, jobs)
		close(jobs)
	}()

	workerDone := make(chan struct{}, c.cfg.Workers)
	for i := 0; i < c.cfg.Workers; i++ {
		go func() {
			c.workerLoop(ctx, jobs)
			workerDone <- struct{}{}
		}()
	}

	commitDone := make(chan struct{})
	go func() {
		defer close(commitDone)
		c.commitLoop(stopCommit)
	}()

	revoked := c.source.Revoked()
runLoop:
	for {
		select {
		case <-ctx.Done():
			break runLoop
		case partitions, ok := <-revoked:
			if !ok {
				revoked = nil // closed: stop selecting on it, avoid a busy loop
				continue
			}
			if len(partitions) == 0 {
				continue
			}
			c.handleRevocation(ctx, partitions)
		}
	}
	log.Infof("shutdown signal received, draining workers (grace=%s)", c.cfg.ShutdownGrace)

	drained := make(chan struct{})
	go func() {
		<-ingressDone
		for i := 0; i < c.cfg.Workers; i++ {
			<-workerDone
		}
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(c.cfg.ShutdownGrace):
		log.Warnf("shutdown grace of %s exceeded, abandoning in-flight stragglers", c.cfg.ShutdownGrace)
	}

	close(stopCommit)
	<-commitDone
	return ctx.Err()
}

func (c *Consumer) ingressLoop(ctx context.Context, jobs chan<- *Message) {
	paused := false
	for {
		if ctx.Err() != nil {
			return
		}

		inflight := atomic.LoadInt64(&c.inflight)
		high := int64(c.cfg.highWatermark())
		low := int64(c.cfg.lowWatermark())

		if !paused && inflight >= high {
			paused = true
			c.source.Pause("")
			log.Warnf("backpressure engaged, inflight=%d high_watermark=%d", inflight, high)
		}
		if paused {
			if inflight <= low {
				paused = false
				c.source.Resume("")
				log.Infof("backpressure released, inflight=%d low_watermark=%d", inflight, low)
			} else {
				select {
				case <-ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
				}
				continue
			}
		}

		msg, err := c.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Errorf("fetch error: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if msg == nil {
			continue
		}

		atomic.AddInt64(&c.inflight, 1)
		c.partitionMu.Lock()
		c.partitionInflight[msg.Partition]++
		c.partitionMu.Unlock()
		select {
		case jobs <- msg:
		case <-ctx.Done():
			atomic.AddInt64(&c.inflight, -1)
			c.partitionMu.Lock()
			c.partitionInflight[msg.Partition]--
			c.partitionMu.Unlock()
			return
		}
	}
}

func (c *Consumer) workerLoop(ctx context.Context, jobs <-chan *Message) {
	for msg := range jobs {
		c.process(ctx, msg)
		atomic.AddInt64(&c.inflight, -1)
		c.partitionMu.Lock()
		c.partitionInflight[msg.Partition]--
		c.partitionMu.Unlock()
	}
}

// handleRevocation implements §4.8 item 6: pause ingress for the revoked
// partitions, wait for their in-flight work to finish, commit their
// cursors, and leave them paused. Pausing and never resuming is the
// release: no further Fetch call will surface work for a partition this
// consumer no longer owns, so no message is processed twice within the
// assignment epoch that revoked it.
func (c *Consumer) handleRevocation(ctx context.Context, partitions []string) {
	log.Infof("partitions revoked, draining and committing: %v", partitions)
	for _, p := range partitions {
		c.source.Pause(p)
	}
	for _, p := range partitions {
		c.drainPartition(ctx, p)
	}
	for _, p := range partitions {
		offset, ok := c.cursor.highest(p)
		if !ok {
			continue
		}
		if err := c.committer.Commit(ctx, p, offset); err != nil {
			log.Errorf("revocation commit failed partition=%s offset=%d: %v", p, offset, err)
			continue
		}
		c.cursor.markCommitted(p, offset)
	}
	log.Infof("released partitions %v", partitions)
}

// drainPartition blocks until no in-flight message remains for partition
// or ctx is canceled.
func (c *Consumer) drainPartition(ctx context.Context, partition string) {
	for {
		c.partitionMu.Lock()
		n := c.partitionInflight[partition]
		c.partitionMu.Unlock()
		if n <= 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// process implements §4.8 step 2-3: decode, evaluate under a soft
// deadline, write matches with retrying backoff, route permanent
// failures to the dead-letter path, and complete the message's offset
// once its outcome is settled: the match write succeeded, or a DLQ write
// was attempted. A DLQ write that still fails after toDLQ's bounded
// attempts is logged, and the offset is completed all the same.
func (c *Consumer) process(ctx context.Context, msg *Message) {
	ev, err := event.DecodeJSON(msg.Payload)
	if err != nil {
		c.toDLQ(ctx, ReasonDecode, err, msg)
		c.completeOffset(msg)
		return
	}

	results, err := c.evaluateWithTimeout(ev)
	if err == errEvalTimeout {
		c.toDLQ(ctx, ReasonTimeout, fmt.Errorf("evaluation exceeded soft deadline of %s", c.cfg.EvalTimeout), msg)
		c.completeOffset(msg)
		return
	}
	if err != nil {
		c.toDLQ(ctx, ReasonEvaluation, err, msg)
		c.completeOffset(msg)
		return
	}

	if len(results) == 0 {
		c.completeOffset(msg)
		return
	}

	if !c.writeWithRetry(ctx, msg, toMatchJSON(results, msg)) {
		c.toDLQ(ctx, ReasonSink, fmt.Errorf("sink write failed after %d retries", c.cfg.dlqAfter()), msg)
	}
	c.completeOffset(msg)
}

type evalOutcome struct {
	results []ruleset.MatchResult
	err     error
}

// evaluateWithTimeout runs the ruleset's (CPU-bound, synchronous)
// evaluation on its own goroutine so a soft deadline can be enforced by
// select without blocking the worker indefinitely (§5 "Timeouts"). A
// straggler evaluation is not killed — it finishes and writes into the
// buffered outcome channel, which is simply never read again.
func (c *Consumer) evaluateWithTimeout(ev event.Event) ([]ruleset.MatchResult, error) {
	out := make(chan evalOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				out <- evalOutcome{err: fmt.Errorf("ruleset evaluation panicked: %v", p)}
			}
		}()
		out <- evalOutcome{results: c.rules.Evaluate(ev)}
	}()

	select {
	case o := <-out:
		return o.results, o.err
	case <-time.After(c.cfg.EvalTimeout):
		return nil, errEvalTimeout
	}
}

// writeWithRetry retries a sink write with capped exponential backoff
// and full jitter (§4.8 step 3), returning false once DLQAfterRetries
// has been exhausted.
func (c *Consumer) writeWithRetry(ctx context.Context, msg *Message, matches []MatchJSON) bool {
	retries := 0
	for {
		err := c.sink.Write(ctx, msg.Partition, msg.Offset, matches)
		if err == nil {
			return true
		}
		log.Warnf("sink write failed (retry %d) partition=%s offset=%d: %v", retries, msg.Partition, msg.Offset, err)
		retries++
		if retries > c.cfg.dlqAfter() {
			return false
		}
		delay := fullJitterBackoff(retries, c.cfg.BaseDelay, c.cfg.MaxDelay, c.cfg.Multiplier)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return false
		}
	}
}

// toDLQ writes a dead-letter record, retrying a bounded few times so a
// transient sink hiccup doesn't silently drop diagnostic context. If it
// never succeeds the message is still completed rather than stalling
// the partition forever; the failure is logged for operator follow-up.
func (c *Consumer) toDLQ(ctx context.Context, reason DLQReason, cause error, msg *Message) {
	rec := DLQRecord{
		Reason:    reason,
		Error:     cause.Error(),
		Payload:   msg.Payload,
		Offset:    offsetString(msg),
		Timestamp: time.Now(),
	}
	for attempt := 0; attempt < 3; attempt++ {
		if err := c.sink.WriteDLQ(ctx, rec); err == nil {
			return
		} else if attempt == 2 {
			log.Errorf("giving up writing DLQ record partition=%s offset=%d: %v", msg.Partition, msg.Offset, err)
			return
		} else {
			time.Sleep(fullJitterBackoff(attempt+1, c.cfg.BaseDelay, c.cfg.MaxDelay, c.cfg.Multiplier))
		}
	}
}

func (c *Consumer) completeOffset(msg *Message) {
	_, advanced := c.cursor.complete(msg.Partition, msg.Offset)
	if advanced {
		select {
		case c.checkCommit <- struct{}{}:
		default:
		}
	}
}

func (c *Consumer) commitLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.CommitInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.flushCommits(context.Background())
		case <-c.checkCommit:
			if c.cursor.totalDirty() >= c.cfg.CommitEveryN {
				c.flushCommits(context.Background())
			}
		case <-stop:
			c.flushCommits(context.Background())
			return
		}
	}
}

func (c *Consumer) flushCommits(ctx context.Context) {
	for partition, offset := range c.cursor.dirtyPartitions() {
		if err := c.committer.Commit(ctx, partition, offset); err != nil {
			log.Errorf("failed to commit partition=%s offset=%d: %v", partition, offset, err)
			continue
		}
		c.cursor.markCommitted(partition, offset)
	}
}

func offsetString(msg *Message) string {
	return fmt.Sprintf("%s:%d", msg.Partition, msg.Offset)
}

func toMatchJSON(results []ruleset.MatchResult, msg *Message) []MatchJSON {
	offset := offsetString(msg)
	out := make([]MatchJSON, len(results))
	for i, r := range results {
		out[i] = MatchJSON{
			RuleID:      r.RuleID,
			RuleTitle:   r.RuleTitle,
			Tags:        r.Tags,
			Level:       r.Level,
			Matched:     r.Matched,
			Applicable:  r.Applicable,
			EventOffset: offset,
		}
	}
	return out
}
