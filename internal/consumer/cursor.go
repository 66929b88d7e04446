package consumer

import "sync"

// cursorTracker advances a per-partition commit cursor strictly through
// contiguous completed offsets (§4.8 step 5, §5 "Ordering guarantees"),
// buffering out-of-order completions from the worker pool until the gap
// in front of them closes.
type cursorTracker struct {
	mu         sync.Mutex
	next       map[string]int64          // next offset each partition expects, to advance the cursor past
	pending    map[string]map[int64]bool // completions received ahead of next
	committed  map[string]int64          // highest offset actually committed per partition
	dirtySince map[string]int            // completions advanced since last commit, per partition
}

func newCursorTracker() *cursorTracker {
	return &cursorTracker{
		next:       make(map[string]int64),
		pending:    make(map[string]map[int64]bool),
		committed:  make(map[string]int64),
		dirtySince: make(map[string]int),
	}
}

// complete records offset as done for partition and returns the new
// highest contiguous completed offset for that partition along with
// whether it advanced (so the caller can decide whether a commit is
// warranted).
func (c *cursorTracker) complete(partition string, offset int64) (advanced int64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, seen := c.next[partition]; !seen {
		c.next[partition] = offset
		c.pending[partition] = make(map[int64]bool)
	}

	if offset < c.next[partition] {
		// Already advanced past this offset by an earlier completion;
		// nothing to do (can happen on a duplicate completion signal).
		return c.next[partition] - 1, false
	}

	c.pending[partition][offset] = true

	advancedAny := false
	for c.pending[partition][c.next[partition]] {
		delete(c.pending[partition], c.next[partition])
		c.next[partition]++
		advancedAny = true
	}
	if advancedAny {
		c.dirtySince[partition] += 1
	}
	return c.next[partition] - 1, advancedAny
}

// dirtyPartitions returns partitions whose contiguous cursor has
// advanced since the last markCommitted call, together with the offset
// to commit.
func (c *cursorTracker) dirtyPartitions() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64)
	for p, n := range c.dirtySince {
		if n == 0 {
			continue
		}
		highest := c.next[p] - 1
		if highest < 0 {
			continue
		}
		if last, done := c.committed[p]; done && highest == last {
			continue
		}
		out[p] = highest
	}
	return out
}

// highest reports the current highest contiguous completed offset for
// partition, regardless of whether it has been committed yet, for a
// targeted commit outside the normal dirty-partition cadence (e.g. a
// partition revocation).
func (c *cursorTracker) highest(partition string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, seen := c.next[partition]
	if !seen || next == 0 {
		return 0, false
	}
	return next - 1, true
}

func (c *cursorTracker) markCommitted(partition string, offset int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed[partition] = offset
	c.dirtySince[partition] = 0
}

// totalDirty reports how many advancing completions have accumulated
// across all partitions since their last commit, for the "every 1000
// messages" cadence (§4.8 step 5).
func (c *cursorTracker) totalDirty() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.dirtySince {
		total += n
	}
	return total
}
