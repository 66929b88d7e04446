// Package ruleset holds the compiled, load-ordered collection of Sigma
// rules an embedding pipeline evaluates events against (§4.7).
package ruleset

import (
	"runtime"
	"sync"

	"sigmaflow/internal/errs"
	"sigmaflow/internal/event"
	"sigmaflow/internal/logger"
	"sigmaflow/internal/rule"
	"sigmaflow/internal/tree"
)

var log = logger.Component("ruleset")

// compiled pairs one rule's metadata with its compiled detection tree.
// Both are immutable after Load returns, so many evaluations may share
// a *compiled by reference without locking (§5 "Shared-resource policy").
type compiled struct {
	meta   *rule.Rule
	branch tree.Branch
}

// MatchResult is one matching rule's contribution to an event's
// evaluation, in the canonical JSON shape of §6.
type MatchResult struct {
	RuleID      string   `json:"rule_id"`
	RuleTitle   string   `json:"rule_title"`
	Tags        []string `json:"tags"`
	Level       string   `json:"level,omitempty"`
	Matched     bool     `json:"matched"`
	Applicable  bool     `json:"applicable"`
	EventOffset string   `json:"event_offset,omitempty"`
}

// Stats is a point-in-time snapshot of load accounting (§4.7).
type Stats struct {
	Total    int
	OK       int
	Failed   int
	ByKind   map[errs.Kind]int
}

// Ruleset is the compiled collection of loaded rules. The zero value is
// not usable; construct with New. Safe for concurrent Load and Evaluate
// calls: Load takes the write lock briefly to install new rules,
// Evaluate only ever takes the read lock (§5).
type Ruleset struct {
	mu      sync.RWMutex
	byID    map[string]*compiled
	order   []string
	workers int

	statsMu sync.Mutex
	stats   Stats

	jobs chan evalJob
}

// evalJob is one unit of work handed to the persistent evaluation pool:
// evaluate c against ev, send the outcome on result if it matched, then
// signal done either way so the caller knows when every job it submitted
// has been processed.
type evalJob struct {
	c      *compiled
	ev     event.Event
	result chan<- MatchResult
	done   chan<- struct{}
}

// Option configures a Ruleset at construction time.
type Option func(*Ruleset)

// WithWorkers overrides the evaluation worker-pool size (default
// runtime.NumCPU(), per §5's "worker pool with at-most-N concurrent
// evaluations").
func WithWorkers(n int) Option {
	return func(r *Ruleset) {
		if n > 0 {
			r.workers = n
		}
	}
}

// New creates an empty Ruleset and starts its persistent evaluation
// worker pool (§5 "worker pool with at-most-N concurrent evaluations").
// The pool lives for the process's lifetime; Ruleset carries no Close,
// matching the embedding application's own lifetime (§1).
func New(opts ...Option) *Ruleset {
	r := &Ruleset{
		byID:    make(map[string]*compiled),
		workers: runtime.NumCPU(),
		stats:   Stats{ByKind: make(map[errs.Kind]int)},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers <= 0 {
		r.workers = 1
	}
	r.jobs = make(chan evalJob)
	for i := 0; i < r.workers; i++ {
		go r.evalWorker()
	}
	return r
}

// evalWorker is one of the pool's long-lived goroutines, reused across
// every Evaluate call instead of being spawned and torn down per event.
func (r *Ruleset) evalWorker() {
	for j := range r.jobs {
		if res, ok := evaluateOne(j.c, j.ev); ok {
			j.result <- res
		}
		j.done <- struct{}{}
	}
}

// Load compiles every rule document found in path's bytes and installs
// it into the ruleset (§4.7). Load is idempotent by rule id: loading a
// file whose rule id was already present replaces the prior compiled
// rule rather than duplicating it, and the replacement is logged once.
// Per-document compile failures are logged, counted, and skipped; Load
// itself returns an error only when rule.LoadFile rejects the file as a
// whole (size limit, identifier budget, or any document that fails to
// decode as YAML), in which case none of the file's rules are installed.
func (r *Ruleset) Load(path string, data []byte, opts rule.LoaderOptions) error {
	running := r.runningIdentifiers()
	rules, err := rule.LoadFile(path, data, opts, running)
	if err != nil {
		r.recordFailure(path, err)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rl := range rules {
		branch, err := tree.Build(rl)
		if err != nil {
			r.recordFailureLocked(path, err)
			continue
		}
		r.installLocked(rl, branch)
	}
	return nil
}

func (r *Ruleset) installLocked(rl *rule.Rule, branch tree.Branch) {
	_, exists := r.byID[rl.ID]
	if exists {
		log.Warnf("replacing previously loaded rule %q (source %s)", rl.ID, rl.SourcePath)
	} else {
		r.order = append(r.order, rl.ID)
	}
	r.byID[rl.ID] = &compiled{meta: rl, branch: branch}

	if !exists {
		r.statsMu.Lock()
		r.stats.Total++
		r.stats.OK++
		r.statsMu.Unlock()
		rulesLoadedTotal.Inc()
	}
}

func (r *Ruleset) recordFailure(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recordFailureLocked(path, err)
}

func (r *Ruleset) recordFailureLocked(path string, err error) {
	kind := errs.Classify(err)
	log.Errorf("skipping rule from %s: %v", path, err)

	r.statsMu.Lock()
	r.stats.Total++
	r.stats.Failed++
	r.stats.ByKind[kind]++
	r.statsMu.Unlock()
	rulesFailedTotal.WithLabelValues(string(kind)).Inc()
}

func (r *Ruleset) runningIdentifiers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, c := range r.byID {
		total += len(c.meta.Identifiers())
	}
	return total
}

// Stats returns a snapshot of the load-time accounting (§4.7).
func (r *Ruleset) Stats() Stats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	out := Stats{Total: r.stats.Total, OK: r.stats.OK, Failed: r.stats.Failed, ByKind: make(map[errs.Kind]int, len(r.stats.ByKind))}
	for k, v := range r.stats.ByKind {
		out.ByKind[k] = v
	}
	return out
}

// Len reports the number of currently loaded rules.
func (r *Ruleset) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Evaluate runs every loaded rule's compiled tree against ev across the
// persistent evaluation pool started by New (§4.7, §5), returning every
// rule whose tree reported matched=true. Order of the returned slice is
// not guaranteed (§4.7). A rule tree that panics is treated as a
// non-match and recorded as a diagnostic evaluation error rather than
// propagating the panic to the caller, matching §4.7's "should be
// impossible at runtime" failure mode. Reusing the pool's goroutines
// across calls (rather than spinning up a fresh set per event) keeps the
// per-event cost proportional to the rule count, not to goroutine/channel
// setup.
func (r *Ruleset) Evaluate(ev event.Event) []MatchResult {
	r.mu.RLock()
	snapshot := make([]*compiled, 0, len(r.order))
	for _, id := range r.order {
		snapshot = append(snapshot, r.byID[id])
	}
	r.mu.RUnlock()

	if len(snapshot) == 0 {
		return nil
	}

	results := make(chan MatchResult, len(snapshot))
	done := make(chan struct{}, len(snapshot))

	for _, c := range snapshot {
		r.jobs <- evalJob{c: c, ev: ev, result: results, done: done}
	}
	for range snapshot {
		<-done
	}
	close(results)

	out := make([]MatchResult, 0, len(results))
	for res := range results {
		out = append(out, res)
	}
	return out
}

func evaluateOne(c *compiled, ev event.Event) (res MatchResult, matched bool) {
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("rule %q panicked during evaluation: %v", c.meta.ID, p)
			ruleEvalErrorsTotal.Inc()
			matched = false
		}
	}()

	m, applicable := c.branch.Evaluate(ev)
	if !m {
		return MatchResult{}, false
	}
	return MatchResult{
		RuleID:     c.meta.ID,
		RuleTitle:  c.meta.Title,
		Tags:       c.meta.Tags,
		Level:      c.meta.Level,
		Matched:    m,
		Applicable: applicable,
	}, true
}
