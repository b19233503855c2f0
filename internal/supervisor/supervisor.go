package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/observe"
)

// State is a node's position in the recovery state machine.
type State int32

const (
	Healthy State = iota
	Errored
	Recovering
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Errored:
		return "errored"
	case Recovering:
		return "recovering"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options tunes retry scheduling.
type Options struct {
	// BaseDelay is the first retry delay; it doubles per attempt.
	BaseDelay time.Duration
	// MaxDelay caps the backoff.
	MaxDelay time.Duration
	// MaxAttempts is the automatic retry cap.
	MaxAttempts int
	// Now supplies timestamps; defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions are the production defaults.
func DefaultOptions() Options {
	return Options{
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		MaxAttempts: 3,
	}
}

// RetryFunc is how the supervisor asks the engine to recompute a node. It is
// invoked from a timer goroutine; the engine serializes it internally.
type RetryFunc func(nodeID string)

type nodeState struct {
	state      State
	attempts   int
	errorCount int
	lastErr    error
	erroredAt  time.Time
	timer      *time.Timer
}

// Aggregate is the supervisor-wide metric snapshot.
type Aggregate struct {
	TotalErrors   int
	ActiveErrored int
	MeanRecovery  time.Duration
}

// Supervisor tracks per-node error state and schedules bounded retries.
type Supervisor struct {
	mu    sync.Mutex
	nodes map[string]*nodeState
	opts  Options
	retry RetryFunc
	obs   observe.Observer
	now   func() time.Time

	totalErrors   int
	recoveries    int
	totalDowntime time.Duration
}

// New creates a supervisor. retry may be nil, in which case nodes only
// recover through data changes or manual retries.
func New(opts Options, retry RetryFunc, obs observe.Observer) *Supervisor {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultOptions().BaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultOptions().MaxDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOptions().MaxAttempts
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if obs == nil {
		obs = observe.Nop{}
	}
	if retry == nil {
		retry = func(string) {}
	}
	return &Supervisor{
		nodes: make(map[string]*nodeState),
		opts:  opts,
		retry: retry,
		obs:   obs,
		now:   now,
	}
}

// ReportFailure records one compute failure for a node, transitions it to
// Errored, and schedules an automatic retry while under the attempt cap.
func (s *Supervisor) ReportFailure(ctx context.Context, nodeID string, err error) {
	logger := ctxlog.FromContext(ctx)

	s.mu.Lock()
	ns, ok := s.nodes[nodeID]
	if !ok {
		ns = &nodeState{}
		s.nodes[nodeID] = ns
	}
	if ns.state == Healthy {
		ns.erroredAt = s.now()
	}
	ns.state = Errored
	ns.errorCount++
	ns.attempts++
	ns.lastErr = err
	s.totalErrors++
	attempt := ns.attempts

	var delay time.Duration
	scheduled := attempt <= s.opts.MaxAttempts
	if scheduled {
		delay = s.backoff(attempt)
		s.armRetryLocked(nodeID, ns, delay)
	} else if ns.timer != nil {
		ns.timer.Stop()
		ns.timer = nil
	}
	s.mu.Unlock()

	s.obs.NodeErrored(nodeID, attempt, err)
	if scheduled {
		logger.Warn("Node errored, retry scheduled.", "node_id", nodeID, "attempt", attempt, "delay", delay, "error", err)
	} else {
		logger.Error("Node errored past retry cap, manual intervention required.", "node_id", nodeID, "attempts", attempt, "error", err)
	}
}

// armRetryLocked starts (or restarts) the retry timer. Callers hold s.mu.
func (s *Supervisor) armRetryLocked(nodeID string, ns *nodeState, delay time.Duration) {
	if ns.timer != nil {
		ns.timer.Stop()
	}
	ns.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		ns, ok := s.nodes[nodeID]
		if !ok || ns.state != Errored {
			s.mu.Unlock()
			return
		}
		ns.state = Recovering
		ns.timer = nil
		s.mu.Unlock()
		s.retry(nodeID)
	})
}

// backoff doubles the base delay per attempt, capped at MaxDelay.
func (s *Supervisor) backoff(attempt int) time.Duration {
	delay := s.opts.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.opts.MaxDelay {
			return s.opts.MaxDelay
		}
	}
	if delay > s.opts.MaxDelay {
		return s.opts.MaxDelay
	}
	return delay
}

// ReportSuccess marks a node's compute as having succeeded. If the node was
// errored or recovering this completes the recovery and records downtime.
func (s *Supervisor) ReportSuccess(ctx context.Context, nodeID string) {
	s.mu.Lock()
	ns, ok := s.nodes[nodeID]
	if !ok || ns.state == Healthy {
		s.mu.Unlock()
		return
	}
	downtime := s.now().Sub(ns.erroredAt)
	attempts := ns.attempts
	ns.state = Healthy
	ns.attempts = 0
	ns.lastErr = nil
	if ns.timer != nil {
		ns.timer.Stop()
		ns.timer = nil
	}
	s.recoveries++
	s.totalDowntime += downtime
	s.mu.Unlock()

	s.obs.NodeRecovered(nodeID, attempts, downtime)
	ctxlog.FromContext(ctx).Info("Node recovered.", "node_id", nodeID, "attempts", attempts, "downtime", downtime)
}

// Reset clears the attempt counter after the node's own data changed,
// re-enabling automatic retries for a node stuck past the cap. Returns true
// when the node was errored and a retry was re-armed.
func (s *Supervisor) Reset(nodeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.nodes[nodeID]
	if !ok || ns.state == Healthy {
		return false
	}
	ns.attempts = 0
	if ns.state == Errored && ns.timer == nil {
		s.armRetryLocked(nodeID, ns, s.opts.BaseDelay)
	}
	return true
}

// RetryNow requests an immediate manual retry for an errored node.
func (s *Supervisor) RetryNow(nodeID string) error {
	s.mu.Lock()
	ns, ok := s.nodes[nodeID]
	if !ok || ns.state == Healthy {
		s.mu.Unlock()
		return fmt.Errorf("node %q is not errored", nodeID)
	}
	if ns.timer != nil {
		ns.timer.Stop()
		ns.timer = nil
	}
	ns.state = Recovering
	ns.attempts = 0
	s.mu.Unlock()

	s.retry(nodeID)
	return nil
}

// Remove forgets a node and cancels its pending retry timer.
func (s *Supervisor) Remove(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ns, ok := s.nodes[nodeID]; ok && ns.timer != nil {
		ns.timer.Stop()
	}
	delete(s.nodes, nodeID)
}

// StateOf returns a node's current recovery state.
func (s *Supervisor) StateOf(nodeID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ns, ok := s.nodes[nodeID]; ok {
		return ns.state
	}
	return Healthy
}

// ErrorCount returns the cumulative failure count for a node.
func (s *Supervisor) ErrorCount(nodeID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ns, ok := s.nodes[nodeID]; ok {
		return ns.errorCount
	}
	return 0
}

// LastError returns the most recent failure for a node, or nil.
func (s *Supervisor) LastError(nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ns, ok := s.nodes[nodeID]; ok {
		return ns.lastErr
	}
	return nil
}

// Metrics returns the supervisor-wide aggregate snapshot.
func (s *Supervisor) Metrics() Aggregate {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg := Aggregate{TotalErrors: s.totalErrors}
	for _, ns := range s.nodes {
		if ns.state != Healthy {
			agg.ActiveErrored++
		}
	}
	if s.recoveries > 0 {
		agg.MeanRecovery = s.totalDowntime / time.Duration(s.recoveries)
	}
	return agg
}

// Close cancels every pending retry timer.
func (s *Supervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ns := range s.nodes {
		if ns.timer != nil {
			ns.timer.Stop()
			ns.timer = nil
		}
	}
}
