// Package resilience guards calls into shared dependencies so a failing
// store fails requests fast instead of piling up timeouts.
package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned instead of calling a dependency the breaker
// considers down.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is a breaker state. Its numeric value is what the breaker_state
// gauge reports.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

var stateNames = [...]string{Closed: "closed", Open: "open", HalfOpen: "half_open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

const (
	defaultTarget       = "store"
	defaultFailureRatio = 0.5
	defaultOpenFor      = 30 * time.Second
)

// window counts outcomes while closed. It is halved once it holds twice the
// minimum sample so old outcomes fade instead of accumulating forever.
type window struct{ ok, failed int }

func (w *window) add(success bool) {
	if success {
		w.ok++
	} else {
		w.failed++
	}
}

func (w window) total() int { return w.ok + w.failed }

func (w window) failureRatio() float64 {
	if w.total() == 0 {
		return 0
	}
	return float64(w.failed) / float64(w.total())
}

func (w *window) decay() {
	w.ok = (w.ok + 1) / 2
	w.failed = (w.failed + 1) / 2
}

// Breaker opens once at least minRequests outcomes have been seen and the
// failure ratio reaches the threshold. After openFor it lets a single probe
// through; the probe's outcome closes or re-opens it.
type Breaker struct {
	minRequests  int
	failureRatio float64
	openFor      time.Duration

	mu       sync.Mutex
	state    State
	counts   window
	openedAt time.Time
	probing  bool
	target   string
	logger   zerolog.Logger
	now      func() time.Time
}

// NewBreaker clamps its arguments to usable values: at least one request, a
// ratio in (0,1] and a positive open period.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	if failureRatio <= 0 {
		failureRatio = defaultFailureRatio
	}
	if openFor <= 0 {
		openFor = defaultOpenFor
	}
	return &Breaker{
		minRequests:  max(minRequests, 1),
		failureRatio: min(failureRatio, 1),
		openFor:      openFor,
		target:       defaultTarget,
		logger:       zerolog.Nop(),
		now:          time.Now,
	}
}

// WithTarget names the guarded dependency in metrics and logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if target = strings.TrimSpace(target); target != "" {
		b.target = target
	}
	b.publishState()
	return b
}

func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
	return b
}

// WithLogger sets the fallback logger for transitions; a logger carried on
// the call context takes precedence.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
	return b
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. An open breaker past its open
// period turns half-open and admits exactly one probe.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.openedAt) < b.openFor {
			return false
		}
		b.moveTo(ctx, HalfOpen)
	case HalfOpen:
		if b.probing {
			return false
		}
	}
	b.probing = true
	return true
}

// Report feeds the outcome of an allowed call back into the breaker.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		b.probing = false
		if success {
			b.moveTo(ctx, Closed)
		} else {
			b.moveTo(ctx, Open)
		}
		return
	}

	b.counts.add(success)
	switch {
	case b.counts.total() < b.minRequests:
	case b.counts.failureRatio() >= b.failureRatio:
		b.moveTo(ctx, Open)
	case b.counts.total() > 2*b.minRequests:
		b.counts.decay()
	}
}

// Do calls fn when allowed and reports its outcome. Errors matched by ignore
// are the caller's fault, not the dependency's, and count as successes. A
// call whose ctx ended before fn returned says nothing about the dependency:
// it is not counted and, while half-open, frees the probe slot.
// Timeouts meant to count as failures belong inside fn.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error, ignore func(error) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.Allow(ctx) {
		return ErrOpenCircuit
	}
	err := fn(ctx)
	if ctx.Err() != nil {
		b.release()
		return err
	}
	b.Report(ctx, err == nil || (ignore != nil && ignore(err)))
	return err
}

// release gives back an admitted call without recording an outcome.
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == HalfOpen {
		b.probing = false
	}
}

func (b *Breaker) moveTo(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		b.publishState()
		return
	}
	b.state = next
	b.counts = window{}
	switch next {
	case Open:
		b.openedAt = b.now()
	case Closed:
		b.openedAt = time.Time{}
	}
	b.publishState()

	BreakerTransitions.WithLabelValues(b.target, prev.String(), next.String()).Inc()
	if next == Open {
		BreakerOpenedTotal.WithLabelValues(b.target).Inc()
	}
	b.log(ctx, prev, next)
}

func (b *Breaker) publishState() {
	BreakerState.WithLabelValues(b.target).Set(float64(b.state))
}

func (b *Breaker) log(ctx context.Context, from, to State) {
	logger := b.logger
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		logger = *l
	}
	evt := logger.Info().
		Str("target", b.target).
		Str("from_state", from.String()).
		Str("to_state", to.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}
