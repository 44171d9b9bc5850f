package live

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"landScope/internal/pubsub"
)

var (
	// ErrAlreadySubscribed is returned when Subscribe is called twice.
	ErrAlreadySubscribed = errors.New("subscriber already started")
	// ErrHeadsClosed ends a subscriber whose head source stopped on its own.
	ErrHeadsClosed = errors.New("head source closed")
)

// State is the subscriber lifecycle position.
type State int

const (
	StateIdle State = iota
	StateListening
	StateRefreshing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateRefreshing:
		return "refreshing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Policy decides what happens to a trigger that arrives mid-refresh.
type Policy int

const (
	// PolicyDrop swallows the trigger.
	PolicyDrop Policy = iota
	// PolicyCoalesce runs exactly one more refresh after the current one,
	// at the newest block seen.
	PolicyCoalesce
)

// ParsePolicy accepts "drop" or "coalesce".
func ParsePolicy(value string) (Policy, error) {
	switch value {
	case "", "drop":
		return PolicyDrop, nil
	case "coalesce":
		return PolicyCoalesce, nil
	default:
		return PolicyDrop, fmt.Errorf("unknown overlap policy %q", value)
	}
}

const DefaultDebounce = 500 * time.Millisecond

// RefreshFunc rebuilds the read model at a block.
type RefreshFunc[T any] func(ctx context.Context, block uint64) (T, error)

// Options tunes a Subscriber.
type Options[T any] struct {
	// Debounce collapses heads arriving within this window of the first
	// unserved head into one refresh. Zero refreshes on every head.
	Debounce time.Duration
	Policy   Policy
	// RefreshOnSubscribe runs one refresh at block 0 before any head arrives.
	RefreshOnSubscribe bool
	// Equal reports whether two values are the same; defaults to reflect.DeepEqual.
	Equal func(a, b T) bool
	// Bus receives every result; optional.
	Bus    *pubsub.Bus[Result[T]]
	Logger *zap.Logger
}

// Subscriber re-runs a refresh on new blocks and publishes the outcome.
// A single goroutine owns scheduling; results are only published from it.
type Subscriber[T any] struct {
	source  HeadSource
	refresh RefreshFunc[T]
	opts    Options[T]
	logger  *zap.Logger

	mu       sync.Mutex
	state    State
	latest   Result[T]
	hasValue bool
	cancel   context.CancelFunc
	done     chan struct{}
	err      error

	refreshes atomic.Uint64
	dropped   atomic.Uint64
}

type refreshDone[T any] struct {
	block uint64
	value T
	err   error
}

func NewSubscriber[T any](source HeadSource, refresh RefreshFunc[T], opts Options[T]) *Subscriber[T] {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Equal == nil {
		opts.Equal = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}
	return &Subscriber[T]{
		source:  source,
		refresh: refresh,
		opts:    opts,
		logger:  opts.Logger,
		state:   StateIdle,
	}
}

// Subscribe starts listening for heads. It can be called once.
func (s *Subscriber[T]) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrAlreadySubscribed
	}

	runCtx, cancel := context.WithCancel(ctx)
	heads, err := s.source.Heads(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe heads: %w", err)
	}

	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateListening
	go s.run(runCtx, heads)
	return nil
}

// Unsubscribe stops the subscriber and cancels any in-flight refresh. Once it
// returns no further result is published; a refresh that finishes later is
// discarded. It is idempotent.
func (s *Subscriber[T]) Unsubscribe() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.state = StateClosed
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the subscriber stops, or nil before Subscribe.
func (s *Subscriber[T]) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err reports why the subscriber stopped on its own, nil while running or
// after Unsubscribe.
func (s *Subscriber[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// State reports the lifecycle position.
func (s *Subscriber[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Latest returns the most recent result, false before the first refresh.
func (s *Subscriber[T]) Latest() (Result[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, !s.latest.At.IsZero()
}

// Refreshes reports how many refreshes were started.
func (s *Subscriber[T]) Refreshes() uint64 {
	return s.refreshes.Load()
}

// Dropped reports how many triggers were swallowed by the overlap policy.
func (s *Subscriber[T]) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Subscriber[T]) run(ctx context.Context, heads <-chan uint64) {
	var (
		timer      *time.Timer
		timerC     <-chan time.Time
		pending    bool
		pendingAt  uint64
		inflight   bool
		closing    bool
		rerun      bool
		rerunBlock uint64
	)
	results := make(chan refreshDone[T], 1)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
		s.setState(StateClosed)
		close(s.done)
	}()

	start := func(block uint64) {
		inflight = true
		s.setState(StateRefreshing)
		s.refreshes.Add(1)
		s.logger.Debug("refresh start", zap.Uint64("block", block))
		go func() {
			value, err := s.refresh(ctx, block)
			results <- refreshDone[T]{block: block, value: value, err: err}
		}()
	}

	trigger := func(block uint64) {
		if !inflight {
			start(block)
			return
		}
		switch s.opts.Policy {
		case PolicyCoalesce:
			rerun = true
			if block > rerunBlock {
				rerunBlock = block
			}
		default:
			s.dropped.Add(1)
			s.logger.Debug("refresh trigger dropped", zap.Uint64("block", block))
		}
	}

	if s.opts.RefreshOnSubscribe {
		start(0)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case block, ok := <-heads:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn("head source closed")
				heads = nil
				closing = true
				pending = false
				timerC = nil
				if !inflight {
					s.finish(ErrHeadsClosed)
					return
				}
				continue
			}
			if s.opts.Debounce <= 0 {
				trigger(block)
				continue
			}
			if block > pendingAt || !pending {
				pendingAt = block
			}
			if !pending {
				pending = true
				timer = time.NewTimer(s.opts.Debounce)
				timerC = timer.C
			}

		case <-timerC:
			pending = false
			timerC = nil
			trigger(pendingAt)

		case done := <-results:
			inflight = false
			if ctx.Err() != nil {
				return
			}
			s.apply(done)
			if closing {
				s.finish(ErrHeadsClosed)
				return
			}
			if rerun {
				rerun = false
				start(rerunBlock)
				rerunBlock = 0
			} else {
				s.setState(StateListening)
			}
		}
	}
}

func (s *Subscriber[T]) apply(done refreshDone[T]) {
	s.mu.Lock()
	result := Result[T]{Block: done.block, At: time.Now().UTC()}
	if done.err != nil {
		result.Outcome = OutcomeFailed
		result.Err = done.err
		result.Value = s.latest.Value
		result.Stale = s.hasValue
	} else {
		result.Outcome = OutcomeUpdated
		if s.hasValue && s.opts.Equal(s.latest.Value, done.value) {
			result.Outcome = OutcomeUnchanged
		}
		result.Value = done.value
		s.hasValue = true
	}
	s.latest = result
	s.mu.Unlock()

	if done.err != nil {
		s.logger.Warn("refresh failed", zap.Error(done.err), zap.Uint64("block", done.block), zap.Bool("stale", result.Stale))
	} else {
		s.logger.Debug("refresh complete", zap.Uint64("block", done.block), zap.String("outcome", string(result.Outcome)))
	}
	if s.opts.Bus != nil {
		s.opts.Bus.Publish(result)
	}
}

// finish publishes a terminal failure carrying the last good value.
func (s *Subscriber[T]) finish(err error) {
	s.mu.Lock()
	s.err = err
	result := Result[T]{
		Outcome: OutcomeFailed,
		Value:   s.latest.Value,
		Err:     err,
		Block:   s.latest.Block,
		At:      time.Now().UTC(),
		Stale:   true,
	}
	s.latest = result
	s.mu.Unlock()

	s.logger.Warn("subscriber stopped", zap.Error(err))
	if s.opts.Bus != nil {
		s.opts.Bus.Publish(result)
	}
}

func (s *Subscriber[T]) setState(state State) {
	s.mu.Lock()
	if s.state != StateClosed {
		s.state = state
	}
	s.mu.Unlock()
}
