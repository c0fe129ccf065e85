package feedstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/feedstore/internal/flow"
)

// Store owns the current [State] of a feed reader and serializes every
// change to it.
//
// Callers submit [Action] values through [Store.Dispatch]. Each dispatch runs
// the reducer under a single lock, publishes the new state if it differs from
// the old one, emits effects and launches at most one feed service pipeline.
// Pipelines run on their own goroutine and re-enter the store by dispatching
// [Data] or [Error]; while one is in flight the state's Progress flag is set
// and further Refresh, Add and Delete actions are rejected with
// [ErrInProgress].
//
// The typical lifecycle is:
//
//	st, err := feedstore.New(service, feedstore.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	states := st.SubscribeState()
//	defer st.UnsubscribeState(states)
//
//	st.Dispatch(feedstore.Refresh{ForceLoad: false})
//
// All methods are safe for concurrent use.
type Store struct {
	service       FeedService
	logger        *slog.Logger
	taskTimeout   time.Duration
	dispatchTrace bool

	mu      sync.Mutex
	closed  bool
	state   *flow.StateFlow[State]
	effects *flow.SharedFlow[Effect]

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a [Store] backed by service.
//
// The initial state has Progress false, no feeds and no selection. The
// store does not dispatch anything on its own; send [Refresh] to load feeds.
//
// Returns an error if service is nil or any option is invalid.
func New(service FeedService, opts ...Option) (*Store, error) {
	if service == nil {
		return nil, errors.New("feed service is required")
	}

	cfg := defaultStoreConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Store{
		service:       service,
		logger:        logger,
		taskTimeout:   cfg.taskTimeout,
		dispatchTrace: cfg.dispatchTrace,
		state:         flow.NewStateFlow(State{Feeds: []Feed{}}),
		effects:       flow.NewSharedFlow[Effect](cfg.effectBuffer),
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// State returns the current state.
func (s *Store) State() State {
	return s.state.Value()
}

// SubscribeState returns a channel that yields the current state
// immediately and then every published replacement, in publish order.
//
// A subscriber that falls behind skips intermediate states but always
// receives the latest one. Caller must call [Store.UnsubscribeState] when
// done. The channel is closed by [Store.Close].
func (s *Store) SubscribeState() <-chan State {
	return s.state.Subscribe()
}

// UnsubscribeState removes a state subscription and closes its channel.
func (s *Store) UnsubscribeState(ch <-chan State) {
	s.state.Unsubscribe(ch)
}

// SubscribeEffects returns a channel receiving effects emitted from now on.
//
// Effects emitted before subscribing are never replayed. When the
// subscriber's buffer is full further effects are dropped for it. Caller
// must call [Store.UnsubscribeEffects] when done.
func (s *Store) SubscribeEffects() <-chan Effect {
	return s.effects.Subscribe()
}

// UnsubscribeEffects removes an effect subscription and closes its channel.
func (s *Store) UnsubscribeEffects(ch <-chan Effect) {
	s.effects.Unsubscribe(ch)
}

// Dispatch applies action to the current state.
//
// Dispatch returns once the transition has been published and its effects
// emitted. It never waits for the feed service; scheduled work runs in the
// background and dispatches its result later. Dispatching on a closed store
// is a no-op.
func (s *Store) Dispatch(action Action) {
	if action == nil {
		s.logger.Warn("nil action dispatched")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Debug("action dropped, store closed", "action", action.String())
		return
	}

	actionsDispatched.WithLabelValues(actionKind(action)).Inc()
	s.logger.Debug("action", "action", action.String())

	if s.dispatchTrace {
		s.emit(ErrorEffect{Err: ErrDispatchAction})
	}

	old := s.state.Value()
	t := reduce(old, action)

	for _, e := range t.effects {
		s.emit(e)
	}

	if !t.state.Equal(old) {
		s.state.Set(t.state)
		statesPublished.Inc()
		s.logger.Debug("state published", stateAttrs(t.state)...)
	}

	if t.task != nil {
		s.launch(*t.task)
	}
}

// AwaitIdle blocks until the store has no operation in flight and returns
// that state.
//
// Returns ctx.Err() if ctx is done first, or [ErrStoreClosed] if the store
// is closed while waiting.
func (s *Store) AwaitIdle(ctx context.Context) (State, error) {
	ch := s.SubscribeState()
	defer s.UnsubscribeState(ch)

	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return State{}, ErrStoreClosed
			}
			if !st.Progress {
				return st, nil
			}
		case <-ctx.Done():
			return State{}, ctx.Err()
		}
	}
}

// Close tears the store down.
//
// Close stops accepting dispatches, cancels any in-flight pipeline and
// waits for it to return, then closes every state and effect subscriber
// channel. Close is idempotent.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		s.wg.Wait()

		s.state.Close()
		s.effects.Close()
	})
}

// emit broadcasts e without blocking. Must be called with s.mu held.
func (s *Store) emit(e Effect) {
	effectsEmitted.Inc()
	s.effects.Emit(e)
}

// launch starts t in the background. Must be called with s.mu held so the
// WaitGroup cannot race with Close.
func (s *Store) launch(t task) {
	s.wg.Add(1)
	tasksInFlight.Inc()

	go func() {
		defer s.wg.Done()
		defer tasksInFlight.Dec()

		start := time.Now()
		result := s.run(t)

		outcome := "data"
		if _, failed := result.(Error); failed {
			outcome = "error"
		}
		taskDuration.WithLabelValues(t.op.String(), outcome).Observe(time.Since(start).Seconds())

		s.Dispatch(result)
	}()
}

// pipelineResult is what a feed service pipeline hands back to run.
type pipelineResult struct {
	feeds []Feed
	err   error
}

// run executes t against the feed service and converts the outcome into
// the action to dispatch.
//
// The pipeline itself runs on a separate goroutine so that a service
// ignoring its context cannot hold the store past the timeout or Close.
func (s *Store) run(t task) Action {
	ctx := s.ctx
	if s.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.taskTimeout)
		defer cancel()
	}

	done := make(chan pipelineResult, 1)
	go func() {
		feeds, err := s.safePipeline(ctx, t)
		done <- pipelineResult{feeds: feeds, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return Error{Err: s.classify(ctx, res.err)}
		}
		return Data{Feeds: res.feeds}
	case <-ctx.Done():
		return Error{Err: s.classify(ctx, ctx.Err())}
	}
}

// pipeline performs the feed service calls for t in order. Add and remove
// are followed by a non-forced reload of the feed set.
func (s *Store) pipeline(ctx context.Context, t task) ([]Feed, error) {
	switch t.op {
	case opAdd:
		if err := s.service.Add(ctx, t.url); err != nil {
			return nil, err
		}
	case opRemove:
		if err := s.service.Remove(ctx, t.url); err != nil {
			return nil, err
		}
	}
	return s.service.FetchAll(ctx, t.forceLoad)
}

// safePipeline calls pipeline with panic recovery.
// A panic is logged with its stack trace under a correlation ID and
// returned as an error carrying the same ID.
func (s *Store) safePipeline(ctx context.Context, t task) (feeds []Feed, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()

			s.logger.Error("feed service panic",
				"correlation_id", correlationID,
				"task", t.op.String(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)

			feeds = nil
			err = fmt.Errorf("feed service panic (correlation_id: %s)", correlationID)
		}
	}()
	return s.pipeline(ctx, t)
}

// classify tags err with the reason ctx ended, if it did.
func (s *Store) classify(ctx context.Context, err error) error {
	switch {
	case s.ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrStoreClosed, err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s: %w", ErrTaskTimeout, s.taskTimeout, err)
	default:
		return err
	}
}

// stateAttrs renders st as log attributes.
func stateAttrs(st State) []any {
	selected := ""
	if st.SelectedFeed != nil {
		selected = st.SelectedFeed.SourceURL
	}
	return []any{
		"progress", st.Progress,
		"feeds", len(st.Feeds),
		"selected", selected,
	}
}
