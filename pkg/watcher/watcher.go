// Package watcher implements the rotation watch loop: an initial synchronous
// load of every tracked credential followed by a recurring poll that detects
// out-of-band rotation and fires a one-shot restart callback.
//
// The watcher never restarts anything itself. The callback is expected to
// initiate a graceful shutdown so process supervision brings the application
// back up with fresh credentials; polling stops once the callback has fired.
package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/systmms/credwatch/internal/logging"
	"github.com/systmms/credwatch/pkg/credential"
)

// DefaultInterval is the poll interval used when none is configured.
const DefaultInterval = time.Minute

// Store is the secret store client boundary consumed by the watcher. An
// empty payload is treated identically to a fetch error.
type Store interface {
	Fetch(ctx context.Context, key string) (string, error)
}

// Parser interprets a raw store payload as a credential value. Must be pure:
// the same payload always yields the same value or the same failure.
type Parser func(raw string) (credential.Value, error)

// TrackedSecret declares one secret under observation.
type TrackedSecret struct {
	// Name identifies the secret in the snapshot (e.g. "broker").
	Name string

	// StoreKey is the store entry fetched, used verbatim.
	StoreKey string

	// Parse interprets fetched payloads. Defaults to credential.Parse.
	Parse Parser

	// Preloaded is the local-development override. When non-nil, the secret
	// is treated as already loaded and is never fetched from the store, in
	// the initial pass or any poll cycle.
	Preloaded *credential.Value
}

// InvalidCredentialError is the single fatal error: the initial pass could
// not obtain a valid value for the named store key. Startup must abort.
type InvalidCredentialError struct {
	StoreKey string
	Err      error
}

func (e *InvalidCredentialError) Error() string {
	return fmt.Sprintf("invalid credential for store key %q: %v", e.StoreKey, e.Err)
}

func (e *InvalidCredentialError) Unwrap() error {
	return e.Err
}

// watchState tracks the per-instance lifecycle: uninitialized -> loading ->
// ready(polling), terminating in rotationDetected or failed.
type watchState int

const (
	stateUninitialized watchState = iota
	stateLoading
	stateReady
	stateRotationDetected
	stateFailed
	stateStopped
)

// Config configures a Watcher.
type Config struct {
	// Store fetches raw payloads. Required unless every secret is preloaded.
	Store Store

	// Secrets are checked in declared order each cycle. At least one entry.
	Secrets []TrackedSecret

	// Interval between poll cycles. Defaults to DefaultInterval.
	Interval time.Duration

	// Clock drives the poll schedule. Defaults to the wall clock; tests
	// inject clock.NewMock() to advance virtual time deterministically.
	Clock clock.Clock

	// Logger receives per-cycle diagnostics. Defaults to a quiet logger.
	Logger *logging.Logger

	// Metrics records poll activity. Optional.
	Metrics *Metrics
}

// trackedSecret is the internal mutable state for one tracked entry. The
// cache is only ever overwritten with a successfully parsed value.
type trackedSecret struct {
	name      string
	storeKey  string
	parse     Parser
	preloaded bool
	lastKnown credential.Value
}

// Watcher observes a fixed set of tracked secrets for rotation.
type Watcher struct {
	store    Store
	secrets  []*trackedSecret
	interval time.Duration
	clock    clock.Clock
	logger   *logging.Logger
	metrics  *Metrics

	mu       sync.Mutex
	state    watchState
	snapshot *credential.Snapshot
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a Watcher from the given configuration.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Secrets) == 0 {
		return nil, fmt.Errorf("watcher: at least one tracked secret is required")
	}

	secrets := make([]*trackedSecret, 0, len(cfg.Secrets))
	seen := make(map[string]bool, len(cfg.Secrets))
	needsStore := false
	for _, s := range cfg.Secrets {
		if s.Name == "" || s.StoreKey == "" {
			return nil, fmt.Errorf("watcher: tracked secret needs both a name and a store key")
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("watcher: duplicate tracked secret name %q", s.Name)
		}
		seen[s.Name] = true

		ts := &trackedSecret{
			name:     s.Name,
			storeKey: s.StoreKey,
			parse:    s.Parse,
		}
		if ts.parse == nil {
			ts.parse = credential.Parse
		}
		if s.Preloaded != nil && !s.Preloaded.IsZero() {
			ts.preloaded = true
			ts.lastKnown = *s.Preloaded
		} else {
			needsStore = true
		}
		secrets = append(secrets, ts)
	}

	if needsStore && cfg.Store == nil {
		return nil, fmt.Errorf("watcher: a store is required unless every secret is preloaded")
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New(false, false)
	}

	return &Watcher{
		store:    cfg.Store,
		secrets:  secrets,
		interval: interval,
		clock:    clk,
		logger:   logger,
		metrics:  cfg.Metrics,
		state:    stateUninitialized,
		done:     make(chan struct{}),
	}, nil
}

// Start performs the initial synchronous load of every tracked secret and,
// on success, begins the recurring poll. onRotation is invoked at most once,
// from the polling goroutine, after a cycle observes any rotation; it should
// trigger a graceful shutdown and must not block indefinitely.
//
// If any secret without a preloaded override cannot be fetched and parsed,
// Start fails with *InvalidCredentialError and no polling is scheduled.
func (w *Watcher) Start(ctx context.Context, onRotation func()) (*credential.Snapshot, error) {
	if onRotation == nil {
		return nil, fmt.Errorf("watcher: onRotation callback is required")
	}

	w.mu.Lock()
	if w.state != stateUninitialized {
		w.mu.Unlock()
		return nil, fmt.Errorf("watcher: already started")
	}
	w.state = stateLoading
	w.mu.Unlock()

	values := make(map[string]credential.Value, len(w.secrets))
	for _, s := range w.secrets {
		if s.preloaded {
			w.logger.Debug("secret %s has a local override, skipping store fetch", s.name)
			values[s.name] = s.lastKnown
			continue
		}

		v, err := w.fetchAndParse(ctx, s)
		if err != nil {
			w.setState(stateFailed)
			w.metricsState(stateFailed)
			return nil, &InvalidCredentialError{StoreKey: s.storeKey, Err: err}
		}
		s.lastKnown = v
		values[s.name] = v
	}

	snapshot := credential.NewSnapshot(values)

	pollCtx, cancel := context.WithCancel(ctx)

	w.mu.Lock()
	w.snapshot = snapshot
	w.cancel = cancel
	w.state = stateReady
	w.mu.Unlock()
	w.metricsState(stateReady)

	// The ticker is created before the goroutine starts so a mock clock
	// advanced right after Start cannot miss the first cycle.
	ticker := w.clock.Ticker(w.interval)
	go w.loop(pollCtx, ticker, onRotation)

	w.logger.Info("credential watch started: %d tracked secret(s), polling every %s", len(w.secrets), w.interval)
	return snapshot, nil
}

// Stop cancels the recurring poll and waits for the polling goroutine to
// exit. Safe to call regardless of state; after a failed Start it is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	started := w.state == stateReady || w.state == stateRotationDetected || w.state == stateStopped
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if started {
		<-w.done
	}
}

// Snapshot returns the live credential snapshot, or nil before a successful
// Start.
func (w *Watcher) Snapshot() *credential.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot
}

func (w *Watcher) loop(ctx context.Context, ticker *clock.Ticker, onRotation func()) {
	defer close(w.done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.setState(stateStopped)
			return
		case <-ticker.C:
			if w.pollCycle(ctx) {
				w.setState(stateRotationDetected)
				w.metricsState(stateRotationDetected)
				w.logger.Warn("credential rotation detected, requesting restart")
				onRotation()
				return
			}
		}
	}
}

// pollCycle checks every tracked secret once, in declared order, and reports
// whether any rotated. Fetch and parse failures are absorbed: the previous
// cached value is retained and the cycle moves on.
func (w *Watcher) pollCycle(ctx context.Context) bool {
	if w.metrics != nil {
		w.metrics.RecordPollCycle()
	}

	rotated := false
	for _, s := range w.secrets {
		if s.preloaded {
			continue
		}

		v, err := w.fetchAndParse(ctx, s)
		if err != nil {
			// No new information; keep the last good value.
			if w.metrics != nil {
				w.metrics.RecordPollFailure(s.storeKey)
			}
			w.logger.Debug("poll fetch for %s failed, keeping cached value: %v", s.storeKey, err)
			continue
		}

		if !v.Equal(s.lastKnown) {
			rotated = true
			if w.metrics != nil {
				w.metrics.RecordRotation(s.storeKey)
			}
			w.logger.Info("secret %s rotated (identifier %s -> %s)", s.name, s.lastKnown.Key, v.Key)
		}
		// Always track the latest seen value so later cycles compare
		// against it rather than the original.
		s.lastKnown = v
		w.snapshot.Set(s.name, v)
	}

	return rotated
}

func (w *Watcher) fetchAndParse(ctx context.Context, s *trackedSecret) (credential.Value, error) {
	raw, err := w.store.Fetch(ctx, s.storeKey)
	if err != nil {
		return credential.Value{}, fmt.Errorf("fetch failed: %w", err)
	}
	if raw == "" {
		return credential.Value{}, fmt.Errorf("store returned an empty payload")
	}

	v, err := s.parse(raw)
	if err != nil {
		return credential.Value{}, err
	}
	return v, nil
}

func (w *Watcher) setState(s watchState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// Terminal states win over the stop transition.
	if w.state == stateRotationDetected || w.state == stateFailed {
		return
	}
	w.state = s
}

func (w *Watcher) metricsState(s watchState) {
	if w.metrics != nil {
		w.metrics.SetState(s)
	}
}
