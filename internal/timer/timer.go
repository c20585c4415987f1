// Package timer is the rest timer between sets. Its target and duration are
// persisted so a running countdown survives an app restart.
package timer

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

// DefaultDuration is used until the user picks another one
const DefaultDuration = 60 * time.Second

// ErrInvalidDuration is returned for durations under one second
var ErrInvalidDuration = errors.New("timer: duration must be at least one second")

// State is what gets persisted
type State struct {
	TargetAt        *time.Time
	DurationSeconds int
}

// Store persists the timer state
type Store interface {
	LoadTimer(ctx context.Context) (State, bool, error)
	SaveTimer(ctx context.Context, state State) error
}

// Timer counts down from a duration. Running means a target instant is set.
type Timer struct {
	store Store
	now   func() time.Time

	mu        sync.Mutex
	duration  int
	remaining int
	target    *time.Time
}

// New restores the timer from store. A target already in the past restores
// as a finished timer.
func New(ctx context.Context, store Store) (*Timer, error) {
	return newTimer(ctx, store, time.Now)
}

func newTimer(ctx context.Context, store Store, now func() time.Time) (*Timer, error) {
	t := &Timer{
		store:     store,
		now:       now,
		duration:  int(DefaultDuration / time.Second),
		remaining: int(DefaultDuration / time.Second),
	}
	state, ok, err := store.LoadTimer(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return t, nil
	}
	if state.DurationSeconds > 0 {
		t.duration = state.DurationSeconds
		t.remaining = state.DurationSeconds
	}
	if state.TargetAt != nil {
		if left := secondsUntil(*state.TargetAt, now()); left > 0 {
			target := *state.TargetAt
			t.target = &target
			t.remaining = left
		} else {
			t.remaining = 0
			if err := t.saveLocked(ctx); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

// Running reports whether the countdown is active
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.target != nil
}

// Duration returns the configured duration
func (t *Timer) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.duration) * time.Second
}

// Start runs the countdown from the remaining time. A finished timer starts
// over from the full duration.
func (t *Timer) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.target != nil {
		return nil
	}
	if t.remaining <= 0 {
		t.remaining = t.duration
	}
	target := t.now().Add(time.Duration(t.remaining) * time.Second)
	t.target = &target
	return t.saveLocked(ctx)
}

// Pause stops the countdown and keeps the remaining time
func (t *Timer) Pause(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.target == nil {
		return nil
	}
	t.remaining = t.remainingLocked()
	t.target = nil
	return t.saveLocked(ctx)
}

// Reset stops the countdown and refills it to the duration
func (t *Timer) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.target = nil
	t.remaining = t.duration
	return t.saveLocked(ctx)
}

// SetDuration changes the duration and resets the countdown
func (t *Timer) SetDuration(ctx context.Context, d time.Duration) error {
	seconds := int(d / time.Second)
	if seconds <= 0 {
		return ErrInvalidDuration
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.duration = seconds
	t.remaining = seconds
	t.target = nil
	return t.saveLocked(ctx)
}

// Remaining returns the whole seconds left, rounded up. When a running
// countdown reaches zero it stops and reports finished as true.
func (t *Timer) Remaining(ctx context.Context) (seconds int, finished bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.target == nil {
		return t.remaining, false, nil
	}
	left := t.remainingLocked()
	if left > 0 {
		return left, false, nil
	}
	t.target = nil
	t.remaining = 0
	return 0, true, t.saveLocked(ctx)
}

func (t *Timer) remainingLocked() int {
	if t.target == nil {
		return t.remaining
	}
	left := secondsUntil(*t.target, t.now())
	if left < 0 {
		return 0
	}
	return left
}

func (t *Timer) saveLocked(ctx context.Context) error {
	state := State{DurationSeconds: t.duration}
	if t.target != nil {
		target := *t.target
		state.TargetAt = &target
	}
	return t.store.SaveTimer(ctx, state)
}

func secondsUntil(target, now time.Time) int {
	return int(math.Ceil(target.Sub(now).Seconds()))
}
