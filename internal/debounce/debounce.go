// Package debounce decides when a user's burst of messages is complete.
//
// Every inbound message bumps the user's generation and re-arms a single
// timer. A timer whose generation is no longer current when it fires is
// superseded and does nothing; only the last message of a burst leads to a
// processing call.
package debounce

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/radar/pkg/protocol"
)

const (
	DefaultDelay           = 15 * time.Second
	DefaultPresencePadding = 5 * time.Second

	PolicyQueue = "queue"
	PolicyDrop  = "drop"
)

// FireFunc processes a user's completed burst.
type FireFunc func(ctx context.Context, userID string) error

// PresenceFunc asserts a presence state ("composing") for ttl.
type PresenceFunc func(ctx context.Context, userID, state string, ttl time.Duration) error

// Observer receives scheduler events; all methods may be called concurrently.
type Observer interface {
	Fired(userID string)
	Superseded(userID string)
	Deferred(userID string, dropped bool)
	Failed(userID string)
}

// Config configures a Scheduler.
type Config struct {
	Delay           time.Duration
	PresencePadding time.Duration
	// InflightPolicy is PolicyQueue (default) or PolicyDrop.
	InflightPolicy string
	Observer       Observer
}

type entry struct {
	gen   uint64
	timer *time.Timer
	busy  bool
	rerun bool
}

// Scheduler is the per-user debounce scheduler.
type Scheduler struct {
	mu       sync.Mutex
	entries  map[string]*entry
	seq      uint64
	delay    time.Duration
	padding  time.Duration
	policy   string
	observer Observer
	fire     FireFunc
	presence PresenceFunc
	baseCtx  context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopped  bool
}

func NewScheduler(cfg Config, fire FireFunc, presence PresenceFunc) *Scheduler {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.PresencePadding < 0 {
		cfg.PresencePadding = 0
	}
	if cfg.InflightPolicy != PolicyDrop {
		cfg.InflightPolicy = PolicyQueue
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		entries:  make(map[string]*entry),
		delay:    cfg.Delay,
		padding:  cfg.PresencePadding,
		policy:   cfg.InflightPolicy,
		observer: cfg.Observer,
		fire:     fire,
		presence: presence,
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// OnMessage records an inbound message for userID and returns the new
// generation. Timers armed for earlier generations become stale.
func (s *Scheduler) OnMessage(ctx context.Context, userID string) uint64 {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0
	}
	e, ok := s.entries[userID]
	if !ok {
		e = &entry{}
		s.entries[userID] = e
	}
	s.seq++
	gen := s.seq
	// The previous timer keeps running; it finds a newer generation when it
	// fires and does nothing.
	e.gen = gen
	delay := s.delay
	e.timer = time.AfterFunc(delay, func() { s.onTimer(userID, gen) })
	ttl := delay + s.padding
	s.mu.Unlock()

	slog.Debug("debounce: armed", "user", userID, "generation", gen, "delay", delay)

	if s.presence != nil {
		if err := s.presence(ctx, userID, protocol.PresenceComposing, ttl); err != nil {
			slog.Warn("debounce: presence failed", "user", userID, "error", err)
		}
	}
	return gen
}

func (s *Scheduler) onTimer(userID string, gen uint64) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	e, ok := s.entries[userID]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		slog.Debug("debounce: superseded", "user", userID, "generation", gen)
		s.observe(func(o Observer) { o.Superseded(userID) })
		return
	}
	e.timer = nil
	if e.busy {
		dropped := s.policy == PolicyDrop
		if !dropped {
			e.rerun = true
		}
		s.mu.Unlock()
		slog.Info("debounce: turn in flight", "user", userID, "generation", gen, "dropped", dropped)
		s.observe(func(o Observer) { o.Deferred(userID, dropped) })
		return
	}
	e.busy = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(userID)
}

// run executes the fire callback for userID, repeating while a queued fire
// arrived during the previous call.
func (s *Scheduler) run(userID string) {
	defer s.wg.Done()
	for {
		s.invoke(userID)

		s.mu.Lock()
		e := s.entries[userID]
		if e.rerun && !s.stopped {
			e.rerun = false
			s.mu.Unlock()
			continue
		}
		e.busy = false
		e.rerun = false
		// Keep the entry while a newer timer is armed for this user.
		if e.timer == nil {
			delete(s.entries, userID)
		}
		s.mu.Unlock()
		return
	}
}

func (s *Scheduler) invoke(userID string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("debounce: fire panic", "user", userID, "panic", fmt.Sprint(r))
			s.observe(func(o Observer) { o.Failed(userID) })
		}
	}()

	s.observe(func(o Observer) { o.Fired(userID) })
	if err := s.fire(s.baseCtx, userID); err != nil {
		slog.Error("debounce: fire failed", "user", userID, "error", err)
		s.observe(func(o Observer) { o.Failed(userID) })
	}
}

func (s *Scheduler) observe(fn func(Observer)) {
	if s.observer != nil {
		fn(s.observer)
	}
}

// SetDelay changes the debounce delay for timers armed from now on.
func (s *Scheduler) SetDelay(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// Delay returns the current debounce delay.
func (s *Scheduler) Delay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delay
}

// Pending returns the number of users with an armed timer.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.timer != nil {
			n++
		}
	}
	return n
}

// Stop cancels armed timers and waits for in-flight turns to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for _, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.cancel()
}
