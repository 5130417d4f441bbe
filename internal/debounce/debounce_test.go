package debounce

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type counter struct {
	mu                                  sync.Mutex
	fired, superseded, deferred, failed int
	dropped                             int
}

func (c *counter) Fired(string)      { c.mu.Lock(); c.fired++; c.mu.Unlock() }
func (c *counter) Superseded(string) { c.mu.Lock(); c.superseded++; c.mu.Unlock() }
func (c *counter) Failed(string)     { c.mu.Lock(); c.failed++; c.mu.Unlock() }
func (c *counter) Deferred(_ string, dropped bool) {
	c.mu.Lock()
	c.deferred++
	if dropped {
		c.dropped++
	}
	c.mu.Unlock()
}

func (c *counter) snapshot() counter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return counter{fired: c.fired, superseded: c.superseded, deferred: c.deferred, failed: c.failed, dropped: c.dropped}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type presenceCall struct {
	user, state string
	ttl         time.Duration
}

func TestBurstProducesOneCall(t *testing.T) {
	var (
		mu       sync.Mutex
		calls    []string
		presence []presenceCall
	)
	obs := &counter{}
	s := NewScheduler(Config{Delay: 60 * time.Millisecond, PresencePadding: 5 * time.Second, Observer: obs},
		func(_ context.Context, userID string) error {
			mu.Lock()
			calls = append(calls, userID)
			mu.Unlock()
			return nil
		},
		func(_ context.Context, userID, state string, ttl time.Duration) error {
			mu.Lock()
			presence = append(presence, presenceCall{userID, state, ttl})
			mu.Unlock()
			return errors.New("presence is best effort")
		})
	defer s.Stop()

	var gens []uint64
	for i := 0; i < 3; i++ {
		gens = append(gens, s.OnMessage(context.Background(), "u1"))
		time.Sleep(10 * time.Millisecond)
	}
	if !(gens[0] < gens[1] && gens[1] < gens[2]) {
		t.Errorf("generations not increasing: %v", gens)
	}

	waitFor(t, "fire", func() bool { return obs.snapshot().fired == 1 })
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("fire calls = %d, want 1", len(calls))
	}
	if got := obs.snapshot().superseded; got != 2 {
		t.Errorf("superseded = %d, want 2", got)
	}
	if len(presence) != 3 {
		t.Fatalf("presence calls = %d, want 3", len(presence))
	}
	want := 60*time.Millisecond + 5*time.Second
	if presence[0].state != "composing" || presence[0].ttl != want {
		t.Errorf("presence = %+v, want composing with ttl %v", presence[0], want)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d after fire", s.Pending())
	}
}

func TestMessageAfterFireIsIndependent(t *testing.T) {
	obs := &counter{}
	s := NewScheduler(Config{Delay: 20 * time.Millisecond, Observer: obs},
		func(context.Context, string) error { return nil }, nil)
	defer s.Stop()

	s.OnMessage(context.Background(), "u1")
	waitFor(t, "first fire", func() bool { return obs.snapshot().fired == 1 })
	s.OnMessage(context.Background(), "u1")
	waitFor(t, "second fire", func() bool { return obs.snapshot().fired == 2 })

	if got := obs.snapshot().superseded; got != 0 {
		t.Errorf("superseded = %d, want 0", got)
	}
}

func TestUsersAreIndependent(t *testing.T) {
	obs := &counter{}
	s := NewScheduler(Config{Delay: 30 * time.Millisecond, Observer: obs},
		func(context.Context, string) error { return nil }, nil)
	defer s.Stop()

	s.OnMessage(context.Background(), "u1")
	s.OnMessage(context.Background(), "u2")
	if s.Pending() != 2 {
		t.Errorf("Pending = %d, want 2", s.Pending())
	}
	waitFor(t, "both fires", func() bool { return obs.snapshot().fired == 2 })
}

func TestPanicIsRecoveredAndEntryCleaned(t *testing.T) {
	obs := &counter{}
	var n int
	var mu sync.Mutex
	s := NewScheduler(Config{Delay: 10 * time.Millisecond, Observer: obs},
		func(context.Context, string) error {
			mu.Lock()
			n++
			first := n == 1
			mu.Unlock()
			if first {
				panic("boom")
			}
			return nil
		}, nil)
	defer s.Stop()

	s.OnMessage(context.Background(), "u1")
	waitFor(t, "failure", func() bool { return obs.snapshot().failed == 1 })
	waitFor(t, "entry cleanup", func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.entries) == 0
	})

	s.OnMessage(context.Background(), "u1")
	waitFor(t, "second fire", func() bool { return obs.snapshot().fired == 2 })
}

func TestInflightPolicy(t *testing.T) {
	tests := []struct {
		policy    string
		wantFires int
	}{
		{PolicyQueue, 2},
		{PolicyDrop, 1},
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			obs := &counter{}
			release := make(chan struct{})
			var once sync.Once
			s := NewScheduler(Config{Delay: 10 * time.Millisecond, InflightPolicy: tt.policy, Observer: obs},
				func(context.Context, string) error {
					once.Do(func() { <-release })
					return nil
				}, nil)
			defer s.Stop()

			s.OnMessage(context.Background(), "u1")
			waitFor(t, "first fire", func() bool { return obs.snapshot().fired == 1 })

			s.OnMessage(context.Background(), "u1")
			waitFor(t, "deferred fire", func() bool { return obs.snapshot().deferred == 1 })
			close(release)

			waitFor(t, "idle", func() bool {
				s.mu.Lock()
				defer s.mu.Unlock()
				return len(s.entries) == 0
			})
			if got := obs.snapshot().fired; got != tt.wantFires {
				t.Errorf("fired = %d, want %d", got, tt.wantFires)
			}
		})
	}
}

func TestStopCancelsArmedTimers(t *testing.T) {
	obs := &counter{}
	s := NewScheduler(Config{Delay: 50 * time.Millisecond, Observer: obs},
		func(context.Context, string) error { return nil }, nil)

	s.OnMessage(context.Background(), "u1")
	s.Stop()
	time.Sleep(100 * time.Millisecond)

	if got := obs.snapshot().fired; got != 0 {
		t.Errorf("fired = %d after Stop, want 0", got)
	}
	if gen := s.OnMessage(context.Background(), "u1"); gen != 0 {
		t.Errorf("OnMessage after Stop = %d, want 0", gen)
	}
}

func TestSetDelay(t *testing.T) {
	s := NewScheduler(Config{}, func(context.Context, string) error { return nil }, nil)
	defer s.Stop()
	if s.Delay() != DefaultDelay {
		t.Errorf("default delay = %v", s.Delay())
	}
	s.SetDelay(time.Second)
	s.SetDelay(0)
	if s.Delay() != time.Second {
		t.Errorf("Delay = %v, want 1s", s.Delay())
	}
}

func TestStaleTimerFiresAsNoop(t *testing.T) {
	obs := &counter{}
	s := NewScheduler(Config{Delay: 80 * time.Millisecond, Observer: obs},
		func(context.Context, string) error { return nil }, nil)
	defer s.Stop()

	s.OnMessage(context.Background(), "u1")
	s.SetDelay(10 * time.Millisecond)
	s.OnMessage(context.Background(), "u1")

	waitFor(t, "productive fire", func() bool { return obs.snapshot().fired == 1 })
	waitFor(t, "stale timer", func() bool { return obs.snapshot().superseded == 1 })
	time.Sleep(30 * time.Millisecond)

	if got := obs.snapshot().fired; got != 1 {
		t.Errorf("fired = %d, want 1", got)
	}
}
