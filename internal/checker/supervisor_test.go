package checker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"streamrec/internal/eventbus"
	"streamrec/internal/reload"
)

func entry(name string, c Checker, targets ...Target) Entry {
	if len(targets) == 0 {
		targets = []Target{{Name: name + "-streamer", URL: "https://" + name}}
	}
	return Entry{Plugin: name, Checker: c, Targets: targets, Schedule: FixedInterval(2 * time.Millisecond)}
}

func idle() Checker {
	return CheckerFunc(func(context.Context, Target) (bool, error) { return false, nil })
}

func stop(t *testing.T, s *Supervisor, sig *reload.Signal) {
	t.Helper()
	sig.Set()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestStartRunsOneWorkerPerEntry(t *testing.T) {
	sig := reload.NewSignal()
	s := NewSupervisor(context.Background(), eventbus.New(), sig)
	reg := NewRegistry(entry("a", idle()), entry("b", idle()), entry("c", idle()))

	require.NoError(t, s.Start(reg))
	require.Equal(t, 3, s.Running())
	require.ErrorIs(t, s.Start(reg), ErrAlreadyActive)

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	for _, w := range snap {
		require.True(t, w.Alive, w.Plugin)
	}

	stop(t, s, sig)
	require.Zero(t, s.Running())
	require.Empty(t, s.Unavailable())
}

func TestFailingWorkerDoesNotAffectOthers(t *testing.T) {
	sig := reload.NewSignal()
	s := NewSupervisor(context.Background(), eventbus.New(), sig)

	var okChecks atomic.Int32
	ok := CheckerFunc(func(context.Context, Target) (bool, error) {
		okChecks.Add(1)
		return false, nil
	})
	broken := CheckerFunc(func(context.Context, Target) (bool, error) { return false, errors.New("site changed layout") })
	panicky := CheckerFunc(func(context.Context, Target) (bool, error) { panic("nil map") })

	require.NoError(t, s.Start(NewRegistry(entry("ok", ok), entry("broken", broken), entry("panicky", panicky))))

	require.Eventually(t, func() bool { return len(s.Unavailable()) == 2 }, 2*time.Second, time.Millisecond)
	require.Equal(t, []string{"broken", "panicky"}, s.Unavailable())

	before := okChecks.Load()
	require.Eventually(t, func() bool { return okChecks.Load() > before+3 }, 2*time.Second, time.Millisecond)
	require.Equal(t, 1, s.Running())

	for _, w := range s.Snapshot() {
		if w.Plugin == "broken" {
			require.Contains(t, w.LastErr, "site changed layout")
		}
	}
	stop(t, s, sig)
}

func TestTransientErrorsKeepWorkerAlive(t *testing.T) {
	sig := reload.NewSignal()
	s := NewSupervisor(context.Background(), eventbus.New(), sig)

	var calls atomic.Int32
	flaky := CheckerFunc(func(context.Context, Target) (bool, error) {
		calls.Add(1)
		return false, Transient(errors.New("connection reset"))
	})
	require.NoError(t, s.Start(NewRegistry(entry("flaky", flaky))))
	require.Eventually(t, func() bool { return calls.Load() >= 5 }, 2*time.Second, time.Millisecond)
	require.Equal(t, 1, s.Running())
	require.Empty(t, s.Unavailable())
	stop(t, s, sig)
}

func TestPublishesOnlyOnLiveTransition(t *testing.T) {
	sig := reload.NewSignal()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16, eventbus.TypeStreamLive)
	defer unsub()

	// off, on, on, off, on, on...
	script := []bool{false, true, true, false, true}
	var n atomic.Int32
	c := CheckerFunc(func(context.Context, Target) (bool, error) {
		i := int(n.Add(1)) - 1
		if i >= len(script) {
			return true, nil
		}
		return script[i], nil
	})

	s := NewSupervisor(context.Background(), bus, sig)
	require.NoError(t, s.Start(NewRegistry(entry("site", c, Target{Name: "alice", URL: "https://site/alice"}))))
	require.Eventually(t, func() bool { return n.Load() >= 8 }, 2*time.Second, time.Millisecond)
	stop(t, s, sig)

	require.Len(t, events, 2)
	e := <-events
	le, ok := e.Data.(LiveEvent)
	require.True(t, ok)
	require.Equal(t, "site", le.Plugin)
	require.Equal(t, "alice", le.Target.Name)
}

func TestWorkersExitPromptlyOnSignal(t *testing.T) {
	sig := reload.NewSignal()
	s := NewSupervisor(context.Background(), eventbus.New(), sig)
	slow := Entry{Plugin: "slow", Checker: idle(), Targets: []Target{{Name: "x", URL: "u"}}, Schedule: FixedInterval(time.Hour)}
	require.NoError(t, s.Start(NewRegistry(slow)))

	start := time.Now()
	stop(t, s, sig)
	require.Less(t, time.Since(start), time.Second)
}

func TestSignalInterruptsRateLimitWait(t *testing.T) {
	sig := reload.NewSignal()
	s := NewSupervisor(context.Background(), eventbus.New(), sig)

	var calls atomic.Int32
	counting := CheckerFunc(func(context.Context, Target) (bool, error) {
		calls.Add(1)
		return false, nil
	})
	paced := Entry{
		Plugin:   "paced",
		Checker:  counting,
		Targets:  []Target{{Name: "a", URL: "u1"}, {Name: "b", URL: "u2"}},
		Schedule: FixedInterval(time.Hour),
		// one token, then the next one is 1000s away
		Limiter: rate.NewLimiter(rate.Limit(0.001), 1),
	}
	require.NoError(t, s.Start(NewRegistry(paced)))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	start := time.Now()
	stop(t, s, sig)
	require.Less(t, time.Since(start), time.Second)
	require.EqualValues(t, 1, calls.Load())
	require.Empty(t, s.Unavailable())
}
