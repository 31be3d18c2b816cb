package reload

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "streamrec/pkg/logx"
)

// fakeSource answers Changed from a script; the last answer repeats.
type fakeSource struct {
	name   string
	mu     sync.Mutex
	calls  int
	script []func() (bool, error)
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Changed() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if len(f.script) == 0 {
		return false, nil
	}
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	return f.script[i]()
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func unchanged() (bool, error) { return false, nil }
func changed() (bool, error)   { return true, nil }

func counter(n *atomic.Int32) Callback {
	return func(context.Context) error {
		n.Add(1)
		return nil
	}
}

func TestWatchdogNoChangeNoCallbacks(t *testing.T) {
	src := &fakeSource{name: "quiet"}
	var n atomic.Int32
	w := NewWatchdog([]Source{src}, []Callback{counter(&n)}, WithInterval(2*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return src.Calls() >= 10 }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	require.Zero(t, n.Load())
	require.False(t, w.Triggered())
}

func TestWatchdogFiresOnceInOrder(t *testing.T) {
	a := &fakeSource{name: "a", script: []func() (bool, error){unchanged, unchanged, changed}}
	b := &fakeSource{name: "b", script: []func() (bool, error){unchanged, unchanged, changed}}

	var order []string
	cb := func(name string) Callback {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}
	sig := NewSignal()
	w := NewWatchdog([]Source{a, b}, []Callback{cb("cleanup"), sig.Fire, cb("after")}, WithInterval(time.Millisecond))

	require.NoError(t, w.Run(context.Background()))
	require.True(t, w.Triggered())
	require.True(t, sig.IsSet())
	require.Equal(t, []string{"cleanup", "after"}, order)
	require.Equal(t, 3, a.Calls())
	require.Equal(t, 3, b.Calls())
}

func TestWatchdogCallbackErrorDoesNotStopChain(t *testing.T) {
	src := &fakeSource{name: "s", script: []func() (bool, error){changed}}
	var n atomic.Int32
	failing := func(context.Context) error { return errors.New("cleanup failed") }
	w := NewWatchdog([]Source{src}, []Callback{failing, counter(&n)}, WithInterval(time.Millisecond))

	require.NoError(t, w.Run(context.Background()))
	require.EqualValues(t, 1, n.Load())
}

func TestWatchdogSourceErrorIsTransient(t *testing.T) {
	boom := func() (bool, error) { return false, errors.New("stat failed") }
	src := &fakeSource{name: "flaky", script: []func() (bool, error){boom, boom, changed}}

	var buf bytes.Buffer
	var seen []error
	var n atomic.Int32
	w := NewWatchdog([]Source{src}, []Callback{counter(&n)},
		WithInterval(time.Millisecond),
		WithLogger(logx.NewWriter(&buf, "debug")),
		WithObserver(func(_ string, _ bool, err error) { seen = append(seen, err) }),
	)

	require.NoError(t, w.Run(context.Background()))
	require.EqualValues(t, 1, n.Load())
	require.Len(t, seen, 3)
	require.Error(t, seen[0])
	require.NoError(t, seen[2])
	require.Contains(t, buf.String(), "watch flaky: stat failed")
}

func TestWatchdogCancelSkipsRemainingCallbacks(t *testing.T) {
	src := &fakeSource{name: "s", script: []func() (bool, error){changed}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var n atomic.Int32
	first := func(context.Context) error {
		cancel()
		return nil
	}
	w := NewWatchdog([]Source{src}, []Callback{first, counter(&n)}, WithInterval(time.Millisecond))

	require.NoError(t, w.Run(ctx))
	require.True(t, w.Triggered())
	require.Zero(t, n.Load())
}

func TestWatchdogCancelBeforeFirstInterval(t *testing.T) {
	src := &fakeSource{name: "s", script: []func() (bool, error){changed}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewWatchdog([]Source{src}, nil, WithInterval(time.Hour))
	require.NoError(t, w.Run(ctx))
	require.Zero(t, src.Calls())
}

func TestSignal(t *testing.T) {
	s := NewSignal()
	require.False(t, s.IsSet())
	s.Set()
	s.Set()
	require.True(t, s.IsSet())
	select {
	case <-s.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestWatchdogLogsChangedConfigSections(t *testing.T) {
	var buf bytes.Buffer
	src := NewConfigSource(fakeDrifter{changed: true, sections: []string{"plugins", "streamers"}})
	w := NewWatchdog([]Source{src}, nil,
		WithInterval(time.Millisecond),
		WithLogger(logx.NewWriter(&buf, "info")),
	)
	require.NoError(t, w.Run(context.Background()))
	require.True(t, w.Triggered())
	require.Contains(t, buf.String(), `"sections":["plugins","streamers"]`)
	require.Contains(t, buf.String(), `"source":"config:config.yaml"`)
}
