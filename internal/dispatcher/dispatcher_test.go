package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger records every message with its level prefix.
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) log(level, msg string, keysAndValues []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, keysAndValues))
}

func (l *testLogger) Debug(msg string, kv ...any) { l.log("DEBUG", msg, kv) }
func (l *testLogger) Info(msg string, kv ...any)  { l.log("INFO", msg, kv) }
func (l *testLogger) Warn(msg string, kv ...any)  { l.log("WARN", msg, kv) }
func (l *testLogger) Error(msg string, kv ...any) { l.log("ERROR", msg, kv) }

func (l *testLogger) withPrefix(prefix string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, m := range l.messages {
		if strings.HasPrefix(m, prefix) {
			out = append(out, m)
		}
	}
	return out
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	t.Helper()
	logger := &testLogger{}
	d, err := New(logger)
	require.NoError(t, err)
	return d, logger
}

func waitDrained(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register(":ENTITY:SPAWN:", func(e Event) (any, error) {
		got = e
		return "spawned", nil
	})

	result, err := d.Dispatch(Event{Command: ":ENTITY:SPAWN:", Args: []string{"1"}, Frame: 4, Line: 9})
	require.NoError(t, err)
	assert.Equal(t, "spawned", result)
	assert.Equal(t, []string{"1"}, got.Args)
	assert.Equal(t, uint64(4), got.Frame)
	assert.Equal(t, 9, got.Line)
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":UNKNOWN:"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Zero(t, d.Stats().Dispatched)
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)
	defer d.Close()

	var processed atomic.Int32
	d.Register(":ENTITY:MOVE:", func(e Event) (any, error) {
		processed.Add(1)
		return nil, nil
	}, Buffered(100))

	for range 3 {
		result, err := d.Dispatch(Event{Command: ":ENTITY:MOVE:"})
		require.NoError(t, err)
		assert.Equal(t, Queued, result)
	}

	waitDrained(t, d)
	assert.Equal(t, int32(3), processed.Load())

	stats := d.Stats()
	assert.Equal(t, int64(3), stats.Dispatched)
	assert.Equal(t, int64(3), stats.Processed)
	assert.Zero(t, stats.Queued)
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, logger := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Register(":FULL:", func(e Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(2))

	_, err := d.Dispatch(Event{Command: ":FULL:"})
	require.NoError(t, err)
	<-started
	d.Dispatch(Event{Command: ":FULL:"})
	d.Dispatch(Event{Command: ":FULL:"})

	_, err = d.Dispatch(Event{Command: ":FULL:", Frame: 12})
	assert.ErrorIs(t, err, ErrQueueFull)

	stats := d.Stats()
	assert.Equal(t, int64(1), stats.Dropped)
	assert.Equal(t, int64(2), stats.Queued)

	warns := logger.withPrefix("WARN")
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0], "Command dropped")
	assert.Contains(t, warns[0], "12")

	close(block)
	d.Close()
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Register(":BLOCKING:", func(e Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	d.Dispatch(Event{Command: ":BLOCKING:"})
	<-started
	d.Dispatch(Event{Command: ":BLOCKING:"})

	done := make(chan struct{})
	go func() {
		d.Dispatch(Event{Command: ":BLOCKING:"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	<-done
	d.Close()
	assert.Zero(t, d.Stats().Dropped)
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":LOGGED:", func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	_, err := d.Dispatch(Event{Command: ":LOGGED:", Args: []string{"a", "b"}})
	require.NoError(t, err)

	debug := logger.withPrefix("DEBUG")
	require.Len(t, debug, 2)
	assert.Contains(t, debug[0], "Handling command")
	assert.Contains(t, debug[1], "Command complete")
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":ERROR:", func(e Event) (any, error) {
		return nil, errors.New("bad args")
	}, Logged())

	_, err := d.Dispatch(Event{Command: ":ERROR:", Line: 3})
	require.Error(t, err)

	errs := logger.withPrefix("ERROR")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "bad args")
	assert.Equal(t, int64(1), d.Stats().Failed)
}

func TestDispatcher_BufferedLoggedErrorLoggedOnce(t *testing.T) {
	d, logger := newTestDispatcher(t)
	defer d.Close()

	d.Register(":ENTITY:ACTIVE:", func(e Event) (any, error) {
		return nil, errors.New("no such entity")
	}, Buffered(10), Logged())

	result, err := d.Dispatch(Event{Command: ":ENTITY:ACTIVE:"})
	require.NoError(t, err)
	assert.Equal(t, Queued, result)

	waitDrained(t, d)
	assert.Len(t, logger.withPrefix("ERROR"), 1)
	assert.Len(t, logger.withPrefix("DEBUG"), 1)
	assert.Equal(t, int64(1), d.Stats().Failed)
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":EXISTS:", func(e Event) (any, error) { return nil, nil })

	assert.True(t, d.HasHandler(":EXISTS:"))
	assert.False(t, d.HasHandler(":NOT_EXISTS:"))
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)
	defer d.Close()

	var processed atomic.Int32
	d.Register(":COMBINED:", func(e Event) (any, error) {
		processed.Add(1)
		return "done", nil
	}, Buffered(100), Logged())

	result, err := d.Dispatch(Event{Command: ":COMBINED:"})
	require.NoError(t, err)
	assert.Equal(t, Queued, result)

	waitDrained(t, d)
	assert.Equal(t, int32(1), processed.Load())
	assert.Len(t, logger.withPrefix("DEBUG"), 2)
}

func TestDispatcher_WaitDrainsBuffers(t *testing.T) {
	d, _ := newTestDispatcher(t)
	defer d.Close()

	var processed atomic.Int32
	d.Register(":SLOW:", func(e Event) (any, error) {
		time.Sleep(time.Millisecond)
		processed.Add(1)
		return nil, nil
	}, Buffered(10))

	for range 5 {
		d.Dispatch(Event{Command: ":SLOW:"})
	}

	waitDrained(t, d)
	assert.Equal(t, int32(5), processed.Load())
}

func TestDispatcher_WaitTimeout(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	d.Register(":STUCK:", func(e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(1))
	d.Dispatch(Event{Command: ":STUCK:"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)

	close(block)
	d.Close()
}

func TestDispatcher_BufferedPanicRecovered(t *testing.T) {
	d, logger := newTestDispatcher(t)
	defer d.Close()

	var after atomic.Int32
	d.Register(":PANIC:", func(e Event) (any, error) {
		if len(e.Args) == 0 {
			panic("boom")
		}
		after.Add(1)
		return nil, nil
	}, Buffered(10))

	d.Dispatch(Event{Command: ":PANIC:"})
	d.Dispatch(Event{Command: ":PANIC:", Args: []string{"ok"}})

	waitDrained(t, d)
	assert.Equal(t, int32(1), after.Load(), "buffer keeps running after a panic")

	errs := logger.withPrefix("ERROR")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "panicked")
	stats := d.Stats()
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(2), stats.Processed)
}

func TestDispatcher_SyncPanicRecovered(t *testing.T) {
	d, logger := newTestDispatcher(t)
	defer d.Close()

	d.Register(":PANIC:", func(e Event) (any, error) {
		panic("boom")
	}, Logged())

	var (
		result any
		err    error
	)
	require.NotPanics(t, func() {
		result, err = d.Dispatch(Event{Command: ":PANIC:", Frame: 7})
	})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrPanicked)
	assert.Contains(t, err.Error(), "boom")

	errs := logger.withPrefix("ERROR")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Command failed")

	stats := d.Stats()
	assert.Equal(t, int64(1), stats.Dispatched)
	assert.Equal(t, int64(1), stats.Processed)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestDispatcher_CloseRejects(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":SYNC:", func(e Event) (any, error) { return "ok", nil })
	d.Register(":ASYNC:", func(e Event) (any, error) { return nil, nil }, Buffered(1))
	d.Close()
	d.Close()

	_, err := d.Dispatch(Event{Command: ":SYNC:"})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = d.Dispatch(Event{Command: ":ASYNC:"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDispatcher_Commands(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":B:", func(e Event) (any, error) { return nil, nil })
	d.Register(":A:", func(e Event) (any, error) { return nil, nil })

	assert.Equal(t, []string{":A:", ":B:"}, d.Commands())
}
