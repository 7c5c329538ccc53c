package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrClosed         = errors.New("dispatcher closed")
	ErrQueueFull      = errors.New("queue full")
	ErrPanicked       = errors.New("handler panicked")
)

const meterName = "github.com/OCAP2/hud/internal/dispatcher"

// Queued is the result of a command accepted by a buffered handler.
const Queued = "queued"

// Event is one host command. Frame and Line locate it in a script; both are
// zero for commands that did not come from one.
type Event struct {
	Command   string
	Args      []string
	Frame     uint64
	Line      int
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger is the logging surface the dispatcher needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Stats counts commands since the dispatcher was created.
type Stats struct {
	Dispatched int64 `json:"dispatched"`
	Processed  int64 `json:"processed"`
	Dropped    int64 `json:"dropped"`
	Failed     int64 `json:"failed"`
	Queued     int64 `json:"queued"`
}

// Dispatcher routes commands to registered handlers. Lifecycle commands
// are usually registered synchronously so they apply in script order;
// high volume updates go through a buffer.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter
	latency   metric.Float64Histogram
	reg       metric.Registration

	dispatched atomic.Int64
	nProcessed atomic.Int64
	nDropped   atomic.Int64
	nFailed    atomic.Int64

	mu      sync.RWMutex
	buffers map[string]chan Event
	closed  bool

	// queued events not yet handled
	pending sync.WaitGroup
	workers sync.WaitGroup
}

// New creates a Dispatcher. Metrics go to the global OTel meter, which is
// a no-op until a provider is installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Event),
		logger:   logger,
	}

	m := otel.Meter(meterName)
	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"hud.commands.queued",
		metric.WithDescription("Commands waiting in a handler buffer"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	d.reg, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for cmd, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("command", cmd)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	if d.processed, err = m.Int64Counter("hud.commands.processed",
		metric.WithDescription("Commands handled")); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if d.dropped, err = m.Int64Counter("hud.commands.dropped",
		metric.WithDescription("Commands dropped on a full buffer")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	if d.failed, err = m.Int64Counter("hud.commands.failed",
		metric.WithDescription("Commands whose handler returned an error")); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if d.latency, err = m.Float64Histogram("hud.commands.duration",
		metric.WithDescription("Handler run time"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := d.withMetrics(command, withRecover(command, h))
	if cfg.logged {
		handler = d.withLogging(command, handler)
	}
	if cfg.bufferSize > 0 {
		handler = d.withBuffer(command, cfg, handler)
	}

	d.mu.Lock()
	d.handlers[command] = handler
	d.mu.Unlock()
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[e.Command]
	closed := d.closed
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if closed {
		return nil, fmt.Errorf("%w: %s", ErrClosed, e.Command)
	}
	d.dispatched.Add(1)
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

// Commands returns the registered commands in sorted order.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for cmd := range d.handlers {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// Stats returns the command counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	var queued int64
	for _, buf := range d.buffers {
		queued += int64(len(buf))
	}
	d.mu.RUnlock()
	return Stats{
		Dispatched: d.dispatched.Load(),
		Processed:  d.nProcessed.Load(),
		Dropped:    d.nDropped.Load(),
		Failed:     d.nFailed.Load(),
		Queued:     queued,
	}
}

// Wait blocks until every queued event has been handled or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events, drains every buffer and waits for the
// buffer goroutines to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()

	d.workers.Wait()
	if d.reg != nil {
		_ = d.reg.Unregister()
	}
}

// withBuffer queues events for one goroutine running h. Failures are logged
// here unless h already logs them.
func (d *Dispatcher) withBuffer(command string, cfg *config, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, cfg.bufferSize)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	cmdAttr := metric.WithAttributes(attribute.String("command", command))

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for e := range buffer {
			if _, err := h(e); err != nil && !cfg.logged {
				d.logger.Error("Buffered command failed", "command", command, "frame", e.Frame, "line", e.Line, "error", err)
			}
			d.pending.Done()
		}
	}()

	// Sends hold the read lock so Close cannot close the buffer under them.
	return func(e Event) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, fmt.Errorf("%w: %s", ErrClosed, command)
		}
		d.pending.Add(1)
		if cfg.blocking {
			buffer <- e
			return Queued, nil
		}
		select {
		case buffer <- e:
			return Queued, nil
		default:
			d.pending.Done()
			d.nDropped.Add(1)
			d.dropped.Add(context.Background(), 1, cmdAttr)
			d.logger.Warn("Command dropped", "command", command, "frame", e.Frame, "queue", cfg.bufferSize)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

// withRecover turns a handler panic into an error, so neither the caller
// nor a buffer goroutine is taken down by one bad event.
func withRecover(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (result any, err error) {
		defer func() {
			if p := recover(); p != nil {
				result = nil
				err = fmt.Errorf("%w: %s: %v", ErrPanicked, command, p)
			}
		}()
		return h(e)
	}
}

// withMetrics counts and times every handler run.
func (d *Dispatcher) withMetrics(command string, h HandlerFunc) HandlerFunc {
	cmdAttr := metric.WithAttributes(attribute.String("command", command))
	return func(e Event) (any, error) {
		start := time.Now()
		result, err := h(e)

		ctx := context.Background()
		d.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000, cmdAttr)
		d.nProcessed.Add(1)
		d.processed.Add(ctx, 1, cmdAttr)
		if err != nil {
			d.nFailed.Add(1)
			d.failed.Add(ctx, 1, cmdAttr)
		}
		return result, err
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("Handling command", "command", command, "frame", e.Frame, "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.logger.Error("Command failed", "command", command, "frame", e.Frame, "line", e.Line,
				"duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("Command complete", "command", command, "duration", time.Since(start))
		}
		return result, err
	}
}
