// Package dispatcher routes simulator commands to their handlers. Every
// control surface (HTTP, MQTT) builds an Event and hands it here, so command
// validation and instrumentation live in one place.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event is one simulator command from an external surface (HTTP, MQTT).
type Event struct {
	Command   string
	Args      []float64
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*regConfig)

type regConfig struct {
	queueSize int
	blocking  bool
	logged    bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *regConfig) { c.queueSize = size }
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *regConfig) { c.blocking = true }
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *regConfig) { c.logged = true }
}

// instruments bundles the OTel metrics. The global meter provider is no-op
// unless the process configures one.
type instruments struct {
	queueDepth metric.Int64ObservableGauge
	processed  metric.Int64Counter
	dropped    metric.Int64Counter
}

func newInstruments() (instruments, error) {
	m := meter()
	var ins instruments
	var err error

	if ins.queueDepth, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	); err != nil {
		return ins, fmt.Errorf("creating queue size gauge: %w", err)
	}
	if ins.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	); err != nil {
		return ins, fmt.Errorf("creating processed counter: %w", err)
	}
	if ins.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	); err != nil {
		return ins, fmt.Errorf("creating dropped counter: %w", err)
	}
	return ins, nil
}

// Dispatcher routes command events to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger
	ins      instruments

	mu     sync.RWMutex
	queues map[string]chan Event
}

// New creates a Dispatcher using the global OTel meter for metrics.
func New(logger Logger) (*Dispatcher, error) {
	ins, err := newInstruments()
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		queues:   make(map[string]chan Event),
		logger:   logger,
		ins:      ins,
	}

	_, err = meter().RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for cmd, q := range d.queues {
				o.ObserveInt64(ins.queueDepth, int64(len(q)),
					metric.WithAttributes(attribute.String("command", cmd)))
			}
			return nil
		},
		ins.queueDepth,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command. Options wrap the handler
// inside-out: buffering first, then logging, so log lines cover the enqueue.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	var cfg regConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.queueSize > 0 {
		h = d.asyncHandler(command, cfg.queueSize, cfg.blocking, h)
	}
	if cfg.logged {
		h = d.loggedHandler(command, h)
	}

	d.handlers[command] = h
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// asyncHandler queues events for a dedicated goroutine. The returned handler
// reports "queued" immediately; handler errors surface only through logging.
func (d *Dispatcher) asyncHandler(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	q := make(chan Event, size)

	d.mu.Lock()
	d.queues[command] = q
	d.mu.Unlock()

	cmdAttr := metric.WithAttributes(attribute.String("command", command))

	go func() {
		for e := range q {
			h(e)
			d.ins.processed.Add(context.Background(), 1, cmdAttr)
		}
	}()

	if blocking {
		return func(e Event) (any, error) {
			q <- e
			return "queued", nil
		}
	}

	return func(e Event) (any, error) {
		select {
		case q <- e:
			return "queued", nil
		default:
			d.ins.dropped.Add(context.Background(), 1, cmdAttr)
			return nil, fmt.Errorf("queue full: %s", command)
		}
	}
}

func (d *Dispatcher) loggedHandler(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling command", "command", command, "args", len(e.Args))

		result, err := h(e)
		if err != nil {
			d.logger.Error("command failed", "command", command, "duration", time.Since(start), "error", err)
			return result, err
		}

		d.logger.Debug("command complete", "command", command, "duration", time.Since(start))
		return result, nil
	}
}
