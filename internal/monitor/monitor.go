package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tamzrod/modbus-monitor/internal/logger"
	"github.com/tamzrod/modbus-monitor/internal/modbus"
)

// ErrAlreadyRunning is returned by Run when the monitor is not idle.
var ErrAlreadyRunning = errors.New("monitor: already running")

// Config is the immutable per-run configuration.
type Config struct {
	Host     string
	Port     int
	UnitID   uint8
	Interval time.Duration // poll cadence, measured from cycle start
	Timeout  time.Duration // per-exchange deadline
	Retries  int           // extra attempts per request, also the (re)connect budget
}

// Validate rejects invalid configuration eagerly, before any I/O.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", modbus.ErrValidation)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", modbus.ErrValidation, c.Port)
	}
	if c.UnitID > modbus.MaxUnitID {
		return fmt.Errorf("%w: unit id %d exceeds %d", modbus.ErrValidation, c.UnitID, modbus.MaxUnitID)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: poll interval must be > 0", modbus.ErrValidation)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be > 0", modbus.ErrValidation)
	}
	if c.Retries < 0 {
		return fmt.Errorf("%w: retries must be >= 0", modbus.ErrValidation)
	}
	return nil
}

// Service is the monitor surface, split out so logging and metrics
// middlewares can decorate it.
type Service interface {
	// AddGroup registers a register group before the monitor starts.
	AddGroup(g Group) error

	// Run connects and polls until Stop is called, ctx is cancelled, the
	// handler returns an error, or the connection cannot be recovered.
	Run(ctx context.Context, handler Handler) error

	// Stop requests cooperative shutdown and returns once the monitor is
	// idle and the connection closed. Idempotent, callable in any state.
	Stop()
}

type state int

const (
	stateIdle state = iota
	stateConnecting
	stateRunning
	stateStopping
)

// Monitor drives the cycle executor on a fixed cadence and exclusively
// owns the connection lifecycle.
type Monitor struct {
	cfg  Config
	conn Conn
	log  logger.Logger

	mu     sync.Mutex
	st     state
	groups []Group
	stopCh chan struct{}
	doneCh chan struct{}
}

var _ Service = (*Monitor)(nil)

// New creates an idle monitor. conn must be disconnected; the monitor
// connects on Run.
func New(cfg Config, conn Conn, log logger.Logger) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, fmt.Errorf("%w: connection required", modbus.ErrValidation)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Monitor{cfg: cfg, conn: conn, log: log}, nil
}

// Run blocks until the monitor stops. The returned error is nil on a
// clean Stop or ctx cancellation; otherwise it is the fatal condition
// (startup failure, exhausted reconnect budget, or a handler error).
func (m *Monitor) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("%w: handler required", modbus.ErrValidation)
	}

	m.mu.Lock()
	if m.st != stateIdle {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.st = stateConnecting
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	stopCh, doneCh := m.stopCh, m.doneCh
	groups := make([]Group, len(m.groups))
	copy(groups, m.groups)
	m.mu.Unlock()

	// runCtx is cancelled by Stop or by the parent context; it gates
	// connection attempts and the gaps between group polls. An in-flight
	// exchange is never interrupted, it runs out its own deadline.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	err := m.run(runCtx, handler, groups)

	m.conn.Close()
	m.mu.Lock()
	m.st = stateIdle
	m.mu.Unlock()
	close(doneCh)

	// Cooperative shutdown is not an error, whether requested via Stop
	// or by cancelling ctx.
	if err != nil && (m.stopRequested(stopCh) || errors.Is(err, context.Canceled)) {
		err = nil
	}
	return err
}

func (m *Monitor) run(ctx context.Context, handler Handler, groups []Group) error {
	if err := m.connect(ctx); err != nil {
		return fmt.Errorf("monitor: startup: %w", err)
	}
	m.setState(stateRunning)
	m.log.Info(fmt.Sprintf("connected to %s:%d, polling %d groups every %s",
		m.cfg.Host, m.cfg.Port, len(groups), m.cfg.Interval))

	exec := &executor{client: m.conn, retries: m.cfg.Retries, log: m.log}

	for {
		start := time.Now()

		res, err := exec.runCycle(ctx, groups)
		if err != nil {
			// Cancelled between group polls; the partial cycle is dropped.
			return ctx.Err()
		}

		if err := handler(res); err != nil {
			return fmt.Errorf("monitor: handler: %w", err)
		}

		if hasDisconnect(res.Failures) {
			m.log.Warn("connection lost, reconnecting")
			if err := m.reconnect(ctx); err != nil {
				return fmt.Errorf("monitor: reconnect: %w", err)
			}
		}

		if err := m.waitNext(ctx, start); err != nil {
			return err
		}
	}
}

// connect establishes the session, bounded by the retry budget with a
// constant backoff of one poll interval between attempts.
func (m *Monitor) connect(ctx context.Context) error {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.cfg.Interval), uint64(m.cfg.Retries)),
		ctx,
	)
	return backoff.Retry(func() error {
		if err := m.conn.Connect(ctx); err != nil {
			m.log.Warn(fmt.Sprintf("connect %s:%d failed: %s", m.cfg.Host, m.cfg.Port, err))
			return err
		}
		return nil
	}, bo)
}

func (m *Monitor) reconnect(ctx context.Context) error {
	m.conn.Close()
	return m.connect(ctx)
}

// waitNext sleeps out the remainder of the interval, measured from the
// cycle's start. An over-long cycle starts the next one immediately;
// skipped ticks are never merged or replayed.
func (m *Monitor) waitNext(ctx context.Context, start time.Time) error {
	d := m.cfg.Interval - time.Since(start)
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Stop requests cooperative cancellation: the running cycle's handler
// completes, no new cycle is scheduled, the connection is closed. Blocks
// until the monitor is idle. Safe to call repeatedly and in any state.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.st == stateIdle || m.stopCh == nil {
		m.mu.Unlock()
		return
	}
	m.st = stateStopping
	select {
	case <-m.stopCh:
	default:
		close(m.stopCh)
	}
	done := m.doneCh
	m.mu.Unlock()

	<-done
}

func (m *Monitor) setState(s state) {
	m.mu.Lock()
	// Stop may already have moved the monitor to Stopping; do not undo it.
	if m.st != stateStopping {
		m.st = s
	}
	m.mu.Unlock()
}

func (m *Monitor) stopRequested(stopCh chan struct{}) bool {
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}
