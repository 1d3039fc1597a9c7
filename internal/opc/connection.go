package opc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sm "station_monitor"
	"station_monitor/internal/logger"
)

// Connection states.
type State string

const (
	StateInactive     State = "Inactive"
	StateConnecting   State = "Connecting"
	StateConnected    State = "Connected"
	StateDisconnected State = "Disconnected"
	StateFaulty       State = "Faulty"
)

var (
	ErrNotConnected = errors.New("station is not connected")
)

// StatusStore persists connection status transitions so the dashboard always
// sees the best-known truth, even mid-retry.
type StatusStore interface {
	SetConnectionStatus(ctx context.Context, stationID int, status string) error
	SetLastConnected(ctx context.Context, stationID int, ts time.Time) error
}

const (
	defaultHealthInterval = 10 * time.Second
	defaultBackoffBase    = time.Second
	defaultBackoffCap     = 60 * time.Second
	statusWriteTimeout    = 5 * time.Second
)

// Connection owns the life cycle of one OPC UA session to one station:
// connect, health-check, reconnect with backoff, disconnect. All protocol
// I/O is serialized behind one mutex because a single session is not safe
// for concurrent use.
type Connection struct {
	cfg   sm.StationConfig
	dial  Dialer
	store StatusStore
	log   *logger.Logger

	healthInterval time.Duration
	backoffCap     time.Duration

	mu        sync.Mutex
	transport Transport
	state     State

	// lost wakes the run loop when a caller detects session loss mid-read.
	lost chan struct{}
}

// ConnectionOptions tune supervision timing; zero values take defaults.
type ConnectionOptions struct {
	HealthInterval time.Duration
	BackoffCap     time.Duration
}

// NewConnection builds an unstarted connection for a station. Run drives it.
func NewConnection(cfg sm.StationConfig, dial Dialer, store StatusStore, log *logger.Logger, opts ConnectionOptions) *Connection {
	health := opts.HealthInterval
	if health <= 0 {
		health = defaultHealthInterval
	}
	// The health check must fire well inside the session timeout so a quiet
	// session is never expired server-side between checks.
	if cfg.SessionTimeout > 0 {
		if half := time.Duration(cfg.SessionTimeout) * time.Millisecond / 2; health > half {
			health = half
		}
	}
	cap := opts.BackoffCap
	if cap <= 0 {
		cap = defaultBackoffCap
	}
	return &Connection{
		cfg:            cfg,
		dial:           dial,
		store:          store,
		log:            log,
		healthInterval: health,
		backoffCap:     cap,
		state:          StateInactive,
		lost:           make(chan struct{}, 1),
	}
}

// Config returns the station config this connection was built from.
func (c *Connection) Config() sm.StationConfig { return c.cfg }

// State returns the current connection state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the session is currently established.
func (c *Connection) Connected() bool { return c.State() == StateConnected }

// Run owns the session until ctx is cancelled: connect with capped backoff,
// watch health, rebuild the session on loss. Cancellation is honored within
// one backoff tick so deactivating a station is never starved behind a
// long sleep.
func (c *Connection) Run(ctx context.Context) {
	defer c.shutdown()
	for {
		if !c.connectWithRetry(ctx) {
			return
		}
		if !c.superviseHealth(ctx) {
			return
		}
		// Health failed or a caller reported session loss: rebuild.
	}
}

// ReadTag reads one tag's current value. Protocol calls never run
// concurrently on one session.
func (c *Connection) ReadTag(ctx context.Context, tag sm.TagConfig) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.transport == nil {
		return nil, ErrNotConnected
	}
	return c.transport.ReadValue(ctx, tag.NodeID)
}

// WriteTag converts value to the tag's declared protocol type and writes it.
// Returns a human-readable message alongside the error outcome.
func (c *Connection) WriteTag(ctx context.Context, tag sm.TagConfig, value interface{}) (string, error) {
	if !knownDataType(tag.DataType) {
		c.log.Warnw("unknown data type, writing value as-is",
			"station", c.cfg.StationName, "tag", tag.TagName, "data_type", tag.DataType)
	}
	converted, err := ConvertValue(tag.DataType, value)
	if err != nil {
		return fmt.Sprintf("value %v is not a valid %s", value, tag.DataType), err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.transport == nil {
		return fmt.Sprintf("station %s is not connected", c.cfg.StationName), ErrNotConnected
	}
	if err := c.transport.WriteValue(ctx, tag.NodeID, converted); err != nil {
		return fmt.Sprintf("device rejected write to %s: %v", tag.TagName, err), err
	}
	return fmt.Sprintf("wrote %v to %s", value, tag.TagName), nil
}

// ReportSessionLoss marks the session dead and wakes the run loop to
// rebuild it. Called by the poller when a read fails with a session-level
// status code.
func (c *Connection) ReportSessionLoss() {
	c.mu.Lock()
	if c.state == StateConnected {
		c.state = StateDisconnected
	}
	c.mu.Unlock()
	c.persistStatus(sm.StatusDisconnected)
	select {
	case c.lost <- struct{}{}:
	default:
	}
}

// connectWithRetry dials until connected or ctx is cancelled. Delays double
// from one second up to the cap and never exceed it. Returns false only on
// cancellation.
func (c *Connection) connectWithRetry(ctx context.Context) bool {
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return false
		}
		if c.connect(ctx) {
			return true
		}
		delay := backoffDelay(attempt, c.backoffCap)
		c.log.Warnw("retrying connection",
			"station", c.cfg.StationName, "attempt", attempt+1, "delay", delay)
		if !sleepCtx(ctx, delay) {
			return false
		}
	}
}

// connect performs one authentication + connect attempt. Failures never
// propagate to the caller; they surface as a Faulty status and a structured
// failure reason.
func (c *Connection) connect(ctx context.Context) bool {
	c.setState(StateConnecting)

	// Always discard any previous session; never reuse a stale handle.
	c.mu.Lock()
	if c.transport != nil {
		if err := c.transport.Close(ctx); err != nil {
			c.log.Warnw("failed to close stale session", "station", c.cfg.StationName, "err", err)
		}
		c.transport = nil
	}
	c.mu.Unlock()

	transport, err := c.dial(c.cfg)
	if err == nil {
		err = transport.Connect(ctx)
	}
	if err != nil {
		c.setState(StateFaulty)
		c.persistStatus(sm.StatusFaulty)
		c.log.Errorw("connection failed",
			"station", c.cfg.StationName,
			"endpoint", c.cfg.EndpointURL,
			"reason", string(ClassifyFailure(err)),
			"err", err)
		return false
	}

	c.mu.Lock()
	c.transport = transport
	c.state = StateConnected
	c.mu.Unlock()

	now := time.Now().UTC()
	sctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()
	if err := c.store.SetLastConnected(sctx, c.cfg.ID, now); err != nil {
		c.log.Errorw("failed to record last_connected", "station", c.cfg.StationName, "err", err)
	}
	c.persistStatus(sm.StatusConnected)
	c.log.Infow("connected", "station", c.cfg.StationName, "endpoint", c.cfg.EndpointURL)
	return true
}

// superviseHealth runs periodic health checks until the session is lost
// (returns true, caller reconnects) or ctx is cancelled (returns false).
func (c *Connection) superviseHealth(ctx context.Context) bool {
	ticker := time.NewTicker(c.healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-c.lost:
			return true
		case <-ticker.C:
			if err := c.healthCheck(ctx); err != nil {
				c.log.Warnw("health check failed, reconnecting",
					"station", c.cfg.StationName, "err", err)
				c.setState(StateDisconnected)
				c.persistStatus(sm.StatusDisconnected)
				return true
			}
		}
	}
}

// healthCheck reads the server time node as a cheap liveness probe.
func (c *Connection) healthCheck(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return ErrNotConnected
	}
	_, err := c.transport.ReadValue(ctx, serverTimeNode)
	return err
}

func (c *Connection) shutdown() {
	c.mu.Lock()
	transport := c.transport
	c.transport = nil
	c.state = StateDisconnected
	c.mu.Unlock()
	if transport != nil {
		ctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
		defer cancel()
		if err := transport.Close(ctx); err != nil {
			c.log.Warnw("disconnect failed", "station", c.cfg.StationName, "err", err)
		}
	}
	c.persistStatus(sm.StatusDisconnected)
	c.log.Infow("disconnected", "station", c.cfg.StationName)
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Connection) persistStatus(status string) {
	ctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()
	if err := c.store.SetConnectionStatus(ctx, c.cfg.ID, status); err != nil {
		c.log.Errorw("failed to persist connection status",
			"station", c.cfg.StationName, "status", status, "err", err)
	}
}

func knownDataType(dataType string) bool {
	switch dataType {
	case sm.DataTypeBoolean, sm.DataTypeString, sm.DataTypeFloat, sm.DataTypeDouble,
		sm.DataTypeInt16, sm.DataTypeUInt16, sm.DataTypeInt32, sm.DataTypeUInt32,
		sm.DataTypeInt64, sm.DataTypeUInt64:
		return true
	}
	return false
}

// backoffDelay doubles from the base, capped. No jitter: delays are
// deterministic per attempt.
func backoffDelay(attempt int, cap time.Duration) time.Duration {
	delay := defaultBackoffBase
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	if delay > cap {
		return cap
	}
	return delay
}

// sleepCtx sleeps for d, returning false early if ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
