package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/mkravets/vox/internal/bus"
	"go.uber.org/zap"
)

// Status is the externally observable connection status.
type Status string

const (
	StatusDisconnected Status = "DISCONNECTED"
	StatusConnecting   Status = "CONNECTING"
	StatusConnected    Status = "CONNECTED"
)

// Dialer is the slice of Channel the connection manager drives.
type Dialer interface {
	Dial(ctx context.Context) error
	IsConnected() bool
	Close()
}

const (
	defaultAttemptTimeout = 30 * time.Second
	defaultBaseRetry      = time.Second
	defaultMaxRetry       = 30 * time.Second
	defaultPollInterval   = 5 * time.Second
)

// Manager owns the lifecycle of the signaling channel: single-flight connect
// attempts, bounded attempt timeout, exponential retry, and a liveness poll
// that re-syncs the observable status.
//
// Failures are always retried; Disconnect is the only way to stop retrying.
type Manager struct {
	ch  Dialer
	bus *bus.Bus
	log *zap.Logger

	attemptTimeout time.Duration
	baseRetry      time.Duration
	maxRetry       time.Duration
	pollInterval   time.Duration

	mu         sync.Mutex
	status     Status
	retryCount int
	retryTimer *time.Timer
	inFlight   bool
	epoch      int
	pollStop   chan struct{}
}

// NewManager creates a connection manager around ch.
func NewManager(ch Dialer, b *bus.Bus, log *zap.Logger) *Manager {
	return &Manager{
		ch:             ch,
		bus:            b,
		log:            log,
		status:         StatusDisconnected,
		attemptTimeout: defaultAttemptTimeout,
		baseRetry:      defaultBaseRetry,
		maxRetry:       defaultMaxRetry,
		pollInterval:   defaultPollInterval,
	}
}

// Status returns the current connection status without side effects.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// IsConnected reports whether the channel is currently connected.
func (m *Manager) IsConnected() bool {
	return m.Status() == StatusConnected
}

// Connect starts a connection attempt unless one is already in flight.
// The attempt itself runs asynchronously; completion is observable via
// Status and the conn.* bus events.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return
	}
	m.inFlight = true
	m.setStatusLocked(StatusConnecting)
	epoch := m.epoch
	m.mu.Unlock()

	go m.attempt(epoch)
}

// Disconnect cancels any pending retry, fences any in-flight attempt, and
// tears down the channel. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.retryCount = 0
	m.epoch++
	m.setStatusLocked(StatusDisconnected)
	m.mu.Unlock()

	m.ch.Close()
}

// StartLivenessPoll begins the periodic re-sync of the observable status
// against the channel's actual state. Updates are skipped while a connect
// attempt is in flight so a stale poll cannot race an in-progress connect.
func (m *Manager) StartLivenessPoll() {
	m.mu.Lock()
	if m.pollStop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.pollStop = stop
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.pollOnce()
			case <-stop:
				return
			}
		}
	}()
}

// StopLivenessPoll stops the poll started by StartLivenessPoll.
func (m *Manager) StopLivenessPoll() {
	m.mu.Lock()
	if m.pollStop != nil {
		close(m.pollStop)
		m.pollStop = nil
	}
	m.mu.Unlock()
}

func (m *Manager) pollOnce() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return
	}
	if m.ch.IsConnected() {
		m.setStatusLocked(StatusConnected)
	} else if m.status == StatusConnected {
		m.setStatusLocked(StatusDisconnected)
	}
}

func (m *Manager) attempt(epoch int) {
	ctx, cancel := context.WithTimeout(context.Background(), m.attemptTimeout)
	err := m.ch.Dial(ctx)
	cancel()

	// A timeout or error and a success notification can land in either
	// order; the channel's live state is authoritative, so a late success
	// must win over the stale failure.
	if err != nil && m.ch.IsConnected() {
		err = nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false

	// Disconnect ran while the dial was in flight. Discard the result and
	// tear down any socket the late dial managed to establish.
	if epoch != m.epoch {
		go m.ch.Close()
		return
	}

	if err == nil {
		m.retryCount = 0
		m.setStatusLocked(StatusConnected)
		m.log.Info("signaling channel connected")
		return
	}

	class := classifyDialError(err)
	m.log.Warn("signaling connect attempt failed",
		zap.String("class", class),
		zap.Int("retry_count", m.retryCount),
		zap.Error(err),
	)
	m.setStatusLocked(StatusDisconnected)
	m.scheduleRetryLocked()
}

// scheduleRetryLocked arms the retry timer, replacing any pending one.
// Caller must hold m.mu.
func (m *Manager) scheduleRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
	}
	delay := retryDelay(m.retryCount, m.baseRetry, m.maxRetry)
	m.retryCount++
	m.retryTimer = time.AfterFunc(delay, m.Connect)
}

func (m *Manager) setStatusLocked(s Status) {
	if m.status == s {
		return
	}
	m.status = s
	if m.bus != nil {
		m.bus.Publish(bus.Event{Kind: bus.KindConnStatus, Timestamp: time.Now(), Payload: s})
	}
}

// retryDelay returns min(base * 2^n, max).
func retryDelay(n int, base, max time.Duration) time.Duration {
	delay := base
	for i := 0; i < n; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// classifyDialError buckets a dial failure for logging. Every class shares
// the same retry policy.
func classifyDialError(err error) string {
	var statusErr *StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &statusErr):
		switch statusErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return "auth"
		case http.StatusNotFound:
			return "not_found"
		}
		return "network"
	default:
		return "network"
	}
}
