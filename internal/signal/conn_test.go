package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeDialer scripts Dial results for the connection manager.
type fakeDialer struct {
	mu        sync.Mutex
	dialCalls int
	dialErr   error
	block     chan struct{} // when non-nil, Dial blocks until closed
	connected bool
}

func (f *fakeDialer) Dial(ctx context.Context) error {
	f.mu.Lock()
	f.dialCalls++
	block := f.block
	err := f.dialErr
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err == nil {
		f.mu.Lock()
		f.connected = true
		f.mu.Unlock()
	}
	return err
}

func (f *fakeDialer) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeDialer) Close() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
}

func (f *fakeDialer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dialCalls
}

func newTestManager(d Dialer) *Manager {
	m := NewManager(d, nil, zap.NewNop())
	m.attemptTimeout = 100 * time.Millisecond
	m.baseRetry = 5 * time.Millisecond
	m.maxRetry = 20 * time.Millisecond
	m.pollInterval = 5 * time.Millisecond
	return m
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestConnectSingleFlight(t *testing.T) {
	d := &fakeDialer{block: make(chan struct{})}
	m := newTestManager(d)

	m.Connect()
	m.Connect()
	m.Connect()

	waitFor(t, func() bool { return d.calls() == 1 }, "first dial")
	// Let the attempt run for a moment; no further dials may start.
	time.Sleep(20 * time.Millisecond)
	if got := d.calls(); got != 1 {
		t.Errorf("dial calls = %d, want 1 (single-flight)", got)
	}
	close(d.block)
	waitFor(t, func() bool { return m.Status() == StatusConnected }, "connected status")
}

func TestConnectSuccessResetsRetryCount(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(d)
	m.retryCount = 4

	m.Connect()
	waitFor(t, func() bool { return m.Status() == StatusConnected }, "connected status")

	m.mu.Lock()
	got := m.retryCount
	m.mu.Unlock()
	if got != 0 {
		t.Errorf("retryCount = %d, want 0 after success", got)
	}
}

func TestLateSuccessWinsOverTimeout(t *testing.T) {
	// Dial reports a timeout but the channel is actually live by the time
	// the failure is examined: the manager must treat it as success.
	d := &fakeDialer{dialErr: context.DeadlineExceeded, connected: true}
	m := newTestManager(d)

	m.Connect()
	waitFor(t, func() bool { return m.Status() == StatusConnected }, "connected status")

	m.mu.Lock()
	timerArmed := m.retryTimer != nil
	retries := m.retryCount
	m.mu.Unlock()
	if timerArmed {
		t.Error("retry timer armed after a raced success")
	}
	if retries != 0 {
		t.Errorf("retryCount = %d, want 0", retries)
	}
}

func TestFailureSchedulesRetry(t *testing.T) {
	d := &fakeDialer{dialErr: errors.New("connection refused")}
	m := newTestManager(d)

	m.Connect()
	waitFor(t, func() bool { return d.calls() >= 3 }, "automatic retries")
}

func TestDisconnectCancelsRetry(t *testing.T) {
	d := &fakeDialer{dialErr: errors.New("connection refused")}
	m := newTestManager(d)
	m.baseRetry = 50 * time.Millisecond
	m.maxRetry = 50 * time.Millisecond

	m.Connect()
	waitFor(t, func() bool { return d.calls() == 1 && m.Status() == StatusDisconnected }, "first failure")

	m.Disconnect()
	time.Sleep(150 * time.Millisecond)
	if got := d.calls(); got != 1 {
		t.Errorf("dial calls = %d after Disconnect, want 1 (retry cancelled)", got)
	}
}

func TestDisconnectWhileDialing(t *testing.T) {
	d := &fakeDialer{block: make(chan struct{})}
	m := newTestManager(d)

	m.Connect()
	waitFor(t, func() bool { return d.calls() == 1 }, "dial start")

	m.Disconnect()
	close(d.block)

	// The late dial succeeds, but Disconnect already fenced the attempt:
	// the result must be discarded and the socket torn down again.
	waitFor(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return !m.inFlight
	}, "attempt completion")
	waitFor(t, func() bool { return !d.IsConnected() }, "late socket closed")
	if got := m.Status(); got != StatusDisconnected {
		t.Errorf("status = %s after Disconnect, want DISCONNECTED", got)
	}
	m.mu.Lock()
	timerArmed := m.retryTimer != nil
	m.mu.Unlock()
	if timerArmed {
		t.Error("retry timer armed for a fenced attempt")
	}
}

func TestDisconnectWhileDialingStopsRetryLoop(t *testing.T) {
	d := &fakeDialer{block: make(chan struct{}), dialErr: errors.New("connection refused")}
	m := newTestManager(d)

	m.Connect()
	waitFor(t, func() bool { return d.calls() == 1 }, "dial start")

	m.Disconnect()
	close(d.block)

	// A fenced failure must not re-arm the retry loop.
	time.Sleep(100 * time.Millisecond)
	if got := d.calls(); got != 1 {
		t.Errorf("dial calls = %d after Disconnect, want 1 (no retries)", got)
	}
	if got := m.Status(); got != StatusDisconnected {
		t.Errorf("status = %s, want DISCONNECTED", got)
	}
}

func TestRetryDelaySchedule(t *testing.T) {
	tests := []struct {
		n    int
		want time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{6, 30 * time.Second},
		{20, 30 * time.Second},
	}
	for _, tt := range tests {
		got := retryDelay(tt.n, time.Second, 30*time.Second)
		if got != tt.want {
			t.Errorf("retryDelay(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestClassifyDialError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", context.DeadlineExceeded, "timeout"},
		{"unauthorized", &StatusError{Code: http.StatusUnauthorized}, "auth"},
		{"forbidden", &StatusError{Code: http.StatusForbidden}, "auth"},
		{"not found", &StatusError{Code: http.StatusNotFound}, "not_found"},
		{"server error", &StatusError{Code: http.StatusBadGateway}, "network"},
		{"plain error", errors.New("refused"), "network"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyDialError(tt.err); got != tt.want {
				t.Errorf("classifyDialError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLivenessPollSkipsWhileInFlight(t *testing.T) {
	d := &fakeDialer{block: make(chan struct{})}
	m := newTestManager(d)
	m.StartLivenessPoll()
	defer m.StopLivenessPoll()

	m.Connect()
	waitFor(t, func() bool { return d.calls() == 1 }, "dial start")

	// While the attempt is in flight the poll must not flip the status
	// to DISCONNECTED even though the channel reports not connected.
	time.Sleep(30 * time.Millisecond)
	if got := m.Status(); got != StatusConnecting {
		t.Errorf("status during in-flight attempt = %s, want CONNECTING", got)
	}

	close(d.block)
	waitFor(t, func() bool { return m.Status() == StatusConnected }, "connected status")
}

func TestLivenessPollDetectsDrop(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(d)

	m.Connect()
	waitFor(t, func() bool { return m.Status() == StatusConnected }, "connected status")

	m.StartLivenessPoll()
	defer m.StopLivenessPoll()

	// Simulate the socket dying underneath the manager.
	d.Close()
	waitFor(t, func() bool { return m.Status() == StatusDisconnected }, "poll-detected drop")
}
