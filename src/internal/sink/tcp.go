// FILE: logveil/src/internal/sink/tcp.go
package sink

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"logveil/src/internal/core"

	"github.com/lixenwraith/log"
)

// TCPConfig configures the TCP push sink.
type TCPConfig struct {
	Host                     string
	Port                     int64
	DialTimeoutSeconds       int64
	WriteTimeoutSeconds      int64
	KeepAliveSeconds         int64
	ReconnectDelayMS         int64
	MaxReconnectDelaySeconds int64
	ReconnectBackoff         float64
}

// TCPSink writes newline-delimited records over a TCP connection.
// Delivery is best effort: while disconnected, writes fail fast and
// the next dial attempt is gated by an exponential backoff.
type TCPSink struct {
	cfg    TCPConfig
	addr   string
	logger *log.Logger

	mu             sync.Mutex
	conn           net.Conn
	closed         bool
	nextDial       time.Time
	reconnectDelay time.Duration

	// Statistics
	startTime     time.Time
	totalWritten  atomic.Uint64
	totalFailed   atomic.Uint64
	totalConnects atomic.Uint64
	lastWrite     atomic.Value // time.Time
}

// NewTCPSink validates the address. The first dial happens lazily on
// the first write.
func NewTCPSink(cfg TCPConfig, logger *log.Logger) (*TCPSink, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("tcp sink host cannot be empty")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid tcp sink port: %d", cfg.Port)
	}
	if cfg.DialTimeoutSeconds <= 0 {
		cfg.DialTimeoutSeconds = 5
	}
	if cfg.WriteTimeoutSeconds <= 0 {
		cfg.WriteTimeoutSeconds = 5
	}
	if cfg.KeepAliveSeconds <= 0 {
		cfg.KeepAliveSeconds = 30
	}
	if cfg.ReconnectDelayMS <= 0 {
		cfg.ReconnectDelayMS = 500
	}
	if cfg.MaxReconnectDelaySeconds <= 0 {
		cfg.MaxReconnectDelaySeconds = 30
	}
	if cfg.ReconnectBackoff < 1.0 {
		cfg.ReconnectBackoff = 2.0
	}

	t := &TCPSink{
		cfg:            cfg,
		addr:           net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		logger:         logger,
		reconnectDelay: time.Duration(cfg.ReconnectDelayMS) * time.Millisecond,
		startTime:      time.Now(),
	}
	t.lastWrite.Store(time.Time{})

	logger.Info("msg", "TCP sink created",
		"component", "tcp_sink",
		"address", t.addr)
	return t, nil
}

// Write implements Sink.
func (t *TCPSink) Write(rec core.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		t.totalFailed.Add(1)
		return ErrClosed
	}

	if t.conn == nil {
		if err := t.dial(); err != nil {
			t.totalFailed.Add(1)
			return err
		}
	}

	deadline := time.Now().Add(time.Duration(t.cfg.WriteTimeoutSeconds) * time.Second)
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		t.dropConn()
		t.totalFailed.Add(1)
		return fmt.Errorf("tcp set deadline: %w", err)
	}

	data := rec.Data
	if len(data) == 0 || data[len(data)-1] != '\n' {
		data = append(append([]byte{}, data...), '\n')
	}
	if _, err := t.conn.Write(data); err != nil {
		t.dropConn()
		t.totalFailed.Add(1)
		return fmt.Errorf("tcp write: %w", err)
	}

	t.totalWritten.Add(1)
	t.lastWrite.Store(time.Now())
	return nil
}

// dial connects if the backoff gate allows it. MUST be called with
// mutex held.
func (t *TCPSink) dial() error {
	now := time.Now()
	if now.Before(t.nextDial) {
		return fmt.Errorf("tcp sink disconnected, next dial in %s", t.nextDial.Sub(now).Round(time.Millisecond))
	}

	dialer := &net.Dialer{
		Timeout:   time.Duration(t.cfg.DialTimeoutSeconds) * time.Second,
		KeepAlive: time.Duration(t.cfg.KeepAliveSeconds) * time.Second,
	}
	conn, err := dialer.Dial("tcp", t.addr)
	if err != nil {
		t.scheduleRedial(now)
		return fmt.Errorf("tcp dial %s: %w", t.addr, err)
	}

	t.conn = conn
	t.reconnectDelay = time.Duration(t.cfg.ReconnectDelayMS) * time.Millisecond
	t.totalConnects.Add(1)
	t.logger.Info("msg", "TCP sink connected",
		"component", "tcp_sink",
		"address", t.addr)
	return nil
}

// dropConn tears down a broken connection and arms the backoff.
// MUST be called with mutex held.
func (t *TCPSink) dropConn() {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.scheduleRedial(time.Now())
}

// scheduleRedial sets the next allowed dial time and grows the delay.
// MUST be called with mutex held.
func (t *TCPSink) scheduleRedial(now time.Time) {
	t.nextDial = now.Add(t.reconnectDelay)

	maxDelay := time.Duration(t.cfg.MaxReconnectDelaySeconds) * time.Second
	next := time.Duration(float64(t.reconnectDelay) * t.cfg.ReconnectBackoff)
	if next > maxDelay || next < t.reconnectDelay {
		next = maxDelay
	}
	t.reconnectDelay = next
}

// Close tears down the connection. Further writes fail with ErrClosed.
func (t *TCPSink) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		return fmt.Errorf("tcp close: %w", err)
	}
	return nil
}

func (t *TCPSink) GetStats() Stats {
	lastWrite, _ := t.lastWrite.Load().(time.Time)

	t.mu.Lock()
	connected := t.conn != nil
	t.mu.Unlock()

	return Stats{
		Type:         "tcp",
		TotalWritten: t.totalWritten.Load(),
		TotalFailed:  t.totalFailed.Load(),
		StartTime:    t.startTime,
		LastWrite:    lastWrite,
		Details: map[string]any{
			"address":        t.addr,
			"connected":      connected,
			"total_connects": t.totalConnects.Load(),
		},
	}
}
