package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"agent-funding-engine/internal/domain"
)

// WSStreamConfig configures the settlement stream client.
type WSStreamConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the delivery channel capacity.
	Buffer int
}

// DefaultWSStreamConfig returns default stream configuration.
func DefaultWSStreamConfig() WSStreamConfig {
	return WSStreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            256,
	}
}

// WSFillStream implements FillStream over the exchange settlement
// WebSocket. The exchange redelivers recent fills after a reconnect, so
// consumers must de-duplicate by FillID.
type WSFillStream struct {
	endpoint string
	config   WSStreamConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	out  chan domain.FillEvent
	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSFillStream creates a stream client and connects to the endpoint.
func NewWSFillStream(ctx context.Context, endpoint string, config *WSStreamConfig) (*WSFillStream, error) {
	cfg := DefaultWSStreamConfig()
	if config != nil {
		cfg = *config
	}

	s := &WSFillStream{
		endpoint: endpoint,
		config:   cfg,
		out:      make(chan domain.FillEvent, cfg.Buffer),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// Compile-time interface check.
var _ FillStream = (*WSFillStream)(nil)

// connect establishes the WebSocket connection.
func (s *WSFillStream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// fillMessage is the wire shape of one settlement push.
type fillMessage struct {
	FillID         string  `json:"fill_id"`
	AccountAddress string  `json:"account_address"`
	ClosedPnl      float64 `json:"closed_pnl"`
	SettledAt      int64   `json:"settled_at"`
}

// Subscribe starts delivery of settled fills. The returned channel closes
// when the stream shuts down or ctx is cancelled.
func (s *WSFillStream) Subscribe(ctx context.Context) (<-chan domain.FillEvent, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("stream closed")
	}

	s.wg.Add(1)
	go s.readLoop(ctx)

	s.wg.Add(1)
	go s.pingLoop()

	return s.out, nil
}

// readLoop reads settlement messages, reconnecting with backoff on failure.
func (s *WSFillStream) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.out)

	delay := s.config.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		default:
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			// Reconnect with backoff
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > s.config.MaxReconnectDelay {
				delay = s.config.MaxReconnectDelay
			}
			if err := s.connect(ctx); err != nil {
				continue
			}
			delay = s.config.ReconnectDelay
			continue
		}

		var msg fillMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue // skip malformed frames
		}
		if msg.FillID == "" {
			continue
		}

		event := domain.FillEvent{
			FillID:         msg.FillID,
			AccountAddress: msg.AccountAddress,
			ClosedPnl:      msg.ClosedPnl,
			SettledAt:      msg.SettledAt,
		}

		select {
		case s.out <- event:
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

// pingLoop keeps the connection alive.
func (s *WSFillStream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			conn := s.conn
			if conn != nil {
				conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.connMu.Unlock()
		}
	}
}

// Close tears down the stream.
func (s *WSFillStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return nil
}
