package publisher

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/anchorwatch/anchorsim/internal/sim"
)

const (
	sendChSize   = 10_000
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
)

// WebSocketPublisher streams state messages to a WebSocket server through a
// single write goroutine. Sends never block the tick loop; messages are
// dropped when the buffer is full.
type WebSocketPublisher struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{} // closed on shutdown
	closed bool

	wsURL string

	logger zerolog.Logger
}

// NewWebSocketPublisher dials the server and starts the write loop.
func NewWebSocketPublisher(rawURL string, logger zerolog.Logger) (*WebSocketPublisher, error) {
	p := &WebSocketPublisher{
		sendCh: make(chan []byte, sendChSize),
		done:   make(chan struct{}),
		wsURL:  rawURL,
		logger: logger,
	}

	conn, err := p.dialOnce()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()

	go p.writeLoop()

	return p, nil
}

func (p *WebSocketPublisher) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(p.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// PublishSnapshot queues the tick state for delivery.
func (p *WebSocketPublisher) PublishSnapshot(snap sim.Snapshot) error {
	data, err := json.Marshal(snapshotMessage{Type: "state", Snapshot: snap})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	p.send(data)
	return nil
}

// PublishTransition queues a stage change for delivery.
func (p *WebSocketPublisher) PublishTransition(fromStage, toStage string, rodeMeters float64, tick uint64) error {
	data, err := json.Marshal(transitionMessage{
		Type:       "stageTransition",
		FromStage:  fromStage,
		ToStage:    toStage,
		RodeMeters: rodeMeters,
		Tick:       tick,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal transition: %w", err)
	}
	p.send(data)
	return nil
}

// writeLoop drains sendCh and writes messages to the WebSocket.
// Only one writeLoop runs at a time; it returns on error or shutdown.
func (p *WebSocketPublisher) writeLoop() {
	for {
		select {
		case <-p.done:
			return
		case data := <-p.sendCh:
			p.mu.Lock()
			conn := p.conn
			p.mu.Unlock()

			if conn == nil {
				continue
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				p.logger.Warn().Err(err).Msg("WebSocket SetWriteDeadline error")
				go p.reconnect()
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				p.logger.Warn().Err(err).Msg("WebSocket write error")
				go p.reconnect()
				return
			}
		}
	}
}

// reconnect attempts to re-establish the connection with exponential
// backoff and restarts the write loop on success.
func (p *WebSocketPublisher) reconnect() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	p.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-p.done:
			return
		default:
		}

		p.logger.Info().Int("attempt", attempt).Dur("backoff", backoff).
			Msg("Reconnecting to WebSocket")
		time.Sleep(backoff)

		conn, err := p.dialOnce()
		if err != nil {
			p.logger.Warn().Err(err).Int("attempt", attempt).Msg("Reconnect dial failed")
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		p.mu.Lock()
		p.conn = conn
		p.mu.Unlock()

		p.logger.Info().Int("attempt", attempt).Msg("WebSocket reconnected")
		go p.writeLoop()
		return
	}

	p.logger.Error().Int("maxAttempts", maxReconnect).
		Msg("WebSocket reconnect failed after max attempts")
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (p *WebSocketPublisher) send(data []byte) {
	select {
	case p.sendCh <- data:
	default:
		p.logger.Warn().Msg("WebSocket send channel full, dropping message")
	}
}

// Close sends a close frame and shuts down the write loop.
func (p *WebSocketPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
