package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zinohome/cozychat-voice/internal/audio"
	"github.com/zinohome/cozychat-voice/internal/lifecycle"
)

const (
	// Time allowed for the websocket handshake to complete.
	handshakeTimeout = 10 * time.Second

	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	sendBuffer = 256
)

// Sub-protocol names offered during the handshake. The middle entry
// carries the ephemeral credential so it never appears in the URL.
const (
	subprotoRealtime   = "realtime"
	subprotoCredPrefix = "openai-insecure-api-key."
	subprotoBeta       = "openai-beta.realtime-v1"
)

// baseDialer is copied for every connection attempt. Tests point its TLS
// configuration at self-signed endpoints.
var baseDialer = websocket.Dialer{HandshakeTimeout: handshakeTimeout}

type writeData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// RealtimeTransport is a Transport over a single websocket connection.
// Media resources are acquired before the socket opens and released in
// reverse order when anything fails.
type RealtimeTransport struct {
	cfg     Config
	logger  *zap.Logger
	emitter *emitter

	mu      sync.Mutex
	status  Status
	conn    *websocket.Conn
	send    chan writeData
	closing bool

	pumpCancel context.CancelFunc
	pumpDone   sync.WaitGroup
}

func NewRealtimeTransport(cfg Config, logger *zap.Logger) *RealtimeTransport {
	return &RealtimeTransport{
		cfg:     cfg,
		logger:  logger,
		emitter: newEmitter(),
		status:  StatusDisconnected,
	}
}

// Connect acquires the microphone, prepares playback, and dials the
// realtime endpoint. A failure at any step releases everything acquired
// so far before the error is returned.
func (t *RealtimeTransport) Connect(ctx context.Context) error {
	if err := t.cfg.validate(); err != nil {
		return err
	}

	t.mu.Lock()
	if t.status == StatusConnecting || t.status == StatusConnected {
		t.mu.Unlock()
		return nil
	}
	t.status = StatusConnecting
	t.closing = false
	t.mu.Unlock()

	wsURL, err := DeriveRealtimeURL(t.cfg.BaseURL)
	if err != nil {
		t.setStatus(StatusError)
		return err
	}

	var conn *websocket.Conn

	steps := []lifecycle.Step{
		{
			ID: "microphone",
			Run: func(ctx context.Context) error {
				if t.cfg.Capture == nil {
					return nil
				}
				if err := t.cfg.Capture.Start(ctx); err != nil {
					return fmt.Errorf("%w: %v", ErrMicDenied, err)
				}
				return nil
			},
			Rollback: func(ctx context.Context) {
				if t.cfg.Capture != nil {
					t.cfg.Capture.Stop()
				}
			},
		},
		{
			ID: "playback",
			Run: func(ctx context.Context) error {
				// The sink opens lazily on first write; nothing to do here.
				return nil
			},
			Rollback: func(ctx context.Context) {
				if t.cfg.Sink != nil {
					t.cfg.Sink.Flush()
				}
			},
		},
		{
			ID: "socket",
			Run: func(ctx context.Context) error {
				dialer := baseDialer
				dialer.Subprotocols = []string{
					subprotoRealtime,
					subprotoCredPrefix + t.cfg.Credential,
					subprotoBeta,
				}
				c, _, err := dialer.DialContext(ctx, wsURL, nil)
				if err != nil {
					if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
						return fmt.Errorf("%w: %v", ErrHandshakeTimeout, err)
					}
					return fmt.Errorf("dial %s: %w", wsURL, err)
				}
				conn = c
				return nil
			},
			Rollback: func(ctx context.Context) {
				if conn != nil {
					conn.Close()
				}
			},
		},
	}

	runner := lifecycle.NewRunner("transport-connect", handshakeTimeout+5*time.Second, t.logger)
	if _, err := runner.Execute(ctx, steps); err != nil {
		t.mu.Lock()
		if t.closing {
			t.status = StatusDisconnected
		} else {
			t.status = StatusError
		}
		t.mu.Unlock()
		return err
	}

	pumpCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	if t.closing {
		// Disconnect ran while the connect sequence was in flight. It
		// found nothing to release, so release everything here and stay
		// disconnected.
		t.status = StatusDisconnected
		t.mu.Unlock()
		cancel()
		conn.Close()
		if t.cfg.Capture != nil {
			t.cfg.Capture.Stop()
		}
		if t.cfg.Sink != nil {
			t.cfg.Sink.Flush()
		}
		return ErrConnectAborted
	}
	t.conn = conn
	t.send = make(chan writeData, sendBuffer)
	t.pumpCancel = cancel
	t.status = StatusConnected
	t.mu.Unlock()

	t.pumpDone.Add(2)
	go t.readPump()
	go t.writePump(pumpCtx)
	if t.cfg.Capture != nil {
		t.pumpDone.Add(1)
		go t.capturePump(pumpCtx)
	}

	t.logger.Info("Realtime transport connected", zap.String("url", wsURL))
	t.emitter.emit(EventConnected, nil)
	return nil
}

// Disconnect closes the socket with a normal closure code, stops the
// microphone, flushes playback, and drops every registered listener.
// Calling it on an already disconnected transport is a no-op.
func (t *RealtimeTransport) Disconnect() {
	t.mu.Lock()
	if t.status == StatusDisconnected {
		t.mu.Unlock()
		return
	}
	t.closing = true
	conn := t.conn
	cancel := t.pumpCancel
	t.conn = nil
	t.pumpCancel = nil
	t.status = StatusDisconnected
	t.mu.Unlock()

	// Stopping the capture first closes its frame channel, which lets the
	// capture pump drain and exit before we wait on it.
	if t.cfg.Capture != nil {
		t.cfg.Capture.Stop()
	}
	if conn != nil {
		deadline := time.Now().Add(writeWait)
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		conn.Close()
	}
	if cancel != nil {
		cancel()
	}
	t.pumpDone.Wait()

	if t.cfg.Sink != nil {
		t.cfg.Sink.Flush()
	}

	t.emitter.emit(EventDisconnected, nil)
	t.emitter.clear()
	t.logger.Info("Realtime transport disconnected")
}

func (t *RealtimeTransport) On(event string, handler Handler) HandlerID {
	return t.emitter.on(event, handler)
}

func (t *RealtimeTransport) Off(event string, id HandlerID) {
	t.emitter.off(event, id)
}

// Send queues a payload for the peer. Strings and byte slices go out
// verbatim; other values are JSON-encoded. Payloads offered while the
// socket is not open are logged and dropped, never an error.
func (t *RealtimeTransport) Send(payload interface{}) {
	t.mu.Lock()
	open := t.status == StatusConnected && t.send != nil
	send := t.send
	t.mu.Unlock()

	if !open {
		t.logger.Warn("Dropping payload, socket not open", zap.String("status", string(t.Status())))
		return
	}

	var data writeData
	switch p := payload.(type) {
	case string:
		data = writeData{Type: websocket.TextMessage, Payload: []byte(p)}
	case []byte:
		data = writeData{Type: websocket.BinaryMessage, Payload: p}
	default:
		encoded, err := json.Marshal(p)
		if err != nil {
			t.logger.Error("Failed to encode payload", zap.Error(err))
			return
		}
		data = writeData{Type: websocket.TextMessage, Payload: encoded}
	}

	select {
	case send <- data:
	default:
		t.logger.Warn("Send buffer full, dropping payload")
	}
}

// LocalStream exposes the outbound capture, nil for receive-only transports.
func (t *RealtimeTransport) LocalStream() audio.Capture {
	return t.cfg.Capture
}

// RemoteSink exposes the playback sink remote audio is routed to.
func (t *RealtimeTransport) RemoteSink() audio.Sink {
	return t.cfg.Sink
}

func (t *RealtimeTransport) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *RealtimeTransport) setStatus(s Status) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// readPump pumps frames from the socket to the event listeners. Every
// inbound frame becomes exactly one message event or one audio event.
func (t *RealtimeTransport) readPump() {
	defer t.pumpDone.Done()

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.handleClose(err)
			return
		}

		switch messageType {
		case websocket.TextMessage:
			var decoded map[string]interface{}
			if json.Unmarshal(data, &decoded) == nil {
				t.emitter.emit(EventMessage, decoded)
			} else {
				// Non-JSON text frames carry raw audio on some servers.
				t.routeAudio(data)
			}
		case websocket.BinaryMessage:
			t.routeAudio(data)
		default:
			t.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// routeAudio delivers one audio payload both to listeners and to the
// playback sink.
func (t *RealtimeTransport) routeAudio(data []byte) {
	t.emitter.emit(EventAudio, data)
	if t.cfg.Sink != nil {
		t.cfg.Sink.Play(data)
	}
}

func (t *RealtimeTransport) handleClose(err error) {
	t.mu.Lock()
	closing := t.closing
	conn := t.conn
	cancel := t.pumpCancel
	t.conn = nil
	t.pumpCancel = nil
	t.mu.Unlock()
	if closing {
		return
	}

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}

	if t.cfg.Capture != nil {
		t.cfg.Capture.Stop()
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		t.logger.Info("Peer closed connection")
		t.setStatus(StatusDisconnected)
		t.emitter.emit(EventDisconnected, nil)
		return
	}

	t.logger.Error("Connection closed abnormally", zap.Error(err))
	t.setStatus(StatusError)
	t.emitter.emit(EventError, fmt.Errorf("%w: %v", ErrAbnormalClosure, err))
}

// writePump pumps queued payloads to the socket and keeps it alive
// with periodic pings.
func (t *RealtimeTransport) writePump(ctx context.Context) {
	defer t.pumpDone.Done()

	t.mu.Lock()
	conn := t.conn
	send := t.send
	t.mu.Unlock()
	if conn == nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case message := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(message.Type, message.Payload); err != nil {
				t.logger.Error("Failed to write message", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// capturePump streams microphone frames to the peer as binary messages.
// It exits on pump cancellation as well as on frame channel closure, so
// Disconnect never waits on a capture whose Stop is owned elsewhere.
func (t *RealtimeTransport) capturePump(ctx context.Context) {
	defer t.pumpDone.Done()

	frames := t.cfg.Capture.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			t.Send(audio.PCM16ToBytes(frame))
		}
	}
}
