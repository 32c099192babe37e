package transport

import (
	"context"
	"errors"

	"github.com/zinohome/cozychat-voice/internal/audio"
)

// Status is the authoritative connection state of a transport.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// Event names emitted by a transport
const (
	EventMessage      = "message"
	EventAudio        = "audio"
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventError        = "error"
)

var (
	ErrMissingEndpoint   = errors.New("transport: endpoint URL is required")
	ErrMissingCredential = errors.New("transport: credential token is required")
	ErrHandshakeTimeout  = errors.New("transport: websocket handshake timed out")
	ErrAbnormalClosure   = errors.New("transport: connection closed abnormally")
	ErrSocketNotOpen     = errors.New("transport: socket is not open")
	ErrMicDenied         = errors.New("transport: microphone permission denied")
	ErrConnectAborted    = errors.New("transport: connect aborted by disconnect")
)

// Config carries everything a transport needs to reach the realtime
// endpoint and move audio in both directions.
type Config struct {
	// BaseURL is the HTTP(S) API root the realtime URL is derived from.
	BaseURL string

	// Credential is the ephemeral token negotiated during the handshake.
	// It travels inside a sub-protocol, never in the URL.
	Credential string

	// Capture supplies outbound microphone frames. Optional; a transport
	// without capture is receive-only.
	Capture audio.Capture

	// Sink receives decoded remote audio for playback. Optional.
	Sink audio.Sink
}

func (c Config) validate() error {
	if c.BaseURL == "" {
		return ErrMissingEndpoint
	}
	if c.Credential == "" {
		return ErrMissingCredential
	}
	return nil
}

// Transport is a bidirectional realtime connection to a voice endpoint.
// Implementations own their media resources and release them on Disconnect.
type Transport interface {
	// Connect establishes the connection, acquiring media resources first.
	// On any failure every acquired resource is released before returning.
	Connect(ctx context.Context) error

	// Disconnect tears the connection down and releases media resources.
	// Safe to call at any time, any number of times.
	Disconnect()

	// On registers a handler for a named event and returns an id for Off.
	On(event string, handler Handler) HandlerID

	// Off removes a previously registered handler.
	Off(event string, id HandlerID)

	// Send transmits a payload when the socket is open. Strings and byte
	// slices go as-is; anything else is JSON-encoded. Payloads offered to
	// a non-open socket are dropped.
	Send(payload interface{})

	// LocalStream exposes the outbound capture branch, nil until connected.
	LocalStream() audio.Capture

	// RemoteSink exposes the playback destination for remote audio, nil
	// for receive-less transports.
	RemoteSink() audio.Sink

	// Status reports the current connection state.
	Status() Status
}
