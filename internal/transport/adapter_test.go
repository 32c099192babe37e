package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/zinohome/cozychat-voice/internal/audio"
)

// fakeTransport is an in-memory Transport for exercising the adapter's
// state machine without a network.
type fakeTransport struct {
	events     *emitter
	connectErr error
	gate       chan struct{}

	mu          sync.Mutex
	status      Status
	connects    int
	disconnects int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: newEmitter(), status: StatusDisconnected}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connects++
	f.mu.Unlock()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.status = StatusConnected
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	f.disconnects++
	f.status = StatusDisconnected
	f.mu.Unlock()
	f.events.emit(EventDisconnected, nil)
	f.events.clear()
}

func (f *fakeTransport) On(event string, h Handler) HandlerID { return f.events.on(event, h) }
func (f *fakeTransport) Off(event string, id HandlerID)       { f.events.off(event, id) }
func (f *fakeTransport) Send(payload interface{})             {}
func (f *fakeTransport) LocalStream() audio.Capture           { return nil }
func (f *fakeTransport) RemoteSink() audio.Sink               { return nil }

func (f *fakeTransport) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func TestAdapterConnectWhileConnectedIsNoOp(t *testing.T) {
	fake := newFakeTransport()
	built := 0
	adapter := NewAgentAdapter(func() Transport {
		built++
		return fake
	}, zaptest.NewLogger(t))

	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("first Connect: %v", err)
	}
	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if built != 1 {
		t.Fatalf("factory invoked %d times, want 1", built)
	}
	if got := adapter.Status(); got != StatusConnected {
		t.Fatalf("status = %v, want connected", got)
	}
}

func TestAdapterConcurrentConnectShareOneAttempt(t *testing.T) {
	fake := newFakeTransport()
	fake.gate = make(chan struct{})

	built := 0
	adapter := NewAgentAdapter(func() Transport {
		built++
		return fake
	}, zaptest.NewLogger(t))

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			results <- adapter.Connect(context.Background())
		}()
	}

	// Let both callers reach the adapter before releasing the attempt.
	time.Sleep(50 * time.Millisecond)
	close(fake.gate)

	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			if err != nil {
				t.Fatalf("Connect: %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("Connect never returned")
		}
	}
	if built != 1 {
		t.Fatalf("factory invoked %d times for concurrent connects, want 1", built)
	}
}

func TestAdapterReconnectsAfterDisconnect(t *testing.T) {
	built := 0
	adapter := NewAgentAdapter(func() Transport {
		built++
		return newFakeTransport()
	}, zaptest.NewLogger(t))

	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	adapter.Disconnect()
	if got := adapter.Status(); got != StatusDisconnected {
		t.Fatalf("status = %v after disconnect, want disconnected", got)
	}

	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if built != 2 {
		t.Fatalf("factory invoked %d times, want 2", built)
	}
	if got := adapter.Status(); got != StatusConnected {
		t.Fatalf("status = %v after reconnect, want connected", got)
	}
}

func TestAdapterHandlersSurviveReconnect(t *testing.T) {
	var current *fakeTransport
	adapter := NewAgentAdapter(func() Transport {
		current = newFakeTransport()
		return current
	}, zaptest.NewLogger(t))

	received := make(chan interface{}, 4)
	adapter.On(EventMessage, func(p interface{}) { received <- p })

	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	current.events.emit(EventMessage, "first")
	if got := <-received; got != "first" {
		t.Fatalf("got %v, want first", got)
	}

	adapter.Disconnect()
	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	current.events.emit(EventMessage, "second")
	select {
	case got := <-received:
		if got != "second" {
			t.Fatalf("got %v, want second", got)
		}
	case <-time.After(time.Second):
		t.Fatal("handler did not survive reconnect")
	}
}

func TestAdapterFailedConnectRetries(t *testing.T) {
	boom := errors.New("gateway unreachable")
	built := 0
	adapter := NewAgentAdapter(func() Transport {
		built++
		tr := newFakeTransport()
		if built == 1 {
			tr.connectErr = boom
		}
		return tr
	}, zaptest.NewLogger(t))

	if err := adapter.Connect(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("got %v, want factory error", err)
	}
	if got := adapter.Status(); got != StatusError {
		t.Fatalf("status = %v after failure, want error", got)
	}

	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("retry Connect: %v", err)
	}
	if built != 2 {
		t.Fatalf("factory invoked %d times, want 2", built)
	}
}

func TestAdapterSendWithoutTransportDrops(t *testing.T) {
	adapter := NewAgentAdapter(func() Transport { return newFakeTransport() }, zaptest.NewLogger(t))
	adapter.Send("anything")
	if adapter.LocalStream() != nil {
		t.Fatal("LocalStream non-nil while disconnected")
	}
}
