package translate

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ReceiveKind classifies the outcome of a single Receive call.
type ReceiveKind int

const (
	// ReceiveFrame delivers one inbound payload.
	ReceiveFrame ReceiveKind = iota
	// ReceiveClosed reports that the stream is gone; Code carries the close
	// code when the remote side supplied one.
	ReceiveClosed
	// ReceiveTimedOut reports that no frame arrived within the timeout. The
	// stream itself is still intact.
	ReceiveTimedOut
)

// ReceiveResult is the tri-state outcome of Transport.Receive.
type ReceiveResult struct {
	Kind    ReceiveKind
	Payload []byte
	Code    *int
}

// Transport owns one raw bidirectional stream.
type Transport interface {
	Connect(ctx context.Context, endpoint string, header http.Header) error
	Send(payload []byte) error
	Receive(timeout time.Duration) ReceiveResult
	Close() error
}

// wsTransport adapts a gorilla WebSocket connection to the Transport
// contract. A dedicated reader goroutine pumps frames into a channel so a
// Receive timeout never poisons the underlying connection.
type wsTransport struct {
	handshakeTimeout time.Duration
	writeTimeout     time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	frames  chan []byte
	done    chan struct{}
	stop    chan struct{}
	closed  ReceiveResult
	stopped bool
}

func newWSTransport(handshakeTimeout, writeTimeout time.Duration) *wsTransport {
	return &wsTransport{
		handshakeTimeout: handshakeTimeout,
		writeTimeout:     writeTimeout,
	}
}

// Connect establishes the stream. Any previous connection is discarded.
func (t *wsTransport) Connect(ctx context.Context, endpoint string, header http.Header) error {
	dialer := websocket.Dialer{HandshakeTimeout: t.handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return NewErrorWithCause(ErrorStatusConnection, "failed to connect", err)
	}

	t.mu.Lock()
	if t.conn != nil {
		_ = t.conn.Close()
	}
	if t.stop != nil && !t.stopped {
		close(t.stop)
		t.stopped = true
	}
	t.conn = conn
	t.frames = make(chan []byte, 16)
	t.done = make(chan struct{})
	t.stop = make(chan struct{})
	t.stopped = false
	frames, done, stop := t.frames, t.done, t.stop
	t.mu.Unlock()

	go t.readPump(conn, frames, done, stop)
	return nil
}

func (t *wsTransport) readPump(conn *websocket.Conn, frames chan []byte, done chan struct{}, stop chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			t.closed = mapReadError(err)
			t.mu.Unlock()
			close(done)
			return
		}
		select {
		case frames <- data:
		case <-stop:
			return
		}
	}
}

func mapReadError(err error) ReceiveResult {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		code := closeErr.Code
		return ReceiveResult{Kind: ReceiveClosed, Code: &code}
	}
	return ReceiveResult{Kind: ReceiveClosed}
}

// Send writes one text frame. Callers serialize writes.
func (t *wsTransport) Send(payload []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	_ = conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return NewErrorWithCause(ErrorStatusSend, "write failed", err)
	}
	return nil
}

// Receive suspends the caller until a frame arrives, the stream closes, or
// the timeout elapses.
func (t *wsTransport) Receive(timeout time.Duration) ReceiveResult {
	t.mu.Lock()
	frames, done := t.frames, t.done
	t.mu.Unlock()
	if frames == nil {
		return ReceiveResult{Kind: ReceiveClosed}
	}

	// Frames buffered before a closure are still delivered in order.
	select {
	case data := <-frames:
		return ReceiveResult{Kind: ReceiveFrame, Payload: data}
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data := <-frames:
		return ReceiveResult{Kind: ReceiveFrame, Payload: data}
	case <-done:
		select {
		case data := <-frames:
			return ReceiveResult{Kind: ReceiveFrame, Payload: data}
		default:
		}
		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		return closed
	case <-timer.C:
		return ReceiveResult{Kind: ReceiveTimedOut}
	}
}

// Close tears down the stream. It is idempotent and safe from any state.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil && !t.stopped {
		close(t.stop)
		t.stopped = true
	}
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
