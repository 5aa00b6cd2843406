package translate

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeTransport scripts receive results and records sends, so lifecycle
// behavior can be tested without a live endpoint.
type fakeTransport struct {
	mu         sync.Mutex
	connectErr error
	sendErr    error
	sent       [][]byte
	results    chan ReceiveResult
	done       chan struct{}
	closed     bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		results: make(chan ReceiveResult, 32),
		done:    make(chan struct{}),
	}
}

func (t *fakeTransport) Connect(context.Context, string, http.Header) error {
	return t.connectErr
}

func (t *fakeTransport) Send(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	frame := make([]byte, len(payload))
	copy(frame, payload)
	t.sent = append(t.sent, frame)
	return nil
}

func (t *fakeTransport) Receive(timeout time.Duration) ReceiveResult {
	select {
	case res := <-t.results:
		return res
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-t.results:
		return res
	case <-t.done:
		return ReceiveResult{Kind: ReceiveClosed}
	case <-timer.C:
		return ReceiveResult{Kind: ReceiveTimedOut}
	}
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.done)
	}
	return nil
}

func (t *fakeTransport) pushFrame(payload string) {
	t.results <- ReceiveResult{Kind: ReceiveFrame, Payload: []byte(payload)}
}

func (t *fakeTransport) pushClosed(code int) {
	t.results <- ReceiveResult{Kind: ReceiveClosed, Code: &code}
}

func (t *fakeTransport) setSendErr(err error) {
	t.mu.Lock()
	t.sendErr = err
	t.mu.Unlock()
}

func (t *fakeTransport) sentFrames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	frames := make([]string, len(t.sent))
	for i, frame := range t.sent {
		frames[i] = string(frame)
	}
	return frames
}

func waitForPhase(t *testing.T, c *Client, want Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Phase() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("phase=%s, want %s", c.Phase(), want)
}

func recvString(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
		return ""
	}
}

func TestConnectSendsInitAndOpens(t *testing.T) {
	transport := newFakeTransport()
	opened := make(chan struct{}, 1)
	c := newClientWithTransport(Config{APIKey: "key"}, Callbacks{
		OnOpen: func() { opened <- struct{}{} },
	}, nil, transport)
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if got := c.Phase(); got != PhaseOpen {
		t.Fatalf("phase=%s, want %s", got, PhaseOpen)
	}

	select {
	case <-opened:
	default:
		t.Fatal("open callback not invoked")
	}

	frames := transport.sentFrames()
	if len(frames) != 1 {
		t.Fatalf("sent frames=%d, want 1 init frame", len(frames))
	}
	if !strings.Contains(frames[0], `"task_id"`) || !strings.Contains(frames[0], `"sample_rate":16000`) {
		t.Fatalf("init frame=%s", frames[0])
	}

	session := c.Session()
	if session.TaskID == "" {
		t.Fatal("session task id is empty")
	}
}

func TestDuplicateConnectIsNoOp(t *testing.T) {
	transport := newFakeTransport()
	c := newClientWithTransport(Config{}, Callbacks{}, nil, transport)
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect returned error: %v", err)
	}
	if got := len(transport.sentFrames()); got != 1 {
		t.Fatalf("sent frames=%d, want 1", got)
	}
}

func TestConnectFailureClosesAndSurfacesError(t *testing.T) {
	transport := newFakeTransport()
	transport.connectErr = NewError(ErrorStatusConnection, "refused")
	errs := make(chan string, 1)
	c := newClientWithTransport(Config{}, Callbacks{
		OnError: func(msg string) { errs <- msg },
	}, nil, transport)

	err := c.Connect(context.Background())
	if err == nil {
		t.Fatal("Connect error=nil, want non-nil")
	}
	if !IsErrorStatus(err, ErrorStatusConnection) {
		t.Fatalf("Connect error=%v, want connection status", err)
	}
	if got := c.Phase(); got != PhaseClosed {
		t.Fatalf("phase=%s, want %s", got, PhaseClosed)
	}
	if msg := recvString(t, errs); !strings.Contains(msg, "refused") {
		t.Fatalf("error callback=%q, want cause included", msg)
	}
}

func TestSendBeforeConnectIsNoOp(t *testing.T) {
	transport := newFakeTransport()
	c := newClientWithTransport(Config{}, Callbacks{}, nil, transport)

	err := c.SendAudio([]byte{1, 2, 3})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("SendAudio error=%v, want ErrNotConnected", err)
	}
	if got := len(transport.sentFrames()); got != 0 {
		t.Fatalf("sent frames=%d, want 0", got)
	}
}

func TestSendAfterCloseIsNoOp(t *testing.T) {
	transport := newFakeTransport()
	c := newClientWithTransport(Config{}, Callbacks{}, nil, transport)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	before := len(transport.sentFrames())
	for _, err := range []error{c.SendAudio([]byte{1}), c.SendImage([]byte{2}), c.SendEnd()} {
		if !IsErrorStatus(err, ErrorStatusInvalidState) {
			t.Fatalf("send after close error=%v, want invalid_state", err)
		}
	}
	if got := len(transport.sentFrames()); got != before {
		t.Fatalf("sent frames=%d, want %d (no transport contact)", got, before)
	}
}

func TestDispatchTextAndAudio(t *testing.T) {
	transport := newFakeTransport()
	texts := make(chan string, 4)
	audios := make(chan string, 4)
	c := newClientWithTransport(Config{}, Callbacks{
		OnText:  func(text string) { texts <- text },
		OnAudio: func(pcm []byte) { audios <- string(pcm) },
	}, nil, transport)
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	transport.pushFrame(`{"output":{"text":"hello"}}`)
	if got := recvString(t, texts); got != "hello" {
		t.Fatalf("text callback=%q, want %q", got, "hello")
	}

	transport.pushFrame(`{"output":{"audio":"aGVsbG8="}}`)
	if got := recvString(t, audios); got != "hello" {
		t.Fatalf("audio callback=%q, want %q", got, "hello")
	}
}

func TestVendorErrorKeepsSessionOpen(t *testing.T) {
	transport := newFakeTransport()
	texts := make(chan string, 4)
	errs := make(chan string, 4)
	c := newClientWithTransport(Config{}, Callbacks{
		OnText:  func(text string) { texts <- text },
		OnError: func(msg string) { errs <- msg },
	}, nil, transport)
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	transport.pushFrame(`{"error":{"code":"E1","message":"bad audio"}}`)
	if got := recvString(t, errs); got != "E1: bad audio" {
		t.Fatalf("error callback=%q, want %q", got, "E1: bad audio")
	}
	if got := c.Phase(); got != PhaseOpen {
		t.Fatalf("phase=%s, want %s", got, PhaseOpen)
	}

	transport.pushFrame(`{"output":{"text":"still here"}}`)
	if got := recvString(t, texts); got != "still here" {
		t.Fatalf("text callback=%q, want %q", got, "still here")
	}
}

func TestMalformedFrameBetweenWellFormed(t *testing.T) {
	transport := newFakeTransport()
	texts := make(chan string, 4)
	errs := make(chan string, 4)
	c := newClientWithTransport(Config{}, Callbacks{
		OnText:  func(text string) { texts <- text },
		OnError: func(msg string) { errs <- msg },
	}, nil, transport)
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	transport.pushFrame(`{"output":{"text":"first"}}`)
	transport.pushFrame(`{"output":`)
	transport.pushFrame(`{"output":{"text":"second"}}`)

	if got := recvString(t, texts); got != "first" {
		t.Fatalf("first text=%q, want %q", got, "first")
	}
	if got := recvString(t, texts); got != "second" {
		t.Fatalf("second text=%q, want %q", got, "second")
	}
	if len(errs) != 1 {
		t.Fatalf("error callbacks=%d, want exactly 1", len(errs))
	}
}

func TestRemoteCloseFiresClosedExactlyOnce(t *testing.T) {
	transport := newFakeTransport()
	codes := make(chan int, 4)
	c := newClientWithTransport(Config{}, Callbacks{
		OnClose: func(code *int) {
			if code == nil {
				codes <- -1
				return
			}
			codes <- *code
		},
	}, nil, transport)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	transport.pushClosed(1000)

	select {
	case code := <-codes:
		if code != 1000 {
			t.Fatalf("close code=%d, want 1000", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("close callback not invoked")
	}

	waitForPhase(t, c, PhaseClosed)
	if err := c.Close(); err != nil {
		t.Fatalf("Close after remote close returned error: %v", err)
	}

	select {
	case code := <-codes:
		t.Fatalf("close callback fired twice, second code=%d", code)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLocalCloseDoesNotFireClosed(t *testing.T) {
	transport := newFakeTransport()
	closedCalls := make(chan struct{}, 4)
	c := newClientWithTransport(Config{}, Callbacks{
		OnClose: func(*int) { closedCalls <- struct{}{} },
	}, nil, transport)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if got := c.Phase(); got != PhaseClosed {
		t.Fatalf("phase=%s, want %s", got, PhaseClosed)
	}

	select {
	case <-closedCalls:
		t.Fatal("close callback fired on local close")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReceiveTimeoutProbeSuccessKeepsSessionOpen(t *testing.T) {
	transport := newFakeTransport()
	errs := make(chan string, 4)
	c := newClientWithTransport(Config{
		ReceiveTimeout: 30 * time.Millisecond,
	}, Callbacks{
		OnError: func(msg string) { errs <- msg },
	}, nil, transport)
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, frame := range transport.sentFrames() {
			if frame == `{"type":"heartbeat"}` {
				if got := c.Phase(); got != PhaseOpen {
					t.Fatalf("phase=%s, want %s", got, PhaseOpen)
				}
				if len(errs) != 0 {
					t.Fatalf("error callbacks=%d, want 0", len(errs))
				}
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no liveness probe sent after receive timeout")
}

func TestReceiveTimeoutProbeFailureClosesSession(t *testing.T) {
	transport := newFakeTransport()
	errs := make(chan string, 4)
	closedCalls := make(chan struct{}, 4)
	c := newClientWithTransport(Config{
		ReceiveTimeout: 30 * time.Millisecond,
	}, Callbacks{
		OnError: func(msg string) { errs <- msg },
		OnClose: func(*int) { closedCalls <- struct{}{} },
	}, nil, transport)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	transport.setSendErr(errors.New("broken pipe"))

	if msg := recvString(t, errs); !strings.Contains(msg, "liveness probe failed") {
		t.Fatalf("error callback=%q, want probe failure", msg)
	}
	waitForPhase(t, c, PhaseClosed)

	if len(errs) != 0 {
		t.Fatalf("extra error callbacks=%d, want 0", len(errs))
	}
	select {
	case <-closedCalls:
		t.Fatal("close callback fired on probe failure (error path already surfaced)")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHeartbeatPingsWhenIdle(t *testing.T) {
	transport := newFakeTransport()
	c := newClientWithTransport(Config{
		HeartbeatInterval:  20 * time.Millisecond,
		StalenessThreshold: time.Nanosecond,
		ReceiveTimeout:     5 * time.Second,
	}, Callbacks{}, nil, transport)
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, frame := range transport.sentFrames() {
			if frame == `{"type":"heartbeat"}` {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("heartbeat monitor never pinged an idle connection")
}

func TestSetCallbacksMergesAndClears(t *testing.T) {
	transport := newFakeTransport()
	texts := make(chan string, 4)
	c := newClientWithTransport(Config{}, Callbacks{
		OnText: func(text string) { texts <- text },
	}, nil, transport)
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	// A partial update keeps the text handler.
	c.SetCallbacks(Callbacks{OnError: func(string) {}})
	transport.pushFrame(`{"output":{"text":"kept"}}`)
	if got := recvString(t, texts); got != "kept" {
		t.Fatalf("text callback=%q, want %q", got, "kept")
	}

	// Clearing requires the explicit no-op value.
	c.SetCallbacks(Callbacks{OnText: NopText})
	transport.pushFrame(`{"output":{"text":"dropped"}}`)
	select {
	case got := <-texts:
		t.Fatalf("text callback fired after clear: %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConcurrentSendsAreSerialized(t *testing.T) {
	transport := newFakeTransport()
	c := newClientWithTransport(Config{ReceiveTimeout: 5 * time.Second}, Callbacks{}, nil, transport)
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if err := c.SendAudio([]byte{0x01}); err != nil {
					t.Errorf("SendAudio returned error: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	// init + 200 audio chunks, each an intact frame.
	frames := transport.sentFrames()
	if len(frames) != 201 {
		t.Fatalf("sent frames=%d, want 201", len(frames))
	}
}
