package translate

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/translate-client/internal/protocol"
)

// Client maintains one streaming-translate session against the vendor
// endpoint. It owns exactly two background tasks after a successful connect:
// the heartbeat monitor and the receive dispatcher. Both are cancelled and
// joined during Close.
type Client struct {
	cfg       Config
	logger    *zap.Logger
	transport Transport

	mu        sync.Mutex
	callbacks Callbacks
	taskID    string
	cancel    context.CancelFunc

	machine *stateMachine

	// writeMu serializes all sends to the single transport: caller-issued
	// audio/image/end frames and the monitor's heartbeats.
	writeMu sync.Mutex

	lastActivity atomic.Int64 // unix nanos

	loops sync.WaitGroup
}

// NewClient creates a client. A nil logger disables diagnostics.
func NewClient(cfg Config, callbacks Callbacks, logger *zap.Logger) *Client {
	cfg = normalizeConfig(cfg)
	return newClientWithTransport(cfg, callbacks, logger,
		newWSTransport(cfg.ConnectTimeout, cfg.WriteTimeout))
}

func newClientWithTransport(cfg Config, callbacks Callbacks, logger *zap.Logger, transport Transport) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cfg:       normalizeConfig(cfg),
		logger:    logger,
		callbacks: callbacks,
		transport: transport,
		machine:   newStateMachine(),
	}
	c.touch()
	return c
}

// Phase returns the current lifecycle phase.
func (c *Client) Phase() Phase {
	return c.machine.Phase()
}

// Session returns a point-in-time view of the connection.
func (c *Client) Session() Session {
	c.mu.Lock()
	taskID := c.taskID
	c.mu.Unlock()
	return Session{
		TaskID:       taskID,
		Phase:        c.machine.Phase(),
		LastActivity: time.Unix(0, c.lastActivity.Load()),
	}
}

// SetCallbacks replaces the registered handlers atomically. Nil slots keep
// their previous value; pass the Nop handlers to clear a slot explicitly.
func (c *Client) SetCallbacks(callbacks Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if callbacks.OnText != nil {
		c.callbacks.OnText = callbacks.OnText
	}
	if callbacks.OnAudio != nil {
		c.callbacks.OnAudio = callbacks.OnAudio
	}
	if callbacks.OnError != nil {
		c.callbacks.OnError = callbacks.OnError
	}
	if callbacks.OnClose != nil {
		c.callbacks.OnClose = callbacks.OnClose
	}
	if callbacks.OnOpen != nil {
		c.callbacks.OnOpen = callbacks.OnOpen
	}
}

func (c *Client) snapshotCallbacks() Callbacks {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callbacks
}

// Connect establishes the session: transport handshake, init frame, then the
// heartbeat monitor and receive dispatcher. A connect while the session is
// already connecting or open is a logged no-op.
func (c *Client) Connect(ctx context.Context) error {
	if !c.machine.beginConnect() {
		c.logger.Warn("connect ignored: session already active",
			zap.String("phase", c.machine.Phase().String()),
		)
		return nil
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	header.Set("Content-Type", "application/json")

	c.logger.Info("connecting to streaming-translate endpoint",
		zap.String("endpoint", c.cfg.Endpoint),
		zap.String("model_id", c.cfg.ModelID),
		zap.String("target_language", c.cfg.TargetLanguage),
	)

	if err := c.transport.Connect(ctx, c.cfg.Endpoint, header); err != nil {
		c.machine.markClosed()
		c.emitError(err.Error())
		c.logger.Error("connect failed", zap.Error(err))
		return err
	}

	taskID, initFrame, err := protocol.EncodeInit(protocol.InitConfig{
		TargetLanguage: c.cfg.TargetLanguage,
		Voice:          c.cfg.Voice,
		AudioEnabled:   c.cfg.AudioEnabled,
	})
	if err == nil {
		err = c.sendRaw(initFrame)
	}
	if err != nil {
		_ = c.transport.Close()
		c.machine.markClosed()
		connErr := NewErrorWithCause(ErrorStatusConnection, "init frame failed", err)
		c.emitError(connErr.Error())
		c.logger.Error("init frame failed", zap.Error(err))
		return connErr
	}

	c.touch()
	c.machine.open()

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.taskID = taskID
	c.cancel = cancel
	c.mu.Unlock()

	c.loops.Add(2)
	go c.heartbeatLoop(runCtx)
	go c.receiveLoop(runCtx)

	c.logger.Info("session open", zap.String("task_id", taskID))
	if cb := c.snapshotCallbacks().OnOpen; cb != nil {
		cb()
	}
	return nil
}

// SendAudio streams one chunk of 16 kHz mono PCM.
func (c *Client) SendAudio(pcm []byte) error {
	frame, err := protocol.EncodeAudioChunk(pcm)
	if err != nil {
		return NewErrorWithCause(ErrorStatusSend, "encode audio chunk", err)
	}
	return c.send(frame)
}

// SendImage streams one image frame.
func (c *Client) SendImage(image []byte) error {
	frame, err := protocol.EncodeImageChunk(image)
	if err != nil {
		return NewErrorWithCause(ErrorStatusSend, "encode image chunk", err)
	}
	return c.send(frame)
}

// SendEnd signals end-of-input to the remote service. The session stays open
// for trailing results.
func (c *Client) SendEnd() error {
	frame, err := protocol.EncodeEnd()
	if err != nil {
		return NewErrorWithCause(ErrorStatusSend, "encode end signal", err)
	}
	return c.send(frame)
}

// send issues one caller frame. Outside the open phase it is a no-op that
// surfaces a not-connected condition instead of panicking.
func (c *Client) send(frame []byte) error {
	if phase := c.machine.Phase(); phase != PhaseOpen {
		c.logger.Warn("send skipped: session not open", zap.String("phase", phase.String()))
		return ErrNotConnected
	}
	if err := c.sendRaw(frame); err != nil {
		sendErr := NewErrorWithCause(ErrorStatusSend, "send failed", err)
		c.emitError(sendErr.Error())
		return sendErr
	}
	c.touch()
	return nil
}

func (c *Client) sendRaw(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.transport.Send(frame)
}

// Close cancels both background tasks, closes the transport, and waits for
// the tasks to exit. It is idempotent and never fires the closed callback.
func (c *Client) Close() error {
	if !c.machine.beginClose() {
		return nil
	}

	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	err := c.transport.Close()
	c.loops.Wait()
	c.machine.markClosed()
	c.logger.Info("session closed")
	return err
}

// heartbeatLoop wakes every HeartbeatInterval and probes the connection when
// no frame was sent or received within StalenessThreshold. A failed probe
// ends the monitor; the dispatcher detects and handles the broken stream.
func (c *Client) heartbeatLoop(ctx context.Context) {
	defer c.loops.Done()

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if c.machine.Phase() != PhaseOpen {
			return
		}
		idle := time.Since(time.Unix(0, c.lastActivity.Load()))
		if idle <= c.cfg.StalenessThreshold {
			continue
		}

		ping, err := protocol.EncodeHeartbeatPing()
		if err == nil {
			err = c.sendRaw(ping)
		}
		if err != nil {
			c.logger.Warn("heartbeat send failed; stopping monitor", zap.Error(err))
			return
		}
		c.logger.Debug("heartbeat sent", zap.Duration("idle", idle))
		c.touch()
	}
}

// receiveLoop reads inbound units until the stream closes or the session is
// shut down. One malformed frame never terminates the loop.
func (c *Client) receiveLoop(ctx context.Context) {
	defer c.loops.Done()
	defer c.stopLoops()

	for {
		if ctx.Err() != nil {
			return
		}

		result := c.transport.Receive(c.cfg.ReceiveTimeout)
		switch result.Kind {
		case ReceiveTimedOut:
			if !c.probeAfterTimeout() {
				return
			}

		case ReceiveClosed:
			_ = c.transport.Close()
			prev := c.machine.markClosed()
			if prev == PhaseOpen || prev == PhaseConnecting {
				c.logger.Warn("connection closed by remote", zap.Any("code", closeCodeField(result.Code)))
				if cb := c.snapshotCallbacks().OnClose; cb != nil {
					cb(result.Code)
				}
			}
			return

		case ReceiveFrame:
			c.touch()
			c.dispatchFrame(result.Payload)
		}
	}
}

// probeAfterTimeout sends a heartbeat to check liveness after a receive
// timeout. It reports false when the probe failed and the session was closed.
func (c *Client) probeAfterTimeout() bool {
	c.logger.Warn("receive timed out; probing connection")

	ping, err := protocol.EncodeHeartbeatPing()
	if err == nil {
		err = c.sendRaw(ping)
	}
	if err != nil {
		timeoutErr := NewErrorWithCause(ErrorStatusTimeout, "liveness probe failed", err)
		c.logger.Error("liveness probe failed; closing session", zap.Error(err))
		c.emitError(timeoutErr.Error())
		_ = c.transport.Close()
		c.machine.markClosed()
		return false
	}
	c.touch()
	c.logger.Info("liveness probe sent; connection healthy")
	return true
}

func (c *Client) dispatchFrame(payload []byte) {
	events, err := protocol.DecodeInbound(payload)
	if err != nil {
		decodeErr := NewErrorWithCause(ErrorStatusDecode, "malformed inbound frame", err)
		c.logger.Error("malformed inbound frame", zap.Error(err))
		c.emitError(decodeErr.Error())
	}

	callbacks := c.snapshotCallbacks()
	for _, event := range events {
		switch event.Kind {
		case protocol.EventText:
			c.logger.Debug("text received", zap.Int("chars", len(event.Text)))
			if callbacks.OnText != nil {
				callbacks.OnText(event.Text)
			}
		case protocol.EventAudio:
			c.logger.Debug("audio received", zap.Int("bytes", len(event.Audio)))
			if callbacks.OnAudio != nil {
				callbacks.OnAudio(event.Audio)
			}
		case protocol.EventError:
			c.logger.Error("vendor error frame",
				zap.String("code", event.Code),
				zap.String("message", event.Message),
			)
			if callbacks.OnError != nil {
				callbacks.OnError(event.ErrorText())
			}
		case protocol.EventHeartbeatAck:
			c.logger.Debug("heartbeat acknowledged")
		}
	}
}

// stopLoops cancels the sibling task when either loop exits on its own.
func (c *Client) stopLoops() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Client) emitError(message string) {
	if cb := c.snapshotCallbacks().OnError; cb != nil {
		cb(message)
	}
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

func closeCodeField(code *int) any {
	if code == nil {
		return nil
	}
	return *code
}
