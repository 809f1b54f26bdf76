// Package transport owns the physical WebSocket connection: its
// lifecycle state machine, bounded reconnect backoff, and the
// normalization of raw frames into protocol envelopes. Everything
// downstream of this package sees only Envelopes and States.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pokerclient/internal/protocol"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

const (
	baseRetryDelay   = time.Second
	maxRetryAttempts = 5
	writeTimeout     = 5 * time.Second
)

var ErrNotConnected = errors.New("not connected")

type Transport struct {
	url string
	log *zap.Logger

	mu          sync.Mutex
	state       State
	attempt     int
	conn        *websocket.Conn
	readCancel  context.CancelFunc
	retryTimer  *time.Timer
	manualClose bool

	envelopes chan protocol.Envelope
	states    chan State
}

func New(url string, log *zap.Logger) *Transport {
	return &Transport{
		url:       url,
		log:       log,
		envelopes: make(chan protocol.Envelope, 64),
		states:    make(chan State, 16),
	}
}

// Envelopes delivers normalized inbound frames, in arrival order.
func (t *Transport) Envelopes() <-chan protocol.Envelope { return t.envelopes }

// States delivers connection state transitions.
func (t *Transport) States() <-chan State { return t.states }

func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Attempts reports the current reconnect attempt counter. It is zero
// whenever the last open succeeded.
func (t *Transport) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempt
}

// Connect opens the socket. A no-op while already open or opening.
// Dial failures are not returned here: they feed the bounded retry
// machinery, and only exhaustion surfaces, as StateError. Calling
// Connect while parked in StateError starts a fresh attempt series.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.state == StateConnected || t.state == StateConnecting {
		t.mu.Unlock()
		return nil
	}
	if t.state == StateError {
		t.attempt = 0
	}
	t.manualClose = false
	if t.retryTimer != nil {
		t.retryTimer.Stop()
		t.retryTimer = nil
	}
	t.mu.Unlock()

	t.dial(ctx)
	return nil
}

func (t *Transport) dial(ctx context.Context) {
	t.mu.Lock()
	if t.manualClose || t.state == StateConnected {
		t.mu.Unlock()
		return
	}
	t.setStateLocked(StateConnecting)
	t.mu.Unlock()

	connID := uuid.NewString()
	log := t.log.With(zap.String("connId", connID))

	conn, _, err := websocket.Dial(ctx, t.url, nil)
	if err != nil {
		log.Warn("dial failed", zap.String("url", t.url), zap.Error(err))
		t.mu.Lock()
		t.setStateLocked(StateDisconnected)
		t.scheduleRetryLocked()
		t.mu.Unlock()
		return
	}

	readCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.conn = conn
	t.readCancel = cancel
	t.attempt = 0 // successful open resets the counter
	t.setStateLocked(StateConnected)
	t.mu.Unlock()

	log.Info("connected", zap.String("url", t.url))
	go t.readLoop(readCtx, conn, log)
}

func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn, log *zap.Logger) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Info("connection closed", zap.Error(err))
			default:
				log.Warn("read failed", zap.Error(err))
			}
			t.onConnClosed(conn)
			return
		}

		env, err := protocol.Normalize(data)
		if err != nil {
			// A bad frame never tears the stream down.
			log.Warn("dropping malformed frame", zap.Error(err), zap.ByteString("frame", data))
			continue
		}
		t.envelopes <- env
	}
}

func (t *Transport) onConnClosed(conn *websocket.Conn) {
	t.mu.Lock()
	if t.conn != conn {
		// A stale reader for a connection already replaced.
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.readCancel = nil
	t.setStateLocked(StateDisconnected)
	if !t.manualClose {
		t.scheduleRetryLocked()
	}
	t.mu.Unlock()
}

// retryDelay is 1s doubled per attempt: 1s, 2s, 4s, 8s, 16s.
func retryDelay(attempt int) time.Duration {
	return baseRetryDelay << (attempt - 1)
}

func (t *Transport) scheduleRetryLocked() {
	t.attempt++
	if t.attempt > maxRetryAttempts {
		// Parked. Only a manual Connect gets us out of here.
		t.log.Error("reconnect attempts exhausted", zap.Int("attempts", maxRetryAttempts))
		t.setStateLocked(StateError)
		return
	}
	delay := retryDelay(t.attempt)
	t.log.Info("scheduling reconnect",
		zap.Int("attempt", t.attempt),
		zap.Int("maxAttempts", maxRetryAttempts),
		zap.Duration("delay", delay))
	t.retryTimer = time.AfterFunc(delay, func() {
		t.dial(context.Background())
	})
}

// Send marshals cmd and writes it out, fire-and-forget. When the
// socket is not open it fails locally: commands are never queued and
// never retried.
func (t *Transport) Send(ctx context.Context, cmd protocol.Command) error {
	t.mu.Lock()
	conn := t.conn
	connected := t.state == StateConnected
	t.mu.Unlock()

	if !connected || conn == nil {
		t.log.Error("cannot send, socket not open", zap.String("command", cmd.Command))
		return ErrNotConnected
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}

// Disconnect cancels any pending reconnect and closes the socket
// without triggering a retry.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.manualClose = true
	if t.retryTimer != nil {
		t.retryTimer.Stop()
		t.retryTimer = nil
	}
	conn := t.conn
	cancel := t.readCancel
	t.conn = nil
	t.readCancel = nil
	t.setStateLocked(StateDisconnected)
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

func (t *Transport) setStateLocked(s State) {
	if t.state == s {
		return
	}
	t.state = s
	select {
	case t.states <- s:
	default:
		// Nobody draining fast enough; state can be polled.
	}
}
