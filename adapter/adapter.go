// Package adapter owns the gateway connection and the per-frame pipeline.
//
// BotAdapter dials the chat gateway once, authenticates with a bearer
// token, and feeds every text frame through classify → store → dispatch.
// Frame faults are isolated: a malformed frame, a failed store write, or a
// broken handler costs that one frame, never the connection. Connection
// faults are fatal: a failed handshake or a read error ends the run, and
// the supervisor restarts the process.
package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/FredYakumo/zihuan-next/component"
	"github.com/FredYakumo/zihuan-next/dispatch"
	"github.com/FredYakumo/zihuan-next/errors"
	"github.com/FredYakumo/zihuan-next/event"
	"github.com/FredYakumo/zihuan-next/metric"
	"github.com/FredYakumo/zihuan-next/msgstore"
)

const componentName = "bot_adapter"

// BotAdapter bridges one gateway websocket to the message pipeline.
// Instances are one-shot: after termination a new adapter is built rather
// than restarted.
type BotAdapter struct {
	name   string
	config Config

	store      *msgstore.MessageStore
	dispatcher *dispatch.Dispatcher
	converter  event.SegmentConverter

	dialer *websocket.Dialer
	conn   *websocket.Conn
	connMu sync.Mutex

	state     atomic.Int32 // ConnState
	sessionID string

	logger  *slog.Logger
	metrics *Metrics
	core    *metric.Metrics

	runErr   error
	runErrMu sync.Mutex

	// Lifecycle management
	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
	doneOnce     sync.Once
	initialized  atomic.Bool
	started      atomic.Bool
	startTime    time.Time
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	lifecycleMu  sync.Mutex

	errorCount atomic.Int64
}

var _ component.Component = (*BotAdapter)(nil)

// Option configures a BotAdapter beyond its connection settings.
type Option func(*BotAdapter) error

// WithSegmentConverter replaces the default content segment converter
func WithSegmentConverter(convert event.SegmentConverter) Option {
	return func(a *BotAdapter) error {
		if convert == nil {
			return fmt.Errorf("segment converter must not be nil")
		}
		a.converter = convert
		return nil
	}
}

// New creates a gateway adapter wired to the given store and dispatcher
func New(
	name string,
	config Config,
	store *msgstore.MessageStore,
	dispatcher *dispatch.Dispatcher,
	deps component.Dependencies,
	opts ...Option,
) (*BotAdapter, error) {
	if name == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("component name is required"),
			componentName, "New", "validate name")
	}
	if store == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("message store is required"),
			componentName, "New", "validate store")
	}
	if dispatcher == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("dispatcher is required"),
			componentName, "New", "validate dispatcher")
	}

	a := &BotAdapter{
		name:       name,
		config:     config,
		store:      store,
		dispatcher: dispatcher,
		logger:     deps.GetLoggerWithComponent(name),
		metrics:    newMetrics(deps.Metrics, name),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	if deps.Metrics != nil {
		a.core = deps.Metrics.CoreMetrics()
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, errors.WrapInvalid(err, componentName, "New", "apply option")
		}
	}

	return a, nil
}

// Name returns the component name
func (a *BotAdapter) Name() string {
	return a.name
}

// Initialize validates the connection settings and prepares the dialer
func (a *BotAdapter) Initialize() error {
	a.config.applyDefaults()
	if err := a.config.Validate(); err != nil {
		return errors.WrapInvalid(err, componentName, "Initialize", "validate config")
	}

	a.dialer = &websocket.Dialer{
		HandshakeTimeout: a.config.HandshakeTimeout,
	}

	a.initialized.Store(true)
	return nil
}

// Start dials the gateway and launches the read loop. The handshake is
// synchronous: a dial failure is fatal and surfaces here, there is no
// retry.
func (a *BotAdapter) Start(ctx context.Context) error {
	a.lifecycleMu.Lock()
	defer a.lifecycleMu.Unlock()

	if !a.initialized.Load() {
		return errors.WrapFatal(
			fmt.Errorf("component not initialized"),
			componentName, "Start", "check initialized state")
	}
	if a.started.Load() {
		return errors.WrapFatal(
			fmt.Errorf("component already started"),
			componentName, "Start", "check started state")
	}
	if a.State() == StateTerminated {
		return errors.WrapFatal(
			fmt.Errorf("adapter already terminated"),
			componentName, "Start", "check terminal state")
	}

	a.sessionID = uuid.New().String()
	a.setState(StateConnecting)
	a.logger.Info("connecting to gateway",
		"url", a.config.URL,
		"session_id", a.sessionID)

	conn, resp, err := a.dialer.DialContext(ctx, a.config.URL, a.buildAuthHeaders())
	if err != nil {
		a.setState(StateTerminated)
		a.trackError("handshake_error")
		if resp != nil {
			err = fmt.Errorf("%v (gateway answered %s)", err, resp.Status)
			_ = resp.Body.Close()
		}
		return errors.WrapFatal(
			fmt.Errorf("%w: %v", errors.ErrHandshakeFailed, err),
			componentName, "Start", "dial gateway")
	}

	a.connMu.Lock()
	a.conn = conn
	a.connMu.Unlock()

	a.setState(StateConnected)
	a.logger.Info("gateway connection established", "session_id", a.sessionID)

	componentCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go a.readLoop(componentCtx, conn)

	a.startTime = time.Now()
	a.started.Store(true)
	return nil
}

// Stop closes the connection and waits for the read loop to drain
func (a *BotAdapter) Stop(timeout time.Duration) error {
	a.lifecycleMu.Lock()
	defer a.lifecycleMu.Unlock()

	if !a.started.Load() {
		return nil // Already stopped
	}

	// Signal shutdown exactly once
	a.shutdownOnce.Do(func() {
		close(a.shutdown)
	})
	if a.cancel != nil {
		a.cancel()
	}

	// Closing the socket unblocks ReadMessage.
	a.connMu.Lock()
	if a.conn != nil {
		_ = a.conn.Close()
		a.conn = nil
	}
	a.connMu.Unlock()

	// Wait for goroutines with timeout
	doneCh := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		// Clean shutdown
	case <-time.After(timeout):
		return errors.WrapTransient(
			fmt.Errorf("shutdown timeout after %v", timeout),
			componentName, "Stop", "wait for read loop")
	}

	a.setState(StateTerminated)
	a.doneOnce.Do(func() {
		close(a.done)
	})
	a.started.Store(false)
	a.logger.Info("gateway connection stopped",
		"session_id", a.sessionID,
		"uptime", time.Since(a.startTime).Round(time.Second).String(),
		"frame_errors", a.errorCount.Load())
	return nil
}

// Done is closed when the connection run has ended, whether by Stop or by
// connection loss.
func (a *BotAdapter) Done() <-chan struct{} {
	return a.done
}

// Err returns the terminal error of the run, nil after a clean stop.
// Valid once Done is closed.
func (a *BotAdapter) Err() error {
	a.runErrMu.Lock()
	defer a.runErrMu.Unlock()
	return a.runErr
}

// State returns the current connection state
func (a *BotAdapter) State() ConnState {
	return ConnState(a.state.Load())
}

// setState advances the state machine. Terminated is sticky.
func (a *BotAdapter) setState(s ConnState) {
	for {
		old := a.state.Load()
		if ConnState(old) == StateTerminated {
			return
		}
		if a.state.CompareAndSwap(old, int32(s)) {
			if ConnState(old) != s {
				a.logger.Debug("connection state changed",
					"from", ConnState(old).String(),
					"to", s.String())
			}
			if a.metrics != nil {
				a.metrics.connectionState.Set(float64(s))
			}
			return
		}
	}
}

// buildAuthHeaders creates the handshake headers with the bearer token
func (a *BotAdapter) buildAuthHeaders() http.Header {
	headers := http.Header{}
	if a.config.Token != "" {
		headers.Set("Authorization", "Bearer "+a.config.Token)
	}
	return headers
}

// readLoop consumes frames until the connection ends. Runs once per
// adapter; a read error is terminal.
func (a *BotAdapter) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer a.wg.Done()
	defer a.doneOnce.Do(func() {
		close(a.done)
	})

	for {
		select {
		case <-a.shutdown:
			a.setState(StateTerminated)
			return
		default:
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-a.shutdown:
				// The close error is the shutdown we asked for.
				a.setState(StateTerminated)
				return
			default:
			}

			a.trackError("read_error")
			a.setRunErr(errors.WrapFatal(
				fmt.Errorf("%w: %v", errors.ErrConnectionLost, err),
				componentName, "readLoop", "read frame"))
			a.logger.Error("gateway connection lost",
				"session_id", a.sessionID,
				"error", err)
			a.setState(StateTerminated)
			return
		}

		switch msgType {
		case websocket.TextMessage:
			a.processFrame(ctx, data)
		case websocket.BinaryMessage:
			a.logger.Debug("ignoring binary frame",
				"session_id", a.sessionID,
				"bytes", len(data))
			a.recordFrameReceived("binary")
			a.recordFrameProcessed("binary_ignored")
		}
	}
}

// processFrame runs one text frame through classify → store → dispatch.
// Every failure is absorbed here so the read loop survives the frame.
func (a *BotAdapter) processFrame(ctx context.Context, data []byte) {
	start := time.Now()
	a.recordFrameReceived("text")

	ev, outcome, err := event.Classify(data, a.converter)
	switch outcome {
	case event.OutcomeIgnored:
		a.logger.Debug("ignoring non-message event", "session_id", a.sessionID)
		a.recordFrameProcessed("ignored")
		return
	case event.OutcomeRejected:
		a.trackError("classify_error")
		a.logger.Warn("discarding malformed frame",
			"session_id", a.sessionID,
			"error", err)
		a.recordFrameProcessed("rejected")
		return
	}

	result := a.store.Store(ctx, ev.ID, string(ev.Raw))
	if result.Fallback {
		a.trackError("store_fallback")
	}

	routed, err := a.dispatcher.Dispatch(ctx, ev)
	switch {
	case err != nil:
		a.trackError("handler_error")
		a.logger.Error("handler failed",
			"message_id", ev.ID,
			"message_type", ev.Type.String(),
			"error", err)
	case routed:
		if a.metrics != nil {
			a.metrics.eventsDispatched.WithLabelValues(a.name, ev.Type.String()).Inc()
		}
	default:
		if a.metrics != nil {
			a.metrics.eventsSkipped.Inc()
		}
	}

	a.recordFrameProcessed("accepted")
	a.recordProcessingDuration(time.Since(start))
}

// setRunErr records the first terminal error of the run
func (a *BotAdapter) setRunErr(err error) {
	a.runErrMu.Lock()
	if a.runErr == nil {
		a.runErr = err
	}
	a.runErrMu.Unlock()
}

// trackError increments error counters (both atomic and metrics)
func (a *BotAdapter) trackError(errorType string) {
	a.errorCount.Add(1)
	if a.core != nil {
		a.core.RecordError(a.name, errorType)
	}
}

func (a *BotAdapter) recordFrameReceived(frameType string) {
	if a.core != nil {
		a.core.RecordFrameReceived(a.name, frameType)
	}
}

func (a *BotAdapter) recordFrameProcessed(outcome string) {
	if a.core != nil {
		a.core.RecordFrameProcessed(a.name, outcome)
	}
}

func (a *BotAdapter) recordProcessingDuration(d time.Duration) {
	if a.core != nil {
		a.core.RecordProcessingDuration(a.name, "frame", d)
	}
}
