package adapter

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FredYakumo/zihuan-next/component"
	"github.com/FredYakumo/zihuan-next/dispatch"
	"github.com/FredYakumo/zihuan-next/errors"
	"github.com/FredYakumo/zihuan-next/event"
	"github.com/FredYakumo/zihuan-next/metric"
	"github.com/FredYakumo/zihuan-next/msgstore"
)

const (
	privateFrame = `{"message_id":1001,"message_type":"private","sender":{"user_id":42,"nickname":"alice"},"message":[{"type":"text","data":{"text":"hello"}}]}`
	groupFrame   = `{"message_id":2002,"message_type":"group","group_id":77,"group_name":"ops","sender":{"user_id":42,"nickname":"alice","card":"Ops Alice"},"message":[{"type":"at","data":{"qq":99}},{"type":"text","data":{"text":"ping"}}]}`
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// gateway is a scripted server standing in for the chat gateway.
type gateway struct {
	server *httptest.Server
	conns  chan *websocket.Conn
	token  string
}

func newGateway(t *testing.T, token string) *gateway {
	t.Helper()

	g := &gateway{
		conns: make(chan *websocket.Conn, 4),
		token: token,
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(_ *http.Request) bool { return true },
	}

	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.token != "" && r.Header.Get("Authorization") != "Bearer "+g.token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		g.conns <- conn
	}))
	t.Cleanup(g.server.Close)

	return g
}

func (g *gateway) url() string {
	return "ws" + g.server.URL[4:] // Replace http with ws
}

func (g *gateway) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-g.conns:
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for adapter to connect")
		return nil
	}
}

// fixture wires an adapter to a memory store and channel handlers.
type fixture struct {
	adapter *BotAdapter
	store   *msgstore.MessageStore
	memory  *msgstore.MemoryBackend
	private chan *event.TypedEvent
	group   chan *event.TypedEvent
}

func newFixture(t *testing.T, cfg Config, registry *metric.MetricsRegistry, opts ...Option) *fixture {
	t.Helper()

	memory := msgstore.NewMemoryBackend()
	storeOpts := []msgstore.StoreOption{msgstore.WithLogger(testLogger())}
	store, err := msgstore.NewMessageStore(memory, msgstore.TierMemory, storeOpts...)
	require.NoError(t, err)

	f := &fixture{
		store:   store,
		memory:  memory,
		private: make(chan *event.TypedEvent, 8),
		group:   make(chan *event.TypedEvent, 8),
	}

	dispatcher := dispatch.NewDispatcher(testLogger())
	require.NoError(t, dispatcher.Register(event.TypePrivate, func(_ context.Context, ev *event.TypedEvent) error {
		f.private <- ev
		return nil
	}))
	require.NoError(t, dispatcher.Register(event.TypeGroup, func(_ context.Context, ev *event.TypedEvent) error {
		f.group <- ev
		return nil
	}))

	deps := component.Dependencies{
		Metrics: registry,
		Logger:  testLogger(),
	}

	f.adapter, err = New("test-adapter", cfg, store, dispatcher, deps, opts...)
	require.NoError(t, err)
	require.NoError(t, f.adapter.Initialize())

	t.Cleanup(func() { _ = f.adapter.Stop(2 * time.Second) })
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.adapter.Start(ctx))
}

func recvEvent(t *testing.T, ch chan *event.TypedEvent) *event.TypedEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for dispatched event")
		return nil
	}
}

func TestNew_Validation(t *testing.T) {
	store, err := msgstore.NewMessageStore(msgstore.NewMemoryBackend(), msgstore.TierMemory)
	require.NoError(t, err)
	dispatcher := dispatch.NewDispatcher(testLogger())
	deps := component.Dependencies{Logger: testLogger()}
	cfg := Config{URL: "ws://localhost/ws"}

	_, err = New("", cfg, store, dispatcher, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")

	_, err = New("a", cfg, nil, dispatcher, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message store is required")

	_, err = New("a", cfg, store, nil, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatcher is required")

	_, err = New("a", cfg, store, dispatcher, deps, WithSegmentConverter(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "converter must not be nil")
}

func TestInitialize_RejectsBadConfig(t *testing.T) {
	store, err := msgstore.NewMessageStore(msgstore.NewMemoryBackend(), msgstore.TierMemory)
	require.NoError(t, err)
	dispatcher := dispatch.NewDispatcher(testLogger())
	deps := component.Dependencies{Logger: testLogger()}

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"empty url", Config{}, "url is required"},
		{"http scheme", Config{URL: "http://gateway/ws"}, "must be ws or wss"},
		{"no host", Config{URL: "ws:///ws"}, "no host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New("test-adapter", tt.cfg, store, dispatcher, deps)
			require.NoError(t, err)

			err = a.Initialize()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestAdapter_PrivateMessageEndToEnd(t *testing.T) {
	g := newGateway(t, "")
	f := newFixture(t, Config{URL: g.url()}, nil)

	f.start(t)
	conn := g.accept(t)
	assert.Equal(t, StateConnected, f.adapter.State())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(privateFrame)))

	ev := recvEvent(t, f.private)
	assert.Equal(t, "1001", ev.ID)
	assert.Equal(t, event.TypePrivate, ev.Type)
	require.Len(t, ev.Segments, 1)
	assert.Equal(t, "hello", ev.PlainText())

	// The raw frame was stored verbatim before dispatch.
	stored, err := f.store.Retrieve(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, privateFrame, stored)
}

func TestAdapter_GroupMessageEndToEnd(t *testing.T) {
	g := newGateway(t, "")
	f := newFixture(t, Config{URL: g.url()}, nil)

	f.start(t)
	conn := g.accept(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(groupFrame)))

	ev := recvEvent(t, f.group)
	assert.Equal(t, "2002", ev.ID)
	assert.Equal(t, event.TypeGroup, ev.Type)
	assert.True(t, ev.IsGroup())
	assert.Equal(t, "77", ev.GroupID)
	assert.Equal(t, "ops", ev.GroupName)
	assert.Equal(t, []string{"99"}, ev.AtTargets())

	profile, err := event.DecodeProfile(ev.Sender)
	require.NoError(t, err)
	assert.Equal(t, "Ops Alice", profile.DisplayName(true))
}

func TestAdapter_BearerTokenSent(t *testing.T) {
	g := newGateway(t, "sekrit")
	f := newFixture(t, Config{URL: g.url(), Token: "sekrit"}, nil)

	f.start(t)
	g.accept(t)
	assert.Equal(t, StateConnected, f.adapter.State())
}

func TestAdapter_HandshakeFailureIsFatal(t *testing.T) {
	g := newGateway(t, "sekrit")
	f := newFixture(t, Config{URL: g.url(), Token: "wrong"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := f.adapter.Start(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrHandshakeFailed)
	assert.True(t, errors.IsFatal(err))
	assert.Equal(t, StateTerminated, f.adapter.State())

	// A terminated adapter refuses another run.
	err = f.adapter.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminated")
}

func TestAdapter_HeartbeatIgnored(t *testing.T) {
	g := newGateway(t, "")
	f := newFixture(t, Config{URL: g.url()}, nil)

	f.start(t)
	conn := g.accept(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"notice_type":"heartbeat","interval":5000}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(privateFrame)))

	// Frames process in order, so once the private message arrives the
	// heartbeat has already been through the pipeline.
	ev := recvEvent(t, f.private)
	assert.Equal(t, "1001", ev.ID)

	// Only the private message reached storage.
	assert.Equal(t, int64(1), f.memory.Stats().Writes)
}

func TestAdapter_MalformedFrameDoesNotKillRun(t *testing.T) {
	g := newGateway(t, "")
	f := newFixture(t, Config{URL: g.url()}, nil)

	f.start(t)
	conn := g.accept(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"message_type":"private","sender":{"user_id":1}}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(privateFrame)))

	ev := recvEvent(t, f.private)
	assert.Equal(t, "1001", ev.ID)
	assert.Equal(t, StateConnected, f.adapter.State())

	// The two bad frames stored nothing.
	assert.Equal(t, int64(1), f.memory.Stats().Writes)
}

func TestAdapter_BinaryFrameIgnored(t *testing.T) {
	g := newGateway(t, "")
	f := newFixture(t, Config{URL: g.url()}, nil)

	f.start(t)
	conn := g.accept(t)

	// Same payload, wrong frame type: must not enter the pipeline.
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte(privateFrame)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(groupFrame)))

	ev := recvEvent(t, f.group)
	assert.Equal(t, "2002", ev.ID)

	select {
	case ev := <-f.private:
		t.Fatalf("binary frame was dispatched: %+v", ev)
	default:
	}
	assert.Equal(t, int64(1), f.memory.Stats().Writes)
}

func TestAdapter_UnknownTypeStoredNotRouted(t *testing.T) {
	g := newGateway(t, "")
	f := newFixture(t, Config{URL: g.url()}, nil)

	f.start(t)
	conn := g.accept(t)

	channelFrame := `{"message_id":3003,"message_type":"channel","sender":{"user_id":42},"message":[]}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(channelFrame)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(privateFrame)))

	recvEvent(t, f.private)

	// The unknown category was stored but never handled.
	stored, err := f.store.Retrieve(context.Background(), "3003")
	require.NoError(t, err)
	assert.Equal(t, channelFrame, stored)

	select {
	case ev := <-f.group:
		t.Fatalf("unknown category was dispatched: %+v", ev)
	default:
	}
}

func TestAdapter_CustomConverter(t *testing.T) {
	g := newGateway(t, "")
	upper := func(seg event.RawSegment) (event.ContentSegment, error) {
		converted, err := event.DefaultConverter(seg)
		if err != nil {
			return converted, err
		}
		converted.Text = strings.ToUpper(converted.Text)
		return converted, nil
	}
	f := newFixture(t, Config{URL: g.url()}, nil, WithSegmentConverter(upper))

	f.start(t)
	conn := g.accept(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(privateFrame)))

	ev := recvEvent(t, f.private)
	assert.Equal(t, "HELLO", ev.PlainText())
}

func TestAdapter_ServerCloseEndsRun(t *testing.T) {
	g := newGateway(t, "")
	f := newFixture(t, Config{URL: g.url()}, nil)

	f.start(t)
	conn := g.accept(t)

	require.NoError(t, conn.Close())

	select {
	case <-f.adapter.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for run to end")
	}

	assert.ErrorIs(t, f.adapter.Err(), errors.ErrConnectionLost)
	assert.Equal(t, StateTerminated, f.adapter.State())
}

func TestAdapter_CleanStopHasNoError(t *testing.T) {
	g := newGateway(t, "")
	f := newFixture(t, Config{URL: g.url()}, nil)

	f.start(t)
	g.accept(t)

	require.NoError(t, f.adapter.Stop(2*time.Second))

	select {
	case <-f.adapter.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for run to end")
	}

	assert.NoError(t, f.adapter.Err())
	assert.Equal(t, StateTerminated, f.adapter.State())
}

func TestAdapter_HandlerErrorDoesNotKillRun(t *testing.T) {
	g := newGateway(t, "")

	memory := msgstore.NewMemoryBackend()
	store, err := msgstore.NewMessageStore(memory, msgstore.TierMemory,
		msgstore.WithLogger(testLogger()))
	require.NoError(t, err)

	dispatcher := dispatch.NewDispatcher(testLogger())
	calls := make(chan string, 8)
	require.NoError(t, dispatcher.Register(event.TypePrivate, func(_ context.Context, ev *event.TypedEvent) error {
		calls <- ev.ID
		if ev.ID == "1001" {
			panic("handler bug")
		}
		return nil
	}))

	a, err := New("test-adapter", Config{URL: g.url()}, store, dispatcher,
		component.Dependencies{Logger: testLogger()})
	require.NoError(t, err)
	require.NoError(t, a.Initialize())
	t.Cleanup(func() { _ = a.Stop(2 * time.Second) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Start(ctx))
	conn := g.accept(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(privateFrame)))
	second := strings.Replace(privateFrame, "1001", "1002", 1)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(second)))

	for _, want := range []string{"1001", "1002"} {
		select {
		case got := <-calls:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for handler call %s", want)
		}
	}
	assert.Equal(t, StateConnected, a.State())
}

func TestAdapter_Metrics(t *testing.T) {
	g := newGateway(t, "")
	registry := metric.NewMetricsRegistry()
	f := newFixture(t, Config{URL: g.url()}, registry)

	f.start(t)
	conn := g.accept(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(privateFrame)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"message_id":3003,"message_type":"channel","sender":{"user_id":1},"message":[]}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(groupFrame)))

	recvEvent(t, f.private)
	recvEvent(t, f.group)

	core := registry.CoreMetrics()
	// The outcome counter increments after the handler returns, so poll.
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(core.FramesProcessed.WithLabelValues("test-adapter", "accepted")) == 3
	}, 2*time.Second, 10*time.Millisecond, "all three frames should be accepted")

	assert.Equal(t, float64(3), testutil.ToFloat64(core.FramesReceived.WithLabelValues("test-adapter", "text")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.adapter.metrics.eventsDispatched.WithLabelValues("test-adapter", "private")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.adapter.metrics.eventsDispatched.WithLabelValues("test-adapter", "group")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.adapter.metrics.eventsSkipped))
	assert.Equal(t, float64(StateConnected), testutil.ToFloat64(f.adapter.metrics.connectionState))
}

func TestAdapter_Lifecycle(t *testing.T) {
	component.StandardLifecycleTests(t, func() component.Component {
		g := newGateway(t, "")
		f := newFixture(t, Config{URL: g.url()}, nil)
		return f.adapter
	})
}

func TestConnState_String(t *testing.T) {
	tests := []struct {
		state ConnState
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateTerminated, "terminated"},
		{ConnState(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}
