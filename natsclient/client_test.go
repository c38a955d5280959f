package natsclient

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test basic client creation
func TestNewClient(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	assert.NoError(t, err)

	assert.NotNil(t, client)
	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsConnected())
}

// Test default configuration values
func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, -1, client.maxReconnects)
	assert.Equal(t, 2*time.Second, client.reconnectWait)
	assert.Equal(t, 30*time.Second, client.pingInterval)
	assert.Equal(t, 5*time.Second, client.timeout)
	assert.Equal(t, 30*time.Second, client.drainTimeout)
	assert.Empty(t, client.token)
	assert.Empty(t, client.clientName)
}

// Test option application
func TestNewClient_WithOptions(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithMaxReconnects(3),
		WithReconnectWait(5*time.Second),
		WithPingInterval(time.Minute),
		WithTimeout(10*time.Second),
		WithDrainTimeout(time.Minute),
		WithToken("secret-token"),
		WithName("zihuan-next"),
	)
	require.NoError(t, err)

	assert.Equal(t, 3, client.maxReconnects)
	assert.Equal(t, 5*time.Second, client.reconnectWait)
	assert.Equal(t, time.Minute, client.pingInterval)
	assert.Equal(t, 10*time.Second, client.timeout)
	assert.Equal(t, time.Minute, client.drainTimeout)
	assert.Equal(t, "secret-token", client.token)
	assert.Equal(t, "zihuan-next", client.clientName)
}

// Test invalid option values are rejected at construction
func TestNewClient_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  ClientOption
	}{
		{
			name: "negative reconnect wait",
			opt:  WithReconnectWait(-time.Second),
		},
		{
			name: "zero ping interval",
			opt:  WithPingInterval(0),
		},
		{
			name: "zero timeout",
			opt:  WithTimeout(0),
		},
		{
			name: "nil logger",
			opt:  WithLogger(nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient("nats://localhost:4222", tt.opt)
			assert.Error(t, err)
		})
	}
}

// Test status transitions
func TestStatus_Transitions(t *testing.T) {
	tests := []struct {
		name           string
		initialStatus  ConnectionStatus
		nextStatus     ConnectionStatus
		expectedStatus ConnectionStatus
	}{
		{
			name:           "disconnected to connecting",
			initialStatus:  StatusDisconnected,
			nextStatus:     StatusConnecting,
			expectedStatus: StatusConnecting,
		},
		{
			name:           "connecting to connected",
			initialStatus:  StatusConnecting,
			nextStatus:     StatusConnected,
			expectedStatus: StatusConnected,
		},
		{
			name:           "connected to reconnecting",
			initialStatus:  StatusConnected,
			nextStatus:     StatusReconnecting,
			expectedStatus: StatusReconnecting,
		},
		{
			name:           "reconnecting to disconnected",
			initialStatus:  StatusReconnecting,
			nextStatus:     StatusDisconnected,
			expectedStatus: StatusDisconnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient("nats://localhost:4222")
			require.NoError(t, err)

			client.setStatus(tt.initialStatus)
			client.setStatus(tt.nextStatus)
			assert.Equal(t, tt.expectedStatus, client.Status())
		})
	}
}

// Test status string representation
func TestConnectionStatus_String(t *testing.T) {
	tests := []struct {
		status   ConnectionStatus
		expected string
	}{
		{StatusDisconnected, "disconnected"},
		{StatusConnecting, "connecting"},
		{StatusConnected, "connected"},
		{StatusReconnecting, "reconnecting"},
		{ConnectionStatus(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.String())
		})
	}
}

// Test connection options include credentials only when configured
func TestBuildConnectionOptions(t *testing.T) {
	base, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	baseOpts := base.buildConnectionOptions()

	authed, err := NewClient("nats://localhost:4222",
		WithToken("secret"),
		WithName("zihuan-next"),
	)
	require.NoError(t, err)
	authedOpts := authed.buildConnectionOptions()

	// Token and Name each add one option on top of the base set
	assert.Len(t, authedOpts, len(baseOpts)+2)
}

// Test connecting to an unreachable server fails promptly
func TestConnect_Unreachable(t *testing.T) {
	client, err := NewClient("nats://127.0.0.1:1",
		WithTimeout(500*time.Millisecond),
		WithMaxReconnects(0),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = client.Connect(ctx)
	assert.Error(t, err)
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsConnected())
}

// Test connect honors context cancellation
func TestConnect_ContextCancelled(t *testing.T) {
	client, err := NewClient("nats://10.255.255.1:4222",
		WithTimeout(30*time.Second),
		WithMaxReconnects(0),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = client.Connect(ctx)
	assert.Error(t, err)
	assert.Equal(t, StatusDisconnected, client.Status())
}

// Test operations on a disconnected client return ErrNotConnected
func TestDisconnectedOperations(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	ctx := context.Background()

	assert.ErrorIs(t, client.Ping(ctx), ErrNotConnected)

	_, err = client.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.JetStream()
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.GetKeyValueBucket(ctx, "messages")
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.ErrorIs(t, client.DeleteKeyValueBucket(ctx, "messages"), ErrNotConnected)
}

// Test close on a never-connected client is safe and idempotent
func TestClose_NeverConnected(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", WithToken("secret"))
	require.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, client.Close(ctx))
	assert.NoError(t, client.Close(ctx)) // second close is a no-op

	assert.Equal(t, StatusDisconnected, client.Status())
	assert.Empty(t, client.token) // credentials cleared on close
}

// Test concurrent status reads and writes
func TestStatus_ThreadSafety(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	var wg sync.WaitGroup
	statuses := []ConnectionStatus{
		StatusDisconnected,
		StatusConnecting,
		StatusConnected,
		StatusReconnecting,
	}

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			client.setStatus(statuses[n%len(statuses)])
		}(i)
		go func() {
			defer wg.Done()
			_ = client.Status()
			_ = client.Status().String()
		}()
	}

	wg.Wait()

	// Final status must be one of the valid values
	assert.Contains(t, statuses, client.Status())
}

// Test the already-exists matcher covers the JetStream variants
func TestIsAlreadyExistsError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "bucket name in use",
			err:      fmt.Errorf("bucket name already in use"),
			expected: true,
		},
		{
			name:     "stream name in use",
			err:      fmt.Errorf("stream name already in use"),
			expected: true,
		},
		{
			name:     "generic already exists",
			err:      fmt.Errorf("resource already exists"),
			expected: true,
		},
		{
			name:     "unrelated error",
			err:      fmt.Errorf("connection refused"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isAlreadyExistsError(tt.err))
		})
	}
}
