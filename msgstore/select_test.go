package msgstore

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FredYakumo/zihuan-next/natsclient"
)

func TestSelectBackend_NoClient(t *testing.T) {
	backend, tier := SelectBackend(context.Background(), nil, "messages-0", slog.New(slog.DiscardHandler))

	assert.Equal(t, TierMemory, tier)
	assert.IsType(t, &MemoryBackend{}, backend)
}

func TestSelectBackend_UnreachableServer(t *testing.T) {
	client, err := natsclient.NewClient("nats://127.0.0.1:1",
		natsclient.WithTimeout(2*time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	backend, tier := SelectBackend(ctx, client, "messages-0", slog.New(slog.DiscardHandler))

	// Probe failure downgrades permanently instead of erroring out.
	assert.Equal(t, TierMemory, tier)
	assert.IsType(t, &MemoryBackend{}, backend)

	// The downgraded store still serves traffic.
	ms, err := NewMessageStore(backend, tier, WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)

	result := ms.Store(ctx, "m1", "payload")
	assert.Equal(t, TierMemory, result.Tier)

	value, err := ms.Retrieve(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "payload", value)
}

func TestSelectBackend_NilLoggerTolerated(t *testing.T) {
	backend, tier := SelectBackend(context.Background(), nil, "messages-0", nil)

	assert.Equal(t, TierMemory, tier)
	assert.NotNil(t, backend)
}
