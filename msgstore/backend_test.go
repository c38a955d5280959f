package msgstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FredYakumo/zihuan-next/errors"
)

func TestTier_String(t *testing.T) {
	tests := []struct {
		tier Tier
		want string
	}{
		{TierNone, "none"},
		{TierMemory, "memory"},
		{TierRemote, "remote"},
		{Tier(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.tier.String())
	}
}

func TestMemoryBackend_PutGet(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "m1", `{"message_id":"m1"}`))

	value, err := b.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, `{"message_id":"m1"}`, value)
	assert.Equal(t, 1, b.Len())
}

func TestMemoryBackend_OverwriteLastWriterWins(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "m1", "first"))
	require.NoError(t, b.Put(ctx, "m1", "second"))

	value, err := b.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "second", value)
	assert.Equal(t, 1, b.Len())
}

func TestMemoryBackend_MissingKey(t *testing.T) {
	b := NewMemoryBackend()

	_, err := b.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, errors.ErrKeyNotFound)
}

func TestMemoryBackend_Stats(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "m1", "a"))
	require.NoError(t, b.Put(ctx, "m2", "b"))

	_, err := b.Get(ctx, "m1")
	require.NoError(t, err)
	_, err = b.Get(ctx, "absent")
	require.Error(t, err)

	stats := b.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(2), stats.Writes)
}

func TestMemoryBackend_ConcurrentAccess(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("key-%d-%d", n, j)
				_ = b.Put(ctx, key, "payload")
				_, _ = b.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 500, b.Len())
	assert.Equal(t, int64(500), b.Stats().Writes)
}

func TestMemoryBackend_Name(t *testing.T) {
	assert.Equal(t, "memory", NewMemoryBackend().Name())
}
