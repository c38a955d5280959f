//go:build integration

package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStore_RoundTrip(t *testing.T) {
	testClient := NewTestClient(t, WithKVBuckets("messages"))
	client := testClient.Client

	ctx := context.Background()

	bucket, err := client.GetKeyValueBucket(ctx, "messages")
	require.NoError(t, err)

	kvStore := client.NewKVStore(bucket)

	t.Run("put and get", func(t *testing.T) {
		rev, err := kvStore.Put(ctx, "msg-1001", []byte(`{"sender":"alice"}`))
		require.NoError(t, err)
		assert.Greater(t, rev, uint64(0))

		entry, err := kvStore.Get(ctx, "msg-1001")
		require.NoError(t, err)
		assert.Equal(t, "msg-1001", entry.Key)
		assert.Equal(t, `{"sender":"alice"}`, string(entry.Value))
		assert.Equal(t, rev, entry.Revision)
	})

	t.Run("overwrite is last writer wins", func(t *testing.T) {
		rev1, err := kvStore.Put(ctx, "msg-2002", []byte("first"))
		require.NoError(t, err)

		rev2, err := kvStore.Put(ctx, "msg-2002", []byte("second"))
		require.NoError(t, err)
		assert.Greater(t, rev2, rev1)

		entry, err := kvStore.Get(ctx, "msg-2002")
		require.NoError(t, err)
		assert.Equal(t, "second", string(entry.Value))
	})

	t.Run("get missing key", func(t *testing.T) {
		_, err := kvStore.Get(ctx, "msg-does-not-exist")
		assert.ErrorIs(t, err, ErrKVKeyNotFound)
	})

	t.Run("delete then get", func(t *testing.T) {
		_, err := kvStore.Put(ctx, "msg-3003", []byte("ephemeral"))
		require.NoError(t, err)

		err = kvStore.Delete(ctx, "msg-3003")
		require.NoError(t, err)

		_, err = kvStore.Get(ctx, "msg-3003")
		assert.ErrorIs(t, err, ErrKVKeyNotFound)
	})

	t.Run("value size limit", func(t *testing.T) {
		small := client.NewKVStore(bucket, func(o *KVOptions) {
			o.MaxValueSize = 8
		})

		_, err := small.Put(ctx, "msg-4004", []byte("this value is too large"))
		assert.Error(t, err)
	})
}

func TestClient_PingAfterConnect(t *testing.T) {
	testClient := NewTestClient(t, WithJetStream())
	client := testClient.Client

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.True(t, client.IsConnected())
	assert.NoError(t, client.Ping(ctx))

	rtt, err := client.RTT()
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))
}

func TestClient_CreateKeyValueBucket_Idempotent(t *testing.T) {
	testClient := NewTestClient(t, WithJetStream())
	client := testClient.Client

	ctx := context.Background()
	cfg := jetstream.KeyValueConfig{Bucket: "messages-0"}

	first, err := client.CreateKeyValueBucket(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, first)

	// Creating the same bucket again binds to the existing one
	second, err := client.CreateKeyValueBucket(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, second)

	_, err = second.Put(ctx, "probe", []byte("ok"))
	assert.NoError(t, err)
}
