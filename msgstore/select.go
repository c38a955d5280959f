package msgstore

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/FredYakumo/zihuan-next/natsclient"
)

// SelectBackend picks the storage tier once at startup and owns the
// liveness probe. The decision is permanent: a later remote recovery does
// not promote the process back, it must be restarted.
//
// A nil client means remote storage was never configured. Otherwise the
// client is connected, probed with a flush round-trip, and the message
// bucket is created (or looked up). Any failure along that path downgrades
// to the in-process map with a single warning.
func SelectBackend(ctx context.Context, client *natsclient.Client, bucket string, logger *slog.Logger) (Backend, Tier) {
	if logger == nil {
		logger = slog.Default()
	}

	if client == nil {
		logger.Warn("remote storage not configured, storing messages in memory only (not suitable for production)")
		return NewMemoryBackend(), TierMemory
	}

	if err := client.Connect(ctx); err != nil {
		logger.Warn("remote storage unreachable, falling back to in-memory message store",
			"url", client.URL(),
			"error", err)
		return NewMemoryBackend(), TierMemory
	}

	if err := client.Ping(ctx); err != nil {
		logger.Warn("remote storage liveness probe failed, falling back to in-memory message store",
			"url", client.URL(),
			"error", err)
		closeClient(ctx, client, logger)
		return NewMemoryBackend(), TierMemory
	}

	kv, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "raw gateway frames keyed by message id",
	})
	if err != nil {
		logger.Warn("message bucket unavailable, falling back to in-memory message store",
			"bucket", bucket,
			"error", err)
		closeClient(ctx, client, logger)
		return NewMemoryBackend(), TierMemory
	}

	logger.Info("using remote message store",
		"url", client.URL(),
		"bucket", bucket)
	return NewRemoteBackend(client.NewKVStore(kv)), TierRemote
}

// closeClient releases a connection that lost the selection
func closeClient(ctx context.Context, client *natsclient.Client, logger *slog.Logger) {
	if err := client.Close(ctx); err != nil {
		logger.Debug("closing unused storage connection", "error", err)
	}
}
