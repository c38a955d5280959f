// Package msgstore persists raw gateway frames keyed by message id.
//
// Storage runs on two tiers. The active tier is chosen exactly once at
// startup by SelectBackend: a NATS JetStream KV bucket when remote storage
// is configured and reachable, otherwise an in-process map. The choice
// never changes while the process runs.
//
// Independently of that choice, every MessageStore carries an in-process
// fallback map. A write that fails on the active backend lands in the
// fallback instead, so a flaky remote degrades single entries rather than
// aborting frame processing. Reads consult the active backend first and
// the fallback second.
package msgstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/FredYakumo/zihuan-next/errors"
	"github.com/FredYakumo/zihuan-next/metric"
)

// WriteResult reports where a stored message ended up.
type WriteResult struct {
	// Tier that ultimately took the write. TierNone means the write was
	// skipped entirely.
	Tier Tier
	// Fallback is true when the active backend failed and the in-process
	// map took the write instead.
	Fallback bool
}

// MessageStore owns the active backend plus the always-present in-process
// fallback. Safe for concurrent use.
type MessageStore struct {
	active   Backend
	fallback *MemoryBackend
	tier     Tier
	logger   *slog.Logger
	metrics  *storeMetrics
}

// StoreOption configures a MessageStore.
type StoreOption func(*MessageStore) error

// WithLogger sets the logger for store operations
func WithLogger(logger *slog.Logger) StoreOption {
	return func(ms *MessageStore) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		ms.logger = logger
		return nil
	}
}

// WithMetrics registers store metrics with the given registry
func WithMetrics(registry *metric.MetricsRegistry) StoreOption {
	return func(ms *MessageStore) error {
		if registry == nil {
			return fmt.Errorf("metrics registry must not be nil")
		}
		m, err := newStoreMetrics(registry)
		if err != nil {
			return err
		}
		ms.metrics = m
		return nil
	}
}

// NewMessageStore creates a store over the selected backend. The tier must
// match the backend SelectBackend returned.
func NewMessageStore(active Backend, tier Tier, opts ...StoreOption) (*MessageStore, error) {
	if active == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("active backend must not be nil"),
			"MessageStore", "NewMessageStore", "validate backend")
	}
	if tier != TierMemory && tier != TierRemote {
		return nil, errors.WrapInvalid(
			fmt.Errorf("invalid storage tier %q", tier),
			"MessageStore", "NewMessageStore", "validate tier")
	}

	ms := &MessageStore{
		active:   active,
		fallback: NewMemoryBackend(),
		tier:     tier,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(ms); err != nil {
			return nil, errors.WrapInvalid(err,
				"MessageStore", "NewMessageStore", "apply option")
		}
	}

	return ms, nil
}

// Tier returns the active storage tier selected at startup
func (ms *MessageStore) Tier() Tier {
	return ms.tier
}

// FallbackStats returns counters for the in-process fallback map
func (ms *MessageStore) FallbackStats() MemoryStats {
	return ms.fallback.Stats()
}

// Store persists a raw payload under the message id. Re-storing an id
// silently overwrites, last writer wins.
//
// An empty id is a no-op: the message cannot be keyed, so it is dropped
// with a warning. A failed write on the active backend diverts this one
// entry to the in-process fallback; the tier selection itself is not
// touched. Store never fails the caller's frame.
func (ms *MessageStore) Store(ctx context.Context, id, payload string) WriteResult {
	if id == "" {
		ms.logger.Warn("no message id provided, cannot store message")
		if ms.metrics != nil {
			ms.metrics.recordWriteSkipped()
		}
		return WriteResult{Tier: TierNone}
	}

	if err := ms.active.Put(ctx, id, payload); err != nil {
		ms.logger.Warn("active store write failed, keeping message in memory",
			"message_id", id,
			"tier", ms.tier.String(),
			"error", err)

		// The fallback is a plain map write, it cannot fail.
		_ = ms.fallback.Put(ctx, id, payload)

		if ms.metrics != nil {
			ms.metrics.recordWrite(TierMemory)
			ms.metrics.recordWriteFallback()
		}
		ms.updateEntriesGauge()
		return WriteResult{Tier: TierMemory, Fallback: true}
	}

	if ms.metrics != nil {
		ms.metrics.recordWrite(ms.tier)
	}
	ms.updateEntriesGauge()
	return WriteResult{Tier: ms.tier}
}

// Retrieve reads a payload by message id. The active backend answers
// first; on a miss or a backend fault the in-process fallback is checked,
// since entries diverted by failed writes live only there. An id found in
// no tier returns errors.ErrKeyNotFound.
func (ms *MessageStore) Retrieve(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", errors.ErrKeyNotFound
	}

	value, err := ms.active.Get(ctx, id)
	if err == nil {
		if ms.metrics != nil {
			ms.metrics.recordRead(ms.tier)
		}
		return value, nil
	}
	if !stderrors.Is(err, errors.ErrKeyNotFound) {
		ms.logger.Warn("active store read failed, checking in-memory fallback",
			"message_id", id,
			"tier", ms.tier.String(),
			"error", err)
	}

	value, err = ms.fallback.Get(ctx, id)
	if err == nil {
		if ms.metrics != nil {
			ms.metrics.recordRead(TierMemory)
		}
		return value, nil
	}

	if ms.metrics != nil {
		ms.metrics.recordReadMiss()
	}
	return "", errors.ErrKeyNotFound
}

// updateEntriesGauge publishes how many entries live in process memory.
// Both maps are counted; only one of them ever receives writes.
func (ms *MessageStore) updateEntriesGauge() {
	if ms.metrics == nil {
		return
	}
	n := ms.fallback.Len()
	if mb, ok := ms.active.(*MemoryBackend); ok {
		n += mb.Len()
	}
	ms.metrics.updateMemoryEntries(n)
}
