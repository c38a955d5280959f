package msgstore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/FredYakumo/zihuan-next/errors"
	"github.com/FredYakumo/zihuan-next/natsclient"
)

// Tier identifies which storage layer handled an operation.
type Tier int

const (
	// TierNone means no backend was touched, for example a write with an
	// empty message id.
	TierNone Tier = iota
	// TierMemory is the in-process map.
	TierMemory
	// TierRemote is the NATS JetStream KV bucket.
	TierRemote
)

// String returns the tier label used in logs and metric labels
func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierMemory:
		return "memory"
	case TierRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Backend is a flat key/value store for raw message payloads. Get returns
// errors.ErrKeyNotFound for absent keys; any other error is a backend
// fault.
type Backend interface {
	// Name returns the tier label for logs and metrics.
	Name() string
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
}

// MemoryStats is a snapshot of a memory backend's counters.
type MemoryStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Writes  int64 `json:"writes"`
}

// MemoryBackend stores payloads in a mutex-guarded map. It never fails a
// write and has no eviction policy, so it grows without bound for the
// lifetime of the process. Stats are always tracked.
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string]string

	hits   atomic.Int64
	misses atomic.Int64
	writes atomic.Int64
}

// NewMemoryBackend creates an empty in-process backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		items: make(map[string]string),
	}
}

// Name returns the memory tier label
func (b *MemoryBackend) Name() string {
	return TierMemory.String()
}

// Put stores a value, silently overwriting any previous entry for the key
func (b *MemoryBackend) Put(_ context.Context, key, value string) error {
	b.mu.Lock()
	b.items[key] = value
	b.mu.Unlock()

	b.writes.Add(1)
	return nil
}

// Get retrieves a value, returning errors.ErrKeyNotFound for absent keys
func (b *MemoryBackend) Get(_ context.Context, key string) (string, error) {
	b.mu.RLock()
	value, exists := b.items[key]
	b.mu.RUnlock()

	if !exists {
		b.misses.Add(1)
		return "", errors.ErrKeyNotFound
	}

	b.hits.Add(1)
	return value, nil
}

// Len returns the current number of stored entries
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// Stats returns a snapshot of the backend's counters
func (b *MemoryBackend) Stats() MemoryStats {
	return MemoryStats{
		Entries: b.Len(),
		Hits:    b.hits.Load(),
		Misses:  b.misses.Load(),
		Writes:  b.writes.Load(),
	}
}

// RemoteBackend stores payloads in a NATS JetStream KV bucket. Last writer
// wins on overwrite; network and protocol faults surface as transient
// errors.
type RemoteBackend struct {
	kv *natsclient.KVStore
}

// NewRemoteBackend wraps an already-bound KV bucket
func NewRemoteBackend(kv *natsclient.KVStore) *RemoteBackend {
	return &RemoteBackend{kv: kv}
}

// Name returns the remote tier label
func (b *RemoteBackend) Name() string {
	return TierRemote.String()
}

// Put writes a value to the bucket
func (b *RemoteBackend) Put(ctx context.Context, key, value string) error {
	if _, err := b.kv.Put(ctx, key, []byte(value)); err != nil {
		return errors.WrapTransient(err, "RemoteBackend", "Put", "write key")
	}
	return nil
}

// Get reads a value from the bucket, returning errors.ErrKeyNotFound for
// absent keys
func (b *RemoteBackend) Get(ctx context.Context, key string) (string, error) {
	entry, err := b.kv.Get(ctx, key)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return "", errors.ErrKeyNotFound
		}
		return "", errors.WrapTransient(err, "RemoteBackend", "Get", "read key")
	}
	return string(entry.Value), nil
}

var (
	_ Backend = (*MemoryBackend)(nil)
	_ Backend = (*RemoteBackend)(nil)
)
