// Package natsclient provides a managed NATS client for the remote message
// store backing zihuan-next.
//
// The package wraps the standard NATS Go client with connection lifecycle
// management, JetStream Key-Value access, and a liveness probe used during
// backend selection at startup. It is deliberately small: the bridge needs a
// single connection, a handful of KV buckets, and a way to ask "is the remote
// store reachable right now".
//
// # Connection Lifecycle
//
// The client tracks connection state through Disconnected, Connecting,
// Connected, and Reconnecting. Connect establishes the connection and
// initializes the JetStream context; Close drains in-flight operations with a
// bounded timeout and clears any configured credentials.
//
// # Basic Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithToken(cfg.Store.Token),
//	    natsclient.WithName("zihuan-next"),
//	)
//	if err != nil {
//	    return err
//	}
//
//	ctx := context.Background()
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	// Liveness probe: a flush round-trip to the server
//	if err := client.Ping(ctx); err != nil {
//	    // remote store unreachable, caller falls back to memory
//	}
//
// # Key-Value Store
//
// CreateKeyValueBucket binds to an existing bucket or creates it, tolerating
// concurrent creation by other clients. KVStore wraps a bucket with timeouts,
// a value size limit, and last-writer-wins Put semantics:
//
//	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
//	    Bucket: "messages-0",
//	})
//	if err != nil {
//	    return err
//	}
//
//	kv := client.NewKVStore(bucket)
//	if _, err := kv.Put(ctx, "msg-1001", payload); err != nil {
//	    return err
//	}
//
//	entry, err := kv.Get(ctx, "msg-1001")
//	if errors.Is(err, natsclient.ErrKVKeyNotFound) {
//	    // key absent
//	}
//
// # Testing
//
// TestClient starts a containerized NATS server with JetStream enabled for
// integration tests (build tag "integration"):
//
//	testClient := natsclient.NewTestClient(t, natsclient.WithKVBuckets("messages"))
//	kv, err := testClient.CreateKVBucket(ctx, "messages")
//
// The container and client are cleaned up automatically through t.Cleanup.
package natsclient
