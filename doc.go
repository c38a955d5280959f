// Package zihuan documents the zihuan-next chat gateway bridge.
//
// zihuan-next sits between a chat-bot gateway and the handlers that act on
// its messages. It holds exactly one websocket to the gateway, classifies
// every incoming event frame, persists the raw frame keyed by message id,
// and routes classified events to the handler registered for their
// conversation category.
//
// # Architecture
//
// The bridge is a single fixed pipeline, not a configurable graph:
//
//	┌──────────────┐   text frames   ┌────────────┐
//	│   Gateway    │ ───────────────▶│ BotAdapter │  one websocket,
//	│ (chat  bot)  │                 │ (adapter)  │  bearer-token auth
//	└──────────────┘                 └─────┬──────┘
//	                                       │ per frame, in order
//	                   ┌───────────────────┼───────────────────┐
//	                   ▼                   ▼                   ▼
//	             ┌──────────┐       ┌────────────┐      ┌────────────┐
//	             │ Classify │       │   Store    │      │  Dispatch  │
//	             │ (event)  │       │ (msgstore) │      │ (dispatch) │
//	             └──────────┘       └────────────┘      └────────────┘
//	              typed event        raw frame by id     per-category
//	              or rejection       remote or memory    handler
//
// Frame faults are contained: a malformed frame, a failed store write, or
// a failing handler costs that one frame and the connection keeps reading.
// Connection faults are fatal: a failed handshake or a lost connection
// ends the run and the process exits non-zero for its supervisor.
//
// # Storage tiers
//
// The message store picks its backing exactly once at startup. When remote
// storage is configured and answers a liveness probe, raw frames land in a
// NATS JetStream key-value bucket; otherwise they land in an in-process
// map and a warning marks the downgrade. The choice never changes while
// the process runs. Independently, writes that fail on the active backend
// divert to an in-process fallback map so a flaky remote degrades single
// entries rather than the pipeline.
//
// # Packages
//
//   - adapter: the gateway websocket component and the per-frame pipeline
//   - event: wire model, content segments, and the frame classifier
//   - dispatch: the category-to-handler routing table
//   - msgstore: two-tier raw frame storage with startup tier selection
//   - natsclient: NATS connection and JetStream key-value access
//   - component: lifecycle contract shared by runnable components
//   - config: YAML configuration with ZIHUAN_* environment overrides
//   - metric: Prometheus registry, core metrics, and the scrape server
//   - errors: classified errors (transient, invalid, fatal) with context
//
// The binary lives in cmd/zihuan-next.
package zihuan
