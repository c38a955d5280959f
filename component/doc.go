// Package component defines the lifecycle contract and shared dependencies
// for the bridge's long-running parts.
//
// # Lifecycle
//
// Every managed piece of the bridge follows the same three-phase contract:
//
//	Initialize() error                // setup and validation, no I/O
//	Start(ctx context.Context) error  // begin work, ctx bounds the run
//	Stop(timeout time.Duration) error // graceful shutdown within the timeout
//
// Components never store the context passed to Start. The caller owns
// cancellation; Stop is the orderly path down. A stopped component stays
// stopped: restart is not part of the contract, callers construct a new
// instance instead.
//
// # Dependencies
//
// Dependencies carries the process-wide externals (NATS client, metrics
// registry, logger) into component constructors, keeping wiring explicit:
//
//	bot, err := adapter.New("bot_adapter", cfg, store, dispatcher,
//	    component.Dependencies{
//	        NATSClient: nc,
//	        Metrics:    registry,
//	        Logger:     logger,
//	    })
//
// # Conformance Testing
//
// StandardLifecycleTests runs a reusable conformance suite against any
// Component implementation from its own package tests:
//
//	func TestAdapterLifecycle(t *testing.T) {
//	    component.StandardLifecycleTests(t, func() component.Component {
//	        return newTestAdapter(t)
//	    })
//	}
package component
