// Package errors provides standardized error handling patterns for the
// zihuan-next bridge.
//
// # Overview
//
// The errors package implements a three-class error classification system:
// Transient (temporary, degraded-mode territory), Invalid (bad input,
// frame-local), and Fatal (unrecoverable, ends the run).
//
// The classes map directly onto the bridge's propagation policy:
//
//   - Transient: storage backend unavailable, network hiccups. The
//     operation falls back or is skipped; the process keeps running.
//   - Invalid: malformed frames, missing mandatory event fields, segment
//     conversion failures. The frame is dropped at the loop boundary and
//     the connection keeps reading.
//   - Fatal: handshake failure, connection loss, unusable configuration.
//     The run ends and the process exits.
//
// The classification system integrates with Go's standard error handling,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Use standard error variables for known conditions:
//
//	if id == "" {
//	    return errors.ErrEmptyKey
//	}
//
// Wrap errors with context for debugging:
//
//	if err := backend.Put(ctx, key, value); err != nil {
//	    return errors.WrapTransient(err, "MessageStore", "Store", "remote put")
//	}
//
// Check classification at the frame boundary:
//
//	if err := processFrame(raw); err != nil {
//	    if errors.IsFatal(err) {
//	        return err // ends the run
//	    }
//	    log.Warn("frame dropped", "error", err)
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//
// The generic Wrap() function adds context without changing the
// classification carried by the chain.
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error
// variables are immutable and safe for concurrent access.
package errors
