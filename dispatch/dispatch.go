// Package dispatch routes classified message events to per-category handlers.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/FredYakumo/zihuan-next/errors"
	"github.com/FredYakumo/zihuan-next/event"
)

// Handler processes one classified message event. Handlers run on the
// connection's read loop, so long work should move to its own goroutine.
type Handler func(ctx context.Context, ev *event.TypedEvent) error

// Dispatcher routes events by their message type. The routing table is
// built once at startup and never changes afterward, so Dispatch needs
// no locking.
type Dispatcher struct {
	handlers map[event.MessageType]Handler
	logger   *slog.Logger
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[event.MessageType]Handler),
		logger:   logger,
	}
}

// Register binds a handler to a message type. TypeUnknown cannot be
// routed: events of unrecognized categories are always skipped.
func (d *Dispatcher) Register(t event.MessageType, h Handler) error {
	if t == event.TypeUnknown {
		return errors.WrapInvalid(
			fmt.Errorf("cannot register handler for unknown message type"),
			"Dispatcher", "Register", "validate message type")
	}
	if h == nil {
		return errors.WrapInvalid(
			fmt.Errorf("handler must not be nil"),
			"Dispatcher", "Register", "validate handler")
	}
	if _, exists := d.handlers[t]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("handler already registered for type %s", t),
			"Dispatcher", "Register", "check duplicate")
	}
	d.handlers[t] = h
	return nil
}

// Routes returns the message types that currently have a handler
func (d *Dispatcher) Routes() []event.MessageType {
	routes := make([]event.MessageType, 0, len(d.handlers))
	for t := range d.handlers {
		routes = append(routes, t)
	}
	return routes
}

// Dispatch routes one event to its handler.
//
// The first return reports whether a handler ran. Events without a
// registered handler are skipped quietly: an unrouted category is normal
// operation, not a fault. Handler errors and panics are contained here,
// the caller decides whether to count them.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *event.TypedEvent) (routed bool, err error) {
	handler, ok := d.handlers[ev.Type]
	if !ok {
		d.logger.Debug("no handler for message type, skipping",
			"message_type", ev.Type.String(),
			"message_id", ev.ID)
		return false, nil
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panicked",
				"message_type", ev.Type.String(),
				"message_id", ev.ID,
				"panic", r,
				"stack", string(debug.Stack()))
			err = errors.WrapInvalid(
				fmt.Errorf("handler panic: %v", r),
				"Dispatcher", "Dispatch", "run handler")
		}
	}()

	// Set before the call so a panicking handler still reports as routed.
	routed = true

	if err := handler(ctx, ev); err != nil {
		return routed, errors.Wrap(err, "Dispatcher", "Dispatch", "run handler")
	}

	return routed, nil
}
