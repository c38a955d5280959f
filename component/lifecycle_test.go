package component

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateCreated, "created"},
		{StateInitialized, "initialized"},
		{StateStarted, "started"},
		{StateStopped, "stopped"},
		{StateFailed, "failed"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.String())
		})
	}
}

func TestDependencies_GetLogger(t *testing.T) {
	var deps Dependencies
	assert.NotNil(t, deps.GetLogger(), "nil logger falls back to slog.Default")

	custom := slog.New(slog.DiscardHandler)
	deps.Logger = custom
	assert.Same(t, custom, deps.GetLogger())
	assert.NotNil(t, deps.GetLoggerWithComponent("adapter"))
}

// fakeComponent is a minimal conforming implementation used to validate the
// conformance suite itself.
type fakeComponent struct {
	mu          sync.Mutex
	initialized bool
	state       State
}

func (f *fakeComponent) Name() string { return "fake" }

func (f *fakeComponent) Initialize() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = true
	f.state = StateInitialized
	return nil
}

func (f *fakeComponent) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.initialized {
		return fmt.Errorf("fake: not initialized")
	}
	if f.state == StateStarted {
		return fmt.Errorf("fake: already started")
	}
	f.state = StateStarted
	return nil
}

func (f *fakeComponent) Stop(_ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateStopped
	return nil
}

func TestStandardLifecycleTests(t *testing.T) {
	StandardLifecycleTests(t, func() Component {
		return &fakeComponent{}
	})
}
