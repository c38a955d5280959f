package component

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory creates a fresh Component instance for conformance testing.
// Each sub-test gets its own instance, so the factory must not share state.
type Factory func() Component

// StandardLifecycleTests runs the lifecycle conformance suite against any
// Component implementation. Restart after Stop is deliberately not part of
// the contract: a stopped component stays stopped and callers build a new one.
func StandardLifecycleTests(t *testing.T, factory Factory) {
	t.Run("Compliance", func(t *testing.T) {
		testLifecycleCompliance(t, factory)
	})
	t.Run("ConcurrentStop", func(t *testing.T) {
		testConcurrentStop(t, factory)
	})
}

func testLifecycleCompliance(t *testing.T, factory Factory) {
	tests := []struct {
		name string
		test func(t *testing.T, comp Component)
	}{
		{"Initialize", testInitialize},
		{"StartStop", testStartStop},
		{"DoubleStart", testDoubleStart},
		{"DoubleStop", testDoubleStop},
		{"StartWithoutInit", testStartWithoutInit},
		{"StopWithoutStart", testStopWithoutStart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := factory()
			require.NotNil(t, comp, "Component factory returned nil")
			require.NotEmpty(t, comp.Name(), "Component must report a name")
			tt.test(t, comp)
		})
	}
}

func testInitialize(t *testing.T, comp Component) {
	err := comp.Initialize()
	assert.NoError(t, err, "Initialize should succeed on fresh component")
}

func testStartStop(t *testing.T, comp Component) {
	err := comp.Initialize()
	require.NoError(t, err, "Initialize must succeed before Start")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = comp.Start(ctx)
	assert.NoError(t, err, "Start should succeed after Initialize")

	err = comp.Stop(5 * time.Second)
	assert.NoError(t, err, "Stop should succeed after Start")
}

func testDoubleStart(t *testing.T, comp Component) {
	err := comp.Initialize()
	require.NoError(t, err, "Initialize must succeed")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = comp.Start(ctx)
	require.NoError(t, err, "First Start should succeed")

	// Second start must not panic; components may reject it or no-op
	_ = comp.Start(ctx)

	err = comp.Stop(5 * time.Second)
	assert.NoError(t, err, "Stop should succeed")
}

func testDoubleStop(t *testing.T, comp Component) {
	err := comp.Initialize()
	require.NoError(t, err, "Initialize must succeed")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = comp.Start(ctx)
	require.NoError(t, err, "Start must succeed")

	err = comp.Stop(5 * time.Second)
	assert.NoError(t, err, "First Stop should succeed")

	err = comp.Stop(5 * time.Second)
	assert.NoError(t, err, "Second Stop should be idempotent")
}

func testStartWithoutInit(t *testing.T, comp Component) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := comp.Start(ctx)
	// Either implicit initialization or a clear error is acceptable
	if err != nil {
		assert.Contains(t, err.Error(), "not initialized",
			"Error should indicate component not initialized")
	} else {
		assert.NoError(t, comp.Stop(5*time.Second))
	}
}

func testStopWithoutStart(t *testing.T, comp Component) {
	err := comp.Stop(5 * time.Second)
	assert.NoError(t, err, "Stop should be safe to call without Start")
}

func testConcurrentStop(t *testing.T, factory Factory) {
	comp := factory()
	require.NotNil(t, comp, "Component factory returned nil")

	require.NoError(t, comp.Initialize())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, comp.Start(ctx))

	var wg sync.WaitGroup
	stopErrs := make([]error, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			stopErrs[idx] = comp.Stop(5 * time.Second)
		}(i)
	}

	wg.Wait()

	for i, err := range stopErrs {
		assert.NoError(t, err, "concurrent Stop %d should not error", i)
	}
}
