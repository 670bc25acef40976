package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsAllTasks(t *testing.T) {
	pool := NewWorkerPool(3)
	defer pool.Shutdown()

	var count atomic.Int64
	for i := 0; i < 50; i++ {
		require.NoError(t, pool.Submit(context.Background(), func() { count.Add(1) }))
	}
	pool.Wait()
	assert.Equal(t, int64(50), count.Load())
}

func TestWorkerPoolDefaultsToCPUCount(t *testing.T) {
	pool := NewWorkerPool(0)
	defer pool.Shutdown()
	assert.Positive(t, pool.Workers())
}

func TestWorkerPoolSubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Shutdown()

	err := pool.Submit(context.Background(), func() {})
	assert.True(t, errors.Is(err, ErrPoolShutdown))
}

func TestWorkerPoolCancelledSubmit(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Shutdown()

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func() {
		close(started)
		<-block
	}))
	<-started
	// Fill the buffer so the next submit has to wait.
	for i := 0; i < 2; i++ {
		require.NoError(t, pool.Submit(context.Background(), func() {}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pool.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.Canceled)

	close(block)
	pool.Wait()
}
