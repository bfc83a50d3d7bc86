package reaper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotledger/lotledger/internal/testutil"
)

type countingStore struct{ calls atomic.Int32 }

func (s *countingStore) Sweep() int {
	s.calls.Add(1)
	return 1
}

func TestNewRunner_RequiresStore(t *testing.T) {
	_, err := NewRunner(RunnerOptions{})
	require.Error(t, err)
}

func TestRunner_SweepsUntilCancelled(t *testing.T) {
	store := &countingStore{}
	r, err := NewRunner(RunnerOptions{Store: store, Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return store.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}

func TestRunner_EmitsSweptCount(t *testing.T) {
	rec := &testutil.MetricsRecorder{}
	r, err := NewRunner(RunnerOptions{Store: &countingStore{}, Interval: time.Hour, Metrics: rec})
	require.NoError(t, err)

	r.sweep(context.Background())

	swept := rec.Counts("sessions.swept")
	require.Len(t, swept, 1)
	assert.Equal(t, int64(1), swept[0].Value)
}
