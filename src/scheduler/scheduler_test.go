package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RegisterAndRunNow(t *testing.T) {
	s := NewScheduler(context.Background(), nil)
	var runs int32

	require.NoError(t, s.Every("refresh", "5m", func(ctx context.Context) { atomic.AddInt32(&runs, 1) }))
	require.NoError(t, s.Register("cleanup", "@daily", func(ctx context.Context) {}))
	assert.Equal(t, 2, s.Jobs())

	require.NoError(t, s.RunNow("refresh"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
	assert.Error(t, s.RunNow("missing"))
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := NewScheduler(context.Background(), nil)
	err := s.Register("bad", "not a cron", func(ctx context.Context) {})
	assert.Error(t, err)
	assert.Equal(t, 0, s.Jobs())
}

func TestScheduler_ReplaceKeepsSingleEntry(t *testing.T) {
	s := NewScheduler(context.Background(), nil)
	require.NoError(t, s.Every("refresh", "5m", func(ctx context.Context) {}))
	require.NoError(t, s.Every("refresh", "1m", func(ctx context.Context) {}))
	assert.Equal(t, 1, s.Jobs())
	assert.Len(t, s.Cron.Entries(), 1)
}

func TestScheduler_FiresAndStopCancelsContext(t *testing.T) {
	s := NewScheduler(context.Background(), nil)
	fired := make(chan struct{}, 1)
	var jobCtx atomic.Value

	require.NoError(t, s.Every("tick", "1s", func(ctx context.Context) {
		jobCtx.Store(ctx)
		select {
		case fired <- struct{}{}:
		default:
		}
	}))
	s.Start()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}
	s.Stop()

	ctx := jobCtx.Load().(context.Context)
	assert.Error(t, ctx.Err())
}
