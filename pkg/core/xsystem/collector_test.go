package xsystem

import (
	"context"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestCollectorLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewCollector(10, slog.Default())
	assert.True(t, math.IsNaN(c.CurrentLoad()))
	assert.True(t, math.IsNaN(c.CurrentCpuUsage()))

	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrCollectorStarted)

	// 首次采样在启动后立即执行，稍候即可观测到有效值。
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !math.IsNaN(c.CurrentLoad()) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.False(t, math.IsNaN(c.CurrentLoad()))

	c.Stop()
	// Stop 幂等。
	c.Stop()
}

func TestCollectorStopWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := NewCollector(0, nil)
	c.Stop()
}

func TestCollectorContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewCollector(10, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))
	cancel()

	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("采样循环未随 ctx 取消退出")
	}
}
