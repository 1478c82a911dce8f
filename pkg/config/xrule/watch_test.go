package xrule

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/xguard/pkg/xguard"
)

func TestWatchValidation(t *testing.T) {
	g, err := xguard.New()
	require.NoError(t, err)

	_, err = Watch(nil, "rules.yaml")
	assert.ErrorIs(t, err, ErrNilGuard)
	_, err = Watch(g, "")
	assert.ErrorIs(t, err, ErrEmptyPath)

	// 首次加载失败不会以空规则起步。
	_, err = Watch(g, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrLoadFailed)
}

func TestWatchReloadsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	g, err := xguard.New()
	require.NoError(t, err)

	path := writeTempFile(t, "rules.yaml", `
flow:
  - resource: api
    metricType: 1
    threshold: 10
`)

	reloaded := make(chan error, 4)
	w, err := Watch(g, path,
		WithDebounce(20*time.Millisecond),
		WithCallback(func(_ *RuleFile, err error) {
			reloaded <- err
		}))
	require.NoError(t, err)
	defer func() { require.NoError(t, w.Stop()) }()

	// 首次加载在 Watch 内同步完成。
	require.Len(t, g.FlowRules(), 1)
	assert.InDelta(t, 10.0, g.FlowRules()[0].Threshold, 0.001)

	w.StartAsync()
	// StartAsync 幂等。
	w.StartAsync()

	require.NoError(t, os.WriteFile(path, []byte(`
flow:
  - resource: api
    metricType: 1
    threshold: 20
`), 0o600))

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("未观察到规则重载")
	}
	require.Len(t, g.FlowRules(), 1)
	assert.InDelta(t, 20.0, g.FlowRules()[0].Threshold, 0.001)
}

func TestWatchRejectsInvalidKeepingCurrent(t *testing.T) {
	defer goleak.VerifyNone(t)

	g, err := xguard.New()
	require.NoError(t, err)

	path := writeTempFile(t, "rules.yaml", `
flow:
  - resource: api
    metricType: 1
    threshold: 10
`)

	reloaded := make(chan error, 4)
	w, err := Watch(g, path,
		WithDebounce(20*time.Millisecond),
		WithCallback(func(_ *RuleFile, err error) {
			reloaded <- err
		}))
	require.NoError(t, err)
	defer func() { require.NoError(t, w.Stop()) }()
	w.StartAsync()

	// 非法规则（负阈值）：文件被拒绝，当前规则保持生效。
	require.NoError(t, os.WriteFile(path, []byte(`
flow:
  - resource: api
    metricType: 1
    threshold: -5
`), 0o600))

	select {
	case err := <-reloaded:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("未观察到重载回调")
	}
	require.Len(t, g.FlowRules(), 1)
	assert.InDelta(t, 10.0, g.FlowRules()[0].Threshold, 0.001)
}

func TestWatcherStopIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	g, err := xguard.New()
	require.NoError(t, err)
	path := writeTempFile(t, "rules.yaml", "")

	w, err := Watch(g, path)
	require.NoError(t, err)
	w.StartAsync()
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
