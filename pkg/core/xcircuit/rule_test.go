package xcircuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRule(t *testing.T) {
	cases := []struct {
		name    string
		rule    *Rule
		wantErr bool
	}{
		{"nil rule", nil, true},
		{"empty resource", &Rule{Strategy: ErrorRatio, RetryTimeoutMs: 3000, Threshold: 0.5}, true},
		{"zero retry timeout", &Rule{Resource: "r", Strategy: ErrorRatio, Threshold: 0.5}, true},
		{"negative threshold", &Rule{Resource: "r", Strategy: ErrorCount, RetryTimeoutMs: 3000, Threshold: -1}, true},
		{"error ratio above one", &Rule{Resource: "r", Strategy: ErrorRatio, RetryTimeoutMs: 3000, Threshold: 1.5}, true},
		{"slow ratio above one", &Rule{Resource: "r", Strategy: SlowRequestRatio, RetryTimeoutMs: 3000, Threshold: 1.5}, true},
		{"unknown strategy", &Rule{Resource: "r", Strategy: Strategy(99), RetryTimeoutMs: 3000}, true},
		{"valid slow ratio", &Rule{Resource: "r", Strategy: SlowRequestRatio, RetryTimeoutMs: 3000, MaxAllowedRtMs: 50, Threshold: 0.5}, false},
		{"valid error ratio", &Rule{Resource: "r", Strategy: ErrorRatio, RetryTimeoutMs: 3000, Threshold: 0.5}, false},
		{"valid error count", &Rule{Resource: "r", Strategy: ErrorCount, RetryTimeoutMs: 3000, Threshold: 10}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRule(tc.rule)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBucketCountOrDefault(t *testing.T) {
	t.Run("默认窗口形状", func(t *testing.T) {
		r := &Rule{}
		assert.Equal(t, DefaultStatIntervalMs, r.statIntervalOrDefault())
		assert.Equal(t, DefaultBucketCount, r.bucketCountOrDefault())
	})

	t.Run("无法整除退化为单桶", func(t *testing.T) {
		r := &Rule{StatIntervalMs: 1000, StatSlidingWindowBucketCount: 3}
		assert.Equal(t, uint32(1), r.bucketCountOrDefault())
	})

	t.Run("整除保留", func(t *testing.T) {
		r := &Rule{StatIntervalMs: 1000, StatSlidingWindowBucketCount: 4}
		assert.Equal(t, uint32(4), r.bucketCountOrDefault())
	})
}

func TestRuleReuseSemantics(t *testing.T) {
	base := &Rule{Resource: "r", Strategy: ErrorRatio, RetryTimeoutMs: 3000, Threshold: 0.5}

	t.Run("阈值变化仅可复用统计窗口", func(t *testing.T) {
		changed := &Rule{Resource: "r", Strategy: ErrorRatio, RetryTimeoutMs: 3000, Threshold: 0.8}
		assert.False(t, base.isEqualsTo(changed))
		assert.True(t, base.isStatReusable(changed))
	})

	t.Run("策略变化两者皆不可复用", func(t *testing.T) {
		changed := &Rule{Resource: "r", Strategy: ErrorCount, RetryTimeoutMs: 3000, Threshold: 10}
		assert.False(t, base.isEqualsTo(changed))
		assert.False(t, base.isStatReusable(changed))
	})

	t.Run("忽略 ID", func(t *testing.T) {
		changed := &Rule{ID: "other", Resource: "r", Strategy: ErrorRatio, RetryTimeoutMs: 3000, Threshold: 0.5}
		assert.True(t, base.isEqualsTo(changed))
	})
}
