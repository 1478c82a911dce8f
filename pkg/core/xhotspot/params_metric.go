package xhotspot

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// CounterCache 参数值到 *int64 计数器的有界 LRU 缓存。
// 计数器指针一旦放入便不再更换，读取方通过 sync/atomic 操作指针
// 指向的值；冷值被逐出时其计数历史静默丢失。
type CounterCache struct {
	c *lru.Cache[any, *int64]
}

// NewCounterCache 创建计数器缓存。
func NewCounterCache(capacity int) (*CounterCache, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCacheCapacity
	}
	c, err := lru.New[any, *int64](capacity)
	if err != nil {
		return nil, err
	}
	return &CounterCache{c: c}, nil
}

// AddIfAbsent 不存在则放入 value 并返回 nil，存在则返回已有计数器。
// 并发竞争下恰好一个写者的 value 被采纳，其余拿到同一个既有指针。
func (cc *CounterCache) AddIfAbsent(key any, value *int64) *int64 {
	prior, ok, _ := cc.c.PeekOrAdd(key, value)
	if !ok {
		return nil
	}
	return prior
}

// Get 返回参数值的计数器，不存在时为 nil。
func (cc *CounterCache) Get(key any) *int64 {
	if v, ok := cc.c.Get(key); ok {
		return v
	}
	return nil
}

// Remove 移除参数值的计数器。
func (cc *CounterCache) Remove(key any) {
	cc.c.Remove(key)
}

// Purge 清空缓存。
func (cc *CounterCache) Purge() {
	cc.c.Purge()
}

// Len 返回缓存中的参数值个数。
func (cc *CounterCache) Len() int {
	return cc.c.Len()
}

// ParamsMetric 单条规则的参数级实时计数器组。
type ParamsMetric struct {
	// RuleTimeCounter 每个参数值最近一次补充令牌的时刻（Unix 毫秒）。
	RuleTimeCounter *CounterCache
	// RuleTokenCounter 每个参数值的剩余令牌数。
	RuleTokenCounter *CounterCache
	// ConcurrencyCounter 每个参数值的实时并发数。
	ConcurrencyCounter *CounterCache
}

// newParamsMetric 按规则口径创建计数器组，只分配会被用到的缓存。
func newParamsMetric(r *Rule) (*ParamsMetric, error) {
	capacity := r.cacheCapacity()
	m := &ParamsMetric{}
	var err error
	switch r.MetricType {
	case Concurrency:
		m.ConcurrencyCounter, err = NewCounterCache(capacity)
		if err != nil {
			return nil, err
		}
	case QPS:
		m.RuleTimeCounter, err = NewCounterCache(capacity)
		if err != nil {
			return nil, err
		}
		m.RuleTokenCounter, err = NewCounterCache(capacity)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}
