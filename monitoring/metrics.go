// Package monitoring 提供运行指标收集与实时推送
package monitoring

import (
	"sort"
	"sync"
	"time"
)

const maxLatencySamples = 1000

// Collector 进程内指标收集器
type Collector struct {
	mu        sync.RWMutex
	counters  map[string]int64
	latencies []time.Duration
	startTime time.Time
}

// NewCollector 创建指标收集器
func NewCollector() *Collector {
	return &Collector{
		counters:  make(map[string]int64),
		latencies: make([]time.Duration, 0, maxLatencySamples),
		startTime: time.Now(),
	}
}

// Inc 计数器加一
func (c *Collector) Inc(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name]++
}

// ObserveLatency 记录一次请求耗时（保留最近1000次）
func (c *Collector) ObserveLatency(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latencies = append(c.latencies, d)
	if len(c.latencies) > maxLatencySamples {
		c.latencies = c.latencies[len(c.latencies)-maxLatencySamples:]
	}
}

// Count 读取计数器当前值
func (c *Collector) Count(name string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[name]
}

// Snapshot 汇总计数器和延迟分布
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counters := make(map[string]int64, len(c.counters))
	for name, value := range c.counters {
		counters[name] = value
	}

	snapshot := map[string]interface{}{
		"counters":       counters,
		"uptime_seconds": time.Since(c.startTime).Seconds(),
	}

	if len(c.latencies) > 0 {
		sorted := make([]time.Duration, len(c.latencies))
		copy(sorted, c.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var total time.Duration
		for _, d := range sorted {
			total += d
		}
		p95 := sorted[len(sorted)*95/100]
		snapshot["latency"] = map[string]interface{}{
			"samples": len(sorted),
			"avg_ms":  float64(total.Microseconds()) / float64(len(sorted)) / 1000,
			"p95_ms":  float64(p95.Microseconds()) / 1000,
			"max_ms":  float64(sorted[len(sorted)-1].Microseconds()) / 1000,
		}
	}

	return snapshot
}
