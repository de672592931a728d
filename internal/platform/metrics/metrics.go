package metrics

import (
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   atomic.Uint64
	errorRequests   atomic.Uint64
	deniedRequests  atomic.Uint64
	rateLimited     atomic.Uint64
	totalDurationMs atomic.Uint64
	reportsBuilt    atomic.Uint64

	mu      sync.Mutex
	exports map[string]uint64
	failed  map[string]uint64
}

func New() *Collector {
	return &Collector{
		exports: map[string]uint64{},
		failed:  map[string]uint64{},
	}
}

func (c *Collector) Record(status int, duration time.Duration) {
	c.totalRequests.Add(1)
	switch {
	case status >= 500:
		c.errorRequests.Add(1)
	case status == http.StatusForbidden:
		c.deniedRequests.Add(1)
	case status == http.StatusTooManyRequests:
		c.rateLimited.Add(1)
	}
	c.totalDurationMs.Add(uint64(duration.Milliseconds()))
}

func (c *Collector) ReportBuilt() {
	c.reportsBuilt.Add(1)
}

// Export counts one export attempt for format; ok=false counts a codec failure.
func (c *Collector) Export(format string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.exports[format]++
		return
	}
	c.failed[format]++
}

func (c *Collector) Snapshot() map[string]any {
	total := c.totalRequests.Load()
	totalMs := c.totalDurationMs.Load()
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	exports := copyCounts(c.exports)
	failed := copyCounts(c.failed)
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":       total,
		"errorsTotal":         c.errorRequests.Load(),
		"deniedTotal":         c.deniedRequests.Load(),
		"rateLimitedTotal":    c.rateLimited.Load(),
		"avgDurationMs":       avg,
		"totalDurationMs":     totalMs,
		"reportsBuiltTotal":   c.reportsBuilt.Load(),
		"exportsTotal":        exports,
		"exportFailuresTotal": failed,
		"exportFormats":       formats(exports, failed),
	}
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func formats(sets ...map[string]uint64) []string {
	seen := map[string]bool{}
	var out []string
	for _, set := range sets {
		for format := range set {
			if !seen[format] {
				seen[format] = true
				out = append(out, format)
			}
		}
	}
	sort.Strings(out)
	return out
}
