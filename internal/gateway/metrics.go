package gateway

import (
	"runtime"
	"time"
)

// SystemMetrics holds process resource usage and snapshot latency.
type SystemMetrics struct {
	CPUCores    int     `json:"cpu_cores"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	SysMB       float64 `json:"sys_mb"`
	GCRuns      uint32  `json:"gc_runs"`
	Goroutines  int     `json:"goroutines"`
	UptimeSec   int64   `json:"uptime_sec"`
	Clients     int     `json:"clients"`
	LatencyP50  float64 `json:"latency_p50_ms"`
	LatencyP95  float64 `json:"latency_p95_ms"`
	LatencyP99  float64 `json:"latency_p99_ms"`
	TS          string  `json:"ts"`
}

// CollectMetrics gathers process resource usage.
func CollectMetrics(start time.Time) SystemMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return SystemMetrics{
		CPUCores:    runtime.NumCPU(),
		HeapAllocMB: float64(ms.HeapAlloc) / 1024 / 1024,
		SysMB:       float64(ms.Sys) / 1024 / 1024,
		GCRuns:      ms.NumGC,
		Goroutines:  runtime.NumGoroutine(),
		UptimeSec:   int64(time.Since(start).Seconds()),
		TS:          time.Now().UTC().Format(time.RFC3339Nano),
	}
}
