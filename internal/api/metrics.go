package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	MQTT          MQTTMetrics      `json:"mqtt"`
	Bridge        BridgeMetrics    `json:"bridge"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// BridgeMetrics contains 1-Wire bridge statistics.
type BridgeMetrics struct {
	Status            string `json:"status"`
	SensorsManaged    int    `json:"sensors_managed"`
	SensorsAvailable  int    `json:"sensors_available"`
	CyclesTotal       uint64 `json:"cycles_total"`
	ReadsTotal        uint64 `json:"reads_total"`
	ReadFailuresTotal uint64 `json:"read_failures_total"`
	PublishesTotal    uint64 `json:"publishes_total"`
	LastCycleMillis   int64  `json:"last_cycle_ms"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int `json:"open_connections"`
	InUse           int `json:"in_use"`
	Idle            int `json:"idle"`
}

// bytesPerMB converts byte counts to megabytes for the metrics response.
const bytesPerMB = 1024 * 1024

// handleMetrics returns system metrics for monitoring dashboards.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	bridge := s.bridge.GetMetrics()

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(mem.Alloc) / bytesPerMB,
			MemoryTotalMB: float64(mem.TotalAlloc) / bytesPerMB,
			NumGC:         mem.NumGC,
		},
		Bridge: BridgeMetrics{
			Status:            bridge.Status,
			SensorsManaged:    bridge.SensorsManaged,
			SensorsAvailable:  bridge.SensorsAvailable,
			CyclesTotal:       bridge.CyclesTotal,
			ReadsTotal:        bridge.ReadsTotal,
			ReadFailuresTotal: bridge.ReadFailuresTotal,
			PublishesTotal:    bridge.PublishesTotal,
			LastCycleMillis:   bridge.LastCycleMillis,
		},
	}

	if s.mqtt != nil {
		metrics.MQTT.Connected = s.mqtt.IsConnected()
	}

	if s.db != nil {
		stats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: stats.OpenConnections,
			InUse:           stats.InUse,
			Idle:            stats.Idle,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
