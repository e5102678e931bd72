package http

import (
	"net/http"
	"runtime"
	"time"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
	System    SystemInfo             `json:"system"`
}

// CheckResult represents an individual health check result
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SystemInfo contains system resource information
type SystemInfo struct {
	GoRoutines     int    `json:"goroutines"`
	MemoryMB       uint64 `json:"memory_mb"`
	CPUCount       int    `json:"cpu_count"`
	ActiveSessions int    `json:"active_sessions"`
}

// HealthHandler handles health check requests
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	if s.hub != nil {
		health.Checks["websocket"] = CheckResult{
			Status:  "healthy",
			Message: "Vitals hub is running",
		}
	} else {
		health.Checks["websocket"] = CheckResult{
			Status:  "degraded",
			Message: "Vitals hub not running",
		}
	}

	if s.alerts != nil && s.alerts.IsConnected() {
		health.Checks["amqp"] = CheckResult{
			Status:  "healthy",
			Message: "Alert publisher connected",
		}
	} else {
		// Alerts are optional; an unconfigured broker does not make
		// the monitoring service unhealthy.
		health.Checks["amqp"] = CheckResult{
			Status:  "degraded",
			Message: "Alert publisher not connected",
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	health.System = SystemInfo{
		GoRoutines:     runtime.NumGoroutine(),
		MemoryMB:       memStats.Alloc / 1024 / 1024,
		CPUCount:       runtime.NumCPU(),
		ActiveSessions: s.manager.Count(),
	}

	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}
