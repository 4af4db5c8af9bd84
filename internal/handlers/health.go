package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/Symbiosis-Lab/moss-social/internal/relay"
)

const version = "0.1.0"

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass" or "fail"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Region    string           `json:"region,omitempty"`
	Instance  string           `json:"instance,omitempty"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Health handles the health check endpoint. Relay reachability is probed
// against the first configured relay only; the server stays healthy as
// long as one relay answers a dial.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	// Check relay reachability
	if len(h.relays) > 0 {
		relayStart := time.Now()
		conn, err := relay.Dial(ctx, h.relays[0], h.log)
		if err != nil {
			checks["relay"] = Check{Status: "fail", Message: "dial failed"}
			allHealthy = false
		} else {
			conn.Close()
			checks["relay"] = Check{Status: "pass", Latency: time.Since(relayStart).String()}
		}
	} else {
		checks["relay"] = Check{Status: "fail", Message: "not configured"}
		allHealthy = false
	}

	// Check the named-value store
	if h.kv != nil {
		kvStart := time.Now()
		if err := h.kv.Set(ctx, "healthcheck", time.Now().UTC().Format(time.RFC3339)); err != nil {
			checks["kv"] = Check{Status: "fail", Message: "write failed"}
			allHealthy = false
		} else {
			checks["kv"] = Check{Status: "pass", Latency: time.Since(kvStart).String()}
		}
	} else {
		checks["kv"] = Check{Status: "fail", Message: "not configured"}
		allHealthy = false
	}

	// Check Redis when configured
	if h.redis != nil {
		redisStart := time.Now()
		if err := h.redis.Client().Ping(ctx).Err(); err != nil {
			checks["redis"] = Check{Status: "fail", Message: "connection failed"}
			allHealthy = false
		} else {
			checks["redis"] = Check{Status: "pass", Latency: time.Since(redisStart).String()}
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	resp := HealthResponse{
		Status:    status,
		Version:   version,
		Region:    os.Getenv("FLY_REGION"),
		Instance:  os.Getenv("FLY_ALLOC_ID"),
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	h.JSON(w, statusCode, resp)
}

// RootResponse represents the root endpoint response.
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Root handles the root endpoint.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, RootResponse{
		Name:    "moss-social",
		Version: version,
	})
}
