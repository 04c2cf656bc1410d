package handlers

import (
	"net/http"
	"time"

	domain "github.com/comandas/api/internal/domain"
	"github.com/comandas/api/internal/repositories"
)

// BuildInfo identifies the running binary in health payloads.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// HealthHandlers serves the liveness and readiness endpoints.
type HealthHandlers struct {
	build  BuildInfo
	clock  func() time.Time
	health repositories.HealthRepository
}

// HealthOption customises the health handler set.
type HealthOption func(*HealthHandlers)

// WithHealthBuildInfo attaches build metadata to health payloads.
func WithHealthBuildInfo(info BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = info
	}
}

// WithHealthClock injects a custom clock primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithHealthRepository wires the dependency probes evaluated by Readyz.
func WithHealthRepository(repo repositories.HealthRepository) HealthOption {
	return func(h *HealthHandlers) {
		h.health = repo
	}
}

// NewHealthHandlers constructs the health handler set.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		build: BuildInfo{StartedAt: time.Now().UTC()},
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Healthz reports process liveness without touching dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	payload := map[string]any{
		"status":    domain.HealthStatusOK,
		"timestamp": now.Format(time.RFC3339),
	}
	if !h.build.StartedAt.IsZero() {
		payload["uptime"] = now.Sub(h.build.StartedAt).String()
	}
	if h.build.Version != "" {
		payload["version"] = h.build.Version
	}
	if h.build.CommitSHA != "" {
		payload["commitSha"] = h.build.CommitSHA
	}
	if h.build.Environment != "" {
		payload["environment"] = h.build.Environment
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// Readyz evaluates dependency probes; a failing dependency flips the status
// code so orchestrators stop routing traffic.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()

	if h.health == nil {
		writeJSONResponse(w, http.StatusOK, map[string]any{
			"status":    domain.HealthStatusOK,
			"timestamp": now.Format(time.RFC3339),
		})
		return
	}

	report, err := h.health.Collect(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{
			"status":    domain.HealthStatusError,
			"timestamp": now.Format(time.RFC3339),
			"error":     err.Error(),
		})
		return
	}

	checks := make(map[string]any, len(report.Checks))
	for name, check := range report.Checks {
		entry := map[string]any{
			"status":    check.Status,
			"detail":    check.Detail,
			"latencyMs": check.Latency.Milliseconds(),
		}
		if check.Error != "" {
			entry["error"] = check.Error
		}
		checks[name] = entry
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, status, map[string]any{
		"status":    report.Status,
		"timestamp": now.Format(time.RFC3339),
		"checks":    checks,
	})
}
