package observability

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthChecker backs the /healthz and /readyz probes. Readiness is
// tracked per dependency: the pool is ready only once Postgres is
// reachable, the NATS subscriptions are live, and the engine has
// replayed the operation log.
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]bool
	startTime  time.Time
}

// NewHealthChecker registers the named components, all initially not
// ready.
func NewHealthChecker(components ...string) *HealthChecker {
	m := make(map[string]bool, len(components))
	for _, c := range components {
		m[c] = false
	}
	return &HealthChecker{
		components: m,
		startTime:  time.Now(),
	}
}

// SetComponentReady records one component's readiness. Unknown names are
// added, so optional dependencies can register late.
func (h *HealthChecker) SetComponentReady(name string, ready bool) {
	h.mu.Lock()
	h.components[name] = ready
	h.mu.Unlock()
}

// IsReady reports whether every registered component is ready.
func (h *HealthChecker) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ready := range h.components {
		if !ready {
			return false
		}
	}
	return true
}

// LivenessHandler returns HTTP 200 while the process is alive.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status": "alive",
		"uptime": time.Since(h.startTime).String(),
	})
}

// ReadinessHandler returns HTTP 200 once every component is ready and
// 503 otherwise, listing the component states either way.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	states := make(map[string]bool, len(h.components))
	for name, ready := range h.components {
		states[name] = ready
	}
	h.mu.RUnlock()

	ready := true
	waiting := make([]string, 0)
	for name, ok := range states {
		if !ok {
			ready = false
			waiting = append(waiting, name)
		}
	}
	sort.Strings(waiting)

	w.Header().Set("Content-Type", "application/json")
	body := map[string]any{
		"status":     "ready",
		"components": states,
	}
	if ready {
		w.WriteHeader(http.StatusOK)
	} else {
		body["status"] = "not_ready"
		body["waiting_on"] = waiting
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(body)
}
