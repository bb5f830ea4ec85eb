// health.go - Health reporting for the long-running sync mode.
package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus is the health of a component.
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Degraded  HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
)

// ComponentHealth is the last check result of one component.
type ComponentHealth struct {
	Name      string        `json:"name"`
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message"`
	LastCheck time.Time     `json:"last_check"`
	Latency   time.Duration `json:"latency,omitempty"`
}

// SystemHealth aggregates every component.
type SystemHealth struct {
	OverallStatus HealthStatus      `json:"overall_status"`
	Timestamp     time.Time         `json:"timestamp"`
	Components    []ComponentHealth `json:"components"`
	Uptime        time.Duration     `json:"uptime"`
}

// HealthChecker runs registered probes on demand. Components without a
// probe report whatever status was last set with UpdateComponent.
type HealthChecker struct {
	mu         sync.Mutex
	components map[string]*ComponentHealth
	checkers   map[string]func() error
	order      []string
	startTime  time.Time
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		components: make(map[string]*ComponentHealth),
		checkers:   make(map[string]func() error),
		startTime:  time.Now(),
	}
}

// RegisterComponent adds a component. checker may be nil.
func (hc *HealthChecker) RegisterComponent(name string, checker func() error) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if _, ok := hc.components[name]; !ok {
		hc.order = append(hc.order, name)
	}
	hc.components[name] = &ComponentHealth{Name: name, Status: Healthy, Message: "registered", LastCheck: time.Now()}
	if checker != nil {
		hc.checkers[name] = checker
	}
}

func (hc *HealthChecker) UpdateComponent(name string, status HealthStatus, message string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if c, ok := hc.components[name]; ok {
		c.Status = status
		c.Message = message
		c.LastCheck = time.Now()
	}
}

// CheckHealth runs every probe and returns the aggregate.
func (hc *HealthChecker) CheckHealth() *SystemHealth {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	overall := Healthy
	components := make([]ComponentHealth, 0, len(hc.components))
	for _, name := range hc.order {
		c := hc.components[name]
		if check, ok := hc.checkers[name]; ok {
			start := time.Now()
			err := check()
			c.Latency = time.Since(start)
			c.LastCheck = time.Now()
			if err != nil {
				c.Status, c.Message = Unhealthy, err.Error()
			} else {
				c.Status, c.Message = Healthy, "OK"
			}
		}
		switch {
		case c.Status == Unhealthy:
			overall = Unhealthy
		case c.Status == Degraded && overall == Healthy:
			overall = Degraded
		}
		components = append(components, *c)
	}
	return &SystemHealth{
		OverallStatus: overall,
		Timestamp:     time.Now(),
		Components:    components,
		Uptime:        time.Since(hc.startTime),
	}
}

// ServeHTTP writes the current health as JSON. Unhealthy systems answer 503.
func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h := hc.CheckHealth()
	w.Header().Set("Content-Type", "application/json")
	if h.OverallStatus == Unhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(h)
}
