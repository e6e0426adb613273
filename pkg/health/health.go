// Package health serves liveness, readiness and dependency checks.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

const checkTimeout = 5 * time.Second

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type Response struct {
	Status     Status                 `json:"status"`
	Version    string                 `json:"version,omitempty"`
	Uptime     string                 `json:"uptime,omitempty"`
	Checks     map[string]CheckResult `json:"checks,omitempty"`
	ReportedAt time.Time              `json:"reported_at"`
}

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

type check struct {
	fn       CheckFunc
	optional bool
}

// Checker aggregates dependency probes. A failing required check makes the
// service unhealthy; a failing optional one only degrades it.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]check
	ready   bool
	version string
	started time.Time
}

func NewChecker(version string) *Checker {
	return &Checker{
		checks:  make(map[string]check),
		version: version,
		started: time.Now(),
	}
}

// AddCheck registers a required probe. A nil fn reports the dependency as
// not configured, which degrades the service.
func (c *Checker) AddCheck(name string, fn CheckFunc) {
	c.add(name, check{fn: fn})
}

// AddOptionalCheck registers a probe whose failure only degrades the service.
func (c *Checker) AddOptionalCheck(name string, fn CheckFunc) {
	c.add(name, check{fn: fn, optional: true})
}

func (c *Checker) add(name string, chk check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = chk
}

func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

func (c *Checker) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// RegisterRoutes mounts the probes under /api/v1/health.
func (c *Checker) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/health")
	g.GET("", c.HealthHandler)
	g.GET("/live", c.LivenessHandler)
	g.GET("/ready", c.ReadinessHandler)
}

// LivenessHandler reports that the process is serving requests.
func (c *Checker) LivenessHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.response(StatusHealthy, nil))
}

// ReadinessHandler fails until startup has finished, then runs the checks.
func (c *Checker) ReadinessHandler(ctx echo.Context) error {
	if !c.IsReady() {
		return ctx.JSON(http.StatusServiceUnavailable, c.response(StatusUnhealthy, map[string]CheckResult{
			"startup": {Status: StatusUnhealthy, Message: "service is still starting up"},
		}))
	}
	return c.HealthHandler(ctx)
}

// HealthHandler runs every check and reports the detail.
func (c *Checker) HealthHandler(ctx echo.Context) error {
	status, results := c.Run(ctx.Request().Context())

	code := http.StatusOK
	if status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, c.response(status, results))
}

// Run executes the checks concurrently and folds them into one status.
func (c *Checker) Run(ctx context.Context) (Status, map[string]CheckResult) {
	c.mu.RLock()
	checks := make(map[string]check, len(c.checks))
	for name, chk := range c.checks {
		checks[name] = chk
	}
	c.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checks))
		overall = StatusHealthy
	)
	for name, chk := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := probe(ctx, chk.fn)

			mu.Lock()
			defer mu.Unlock()
			results[name] = res
			switch {
			case res.Status == StatusUnhealthy && !chk.optional:
				overall = StatusUnhealthy
			case res.Status != StatusHealthy && overall == StatusHealthy:
				overall = StatusDegraded
			}
		}()
	}
	wg.Wait()

	return overall, results
}

func probe(ctx context.Context, fn CheckFunc) CheckResult {
	if fn == nil {
		return CheckResult{Status: StatusDegraded, Message: "not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	res := CheckResult{Status: StatusHealthy, Latency: time.Since(start).String()}
	if err != nil {
		res.Status = StatusUnhealthy
		res.Message = err.Error()
	}
	return res
}

func (c *Checker) response(status Status, checks map[string]CheckResult) Response {
	return Response{
		Status:     status,
		Version:    c.version,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Checks:     checks,
		ReportedAt: time.Now(),
	}
}
