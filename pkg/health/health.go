// Package health runs liveness and readiness probes in the background and
// serves their last results.
//
// A probe only flips state after a run of consecutive results: it turns
// unhealthy after FailAfter failures and healthy again after RecoverAfter
// successes.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// Check reports the health of one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// Kind selects the probe endpoint a check contributes to.
type Kind int

const (
	// Liveness checks tell whether the process should be restarted.
	Liveness Kind = iota
	// Readiness checks tell whether the process should receive traffic.
	Readiness
)

type probe struct {
	name         string
	timeout      time.Duration
	check        Check
	failAfter    int
	recoverAfter int

	healthy atomic.Bool
	lastErr atomic.Pointer[string]

	// Owned by the probe goroutine.
	fails int
	oks   int
}

func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.check(ctx); err != nil {
		msg := err.Error()
		p.lastErr.Store(&msg)
		p.oks = 0
		if p.fails++; p.fails >= p.failAfter {
			p.healthy.Store(false)
		}
		return
	}

	p.lastErr.Store(nil)
	p.fails = 0
	if p.oks++; p.oks >= p.recoverAfter {
		p.healthy.Store(true)
	}
}

func (p *probe) failure() string {
	if msg := p.lastErr.Load(); msg != nil {
		return *msg
	}
	return "unhealthy"
}

// ProbeOption configures a registered check.
type ProbeOption func(*probe)

// WithThresholds sets how many consecutive failures mark a check unhealthy
// and how many consecutive successes mark it healthy again.
func WithThresholds(failAfter, recoverAfter int) ProbeOption {
	return func(p *probe) {
		p.failAfter = max(failAfter, 1)
		p.recoverAfter = max(recoverAfter, 1)
	}
}

// Checker owns the registered probes of a service.
type Checker struct {
	ready atomic.Bool

	mu     sync.Mutex
	probes map[Kind][]*probe
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a Checker that is not ready yet.
func New() *Checker {
	return &Checker{probes: make(map[Kind][]*probe)}
}

// Register adds a check. Checks start healthy and must be registered before
// Start.
func (c *Checker) Register(kind Kind, name string, timeout time.Duration, check Check, opts ...ProbeOption) {
	p := &probe{
		name:         name,
		timeout:      timeout,
		check:        check,
		failAfter:    3,
		recoverAfter: 1,
	}
	for _, o := range opts {
		o(p)
	}
	p.healthy.Store(true)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[kind] = append(c.probes[kind], p)
}

// Start runs every check immediately and then once per interval until Stop
// is called or ctx is done.
func (c *Checker) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.cancel = cancel
	var all []*probe
	for _, ps := range c.probes {
		all = append(all, ps...)
	}
	c.mu.Unlock()

	for _, p := range all {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()

			t := time.NewTicker(interval)
			defer t.Stop()

			p.run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					p.run(ctx)
				}
			}
		}()
	}
}

// Stop halts the probes and waits for running checks to return. It is safe
// to call more than once.
func (c *Checker) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// SetReady marks the service as able to serve. Readiness also requires all
// readiness checks to pass.
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// Ready reports whether the service is marked ready and every readiness
// check passes.
func (c *Checker) Ready() bool {
	return c.ready.Load() && len(c.failures(Readiness)) == 0
}

func (c *Checker) failures(kind Kind) map[string]string {
	c.mu.Lock()
	ps := slices.Clone(c.probes[kind])
	c.mu.Unlock()

	out := make(map[string]string)
	for _, p := range ps {
		if !p.healthy.Load() {
			out[p.name] = p.failure()
		}
	}
	return out
}

// LiveEndpoint serves the liveness probe.
func (c *Checker) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, c.failures(Liveness))
}

// ReadyEndpoint serves the readiness probe.
func (c *Checker) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := c.failures(Readiness)
	if !c.ready.Load() {
		failures["_service"] = "not ready"
	}
	writeStatus(w, failures)
}

// writeStatus responds 200 {"status":"ok"} or 503 with the failing checks in
// name order.
func writeStatus(w http.ResponseWriter, failures map[string]string) {
	status, code := "ok", http.StatusOK
	if len(failures) > 0 {
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(status) })
		if len(failures) == 0 {
			return
		}
		names := make([]string, 0, len(failures))
		for name := range failures {
			names = append(names, name)
		}
		slices.Sort(names)
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, name := range names {
					e.Field(name, func(e *jx.Encoder) { e.Str(failures[name]) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
