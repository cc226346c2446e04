// Package metrics exposes session activity as Prometheus collectors.
package metrics

import (
	"context"
	"net/http"
	"sync"

	auth "github.com/marketsim/portal-auth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portal"

// Collector records activity events and the current session state.
// It implements auth.ActivitySink. The state gauge follows Observe only.
type Collector struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	state    *prometheus.GaugeVec
	logins   *prometheus.CounterVec

	mu         sync.Mutex
	current    auth.State
	generation uint64
}

// New registers the collectors in registry. A nil registry gets a fresh one.
func New(registry *prometheus.Registry) (*Collector, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Session activity events by type.",
		}, []string{"event"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "1 for the current session state, 0 otherwise.",
		}, []string{"state"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
	}

	for _, col := range []prometheus.Collector{c.events, c.state, c.logins} {
		if err := registry.Register(col); err != nil {
			return nil, err
		}
	}

	c.setState(auth.StateHydrating, 0)
	return c, nil
}

// Record implements auth.ActivitySink
func (c *Collector) Record(_ context.Context, event auth.ActivityEvent) error {
	c.events.WithLabelValues(string(event.EventType)).Inc()

	switch event.EventType {
	case auth.ActivityEventLoginSuccess:
		c.logins.WithLabelValues("success").Inc()
	case auth.ActivityEventLoginFailure:
		c.logins.WithLabelValues("failure").Inc()
	case auth.ActivityEventPortalRejected:
		c.logins.WithLabelValues("portal_rejected").Inc()
	}
	return nil
}

// Observe tracks snapshots published by a session manager. Snapshots older
// than the last one seen are ignored.
func (c *Collector) Observe(snap auth.Snapshot) {
	c.setState(snap.State, snap.Generation)
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the registry the collectors live in
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) setState(state auth.State, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation < c.generation {
		return
	}
	c.generation = generation

	if c.current == state {
		return
	}

	for _, s := range []auth.State{auth.StateHydrating, auth.StateAnonymous, auth.StateAuthenticated} {
		val := 0.0
		if s == state {
			val = 1
		}
		c.state.WithLabelValues(string(s)).Set(val)
	}
	c.current = state
}
