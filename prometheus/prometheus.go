// Package prometheus exports the state of the ffmpeg launcher as prometheus
// metrics. Collectors are registered on a private registry, not on the
// global default one.
package prometheus

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a registry of collectors that can be served over HTTP.
type Metrics interface {
	// Register adds a collector. A collector can be registered only once.
	Register(c prometheus.Collector) error

	// UnregisterAll removes every registered collector.
	UnregisterAll()

	// Handler serves the collected metrics in the text exposition format.
	Handler() http.Handler
}

type metrics struct {
	registry *prometheus.Registry

	lock       sync.Mutex
	collectors []prometheus.Collector
}

// New returns an empty registry.
func New() Metrics {
	return &metrics{
		registry: prometheus.NewRegistry(),
	}
}

func (m *metrics) Register(c prometheus.Collector) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.registry.Register(c); err != nil {
		return err
	}

	m.collectors = append(m.collectors, c)

	return nil
}

func (m *metrics) UnregisterAll() {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, c := range m.collectors {
		m.registry.Unregister(c)
	}

	m.collectors = nil
}

func (m *metrics) Handler() http.Handler {
	handler := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})

	// Counts the scrapes in promhttp_metric_handler_requests_total
	return promhttp.InstrumentMetricHandler(m.registry, handler)
}
