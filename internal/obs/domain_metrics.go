package obs

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartOperationsTotal counts cart mutations and views by outcome.
	CartOperationsTotal *prometheus.CounterVec
	// CartsActive reports how many carts are held in memory.
	CartsActive prometheus.Gauge
	// CatalogCacheTotal counts catalog cache lookups by result (hit, miss, error).
	CatalogCacheTotal *prometheus.CounterVec
	// UpstreamRequestLatency records catalog provider call latency in milliseconds.
	UpstreamRequestLatency *prometheus.HistogramVec
	// ToolCallsTotal counts tool bridge invocations by tool and outcome.
	ToolCallsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_operations_total",
			Help:      "Count of cart operations by outcome.",
		}, []string{"operation", "result"})
		CartsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "carts_active",
			Help:      "Number of carts currently held in memory.",
		})
		CatalogCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_total",
			Help:      "Count of catalog cache lookups by result.",
		}, []string{"result"})
		UpstreamRequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_ms",
			Help:      "Latency for catalog provider calls in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"operation", "result"})
		ToolCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Count of tool bridge invocations by tool and outcome.",
		}, []string{"tool", "result"})

		mustRegisterCollector(reg, CartOperationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartOperationsTotal = v
			}
		})
		mustRegisterCollector(reg, CartsActive, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				CartsActive = v
			}
		})
		mustRegisterCollector(reg, CatalogCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CatalogCacheTotal = v
			}
		})
		mustRegisterCollector(reg, UpstreamRequestLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				UpstreamRequestLatency = v
			}
		})
		mustRegisterCollector(reg, ToolCallsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ToolCallsTotal = v
			}
		})
	})
}

// ObserveCartOperation increments the cart operation counter when registered.
func ObserveCartOperation(operation, result string) {
	if CartOperationsTotal != nil {
		CartOperationsTotal.WithLabelValues(operation, result).Inc()
	}
}

// SetCartsActive updates the in-memory cart gauge when registered.
func SetCartsActive(n int) {
	if CartsActive != nil {
		CartsActive.Set(float64(n))
	}
}

// ObserveCatalogCache increments the catalog cache counter when registered.
func ObserveCatalogCache(result string) {
	if CatalogCacheTotal != nil {
		CatalogCacheTotal.WithLabelValues(result).Inc()
	}
}

// ObserveUpstream records a catalog provider call when registered.
func ObserveUpstream(operation, result string, d time.Duration) {
	if UpstreamRequestLatency != nil {
		UpstreamRequestLatency.WithLabelValues(operation, result).Observe(DurationMillis(d))
	}
}

// ObserveToolCall increments the tool bridge counter when registered.
func ObserveToolCall(tool, result string) {
	if ToolCallsTotal != nil {
		ToolCallsTotal.WithLabelValues(tool, result).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
