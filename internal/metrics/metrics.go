package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	componentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eventsyncor_component_health",
			Help: "Health status per component (1 = healthy, 0 = unhealthy)",
		},
		[]string{"component"},
	)

	goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventsyncor_goroutines",
			Help: "Number of running goroutines",
		},
	)

	heapAlloc = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventsyncor_heap_alloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)
)

// ComponentHealthSet records the health status of a component.
func ComponentHealthSet(component string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	componentHealth.WithLabelValues(component).Set(v)
}

// UpdateSystemMetrics refreshes process-level gauges.
func UpdateSystemMetrics() {
	goroutines.Set(float64(runtime.NumGoroutine()))

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	heapAlloc.Set(float64(ms.HeapAlloc))
}
