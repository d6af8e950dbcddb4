package metadata

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// flushesTotal counts snapshot writes by collection and result. The
// preference tracker increments it too, via RecordFlush.
var flushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fileshelf_state_flushes_total",
	Help: "Snapshot writes by collection and result.",
}, []string{"collection", "result"})

// RecordFlush counts one snapshot write for collection.
func RecordFlush(collection string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	flushesTotal.WithLabelValues(collection, result).Inc()
}
