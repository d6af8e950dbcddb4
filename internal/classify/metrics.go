package classify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fileshelf_classifications_total",
		Help: "Metadata records produced, by method (ai or heuristic).",
	}, []string{"method"})

	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fileshelf_classification_fallbacks_total",
		Help: "AI classification attempts that fell back to the heuristic, by reason.",
	}, []string{"reason"})
)
