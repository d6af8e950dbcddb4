package recommend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fileshelf_recommendation_requests_total",
	Help: "Ranking queries served, by kind.",
}, []string{"kind"})
