package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "chain",
		Name:      "calls_total",
	}, []string{"outcome"})
	promReverts = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "chain",
		Name:      "reverts_total",
	}, []string{"reason"})
	promHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "chain",
		Name:      "block_height",
	})
)
