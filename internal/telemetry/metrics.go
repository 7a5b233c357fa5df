package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seckill_admissions_total",
			Help: "Total number of admission decisions",
		},
		[]string{"result"}, // accepted, out_of_stock, already_ordered, error
	)

	MaterializationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seckill_materializations_total",
			Help: "Total number of materialization attempts by outcome",
		},
		[]string{"result"}, // created, duplicate_skipped, out_of_stock_skipped
	)

	PendingRedeliveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seckill_pending_redeliveries_total",
			Help: "Total number of reservation events replayed from the pending view",
		},
	)
)
