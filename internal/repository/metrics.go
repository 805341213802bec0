package repository

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var storeOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "prms_store_operations_total",
		Help: "Record store operations by backend, operation and result.",
	},
	[]string{"backend", "op", "result"},
)

func observeOp(backend, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	storeOperationsTotal.WithLabelValues(backend, op, result).Inc()
}
