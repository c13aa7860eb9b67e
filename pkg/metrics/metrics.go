// Package metrics defines Prometheus metrics for nornicflow.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	StatementExecs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nornicflow_statement_execs_total",
			Help: "Prepared statement executions by statement kind",
		},
		[]string{"kind"},
	)

	StatementPrepares = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nornicflow_statement_prepares_total",
			Help: "Prepared statements by backend and statement kind",
		},
		[]string{"backend", "kind"},
	)

	OperatorsBuilt = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nornicflow_operators_built_total",
			Help: "Operators generated from plan nodes by operator mode",
		},
		[]string{"mode"},
	)

	RecordsIn = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nornicflow_records_in_total",
			Help: "Records pulled into flat-map stages",
		},
	)

	RecordsOut = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nornicflow_records_out_total",
			Help: "Records emitted by flat-map stages",
		},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nornicflow_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nornicflow_run_duration_seconds",
			Help:    "Wall time of a dataflow run in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		StatementExecs, StatementPrepares, OperatorsBuilt,
		RecordsIn, RecordsOut, ErrorsTotal,
		RunDuration,
	)
}
