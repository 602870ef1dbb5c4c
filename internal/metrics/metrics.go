// Package metrics exposes prometheus collectors and the scrape endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "trading_cycles_total", Help: "Completed evaluation cycles"},
	)
	CyclesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trading_cycles_skipped_total", Help: "Cycles skipped before evaluation"},
		[]string{"reason"},
	)
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signal_decisions_total", Help: "Aggregated decisions produced per tier"},
		[]string{"tier"},
	)
	SourceRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signal_source_records_total", Help: "Raw records fetched per source"},
		[]string{"source"},
	)
	SourceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signal_source_errors_total", Help: "Fetch failures per source"},
		[]string{"source"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted"},
		[]string{"symbol", "side"},
	)
	OrdersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_rejected_total", Help: "Orders abandoned after rejection or timeout"},
		[]string{"reason"},
	)
	ExitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "position_exits_total", Help: "Positions closed per exit rule"},
		[]string{"rule"},
	)
	AccountEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "account_equity_usd", Help: "Last observed account equity"},
	)
)

func init() {
	prometheus.MustRegister(
		CyclesTotal, CyclesSkipped, DecisionsTotal, SourceRecords,
		SourceErrors, OrdersTotal, OrdersRejected, ExitsTotal, AccountEquity,
	)
}

// Serve starts the prometheus scrape endpoint on addr.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
