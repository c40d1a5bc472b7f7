package pricetable

import "github.com/prometheus/client_golang/prometheus"

var (
	reloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricetable_reload_total",
			Help: "Price table reload attempts by product and result",
		},
		[]string{"product", "result"},
	)
	tableRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pricetable_rows",
			Help: "Data rows in the active price table",
		},
		[]string{"product"},
	)
)

func init() {
	prometheus.MustRegister(reloadsTotal, tableRows)
}
