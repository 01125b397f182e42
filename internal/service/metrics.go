package service

import "github.com/prometheus/client_golang/prometheus"

var tributesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "memorial_tributes_total", Help: "Candles and flowers offered"},
	[]string{"counter"},
)

func init() { prometheus.MustRegister(tributesTotal) }
