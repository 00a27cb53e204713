package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

var tokensProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hcert_tokens_processed_total",
		Help: "Total number of tokens processed, by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(tokensProcessed)
}
