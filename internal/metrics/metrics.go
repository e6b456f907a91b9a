package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gigabot_requests_total",
			Help: "Total number of processed updates",
		},
		[]string{"source", "type"},
	)

	ErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gigabot_errors_total",
			Help: "Total number of errors by stage",
		},
		[]string{"stage"},
	)

	ChatLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gigabot_chat_latency_ms",
			Help:    "Model call latency in milliseconds",
			Buckets: []float64{50, 100, 200, 400, 800, 1500, 3000, 5000, 10000},
		},
	)

	TokensIn = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gigabot_tokens_in_total",
			Help: "Total number of prompt tokens sent to GigaChat",
		},
	)

	TokensOut = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gigabot_tokens_out_total",
			Help: "Total number of completion tokens received from GigaChat",
		},
	)
)

// ObserveChatLatency records a model call duration
func ObserveChatLatency(d time.Duration) {
	ChatLatency.Observe(float64(d.Milliseconds()))
}

// AddTokens records token usage reported by the provider. Nil pointers mean
// the provider omitted the field.
func AddTokens(in, out *int) {
	if in != nil && *in > 0 {
		TokensIn.Add(float64(*in))
	}
	if out != nil && *out > 0 {
		TokensOut.Add(float64(*out))
	}
}
