package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "airsupport"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and outcome.",
		},
		[]string{"tool", "outcome"},
	)

	dateShift = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bootstrap_date_shift_seconds",
			Help:      "Offset applied to the working copy timestamps at startup.",
		},
	)

	retrieverChunks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "retriever_chunks",
			Help:      "Number of FAQ chunks in the policy index.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, toolCalls, dateShift, retrieverChunks)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// Tool call outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomePending = "pending"
	OutcomeDenied  = "denied"
)

func IncToolCall(tool, outcome string) {
	toolCalls.WithLabelValues(tool, outcome).Inc()
}

func SetDateShift(offset time.Duration) {
	dateShift.Set(offset.Seconds())
}

func SetRetrieverChunks(n int) {
	retrieverChunks.Set(float64(n))
}
