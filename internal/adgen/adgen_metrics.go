package adgen

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for ad generation.
type Metrics struct {
	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	LLMCallsTotal      *prometheus.CounterVec
	LLMTokensIn        prometheus.Counter
	LLMTokensOut       prometheus.Counter
	LLMDuration        *prometheus.HistogramVec
}

// NewMetrics registers and returns ad generation metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GenerationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breezecue_generations_total",
			Help: "Total ad generations by requested provider and outcome.",
		}, []string{"provider", "outcome"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "breezecue_generation_duration_seconds",
			Help:    "Duration of ad generations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9), // 0.25s .. 64s
		}),
		LLMCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breezecue_llm_calls_total",
			Help: "Total LLM provider calls by kind and status.",
		}, []string{"kind", "status"}),
		LLMTokensIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breezecue_llm_tokens_input_total",
			Help: "Total LLM input tokens consumed.",
		}),
		LLMTokensOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breezecue_llm_tokens_output_total",
			Help: "Total LLM output tokens consumed.",
		}),
		LLMDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "breezecue_llm_call_duration_seconds",
			Help:    "Duration of individual LLM calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s .. 32s
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.GenerationsTotal,
		m.GenerationDuration,
		m.LLMCallsTotal,
		m.LLMTokensIn,
		m.LLMTokensOut,
		m.LLMDuration,
	)

	return m
}

// Hooks returns generator hooks that update the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnLLMCall: func(kind string, inputTokens, outputTokens int, duration float64, failed bool) {
			status := "success"
			if failed {
				status = "error"
			}
			m.LLMCallsTotal.WithLabelValues(kind, status).Inc()
			m.LLMTokensIn.Add(float64(inputTokens))
			m.LLMTokensOut.Add(float64(outputTokens))
			m.LLMDuration.WithLabelValues(kind).Observe(duration)
		},
		OnComplete: func(provider string, ok bool, duration float64) {
			outcome := "success"
			if !ok {
				outcome = "placeholder"
			}
			m.GenerationsTotal.WithLabelValues(provider, outcome).Inc()
			m.GenerationDuration.Observe(duration)
		},
	}
}
