package bridge

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var _ MessageHandler = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	handler MessageHandler
}

// MetricsMiddleware wraps a handler so every message is counted by outcome
// and timed.
func MetricsMiddleware(handler MessageHandler, counter metrics.Counter, latency metrics.Histogram) MessageHandler {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		handler: handler,
	}
}

func (mm *metricsMiddleware) Handle(ctx context.Context, msg Message) (err error) {
	defer func(begin time.Time) {
		outcome := Outcome(err)
		mm.counter.With("outcome", outcome).Add(1)
		mm.latency.With("outcome", outcome).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return mm.handler.Handle(ctx, msg)
}

// MakeMetrics registers the handler counter and latency summary with the
// default Prometheus registry.
func MakeMetrics(namespace, subsystem string) (*kitprometheus.Counter, *kitprometheus.Summary) {
	counter := kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "message_count",
		Help:      "Number of messages handled, by outcome.",
	}, []string{"outcome"})
	latency := kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
		Namespace:  namespace,
		Subsystem:  subsystem,
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		Name:       "message_latency_seconds",
		Help:       "Time spent handling a message, by outcome.",
	}, []string{"outcome"})

	return counter, latency
}
