package simulation

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
	shapeLabel   = "shape"
	opLabel      = "op"
)

var (
	frameLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "simulation_frame_latency",
		Help: "The time to simulate a frame.",
	})

	queryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "simulation_query_latency",
		Help: "The time to run a range query.",
	}, []string{shapeLabel})

	queryResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simulation_query_results",
		Help: "The number of entities returned by range queries.",
	}, []string{shapeLabel})

	mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simulation_mutations",
		Help: "The number of world mutations.",
	}, []string{opLabel})

	simulationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simulation_errors",
		Help: "The errors that occurred while simulating a frame.",
	}, []string{errTypeLabel})
)

func instrumentFrame(start time.Time) {
	frameLatency.Observe(time.Since(start).Seconds())
}

func instrumentQuery(shape string, start time.Time, results int) {
	queryLatency.
		With(prometheus.Labels{shapeLabel: shape}).
		Observe(time.Since(start).Seconds())

	queryResults.
		With(prometheus.Labels{shapeLabel: shape}).
		Add(float64(results))
}

func instrumentMutation(op string) {
	mutations.
		With(prometheus.Labels{opLabel: op}).
		Inc()
}

func instrumentError(err error) {
	simulationErrors.
		With(prometheus.Labels{errTypeLabel: errors.Type(err)}).
		Inc()
}
