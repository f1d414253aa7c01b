package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwdpop/internal/model"
)

func TestObserveGeneration(t *testing.T) {
	m := New()
	m.ObserveGeneration("run-1", model.GenerationStats{Generation: 1, MeanFitness: 0.98, Segregating: 12, Gametes: 30, Fixations: 1})
	m.ObserveGeneration("run-1", model.GenerationStats{Generation: 2, MeanFitness: 0.97, Segregating: 15, Gametes: 33, Fixations: 2})
	m.ObserveInjection("run-1")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.generations.WithLabelValues("run-1")))
	assert.Equal(t, 0.97, testutil.ToFloat64(m.meanFitness.WithLabelValues("run-1")))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.segregating.WithLabelValues("run-1")))
	assert.Equal(t, 33.0, testutil.ToFloat64(m.gametes.WithLabelValues("run-1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.fixations.WithLabelValues("run-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.injections.WithLabelValues("run-1")))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ObserveGeneration("run-7", model.GenerationStats{MeanFitness: 1})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(string(body), `fwdpop_generations_total{run_id="run-7"} 1`))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveGeneration("run", model.GenerationStats{})
	m.ObserveInjection("run")
	assert.Nil(t, m.Registry())
	assert.NotNil(t, m.Handler())
}
