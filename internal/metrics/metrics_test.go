package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type forecastErr struct{}

func (forecastErr) Error() string         { return "forecast failed" }
func (forecastErr) ForecastFailure() bool { return true }

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ErrorTypeUnknown},
		{name: "deadline", err: fmt.Errorf("store s1: %w", context.DeadlineExceeded), want: ErrorTypeDeadline},
		{name: "panic", err: fmt.Errorf("store s1: %w", ErrPanic), want: ErrorTypePanic},
		{name: "postgres", err: &pq.Error{Code: "40001"}, want: ErrorTypeDB},
		{name: "forecast", err: fmt.Errorf("p1: %w", forecastErr{}), want: ErrorTypeForecast},
		{name: "other", err: errors.New("boom"), want: ErrorTypeUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyError(tc.err))
		})
	}
}

func TestEngineMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveJob("nightly", "PARTIAL_FAILURE", 2*time.Second, 0.75)
	m.IncJobSkipped("nightly")
	m.IncStoreError("MEDIUM", ErrPanic)
	m.IncForecast("ensemble")
	m.IncForecast("ensemble")
	m.IncSuggestion("HIGH")
	m.AddOrders("nightly", 2, 125.5)
	m.IncTrigger("WEATHER_EVENT", "HIGH")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("nightly", "PARTIAL_FAILURE")))
	assert.Equal(t, 0.75, testutil.ToFloat64(m.successRate.WithLabelValues("nightly")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsSkipped.WithLabelValues("nightly")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeErrors.WithLabelValues("MEDIUM", ErrorTypePanic)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.forecasts.WithLabelValues("ensemble")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersCreated.WithLabelValues("nightly")))
	assert.Equal(t, 125.5, testutil.ToFloat64(m.orderValue.WithLabelValues("nightly")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.triggers.WithLabelValues("WEATHER_EVENT", "HIGH")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *EngineMetrics
	m.ObserveJob("nightly", "SUCCESS", time.Second, 1)
	m.IncStoreError("HIGH", errors.New("x"))
	m.AddOrders("nightly", 1, 1)
}
