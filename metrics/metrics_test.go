package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveFit("full", time.Second, nil)
	m.ObserveFit("screening", time.Millisecond, errors.New("boom"))
	m.ObserveWeatherCall("archive", nil)
	m.ObserveWeatherCall("archive", errors.New("timeout"))
	m.ObserveWeatherCall("archive", errors.New("timeout"))
	m.ObserveDegraded("bounds")
	m.ObserveTrial()
	m.ObserveForecast()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fits.WithLabelValues("full", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fits.WithLabelValues("screening", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WeatherCalls.WithLabelValues("archive", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Degraded.WithLabelValues("bounds")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Trials))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Forecasts))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFit("full", time.Second, nil)
		m.ObserveTrial()
		m.ObserveTraining(nil)
		m.ObserveWeatherCall("forecast", nil)
		m.ObserveForecast()
		m.ObserveDegraded("bounds")
		m.ObserveAppend()
	})
}
