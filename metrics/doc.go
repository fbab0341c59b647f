// Package metrics defines the Prometheus collectors exposed on /metrics.
//
// Components take a *Metrics and call its Observe methods; passing nil
// disables recording, which keeps library use and tests free of global
// registration:
//
//	m := metrics.New(prometheus.NewRegistry())
//	m.ObserveWeatherCall("archive", err)
package metrics
