package web

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/labcalc/internal/calc"
)

// metrics are registered on a per-server registry so that several servers
// (tests) can coexist in one process.
type metrics struct {
	registry     *prometheus.Registry
	calculations *prometheus.CounterVec
	saves        prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labcalc_calculations_total",
			Help: "Calculations by calculator and outcome (ok, invalid_input, invalid_unit, domain_error).",
		}, []string{"calculator", "outcome"}),
		saves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labcalc_history_saves_total",
			Help: "Records appended to the lab history.",
		}),
	}
	m.registry.MustRegister(m.calculations, m.saves)
	return m
}

func (m *metrics) observe(calculator string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(calc.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	m.calculations.WithLabelValues(calculator, outcome).Inc()
}
