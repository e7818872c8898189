package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Keeper holds the keeper loop counters
type Keeper struct {
	Ticks      prometheus.Counter
	Checks     *prometheus.CounterVec
	Executions *prometheus.CounterVec
	Errors     *prometheus.CounterVec
}

// NewKeeper creates the keeper counters and registers them on reg
func NewKeeper(reg prometheus.Registerer) *Keeper {
	m := &Keeper{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confidance_keeper_ticks_total",
			Help: "Total number of keeper ticks",
		}),
		Checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confidance_keeper_checks_total",
			Help: "Resolver checker() calls by outcome",
		}, []string{"kind", "result"}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confidance_keeper_executions_total",
			Help: "Confirmed release transactions",
		}, []string{"kind"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confidance_keeper_errors_total",
			Help: "Keeper failures by stage",
		}, []string{"stage"}),
	}
	reg.MustRegister(m.Ticks, m.Checks, m.Executions, m.Errors)
	return m
}
