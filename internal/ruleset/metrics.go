package ruleset

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rulesLoadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sigmaflow",
		Name:      "rules_loaded_total",
		Help:      "Total rules successfully compiled into the ruleset",
	})

	rulesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sigmaflow",
		Name:      "rules_failed_total",
		Help:      "Total rules rejected at load time, by failure kind",
	}, []string{"kind"})

	ruleEvalErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sigmaflow",
		Name:      "rule_eval_errors_total",
		Help:      "Evaluations where a compiled tree panicked and was treated as non-matching (§4.7)",
	})
)
