// Package metrics описывает счетчики Prometheus для жизненного цикла багов и решений.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bugbounty"

// Metrics счетчики сервиса
type Metrics struct {
	BugsCreated   prometheus.Counter
	BugsDeleted   prometheus.Counter
	Submissions   *prometheus.CounterVec
	Approvals     *prometheus.CounterVec
	BountyAwarded prometheus.Counter
}

// New регистрирует счетчики в reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BugsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bugs_created_total",
			Help:      "Number of bugs created.",
		}),
		BugsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bugs_deleted_total",
			Help:      "Number of bugs deleted together with their submissions.",
		}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submission attempts by outcome.",
		}, []string{"outcome"}),
		Approvals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approvals_total",
			Help:      "Approval attempts by outcome.",
		}, []string{"outcome"}),
		BountyAwarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bounty_awarded_total",
			Help:      "Sum of bounties credited to winners.",
		}),
	}
}
