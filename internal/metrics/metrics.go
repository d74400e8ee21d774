// Package metrics holds the Prometheus collectors of the library.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Launch outcomes.
const (
	OutcomeOK                  = "ok"
	OutcomeDuplicationFailed   = "duplication_failed"
	OutcomeConfigurationFailed = "configuration_failed"
	OutcomePreparationFailed   = "preparation_failed"
)

var (
	Launches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "litmusrt",
		Name:      "launches_total",
		Help:      "Real-time task launch attempts by outcome.",
	}, []string{"outcome"})

	DeferredExits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "litmusrt",
		Name:      "np_deferred_exits_total",
		Help:      "Non-preemptive sections that ended with a deferred preemption.",
	})

	JobReleases = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "litmusrt",
		Subsystem: "sim",
		Name:      "job_releases_total",
		Help:      "Jobs released by the simulated kernel, per cpu.",
	}, []string{"cpu"})

	TaskExits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "litmusrt",
		Name:      "task_exits_total",
		Help:      "Launched tasks that terminated, by exit status.",
	}, []string{"status"})
)

// Registry holds every collector above.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(Launches, DeferredExits, JobReleases, TaskExits)
}
