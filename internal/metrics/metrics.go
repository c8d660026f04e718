// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "missionmonitor_submissions_total",
		Help: "Submissions accepted, by source platform.",
	}, []string{"source"})

	SubmissionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "missionmonitor_submissions_rejected_total",
		Help: "Submissions rejected because the mission was not active.",
	})

	VotesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "missionmonitor_votes_total",
		Help: "Judge votes recorded (including overwrites).",
	})

	VoteRemovalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "missionmonitor_vote_removals_total",
		Help: "Judge votes removed.",
	})

	SweepCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "missionmonitor_sweep_cycles_total",
		Help: "Deadline sweep cycles run.",
	})

	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "missionmonitor_exports_total",
		Help: "Mission export attempts, by outcome.",
	}, []string{"status"})

	SyncFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "missionmonitor_sync_failures_total",
		Help: "Best-effort spreadsheet sync failures, by operation.",
	}, []string{"operation"})
)
