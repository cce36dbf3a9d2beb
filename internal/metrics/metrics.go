// Package metrics exposes Prometheus instrumentation for the dev loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BuildsTotal counts completed build attempts by outcome
	// (succeeded, failed, canceled).
	BuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loom",
		Name:      "builds_total",
		Help:      "Completed build attempts by outcome.",
	}, []string{"outcome"})

	// BuildDuration observes wall-clock duration of build attempts.
	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "loom",
		Name:      "build_duration_seconds",
		Help:      "Wall-clock duration of build attempts.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// StepsTotal counts individual pipeline step runs by step and status.
	StepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loom",
		Name:      "steps_total",
		Help:      "Pipeline step runs by step name and status.",
	}, []string{"step", "status"})

	// IntentsSuperseded counts builds canceled because a newer change
	// arrived while they were running.
	IntentsSuperseded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loom",
		Name:      "intents_superseded_total",
		Help:      "Build attempts canceled by a newer change.",
	})

	// ReloadSessions gauges currently connected browser reload sessions.
	ReloadSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "loom",
		Name:      "reload_sessions",
		Help:      "Connected browser reload sessions.",
	})

	// ReloadBroadcasts counts reload directives sent to browsers by kind.
	ReloadBroadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loom",
		Name:      "reload_broadcasts_total",
		Help:      "Reload directives broadcast to browsers by kind.",
	}, []string{"kind"})

	// ServerRestarts counts app server process restarts.
	ServerRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loom",
		Name:      "server_restarts_total",
		Help:      "App server process restarts.",
	})
)
