package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "warden_event_duration_sec",
	Help: "Total duration of moderation event processing",
}, []string{"type"})

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_event_processed",
	Help: "Number of events processed",
}, []string{"type"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_event_errors",
	Help: "Number of events which failed processing",
}, []string{"type"})

var ruleMatchCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_rule_matches",
	Help: "Number of messages flagged, by content rule",
}, []string{"rule"})

var floodTriggerCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_flood_triggers",
	Help: "Number of flood detections",
}, []string{"type"})

var escalationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_escalations",
	Help: "Number of strike-limit escalations, by action",
}, []string{"action"})

var enforcementFailureCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_enforcement_failures",
	Help: "Number of platform enforcement calls which failed",
}, []string{"op"})

var adminActionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_admin_actions",
	Help: "Number of admin API actions, by action type",
}, []string{"action"})
