package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	invitesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outreach_invites_sent_total",
		Help: "Connection invites successfully sent",
	})

	followUpsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outreach_followups_sent_total",
		Help: "Follow-up messages successfully sent",
	})

	agentCrashesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outreach_agent_crashes_total",
		Help: "Agent session crashes detected by the supervisor",
	})

	sessionRestartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outreach_session_restarts_total",
		Help: "Agent sessions restarted after a crash",
	})

	limitReachedRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outreach_limit_reached_runs_total",
		Help: "Runs that terminated immediately because a safety limit was already spent",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_runs_total",
		Help: "Campaign runs by final status",
	}, []string{"status"})
)
