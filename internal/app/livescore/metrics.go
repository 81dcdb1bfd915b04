package livescore

import "expvar"

var (
	metricScoreUpdates     = expvar.NewInt("livescore_updates_total")
	metricScoreConflicts   = expvar.NewInt("livescore_conflicts_total")
	metricFinalizations    = expvar.NewInt("livescore_finalizations_total")
	metricFinalizeUnsynced = expvar.NewInt("livescore_finalize_unsynced_total")
	metricRealtimeFailures = expvar.NewInt("livescore_realtime_failures_total")
)
