package cleanup

import "expvar"

var (
	metricCleanupDone   = expvar.NewInt("cleanup_done_total")
	metricCleanupFailed = expvar.NewInt("cleanup_failed_total")
	metricSweeps        = expvar.NewInt("cleanup_sweeps_total")
	metricSweepErrors   = expvar.NewInt("cleanup_sweep_errors_total")
	metricNotifications = expvar.NewInt("cleanup_notifications_total")
)
