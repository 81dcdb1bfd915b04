package httptransport

import "expvar"

var (
	metricScoreRequests    = expvar.NewInt("http_score_requests_total")
	metricFinalizeRequests = expvar.NewInt("http_finalize_requests_total")
	metricBidRequests      = expvar.NewInt("http_bid_requests_total")
	metricSoldRequests     = expvar.NewInt("http_sold_requests_total")
	metricTransientErrors  = expvar.NewInt("http_store_unavailable_total")
)
