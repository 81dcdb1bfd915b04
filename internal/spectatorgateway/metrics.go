package spectatorgateway

import "expvar"

var (
	metricSSEConnectionsTotal  = expvar.NewInt("spectator_sse_connections_total")
	metricSSEConnectionsActive = expvar.NewInt("spectator_sse_connections_active")
	metricWSConnectionsTotal   = expvar.NewInt("spectator_ws_connections_total")
	metricWSConnectionsActive  = expvar.NewInt("spectator_ws_connections_active")
	metricEventsSent           = expvar.NewInt("spectator_events_sent_total")
)
