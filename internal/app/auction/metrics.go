package auction

import "expvar"

var (
	metricBids          = expvar.NewInt("auction_bids_total")
	metricBidRejections = expvar.NewInt("auction_bid_rejections_total")
	metricBidsRevoked   = expvar.NewInt("auction_bids_revoked_total")
	metricSales         = expvar.NewInt("auction_sales_total")
	metricSaleConflicts = expvar.NewInt("auction_sale_conflicts_total")
	metricSaleUnsynced  = expvar.NewInt("auction_sale_unsynced_total")
)
