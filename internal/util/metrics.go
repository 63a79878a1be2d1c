package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartAddsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_adds_total",
		Help: "Total number of cart lines added or merged",
	})

	CartAddsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_adds_rejected_total",
		Help: "Total number of rejected cart adds",
	}, []string{"reason"})

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders created at checkout",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order placements",
	}, []string{"reason"})

	OrderPlacementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_placement_latency_seconds",
		Help:    "Latency of the order placement transaction",
		Buckets: prometheus.DefBuckets,
	})

	OrdersAutoCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_auto_completed_total",
		Help: "Total number of delivered orders advanced to completed",
	})

	PickupsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pickups_accepted_total",
		Help: "Total number of pickup requests accepted by riders",
	})

	PickupsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pickups_completed_total",
		Help: "Total number of pickup requests completed",
	})

	DeliveriesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deliveries_completed_total",
		Help: "Total number of deliveries completed with proof",
	})

	DeliveriesRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deliveries_rejected_total",
		Help: "Total number of delivery assignments rejected by riders",
	})

	DispatchConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_conflicts_total",
		Help: "Total number of rejected dispatch transitions",
	}, []string{"operation"})

	PayoutsRequestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payouts_requested_total",
		Help: "Total number of rider payout requests",
	})

	PayoutsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payouts_processed_total",
		Help: "Total number of payout requests settled by admins",
	}, []string{"status"})

	StockCacheRefreshTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_cache_refresh_total",
		Help: "Total number of product stock cache refreshes",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
