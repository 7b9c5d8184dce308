// Package metrics holds the business counters exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farmdirect_orders_created_total",
			Help: "Orders created, by source",
		},
		[]string{"source"},
	)

	StockRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farmdirect_stock_rejections_total",
			Help: "Operations refused for lack of stock or listing quantity",
		},
		[]string{"operation"},
	)

	NegotiationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farmdirect_negotiation_transitions_total",
			Help: "Negotiation actions applied, by action",
		},
		[]string{"action"},
	)

	CropOrderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farmdirect_crop_order_transitions_total",
			Help: "Crop listing order status changes, by target status",
		},
		[]string{"status"},
	)
)
