// Package metrics holds the Prometheus collectors for business events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront"

var (
	// OrdersTotal counts orders by lifecycle status reached.
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Total number of orders by status",
		},
		[]string{"status"},
	)

	// PaymentVerifications counts payment callbacks by outcome.
	PaymentVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verifications_total",
			Help:      "Total number of payment verifications by result",
		},
		[]string{"result"},
	)

	// DiscountEvaluations counts discount evaluations by result.
	DiscountEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_evaluations_total",
			Help:      "Total number of discount code evaluations by result",
		},
		[]string{"result"},
	)

	// GatewayBreakerState tracks the payment gateway circuit (0=closed, 1=open, 2=half-open).
	GatewayBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gateway_breaker_state",
			Help:      "Payment gateway circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"circuit"},
	)

	// GatewayRequestDuration tracks payment gateway call latency.
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Payment gateway request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)
)
