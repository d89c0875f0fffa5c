package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type MarketMetrics struct {
	listingsCreated   prometheus.Counter
	listingsAccepted  prometheus.Counter
	listingsCommitted prometheus.Counter
	listingsCancelled prometheus.Counter
	listingsSettled   prometheus.Counter
	settlementErrors  *prometheus.CounterVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

// Market returns the process-wide market metric set, registering it on first
// use.
func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			listingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_listings_created_total",
				Help: "Count of listings created.",
			}),
			listingsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_listings_accepted_total",
				Help: "Count of listings accepted by a buyer.",
			}),
			listingsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_listings_committed_total",
				Help: "Count of listings with posted seller collateral.",
			}),
			listingsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_listings_cancelled_total",
				Help: "Count of cancelled listings.",
			}),
			listingsSettled: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_listings_settled_total",
				Help: "Count of listings settled via accepted inclusion proofs.",
			}),
			settlementErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_settlement_errors_total",
				Help: "Count of rejected settlement submissions by reason.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			marketRegistry.listingsCreated,
			marketRegistry.listingsAccepted,
			marketRegistry.listingsCommitted,
			marketRegistry.listingsCancelled,
			marketRegistry.listingsSettled,
			marketRegistry.settlementErrors,
		)
	})
	return marketRegistry
}

func (m *MarketMetrics) ListingCreated() {
	if m == nil {
		return
	}
	m.listingsCreated.Inc()
}

func (m *MarketMetrics) ListingAccepted() {
	if m == nil {
		return
	}
	m.listingsAccepted.Inc()
}

func (m *MarketMetrics) ListingCommitted() {
	if m == nil {
		return
	}
	m.listingsCommitted.Inc()
}

func (m *MarketMetrics) ListingCancelled() {
	if m == nil {
		return
	}
	m.listingsCancelled.Inc()
}

func (m *MarketMetrics) ListingSettled() {
	if m == nil {
		return
	}
	m.listingsSettled.Inc()
}

func (m *MarketMetrics) SettlementRejected(reason string) {
	if m == nil || reason == "" {
		return
	}
	m.settlementErrors.WithLabelValues(reason).Inc()
}
