package metrics

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/flashbots/auctioneer/common"
)

var (
	bidsAcceptedTotal    = metrics.NewCounter(common.PackageName + `_bids_accepted_total`)
	bidRacesTotal        = metrics.NewCounter(common.PackageName + `_bid_races_total`)
	bidAdmissionDuration = metrics.NewHistogram(common.PackageName + `_bid_admission_duration_seconds`)
	ticksTotal           = metrics.NewCounter(common.PackageName + `_countdown_ticks_total`)
	staleTicksTotal      = metrics.NewCounter(common.PackageName + `_countdown_stale_ticks_total`)
	lotsExpiredTotal     = metrics.NewCounter(common.PackageName + `_lots_expired_total`)
	refundsTotal         = metrics.NewCounter(common.PackageName + `_refunds_total`)
	refundedAmountTotal  = metrics.NewCounter(common.PackageName + `_refunded_amount_total`)
)

func IncBidAccepted() {
	bidsAcceptedTotal.Inc()
}

// IncBidRejected counts a rejected bid by rejection reason.
func IncBidRejected(reason string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`%s_bids_rejected_total{reason=%q}`, common.PackageName, reason)).Inc()
}

func IncBidRace() {
	bidRacesTotal.Inc()
}

// ObserveBidAdmission records how long admission of a single bid took.
func ObserveBidAdmission(start time.Time) {
	bidAdmissionDuration.UpdateDuration(start)
}

// IncLotTransition counts an admin command that changed the open lot.
func IncLotTransition(command, result string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`%s_lot_transitions_total{command=%q,result=%q}`,
		common.PackageName, command, result)).Inc()
}

func IncTick() {
	ticksTotal.Inc()
}

func IncStaleTick() {
	staleTicksTotal.Inc()
}

func IncLotExpired() {
	lotsExpiredTotal.Inc()
}

// AddRefunds counts the credits made by an unsold reversal.
func AddRefunds(count int, amount int64) {
	refundsTotal.Add(count)
	refundedAmountTotal.Add(int(amount))
}

// IncDeliveryDropped counts a broadcast skipped for a slow subscriber.
func IncDeliveryDropped(eventType string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`%s_deliveries_dropped_total{event=%q}`, common.PackageName, eventType)).Inc()
}

// IncSubscriberEvicted counts a subscriber disconnected for falling behind.
func IncSubscriberEvicted(transport string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`%s_subscribers_evicted_total{transport=%q}`, common.PackageName, transport)).Inc()
}

// RegisterSubscriberGauge exposes the current subscriber count. Only the
// first registration takes effect.
func RegisterSubscriberGauge(count func() int) {
	metrics.GetOrCreateGauge(common.PackageName+`_subscribers`, func() float64 {
		return float64(count())
	})
}
