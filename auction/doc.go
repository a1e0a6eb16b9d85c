// Package auction holds the domain model of a live ascending-price auction:
// lots, bids and bidders, the increment rule, the lot ordering, the state
// snapshot served to participants, the inbound command variants and the
// ports the coordinator depends on.
//
// Amounts are whole currency units. A bid is admissible only when it equals
// NextBid of the lot's current price, so every accepted bid moves the price
// by exactly one step.
package auction
