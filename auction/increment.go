package auction

// IncrementThreshold is the price at which the step widens.
const IncrementThreshold int64 = 500

// NextBid returns the single amount a new bid must equal when the lot
// currently stands at currentBid.
func NextBid(currentBid int64) int64 {
	if currentBid < IncrementThreshold {
		return currentBid + 50
	}
	return currentBid + 100
}
