package auction

import "sort"

// categoryOrder fixes the order in which categories are auctioned.
var categoryOrder = []Category{CategoryProduct, CategoryTechnology}

// ActiveRun returns the lots queued for the current pass: every lot with
// IsActive set, products first then technology, each ascending by
// AuctionIndex. The input slice is not modified.
func ActiveRun(lots []*Lot) []*Lot {
	run := make([]*Lot, 0, len(lots))
	for _, category := range categoryOrder {
		run = append(run, sortedByIndex(lots, func(l *Lot) bool {
			return l.IsActive && l.Category == category
		})...)
	}
	return run
}

// UnsoldRetrySet returns every unsold lot ascending by AuctionIndex.
func UnsoldRetrySet(lots []*Lot) []*Lot {
	return sortedByIndex(lots, func(l *Lot) bool {
		return l.Status == StatusUnsold
	})
}

// RetryRun returns the lots queued for an unsold retry pass: every lot
// with IsActive set, ascending by AuctionIndex regardless of category.
func RetryRun(lots []*Lot) []*Lot {
	return sortedByIndex(lots, func(l *Lot) bool {
		return l.IsActive
	})
}

// NextLot picks the lot that follows current in the run. When current is
// nil the first lot of the run is returned. When current has left the run
// (it was sold or reversed) the first run lot with a strictly greater
// AuctionIndex is returned. Returns nil when the run is exhausted.
func NextLot(run []*Lot, current *Lot) *Lot {
	if current == nil {
		if len(run) == 0 {
			return nil
		}
		return run[0]
	}

	for i, l := range run {
		if l.ID == current.ID {
			if i+1 < len(run) {
				return run[i+1]
			}
			return nil
		}
	}

	for _, l := range run {
		if l.AuctionIndex > current.AuctionIndex {
			return l
		}
	}
	return nil
}

// FindLot returns the lot with the given id, or nil.
func FindLot(lots []*Lot, id int64) *Lot {
	for _, l := range lots {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func sortedByIndex(lots []*Lot, keep func(*Lot) bool) []*Lot {
	out := make([]*Lot, 0, len(lots))
	for _, l := range lots {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AuctionIndex < out[j].AuctionIndex
	})
	return out
}
