/*
Package testutil provides fixtures for testing the auction coordinator and
its transports.

# Lots

NewTestLot builds a pending product lot and accepts functional options:

	lamp := testutil.NewTestLot(
	    testutil.WithID(1),
	    testutil.WithIndex(1),
	)
	chip := testutil.NewTestLot(
	    testutil.WithID(2),
	    testutil.WithIndex(2),
	    testutil.WithCategory(auction.CategoryTechnology),
	    testutil.WithBasePrice(500),
	)

# Ledger

NewTestLedger returns a memory store seeded with four well-known
identities (Admin, Alice, Bob, Carol) and the given lots:

	ledger, err := testutil.NewTestLedger(clock, lamp, chip)

# Publisher

RecordingPublisher stands in for the real-time hub and records every
broadcast:

	pub := testutil.NewRecordingPublisher()
	...
	require.True(t, pub.WaitFor(auction.EventTimerFinished, 1, time.Second))
*/
package testutil
