package auction

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("admission: %w", Outbid(ErrBidConflict))

	require.True(t, errors.Is(err, &Error{Kind: KindRace}))
	require.True(t, errors.Is(err, &Error{Kind: KindRace, Reason: ReasonOutbid}))
	require.False(t, errors.Is(err, &Error{Kind: KindValidation}))
	require.True(t, errors.Is(err, ErrBidConflict))
}

func TestWrongIncrement(t *testing.T) {
	err := WrongIncrement(150)
	require.Equal(t, KindValidation, err.Kind)
	require.Equal(t, int64(150), err.RequiredAmount)
	require.Contains(t, err.Message, "150")
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindInternal, KindOf(errors.New("boom")))
	require.Equal(t, KindAuthorization, KindOf(Unauthorized("admin only")))
	require.Equal(t, KindValidation, KindOf(fmt.Errorf("wrapped: %w", Invalid(ReasonNoBids, "no bids"))))
	require.Nil(t, AsError(nil))
}

func TestNewErrorEvent(t *testing.T) {
	ev := NewErrorEvent(CommandPlaceBid, WrongIncrement(600))
	require.Equal(t, EventBidError, ev.Type)
	p := ev.Payload.(ErrorPayload)
	require.Equal(t, ReasonWrongIncrement, p.Reason)
	require.Equal(t, int64(600), p.RequiredAmount)

	ev = NewErrorEvent(CommandStart, errors.New("db down"))
	require.Equal(t, EventError, ev.Type)
	p = ev.Payload.(ErrorPayload)
	require.Equal(t, KindInternal, p.Kind)
	require.Equal(t, "internal error", p.Message)
}
