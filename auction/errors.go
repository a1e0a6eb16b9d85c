package auction

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Ledger implementations. Callers match them
// with errors.Is; adapters wrap them with context.
var (
	ErrNotFound          = errors.New("not found")
	ErrBidConflict       = errors.New("lot price changed since validation")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrLotClosed         = errors.New("lot is not open for bidding")
	ErrNoBids            = errors.New("lot has no bids")
)

// ErrorKind is the coarse class of a rejected request.
type ErrorKind string

const (
	KindAuthorization ErrorKind = "authorization"
	KindValidation    ErrorKind = "validation"
	KindRace          ErrorKind = "race"
	KindInternal      ErrorKind = "internal"
)

// Reason identifies the precise rejection cause inside a kind.
type Reason string

const (
	ReasonUnauthorized      Reason = "unauthorized"
	ReasonMalformed         Reason = "malformed"
	ReasonNoActiveLot       Reason = "no_active_lot"
	ReasonLateBid           Reason = "late_bid"
	ReasonLotClosed         Reason = "lot_closed"
	ReasonWrongIncrement    Reason = "wrong_increment"
	ReasonInsufficientFunds Reason = "insufficient_funds"
	ReasonNotFound          Reason = "not_found"
	ReasonStaleCommand      Reason = "stale_command"
	ReasonNoBids            Reason = "no_bids"
	ReasonWinnerMismatch    Reason = "winner_mismatch"
	ReasonOutbid            Reason = "outbid"
	ReasonInternal          Reason = "internal"
)

// Error is a request rejection reported to the issuer only.
type Error struct {
	Kind    ErrorKind
	Reason  Reason
	Message string

	// RequiredAmount is set for ReasonWrongIncrement.
	RequiredAmount int64

	// Err is the underlying cause, if any. It is never shown to clients.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and reason, so callers can
// write errors.Is(err, &auction.Error{Kind: KindRace, Reason: ReasonOutbid}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

// Unauthorized rejects a command issued without sufficient privilege.
func Unauthorized(format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Reason: ReasonUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Invalid rejects a command that failed validation.
func Invalid(reason Reason, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// WrongIncrement rejects a bid whose amount is not the next step.
func WrongIncrement(required int64) *Error {
	return &Error{
		Kind:           KindValidation,
		Reason:         ReasonWrongIncrement,
		Message:        fmt.Sprintf("bid must be %d", required),
		RequiredAmount: required,
	}
}

// Outbid reports a bid that lost the conditional update to a concurrent bid.
func Outbid(cause error) *Error {
	return &Error{
		Kind:    KindRace,
		Reason:  ReasonOutbid,
		Message: "another bid was accepted while yours was processing, retry at the new price",
		Err:     cause,
	}
}

// Internal wraps a store or transport failure.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Reason: ReasonInternal, Message: "internal error", Err: cause}
}

// AsError converts any error into an *Error, treating unknown errors as
// internal failures.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	return AsError(err).Kind
}
