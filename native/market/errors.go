package market

import "errors"

// Every guard violation surfaces as exactly one of the sentinel errors below.
// Operations either fully succeed or report one reason; ledger state is
// unchanged on any failure path.
var (
	// ErrInvalidID is returned when no listing exists for the requested id.
	ErrInvalidID = errors.New("market: unknown listing")
	// ErrDustAmount is returned when a price is below the configured minimum
	// or a collateral is below the listing premium.
	ErrDustAmount = errors.New("market: amount below minimum")
	// ErrListingExists is returned when the outpoint is already reserved by a
	// live listing.
	ErrListingExists = errors.New("market: outpoint already listed")
	// ErrAlreadyDone is returned when the listing is not in the state the
	// operation requires.
	ErrAlreadyDone = errors.New("market: listing not in required state")
	// ErrSelfTrade is returned when a seller attempts to accept their own
	// listing.
	ErrSelfTrade = errors.New("market: seller cannot buy own listing")
	// ErrForbidden is returned when the caller is not authorised for the
	// transition.
	ErrForbidden = errors.New("market: unauthorized caller")
	// ErrExpired is returned when the commit window has already elapsed.
	ErrExpired = errors.New("market: commit window elapsed")
	// ErrNotExpired is returned when a cancellation is attempted before the
	// relevant expiry height.
	ErrNotExpired = errors.New("market: expiry height not reached")
	// ErrNotCommitted is returned when settlement is attempted before the
	// seller has posted collateral.
	ErrNotCommitted = errors.New("market: listing not committed")
	// ErrNoBuyer is returned when settlement is attempted against a listing
	// without a recorded counterparty.
	ErrNoBuyer = errors.New("market: listing has no buyer")
	// ErrNoDestination is returned when an acceptance carries no buyer
	// destination script.
	ErrNoDestination = errors.New("market: buyer destination script required")
	// ErrBtcTxAlreadyUsed is returned when the settlement transaction has
	// already been consumed by any listing.
	ErrBtcTxAlreadyUsed = errors.New("market: settlement tx already used")
	// ErrInscriptionMismatch is returned when no input of the settlement
	// transaction spends the listed outpoint.
	ErrInscriptionMismatch = errors.New("market: tx does not spend listed outpoint")
	// ErrTxNotForReceiver is returned when no output pays the buyer's
	// destination script.
	ErrTxNotForReceiver = errors.New("market: tx does not pay buyer destination")
	// ErrValueTooSmall is returned when the matching output value is below the
	// foreign-chain dust floor.
	ErrValueTooSmall = errors.New("market: output value below dust floor")
	// ErrInsufficientBalance is returned when an account cannot cover a
	// required transfer.
	ErrInsufficientBalance = errors.New("market: insufficient balance")
)
