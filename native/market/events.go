package market

import (
	"encoding/hex"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"ordswap/core/types"
	"ordswap/crypto"
)

const (
	EventTypeListingCreated   = "market.listing.created"
	EventTypeListingAccepted  = "market.listing.accepted"
	EventTypeListingCommitted = "market.listing.committed"
	EventTypeListingCancelled = "market.listing.cancelled"
	EventTypeListingSettled   = "market.listing.settled"
)

// NewListedEvent returns the canonical event payload for a newly created
// listing.
func NewListedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingCreated, l)
}

// NewAcceptedEvent returns the payload emitted when a buyer escrows funds.
func NewAcceptedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingAccepted, l)
}

// NewCommittedEvent returns the payload emitted when the seller posts
// collateral.
func NewCommittedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingCommitted, l)
}

// NewCancelledEvent returns the payload emitted when a listing is torn down.
func NewCancelledEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingCancelled, l)
}

// NewSettledEvent returns the payload emitted when a settlement proof is
// accepted, including the consumed foreign transaction identifier.
func NewSettledEvent(l *Listing, settlementTxid chainhash.Hash) *types.Event {
	evt := newListingEvent(EventTypeListingSettled, l)
	evt.Attributes["settlementTxid"] = settlementTxid.String()
	return evt
}

func newListingEvent(eventType string, l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeListing(l)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(sanitized.ID, 10)
	attrs["txid"] = sanitized.Txid.String()
	attrs["vout"] = strconv.FormatUint(uint64(sanitized.Vout), 10)
	attrs["price"] = sanitized.Price.String()
	attrs["premium"] = sanitized.Premium.String()
	attrs["status"] = sanitized.Status.String()
	attrs["height"] = strconv.FormatUint(sanitized.LastChangeHeight, 10)
	attrs["seller"] = crypto.NewAddress(crypto.OSWPrefix, sanitized.Seller[:]).String()
	if sanitized.HasBuyer() {
		attrs["buyer"] = crypto.NewAddress(crypto.OSWPrefix, sanitized.Buyer[:]).String()
	}
	if sanitized.Collateral.Sign() > 0 {
		attrs["collateral"] = sanitized.Collateral.String()
	}
	if len(sanitized.BuyerDest) > 0 {
		attrs["buyerDest"] = hex.EncodeToString(sanitized.BuyerDest)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
