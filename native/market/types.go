package market

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ListingStatus represents the lifecycle states of a listing managed by the
// market engine.
type ListingStatus uint8

const (
	ListingOpen ListingStatus = iota
	ListingEscrowed
	ListingCommitted
	ListingDone
	ListingCancelled
)

// Listing captures one attempted trade of a foreign-chain UTXO for
// settlement-token funds. Identifiers are assigned sequentially and never
// reused; the outpoint fields are immutable after creation.
type Listing struct {
	ID               uint64
	Txid             chainhash.Hash
	Vout             uint32
	Price            *big.Int
	Premium          *big.Int
	Collateral       *big.Int
	Seller           [20]byte
	Buyer            [20]byte
	SellerDest       []byte
	BuyerDest        []byte
	Status           ListingStatus
	CreatedAt        uint64
	LastChangeHeight uint64
}

// Clone returns a deep copy of the listing so callers can safely mutate the
// copy without affecting the stored instance.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	if l.Premium != nil {
		clone.Premium = new(big.Int).Set(l.Premium)
	} else {
		clone.Premium = big.NewInt(0)
	}
	if l.Collateral != nil {
		clone.Collateral = new(big.Int).Set(l.Collateral)
	} else {
		clone.Collateral = big.NewInt(0)
	}
	clone.SellerDest = append([]byte(nil), l.SellerDest...)
	clone.BuyerDest = append([]byte(nil), l.BuyerDest...)
	return &clone
}

// HasBuyer reports whether a counterparty has been recorded for the listing.
func (l *Listing) HasBuyer() bool {
	return l != nil && l.Buyer != ([20]byte{})
}

// Terminal reports whether the status admits no further transitions.
func (s ListingStatus) Terminal() bool {
	return s == ListingDone || s == ListingCancelled
}

// Valid reports whether the status value is within the supported range.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingOpen, ListingEscrowed, ListingCommitted, ListingDone, ListingCancelled:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer for log and event rendering.
func (s ListingStatus) String() string {
	switch s {
	case ListingOpen:
		return "open"
	case ListingEscrowed:
		return "escrowed"
	case ListingCommitted:
		return "committed"
	case ListingDone:
		return "done"
	case ListingCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// SanitizeListing validates and normalises the supplied listing, returning a
// cloned instance with non-nil amount fields. The function does not mutate
// the original value.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("market: nil listing")
	}
	clone := l.Clone()
	if clone.Price.Sign() < 0 {
		return nil, fmt.Errorf("market: listing price must be non-negative")
	}
	if clone.Premium.Sign() < 0 {
		return nil, fmt.Errorf("market: listing premium must be non-negative")
	}
	if clone.Collateral.Sign() < 0 {
		return nil, fmt.Errorf("market: listing collateral must be non-negative")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("market: invalid listing status %d", clone.Status)
	}
	return clone, nil
}
