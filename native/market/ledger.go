package market

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum/rlp"

	"ordswap/core/types"
	"ordswap/storage"
)

// Ledger persists listing records, the outpoint uniqueness index, the
// consumed settlement-transaction set, and account balances in the underlying
// key-value store. The listing store and the outpoint index are independent
// keyspaces mutated together by the engine inside each operation; neither is
// derived from the other.
type Ledger struct {
	db storage.Database
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

type storedListing struct {
	ID               uint64
	Txid             [chainhash.HashSize]byte
	Vout             uint32
	Price            string
	Premium          string
	Collateral       string
	Seller           [20]byte
	Buyer            [20]byte
	SellerDest       []byte
	BuyerDest        []byte
	Status           uint8
	CreatedAt        uint64
	LastChangeHeight uint64
}

type storedAccount struct {
	Nonce   uint64
	Balance string
}

func encodeAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func decodeAmount(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("market: corrupt stored amount %q", s)
	}
	return v, nil
}

// ListingPut stores the sanitized listing record keyed by its identifier.
func (l *Ledger) ListingPut(listing *Listing) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("market: ledger not initialised")
	}
	sanitized, err := SanitizeListing(listing)
	if err != nil {
		return err
	}
	stored := storedListing{
		ID:               sanitized.ID,
		Txid:             sanitized.Txid,
		Vout:             sanitized.Vout,
		Price:            encodeAmount(sanitized.Price),
		Premium:          encodeAmount(sanitized.Premium),
		Collateral:       encodeAmount(sanitized.Collateral),
		Seller:           sanitized.Seller,
		Buyer:            sanitized.Buyer,
		SellerDest:       sanitized.SellerDest,
		BuyerDest:        sanitized.BuyerDest,
		Status:           uint8(sanitized.Status),
		CreatedAt:        sanitized.CreatedAt,
		LastChangeHeight: sanitized.LastChangeHeight,
	}
	encoded, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return err
	}
	return l.db.Put(listingKey(sanitized.ID), encoded)
}

// ListingGet loads the listing record for the identifier.
func (l *Ledger) ListingGet(id uint64) (*Listing, bool) {
	if l == nil || l.db == nil {
		return nil, false
	}
	raw, err := l.db.Get(listingKey(id))
	if err != nil {
		return nil, false
	}
	var stored storedListing
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false
	}
	price, err := decodeAmount(stored.Price)
	if err != nil {
		return nil, false
	}
	premium, err := decodeAmount(stored.Premium)
	if err != nil {
		return nil, false
	}
	collateral, err := decodeAmount(stored.Collateral)
	if err != nil {
		return nil, false
	}
	return &Listing{
		ID:               stored.ID,
		Txid:             stored.Txid,
		Vout:             stored.Vout,
		Price:            price,
		Premium:          premium,
		Collateral:       collateral,
		Seller:           stored.Seller,
		Buyer:            stored.Buyer,
		SellerDest:       stored.SellerDest,
		BuyerDest:        stored.BuyerDest,
		Status:           ListingStatus(stored.Status),
		CreatedAt:        stored.CreatedAt,
		LastChangeHeight: stored.LastChangeHeight,
	}, true
}

// ListingCounter returns the identifier the next listing will be assigned.
func (l *Ledger) ListingCounter() (uint64, error) {
	if l == nil || l.db == nil {
		return 0, fmt.Errorf("market: ledger not initialised")
	}
	raw, err := l.db.Get(listingCounterKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("market: corrupt listing counter")
	}
	return binary.BigEndian.Uint64(raw), nil
}

// ListingAllocateID increments the sequential counter and returns the
// allocated identifier. Identifiers start at zero and are never reused.
func (l *Ledger) ListingAllocateID() (uint64, error) {
	next, err := l.ListingCounter()
	if err != nil {
		return 0, err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next+1)
	if err := l.db.Put(listingCounterKey, buf); err != nil {
		return 0, err
	}
	return next, nil
}

// OutpointReserve records the outpoint as owned by the listing. Reserving an
// already-reserved outpoint is an error; the engine checks first, so a hit
// here indicates a consistency bug.
func (l *Ledger) OutpointReserve(txid chainhash.Hash, vout uint32, id uint64) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("market: ledger not initialised")
	}
	key := outpointKey(txid, vout)
	exists, err := l.db.Has(key)
	if err != nil {
		return err
	}
	if exists {
		return ErrListingExists
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return l.db.Put(key, buf)
}

// OutpointLookup returns the listing id currently reserving the outpoint.
func (l *Ledger) OutpointLookup(txid chainhash.Hash, vout uint32) (uint64, bool, error) {
	if l == nil || l.db == nil {
		return 0, false, fmt.Errorf("market: ledger not initialised")
	}
	raw, err := l.db.Get(outpointKey(txid, vout))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(raw) != 8 {
		return 0, false, fmt.Errorf("market: corrupt outpoint index entry")
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

// OutpointRelease frees the outpoint for relisting. Called only on
// cancellation; settled outpoints stay reserved forever.
func (l *Ledger) OutpointRelease(txid chainhash.Hash, vout uint32) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("market: ledger not initialised")
	}
	return l.db.Delete(outpointKey(txid, vout))
}

// SettlementTxMark records the foreign transaction identifier as consumed.
func (l *Ledger) SettlementTxMark(txid chainhash.Hash) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("market: ledger not initialised")
	}
	return l.db.Put(settlementTxKey(txid), []byte{1})
}

// SettlementTxUsed reports whether the identifier was already consumed.
func (l *Ledger) SettlementTxUsed(txid chainhash.Hash) (bool, error) {
	if l == nil || l.db == nil {
		return false, fmt.Errorf("market: ledger not initialised")
	}
	return l.db.Has(settlementTxKey(txid))
}

// GetAccount loads the account record for the address. Unknown addresses
// yield a zero-balance account.
func (l *Ledger) GetAccount(addr []byte) (*types.Account, error) {
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("market: ledger not initialised")
	}
	raw, err := l.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	balance, err := decodeAmount(stored.Balance)
	if err != nil {
		return nil, err
	}
	return &types.Account{Nonce: stored.Nonce, Balance: balance}, nil
}

// PutAccount stores the account record for the address.
func (l *Ledger) PutAccount(addr []byte, account *types.Account) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("market: ledger not initialised")
	}
	if account == nil {
		return fmt.Errorf("market: nil account")
	}
	if account.Balance != nil && account.Balance.Sign() < 0 {
		return fmt.Errorf("market: negative account balance")
	}
	stored := storedAccount{Nonce: account.Nonce, Balance: encodeAmount(account.Balance)}
	encoded, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return err
	}
	return l.db.Put(accountKey(addr), encoded)
}

// Bootstrapped reports whether genesis allocations were already applied.
func (l *Ledger) Bootstrapped() (bool, error) {
	if l == nil || l.db == nil {
		return false, fmt.Errorf("market: ledger not initialised")
	}
	return l.db.Has(bootstrapFlagKey)
}

// MarkBootstrapped records that genesis allocations were applied.
func (l *Ledger) MarkBootstrapped() error {
	if l == nil || l.db == nil {
		return fmt.Errorf("market: ledger not initialised")
	}
	return l.db.Put(bootstrapFlagKey, []byte{1})
}
