package market

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"ordswap/core/events"
	"ordswap/core/types"
	nativecommon "ordswap/native/common"
)

var (
	errNilState    = errors.New("market engine: state not configured")
	errNilVerifier = errors.New("market engine: inclusion verifier not configured")
)

const marketModuleName = "market"

// Params bound the market engine's economic and temporal guards. Heights are
// settlement-ledger block counts, not wall-clock durations.
type Params struct {
	// MinPrice is the smallest acceptable listing price.
	MinPrice *big.Int
	// CommitExpiry is how many blocks a seller has to post collateral after a
	// buyer escrows funds.
	CommitExpiry uint64
	// Expiry is how many blocks a committed seller has to deliver before
	// anyone may cancel and award the collateral to the buyer.
	Expiry uint64
}

// DefaultParams returns the production guard values.
func DefaultParams() Params {
	return Params{
		MinPrice:     big.NewInt(10_000),
		CommitExpiry: 100,
		Expiry:       200,
	}
}

// VaultAddress is the custodial identity holding all escrowed funds. It is a
// fixed address with no known private key.
var VaultAddress = func() [20]byte {
	digest := ethcrypto.Keccak256([]byte("ordswap/market/vault"))
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}()

type engineState interface {
	ListingPut(*Listing) error
	ListingGet(id uint64) (*Listing, bool)
	ListingCounter() (uint64, error)
	ListingAllocateID() (uint64, error)
	OutpointReserve(txid chainhash.Hash, vout uint32, id uint64) error
	OutpointLookup(txid chainhash.Hash, vout uint32) (uint64, bool, error)
	OutpointRelease(txid chainhash.Hash, vout uint32) error
	SettlementTxMark(txid chainhash.Hash) error
	SettlementTxUsed(txid chainhash.Hash) (bool, error)
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine owns every listing state transition. It reads the listing record,
// evaluates the guards for the requested operation, and on success mutates
// the record and moves funds between accounts and the module vault. The state
// backend is expected to apply each operation transactionally; the engine
// orders all guards ahead of the first mutation so a failed operation leaves
// no partial effect.
type Engine struct {
	state    engineState
	emitter  events.Emitter
	params   Params
	vault    [20]byte
	heightFn func() uint64
	verifier InclusionVerifier
	pauses   nativecommon.PauseView
}

// NewEngine creates a market engine with default parameters and a no-op
// emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		params:   DefaultParams(),
		vault:    VaultAddress,
		heightFn: func() uint64 { return 0 },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetParams overrides the guard parameters. Nil MinPrice resets to default.
func (e *Engine) SetParams(params Params) {
	if params.MinPrice == nil {
		params.MinPrice = DefaultParams().MinPrice
	}
	e.params = params
}

// SetVault overrides the custodial escrow address.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetHeightFunc configures the settlement-ledger height source. Tests inject
// a deterministic height here.
func (e *Engine) SetHeightFunc(height func() uint64) {
	if height == nil {
		e.heightFn = func() uint64 { return 0 }
		return
	}
	e.heightFn = height
}

// SetVerifier configures the foreign-chain inclusion verifier consumed by
// settlement operations.
func (e *Engine) SetVerifier(verifier InclusionVerifier) { e.verifier = verifier }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the operator pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

func (e *Engine) height() uint64 {
	if e == nil || e.heightFn == nil {
		return 0
	}
	return e.heightFn()
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

func (e *Engine) loadListing(id uint64) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	listing, ok := e.state.ListingGet(id)
	if !ok {
		return nil, ErrInvalidID
	}
	return SanitizeListing(listing)
}

func (e *Engine) storeListing(l *Listing) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.ListingPut(l)
}

func (e *Engine) transferToken(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("market: negative transfer amount")
	}
	// Loading the same account twice and writing both copies back would apply
	// only the credit. A self transfer moves nothing.
	if from == to {
		return nil
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.Balance.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	if err := e.state.PutAccount(to[:], toAcc); err != nil {
		return err
	}
	return nil
}

// Mint credits freshly issued settlement tokens to an account. Used by
// genesis bootstrap and test setup only.
func (e *Engine) Mint(to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() < 0 {
		return fmt.Errorf("market: negative mint amount")
	}
	acc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	acc = ensureAccount(acc)
	acc.Balance = new(big.Int).Add(acc.Balance, amt)
	return e.state.PutAccount(to[:], acc)
}

// BalanceOf returns the settlement-token balance for the account.
func (e *Engine) BalanceOf(addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	acc, err := e.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return cloneBigInt(ensureAccount(acc).Balance), nil
}

// CreateListing records a new open listing for the given outpoint. The caller
// becomes the seller. No funds move.
func (e *Engine) CreateListing(seller [20]byte, txid chainhash.Hash, vout uint32, price, premium *big.Int, sellerDest []byte) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, marketModuleName); err != nil {
		return 0, err
	}
	if seller == e.vault {
		return 0, ErrForbidden
	}
	priceAmt := cloneBigInt(price)
	premiumAmt := cloneBigInt(premium)
	if priceAmt.Cmp(e.params.MinPrice) < 0 {
		return 0, ErrDustAmount
	}
	if premiumAmt.Sign() < 0 {
		return 0, ErrDustAmount
	}
	if _, reserved, err := e.state.OutpointLookup(txid, vout); err != nil {
		return 0, err
	} else if reserved {
		return 0, ErrListingExists
	}
	id, err := e.state.ListingAllocateID()
	if err != nil {
		return 0, err
	}
	height := e.height()
	listing := &Listing{
		ID:               id,
		Txid:             txid,
		Vout:             vout,
		Price:            priceAmt,
		Premium:          premiumAmt,
		Collateral:       big.NewInt(0),
		Seller:           seller,
		SellerDest:       append([]byte(nil), sellerDest...),
		Status:           ListingOpen,
		CreatedAt:        height,
		LastChangeHeight: height,
	}
	if err := e.storeListing(listing); err != nil {
		return 0, err
	}
	if err := e.state.OutpointReserve(txid, vout, id); err != nil {
		return 0, err
	}
	e.emit(NewListedEvent(listing))
	return id, nil
}

// AcceptListing escrows price+premium from the caller, who becomes the buyer.
// The whole transfer is all-or-nothing; the premium stays escrowed until
// settlement and is never paid out early.
func (e *Engine) AcceptListing(buyer [20]byte, id uint64, buyerDest []byte) error {
	listing, err := e.loadListing(id)
	if err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, marketModuleName); err != nil {
		return err
	}
	if listing.Status != ListingOpen || listing.HasBuyer() {
		return ErrAlreadyDone
	}
	if buyer == listing.Seller {
		return ErrSelfTrade
	}
	// The vault cannot be a counterparty: escrowing its own funds to itself
	// would break supply conservation.
	if buyer == e.vault {
		return ErrForbidden
	}
	if len(buyerDest) == 0 {
		return ErrNoDestination
	}
	total := new(big.Int).Add(listing.Price, listing.Premium)
	if err := e.transferToken(buyer, e.vault, total); err != nil {
		return err
	}
	listing.Buyer = buyer
	listing.BuyerDest = append([]byte(nil), buyerDest...)
	listing.Status = ListingEscrowed
	listing.LastChangeHeight = e.height()
	if err := e.storeListing(listing); err != nil {
		return err
	}
	e.emit(NewAcceptedEvent(listing))
	return nil
}

// CommitListing posts the seller's collateral and starts the delivery clock.
// Collateral must cover at least the premium so a non-performing seller loses
// no less than the buyer stands to.
func (e *Engine) CommitListing(seller [20]byte, id uint64, collateral *big.Int) error {
	listing, err := e.loadListing(id)
	if err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, marketModuleName); err != nil {
		return err
	}
	if listing.Status != ListingEscrowed {
		return ErrAlreadyDone
	}
	if seller != listing.Seller {
		return ErrForbidden
	}
	if e.height() >= listing.LastChangeHeight+e.params.CommitExpiry {
		return ErrExpired
	}
	amt := cloneBigInt(collateral)
	if amt.Cmp(listing.Premium) < 0 {
		return ErrDustAmount
	}
	// A zero-amount transfer is a degenerate case some ledgers reject, so the
	// call is skipped outright.
	if amt.Sign() > 0 {
		if err := e.transferToken(seller, e.vault, amt); err != nil {
			return err
		}
	}
	listing.Collateral = amt
	listing.Status = ListingCommitted
	listing.LastChangeHeight = e.height()
	if err := e.storeListing(listing); err != nil {
		return err
	}
	e.emit(NewCommittedEvent(listing))
	return nil
}

// CancelListing tears the listing down. Before escrow only the seller may
// cancel; once funds are escrowed cancellation is permissionless after the
// relevant expiry so no party can hold the trade hostage. Refund amounts
// depend on how far the trade progressed.
func (e *Engine) CancelListing(caller [20]byte, id uint64) error {
	listing, err := e.loadListing(id)
	if err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, marketModuleName); err != nil {
		return err
	}
	switch listing.Status {
	case ListingOpen:
		if caller != listing.Seller {
			return ErrForbidden
		}
		// Nothing was escrowed; no funds move.
	case ListingEscrowed:
		if e.height() < listing.LastChangeHeight+e.params.CommitExpiry {
			return ErrNotExpired
		}
		refund := new(big.Int).Add(listing.Price, listing.Premium)
		if err := e.transferToken(e.vault, listing.Buyer, refund); err != nil {
			return err
		}
	case ListingCommitted:
		if e.height() < listing.LastChangeHeight+e.params.Expiry {
			return ErrNotExpired
		}
		// Seller forfeits the entire collateral to the buyer for
		// non-delivery.
		refund := new(big.Int).Add(listing.Price, listing.Premium)
		refund.Add(refund, listing.Collateral)
		if err := e.transferToken(e.vault, listing.Buyer, refund); err != nil {
			return err
		}
	default:
		return ErrAlreadyDone
	}
	if err := e.state.OutpointRelease(listing.Txid, listing.Vout); err != nil {
		return err
	}
	listing.Status = ListingCancelled
	listing.LastChangeHeight = e.height()
	if err := e.storeListing(listing); err != nil {
		return err
	}
	e.emit(NewCancelledEvent(listing))
	return nil
}

// SubmitSettlement settles a committed listing against a legacy-encoded
// foreign-chain transaction proven to be included at the given height.
func (e *Engine) SubmitSettlement(id uint64, height uint64, rawTx []byte, header []byte, proof *MerkleProof) error {
	return e.settle(id, rawTx, func(gate *Gate) (chainhash.Hash, error) {
		return gate.Verify(height, rawTx, header, proof)
	})
}

// SubmitWitnessSettlement settles a committed listing against a
// witness-committed foreign-chain transaction. Post-verification logic is
// identical to SubmitSettlement.
func (e *Engine) SubmitWitnessSettlement(id uint64, height uint64, rawTx []byte, witnessReserved []byte, header []byte, proof *MerkleProof, witnessProof *MerkleProof) error {
	return e.settle(id, rawTx, func(gate *Gate) (chainhash.Hash, error) {
		return gate.VerifyWitness(height, rawTx, witnessReserved, header, proof, witnessProof)
	})
}

func (e *Engine) settle(id uint64, rawTx []byte, verify func(*Gate) (chainhash.Hash, error)) error {
	listing, err := e.loadListing(id)
	if err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, marketModuleName); err != nil {
		return err
	}
	// Settlement before commitment would let a seller collect without ever
	// posting collateral, defeating the two-phase flow.
	if listing.Status != ListingCommitted {
		return ErrNotCommitted
	}
	if !listing.HasBuyer() || len(listing.BuyerDest) == 0 {
		return ErrNoBuyer
	}
	if e.verifier == nil {
		return errNilVerifier
	}
	gate := NewGate(e.verifier, e.state)
	txid, err := verify(gate)
	if err != nil {
		return err
	}
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return fmt.Errorf("market: decode settlement tx: %w", err)
	}
	if !SpendsOutpoint(&tx, listing.Txid, listing.Vout) {
		return ErrInscriptionMismatch
	}
	value, ok := PaidToScript(&tx, listing.BuyerDest)
	if !ok {
		return ErrTxNotForReceiver
	}
	if value < DustOutputValue {
		return ErrValueTooSmall
	}
	if err := gate.Consume(txid); err != nil {
		return err
	}
	// The outpoint index is left in place: a delivered UTXO stays reserved
	// forever so it can never be relisted.
	payout := new(big.Int).Add(listing.Price, listing.Premium)
	if err := e.transferToken(e.vault, listing.Seller, payout); err != nil {
		return err
	}
	if listing.Collateral.Sign() > 0 {
		if err := e.transferToken(e.vault, listing.Seller, listing.Collateral); err != nil {
			return err
		}
	}
	listing.Status = ListingDone
	listing.LastChangeHeight = e.height()
	if err := e.storeListing(listing); err != nil {
		return err
	}
	e.emit(NewSettledEvent(listing, txid))
	return nil
}

// GetListing returns a copy of the listing record, or false when none exists.
func (e *Engine) GetListing(id uint64) (*Listing, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	listing, ok := e.state.ListingGet(id)
	if !ok {
		return nil, false
	}
	return listing.Clone(), true
}

// NextListingID returns the identifier the next created listing will receive.
func (e *Engine) NextListingID() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.ListingCounter()
}
