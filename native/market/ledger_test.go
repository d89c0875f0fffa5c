package market

import (
	"errors"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"ordswap/core/types"
	"ordswap/storage"
)

func newTestLedger() *Ledger {
	return NewLedger(storage.NewMemDB())
}

func TestLedgerListingRoundTrip(t *testing.T) {
	ledger := newTestLedger()
	listing := &Listing{
		ID:               7,
		Txid:             chainhash.Hash{0xAB},
		Vout:             2,
		Price:            big.NewInt(150_000),
		Premium:          big.NewInt(7_500),
		Collateral:       big.NewInt(9_000),
		Seller:           newTestAddress(0x01),
		Buyer:            newTestAddress(0x02),
		SellerDest:       []byte{0x51},
		BuyerDest:        []byte{0x00, 0x14, 0xEE},
		Status:           ListingCommitted,
		CreatedAt:        10,
		LastChangeHeight: 12,
	}
	if err := ledger.ListingPut(listing); err != nil {
		t.Fatalf("ListingPut: %v", err)
	}
	got, ok := ledger.ListingGet(7)
	if !ok {
		t.Fatalf("expected listing record")
	}
	if got.ID != listing.ID || got.Txid != listing.Txid || got.Vout != listing.Vout {
		t.Fatalf("outpoint fields mismatch: %+v", got)
	}
	if got.Price.Cmp(listing.Price) != 0 || got.Premium.Cmp(listing.Premium) != 0 || got.Collateral.Cmp(listing.Collateral) != 0 {
		t.Fatalf("amount fields mismatch: %+v", got)
	}
	if got.Status != ListingCommitted || got.Seller != listing.Seller || got.Buyer != listing.Buyer {
		t.Fatalf("party fields mismatch: %+v", got)
	}
	if got.CreatedAt != 10 || got.LastChangeHeight != 12 {
		t.Fatalf("height fields mismatch: %+v", got)
	}
	if _, ok := ledger.ListingGet(8); ok {
		t.Fatalf("unexpected record for unknown id")
	}
}

func TestLedgerCounterAllocation(t *testing.T) {
	ledger := newTestLedger()
	if next, err := ledger.ListingCounter(); err != nil || next != 0 {
		t.Fatalf("fresh counter expected 0, got %d (%v)", next, err)
	}
	for want := uint64(0); want < 3; want++ {
		id, err := ledger.ListingAllocateID()
		if err != nil {
			t.Fatalf("ListingAllocateID: %v", err)
		}
		if id != want {
			t.Fatalf("expected id %d, got %d", want, id)
		}
	}
	if next, err := ledger.ListingCounter(); err != nil || next != 3 {
		t.Fatalf("counter expected 3, got %d (%v)", next, err)
	}
}

func TestLedgerOutpointIndex(t *testing.T) {
	ledger := newTestLedger()
	txid := chainhash.Hash{0xCD}
	if err := ledger.OutpointReserve(txid, 1, 42); err != nil {
		t.Fatalf("OutpointReserve: %v", err)
	}
	if err := ledger.OutpointReserve(txid, 1, 43); !errors.Is(err, ErrListingExists) {
		t.Fatalf("expected ErrListingExists on double reserve, got %v", err)
	}
	// A different vout on the same txid is a distinct outpoint.
	if err := ledger.OutpointReserve(txid, 2, 43); err != nil {
		t.Fatalf("OutpointReserve vout 2: %v", err)
	}
	id, ok, err := ledger.OutpointLookup(txid, 1)
	if err != nil || !ok || id != 42 {
		t.Fatalf("lookup expected id 42, got %d ok=%v err=%v", id, ok, err)
	}
	if err := ledger.OutpointRelease(txid, 1); err != nil {
		t.Fatalf("OutpointRelease: %v", err)
	}
	if _, ok, err := ledger.OutpointLookup(txid, 1); err != nil || ok {
		t.Fatalf("expected released outpoint, ok=%v err=%v", ok, err)
	}
	if err := ledger.OutpointReserve(txid, 1, 44); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
}

func TestLedgerSettlementTxSet(t *testing.T) {
	ledger := newTestLedger()
	txid := chainhash.Hash{0xEF}
	used, err := ledger.SettlementTxUsed(txid)
	if err != nil || used {
		t.Fatalf("fresh txid expected unused, used=%v err=%v", used, err)
	}
	if err := ledger.SettlementTxMark(txid); err != nil {
		t.Fatalf("SettlementTxMark: %v", err)
	}
	used, err = ledger.SettlementTxUsed(txid)
	if err != nil || !used {
		t.Fatalf("expected used txid, used=%v err=%v", used, err)
	}
}

func TestLedgerAccounts(t *testing.T) {
	ledger := newTestLedger()
	addr := newTestAddress(0x05)

	acc, err := ledger.GetAccount(addr[:])
	if err != nil {
		t.Fatalf("GetAccount unknown: %v", err)
	}
	if acc.Balance.Sign() != 0 {
		t.Fatalf("unknown account expected zero balance, got %s", acc.Balance)
	}
	acc.Balance = big.NewInt(123_456)
	acc.Nonce = 9
	if err := ledger.PutAccount(addr[:], acc); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}
	got, err := ledger.GetAccount(addr[:])
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.Balance.Cmp(big.NewInt(123_456)) != 0 || got.Nonce != 9 {
		t.Fatalf("account mismatch: %+v", got)
	}
	if err := ledger.PutAccount(addr[:], &types.Account{Balance: big.NewInt(-1)}); err == nil {
		t.Fatalf("expected rejection of negative balance")
	}
}

func TestLedgerBootstrapFlag(t *testing.T) {
	ledger := newTestLedger()
	done, err := ledger.Bootstrapped()
	if err != nil || done {
		t.Fatalf("fresh ledger expected unbootstrapped, done=%v err=%v", done, err)
	}
	if err := ledger.MarkBootstrapped(); err != nil {
		t.Fatalf("MarkBootstrapped: %v", err)
	}
	done, err = ledger.Bootstrapped()
	if err != nil || !done {
		t.Fatalf("expected bootstrapped, done=%v err=%v", done, err)
	}
}

func TestEngineOverLedger(t *testing.T) {
	ledger := newTestLedger()
	engine := NewEngine()
	engine.SetState(ledger)
	engine.SetParams(Params{MinPrice: big.NewInt(10_000), CommitExpiry: 10, Expiry: 20})
	engine.SetVerifier(&mockVerifier{})

	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	if err := engine.Mint(buyer, big.NewInt(200_000)); err != nil {
		t.Fatalf("mint buyer: %v", err)
	}
	if err := engine.Mint(seller, big.NewInt(5_000)); err != nil {
		t.Fatalf("mint seller: %v", err)
	}
	txid, vout := newTestOutpoint(0x66)
	id, err := engine.CreateListing(seller, txid, vout, big.NewInt(100_000), big.NewInt(5_000), []byte{0x51})
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	if err := engine.AcceptListing(buyer, id, buyerDestScript()); err != nil {
		t.Fatalf("AcceptListing: %v", err)
	}
	if err := engine.CommitListing(seller, id, big.NewInt(5_000)); err != nil {
		t.Fatalf("CommitListing: %v", err)
	}
	rawTx := settlementTx(t, txid, vout, buyerDestScript(), 600)
	if err := engine.SubmitSettlement(id, 800_000, rawTx, []byte{0x01}, testProof()); err != nil {
		t.Fatalf("SubmitSettlement: %v", err)
	}
	balance, err := engine.BalanceOf(seller)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if balance.Cmp(big.NewInt(110_000)) != 0 {
		t.Fatalf("seller balance expected 110000, got %s", balance)
	}
	listing, ok := engine.GetListing(id)
	if !ok || listing.Status != ListingDone {
		t.Fatalf("expected settled listing, got %+v", listing)
	}
}
