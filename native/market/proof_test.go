package market

import (
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

type staticVerifier struct {
	txid chainhash.Hash
	err  error
}

func (v *staticVerifier) VerifyInclusion(height uint64, rawTx []byte, header []byte, proof *MerkleProof) (chainhash.Hash, error) {
	return v.txid, v.err
}

func (v *staticVerifier) VerifyWitnessInclusion(height uint64, rawTx []byte, witnessReserved []byte, header []byte, proof *MerkleProof, witnessProof *MerkleProof) (chainhash.Hash, error) {
	return v.txid, v.err
}

type memUsedTxSet struct {
	used map[chainhash.Hash]bool
}

func newMemUsedTxSet() *memUsedTxSet {
	return &memUsedTxSet{used: make(map[chainhash.Hash]bool)}
}

func (m *memUsedTxSet) SettlementTxMark(txid chainhash.Hash) error {
	m.used[txid] = true
	return nil
}

func (m *memUsedTxSet) SettlementTxUsed(txid chainhash.Hash) (bool, error) {
	return m.used[txid], nil
}

func TestGateVerifyReturnsCanonicalTxid(t *testing.T) {
	want := chainhash.Hash{0x11, 0x22}
	gate := NewGate(&staticVerifier{txid: want}, newMemUsedTxSet())
	got, err := gate.Verify(800_000, []byte{0x01}, []byte{0x02}, &MerkleProof{})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestGateVerifyWrapsVerifierError(t *testing.T) {
	gate := NewGate(&staticVerifier{err: errors.New("root mismatch")}, newMemUsedTxSet())
	_, err := gate.Verify(800_000, nil, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "inclusion proof") {
		t.Fatalf("expected wrapped verifier error, got %v", err)
	}
}

func TestGateReplayGuard(t *testing.T) {
	txid := chainhash.Hash{0x33}
	state := newMemUsedTxSet()
	gate := NewGate(&staticVerifier{txid: txid}, state)

	// Verification alone does not consume; repeated checks pass until Consume.
	if _, err := gate.Verify(800_000, nil, nil, nil); err != nil {
		t.Fatalf("first Verify: %v", err)
	}
	if _, err := gate.Verify(800_000, nil, nil, nil); err != nil {
		t.Fatalf("second Verify before consume: %v", err)
	}
	if err := gate.Consume(txid); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if _, err := gate.Verify(800_000, nil, nil, nil); !errors.Is(err, ErrBtcTxAlreadyUsed) {
		t.Fatalf("expected ErrBtcTxAlreadyUsed, got %v", err)
	}
	if _, err := gate.VerifyWitness(800_000, nil, nil, nil, nil, nil); !errors.Is(err, ErrBtcTxAlreadyUsed) {
		t.Fatalf("witness path expected ErrBtcTxAlreadyUsed, got %v", err)
	}
}

func TestGateUnconfigured(t *testing.T) {
	var gate *Gate
	if _, err := gate.Verify(0, nil, nil, nil); err == nil {
		t.Fatalf("expected error from nil gate")
	}
	gate = NewGate(nil, newMemUsedTxSet())
	if _, err := gate.Verify(0, nil, nil, nil); err == nil {
		t.Fatalf("expected error from gate without verifier")
	}
}
