package market

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MerkleProof is the inclusion path for a transaction within a foreign-chain
// block, as supplied by the settlement caller.
type MerkleProof struct {
	TxIndex uint32
	Hashes  []chainhash.Hash
}

// InclusionVerifier proves that a serialized transaction is part of a mined
// block on the foreign chain. On success it returns the canonical transaction
// identifier derived from the transaction bytes themselves, so callers cannot
// spoof it. The merkle arithmetic lives behind this boundary and is not
// re-derived by the market module.
type InclusionVerifier interface {
	VerifyInclusion(height uint64, rawTx []byte, header []byte, proof *MerkleProof) (chainhash.Hash, error)
	// VerifyWitnessInclusion covers segregated-witness transactions whose
	// identifier is committed through the witness merkle root.
	VerifyWitnessInclusion(height uint64, rawTx []byte, witnessReserved []byte, header []byte, proof *MerkleProof, witnessProof *MerkleProof) (chainhash.Hash, error)
}

type usedTxState interface {
	SettlementTxMark(txid chainhash.Hash) error
	SettlementTxUsed(txid chainhash.Hash) (bool, error)
}

// Gate wraps an InclusionVerifier with the consumed-identifier set so each
// foreign transaction can settle at most one listing, ever. Legacy and
// witness encodings share the identical post-verification logic.
type Gate struct {
	verifier InclusionVerifier
	state    usedTxState
}

// NewGate constructs a proof gate bound to the given verifier and replay
// state.
func NewGate(verifier InclusionVerifier, state usedTxState) *Gate {
	return &Gate{verifier: verifier, state: state}
}

// Verify checks the inclusion proof for a legacy-encoded transaction and
// enforces the replay guard, returning the canonical identifier.
func (g *Gate) Verify(height uint64, rawTx []byte, header []byte, proof *MerkleProof) (chainhash.Hash, error) {
	if g == nil || g.verifier == nil || g.state == nil {
		return chainhash.Hash{}, fmt.Errorf("market: proof gate not configured")
	}
	txid, err := g.verifier.VerifyInclusion(height, rawTx, header, proof)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("market: inclusion proof: %w", err)
	}
	return g.guardReplay(txid)
}

// VerifyWitness checks the inclusion proof for a witness-committed
// transaction and enforces the replay guard.
func (g *Gate) VerifyWitness(height uint64, rawTx []byte, witnessReserved []byte, header []byte, proof *MerkleProof, witnessProof *MerkleProof) (chainhash.Hash, error) {
	if g == nil || g.verifier == nil || g.state == nil {
		return chainhash.Hash{}, fmt.Errorf("market: proof gate not configured")
	}
	txid, err := g.verifier.VerifyWitnessInclusion(height, rawTx, witnessReserved, header, proof, witnessProof)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("market: inclusion proof: %w", err)
	}
	return g.guardReplay(txid)
}

// Consume records the identifier as spent. Called by the engine once every
// settlement check has passed.
func (g *Gate) Consume(txid chainhash.Hash) error {
	if g == nil || g.state == nil {
		return fmt.Errorf("market: proof gate not configured")
	}
	return g.state.SettlementTxMark(txid)
}

func (g *Gate) guardReplay(txid chainhash.Hash) (chainhash.Hash, error) {
	used, err := g.state.SettlementTxUsed(txid)
	if err != nil {
		return chainhash.Hash{}, err
	}
	if used {
		return chainhash.Hash{}, ErrBtcTxAlreadyUsed
	}
	return txid, nil
}
