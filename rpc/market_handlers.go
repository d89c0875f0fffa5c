package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"ordswap/crypto"
	"ordswap/native/market"
	"ordswap/observability/metrics"
)

type listingIDParams struct {
	ID uint64 `json:"id"`
}

type balanceOfParams struct {
	Address string `json:"address"`
}

type createListingParams struct {
	Seller     string `json:"seller"`
	Txid       string `json:"txid"`
	Vout       uint32 `json:"vout"`
	Price      string `json:"price"`
	Premium    string `json:"premium"`
	SellerDest string `json:"sellerDest"`
}

type acceptListingParams struct {
	Buyer     string `json:"buyer"`
	ID        uint64 `json:"id"`
	BuyerDest string `json:"buyerDest"`
}

type commitListingParams struct {
	Seller     string `json:"seller"`
	ID         uint64 `json:"id"`
	Collateral string `json:"collateral"`
}

type cancelListingParams struct {
	Caller string `json:"caller"`
	ID     uint64 `json:"id"`
}

type merkleProofParams struct {
	TxIndex uint32   `json:"txIndex"`
	Hashes  []string `json:"hashes"`
}

type submitSettlementParams struct {
	ID              uint64             `json:"id"`
	Height          uint64             `json:"height"`
	RawTx           string             `json:"rawTx"`
	Header          string             `json:"header"`
	Proof           *merkleProofParams `json:"proof"`
	WitnessReserved string             `json:"witnessReserved,omitempty"`
	WitnessProof    *merkleProofParams `json:"witnessProof,omitempty"`
}

// ListingResult is the JSON rendering of a listing record.
type ListingResult struct {
	ID               uint64 `json:"id"`
	Txid             string `json:"txid"`
	Vout             uint32 `json:"vout"`
	Price            string `json:"price"`
	Premium          string `json:"premium"`
	Collateral       string `json:"collateral"`
	Seller           string `json:"seller"`
	Buyer            string `json:"buyer,omitempty"`
	SellerDest       string `json:"sellerDest,omitempty"`
	BuyerDest        string `json:"buyerDest,omitempty"`
	Status           string `json:"status"`
	CreatedAt        uint64 `json:"createdAt"`
	LastChangeHeight uint64 `json:"lastChangeHeight"`
}

func listingResult(l *market.Listing) *ListingResult {
	result := &ListingResult{
		ID:               l.ID,
		Txid:             l.Txid.String(),
		Vout:             l.Vout,
		Price:            l.Price.String(),
		Premium:          l.Premium.String(),
		Collateral:       l.Collateral.String(),
		Seller:           crypto.NewAddress(crypto.OSWPrefix, l.Seller[:]).String(),
		SellerDest:       hex.EncodeToString(l.SellerDest),
		BuyerDest:        hex.EncodeToString(l.BuyerDest),
		Status:           l.Status.String(),
		CreatedAt:        l.CreatedAt,
		LastChangeHeight: l.LastChangeHeight,
	}
	if l.HasBuyer() {
		result.Buyer = crypto.NewAddress(crypto.OSWPrefix, l.Buyer[:]).String()
	}
	return result
}

func decodeParams(raw json.RawMessage, out interface{}) *rpcError {
	if len(raw) == 0 {
		return &rpcError{Code: codeInvalidParams, Message: "params required"}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &rpcError{Code: codeInvalidParams, Message: "invalid params: " + err.Error()}
	}
	return nil
}

func parseAddress(value string) ([20]byte, *rpcError) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, &rpcError{Code: codeInvalidParams, Message: "invalid address: " + err.Error()}
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func parseTxid(value string) (chainhash.Hash, *rpcError) {
	hash, err := chainhash.NewHashFromStr(strings.TrimSpace(value))
	if err != nil {
		return chainhash.Hash{}, &rpcError{Code: codeInvalidParams, Message: "invalid txid: " + err.Error()}
	}
	return *hash, nil
}

func parseAmount(value string) (*big.Int, *rpcError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, &rpcError{Code: codeInvalidParams, Message: "invalid amount " + value}
	}
	return amount, nil
}

func parseHex(value, field string) ([]byte, *rpcError) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return nil, nil
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: "invalid hex in " + field}
	}
	return decoded, nil
}

func parseProof(p *merkleProofParams) (*market.MerkleProof, *rpcError) {
	if p == nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: "inclusion proof required"}
	}
	proof := &market.MerkleProof{TxIndex: p.TxIndex, Hashes: make([]chainhash.Hash, 0, len(p.Hashes))}
	for _, raw := range p.Hashes {
		hash, rpcErr := parseTxid(raw)
		if rpcErr != nil {
			return nil, rpcErr
		}
		proof.Hashes = append(proof.Hashes, hash)
	}
	return proof, nil
}

func (s *Server) handleGetListing(raw json.RawMessage) (interface{}, *rpcError) {
	var params listingIDParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	listing, ok := s.engine.GetListing(params.ID)
	if !ok {
		return nil, &rpcError{Code: codeNotFound, Message: market.ErrInvalidID.Error()}
	}
	return listingResult(listing), nil
}

func (s *Server) handleNextListingID() (interface{}, *rpcError) {
	next, err := s.engine.NextListingID()
	if err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]uint64{"nextId": next}, nil
}

func (s *Server) handleBalanceOf(raw json.RawMessage) (interface{}, *rpcError) {
	var params balanceOfParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.engine.BalanceOf(addr)
	if err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]string{"balance": balance.String()}, nil
}

func (s *Server) handleCreateListing(raw json.RawMessage) (interface{}, *rpcError) {
	var params createListingParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	seller, rpcErr := parseAddress(params.Seller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	txid, rpcErr := parseTxid(params.Txid)
	if rpcErr != nil {
		return nil, rpcErr
	}
	price, rpcErr := parseAmount(params.Price)
	if rpcErr != nil {
		return nil, rpcErr
	}
	premium, rpcErr := parseAmount(params.Premium)
	if rpcErr != nil {
		return nil, rpcErr
	}
	sellerDest, rpcErr := parseHex(params.SellerDest, "sellerDest")
	if rpcErr != nil {
		return nil, rpcErr
	}
	id, err := s.engine.CreateListing(seller, txid, params.Vout, price, premium, sellerDest)
	if err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]uint64{"id": id}, nil
}

func (s *Server) handleAcceptListing(raw json.RawMessage) (interface{}, *rpcError) {
	var params acceptListingParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	buyer, rpcErr := parseAddress(params.Buyer)
	if rpcErr != nil {
		return nil, rpcErr
	}
	buyerDest, rpcErr := parseHex(params.BuyerDest, "buyerDest")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.AcceptListing(buyer, params.ID, buyerDest); err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleCommitListing(raw json.RawMessage) (interface{}, *rpcError) {
	var params commitListingParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	seller, rpcErr := parseAddress(params.Seller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	collateral, rpcErr := parseAmount(params.Collateral)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.CommitListing(seller, params.ID, collateral); err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleCancelListing(raw json.RawMessage) (interface{}, *rpcError) {
	var params cancelListingParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddress(params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.CancelListing(caller, params.ID); err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleSubmitSettlement(raw json.RawMessage) (interface{}, *rpcError) {
	var params submitSettlementParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	rawTx, rpcErr := parseHex(params.RawTx, "rawTx")
	if rpcErr != nil {
		return nil, rpcErr
	}
	header, rpcErr := parseHex(params.Header, "header")
	if rpcErr != nil {
		return nil, rpcErr
	}
	proof, rpcErr := parseProof(params.Proof)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var err error
	if params.WitnessProof != nil {
		witnessReserved, rpcErr := parseHex(params.WitnessReserved, "witnessReserved")
		if rpcErr != nil {
			return nil, rpcErr
		}
		witnessProof, rpcErr := parseProof(params.WitnessProof)
		if rpcErr != nil {
			return nil, rpcErr
		}
		err = s.engine.SubmitWitnessSettlement(params.ID, params.Height, rawTx, witnessReserved, header, proof, witnessProof)
	} else {
		err = s.engine.SubmitSettlement(params.ID, params.Height, rawTx, header, proof)
	}
	if err != nil {
		metrics.Market().SettlementRejected(settlementReason(err))
		return nil, errorToRPC(err)
	}
	return map[string]bool{"ok": true}, nil
}

func settlementReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, market.ErrNotCommitted):
		return "not_committed"
	case errors.Is(err, market.ErrBtcTxAlreadyUsed):
		return "replay"
	case errors.Is(err, market.ErrInscriptionMismatch):
		return "outpoint_mismatch"
	case errors.Is(err, market.ErrTxNotForReceiver):
		return "wrong_receiver"
	case errors.Is(err, market.ErrValueTooSmall):
		return "dust_output"
	default:
		return "proof_invalid"
	}
}
