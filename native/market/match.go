package market

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// DustOutputValue is the minimum output value, in foreign-chain base units,
// considered economically spendable. Settlement outputs below it are
// rejected.
const DustOutputValue int64 = 546

// SpendsOutpoint reports whether any input of the transaction spends the
// given outpoint. The scan short-circuits on the first match.
func SpendsOutpoint(tx *wire.MsgTx, txid chainhash.Hash, vout uint32) bool {
	if tx == nil {
		return false
	}
	for _, in := range tx.TxIn {
		if in.PreviousOutPoint.Hash == txid && in.PreviousOutPoint.Index == vout {
			return true
		}
	}
	return false
}

// PaidToScript returns the value of the first output paying exactly the given
// destination script. Scripts are compared byte-for-byte; no address decoding
// occurs here. Additional outputs to the same script are ignored.
func PaidToScript(tx *wire.MsgTx, pkScript []byte) (int64, bool) {
	if tx == nil || len(pkScript) == 0 {
		return 0, false
	}
	for _, out := range tx.TxOut {
		if bytes.Equal(out.PkScript, pkScript) {
			return out.Value, true
		}
	}
	return 0, false
}
