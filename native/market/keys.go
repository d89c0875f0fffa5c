package market

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var (
	listingRecordPrefix = []byte("market/listing/")
	outpointIndexPrefix = []byte("market/utxo/")
	settlementTxPrefix  = []byte("market/txid/")
	accountPrefix       = []byte("market/account/")
	listingCounterKey   = []byte("market/nextid")
	bootstrapFlagKey    = []byte("market/bootstrapped")
)

func listingKey(id uint64) []byte {
	buf := make([]byte, len(listingRecordPrefix)+8)
	copy(buf, listingRecordPrefix)
	binary.BigEndian.PutUint64(buf[len(listingRecordPrefix):], id)
	return buf
}

func outpointKey(txid chainhash.Hash, vout uint32) []byte {
	buf := make([]byte, len(outpointIndexPrefix)+chainhash.HashSize+4)
	copy(buf, outpointIndexPrefix)
	copy(buf[len(outpointIndexPrefix):], txid[:])
	binary.BigEndian.PutUint32(buf[len(outpointIndexPrefix)+chainhash.HashSize:], vout)
	return buf
}

func settlementTxKey(txid chainhash.Hash) []byte {
	buf := make([]byte, len(settlementTxPrefix)+chainhash.HashSize)
	copy(buf, settlementTxPrefix)
	copy(buf[len(settlementTxPrefix):], txid[:])
	return buf
}

func accountKey(addr []byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr)
	return buf
}
