package sim

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// PoolID identifies a pool on the ledger. It is the keccak256 hash of the ABI-encoded PoolKey.
type PoolID common.Hash

// Hex returns the 0x-prefixed hex form of the id.
func (id PoolID) Hex() string { return common.Hash(id).Hex() }

// PoolKey is the static description of a pool.
type PoolKey struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         uint32 // hundredths of a basis point
	TickSpacing int32  // must be > 0
	Hooks       common.Address
}

// ID hashes the key the same way the pool manager does: five 32-byte words.
func (k PoolKey) ID() PoolID {
	word := func(b []byte) []byte { return common.LeftPadBytes(b, 32) }
	enc := make([]byte, 0, 5*32)
	enc = append(enc, word(k.Currency0.Bytes())...)
	enc = append(enc, word(k.Currency1.Bytes())...)
	enc = append(enc, word(new(big.Int).SetUint64(uint64(k.Fee)).Bytes())...)
	enc = append(enc, word(big.NewInt(int64(k.TickSpacing)).Bytes())...)
	enc = append(enc, word(k.Hooks.Bytes())...)
	return PoolID(crypto.Keccak256Hash(enc))
}

// PoolState is the ledger's view of a pool at one instant.
type PoolState struct {
	SqrtPriceX96 uint256.Int
	Tick         int32
	Fee          uint32
	TickSpacing  int32
}

// Deployment holds the ledger-side objects created for a run. The core carries these
// addresses around but never interprets them.
type Deployment struct {
	Pool    PoolID
	Key     PoolKey
	Manager common.Address
	Fetcher common.Address
	Oracle  common.Address
}
