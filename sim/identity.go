package sim

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AdminIndex is the keyring slot of the administrative identity. Strategy i uses slot i+1.
const AdminIndex = 0

// Identity is an isolated ledger-facing account used by exactly one scheduler role.
type Identity struct {
	Index   int
	Address common.Address
	key     *ecdsa.PrivateKey
}

// PrivateKey returns the signing key of the identity.
func (id Identity) PrivateKey() *ecdsa.PrivateKey { return id.key }

// matches reports whether other is this identity, signing key included.
func (id Identity) matches(other Identity) bool {
	return id.Index == other.Index && id.Address == other.Address && id.key != nil && id.key == other.key
}

func (id Identity) String() string {
	if id.Index == AdminIndex {
		return fmt.Sprintf("admin(%s)", id.Address.Hex())
	}
	return fmt.Sprintf("agent-%d(%s)", id.Index, id.Address.Hex())
}

// Keyring holds the identities of a run in slot order.
type Keyring struct {
	identities []Identity
}

// NewKeyring derives n secp256k1 identities deterministically from seed.
// The same seed always yields the same addresses.
func NewKeyring(seed int64, n int) (*Keyring, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: keyring needs at least one identity", ErrConfiguration)
	}
	rng := NewPartitionedRNG(NewSimulationKey(seed))
	k := &Keyring{identities: make([]Identity, 0, n)}
	for i := 0; i < n; i++ {
		key, err := deriveKey(rng, i)
		if err != nil {
			return nil, err
		}
		k.identities = append(k.identities, Identity{
			Index:   i,
			Address: crypto.PubkeyToAddress(key.PublicKey),
			key:     key,
		})
	}
	return k, nil
}

// deriveKey hashes 32 bytes from the slot's RNG subsystem until the digest is a
// valid secp256k1 scalar.
func deriveKey(rng *PartitionedRNG, index int) (*ecdsa.PrivateKey, error) {
	src := rng.ForSubsystem(SubsystemIdentity(index))
	buf := make([]byte, 32)
	for i := 0; i < len(buf); i += 8 {
		binary.BigEndian.PutUint64(buf[i:], src.Uint64())
	}
	material := crypto.Keccak256([]byte("arena/identity"), buf)
	for attempt := 0; attempt < 8; attempt++ {
		key, err := crypto.ToECDSA(material)
		if err == nil {
			return key, nil
		}
		material = crypto.Keccak256(material)
	}
	return nil, fmt.Errorf("%w: cannot derive key for slot %d", ErrConfiguration, index)
}

// KeyringFromHex builds a keyring from hex-encoded private keys, in slot order.
func KeyringFromHex(keys []string) (*Keyring, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: keyring needs at least one identity", ErrConfiguration)
	}
	k := &Keyring{identities: make([]Identity, 0, len(keys))}
	seen := make(map[common.Address]int, len(keys))
	for i, hexKey := range keys {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("%w: key %d: %v", ErrConfiguration, i, err)
		}
		addr := crypto.PubkeyToAddress(key.PublicKey)
		if prev, dup := seen[addr]; dup {
			return nil, fmt.Errorf("%w: keys %d and %d share address %s", ErrConfiguration, prev, i, addr.Hex())
		}
		seen[addr] = i
		k.identities = append(k.identities, Identity{Index: i, Address: addr, key: key})
	}
	return k, nil
}

// Len returns the number of identities.
func (k *Keyring) Len() int { return len(k.identities) }

// Admin returns the administrative identity.
func (k *Keyring) Admin() Identity { return k.identities[AdminIndex] }

// At returns the identity in slot i.
func (k *Keyring) At(i int) (Identity, bool) {
	if i < 0 || i >= len(k.identities) {
		return Identity{}, false
	}
	return k.identities[i], true
}

// Lookup finds the identity owning addr.
func (k *Keyring) Lookup(addr common.Address) (Identity, bool) {
	for _, id := range k.identities {
		if id.Address == addr {
			return id, true
		}
	}
	return Identity{}, false
}
