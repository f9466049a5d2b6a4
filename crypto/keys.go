package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part of a bech32 address.
type AddressPrefix string

const MintPrefix AddressPrefix = "mint"

var ErrInvalidAddress = errors.New("crypto: invalid address")

// Address is a 20-byte account identity paired with its display prefix.
// Two addresses are equal when their bytes are equal; the prefix only
// affects rendering.
type Address struct {
	prefix AddressPrefix
	raw    [20]byte
}

func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != 20 {
		return Address{}, fmt.Errorf("%w: expected 20 bytes, got %d", ErrInvalidAddress, len(b))
	}
	var raw [20]byte
	copy(raw[:], b)
	return Address{prefix: prefix, raw: raw}, nil
}

// MustNewAddress is NewAddress for inputs already known to be 20 bytes.
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

// AddressFromRaw wraps a raw 20-byte identity with the default prefix.
func AddressFromRaw(raw [20]byte) Address {
	return Address{prefix: MintPrefix, raw: raw}
}

// FormatAddress renders raw as a mint-prefixed bech32 string.
func FormatAddress(raw [20]byte) string {
	return AddressFromRaw(raw).String()
}

func (a Address) String() string {
	prefix := a.prefix
	if prefix == "" {
		prefix = MintPrefix
	}
	conv, err := bech32.ConvertBits(a.raw[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Hex renders the address in EIP-55 checksummed hex form.
func (a Address) Hex() string {
	return common.Address(a.raw).Hex()
}

func (a Address) Bytes() []byte {
	out := make([]byte, 20)
	copy(out, a.raw[:])
	return out
}

// Raw returns the comparable 20-byte identity.
func (a Address) Raw() [20]byte { return a.raw }

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// IsZero reports whether every byte of the address is zero.
func (a Address) IsZero() bool {
	return a.raw == [20]byte{}
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("%w: invalid bech32 string: %v", ErrInvalidAddress, err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("%w: error converting bits: %v", ErrInvalidAddress, err)
	}
	return NewAddress(AddressPrefix(prefix), conv)
}

// ParseAddress accepts either a mint-prefixed bech32 address or a
// 0x-prefixed hex address.
func ParseAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Address{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		if !common.IsHexAddress(trimmed) {
			return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, trimmed)
		}
		return AddressFromRaw(common.HexToAddress(trimmed)), nil
	}
	addr, err := DecodeAddress(strings.ToLower(trimmed))
	if err != nil {
		return Address{}, err
	}
	if addr.prefix != MintPrefix {
		return Address{}, fmt.Errorf("%w: unexpected prefix %q", ErrInvalidAddress, addr.prefix)
	}
	return addr, nil
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

func (k *PublicKey) Address() Address {
	return AddressFromRaw(crypto.PubkeyToAddress(*k.PublicKey))
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
