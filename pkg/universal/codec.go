// Package universal converts between chain-native address encodings and the
// protocol's fixed-width universal form, and derives the deterministic
// program accounts the client needs to reference on chain.
//
// Keeping all padding and derivation in one place matters: ad hoc address
// padding scattered across scripts is the dominant source of cross-chain
// integration bugs (wrong-role peer registered, wrong-width payee paid).
package universal

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// ChainFamily identifies the address model of a chain, independent of its
// Wormhole chain ID.
type ChainFamily uint8

const (
	FamilyUnset ChainFamily = iota
	// FamilySVM covers account-model chains with native 32-byte ed25519 keys.
	FamilySVM
	// FamilyEVM covers chains with native 20-byte addresses.
	FamilyEVM
)

func (f ChainFamily) String() string {
	switch f {
	case FamilySVM:
		return "svm"
	case FamilyEVM:
		return "evm"
	default:
		return fmt.Sprintf("unknown chain family: %d", uint8(f))
	}
}

// FamilyForChain maps a Wormhole chain ID to its address family. Only the
// chains this demo routes between are mapped.
func FamilyForChain(id vaa.ChainID) (ChainFamily, error) {
	switch id {
	case vaa.ChainIDSolana, vaa.ChainIDPythNet:
		return FamilySVM, nil
	case vaa.ChainIDEthereum, vaa.ChainIDBSC, vaa.ChainIDPolygon, vaa.ChainIDAvalanche,
		vaa.ChainIDArbitrum, vaa.ChainIDOptimism, vaa.ChainIDBase,
		vaa.ChainIDSepolia, vaa.ChainIDArbitrumSepolia, vaa.ChainIDBaseSepolia,
		vaa.ChainIDOptimismSepolia, vaa.ChainIDHolesky:
		return FamilyEVM, nil
	default:
		return FamilyUnset, fmt.Errorf("no known address family for chain %s", id)
	}
}

// AddressWidthError indicates a native address whose width does not match
// any known chain family. It is a local misconfiguration, not retryable.
type AddressWidthError struct {
	Family ChainFamily
	Got    int
}

func (e *AddressWidthError) Error() string {
	return fmt.Sprintf("address width %d does not match family %s", e.Got, e.Family)
}

// ToUniversal converts a chain-native address to the 32-byte universal form.
// Native addresses narrower than 32 bytes are zero-padded on the left;
// native 32-byte keys pass through unchanged.
func ToUniversal(native []byte, family ChainFamily) (vaa.Address, error) {
	var out vaa.Address
	switch family {
	case FamilySVM:
		if len(native) != 32 {
			return out, &AddressWidthError{Family: family, Got: len(native)}
		}
		copy(out[:], native)
	case FamilyEVM:
		if len(native) != 20 {
			return out, &AddressWidthError{Family: family, Got: len(native)}
		}
		copy(out[12:], native)
	default:
		return out, &AddressWidthError{Family: family, Got: len(native)}
	}
	return out, nil
}

// FromUniversal extracts the chain-native address from its universal form,
// verifying that the padding bytes are actually zero.
func FromUniversal(addr vaa.Address, family ChainFamily) ([]byte, error) {
	switch family {
	case FamilySVM:
		return addr.Bytes(), nil
	case FamilyEVM:
		var zero [12]byte
		if !bytes.Equal(addr[:12], zero[:]) {
			return nil, fmt.Errorf("universal address %s is not a left-padded 20-byte address", addr)
		}
		return addr[12:], nil
	default:
		return nil, &AddressWidthError{Family: family, Got: 32}
	}
}

// SolanaToUniversal converts a Solana public key to its universal form.
func SolanaToUniversal(key solana.PublicKey) vaa.Address {
	var out vaa.Address
	copy(out[:], key[:])
	return out
}

// EthereumToUniversal converts an EVM address to its universal form.
func EthereumToUniversal(addr ethcommon.Address) vaa.Address {
	var out vaa.Address
	copy(out[12:], addr[:])
	return out
}

// ParseUniversal parses a universal address from its 64-digit hex
// representation (with or without a 0x prefix) or, failing that, from a
// base58-encoded 32-byte Solana key.
func ParseUniversal(s string) (vaa.Address, error) {
	var out vaa.Address
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		b, err = base58.Decode(s)
		if err != nil {
			return out, fmt.Errorf("invalid universal address %q: neither hex nor base58", s)
		}
	}
	if len(b) != 32 {
		return out, &AddressWidthError{Got: len(b)}
	}
	copy(out[:], b)
	return out, nil
}

// IsZero reports whether the address is all zero bytes. The zero address is
// never a valid peer or payee.
func IsZero(addr vaa.Address) bool {
	var zero vaa.Address
	return addr == zero
}
