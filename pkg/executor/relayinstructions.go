package executor

import (
	"fmt"
	"math/big"

	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// relayInstructionsVersion tags the wire encoding below.
const relayInstructionsVersion = 0x01

const relayInstructionsLen = 1 + 16 + 16

var maxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// RelayInstructions are the delivery parameters the Executor enforces on the
// destination chain: the gas/compute budget and extra native value to
// forward with the call. The same encoded bytes must go to both the quote
// request and the relay request.
type RelayInstructions struct {
	GasLimit *big.Int
	MsgValue *big.Int
}

// NewRelayInstructions builds relay instructions from u64 values, the common
// case. Use the struct directly for larger budgets.
func NewRelayInstructions(gasLimit, msgValue uint64) *RelayInstructions {
	return &RelayInstructions{
		GasLimit: new(big.Int).SetUint64(gasLimit),
		MsgValue: new(big.Int).SetUint64(msgValue),
	}
}

// Encode serializes to the fixed wire format: a 1-byte version tag followed
// by two 16-byte big-endian u128 fields.
func (ri *RelayInstructions) Encode() ([]byte, error) {
	if ri.GasLimit == nil || ri.MsgValue == nil {
		return nil, fmt.Errorf("relay instructions fields must not be nil")
	}
	if ri.GasLimit.Sign() < 0 || ri.GasLimit.Cmp(maxU128) > 0 {
		return nil, fmt.Errorf("gas limit out of u128 range: %s", ri.GasLimit)
	}
	if ri.MsgValue.Sign() < 0 || ri.MsgValue.Cmp(maxU128) > 0 {
		return nil, fmt.Errorf("msg value out of u128 range: %s", ri.MsgValue)
	}

	out := make([]byte, relayInstructionsLen)
	out[0] = relayInstructionsVersion
	ri.GasLimit.FillBytes(out[1:17])
	ri.MsgValue.FillBytes(out[17:33])
	return out, nil
}

// DecodeRelayInstructions parses the wire format back into its fields.
func DecodeRelayInstructions(data []byte) (*RelayInstructions, error) {
	if len(data) != relayInstructionsLen {
		return nil, fmt.Errorf("relay instructions must be %d bytes, got %d", relayInstructionsLen, len(data))
	}
	if data[0] != relayInstructionsVersion {
		return nil, fmt.Errorf("unsupported relay instructions version: %d", data[0])
	}
	return &RelayInstructions{
		GasLimit: new(big.Int).SetBytes(data[1:17]),
		MsgValue: new(big.Int).SetBytes(data[17:33]),
	}, nil
}

// vaaV1RequestPrefix tags an execution request referencing a v1 VAA.
const vaaV1RequestPrefix = "ERV1"

// MakeVAAV1Request builds the request bytes identifying the message the
// Executor should deliver: prefix, emitter chain (u16 BE), emitter address
// (32 bytes), sequence (u64 BE).
func MakeVAAV1Request(chain vaa.ChainID, emitter vaa.Address, sequence uint64) []byte {
	out := make([]byte, 0, 4+2+32+8)
	out = append(out, vaaV1RequestPrefix...)
	out = append(out, byte(uint16(chain)>>8), byte(uint16(chain)))
	out = append(out, emitter[:]...)
	for shift := 56; shift >= 0; shift -= 8 {
		out = append(out, byte(sequence>>uint(shift)))
	}
	return out
}
