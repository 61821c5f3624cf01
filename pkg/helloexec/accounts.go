package helloexec

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
)

// Anchor prefixes every account with an 8-byte discriminator before the
// borsh-encoded body.
const anchorDiscriminatorLen = 8

// WormholeAddresses are the core bridge accounts cached in the config.
type WormholeAddresses struct {
	Bridge       solana.PublicKey
	FeeCollector solana.PublicKey
	Sequence     solana.PublicKey
}

// Config is the program's configuration account.
type Config struct {
	Owner    solana.PublicKey
	ChainID  uint16
	Wormhole WormholeAddresses
	BatchID  uint32
	Finality uint8
}

// Peer is the registered counterpart for a remote chain.
type Peer struct {
	Chain   uint16
	Address [32]uint8
}

// Received is the replay-protection account created for each delivered
// message.
type Received struct {
	BatchID             uint32
	WormholeMessageHash [32]uint8
	Message             []uint8
}

// WormholeEmitter is the program's emitter account (bump only).
type WormholeEmitter struct {
	Bump uint8
}

func decodeAnchorAccount(out interface{}, data []byte) error {
	if len(data) < anchorDiscriminatorLen {
		return fmt.Errorf("account data too short for discriminator: %d bytes", len(data))
	}
	if err := borsh.Deserialize(out, data[anchorDiscriminatorLen:]); err != nil {
		return fmt.Errorf("borsh deserialize: %w", err)
	}
	return nil
}

// ParseConfig decodes a Config account.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := decodeAnchorAccount(cfg, data); err != nil {
		return nil, fmt.Errorf("parse config account: %w", err)
	}
	return cfg, nil
}

// ParsePeer decodes a Peer account.
func ParsePeer(data []byte) (*Peer, error) {
	peer := &Peer{}
	if err := decodeAnchorAccount(peer, data); err != nil {
		return nil, fmt.Errorf("parse peer account: %w", err)
	}
	return peer, nil
}

// ParseReceived decodes a Received account.
func ParseReceived(data []byte) (*Received, error) {
	rcv := &Received{}
	if err := decodeAnchorAccount(rcv, data); err != nil {
		return nil, fmt.Errorf("parse received account: %w", err)
	}
	return rcv, nil
}
