package universal

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// Seed prefixes used by the hello-executor program and the core bridge.
// These must match the on-chain program exactly.
var (
	seedConfig       = []byte("config")
	seedEmitter      = []byte("emitter")
	seedPeer         = []byte("peer")
	seedSent         = []byte("sent")
	seedReceived     = []byte("received")
	seedSequence     = []byte("Sequence")
	seedBridge       = []byte("Bridge")
	seedFeeCollector = []byte("fee_collector")
	seedPostedVAA    = []byte("PostedVAA")
)

// DerivedAccount is a deterministically derived program account address.
type DerivedAccount struct {
	Key  solana.PublicKey
	Bump uint8
}

func derive(program solana.PublicKey, seeds ...[]byte) (DerivedAccount, error) {
	key, bump, err := solana.FindProgramAddress(seeds, program)
	if err != nil {
		return DerivedAccount{}, fmt.Errorf("derive account for program %s: %w", program, err)
	}
	return DerivedAccount{Key: key, Bump: bump}, nil
}

// ConfigAccount derives the program's config account.
func ConfigAccount(program solana.PublicKey) (DerivedAccount, error) {
	return derive(program, seedConfig)
}

// EmitterAccount derives the program's Wormhole emitter account. All outbound
// messages from the program are published from this identity, which is why it
// (and not the program ID) is the attestation-source peer on remote chains.
func EmitterAccount(program solana.PublicKey) (DerivedAccount, error) {
	return derive(program, seedEmitter)
}

// PeerAccount derives the peer account for a remote chain.
func PeerAccount(program solana.PublicKey, chain vaa.ChainID) (DerivedAccount, error) {
	var chainLE [2]byte
	binary.LittleEndian.PutUint16(chainLE[:], uint16(chain))
	return derive(program, seedPeer, chainLE[:])
}

// SentMessageAccount derives the message account for an outbound sequence
// number. The sequence must be the value actually assigned by the publish,
// not a client-side guess; see svm.SequenceTracker.
func SentMessageAccount(program solana.PublicKey, sequence uint64) (DerivedAccount, error) {
	var seqLE [8]byte
	binary.LittleEndian.PutUint64(seqLE[:], sequence)
	return derive(program, seedSent, seqLE[:])
}

// ReceivedMessageAccount derives the replay-protection account for an inbound
// message, keyed by source chain and sequence.
func ReceivedMessageAccount(program solana.PublicKey, chain vaa.ChainID, sequence uint64) (DerivedAccount, error) {
	var chainLE [2]byte
	var seqLE [8]byte
	binary.LittleEndian.PutUint16(chainLE[:], uint16(chain))
	binary.LittleEndian.PutUint64(seqLE[:], sequence)
	return derive(program, seedReceived, chainLE[:], seqLE[:])
}

// SequenceAccount derives the core bridge's sequence tracker for an emitter.
func SequenceAccount(coreBridge, emitter solana.PublicKey) (DerivedAccount, error) {
	return derive(coreBridge, seedSequence, emitter[:])
}

// BridgeAccount derives the core bridge's config (BridgeData) account.
func BridgeAccount(coreBridge solana.PublicKey) (DerivedAccount, error) {
	return derive(coreBridge, seedBridge)
}

// FeeCollectorAccount derives the core bridge's fee collector.
func FeeCollectorAccount(coreBridge solana.PublicKey) (DerivedAccount, error) {
	return derive(coreBridge, seedFeeCollector)
}

// PostedVAAAccount derives the core bridge account holding a posted VAA,
// keyed by the VAA body hash.
func PostedVAAAccount(coreBridge solana.PublicKey, vaaHash [32]byte) (DerivedAccount, error) {
	return derive(coreBridge, seedPostedVAA, vaaHash[:])
}
