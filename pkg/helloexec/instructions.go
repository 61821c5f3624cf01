package helloexec

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-foundation/hello-executor-client/pkg/universal"
)

// ExecutorProgramID is the on-chain Executor program the relay request is
// routed through.
var ExecutorProgramID = solana.MustPublicKeyFromBase58("execXUrAsMnqMmTHj5m7N1YQgsDz3cwGLYCYyuDRciV")

// Anchor instruction discriminators: sha256("global:<name>")[..8].
var (
	discInitialize           = []byte{0xaf, 0xaf, 0x6d, 0x1f, 0x0d, 0x98, 0x9b, 0xed}
	discSendGreeting         = []byte{0x9d, 0x45, 0x8e, 0xb4, 0xa9, 0xe6, 0xb5, 0x7c}
	discRegisterPeer         = []byte{0xab, 0xe5, 0xbb, 0x46, 0x65, 0xd8, 0xe0, 0x37}
	discRequestRelay         = []byte{0x59, 0x61, 0x71, 0xf1, 0x1b, 0xd9, 0x1e, 0xe3}
	discReceiveGreeting      = []byte{0x87, 0xb9, 0x01, 0x58, 0x4c, 0x8d, 0xce, 0x96}
	discUpdateWormholeConfig = []byte{0xb2, 0xe6, 0xcd, 0x4c, 0x09, 0x9d, 0x9e, 0x10}
)

// initialSequence is the sent-message index of the Alive payload posted by
// initialize (wormhole_anchor_sdk::wormhole::INITIAL_SEQUENCE).
const initialSequence uint64 = 1

// Program bundles the hello-executor program ID, its collaborating programs
// and the derived accounts every instruction references.
type Program struct {
	ID         solana.PublicKey
	CoreBridge solana.PublicKey

	Config       universal.DerivedAccount
	Emitter      universal.DerivedAccount
	Bridge       universal.DerivedAccount
	FeeCollector universal.DerivedAccount
	Sequence     universal.DerivedAccount
}

// NewProgram derives all fixed accounts up front. Derivation is
// deterministic, so doing it once keeps the instruction builders pure.
func NewProgram(id, coreBridge solana.PublicKey) (*Program, error) {
	p := &Program{ID: id, CoreBridge: coreBridge}
	var err error
	if p.Config, err = universal.ConfigAccount(id); err != nil {
		return nil, err
	}
	if p.Emitter, err = universal.EmitterAccount(id); err != nil {
		return nil, err
	}
	if p.Bridge, err = universal.BridgeAccount(coreBridge); err != nil {
		return nil, err
	}
	if p.FeeCollector, err = universal.FeeCollectorAccount(coreBridge); err != nil {
		return nil, err
	}
	if p.Sequence, err = universal.SequenceAccount(coreBridge, p.Emitter.Key); err != nil {
		return nil, err
	}
	return p, nil
}

// EmitterUniversal returns the emitter PDA in universal form. This is the
// attestation-source identity remote chains must register, distinct from the
// program ID they route deliveries to.
func (p *Program) EmitterUniversal() vaa.Address {
	return universal.SolanaToUniversal(p.Emitter.Key)
}

func anchorData(disc []byte, args interface{}) ([]byte, error) {
	if args == nil {
		return disc, nil
	}
	body, err := borsh.Serialize(args)
	if err != nil {
		return nil, fmt.Errorf("serialize instruction args: %w", err)
	}
	return append(append([]byte{}, disc...), body...), nil
}

// Initialize builds the one-time setup instruction creating the config and
// emitter accounts and posting the Alive message.
func (p *Program) Initialize(owner solana.PublicKey, chainID vaa.ChainID) (solana.Instruction, error) {
	msgAccount, err := universal.SentMessageAccount(p.ID, initialSequence)
	if err != nil {
		return nil, err
	}
	data, err := anchorData(discInitialize, struct{ ChainID uint16 }{uint16(chainID)})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(p.ID, solana.AccountMetaSlice{
		solana.Meta(owner).WRITE().SIGNER(),
		solana.Meta(p.Config.Key).WRITE(),
		solana.Meta(p.CoreBridge),
		solana.Meta(p.Bridge.Key).WRITE(),
		solana.Meta(p.FeeCollector.Key).WRITE(),
		solana.Meta(p.Emitter.Key).WRITE(),
		solana.Meta(p.Sequence.Key).WRITE(),
		solana.Meta(msgAccount.Key).WRITE(),
		solana.Meta(solana.SysVarClockPubkey),
		solana.Meta(solana.SysVarRentPubkey),
		solana.Meta(solana.SystemProgramID),
	}, data), nil
}

// SendGreeting builds the publish instruction. messageSequence must be the
// sequence the message is expected to be assigned (current counter + 1); it
// seeds the per-message account, so a wrong value here is a wrong account
// and the transaction fails rather than silently colliding.
func (p *Program) SendGreeting(payer solana.PublicKey, messageSequence uint64, greeting string) (solana.Instruction, error) {
	if len(greeting) > GreetingMaxLength {
		return nil, fmt.Errorf("greeting exceeds %d bytes: %d", GreetingMaxLength, len(greeting))
	}
	msgAccount, err := universal.SentMessageAccount(p.ID, messageSequence)
	if err != nil {
		return nil, err
	}
	data, err := anchorData(discSendGreeting, struct{ Greeting string }{greeting})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(p.ID, solana.AccountMetaSlice{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(p.Config.Key),
		solana.Meta(p.CoreBridge),
		solana.Meta(p.Bridge.Key).WRITE(),
		solana.Meta(p.FeeCollector.Key).WRITE(),
		solana.Meta(p.Emitter.Key),
		solana.Meta(p.Sequence.Key).WRITE(),
		solana.Meta(msgAccount.Key).WRITE(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.SysVarClockPubkey),
		solana.Meta(solana.SysVarRentPubkey),
	}, data), nil
}

// RegisterPeer builds the owner-only instruction recording the trusted
// counterpart for a remote chain.
func (p *Program) RegisterPeer(owner solana.PublicKey, chain vaa.ChainID, address vaa.Address) (solana.Instruction, error) {
	peerAccount, err := universal.PeerAccount(p.ID, chain)
	if err != nil {
		return nil, err
	}
	data, err := anchorData(discRegisterPeer, struct {
		Chain   uint16
		Address [32]uint8
	}{uint16(chain), address})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(p.ID, solana.AccountMetaSlice{
		solana.Meta(owner).WRITE().SIGNER(),
		solana.Meta(p.Config.Key),
		solana.Meta(peerAccount.Key).WRITE(),
		solana.Meta(solana.SystemProgramID),
	}, data), nil
}

// RequestRelayArgs are the borsh-encoded arguments of request_relay.
type RequestRelayArgs struct {
	DstChain          uint16
	ExecAmount        uint64
	SignedQuoteBytes  []uint8
	RelayInstructions []uint8
}

// RequestRelay builds the instruction transferring payment to the quote's
// payee and recording the relay request for the Executor. The payee must
// already have been validated against the source chain family; this builder
// does not re-check it.
func (p *Program) RequestRelay(payer, payee solana.PublicKey, args RequestRelayArgs) (solana.Instruction, error) {
	peerAccount, err := universal.PeerAccount(p.ID, vaa.ChainID(args.DstChain))
	if err != nil {
		return nil, err
	}
	data, err := anchorData(discRequestRelay, args)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(p.ID, solana.AccountMetaSlice{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(payee).WRITE(),
		solana.Meta(p.Config.Key),
		solana.Meta(peerAccount.Key),
		solana.Meta(p.Emitter.Key),
		solana.Meta(p.CoreBridge),
		solana.Meta(p.Sequence.Key),
		solana.Meta(ExecutorProgramID),
		solana.Meta(solana.SystemProgramID),
	}, data), nil
}

// ReceiveGreeting builds the manual delivery instruction. The VAA must
// already be posted to the core bridge; emitterChain and sequence key the
// replay-protection account.
func (p *Program) ReceiveGreeting(payer solana.PublicKey, vaaHash [32]byte, emitterChain vaa.ChainID, sequence uint64) (solana.Instruction, error) {
	posted, err := universal.PostedVAAAccount(p.CoreBridge, vaaHash)
	if err != nil {
		return nil, err
	}
	peerAccount, err := universal.PeerAccount(p.ID, emitterChain)
	if err != nil {
		return nil, err
	}
	received, err := universal.ReceivedMessageAccount(p.ID, emitterChain, sequence)
	if err != nil {
		return nil, err
	}
	data, err := anchorData(discReceiveGreeting, struct{ VaaHash [32]uint8 }{vaaHash})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(p.ID, solana.AccountMetaSlice{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(p.Config.Key),
		solana.Meta(p.CoreBridge),
		solana.Meta(posted.Key),
		solana.Meta(peerAccount.Key),
		solana.Meta(received.Key).WRITE(),
		solana.Meta(solana.SystemProgramID),
	}, data), nil
}

// UpdateWormholeConfig builds the owner-only instruction refreshing the
// cached core bridge addresses.
func (p *Program) UpdateWormholeConfig(owner solana.PublicKey) (solana.Instruction, error) {
	data, err := anchorData(discUpdateWormholeConfig, nil)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(p.ID, solana.AccountMetaSlice{
		solana.Meta(owner).WRITE().SIGNER(),
		solana.Meta(p.Config.Key).WRITE(),
		solana.Meta(p.CoreBridge),
		solana.Meta(p.Bridge.Key),
		solana.Meta(p.FeeCollector.Key),
	}, data), nil
}
