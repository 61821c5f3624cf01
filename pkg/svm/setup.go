package svm

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"
)

// Initialize creates the program's config and emitter accounts and posts the
// initial Alive message. One-time setup; fails on chain if already run.
func (c *Client) Initialize(ctx context.Context, chainID vaa.ChainID) (solana.Signature, error) {
	ix, err := c.Program.Initialize(c.signer.PublicKey(), chainID)
	if err != nil {
		return solana.Signature{}, err
	}

	fee, err := c.BridgeFee(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("read bridge fee: %w", err)
	}
	c.logger.Info("initializing program",
		zap.Stringer("program", c.Program.ID),
		zap.Stringer("emitter", c.Program.Emitter.Key),
		zap.Uint64("bridge_fee_lamports", fee))

	return c.sendAndConfirm(ctx, []solana.Instruction{ix})
}

// UpdateWormholeConfig refreshes the core bridge addresses cached in the
// config account. Owner only.
func (c *Client) UpdateWormholeConfig(ctx context.Context) (solana.Signature, error) {
	ix, err := c.Program.UpdateWormholeConfig(c.signer.PublicKey())
	if err != nil {
		return solana.Signature{}, err
	}
	return c.sendAndConfirm(ctx, []solana.Instruction{ix})
}

// ReceiveGreeting submits the manual delivery instruction for a posted VAA.
// This is the first-class fallback path when the Executor is unavailable:
// the protocol is self-sufficient given a valid attestation.
func (c *Client) ReceiveGreeting(ctx context.Context, vaaHash [32]byte, emitterChain vaa.ChainID, sequence uint64) (solana.Signature, error) {
	ix, err := c.Program.ReceiveGreeting(c.signer.PublicKey(), vaaHash, emitterChain, sequence)
	if err != nil {
		return solana.Signature{}, err
	}
	return c.sendAndConfirm(ctx, []solana.Instruction{ix})
}
