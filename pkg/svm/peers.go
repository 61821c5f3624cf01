package svm

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-foundation/hello-executor-client/pkg/helloexec"
	"github.com/wormhole-foundation/hello-executor-client/pkg/universal"
)

// Peer reads the registered peer for a remote chain. Returns ErrUnknownPeer
// if no registration exists.
func (c *Client) Peer(ctx context.Context, chain vaa.ChainID) (*helloexec.Peer, error) {
	account, err := universal.PeerAccount(c.Program.ID, chain)
	if err != nil {
		return nil, err
	}
	data, err := c.accountData(ctx, account.Key, "get_peer")
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w %s", ErrUnknownPeer, chain)
	}
	return helloexec.ParsePeer(data)
}

// RegisterPeer records the trusted counterpart for a remote chain,
// idempotently: if the registered value already equals the desired one this
// is a read-only no-op. On this chain the program verifies inbound
// attestations and routes outbound relays through the same Peer record, so
// one registration covers both roles.
//
// The address must be the remote side's attestation-source identity in
// universal form; registering the wrong role's identity here is the classic
// integration failure this client exists to prevent.
func (c *Client) RegisterPeer(ctx context.Context, chain vaa.ChainID, address vaa.Address) error {
	cfg, err := c.Config(ctx)
	if err != nil {
		return err
	}
	if uint16(chain) == 0 || chain == vaa.ChainID(cfg.ChainID) {
		return fmt.Errorf("invalid peer chain %s for local chain %d", chain, cfg.ChainID)
	}
	if universal.IsZero(address) {
		return fmt.Errorf("peer address for chain %s must not be zero", chain)
	}

	existing, err := c.Peer(ctx, chain)
	if err == nil && vaa.Address(existing.Address) == address {
		c.logger.Info("peer already registered, nothing to do",
			zap.Stringer("chain", chain), zap.Stringer("address", address))
		return nil
	}

	ix, err := c.Program.RegisterPeer(c.signer.PublicKey(), chain, address)
	if err != nil {
		return err
	}
	sig, err := c.sendAndConfirm(ctx, []solana.Instruction{ix})
	if err != nil {
		return fmt.Errorf("register peer for chain %s: %w", chain, err)
	}
	c.logger.Info("registered peer",
		zap.Stringer("chain", chain),
		zap.Stringer("address", address),
		zap.Stringer("signature", sig))
	return nil
}

// VerifyPeer checks that an attested message's emitter matches the
// registered peer for its chain, the same check the program performs at
// delivery time. Mismatch or absence is ErrUnknownPeer.
func (c *Client) VerifyPeer(ctx context.Context, chain vaa.ChainID, emitter vaa.Address) error {
	peer, err := c.Peer(ctx, chain)
	if err != nil {
		return err
	}
	if vaa.Address(peer.Address) != emitter {
		return fmt.Errorf("%w %s: emitter %s does not match registered peer %s",
			ErrUnknownPeer, chain, emitter, vaa.Address(peer.Address))
	}
	return nil
}
