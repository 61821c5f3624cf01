// Package evm drives the demo contract on an EVM chain: peer registration
// for both peer roles and manual message delivery. Unlike the SVM side,
// the routing target (the callable contract) and the attestation-source
// identity (the remote emitter) are registered independently here, because
// conflating the two roles is the dominant integration failure in this
// domain.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-foundation/hello-executor-client/pkg/universal"
)

// PeerRole selects which of the two independent peer mappings a
// registration targets.
type PeerRole uint8

const (
	// RoleRouting is the executable identity deliveries are routed to.
	RoleRouting PeerRole = 0
	// RoleAttestation is the emitter identity inbound attestations are
	// verified against. On account-model chains this is not the same key
	// as the routing target.
	RoleAttestation PeerRole = 1
)

func (r PeerRole) String() string {
	switch r {
	case RoleRouting:
		return "routing"
	case RoleAttestation:
		return "attestation"
	default:
		return fmt.Sprintf("unknown peer role: %d", uint8(r))
	}
}

const contractABI = `[
	{"type":"function","name":"registerPeer","stateMutability":"nonpayable","inputs":[{"name":"chainId","type":"uint16"},{"name":"peerAddress","type":"bytes32"},{"name":"role","type":"uint8"}],"outputs":[]},
	{"type":"function","name":"registeredPeer","stateMutability":"view","inputs":[{"name":"chainId","type":"uint16"},{"name":"role","type":"uint8"}],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"receiveMessage","stateMutability":"nonpayable","inputs":[{"name":"encodedMessage","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"latestGreeting","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

// Client wraps an EVM RPC connection and the demo contract.
type Client struct {
	Contract ethcommon.Address

	eth     *ethclient.Client
	chainID *big.Int
	key     *ecdsa.PrivateKey
	bound   *bind.BoundContract
	logger  *zap.Logger
}

func NewClient(ctx context.Context, rpcURL string, contract ethcommon.Address, key *ecdsa.PrivateKey, logger *zap.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc: %w", err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("query evm chain id: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	return &Client{
		Contract: contract,
		eth:      eth,
		chainID:  chainID,
		key:      key,
		bound:    bind.NewBoundContract(contract, parsed, eth, eth, eth),
		logger:   logger.With(zap.String("component", "EVMClient")),
	}, nil
}

// ContractUniversal returns the contract address in universal form. This is
// the routing-target identity remote chains register for this chain.
func (c *Client) ContractUniversal() vaa.Address {
	return universal.EthereumToUniversal(c.Contract)
}

// RegisteredPeer reads the current registration for (chain, role). A zero
// address means unregistered.
func (c *Client) RegisteredPeer(ctx context.Context, chain vaa.ChainID, role PeerRole) (vaa.Address, error) {
	var out []interface{}
	err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, "registeredPeer", uint16(chain), uint8(role))
	if err != nil {
		return vaa.Address{}, fmt.Errorf("read %s peer for chain %s: %w", role, chain, err)
	}
	if len(out) != 1 {
		return vaa.Address{}, fmt.Errorf("read %s peer for chain %s: unexpected result arity %d", role, chain, len(out))
	}
	raw, ok := out[0].([32]byte)
	if !ok {
		return vaa.Address{}, fmt.Errorf("read %s peer for chain %s: unexpected result type %T", role, chain, out[0])
	}
	return vaa.Address(raw), nil
}

// RegisterPeer records the expected identity for (chain, role),
// idempotently: a registration equal to the current value is a no-op.
func (c *Client) RegisterPeer(ctx context.Context, chain vaa.ChainID, address vaa.Address, role PeerRole) error {
	if universal.IsZero(address) {
		return fmt.Errorf("peer address for chain %s must not be zero", chain)
	}

	current, err := c.RegisteredPeer(ctx, chain, role)
	if err == nil && current == address {
		c.logger.Info("peer already registered, nothing to do",
			zap.Stringer("chain", chain),
			zap.Stringer("role", role),
			zap.Stringer("address", address))
		return nil
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := c.bound.Transact(opts, "registerPeer", uint16(chain), [32]byte(address), uint8(role))
	if err != nil {
		return fmt.Errorf("register %s peer for chain %s: %w", role, chain, err)
	}
	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return fmt.Errorf("wait for peer registration %s: %w", tx.Hash(), err)
	}
	if receipt.Status != 1 {
		return fmt.Errorf("peer registration %s reverted", tx.Hash())
	}

	c.logger.Info("registered peer",
		zap.Stringer("chain", chain),
		zap.Stringer("role", role),
		zap.Stringer("address", address),
		zap.Stringer("tx", tx.Hash()))
	return nil
}

// ReceiveMessage submits an attested message to the contract directly,
// bypassing the Executor. This is the manual delivery path: the contract
// verifies the attestation and the registered sender itself.
func (c *Client) ReceiveMessage(ctx context.Context, attestedMessage []byte) (ethcommon.Hash, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := c.bound.Transact(opts, "receiveMessage", attestedMessage)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("submit manual delivery: %w", err)
	}
	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return tx.Hash(), fmt.Errorf("wait for manual delivery %s: %w", tx.Hash(), err)
	}
	if receipt.Status != 1 {
		return tx.Hash(), fmt.Errorf("manual delivery %s reverted", tx.Hash())
	}

	c.logger.Info("manual delivery mined", zap.Stringer("tx", tx.Hash()))
	return tx.Hash(), nil
}

// LatestGreeting reads the most recently delivered greeting.
func (c *Client) LatestGreeting(ctx context.Context) (string, error) {
	var out []interface{}
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, "latestGreeting"); err != nil {
		return "", fmt.Errorf("read latest greeting: %w", err)
	}
	if len(out) != 1 {
		return "", fmt.Errorf("read latest greeting: unexpected result arity %d", len(out))
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("read latest greeting: unexpected result type %T", out[0])
	}
	return s, nil
}
