package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-foundation/hello-executor-client/pkg/evm"
	"github.com/wormhole-foundation/hello-executor-client/pkg/universal"
)

var (
	peerChain   uint16
	peerAddress string
	peerRole    string
	peerOnEVM   bool
)

var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Inspect and register cross-chain peers",
}

var peerRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a peer identity for a remote chain",
	RunE:  runPeerRegister,
}

var peerShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the registered peer for a remote chain",
	RunE:  runPeerShow,
}

func init() {
	for _, c := range []*cobra.Command{peerRegisterCmd, peerShowCmd} {
		fs := c.Flags()
		fs.Uint16Var(&peerChain, "chain", 0, "Remote chain ID")
		fs.BoolVar(&peerOnEVM, "evm", false, "Operate on the EVM contract instead of the Solana program")
		fs.StringVar(&peerRole, "role", "routing", "Peer role on EVM (routing or attestation)")
		cobra.CheckErr(c.MarkFlagRequired("chain"))
	}
	peerRegisterCmd.Flags().StringVar(&peerAddress, "address", "", "Peer address, 32-byte universal hex")
	cobra.CheckErr(peerRegisterCmd.MarkFlagRequired("address"))

	peerCmd.AddCommand(peerRegisterCmd)
	peerCmd.AddCommand(peerShowCmd)
}

func parsePeerRole() (evm.PeerRole, error) {
	switch peerRole {
	case "routing":
		return evm.RoleRouting, nil
	case "attestation":
		return evm.RoleAttestation, nil
	default:
		return 0, fmt.Errorf("invalid peer role %q (want routing or attestation)", peerRole)
	}
}

func runPeerRegister(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	chain := vaa.ChainID(peerChain)
	address, err := universal.ParseUniversal(peerAddress)
	if err != nil {
		return fmt.Errorf("invalid peer address: %w", err)
	}

	if peerOnEVM {
		client, err := newEVMClient(cmd, logger)
		if err != nil {
			return err
		}
		role, err := parsePeerRole()
		if err != nil {
			return err
		}
		return client.RegisterPeer(cmd.Context(), chain, address, role)
	}

	client, err := newSVMClient(logger)
	if err != nil {
		return err
	}
	return client.RegisterPeer(cmd.Context(), chain, address)
}

func runPeerShow(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	chain := vaa.ChainID(peerChain)

	if peerOnEVM {
		client, err := newEVMClient(cmd, logger)
		if err != nil {
			return err
		}
		role, err := parsePeerRole()
		if err != nil {
			return err
		}
		address, err := client.RegisteredPeer(cmd.Context(), chain, role)
		if err != nil {
			return err
		}
		if universal.IsZero(address) {
			fmt.Printf("no %s peer registered for chain %s\n", role, chain)
			return nil
		}
		fmt.Printf("%s peer for chain %s: %s\n", role, chain, address)
		return nil
	}

	client, err := newSVMClient(logger)
	if err != nil {
		return err
	}
	peer, err := client.Peer(cmd.Context(), chain)
	if err != nil {
		return err
	}
	fmt.Printf("peer for chain %s: %s\n", chain, vaa.Address(peer.Address))
	return nil
}
