package main

import (
	"fmt"
	"os"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wormhole-foundation/hello-executor-client/pkg/evm"
)

var (
	evmRPC      string
	evmKeyFile  string
	evmContract string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&evmRPC, "evmRPC", "", "EVM RPC URL")
	pf.StringVar(&evmKeyFile, "evmKey", "", "Path to a file holding the hex-encoded EVM signing key")
	pf.StringVar(&evmContract, "evmContract", "", "Greeting contract address on the EVM chain")
}

func newEVMClient(cmd *cobra.Command, logger *zap.Logger) (*evm.Client, error) {
	if evmRPC == "" || evmKeyFile == "" || evmContract == "" {
		return nil, fmt.Errorf("--evmRPC, --evmKey and --evmContract are required")
	}
	if !ethcommon.IsHexAddress(evmContract) {
		return nil, fmt.Errorf("invalid contract address %q", evmContract)
	}

	raw, err := os.ReadFile(evmKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read evm key: %w", err)
	}
	key, err := crypto.HexToECDSA(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x")))
	if err != nil {
		return nil, fmt.Errorf("parse evm key: %w", err)
	}

	return evm.NewClient(cmd.Context(), evmRPC, ethcommon.HexToAddress(evmContract), key, logger)
}
