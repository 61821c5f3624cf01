package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-foundation/hello-executor-client/pkg/svm"
)

var initializeChain uint16

var initializeCmd = &cobra.Command{
	Use:   "initialize",
	Short: "Initialize the greeting program's config and emitter accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		defer logger.Sync() //nolint:errcheck

		chain, err := newSVMClient(logger)
		if err != nil {
			return err
		}
		sig, err := chain.Initialize(cmd.Context(), vaa.ChainID(initializeChain))
		if err != nil {
			return err
		}
		fmt.Printf("initialized: %s\n", sig)
		return nil
	},
}

var updateConfigCmd = &cobra.Command{
	Use:   "update-config",
	Short: "Refresh the cached core bridge addresses in the program config",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		defer logger.Sync() //nolint:errcheck

		chain, err := newSVMClient(logger)
		if err != nil {
			return err
		}
		sig, err := chain.UpdateWormholeConfig(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("updated: %s\n", sig)
		return nil
	},
}

var sequenceCmd = &cobra.Command{
	Use:   "sequence",
	Short: "Print the current message sequence counter",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		defer logger.Sync() //nolint:errcheck

		chain, err := newSVMClient(logger)
		if err != nil {
			return err
		}
		seq, err := chain.ReadSequence(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("sequence: %d\n", seq)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream greeting publications from the program's transaction logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		defer logger.Sync() //nolint:errcheck

		chain, err := newSVMClient(logger)
		if err != nil {
			return err
		}

		events := make(chan *svm.GreetingEvent, 16)
		errCh := make(chan error, 1)
		go func() {
			errCh <- chain.WatchGreetings(cmd.Context(), events)
		}()

		for {
			select {
			case ev := <-events:
				logger.Info("greeting published",
					zap.Uint64("sequence", ev.Sequence),
					zap.Uint64("slot", ev.Slot),
					zap.String("tx", ev.Signature))
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		}
	},
}
