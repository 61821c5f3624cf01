package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	deliverSequence uint64
	deliverWait     time.Duration
)

var deliverCmd = &cobra.Command{
	Use:   "deliver",
	Short: "Deliver an attested message to the destination contract manually",
	Long: `Deliver fetches the attestation for an already-published sequence and
submits it to the destination contract directly, bypassing the Executor.
Use it to recover messages the Executor failed to deliver, or to complete
a send that was published with --publishOnly.`,
	RunE: runDeliver,
}

func init() {
	fs := deliverCmd.Flags()
	fs.Uint64Var(&deliverSequence, "sequence", 0, "Sequence of the published message")
	fs.DurationVar(&deliverWait, "attestationTimeout", time.Minute, "How long to wait for the attestation")
	cobra.CheckErr(deliverCmd.MarkFlagRequired("sequence"))
}

func runDeliver(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	chain, err := newSVMClient(logger)
	if err != nil {
		return err
	}
	evmClient, err := newEVMClient(cmd, logger)
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(cmd, logger, chain, evmClient)
	if err != nil {
		return err
	}

	txID, err := pipeline.DeliverManually(cmd.Context(), deliverSequence, deliverWait)
	if err != nil {
		return err
	}
	fmt.Printf("delivered: %s\n", txID)
	return nil
}
