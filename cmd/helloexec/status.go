package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-foundation/hello-executor-client/pkg/executor"
)

var (
	statusSrcChain uint16
	statusWait     time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status [txid]",
	Short: "Query the Executor's delivery status for a source transaction",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	fs := statusCmd.Flags()
	fs.Uint16Var(&statusSrcChain, "srcChain", 0, "Source chain ID")
	fs.DurationVar(&statusWait, "wait", 0, "Poll until terminal or this long (0 polls once)")
	cobra.CheckErr(statusCmd.MarkFlagRequired("srcChain"))
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	e := environment()
	client := executor.NewStatusClient(executorBaseURL(e), e, logger)
	srcChain := vaa.ChainID(statusSrcChain)

	var outcome executor.DeliveryOutcome
	var err error
	if statusWait > 0 {
		outcome, err = client.WaitForDelivery(cmd.Context(), srcChain, args[0], statusWait)
	} else {
		outcome, err = client.PollOnce(cmd.Context(), srcChain, args[0])
	}
	if err != nil {
		return err
	}

	fmt.Printf("outcome: %s\n", outcome.Kind)
	if outcome.DestinationTxID != "" {
		fmt.Printf("dest tx: %s\n", outcome.DestinationTxID)
	}
	if outcome.FailureCause != "" {
		fmt.Printf("cause:   %s\n", outcome.FailureCause)
	}
	return nil
}
