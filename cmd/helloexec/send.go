package main

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-foundation/hello-executor-client/pkg/relay"
)

var (
	sendDstChain         uint16
	sendGasLimit         uint64
	sendMsgValue         uint64
	sendAllowance        uint64
	sendAttestationWait  time.Duration
	sendDeliveryWait     time.Duration
	sendUnderpaidRetries int
	sendManualFallback   bool
	sendPublishOnly      bool
)

var sendCmd = &cobra.Command{
	Use:   "send [greeting]",
	Short: "Publish a greeting and pay for its delivery to the destination chain",
	Args:  cobra.ExactArgs(1),
	RunE:  runSend,
}

func init() {
	fs := sendCmd.Flags()
	fs.Uint16Var(&sendDstChain, "dstChain", 0, "Destination chain ID")
	fs.Uint64Var(&sendGasLimit, "gasLimit", 250_000, "Destination gas limit")
	fs.Uint64Var(&sendMsgValue, "msgValue", 0, "Destination-chain value to forward with the call")
	fs.Uint64Var(&sendAllowance, "allowance", 0, "Extra destination value to price into the payment")
	fs.DurationVar(&sendAttestationWait, "attestationTimeout", 5*time.Minute, "How long to wait for the attestation")
	fs.DurationVar(&sendDeliveryWait, "deliveryTimeout", 10*time.Minute, "How long to wait for delivery")
	fs.IntVar(&sendUnderpaidRetries, "underpaidRetries", 1, "Retries with a fresh quote when delivery is underpaid")
	fs.BoolVar(&sendManualFallback, "manualFallback", false, "Deliver manually if the Executor fails (requires EVM flags)")
	fs.BoolVar(&sendPublishOnly, "publishOnly", false, "Publish without requesting relay (resume later with 'deliver')")
	cobra.CheckErr(sendCmd.MarkFlagRequired("dstChain"))
}

func runSend(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	chain, err := newSVMClient(logger)
	if err != nil {
		return err
	}

	if sendPublishOnly {
		sub, err := chain.SubmitGreeting(cmd.Context(), args[0], nil, solana.PublicKey{})
		if err != nil {
			return err
		}
		fmt.Printf("published: tx=%s sequence=%d\n", sub.TxID(), sub.Sequence)
		return nil
	}

	var manual relay.ManualDeliverer
	if sendManualFallback {
		evmClient, err := newEVMClient(cmd, logger)
		if err != nil {
			return err
		}
		manual = evmClient
	}

	pipeline, err := newPipeline(cmd, logger, chain, manual)
	if err != nil {
		return err
	}

	result, err := pipeline.Send(cmd.Context(), relay.SendParams{
		Greeting:             args[0],
		DstChain:             vaa.ChainID(sendDstChain),
		GasLimit:             sendGasLimit,
		MsgValue:             sendMsgValue,
		DestinationAllowance: sendAllowance,
		AttestationTimeout:   sendAttestationWait,
		DeliveryTimeout:      sendDeliveryWait,
		UnderpaidRetries:     sendUnderpaidRetries,
		ManualFallback:       sendManualFallback,
	})
	if err != nil {
		if result != nil {
			logger.Error("send did not complete",
				zap.String("source_tx", result.SourceTxID),
				zap.Uint64("sequence", result.Sequence),
				zap.Error(err))
		}
		return err
	}

	fmt.Printf("source tx:  %s\n", result.SourceTxID)
	fmt.Printf("sequence:   %d\n", result.Sequence)
	fmt.Printf("outcome:    %s\n", result.Outcome.Kind)
	if result.Outcome.DestinationTxID != "" {
		fmt.Printf("dest tx:    %s\n", result.Outcome.DestinationTxID)
	}
	if result.Outcome.FailureCause != "" {
		fmt.Printf("cause:      %s\n", result.Outcome.FailureCause)
	}
	return nil
}
