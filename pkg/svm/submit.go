package svm

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/wormhole-foundation/hello-executor-client/pkg/executor"
	"github.com/wormhole-foundation/hello-executor-client/pkg/helloexec"
)

// maxSubmitAttempts bounds the rebuild-and-retry loop when a concurrent
// publish consumes our predicted sequence before the transaction lands.
const maxSubmitAttempts = 3

// Submission is the handle returned by a successful publish: the transaction
// signature (fed to the relay status poller) and the assigned sequence (fed
// to the attestation poller). Sequence is always the value read back from
// chain state, never the pre-submission prediction.
type Submission struct {
	Signature solana.Signature
	Sequence  uint64
}

// TxID renders the signature the way the Executor status API keys it.
func (s *Submission) TxID() string {
	return s.Signature.String()
}

// SubmitGreeting publishes a greeting and, when relay is non-nil, submits
// the relay request in the same transaction. Bundling makes the pair an
// atomic intent: either the message is published and paid for, or nothing
// happened. Callers that need the resumable intermediate state (published
// but not yet paid) pass a nil relay and follow up with SubmitRelayRequest.
//
// The returned error may be a *SequenceRaceError with a non-nil Submission:
// the publish succeeded but another publish interleaved, so dependent
// accounts derived from the prediction must be recomputed from
// Submission.Sequence.
//
// A *SubmissionUnconfirmedError means the transaction's fate could not be
// established within the confirmation window. It is never retried here: the
// publish and the payment may have happened, and the error carries the
// signature so the caller can resume by polling it out of band.
func (c *Client) SubmitGreeting(ctx context.Context, greeting string, relay *executor.RelayRequest, payee solana.PublicKey) (*Submission, error) {
	var lastErr error
	for attempt := 0; attempt < maxSubmitAttempts; attempt++ {
		current, err := c.ReadSequence(ctx)
		if err != nil {
			return nil, fmt.Errorf("read sequence: %w", err)
		}
		predicted := NextForSubmission(current)

		sendIx, err := c.Program.SendGreeting(c.signer.PublicKey(), predicted, greeting)
		if err != nil {
			return nil, err
		}
		instructions := []solana.Instruction{sendIx}

		if relay != nil {
			relayIx, err := c.Program.RequestRelay(c.signer.PublicKey(), payee, helloexecRelayArgs(relay))
			if err != nil {
				return nil, err
			}
			instructions = append(instructions, relayIx)
		}

		c.logger.Info("submitting greeting",
			zap.Uint64("predicted_sequence", predicted),
			zap.Int("greeting_len", len(greeting)),
			zap.Bool("with_relay_request", relay != nil),
			zap.Int("attempt", attempt))

		sig, err := c.sendAndConfirm(ctx, instructions)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			var unconfirmed *SubmissionUnconfirmedError
			if errors.As(err, &unconfirmed) {
				// The transaction was accepted and may still land after
				// the window. Resubmitting over it could publish and pay
				// twice, so establish its fate first.
				switch c.recheckSignature(ctx, sig) {
				case fateLanded:
					// Confirmed late. Proceed to the readback below.
				case fateFailed:
					// Failed on chain; no state changed. Safe to rebuild.
					c.logger.Warn("unconfirmed transaction failed on chain, rebuilding from fresh sequence",
						zap.Stringer("signature", sig),
						zap.Uint64("predicted_sequence", predicted))
					lastErr = err
					continue
				default:
					// Fate unknown: the publish and the payment may have
					// happened. Surface the signature as a resumable
					// handle instead of resubmitting.
					return nil, err
				}
			} else {
				// A concurrent publish invalidates the message account we
				// derived from the prediction and fails the transaction on
				// chain. Re-read and rebuild.
				c.logger.Warn("greeting submission failed, rebuilding from fresh sequence",
					zap.Uint64("predicted_sequence", predicted), zap.Error(err))
				lastErr = err
				continue
			}
		}

		readback, err := c.ReadSequence(ctx)
		if err != nil {
			return nil, fmt.Errorf("read back sequence after publish: %w", err)
		}
		sub := &Submission{Signature: sig, Sequence: readback}
		if err := VerifyAssigned(predicted, readback); err != nil {
			// The publish itself succeeded; surface the race with the
			// actual sequence so the caller re-derives and proceeds.
			return sub, err
		}
		return sub, nil
	}
	return nil, fmt.Errorf("greeting submission failed after %d attempts: %w", maxSubmitAttempts, lastErr)
}

// SubmitRelayRequest submits a relay request for the most recently published
// message, paying the quote's payee. Used for the resumable "published but
// not yet requested" state and for underpaid retries with a fresh quote.
func (c *Client) SubmitRelayRequest(ctx context.Context, relay *executor.RelayRequest, payee solana.PublicKey) (*Submission, error) {
	current, err := c.ReadSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sequence: %w", err)
	}
	if current == 0 {
		return nil, ErrNoMessages
	}

	relayIx, err := c.Program.RequestRelay(c.signer.PublicKey(), payee, helloexecRelayArgs(relay))
	if err != nil {
		return nil, err
	}

	c.logger.Info("submitting relay request",
		zap.Uint64("sequence", current),
		zap.Uint64("payment_lamports", relay.PaymentAmount),
		zap.Stringer("payee", payee))

	sig, err := c.sendAndConfirm(ctx, []solana.Instruction{relayIx})
	if err != nil {
		return nil, err
	}
	return &Submission{Signature: sig, Sequence: current}, nil
}

// IsSequenceRace reports whether err is a sequence race, unwrapping as
// needed.
func IsSequenceRace(err error) bool {
	var race *SequenceRaceError
	return errors.As(err, &race)
}

func helloexecRelayArgs(relay *executor.RelayRequest) helloexec.RequestRelayArgs {
	return helloexec.RequestRelayArgs{
		DstChain:          uint16(relay.DstChain),
		ExecAmount:        relay.PaymentAmount,
		SignedQuoteBytes:  relay.SignedQuoteBytes,
		RelayInstructions: relay.RelayInstructions,
	}
}
