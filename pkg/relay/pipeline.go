// Package relay orchestrates an end-to-end delivery: quote, publish,
// attestation, and delivery confirmation. The pipeline composes the chain
// and service clients behind narrow interfaces so each stage can be
// exercised in isolation.
package relay

import (
	"context"
	"fmt"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-foundation/hello-executor-client/pkg/attestation"
	"github.com/wormhole-foundation/hello-executor-client/pkg/executor"
	"github.com/wormhole-foundation/hello-executor-client/pkg/helloexec"
	"github.com/wormhole-foundation/hello-executor-client/pkg/svm"
	"github.com/wormhole-foundation/hello-executor-client/pkg/universal"
)

// Publisher is the source-chain surface the pipeline needs. *svm.Client
// satisfies it.
type Publisher interface {
	Peer(ctx context.Context, chain vaa.ChainID) (*helloexec.Peer, error)
	SubmitGreeting(ctx context.Context, greeting string, relay *executor.RelayRequest, payee solana.PublicKey) (*svm.Submission, error)
	SubmitRelayRequest(ctx context.Context, relay *executor.RelayRequest, payee solana.PublicKey) (*svm.Submission, error)
}

// Quoter fetches signed quotes. *executor.QuoteClient satisfies it.
type Quoter interface {
	GetQuote(ctx context.Context, srcChain, dstChain vaa.ChainID, ri *executor.RelayInstructions) (*executor.SignedQuote, error)
}

// AttestationWaiter polls the attestation index. *attestation.Client
// satisfies it.
type AttestationWaiter interface {
	WaitForAttestation(ctx context.Context, chain vaa.ChainID, emitter vaa.Address, sequence uint64, timeout time.Duration) (*attestation.Attestation, error)
}

// DeliveryWaiter polls the Executor status API. *executor.StatusClient
// satisfies it.
type DeliveryWaiter interface {
	WaitForDelivery(ctx context.Context, srcChain vaa.ChainID, txID string, timeout time.Duration) (executor.DeliveryOutcome, error)
}

// ManualDeliverer submits an attested message to the destination contract
// directly. *evm.Client satisfies it. Optional; the pipeline works without
// one, it just cannot fall back when the Executor gives up.
type ManualDeliverer interface {
	ReceiveMessage(ctx context.Context, attestedMessage []byte) (ethcommon.Hash, error)
}

// Pipeline runs outbound deliveries. SrcChain and Emitter identify the
// local program as the attestation index keys it.
type Pipeline struct {
	SrcChain vaa.ChainID
	Emitter  vaa.Address

	Publisher    Publisher
	Quoter       Quoter
	Attestations AttestationWaiter
	Status       DeliveryWaiter
	Manual       ManualDeliverer

	Logger *zap.Logger
}

// SendParams are the per-message knobs for Send.
type SendParams struct {
	Greeting string
	DstChain vaa.ChainID

	// GasLimit and MsgValue become the relay instructions sent with the
	// quote request and the on-chain relay request, byte for byte.
	GasLimit uint64
	MsgValue uint64

	// DestinationAllowance is extra destination-chain value to price into
	// the payment on top of MsgValue. Usually zero.
	DestinationAllowance uint64

	AttestationTimeout time.Duration
	DeliveryTimeout    time.Duration

	// UnderpaidRetries is how many times an underpaid outcome is retried
	// with a fresh quote and payment before being surfaced as terminal.
	UnderpaidRetries int

	// ManualFallback delivers the attested message directly when the
	// Executor outcome is failed or timed out and a ManualDeliverer is
	// configured.
	ManualFallback bool
}

// Result is everything a caller needs to reason about what happened:
// the source transaction, the assigned sequence, the attestation, and the
// terminal outcome. ManualTxID is set only when the manual fallback ran.
type Result struct {
	SourceTxID  string
	Sequence    uint64
	Raced       bool
	Attestation *attestation.Attestation
	Outcome     executor.DeliveryOutcome
	ManualTxID  string
}

const (
	defaultAttestationTimeout = 5 * time.Minute
	defaultDeliveryTimeout    = 10 * time.Minute
)

// Send runs the full pipeline for one greeting: price the delivery, publish
// and pay in one transaction, wait for the attestation, then wait for the
// Executor to land it. A sequence race during publish is recovered by
// re-deriving from the read-back sequence rather than failing the send.
func (p *Pipeline) Send(ctx context.Context, params SendParams) (*Result, error) {
	if params.AttestationTimeout == 0 {
		params.AttestationTimeout = defaultAttestationTimeout
	}
	if params.DeliveryTimeout == 0 {
		params.DeliveryTimeout = defaultDeliveryTimeout
	}
	logger := p.Logger.With(
		zap.Stringer("dst_chain", params.DstChain),
		zap.Int("greeting_len", len(params.Greeting)))

	// Refuse to publish toward a chain with no registered routing target.
	// The message would attest fine and then be undeliverable.
	if _, err := p.Publisher.Peer(ctx, params.DstChain); err != nil {
		return nil, fmt.Errorf("destination %s has no registered peer: %w", params.DstChain, err)
	}

	ri := executor.NewRelayInstructions(params.GasLimit, params.MsgValue)
	req, payee, err := p.priceDelivery(ctx, params, ri)
	if err != nil {
		return nil, err
	}

	sub, err := p.Publisher.SubmitGreeting(ctx, params.Greeting, req, payee)
	result := &Result{}
	switch {
	case err == nil:
	case svm.IsSequenceRace(err) && sub != nil:
		// The publish landed; only the prediction was wrong. Everything
		// downstream keys on the read-back sequence, so carry on.
		logger.Warn("sequence race during publish, continuing with assigned sequence",
			zap.Uint64("sequence", sub.Sequence),
			zap.Error(err))
		result.Raced = true
	default:
		return nil, fmt.Errorf("publish greeting: %w", err)
	}
	result.SourceTxID = sub.TxID()
	result.Sequence = sub.Sequence
	logger = logger.With(
		zap.String("source_tx", result.SourceTxID),
		zap.Uint64("sequence", result.Sequence))

	att, err := p.Attestations.WaitForAttestation(ctx, p.SrcChain, p.Emitter, sub.Sequence, params.AttestationTimeout)
	if err != nil {
		return result, fmt.Errorf("wait for attestation of sequence %d: %w", sub.Sequence, err)
	}
	if att == nil {
		result.Outcome = executor.DeliveryOutcome{Kind: executor.OutcomeTimedOut}
		logger.Warn("attestation did not appear before timeout")
		return result, nil
	}
	result.Attestation = att
	logger.Info("message attested")

	outcome, err := p.Status.WaitForDelivery(ctx, p.SrcChain, result.SourceTxID, params.DeliveryTimeout)
	if err != nil {
		return result, fmt.Errorf("wait for delivery: %w", err)
	}
	result.Outcome = outcome

	for retry := 0; outcome.Kind == executor.OutcomeUnderpaid && retry < params.UnderpaidRetries; retry++ {
		logger.Warn("delivery underpaid, retrying with fresh quote",
			zap.Int("retry", retry+1),
			zap.String("failure_cause", outcome.FailureCause))
		outcome, err = p.retryUnderpaid(ctx, params, ri, result)
		if err != nil {
			return result, err
		}
		result.Outcome = outcome
	}

	if result.Outcome.Kind == executor.OutcomeDelivered {
		logger.Info("delivered", zap.String("destination_tx", result.Outcome.DestinationTxID))
		return result, nil
	}

	if params.ManualFallback && p.Manual != nil &&
		(result.Outcome.Kind == executor.OutcomeFailed || result.Outcome.Kind == executor.OutcomeTimedOut) {
		logger.Warn("executor did not deliver, attempting manual delivery",
			zap.Stringer("outcome", result.Outcome.Kind),
			zap.String("failure_cause", result.Outcome.FailureCause))
		txHash, err := p.Manual.ReceiveMessage(ctx, att.Raw)
		if err != nil {
			return result, fmt.Errorf("manual delivery: %w", err)
		}
		result.ManualTxID = txHash.Hex()
		result.Outcome = executor.DeliveryOutcome{
			Kind:            executor.OutcomeDelivered,
			DestinationTxID: result.ManualTxID,
		}
		logger.Info("manual delivery succeeded", zap.String("destination_tx", result.ManualTxID))
	}

	return result, nil
}

// priceDelivery fetches a fresh quote, validates its payee for the source
// chain family, and assembles the payment-carrying request.
func (p *Pipeline) priceDelivery(ctx context.Context, params SendParams, ri *executor.RelayInstructions) (*executor.RelayRequest, solana.PublicKey, error) {
	quote, err := p.Quoter.GetQuote(ctx, p.SrcChain, params.DstChain, ri)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("quote delivery to %s: %w", params.DstChain, err)
	}

	if quote.Expired(time.Now()) {
		return nil, solana.PublicKey{}, fmt.Errorf("%w: expired %s", executor.ErrQuoteExpired, quote.ExpiryTime)
	}

	srcFamily, err := universal.FamilyForChain(p.SrcChain)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	payeeUniversal, err := quote.DecodePayee(srcFamily)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("quote payee rejected: %w", err)
	}

	payment, err := quote.EstimatePayment(ri, params.DestinationAllowance)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}

	riBytes, err := ri.Encode()
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	req, err := executor.BuildRequest(params.DstChain, payment, quote, riBytes)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}

	p.Logger.Info("delivery priced",
		zap.Stringer("dst_chain", params.DstChain),
		zap.Uint64("payment", payment),
		zap.Stringer("payee", payeeUniversal))
	return req, solana.PublicKey(payeeUniversal), nil
}

// retryUnderpaid re-prices the already-published message and submits a new
// relay request in its own transaction, then waits on the new transaction.
// The message and its attestation are unchanged; only the payment is new.
func (p *Pipeline) retryUnderpaid(ctx context.Context, params SendParams, ri *executor.RelayInstructions, result *Result) (executor.DeliveryOutcome, error) {
	req, payee, err := p.priceDelivery(ctx, params, ri)
	if err != nil {
		return executor.DeliveryOutcome{}, fmt.Errorf("re-price underpaid delivery: %w", err)
	}

	sub, err := p.Publisher.SubmitRelayRequest(ctx, req, payee)
	if err != nil {
		return executor.DeliveryOutcome{}, fmt.Errorf("resubmit relay request: %w", err)
	}

	outcome, err := p.Status.WaitForDelivery(ctx, p.SrcChain, sub.TxID(), params.DeliveryTimeout)
	if err != nil {
		return executor.DeliveryOutcome{}, fmt.Errorf("wait for retried delivery: %w", err)
	}
	return outcome, nil
}

// DeliverManually fetches the attestation for an already-published sequence
// and submits it to the destination contract directly. The recovery path
// for messages the Executor never picked up.
func (p *Pipeline) DeliverManually(ctx context.Context, sequence uint64, timeout time.Duration) (string, error) {
	if p.Manual == nil {
		return "", fmt.Errorf("no destination client configured for manual delivery")
	}
	if timeout == 0 {
		timeout = defaultAttestationTimeout
	}

	att, err := p.Attestations.WaitForAttestation(ctx, p.SrcChain, p.Emitter, sequence, timeout)
	if err != nil {
		return "", fmt.Errorf("fetch attestation for sequence %d: %w", sequence, err)
	}
	if att == nil {
		return "", fmt.Errorf("sequence %d is not attested yet", sequence)
	}

	txHash, err := p.Manual.ReceiveMessage(ctx, att.Raw)
	if err != nil {
		return "", fmt.Errorf("manual delivery of sequence %d: %w", sequence, err)
	}
	return txHash.Hex(), nil
}
