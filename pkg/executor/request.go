package executor

import (
	"bytes"
	"fmt"

	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// RelayRequest is the assembled, payment-carrying request submitted on chain
// for the Executor to discover. Created once per outbound message and never
// mutated.
type RelayRequest struct {
	DstChain          vaa.ChainID
	PaymentAmount     uint64
	SignedQuoteBytes  []byte
	RelayInstructions []byte
}

// BuildRequest assembles a relay request from a validated quote and the
// relay instruction bytes that were quoted. Pure assembly, no I/O. The
// instruction bytes must be byte-identical to the ones sent with the quote
// request; a re-encode from different values is a quote mismatch the
// service will reject.
func BuildRequest(dstChain vaa.ChainID, paymentAmount uint64, quote *SignedQuote, relayInstructions []byte) (*RelayRequest, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return nil, fmt.Errorf("signed quote is required")
	}
	if dstChain != quote.DstChain {
		return nil, fmt.Errorf("destination chain %s does not match quoted chain %s", dstChain, quote.DstChain)
	}
	if _, err := DecodeRelayInstructions(relayInstructions); err != nil {
		return nil, fmt.Errorf("relay instructions: %w", err)
	}
	if paymentAmount == 0 {
		return nil, fmt.Errorf("payment amount must be positive")
	}
	return &RelayRequest{
		DstChain:          dstChain,
		PaymentAmount:     paymentAmount,
		SignedQuoteBytes:  append([]byte{}, quote.Raw...),
		RelayInstructions: append([]byte{}, relayInstructions...),
	}, nil
}

// MatchesQuote reports whether the request still carries the given quote's
// bytes unchanged.
func (r *RelayRequest) MatchesQuote(quote *SignedQuote) bool {
	return bytes.Equal(r.SignedQuoteBytes, quote.Raw)
}
