// Package executor is the client side of the Wormhole Executor relay
// service: quote retrieval and validation, relay instruction encoding,
// relay request assembly and delivery status polling. The service's
// internal pricing and execution engine is out of scope; this package only
// parses as much of the wire formats as the client must understand to pay
// correctly and observe outcomes.
package executor

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tidwall/gjson"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-foundation/hello-executor-client/pkg/universal"
)

const (
	// signedQuotePrefix is the 4-byte ASCII format tag of a v1 signed quote.
	signedQuotePrefix = "EQ01"

	signedQuoteLen = 165

	quoteHTTPTimeout = 10 * time.Second
)

var (
	quoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helloexec_executor_quote_requests_total",
			Help: "Total number of quote requests sent to the Executor API",
		}, []string{"result"})
	quoteLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "helloexec_executor_quote_latency",
			Help: "Latency histogram for Executor quote requests",
		})
)

// SignedQuote is a priced delivery quote signed by the Executor. The blob is
// passed back to the relay request verbatim; the parsed fields exist so the
// client can validate the payee and derive the payment amount without
// trusting the service blindly.
type SignedQuote struct {
	// Raw is the full quote blob, including the signature. This is what the
	// relay request must carry, byte for byte.
	Raw []byte

	Quoter      [20]byte
	Payee       [32]byte
	SrcChain    vaa.ChainID
	DstChain    vaa.ChainID
	ExpiryTime  time.Time
	BaseFee     uint64
	DstGasPrice uint64
	SrcPrice    uint64
	DstPrice    uint64
}

// ParseSignedQuote decodes the minimum fields the client needs from a signed
// quote blob. Unknown format tags are rejected rather than guessed at.
func ParseSignedQuote(raw []byte) (*SignedQuote, error) {
	if len(raw) != signedQuoteLen {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrQuoteMalformed, len(raw), signedQuoteLen)
	}
	if string(raw[0:4]) != signedQuotePrefix {
		return nil, fmt.Errorf("%w: unknown format tag %q", ErrQuoteMalformed, string(raw[0:4]))
	}
	q := &SignedQuote{
		Raw:         append([]byte{}, raw...),
		SrcChain:    vaa.ChainID(binary.BigEndian.Uint16(raw[56:58])),
		DstChain:    vaa.ChainID(binary.BigEndian.Uint16(raw[58:60])),
		ExpiryTime:  time.Unix(int64(binary.BigEndian.Uint64(raw[60:68])), 0).UTC(), // #nosec G115 -- service timestamps fit in int64
		BaseFee:     binary.BigEndian.Uint64(raw[68:76]),
		DstGasPrice: binary.BigEndian.Uint64(raw[76:84]),
		SrcPrice:    binary.BigEndian.Uint64(raw[84:92]),
		DstPrice:    binary.BigEndian.Uint64(raw[92:100]),
	}
	copy(q.Quoter[:], raw[4:24])
	copy(q.Payee[:], raw[24:56])
	return q, nil
}

// Expired reports whether the quote's validity window has passed at the
// given instant.
func (q *SignedQuote) Expired(now time.Time) bool {
	return now.After(q.ExpiryTime)
}

// DecodePayee extracts and validates the quote's payee for the chain family
// it will be paid on. A quote whose payee was generated for the wrong chain
// family is a well-formed blob but an invalid payee; it must never be paid.
//
// For SVM payees the field must be a full 32-byte key: a value with twelve
// leading zero bytes is a left-padded 20-byte identity from the wrong
// family, which is exactly the observed fund-draining failure mode.
func (q *SignedQuote) DecodePayee(family universal.ChainFamily) (vaa.Address, error) {
	var payee vaa.Address
	copy(payee[:], q.Payee[:])

	if universal.IsZero(payee) {
		return vaa.Address{}, fmt.Errorf("%w: zero payee", ErrInvalidPayeeFormat)
	}

	var pad [12]byte
	padded := bytes.Equal(payee[:12], pad[:])

	switch family {
	case universal.FamilySVM:
		if padded {
			return vaa.Address{}, fmt.Errorf("%w: payee %s looks like a left-padded 20-byte address, not a native 32-byte key", ErrInvalidPayeeFormat, payee)
		}
	case universal.FamilyEVM:
		if !padded {
			return vaa.Address{}, fmt.Errorf("%w: payee %s is not a left-padded 20-byte address", ErrInvalidPayeeFormat, payee)
		}
	default:
		return vaa.Address{}, fmt.Errorf("%w: unknown chain family %s", ErrInvalidPayeeFormat, family)
	}
	return payee, nil
}

// EstimatePayment computes the source-chain payment amount for this quote
// and the given relay parameters, plus destinationAllowance for the
// destination chain's rent/storage model. The amount is always derived from
// the quote's own price fields; hardcoded estimates are a known source of
// underpaid outcomes.
func (q *SignedQuote) EstimatePayment(ri *RelayInstructions, destinationAllowance uint64) (uint64, error) {
	if q.SrcPrice == 0 {
		return 0, fmt.Errorf("%w: zero source price", ErrQuoteMalformed)
	}

	// dstCost = gasLimit*dstGasPrice + msgValue, in destination native units.
	dstCost := new(big.Int).Mul(ri.GasLimit, new(big.Int).SetUint64(q.DstGasPrice))
	dstCost.Add(dstCost, ri.MsgValue)
	dstCost.Add(dstCost, new(big.Int).SetUint64(destinationAllowance))

	// Convert to source native units via the quoted price ratio, rounding up.
	src := dstCost.Mul(dstCost, new(big.Int).SetUint64(q.DstPrice))
	src.Add(src, new(big.Int).SetUint64(q.SrcPrice-1))
	src.Div(src, new(big.Int).SetUint64(q.SrcPrice))
	src.Add(src, new(big.Int).SetUint64(q.BaseFee))

	if !src.IsUint64() {
		return 0, fmt.Errorf("payment amount overflows u64: %s", src)
	}
	return src.Uint64(), nil
}

// QuoteClient fetches signed quotes from the Executor API.
type QuoteClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewQuoteClient(baseURL string, logger *zap.Logger) *QuoteClient {
	return &QuoteClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: quoteHTTPTimeout},
		logger:  logger.With(zap.String("component", "QuoteClient")),
	}
}

type quoteRequest struct {
	SrcChain          uint16 `json:"srcChain"`
	DstChain          uint16 `json:"dstChain"`
	RelayInstructions string `json:"relayInstructions,omitempty"`
}

// GetQuote requests a signed quote for a delivery from srcChain to dstChain
// with the given relay parameters. The exact relayInstructions bytes passed
// here must be submitted with the relay request, or the service rejects the
// request as a quote mismatch.
func (c *QuoteClient) GetQuote(ctx context.Context, srcChain, dstChain vaa.ChainID, ri *RelayInstructions) (*SignedQuote, error) {
	riBytes, err := ri.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode relay instructions: %w", err)
	}

	body, err := json.Marshal(quoteRequest{
		SrcChain:          uint16(srcChain),
		DstChain:          uint16(dstChain),
		RelayInstructions: "0x" + hex.EncodeToString(riBytes),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal quote request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v0/quote", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build quote request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	quoteLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		quoteRequests.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		quoteRequests.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("%w: status %d", ErrQuoteUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		quoteRequests.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("%w: read response: %v", ErrQuoteUnavailable, err)
	}

	quoteHex := gjson.GetBytes(raw, "signedQuote")
	if !quoteHex.Exists() {
		quoteRequests.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("%w: response has no signedQuote field", ErrQuoteMalformed)
	}
	quoteBytes, err := hex.DecodeString(trimHexPrefix(quoteHex.String()))
	if err != nil {
		quoteRequests.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("%w: signedQuote is not hex: %v", ErrQuoteMalformed, err)
	}

	quote, err := ParseSignedQuote(quoteBytes)
	if err != nil {
		quoteRequests.WithLabelValues("malformed").Inc()
		return nil, err
	}
	quoteRequests.WithLabelValues("ok").Inc()

	c.logger.Debug("fetched signed quote",
		zap.Stringer("src_chain", quote.SrcChain),
		zap.Stringer("dst_chain", quote.DstChain),
		zap.Time("expiry", quote.ExpiryTime),
		zap.Uint64("base_fee", quote.BaseFee),
		zap.String("estimated_cost", gjson.GetBytes(raw, "estimatedCost").String()),
	)

	return quote, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
