// Package attestation polls the guardian attestation index (Wormholescan)
// for signed VAAs by (emitter chain, emitter address, sequence).
package attestation

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tidwall/gjson"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wormhole-foundation/hello-executor-client/pkg/common"
)

const (
	// MainnetAPI and TestnetAPI are the public Wormholescan deployments.
	MainnetAPI = "https://api.wormholescan.io"
	TestnetAPI = "https://api.testnet.wormholescan.io"

	httpTimeout = 10 * time.Second

	pollInitialInterval = 5 * time.Second
	pollMaxInterval     = 30 * time.Second

	// The public index is shared infrastructure; cap our request rate.
	requestsPerSecond = 2
)

var (
	attestationPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helloexec_wormholescan_polls_total",
			Help: "Total number of VAA lookups against the attestation index",
		}, []string{"result"})
	attestationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "helloexec_wormholescan_latency",
			Help: "Latency histogram for attestation index lookups",
		})
)

// Attestation is a guardian-signed proof that a message was published,
// fetched from the index. Raw is the full serialized VAA as the destination
// chain expects it.
type Attestation struct {
	VAA *vaa.VAA
	Raw []byte
	// IndexedAt is the index's own timestamp for the VAA, when provided.
	IndexedAt time.Time
}

// Client looks up attestations on Wormholescan.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewClient builds a client for the given environment's public index.
func NewClient(env common.Environment, logger *zap.Logger) *Client {
	base := TestnetAPI
	if env == common.MainNet {
		base = MainnetAPI
	}
	return NewClientWithURL(base, logger)
}

func NewClientWithURL(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: httpTimeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:  logger.With(zap.String("component", "AttestationClient")),
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fetch looks up a single attestation. A nil result with nil error means the
// attestation is not yet indexed (the index returns 404 while pending).
func (c *Client) Fetch(ctx context.Context, chain vaa.ChainID, emitter vaa.Address, sequence uint64) (*Attestation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v1/vaas/%d/%s/%d", c.baseURL, chain, emitter.String(), sequence)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build attestation request: %w", err)
	}
	req.Header.Add("Accept", "*/*")

	start := time.Now()
	resp, err := c.client.Do(req)
	attestationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		attestationPolls.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("attestation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		attestationPolls.WithLabelValues("pending").Inc()
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		attestationPolls.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("attestation request: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		attestationPolls.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("read attestation response: %w", err)
	}

	vaaB64 := gjson.GetBytes(body, "data.vaa")
	if !vaaB64.Exists() {
		attestationPolls.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("attestation response has no data.vaa field")
	}
	raw, err := base64.StdEncoding.DecodeString(vaaB64.String())
	if err != nil {
		attestationPolls.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("attestation vaa is not base64: %w", err)
	}
	v, err := vaa.Unmarshal(raw)
	if err != nil {
		attestationPolls.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("unmarshal vaa: %w", err)
	}

	// The index served it, but verify it is the attestation we asked for
	// before anyone acts on it.
	if v.EmitterChain != chain || v.EmitterAddress != emitter || v.Sequence != sequence {
		attestationPolls.WithLabelValues("mismatch").Inc()
		return nil, fmt.Errorf("index returned attestation for (%s, %s, %d), requested (%s, %s, %d)",
			v.EmitterChain, v.EmitterAddress, v.Sequence, chain, emitter, sequence)
	}

	att := &Attestation{VAA: v, Raw: raw}
	if ts := gjson.GetBytes(body, "data.timestamp"); ts.Exists() {
		if t, err := time.Parse(time.RFC3339, ts.String()); err == nil {
			att.IndexedAt = t
		}
	}

	attestationPolls.WithLabelValues("found").Inc()
	return att, nil
}

// WaitForAttestation polls the index until the attestation appears or the
// timeout elapses. A timeout returns (nil, nil): guardians may still sign
// later, and the caller decides whether to re-poll. Cancellation is honored
// between polls.
func (c *Client) WaitForAttestation(ctx context.Context, chain vaa.ChainID, emitter vaa.Address, sequence uint64, timeout time.Duration) (*Attestation, error) {
	deadline := c.now().Add(timeout)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = pollInitialInterval
	bo.MaxInterval = pollMaxInterval
	bo.MaxElapsedTime = 0

	for {
		att, err := c.Fetch(ctx, chain, emitter, sequence)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("attestation poll failed, will retry",
				zap.Stringer("chain", chain),
				zap.Stringer("emitter", emitter),
				zap.Uint64("sequence", sequence),
				zap.Error(err))
		} else if att != nil {
			c.logger.Info("attestation found",
				zap.Stringer("chain", chain),
				zap.Uint64("sequence", sequence),
				zap.Int("num_signatures", len(att.VAA.Signatures)))
			return att, nil
		}

		if !c.now().Before(deadline) {
			return nil, nil
		}
		if err := c.sleep(ctx, bo.NextBackOff()); err != nil {
			return nil, err
		}
	}
}
