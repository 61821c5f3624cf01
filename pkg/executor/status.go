package executor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tidwall/gjson"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-foundation/hello-executor-client/pkg/common"
)

// OutcomeKind is the terminal classification of a relay attempt.
type OutcomeKind uint8

const (
	OutcomePending OutcomeKind = iota
	OutcomeDelivered
	OutcomeFailed
	OutcomeUnderpaid
	OutcomeTimedOut
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePending:
		return "pending"
	case OutcomeDelivered:
		return "delivered"
	case OutcomeFailed:
		return "failed"
	case OutcomeUnderpaid:
		return "underpaid"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("unknown outcome: %d", uint8(k))
	}
}

// DeliveryOutcome is the terminal result of a relay attempt. FailureCause is
// the service-reported diagnostic, surfaced verbatim; the client does not
// interpret chain-specific causes.
type DeliveryOutcome struct {
	Kind            OutcomeKind
	DestinationTxID string
	FailureCause    string
}

// Terminal reports whether polling should stop.
func (o DeliveryOutcome) Terminal() bool {
	return o.Kind != OutcomePending
}

var (
	statusPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helloexec_executor_status_polls_total",
			Help: "Total number of status polls against the Executor API",
		}, []string{"result"})
)

const (
	statusHTTPTimeout = 10 * time.Second

	statusPollInitialInterval = 3 * time.Second
	statusPollMaxInterval     = 15 * time.Second
)

// StatusClient polls the Executor's transaction status endpoint.
type StatusClient struct {
	baseURL string
	env     common.Environment
	client  *http.Client
	logger  *zap.Logger

	// sleep and now are swappable so poll-loop tests run without real
	// waits.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewStatusClient(baseURL string, env common.Environment, logger *zap.Logger) *StatusClient {
	return &StatusClient{
		baseURL: baseURL,
		env:     env,
		client:  &http.Client{Timeout: statusHTTPTimeout},
		logger:  logger.With(zap.String("component", "StatusClient")),
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

// PollOnce queries the status endpoint a single time. Every poll is an
// idempotent read; a non-terminal or missing status is OutcomePending.
func (c *StatusClient) PollOnce(ctx context.Context, srcChain vaa.ChainID, txID string) (DeliveryOutcome, error) {
	// The GET form takes the chain name, unlike the quote request's numeric
	// chain IDs.
	q := url.Values{}
	q.Set("srcChain", srcChain.String())
	q.Set("txHash", txID)
	q.Set("env", c.env.ExecutorName())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v0/status/tx?"+q.Encode(), nil)
	if err != nil {
		return DeliveryOutcome{}, fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		statusPolls.WithLabelValues("error").Inc()
		return DeliveryOutcome{}, fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()

	// The service returns 404 until it has discovered the request; that is
	// still pending, not an error.
	if resp.StatusCode == http.StatusNotFound {
		statusPolls.WithLabelValues("not_found").Inc()
		return DeliveryOutcome{Kind: OutcomePending}, nil
	}
	if resp.StatusCode != http.StatusOK {
		statusPolls.WithLabelValues("error").Inc()
		return DeliveryOutcome{}, fmt.Errorf("status request: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		statusPolls.WithLabelValues("error").Inc()
		return DeliveryOutcome{}, fmt.Errorf("read status response: %w", err)
	}

	outcome := DeliveryOutcome{Kind: OutcomePending}
	for _, entry := range gjson.ParseBytes(body).Array() {
		status := strings.ToLower(entry.Get("status").String())
		switch status {
		case "delivered", "success", "executed":
			outcome = DeliveryOutcome{
				Kind:            OutcomeDelivered,
				DestinationTxID: entry.Get("txHash").String(),
			}
		case "failed", "simulation failed":
			outcome = DeliveryOutcome{
				Kind:         OutcomeFailed,
				FailureCause: entry.Get("failureCause").String(),
			}
		case "underpaid":
			outcome = DeliveryOutcome{Kind: OutcomeUnderpaid}
		case "pending", "submitted", "":
			// Non-terminal, keep polling.
		default:
			c.logger.Warn("unrecognized relay status, treating as pending",
				zap.String("status", status), zap.String("tx", txID))
		}
		if outcome.Terminal() {
			break
		}
	}

	statusPolls.WithLabelValues(outcome.Kind.String()).Inc()
	return outcome, nil
}

// WaitForDelivery polls until a terminal status appears or the timeout
// elapses. Timeout yields OutcomeTimedOut, not an error: the relay may still
// succeed later and the caller can re-poll out of band. Transient poll
// errors are logged and retried; cancellation is honored between polls.
func (c *StatusClient) WaitForDelivery(ctx context.Context, srcChain vaa.ChainID, txID string, timeout time.Duration) (DeliveryOutcome, error) {
	deadline := c.now().Add(timeout)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = statusPollInitialInterval
	bo.MaxInterval = statusPollMaxInterval
	bo.MaxElapsedTime = 0

	for {
		outcome, err := c.PollOnce(ctx, srcChain, txID)
		if err != nil {
			if ctx.Err() != nil {
				return DeliveryOutcome{}, ctx.Err()
			}
			c.logger.Warn("status poll failed, will retry",
				zap.String("tx", txID), zap.Error(err))
		} else if outcome.Terminal() {
			return outcome, nil
		}

		if !c.now().Before(deadline) {
			return DeliveryOutcome{Kind: OutcomeTimedOut}, nil
		}
		if err := c.sleep(ctx, bo.NextBackOff()); err != nil {
			return DeliveryOutcome{}, err
		}
	}
}
