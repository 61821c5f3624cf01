// Package svm drives the hello-executor program on an SVM chain: sequence
// tracking, message submission, relay requests and peer registration. All
// counters live in chain state owned by a remote, possibly concurrently
// written system, so correctness comes from read-verify-retry, not locking.
package svm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/wormhole-foundation/hello-executor-client/pkg/helloexec"
)

const (
	rpcTimeout = 10 * time.Second

	confirmPollInterval = 2 * time.Second
	confirmTimeout      = 90 * time.Second
)

var (
	rpcLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "helloexec_svm_rpc_latency",
			Help: "Latency histogram for SVM RPC calls",
		}, []string{"operation"})
	txSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helloexec_svm_transactions_total",
			Help: "Total number of transactions submitted to the SVM chain",
		}, []string{"result"})
)

// Client wraps an RPC connection to an SVM chain together with the
// hello-executor program bindings and the signing key.
type Client struct {
	Program *helloexec.Program

	rpcClient  *rpc.Client
	wsURL      string
	signer     solana.PrivateKey
	commitment rpc.CommitmentType
	logger     *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewClient(rpcURL, wsURL string, program *helloexec.Program, signer solana.PrivateKey, logger *zap.Logger) *Client {
	return &Client{
		Program:    program,
		rpcClient:  rpc.New(rpcURL),
		wsURL:      wsURL,
		signer:     signer,
		commitment: rpc.CommitmentConfirmed,
		logger:     logger.With(zap.String("component", "SVMClient")),
		sleep:      sleepCtx,
		now:        time.Now,
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

// Signer returns the public key transactions are paid and signed with.
func (c *Client) Signer() solana.PublicKey {
	return c.signer.PublicKey()
}

// accountData fetches an account's raw data. Returns (nil, nil) if the
// account does not exist.
func (c *Client) accountData(ctx context.Context, key solana.PublicKey, op string) ([]byte, error) {
	rCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	start := time.Now()
	info, err := c.rpcClient.GetAccountInfoWithOpts(rCtx, key, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
	})
	rpcLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account %s: %w", key, err)
	}
	if info.Value == nil {
		return nil, nil
	}
	return info.Value.Data.GetBinary(), nil
}

// Config fetches and decodes the program's config account.
func (c *Client) Config(ctx context.Context) (*helloexec.Config, error) {
	data, err := c.accountData(ctx, c.Program.Config.Key, "get_config")
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNotInitialized
	}
	return helloexec.ParseConfig(data)
}

// BridgeFee reads the core bridge's message fee from its BridgeData
// account. BridgeData has no discriminator; the fee is a u64 LE at a fixed
// offset after the guardian set index, last lamports and expiration time.
func (c *Client) BridgeFee(ctx context.Context) (uint64, error) {
	data, err := c.accountData(ctx, c.Program.Bridge.Key, "get_bridge")
	if err != nil {
		return 0, err
	}
	if len(data) < 24 {
		return 0, fmt.Errorf("bridge data too short: %d bytes", len(data))
	}
	return binary.LittleEndian.Uint64(data[16:24]), nil
}

// sendAndConfirm signs and submits the instructions as one transaction and
// waits for it to reach the client's commitment level.
func (c *Client) sendAndConfirm(ctx context.Context, instructions []solana.Instruction) (solana.Signature, error) {
	rCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	recent, err := c.rpcClient.GetLatestBlockhash(rCtx, c.commitment)
	cancel()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, recent.Value.Blockhash, solana.TransactionPayer(c.signer.PublicKey()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(c.signer.PublicKey()) {
			return &c.signer
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	rCtx, cancel = context.WithTimeout(ctx, rpcTimeout)
	start := time.Now()
	sig, err := c.rpcClient.SendTransactionWithOpts(rCtx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	cancel()
	rpcLatency.WithLabelValues("send_transaction").Observe(time.Since(start).Seconds())
	if err != nil {
		txSubmissions.WithLabelValues("send_error").Inc()
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}

	c.logger.Debug("transaction submitted", zap.Stringer("signature", sig))

	if err := c.confirm(ctx, sig); err != nil {
		txSubmissions.WithLabelValues("confirm_error").Inc()
		return sig, err
	}
	txSubmissions.WithLabelValues("ok").Inc()
	return sig, nil
}

// confirm polls signature status until the transaction is confirmed or the
// confirmation window elapses. A window elapse is a SubmissionUnconfirmedError,
// not a plain failure: the transaction may still land.
func (c *Client) confirm(ctx context.Context, sig solana.Signature) error {
	deadline := c.now().Add(confirmTimeout)
	for {
		rCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
		start := time.Now()
		out, err := c.rpcClient.GetSignatureStatuses(rCtx, false, sig)
		cancel()
		rpcLatency.WithLabelValues("get_signature_statuses").Observe(time.Since(start).Seconds())
		if err == nil && len(out.Value) > 0 && out.Value[0] != nil {
			st := out.Value[0]
			if st.Err != nil {
				return fmt.Errorf("transaction %s failed on chain: %v", sig, st.Err)
			}
			if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed || st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		} else if err != nil {
			c.logger.Warn("signature status poll failed, will retry",
				zap.Stringer("signature", sig), zap.Error(err))
		}

		if !c.now().Before(deadline) {
			return &SubmissionUnconfirmedError{Signature: sig, Window: confirmTimeout}
		}
		if err := c.sleep(ctx, confirmPollInterval); err != nil {
			return err
		}
	}
}

// txFate classifies what became of a transaction whose confirmation window
// elapsed.
type txFate int

const (
	// fateUnknown: the transaction is neither confirmed nor known to have
	// failed. It may still land.
	fateUnknown txFate = iota
	// fateLanded: confirmed after the window, without an on-chain error.
	fateLanded
	// fateFailed: landed but failed on chain; its state changes did not
	// happen.
	fateFailed
)

// recheckSignature re-queries an unconfirmed transaction's status, searching
// transaction history. Any RPC trouble classifies as fateUnknown: when the
// fate cannot be established the caller must assume the transaction landed.
func (c *Client) recheckSignature(ctx context.Context, sig solana.Signature) txFate {
	rCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	out, err := c.rpcClient.GetSignatureStatuses(rCtx, true, sig)
	if err != nil || len(out.Value) == 0 || out.Value[0] == nil {
		return fateUnknown
	}
	st := out.Value[0]
	if st.Err != nil {
		return fateFailed
	}
	if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed || st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
		return fateLanded
	}
	return fateUnknown
}
