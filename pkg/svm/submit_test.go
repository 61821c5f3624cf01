package svm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wormhole-foundation/hello-executor-client/pkg/helloexec"
)

const (
	statusNull      = "null"
	statusConfirmed = `{"slot":1,"confirmations":null,"err":null,"confirmationStatus":"confirmed"}`
	statusFailed    = `{"slot":1,"confirmations":null,"err":{"InstructionError":[0,{"Custom":6001}]},"confirmationStatus":"confirmed"}`
)

// fakeRPC is a scripted JSON-RPC node. It keeps the emitter's sequence
// counter and advances it when a sent transaction is scripted to land, so
// post-submission readbacks see what the chain would.
type fakeRPC struct {
	mu       sync.Mutex
	sequence uint64
	sends    int

	// landsOnSend decides whether the n-th sent transaction eventually
	// lands (advancing the sequence counter at that point).
	landsOnSend func(send int) bool
	// confirmStatus scripts getSignatureStatuses for the confirmation
	// loop; historyStatus scripts the history-searching recheck.
	confirmStatus func(send int) string
	historyStatus func(send int) string
}

func (f *fakeRPC) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var result string
	switch req.Method {
	case "getAccountInfo":
		data := make([]byte, 8)
		binary.LittleEndian.PutUint64(data, f.sequence)
		result = fmt.Sprintf(
			`{"context":{"slot":1},"value":{"lamports":1,"owner":"%s","data":["%s","base64"],"executable":false,"rentEpoch":0}}`,
			solana.SystemProgramID, base64.StdEncoding.EncodeToString(data))
	case "getLatestBlockhash":
		result = fmt.Sprintf(
			`{"context":{"slot":1},"value":{"blockhash":"%s","lastValidBlockHeight":100}}`,
			solana.Hash{1})
	case "sendTransaction":
		f.sends++
		if f.landsOnSend != nil && f.landsOnSend(f.sends) {
			f.sequence++
		}
		result = fmt.Sprintf(`"%s"`, solana.Signature{byte(f.sends)})
	case "getSignatureStatuses":
		status := f.confirmStatus
		if bytes.Contains(body, []byte("searchTransactionHistory")) {
			status = f.historyStatus
		}
		result = fmt.Sprintf(`{"context":{"slot":1},"value":[%s]}`, status(f.sends))
	default:
		http.Error(w, "unexpected method: "+req.Method, http.StatusBadRequest)
		return
	}
	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, result)
}

func (f *fakeRPC) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends
}

// newTestSubmitClient wires a fake clock into the client: sleeping advances
// the clock instead of waiting, so confirmation windows elapse instantly.
func newTestSubmitClient(t *testing.T, url string) *Client {
	t.Helper()
	program, err := helloexec.NewProgram(
		solana.MustPublicKeyFromBase58("execXUrAsMnqMmTHj5m7N1YQgsDz3cwGLYCYyuDRciV"),
		solana.MustPublicKeyFromBase58("3u8hJUVTA4jH1wYAyUur7FFZVQ8H635K3tSHHF4ssjQ5"))
	require.NoError(t, err)

	c := NewClient(url, "", program, solana.NewWallet().PrivateKey, zaptest.NewLogger(t))
	clock := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return clock }
	c.sleep = func(ctx context.Context, d time.Duration) error {
		clock = clock.Add(d)
		return ctx.Err()
	}
	return c
}

// A transaction whose fate cannot be established after the confirmation
// window must never be resubmitted: the publish and the payment may have
// landed already, and a rebuilt transaction would publish and pay twice.
func TestSubmitGreetingUnknownFateIsNotRetried(t *testing.T) {
	f := &fakeRPC{
		confirmStatus: func(int) string { return statusNull },
		historyStatus: func(int) string { return statusNull },
	}
	srv := httptest.NewServer(f)
	defer srv.Close()

	c := newTestSubmitClient(t, srv.URL)
	sub, err := c.SubmitGreeting(context.Background(), "hello", nil, solana.PublicKey{})
	require.Error(t, err)
	assert.Nil(t, sub)

	var unconfirmed *SubmissionUnconfirmedError
	require.ErrorAs(t, err, &unconfirmed)
	assert.Equal(t, solana.Signature{1}, unconfirmed.Signature)
	assert.Equal(t, 1, f.sendCount())
}

func TestSubmitGreetingRecoversLateConfirmation(t *testing.T) {
	f := &fakeRPC{
		landsOnSend:   func(int) bool { return true },
		confirmStatus: func(int) string { return statusNull },
		historyStatus: func(int) string { return statusConfirmed },
	}
	srv := httptest.NewServer(f)
	defer srv.Close()

	c := newTestSubmitClient(t, srv.URL)
	sub, err := c.SubmitGreeting(context.Background(), "hello", nil, solana.PublicKey{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sub.Sequence)
	assert.Equal(t, 1, f.sendCount())
}

func TestSubmitGreetingRebuildsAfterOnChainFailure(t *testing.T) {
	f := &fakeRPC{
		landsOnSend: func(send int) bool { return send == 2 },
		confirmStatus: func(send int) string {
			if send == 1 {
				return statusNull
			}
			return statusConfirmed
		},
		historyStatus: func(int) string { return statusFailed },
	}
	srv := httptest.NewServer(f)
	defer srv.Close()

	c := newTestSubmitClient(t, srv.URL)
	sub, err := c.SubmitGreeting(context.Background(), "hello", nil, solana.PublicKey{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sub.Sequence)
	// The first transaction failed on chain without publishing, so one
	// rebuild happened.
	assert.Equal(t, 2, f.sendCount())
}
