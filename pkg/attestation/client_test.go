package attestation

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap/zaptest"
)

func testVAA(chain vaa.ChainID, emitter vaa.Address, sequence uint64) []byte {
	v := &vaa.VAA{
		Version:          vaa.SupportedVAAVersion,
		GuardianSetIndex: 4,
		Timestamp:        time.Unix(1_700_000_000, 0),
		Nonce:            0,
		EmitterChain:     chain,
		EmitterAddress:   emitter,
		Sequence:         sequence,
		ConsistencyLevel: 1,
		Payload:          []byte{0x01, 0x00, 0x02, 'h', 'i'},
	}
	raw, err := v.Marshal()
	if err != nil {
		panic(err)
	}
	return raw
}

func testEmitter() vaa.Address {
	var emitter vaa.Address
	emitter[31] = 0x42
	return emitter
}

func TestFetch(t *testing.T) {
	emitter := testEmitter()
	raw := testVAA(vaa.ChainIDSolana, emitter, 42)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fmt.Sprintf("/api/v1/vaas/1/%s/42", emitter.String()), r.URL.Path)
		fmt.Fprintf(w, `{"data":{"vaa":"%s","timestamp":"2023-11-14T22:13:20Z"}}`,
			base64.StdEncoding.EncodeToString(raw))
	}))
	defer srv.Close()

	client := NewClientWithURL(srv.URL, zaptest.NewLogger(t))
	att, err := client.Fetch(context.Background(), vaa.ChainIDSolana, emitter, 42)
	require.NoError(t, err)
	require.NotNil(t, att)
	assert.Equal(t, raw, att.Raw)
	assert.Equal(t, uint64(42), att.VAA.Sequence)
	assert.False(t, att.IndexedAt.IsZero())
}

func TestFetchNotYetIndexed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClientWithURL(srv.URL, zaptest.NewLogger(t))
	att, err := client.Fetch(context.Background(), vaa.ChainIDSolana, testEmitter(), 42)
	require.NoError(t, err)
	assert.Nil(t, att)
}

func TestFetchRejectsMismatchedAttestation(t *testing.T) {
	emitter := testEmitter()
	// The index answers with a different sequence than the one requested.
	raw := testVAA(vaa.ChainIDSolana, emitter, 43)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":{"vaa":"%s"}}`, base64.StdEncoding.EncodeToString(raw))
	}))
	defer srv.Close()

	client := NewClientWithURL(srv.URL, zaptest.NewLogger(t))
	_, err := client.Fetch(context.Background(), vaa.ChainIDSolana, emitter, 42)
	require.Error(t, err)
}

func TestWaitForAttestationFindsItAfterRetries(t *testing.T) {
	emitter := testEmitter()
	raw := testVAA(vaa.ChainIDSolana, emitter, 42)

	var polls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 3 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"data":{"vaa":"%s"}}`, base64.StdEncoding.EncodeToString(raw))
	}))
	defer srv.Close()

	client := NewClientWithURL(srv.URL, zaptest.NewLogger(t))
	clock := time.Unix(1_700_000_000, 0)
	client.now = func() time.Time { return clock }
	client.sleep = func(ctx context.Context, d time.Duration) error {
		clock = clock.Add(d)
		return ctx.Err()
	}

	att, err := client.WaitForAttestation(context.Background(), vaa.ChainIDSolana, emitter, 42, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, att)
	assert.Equal(t, 3, polls)
}

func TestWaitForAttestationTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClientWithURL(srv.URL, zaptest.NewLogger(t))
	clock := time.Unix(1_700_000_000, 0)
	client.now = func() time.Time { return clock }
	client.sleep = func(ctx context.Context, d time.Duration) error {
		clock = clock.Add(d)
		return ctx.Err()
	}

	att, err := client.WaitForAttestation(context.Background(), vaa.ChainIDSolana, testEmitter(), 42, 20*time.Second)
	require.NoError(t, err)
	assert.Nil(t, att)
}
