package executor

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap/zaptest"

	"github.com/wormhole-foundation/hello-executor-client/pkg/universal"
)

type testQuote struct {
	payee       [32]byte
	srcChain    vaa.ChainID
	dstChain    vaa.ChainID
	expiry      time.Time
	baseFee     uint64
	dstGasPrice uint64
	srcPrice    uint64
	dstPrice    uint64
}

func (q testQuote) encode() []byte {
	raw := make([]byte, signedQuoteLen)
	copy(raw[0:4], signedQuotePrefix)
	copy(raw[4:24], bytes.Repeat([]byte{0x11}, 20))
	copy(raw[24:56], q.payee[:])
	binary.BigEndian.PutUint16(raw[56:58], uint16(q.srcChain))
	binary.BigEndian.PutUint16(raw[58:60], uint16(q.dstChain))
	binary.BigEndian.PutUint64(raw[60:68], uint64(q.expiry.Unix()))
	binary.BigEndian.PutUint64(raw[68:76], q.baseFee)
	binary.BigEndian.PutUint64(raw[76:84], q.dstGasPrice)
	binary.BigEndian.PutUint64(raw[84:92], q.srcPrice)
	binary.BigEndian.PutUint64(raw[92:100], q.dstPrice)
	return raw
}

func svmPayee() [32]byte {
	var payee [32]byte
	for i := range payee {
		payee[i] = byte(i + 1)
	}
	return payee
}

// paddedPayee is a 20-byte identity zero-padded to 32 bytes, the
// wrong-family encoding that must never be paid on an SVM chain.
func paddedPayee() [32]byte {
	var payee [32]byte
	for i := 12; i < 32; i++ {
		payee[i] = byte(i)
	}
	return payee
}

func readAll(t *testing.T, r *http.Request) string {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	return string(body)
}

func TestParseSignedQuote(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := testQuote{
		payee:       svmPayee(),
		srcChain:    vaa.ChainIDSolana,
		dstChain:    vaa.ChainIDArbitrum,
		expiry:      expiry,
		baseFee:     5000,
		dstGasPrice: 100,
		srcPrice:    4,
		dstPrice:    2,
	}.encode()

	q, err := ParseSignedQuote(raw)
	require.NoError(t, err)
	assert.Equal(t, vaa.ChainIDSolana, q.SrcChain)
	assert.Equal(t, vaa.ChainIDArbitrum, q.DstChain)
	assert.Equal(t, expiry.Unix(), q.ExpiryTime.Unix())
	assert.Equal(t, uint64(5000), q.BaseFee)
	assert.Equal(t, uint64(100), q.DstGasPrice)
	assert.Equal(t, raw, q.Raw)
}

func TestParseSignedQuoteRejectsMalformed(t *testing.T) {
	_, err := ParseSignedQuote(make([]byte, 10))
	require.ErrorIs(t, err, ErrQuoteMalformed)

	raw := testQuote{payee: svmPayee(), srcPrice: 1}.encode()
	copy(raw[0:4], "EQ99")
	_, err = ParseSignedQuote(raw)
	require.ErrorIs(t, err, ErrQuoteMalformed)
}

func TestDecodePayee(t *testing.T) {
	tests := []struct {
		name    string
		payee   [32]byte
		family  universal.ChainFamily
		wantErr bool
	}{
		{name: "native svm key", payee: svmPayee(), family: universal.FamilySVM},
		{name: "padded 20-byte identity on svm", payee: paddedPayee(), family: universal.FamilySVM, wantErr: true},
		{name: "padded 20-byte identity on evm", payee: paddedPayee(), family: universal.FamilyEVM},
		{name: "native svm key on evm", payee: svmPayee(), family: universal.FamilyEVM, wantErr: true},
		{name: "zero payee", payee: [32]byte{}, family: universal.FamilySVM, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, err := ParseSignedQuote(testQuote{payee: tc.payee, srcPrice: 1}.encode())
			require.NoError(t, err)

			addr, err := q.DecodePayee(tc.family)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidPayeeFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.payee[:], addr[:])
		})
	}
}

func TestEstimatePayment(t *testing.T) {
	q, err := ParseSignedQuote(testQuote{
		payee:       svmPayee(),
		baseFee:     7,
		dstGasPrice: 3,
		srcPrice:    4,
		dstPrice:    2,
	}.encode())
	require.NoError(t, err)

	// dstCost = 100*3 + 10 = 310; src = ceil(310*2/4) + 7 = 155 + 7.
	amount, err := q.EstimatePayment(NewRelayInstructions(100, 10), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(162), amount)

	// dstCost = 311; 622/4 rounds up to 156.
	amount, err = q.EstimatePayment(NewRelayInstructions(100, 11), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(163), amount)

	// The allowance is priced like msgValue.
	amount, err = q.EstimatePayment(NewRelayInstructions(100, 10), 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(163), amount)
}

func TestEstimatePaymentRejectsZeroSrcPrice(t *testing.T) {
	q, err := ParseSignedQuote(testQuote{payee: svmPayee()}.encode())
	require.NoError(t, err)
	_, err = q.EstimatePayment(NewRelayInstructions(1, 0), 0)
	require.ErrorIs(t, err, ErrQuoteMalformed)
}

func TestGetQuote(t *testing.T) {
	raw := testQuote{
		payee:    svmPayee(),
		srcChain: vaa.ChainIDSolana,
		dstChain: vaa.ChainIDArbitrum,
		srcPrice: 1,
		dstPrice: 1,
	}.encode()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v0/quote", r.URL.Path)

		body := gjson.Parse(readAll(t, r))
		require.Equal(t, int64(1), body.Get("srcChain").Int())
		require.Equal(t, int64(23), body.Get("dstChain").Int())
		require.NotEmpty(t, body.Get("relayInstructions").String())

		fmt.Fprintf(w, `{"signedQuote":"0x%s","estimatedCost":"42"}`, hex.EncodeToString(raw))
	}))
	defer srv.Close()

	client := NewQuoteClient(srv.URL, zaptest.NewLogger(t))
	q, err := client.GetQuote(context.Background(), vaa.ChainIDSolana, vaa.ChainIDArbitrum, NewRelayInstructions(100_000, 0))
	require.NoError(t, err)
	assert.Equal(t, raw, q.Raw)
}

func TestGetQuoteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewQuoteClient(srv.URL, zaptest.NewLogger(t))
	_, err := client.GetQuote(context.Background(), vaa.ChainIDSolana, vaa.ChainIDArbitrum, NewRelayInstructions(100_000, 0))
	require.ErrorIs(t, err, ErrQuoteUnavailable)
}

func TestGetQuoteMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"signedQuote":"0xdeadbeef"}`)
	}))
	defer srv.Close()

	client := NewQuoteClient(srv.URL, zaptest.NewLogger(t))
	_, err := client.GetQuote(context.Background(), vaa.ChainIDSolana, vaa.ChainIDArbitrum, NewRelayInstructions(100_000, 0))
	require.ErrorIs(t, err, ErrQuoteMalformed)
}
