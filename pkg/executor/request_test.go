package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

func TestBuildRequest(t *testing.T) {
	quote, err := ParseSignedQuote(testQuote{
		payee:    svmPayee(),
		srcChain: vaa.ChainIDSolana,
		dstChain: vaa.ChainIDArbitrum,
		srcPrice: 1,
	}.encode())
	require.NoError(t, err)

	ri, err := NewRelayInstructions(100_000, 0).Encode()
	require.NoError(t, err)

	req, err := BuildRequest(vaa.ChainIDArbitrum, 5000, quote, ri)
	require.NoError(t, err)
	assert.Equal(t, vaa.ChainIDArbitrum, req.DstChain)
	assert.Equal(t, uint64(5000), req.PaymentAmount)
	assert.Equal(t, quote.Raw, req.SignedQuoteBytes)
	assert.Equal(t, ri, req.RelayInstructions)
	assert.True(t, req.MatchesQuote(quote))
}

func TestBuildRequestValidation(t *testing.T) {
	quote, err := ParseSignedQuote(testQuote{
		payee:    svmPayee(),
		dstChain: vaa.ChainIDArbitrum,
		srcPrice: 1,
	}.encode())
	require.NoError(t, err)

	ri, err := NewRelayInstructions(100_000, 0).Encode()
	require.NoError(t, err)

	_, err = BuildRequest(vaa.ChainIDArbitrum, 5000, nil, ri)
	require.Error(t, err)

	// Destination must match the chain the quote priced.
	_, err = BuildRequest(vaa.ChainIDBase, 5000, quote, ri)
	require.Error(t, err)

	_, err = BuildRequest(vaa.ChainIDArbitrum, 0, quote, ri)
	require.Error(t, err)

	_, err = BuildRequest(vaa.ChainIDArbitrum, 5000, quote, []byte{0xff})
	require.Error(t, err)
}
