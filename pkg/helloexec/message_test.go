package helloexec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelloRoundTrip(t *testing.T) {
	m, err := NewHello("Hello from Solana!")
	require.NoError(t, err)

	encoded, err := m.Marshal()
	require.NoError(t, err)
	assert.Equal(t, byte(payloadIDHello), encoded[0])
	assert.Equal(t, []byte{0x00, 0x12}, encoded[1:3])

	decoded, err := UnmarshalMessage(encoded)
	require.NoError(t, err)
	assert.False(t, decoded.IsAlive())
	assert.Equal(t, "Hello from Solana!", string(decoded.Greeting))
}

func TestNewHelloRejectsOversize(t *testing.T) {
	_, err := NewHello(strings.Repeat("a", GreetingMaxLength+1))
	require.Error(t, err)

	m, err := NewHello(strings.Repeat("a", GreetingMaxLength))
	require.NoError(t, err)
	_, err = m.Marshal()
	require.NoError(t, err)
}

func TestUnmarshalMessageAlive(t *testing.T) {
	payload := make([]byte, 33)
	payload[0] = payloadIDAlive
	for i := 1; i < 33; i++ {
		payload[i] = byte(i)
	}

	m, err := UnmarshalMessage(payload)
	require.NoError(t, err)
	assert.True(t, m.IsAlive())
	assert.Equal(t, payload[1:], m.AliveProgramID)
}

func TestUnmarshalMessageRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "unknown payload id", data: []byte{0x7f, 0x00}},
		{name: "truncated hello header", data: []byte{0x01, 0x00}},
		{name: "length mismatch", data: []byte{0x01, 0x00, 0x05, 'h', 'i'}},
		{name: "short alive", data: []byte{0x00, 0x01, 0x02}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := UnmarshalMessage(tc.data)
			require.Error(t, err)
		})
	}
}

func TestDecodeGreeting(t *testing.T) {
	m, err := NewHello("hi there")
	require.NoError(t, err)
	structured, err := m.Marshal()
	require.NoError(t, err)

	got, err := DecodeGreeting(structured)
	require.NoError(t, err)
	assert.Equal(t, "hi there", got)

	// EVM peers publish the raw UTF-8 bytes without the envelope.
	got, err = DecodeGreeting([]byte("Hello from Ethereum!"))
	require.NoError(t, err)
	assert.Equal(t, "Hello from Ethereum!", got)

	_, err = DecodeGreeting(nil)
	require.Error(t, err)
}
