package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvironment(t *testing.T) {
	tests := []struct {
		input string
		want  Environment
	}{
		{input: "prod", want: MainNet},
		{input: "Mainnet", want: MainNet},
		{input: "test", want: TestNet},
		{input: "TESTNET", want: TestNet},
		{input: "dev", want: UnsafeDevNet},
		{input: "devnet", want: UnsafeDevNet},
		{input: "unit-test", want: GoTest},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			env, err := ParseEnvironment(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, env)
		})
	}

	_, err := ParseEnvironment("staging")
	require.Error(t, err)
}

func TestExecutorName(t *testing.T) {
	assert.Equal(t, "Mainnet", MainNet.ExecutorName())
	assert.Equal(t, "Testnet", TestNet.ExecutorName())
	assert.Equal(t, "Testnet", UnsafeDevNet.ExecutorName())
}
