package svm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testWatchClient(t *testing.T) *Client {
	t.Helper()
	return &Client{logger: zaptest.NewLogger(t)}
}

func logsNotification(signature string, slot uint64, txErr string, logs ...string) []byte {
	logLines := ""
	for i, l := range logs {
		if i > 0 {
			logLines += ","
		}
		logLines += fmt.Sprintf("%q", l)
	}
	errField := "null"
	if txErr != "" {
		errField = fmt.Sprintf("%q", txErr)
	}
	return fmt.Appendf(nil,
		`{"jsonrpc":"2.0","method":"logsNotification","params":{"result":{"context":{"slot":%d},"value":{"signature":%q,"err":%s,"logs":[%s]}},"subscription":7}}`,
		slot, signature, errField, logLines)
}

func TestProcessLogsNotification(t *testing.T) {
	c := testWatchClient(t)

	ev, err := c.processLogsNotification(logsNotification("5igx", 1234, "",
		"Program log: Instruction: SendGreeting",
		"Program log: Greeting sent! Sequence: 42",
	))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "5igx", ev.Signature)
	assert.Equal(t, uint64(42), ev.Sequence)
	assert.Equal(t, uint64(1234), ev.Slot)
}

func TestProcessLogsNotificationSkipsFailedTransactions(t *testing.T) {
	c := testWatchClient(t)

	ev, err := c.processLogsNotification(logsNotification("5igx", 1234, "InstructionError",
		"Program log: Greeting sent! Sequence: 42",
	))
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestProcessLogsNotificationIgnoresOtherLogs(t *testing.T) {
	c := testWatchClient(t)

	ev, err := c.processLogsNotification(logsNotification("5igx", 1234, "",
		"Program log: Instruction: RegisterPeer",
	))
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestProcessLogsNotificationSubscriptionError(t *testing.T) {
	c := testWatchClient(t)

	_, err := c.processLogsNotification([]byte(
		`{"jsonrpc":"2.0","error":{"code":-32000,"message":"subscription limit reached"},"id":"1"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscription limit reached")
}
