package svm

import (
	"context"
	"encoding/binary"
	"fmt"
)

// ReadSequence reads the emitter's outbound message counter from the core
// bridge's sequence tracker account. Returns 0 if the emitter has never
// published (the account is created lazily by the first publish).
//
// Every call goes to the chain; the value is shared mutable state owned by
// the bridge and a cached copy is a correctness hazard, not an optimization.
func (c *Client) ReadSequence(ctx context.Context) (uint64, error) {
	data, err := c.accountData(ctx, c.Program.Sequence.Key, "get_sequence")
	if err != nil {
		return 0, err
	}
	if data == nil {
		return 0, nil
	}
	if len(data) < 8 {
		return 0, fmt.Errorf("sequence account data too short: %d bytes", len(data))
	}
	return binary.LittleEndian.Uint64(data[0:8]), nil
}

// NextForSubmission computes the sequence the next publish is expected to be
// assigned. This is a prediction, not a guarantee: a concurrent publish may
// consume it first. Callers must verify against the post-submission readback
// and treat a mismatch as a SequenceRaceError.
func NextForSubmission(current uint64) uint64 {
	return current + 1
}

// VerifyAssigned compares the predicted sequence against the counter read
// back after submission. On mismatch it returns a SequenceRaceError carrying
// the actual value so dependent accounts can be re-derived.
func VerifyAssigned(predicted, readback uint64) error {
	if predicted != readback {
		return &SequenceRaceError{Predicted: predicted, Actual: readback}
	}
	return nil
}
