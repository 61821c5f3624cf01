package svm

import (
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// SequenceRaceError reports that the sequence assigned by the publish does
// not equal the client's prediction: a concurrent publish won the counter.
// Any account derived from the prediction is invalid; recompute from Actual
// and retry. Never ignore this error.
type SequenceRaceError struct {
	Predicted uint64
	Actual    uint64
}

func (e *SequenceRaceError) Error() string {
	return fmt.Sprintf("sequence race detected: predicted %d, chain assigned %d", e.Predicted, e.Actual)
}

// SubmissionUnconfirmedError reports a transaction that was accepted by the
// RPC node but did not reach the client's commitment level within the
// confirmation window. The transaction may still land: the signature is a
// resumable handle, and resubmitting over it risks a double publish and a
// double payment.
type SubmissionUnconfirmedError struct {
	Signature solana.Signature
	Window    time.Duration
}

func (e *SubmissionUnconfirmedError) Error() string {
	return fmt.Sprintf("transaction %s not confirmed within %s", e.Signature, e.Window)
}

var (
	// ErrNoMessages means the emitter has never published, so there is
	// nothing to request a relay for.
	ErrNoMessages = errors.New("emitter has published no messages yet")

	// ErrUnknownPeer means the queried chain has no peer registered; inbound
	// messages from it are rejected at verification time, and outbound
	// relays to it have no routing target.
	ErrUnknownPeer = errors.New("no peer registered for chain")

	// ErrNotInitialized means the program's config account does not exist
	// yet; run initialize first.
	ErrNotInitialized = errors.New("program is not initialized")
)
