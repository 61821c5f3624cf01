// Package helloexec contains the client-side bindings for the hello-executor
// program: payload codec, account layouts and instruction builders. The
// program itself is an external collaborator; everything here must match its
// wire formats byte for byte.
package helloexec

import (
	"encoding/binary"
	"fmt"
)

const (
	payloadIDAlive uint8 = 0
	payloadIDHello uint8 = 1

	// GreetingMaxLength is the maximum greeting size accepted by the program.
	GreetingMaxLength = 512
)

// Message is a payload published by the hello-executor program. Exactly one
// of the fields is meaningful, selected by the payload ID on the wire.
type Message struct {
	// Alive payloads carry the 32-byte program ID of the initializing program.
	AliveProgramID []byte
	// Hello payloads carry the greeting bytes (UTF-8).
	Greeting []byte
	isAlive  bool
}

// NewHello builds a greeting message.
func NewHello(greeting string) (*Message, error) {
	if len(greeting) > GreetingMaxLength {
		return nil, fmt.Errorf("greeting exceeds %d bytes: %d", GreetingMaxLength, len(greeting))
	}
	return &Message{Greeting: []byte(greeting)}, nil
}

// IsAlive reports whether this is the initialization heartbeat payload.
func (m *Message) IsAlive() bool { return m.isAlive }

// Marshal encodes the message in the program's payload format:
// Alive is 0x00 followed by the program ID; Hello is 0x01 followed by a
// big-endian u16 length and the greeting bytes. The length is big-endian so
// the same payload parses on EVM peers.
func (m *Message) Marshal() ([]byte, error) {
	if m.isAlive {
		if len(m.AliveProgramID) != 32 {
			return nil, fmt.Errorf("alive payload requires a 32-byte program id, got %d", len(m.AliveProgramID))
		}
		return append([]byte{payloadIDAlive}, m.AliveProgramID...), nil
	}
	if len(m.Greeting) > GreetingMaxLength {
		return nil, fmt.Errorf("greeting exceeds %d bytes: %d", GreetingMaxLength, len(m.Greeting))
	}
	buf := make([]byte, 0, 3+len(m.Greeting))
	buf = append(buf, payloadIDHello)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(m.Greeting))) // #nosec G115 -- length checked above
	return append(buf, m.Greeting...), nil
}

// UnmarshalMessage decodes a structured hello-executor payload.
func UnmarshalMessage(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	switch data[0] {
	case payloadIDAlive:
		if len(data) != 33 {
			return nil, fmt.Errorf("alive payload must be 33 bytes, got %d", len(data))
		}
		return &Message{AliveProgramID: data[1:], isAlive: true}, nil
	case payloadIDHello:
		if len(data) < 3 {
			return nil, fmt.Errorf("hello payload truncated: %d bytes", len(data))
		}
		n := int(binary.BigEndian.Uint16(data[1:3]))
		if n > GreetingMaxLength {
			return nil, fmt.Errorf("greeting exceeds %d bytes: %d", GreetingMaxLength, n)
		}
		if len(data) != 3+n {
			return nil, fmt.Errorf("hello payload length mismatch: header says %d, have %d", n, len(data)-3)
		}
		return &Message{Greeting: data[3 : 3+n]}, nil
	default:
		return nil, fmt.Errorf("invalid payload ID: %d", data[0])
	}
}

// DecodeGreeting extracts the greeting from an attested payload, accepting
// both formats seen on the wire: the program's structured format (first byte
// 0x01) and the raw UTF-8 bytes EVM peers send.
func DecodeGreeting(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("empty payload")
	}
	if payload[0] == payloadIDHello {
		m, err := UnmarshalMessage(payload)
		if err != nil {
			return "", err
		}
		return string(m.Greeting), nil
	}
	if len(payload) > GreetingMaxLength {
		return "", fmt.Errorf("greeting exceeds %d bytes: %d", GreetingMaxLength, len(payload))
	}
	return string(payload), nil
}
