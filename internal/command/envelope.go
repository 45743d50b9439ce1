package command

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire record the transport moves between the controller
// goroutine and the dispatch workers. Node is the graph node identifier as
// a plain string so the transport does not depend on the graph package.
type Envelope struct {
	Seq  uint64    `json:"seq"`
	Node string    `json:"node"`
	Op   Operation `json:"op"`
}

// Encode serializes the envelope for the ring.
func Encode(e Envelope) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode command %s: %w", e.Node, err)
	}
	return b, nil
}

// Decode deserializes a ring record back into an Envelope.
func Decode(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode command: %w", err)
	}
	return e, nil
}
