package broadcast

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/signalsfoundry/td-engine/internal/sim/state"
)

// Format selects how snapshots are framed on the wire.
type Format string

const (
	// FormatJSON sends snapshots as text frames inside an envelope.
	FormatJSON Format = "json"
	// FormatMsgpack sends bare msgpack snapshots as binary frames.
	FormatMsgpack Format = "msgpack"
)

// ParseFormat maps a query value onto a Format; empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatMsgpack:
		return FormatMsgpack, nil
	}
	return "", fmt.Errorf("unknown snapshot format %q", s)
}

// Envelope is every text frame exchanged with clients.
type Envelope struct {
	Type    string          `json:"type"`
	Op      string          `json:"op,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Message string          `json:"message,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Frame types.
const (
	TypeSnapshot = "snapshot"
	TypeAck      = "ack"
	TypeError    = "error"
)

// EncodeSnapshot renders snap as a websocket frame in the given format.
func EncodeSnapshot(f Format, snap *state.Snapshot) (int, []byte, error) {
	if f == FormatMsgpack {
		data, err := msgpack.Marshal(snap)
		return websocket.BinaryMessage, data, err
	}
	data, err := encodeEnvelope(TypeSnapshot, "", snap)
	return websocket.TextMessage, data, err
}

// DecodeSnapshot is the client-side inverse of EncodeSnapshot.
func DecodeSnapshot(msgType int, data []byte) (*state.Snapshot, error) {
	snap := new(state.Snapshot)
	if msgType == websocket.BinaryMessage {
		if err := msgpack.Unmarshal(data, snap); err != nil {
			return nil, err
		}
		return snap, nil
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Type != TypeSnapshot {
		return nil, fmt.Errorf("frame type %q is not a snapshot", env.Type)
	}
	if err := json.Unmarshal(env.Payload, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func encodeEnvelope(typ, op string, payload any) ([]byte, error) {
	env := Envelope{Type: typ, Op: op}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}
