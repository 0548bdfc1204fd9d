// Package protocol defines the line-delimited JSON protocol spoken by the
// OmniSharp server over stdio.
package protocol

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Packet types.
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeEvent    = "event"
)

var (
	// ErrMissingType is the error of a MalformedPacket without a Type field.
	ErrMissingType = errors.New("packet has no Type")

	// ErrUnknownType is the error of a MalformedPacket whose Type is not
	// one a client handles.
	ErrUnknownType = errors.New("unknown packet type")
)

// RequestPacket is sent to the server, one per line.
type RequestPacket struct {
	Type      string      `json:"Type"`
	Seq       int         `json:"Seq"`
	Command   string      `json:"Command"`
	Arguments interface{} `json:"Arguments"`
}

// NewRequestPacket returns a request packet for command.
func NewRequestPacket(seq int, command string, arguments interface{}) *RequestPacket {
	return &RequestPacket{
		Type:      TypeRequest,
		Seq:       seq,
		Command:   command,
		Arguments: arguments,
	}
}

// Encode returns the packet as a single newline-terminated JSON line.
func (p *RequestPacket) Encode() ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %v request", p.Command)
	}
	return append(b, '\n'), nil
}

// Packet is a decoded inbound line: one of *ResponsePacket, *EventPacket
// or *MalformedPacket.
type Packet interface {
	isPacket()
}

// ResponsePacket answers the request whose Seq is RequestSeq.
type ResponsePacket struct {
	Type       string          `json:"Type"`
	Seq        int             `json:"Seq"`
	Command    string          `json:"Command"`
	RequestSeq int             `json:"Request_seq"`
	Running    bool            `json:"Running"`
	Success    bool            `json:"Success"`
	Message    string          `json:"Message,omitempty"`
	Body       json.RawMessage `json:"Body,omitempty"`
}

// Err returns nil for a successful response and a *ResponseError otherwise.
func (p *ResponsePacket) Err() error {
	if p.Success {
		return nil
	}
	return &ResponseError{
		Command: p.Command,
		Message: p.Message,
		Body:    p.Body,
	}
}

// EventPacket is an unsolicited notification from the server.
type EventPacket struct {
	Type  string          `json:"Type"`
	Seq   int             `json:"Seq"`
	Event string          `json:"Event"`
	Body  json.RawMessage `json:"Body,omitempty"`
}

// MalformedPacket is a line that could not be used as a packet.
type MalformedPacket struct {
	Type string // packet Type, if one was present
	Err  error
}

func (*ResponsePacket) isPacket()  {}
func (*EventPacket) isPacket()     {}
func (*MalformedPacket) isPacket() {}

// DecodePacket decodes one line received from the server.
// It never fails; undecodable input yields a *MalformedPacket.
func DecodePacket(line []byte) Packet {
	var probe struct {
		Type string `json:"Type"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return &MalformedPacket{Err: err}
	}
	switch probe.Type {
	case "":
		return &MalformedPacket{Err: ErrMissingType}

	case TypeResponse:
		var p ResponsePacket
		if err := json.Unmarshal(line, &p); err != nil {
			return &MalformedPacket{Type: probe.Type, Err: err}
		}
		return &p

	case TypeEvent:
		var p EventPacket
		if err := json.Unmarshal(line, &p); err != nil {
			return &MalformedPacket{Type: probe.Type, Err: err}
		}
		return &p
	}
	return &MalformedPacket{Type: probe.Type, Err: ErrUnknownType}
}

// ResponseError is a response the server reported as unsuccessful.
type ResponseError struct {
	Command string
	Message string
	Body    json.RawMessage
}

func (e *ResponseError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Body) > 0 {
		return string(e.Body)
	}
	return e.Command + " failed"
}
