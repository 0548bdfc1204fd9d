// Package proxy implements the JSON-RPC protocol spoken between
// omnisharp-proxy, which owns the OmniSharp server, and its clients.
package proxy

import (
	"context"
	"encoding/json"

	"github.com/sourcegraph/jsonrpc2"
)

// Version is used to detect if omnisharp-proxy and O are speaking the same protocol.
const Version = 1

// Method names.
const (
	MethodVersion   = "omnisharp-proxy/version"
	MethodRequest   = "omnisharp-proxy/request"
	MethodState     = "omnisharp-proxy/state"
	MethodRestart   = "omnisharp-proxy/restart"
	MethodSubscribe = "omnisharp-proxy/subscribe"

	// NotifyEvent is sent by the proxy for every subscribed event.
	NotifyEvent = "omnisharp-proxy/event"
)

// RequestParams are the parameters of MethodRequest. The result is the
// response body.
type RequestParams struct {
	Command   string
	Arguments json.RawMessage `json:",omitempty"`
}

// StateResult is the result of MethodState.
type StateResult struct {
	State  string
	Target string `json:",omitempty"`
}

// RestartParams are the parameters of MethodRestart. An empty Target
// restarts on the current target.
type RestartParams struct {
	Target string `json:",omitempty"`
}

// SubscribeParams are the parameters of MethodSubscribe.
type SubscribeParams struct {
	Events []string
}

// EventParams are the parameters of NotifyEvent.
type EventParams struct {
	Event string
	Body  json.RawMessage `json:",omitempty"`
}

func unmarshalParams(req *jsonrpc2.Request, v interface{}) error {
	if req.Params == nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeParseError, Message: err.Error()}
	}
	return nil
}

// Conn is the client side of a proxy connection.
type Conn struct {
	*jsonrpc2.Conn
}

func (c *Conn) Version(ctx context.Context) (int, error) {
	var result int
	if err := c.Call(ctx, MethodVersion, nil, &result); err != nil {
		return 0, err
	}
	return result, nil
}

// Request sends an OmniSharp request through the proxy and returns the
// response body.
func (c *Conn) Request(ctx context.Context, command string, arguments json.RawMessage) (json.RawMessage, error) {
	var result json.RawMessage
	params := &RequestParams{Command: command, Arguments: arguments}
	if err := c.Call(ctx, MethodRequest, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Conn) State(ctx context.Context) (*StateResult, error) {
	var result StateResult
	if err := c.Call(ctx, MethodState, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Conn) Restart(ctx context.Context, target string) error {
	return c.Call(ctx, MethodRestart, &RestartParams{Target: target}, nil)
}

// Subscribe asks the proxy to forward events with the given names.
// No names means every event.
func (c *Conn) Subscribe(ctx context.Context, events []string) error {
	return c.Call(ctx, MethodSubscribe, &SubscribeParams{Events: events}, nil)
}
