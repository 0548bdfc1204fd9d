package proxy

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/jsonrpc2"
)

// DialTimeout bounds the retries of Dial.
var DialTimeout = 3 * time.Second

type clientHandler struct {
	onEvent func(*EventParams)
}

func (h *clientHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	switch req.Method {
	case NotifyEvent:
		var params EventParams
		if err := unmarshalParams(req, &params); err != nil {
			logrus.Debugf("bad event notification: %v", err)
			return
		}
		if h.onEvent != nil {
			h.onEvent(&params)
		}
	default:
		if !req.Notif {
			err := &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not found: " + req.Method}
			if err := conn.ReplyWithError(ctx, req.ID, err); err != nil {
				logrus.Debugf("could not reply to %v: %v", req.Method, err)
			}
		}
	}
}

// NewConn returns a proxy connection over conn. Events the proxy forwards
// are passed to onEvent, which may be nil.
func NewConn(ctx context.Context, conn net.Conn, onEvent func(*EventParams)) *Conn {
	stream := jsonrpc2.NewBufferedStream(conn, jsonrpc2.VSCodeObjectCodec{})
	rpc := jsonrpc2.NewConn(ctx, stream, &clientHandler{onEvent: onEvent})
	return &Conn{Conn: rpc}
}

// Dial connects to omnisharp-proxy, retrying for a short while in case the
// proxy is still starting up.
func Dial(ctx context.Context, network, address string, onEvent func(*EventParams)) (*Conn, error) {
	var conn net.Conn
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = DialTimeout

	err := backoff.Retry(func() error {
		var err error
		conn, err = net.Dial(network, address)
		return err
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "could not connect to omnisharp-proxy at %v", address)
	}
	c := NewConn(ctx, conn, onEvent)

	v, err := c.Version(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	if v != Version {
		c.Close()
		return nil, errors.Errorf("omnisharp-proxy speaks protocol version %v; want %v", v, Version)
	}
	return c, nil
}

// DecodeBody unmarshals an event body into v.
func (p *EventParams) DecodeBody(v interface{}) error {
	if len(p.Body) == 0 {
		return nil
	}
	return json.Unmarshal(p.Body, v)
}
