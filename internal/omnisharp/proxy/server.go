package proxy

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"sync"
	"syscall"

	"github.com/fhs/omnisharp-client/internal/omnisharp/events"
	"github.com/fhs/omnisharp-client/internal/omnisharp/launcher"
	"github.com/fhs/omnisharp-client/internal/omnisharp/protocol"
	"github.com/fhs/omnisharp-client/internal/omnisharp/server"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/jsonrpc2"
)

// Backend is the OmniSharp server the proxy serves. *server.Server
// implements it.
type Backend interface {
	MakeRequest(ctx context.Context, command string, data interface{}) (json.RawMessage, error)
	State() server.State
	LaunchTarget() *launcher.Target
	Restart(ctx context.Context, target *launcher.Target) error
	On(event string, h events.Handler) events.Disposable
}

// DefaultEvents are forwarded to clients that subscribe without naming
// any events.
var DefaultEvents = []string{
	protocol.EventError,
	protocol.EventProjectAdded,
	protocol.EventProjectChanged,
	protocol.EventProjectRemoved,
	protocol.EventPackageRestoreStarted,
	protocol.EventPackageRestoreFinished,
	protocol.EventUnresolvedDependencies,
	protocol.EventMsBuildDiagnostics,
	protocol.EventTestMessage,
	protocol.EventServerError,
	protocol.EventServerStart,
	protocol.EventServerStop,
	protocol.EventStateChanged,
	protocol.EventMultipleLaunchTargets,
}

// events queued for a slow client before further events are dropped
const eventBacklog = 256

// Listen is like net.Listen but it removes dead unix sockets.
func Listen(network, address string) (net.Listener, error) {
	ln, err := net.Listen(network, address)
	if err != nil && network == "unix" && isAddrInUse(err) {
		if _, err1 := net.Dial(network, address); !isConnRefused(err1) {
			return nil, err // Listen error
		}
		// Dead socket, so remove it.
		err = os.Remove(address)
		if err != nil {
			return nil, err
		}
		return net.Listen(network, address)
	}
	return ln, err
}

func isAddrInUse(err error) bool {
	return isSyscallError(err, syscall.EADDRINUSE)
}

func isConnRefused(err error) bool {
	return isSyscallError(err, syscall.ECONNREFUSED)
}

func isSyscallError(err error, errno syscall.Errno) bool {
	if err, ok := err.(*net.OpError); ok {
		if err, ok := err.Err.(*os.SyscallError); ok {
			return err.Err == errno
		}
	}
	return false
}

// Serve accepts connections on ln and serves b on each of them until ctx
// is done. ln is closed on return.
func Serve(ctx context.Context, ln net.Listener, b Backend) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go ServeConn(ctx, conn, b)
	}
}

// ServeConn serves b on conn until the connection is closed or ctx is
// done.
func ServeConn(ctx context.Context, conn net.Conn, b Backend) {
	h := &handler{
		backend: b,
		events:  make(chan *EventParams, eventBacklog),
	}
	stream := jsonrpc2.NewBufferedStream(conn, jsonrpc2.VSCodeObjectCodec{})
	rpc := jsonrpc2.NewConn(ctx, stream, jsonrpc2.AsyncHandler(jsonrpc2.HandlerWithError(h.handle)))

	go h.forward(ctx, rpc)

	select {
	case <-rpc.DisconnectNotify():
	case <-ctx.Done():
		rpc.Close()
	}
	h.subs.Dispose()
	h.close()
}

type handler struct {
	backend Backend
	subs    events.Disposables

	mu     sync.Mutex
	closed bool
	events chan *EventParams
}

func (h *handler) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.events)
	}
}

func (h *handler) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	switch req.Method {
	case MethodVersion:
		return Version, nil

	case MethodRequest:
		var params RequestParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		var data interface{}
		if len(params.Arguments) > 0 {
			data = params.Arguments
		}
		return h.backend.MakeRequest(ctx, params.Command, data)

	case MethodState:
		result := &StateResult{State: h.backend.State().String()}
		if t := h.backend.LaunchTarget(); t != nil {
			result.Target = t.Target
		}
		return result, nil

	case MethodRestart:
		var params RestartParams
		if req.Params != nil {
			if err := unmarshalParams(req, &params); err != nil {
				return nil, err
			}
		}
		var target *launcher.Target
		if params.Target != "" {
			t, err := launcher.TargetFromPath(params.Target)
			if err != nil {
				return nil, err
			}
			target = t
		}
		// The server outlives this request.
		return nil, h.backend.Restart(context.Background(), target)

	case MethodSubscribe:
		var params SubscribeParams
		if req.Params != nil {
			if err := unmarshalParams(req, &params); err != nil {
				return nil, err
			}
		}
		names := params.Events
		if len(names) == 0 {
			names = DefaultEvents
		}
		for _, name := range names {
			name := name
			h.subs.Add(h.backend.On(name, func(payload interface{}) {
				h.send(name, payload)
			}))
		}
		return nil, nil
	}
	return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not found: " + req.Method}
}

// send queues an event for the client without blocking the publisher.
func (h *handler) send(event string, payload interface{}) {
	body, err := eventBody(payload)
	if err != nil {
		logrus.Debugf("dropping %v event: %v", event, err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	select {
	case h.events <- &EventParams{Event: event, Body: body}:
	default:
		logrus.Warnf("client is slow; dropping %v event", event)
	}
}

func (h *handler) forward(ctx context.Context, rpc *jsonrpc2.Conn) {
	for ev := range h.events {
		if err := rpc.Notify(ctx, NotifyEvent, ev); err != nil {
			logrus.Debugf("could not send %v event: %v", ev.Event, err)
		}
	}
}

func eventBody(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case error:
		return json.Marshal(v.Error())
	case server.State:
		return json.Marshal(v.String())
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode event body")
	}
	return b, nil
}
