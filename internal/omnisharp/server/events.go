package server

import (
	"encoding/json"

	"github.com/fhs/omnisharp-client/internal/omnisharp/events"
	"github.com/fhs/omnisharp-client/internal/omnisharp/launcher"
	"github.com/fhs/omnisharp-client/internal/omnisharp/protocol"
	"github.com/sirupsen/logrus"
)

// On subscribes h to event. Events relayed from the server carry their
// body as a json.RawMessage; see the typed helpers for the others.
func (s *Server) On(event string, h events.Handler) events.Disposable {
	return s.bus.Subscribe(event, h)
}

func onBody[T any](s *Server, event string, h func(T)) events.Disposable {
	return s.bus.Subscribe(event, func(payload interface{}) {
		body, _ := payload.(json.RawMessage)
		var v T
		if len(body) > 0 {
			if err := json.Unmarshal(body, &v); err != nil {
				logrus.Debugf("bad %v event body: %v", event, err)
				return
			}
		}
		h(v)
	})
}

func onString(s *Server, event string, h func(string)) events.Disposable {
	return s.bus.Subscribe(event, func(payload interface{}) {
		str, _ := payload.(string)
		h(str)
	})
}

// OnStdout is called with server output lines that are not packets.
func (s *Server) OnStdout(h func(line string)) events.Disposable {
	return onString(s, protocol.EventStdout, h)
}

// OnStderr is called with lines the server writes to stderr.
func (s *Server) OnStderr(h func(line string)) events.Disposable {
	return onString(s, protocol.EventStderr, h)
}

// OnError is called for the server's "Error" event.
func (s *Server) OnError(h func(*protocol.ErrorMessage)) events.Disposable {
	return onBody(s, protocol.EventError, h)
}

// OnServerError is called when the process fails to start or dies.
func (s *Server) OnServerError(h func(error)) events.Disposable {
	return s.bus.Subscribe(protocol.EventServerError, func(payload interface{}) {
		err, _ := payload.(error)
		h(err)
	})
}

func (s *Server) OnUnresolvedDependencies(h func(*protocol.UnresolvedDependenciesMessage)) events.Disposable {
	return onBody(s, protocol.EventUnresolvedDependencies, h)
}

func (s *Server) OnPackageRestoreStarted(h func(*protocol.PackageRestoreMessage)) events.Disposable {
	return onBody(s, protocol.EventPackageRestoreStarted, h)
}

func (s *Server) OnPackageRestoreFinished(h func(*protocol.PackageRestoreMessage)) events.Disposable {
	return onBody(s, protocol.EventPackageRestoreFinished, h)
}

func (s *Server) OnProjectChange(h func(*protocol.ProjectInformation)) events.Disposable {
	return onBody(s, protocol.EventProjectChanged, h)
}

func (s *Server) OnProjectAdded(h func(*protocol.ProjectInformation)) events.Disposable {
	return onBody(s, protocol.EventProjectAdded, h)
}

func (s *Server) OnProjectRemoved(h func(*protocol.ProjectInformation)) events.Disposable {
	return onBody(s, protocol.EventProjectRemoved, h)
}

func (s *Server) OnMsBuildProjectDiagnostics(h func(*protocol.MSBuildProjectDiagnostics)) events.Disposable {
	return onBody(s, protocol.EventMsBuildDiagnostics, h)
}

func (s *Server) OnTestMessage(h func(*protocol.TestMessage)) events.Disposable {
	return onBody(s, protocol.EventTestMessage, h)
}

// OnBeforeServerStart is called with the target path before the process
// is spawned.
func (s *Server) OnBeforeServerStart(h func(target string)) events.Disposable {
	return onString(s, protocol.EventBeforeServerStart, h)
}

// OnServerStart is called with the target path once the server has
// started.
func (s *Server) OnServerStart(h func(target string)) events.Disposable {
	return onString(s, protocol.EventServerStart, h)
}

func (s *Server) OnServerStop(h func()) events.Disposable {
	return s.bus.Subscribe(protocol.EventServerStop, func(interface{}) { h() })
}

// OnMultipleLaunchTargets is called by AutoStart when it cannot choose a
// target.
func (s *Server) OnMultipleLaunchTargets(h func([]launcher.Target)) events.Disposable {
	return s.bus.Subscribe(protocol.EventMultipleLaunchTargets, func(payload interface{}) {
		targets, _ := payload.([]launcher.Target)
		h(targets)
	})
}

// OnOmnisharpStart is called for the server's "started" event.
func (s *Server) OnOmnisharpStart(h func()) events.Disposable {
	return s.bus.Subscribe(protocol.EventStarted, func(interface{}) { h() })
}

func (s *Server) OnStateChanged(h func(State)) events.Disposable {
	return s.bus.Subscribe(protocol.EventStateChanged, func(payload interface{}) {
		st, _ := payload.(State)
		h(st)
	})
}
