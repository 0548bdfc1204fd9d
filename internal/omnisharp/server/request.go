package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fhs/omnisharp-client/internal/omnisharp/protocol"
	"github.com/fhs/omnisharp-client/internal/omnisharp/queue"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type result struct {
	body json.RawMessage
	err  error
}

// MakeRequest sends command with arguments data and waits for the
// response body.
//
// If ctx is done while the request is still queued, the request is
// removed and a *queue.CancelledError is returned. Once the request has
// been sent it cannot be withdrawn: ctx.Err() is returned and the response
// is discarded when it arrives. ErrStopped is returned if the server stops
// first.
func (s *Server) MakeRequest(ctx context.Context, command string, data interface{}) (json.RawMessage, error) {
	args, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %v arguments", command)
	}

	ch := make(chan result, 1)
	deliver := func(res result) {
		select {
		case ch <- res:
		default:
		}
	}
	r := &queue.Request{
		Command:   command,
		Data:      json.RawMessage(args),
		OnSuccess: func(body json.RawMessage) { deliver(result{body: body}) },
		OnError:   func(err error) { deliver(result{err: err}) },
	}

	s.mu.Lock()
	sess := s.sess
	if s.state != Started || sess == nil {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	sess.queue.Enqueue(r)
	s.mu.Unlock()

	select {
	case res := <-ch:
		return res.body, res.err

	case <-ctx.Done():
		s.mu.Lock()
		if s.sess == sess {
			sess.queue.CancelRequest(r)
		}
		s.mu.Unlock()

		select {
		case res := <-ch:
			return res.body, res.err
		default:
			return nil, ctx.Err()
		}

	case <-sess.done:
		return nil, ErrStopped
	}
}

// transmit queues r for writeStdin and returns its sequence number.
// It is called by the request queues with s.mu held.
func (s *Server) transmit(sess *session, r *queue.Request) int {
	s.seq++
	id := s.seq

	if s.opts.Verbose {
		msg := fmt.Sprintf("makeRequest: %v (%v)", r.Command, id)
		if b, err := json.Marshal(r.Data); err == nil && string(b) != "null" {
			msg += fmt.Sprintf(", data=%s", b)
		}
		s.logger.AppendLine(msg)
	}

	b, err := protocol.NewRequestPacket(id, r.Command, r.Data).Encode()
	if err != nil {
		sess.log.WithField("seq", id).Warnf("failed to send %v: %v", r.Command, err)
		return id
	}
	sess.outMu.Lock()
	sess.out = append(sess.out, b)
	sess.outMu.Unlock()
	select {
	case sess.outReady <- struct{}{}:
	default:
	}
	return id
}

// handleLine handles one line of server output. Lines that are not JSON
// objects are server log text.
func (s *Server) handleLine(sess *session, line string) {
	if !s.isCurrent(sess) {
		return
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if line[0] != '{' {
		s.logger.AppendLine(line)
		s.bus.Publish(protocol.EventStdout, line)
		return
	}

	switch p := protocol.DecodePacket([]byte(line)).(type) {
	case *protocol.ResponsePacket:
		s.handleResponse(sess, p)
	case *protocol.EventPacket:
		s.handleEvent(p)
	case *protocol.MalformedPacket:
		if p.Err == protocol.ErrUnknownType {
			logrus.Warnf("unknown packet type %q: %v", p.Type, line)
		} else {
			logrus.Debugf("dropping malformed packet: %v: %v", p.Err, line)
		}
	}
}

func (s *Server) handleResponse(sess *session, p *protocol.ResponsePacket) {
	s.mu.Lock()
	if s.sess != sess {
		s.mu.Unlock()
		return
	}
	r := sess.queue.Dequeue(p.Command, p.RequestSeq)
	if r == nil {
		s.mu.Unlock()
		s.logger.AppendLinef("Received response for %v but could not find request.", p.Command)
		return
	}
	if s.opts.Verbose {
		s.logger.AppendLinef("handleResponse: %v (%v)", p.Command, p.RequestSeq)
	}
	err := p.Err()
	if err == nil {
		s.delays.Record(p.Command, time.Since(r.StartTime))
	}
	sess.queue.Drain()
	s.mu.Unlock()

	if err != nil {
		r.OnError(err)
	} else {
		r.OnSuccess(p.Body)
	}
}

func (s *Server) handleEvent(p *protocol.EventPacket) {
	if p.Event != protocol.EventLog {
		s.bus.Publish(p.Event, p.Body)
		return
	}
	var m protocol.LogMessage
	if err := json.Unmarshal(p.Body, &m); err != nil {
		logrus.Debugf("bad log event body: %v", err)
		return
	}
	s.logServerMessage(&m)
}

func (s *Server) logServerMessage(m *protocol.LogMessage) {
	s.logger.AppendLinef("[%v]: %v", protocol.LogLevelPrefix(m.LogLevel), m.Name)
	s.logger.IncreaseIndent()
	for _, line := range strings.Split(strings.TrimRight(m.Message, "\r\n"), "\n") {
		s.logger.AppendLine(strings.TrimRight(line, "\r"))
	}
	s.logger.DecreaseIndent()
}

// IsEmpty reports whether no request is waiting to be sent.
func (s *Server) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return true
	}
	return s.sess.queue.IsEmpty()
}

// WaitForEmptyQueue blocks until no request is waiting to be sent or ctx
// is done.
func (s *Server) WaitForEmptyQueue(ctx context.Context) error {
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()

	for !s.IsEmpty() {
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
