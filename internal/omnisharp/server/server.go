// Package server runs an OmniSharp server process and speaks its stdio
// protocol.
package server

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/fhs/omnisharp-client/internal/omnisharp/events"
	"github.com/fhs/omnisharp-client/internal/omnisharp/launcher"
	"github.com/fhs/omnisharp-client/internal/omnisharp/logger"
	"github.com/fhs/omnisharp-client/internal/omnisharp/protocol"
	"github.com/fhs/omnisharp-client/internal/omnisharp/queue"
	"github.com/fhs/omnisharp-client/internal/omnisharp/telemetry"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// State is the lifecycle state of the server process.
type State int

const (
	Stopped State = iota
	Starting
	Started
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Starting:
		return "Starting"
	case Started:
		return "Started"
	}
	return "Unknown"
}

var (
	ErrNotStarted            = errors.New("server is not started")
	ErrStopped               = errors.New("server stopped")
	ErrLoadTimeout           = errors.New("OmniSharp server load timed out")
	ErrNoLaunchTargets       = errors.New("no launch targets found")
	ErrMultipleLaunchTargets = errors.New("multiple launch targets found")
)

const (
	DefaultProjectLoadTimeout = time.Minute
	DefaultTelemetryInterval  = 2 * time.Minute

	// time given to the process to exit after it is signalled
	killTimeout = 5 * time.Second

	maxLineSize = 64 << 20
)

// Options configure a Server.
type Options struct {
	launcher.Options

	// ProjectLoadTimeout bounds the wait for the server's "started" event.
	ProjectLoadTimeout time.Duration

	// Concurrency is the number of normal requests in flight at once.
	Concurrency int

	// TelemetryInterval is how often request delays are reported.
	TelemetryInterval time.Duration
}

func (o *Options) projectLoadTimeout() time.Duration {
	if o.ProjectLoadTimeout > 0 {
		return o.ProjectLoadTimeout
	}
	return DefaultProjectLoadTimeout
}

func (o *Options) telemetryInterval() time.Duration {
	if o.TelemetryInterval > 0 {
		return o.TelemetryInterval
	}
	return DefaultTelemetryInterval
}

// session is one run of the server process.
type session struct {
	id    string
	log   *logrus.Entry
	cmd   *exec.Cmd
	stdin io.WriteCloser
	queue *queue.RequestQueueCollection

	started     chan struct{} // closed on the "started" event
	startedOnce sync.Once
	exited      chan struct{} // closed after the process is reaped
	exitErr     error
	done        chan struct{} // closed by Stop

	// Encoded requests waiting for writeStdin.
	outMu    sync.Mutex
	out      [][]byte
	outReady chan struct{}

	readers   sync.WaitGroup
	listeners events.Disposables
}

// Server owns an OmniSharp server process, its request queues and the
// events it emits.
//
// All queue operations happen under mu. Neither events nor writes to the
// process happen while holding it.
type Server struct {
	opts     Options
	logger   *logger.Logger
	reporter telemetry.Reporter
	bus      events.Bus

	// startMu serializes Start and Restart. Stop does not take it, so it
	// can interrupt a Start.
	startMu sync.Mutex

	mu         sync.Mutex
	state      State
	seq        int
	gen        int // incremented by every Stop
	sess       *session
	lastTarget *launcher.Target
	delays     *telemetry.Delays
}

// New returns a stopped Server. Protocol output goes to logger;
// reporter, which may be nil, receives request delay telemetry.
func New(opts Options, logger *logger.Logger, reporter telemetry.Reporter) *Server {
	return &Server{
		opts:     opts,
		logger:   logger,
		reporter: reporter,
		delays:   telemetry.NewDelays(),
	}
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LaunchTarget returns the target of the last start, or nil.
func (s *Server) LaunchTarget() *launcher.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTarget
}

func (s *Server) isCurrent(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess == sess
}

// Start launches the server on target and waits until it reports that it
// has started. A running server is stopped first. If the server fails to
// start it is stopped and the error is returned; there is no retry.
// A Stop during Start makes Start return ErrStopped.
func (s *Server) Start(ctx context.Context, target *launcher.Target) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	return s.start(ctx, target)
}

func (s *Server) start(ctx context.Context, target *launcher.Target) error {
	if err := s.Stop(); err != nil {
		logrus.Warnf("stopping previous server: %v", err)
	}

	s.mu.Lock()
	gen := s.gen
	s.state = Starting
	s.mu.Unlock()
	s.bus.Publish(protocol.EventStateChanged, Starting)

	s.logger.AppendLinef("Starting OmniSharp server at %v", time.Now().Format(time.RFC1123))
	s.logger.IncreaseIndent()
	s.logger.AppendLinef("Target: %v", target.Target)
	s.logger.DecreaseIndent()
	s.logger.AppendLine("")

	s.bus.Publish(protocol.EventBeforeServerStart, target.Target)

	sess, stdout, stderr, err := s.spawn(target)
	if err != nil {
		s.logger.AppendLinef("Failed to start OmniSharp server: %v", err)
		s.bus.Publish(protocol.EventServerError, err)
		s.Stop()
		return err
	}
	sess.log.Infof("started %v", target.Target)

	sess.listeners.Add(s.bus.Subscribe(protocol.EventStarted, func(interface{}) {
		sess.startedOnce.Do(func() { close(sess.started) })
	}))

	s.mu.Lock()
	current := s.gen == gen
	if current {
		s.sess = sess
		s.lastTarget = target
	}
	s.mu.Unlock()

	sess.readers.Add(2)
	go s.readStdout(sess, stdout)
	go s.readStderr(sess, stderr)
	go s.wait(sess)
	go s.writeStdin(sess)

	if !current {
		sess.log.Debugf("stopped while starting")
		if err := s.teardown(sess); err != nil {
			logrus.Warnf("%v", err)
		}
		return ErrStopped
	}

	timeout := s.opts.projectLoadTimeout()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-sess.started:
	case <-timer.C:
		err = errors.Wrapf(ErrLoadTimeout, "no \"started\" event after %v; increase the project load timeout to allow more time", timeout)
	case <-sess.exited:
		err = errors.Errorf("server exited before it started: %v", sess.exitErr)
	case <-sess.done:
		return ErrStopped
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		s.logger.AppendLine(err.Error())
		s.bus.Publish(protocol.EventServerError, err)
		s.Stop()
		return err
	}

	s.mu.Lock()
	if s.sess != sess {
		s.mu.Unlock()
		return ErrStopped
	}
	s.state = Started
	sess.queue.Drain()
	s.mu.Unlock()

	go s.reportTelemetry(sess)

	s.bus.Publish(protocol.EventStateChanged, Started)
	s.bus.Publish(protocol.EventServerStart, target.Target)
	return nil
}

func (s *Server) spawn(target *launcher.Target) (*session, io.Reader, io.Reader, error) {
	cmd := launcher.Command(&s.opts.Options, target, os.Getpid())
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, nil, errors.Wrapf(err, "failed to execute %v", filepath.Base(cmd.Path))
	}

	sess := &session{
		id:      uuid.New().String(),
		cmd:     cmd,
		stdin:   stdin,
		started:  make(chan struct{}),
		exited:   make(chan struct{}),
		done:     make(chan struct{}),
		outReady: make(chan struct{}, 1),
	}
	sess.log = logrus.WithFields(logrus.Fields{
		"session": sess.id,
		"pid":     cmd.Process.Pid,
	})
	sess.queue = queue.NewRequestQueueCollection(s.logger, s.opts.Concurrency, func(r *queue.Request) int {
		return s.transmit(sess, r)
	})
	return sess, stdout, stderr, nil
}

func (s *Server) readStdout(sess *session, r io.Reader) {
	defer sess.readers.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		s.handleLine(sess, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		sess.log.Warnf("reading server stdout: %v", err)
	}
}

// writeStdin writes queued requests to the process in order.
func (s *Server) writeStdin(sess *session) {
	for {
		select {
		case <-sess.outReady:
		case <-sess.done:
			return
		}
		sess.outMu.Lock()
		batch := sess.out
		sess.out = nil
		sess.outMu.Unlock()

		for _, b := range batch {
			if _, err := sess.stdin.Write(b); err != nil {
				sess.log.Warnf("writing to server: %v", err)
			}
		}
	}
}

func (s *Server) readStderr(sess *session, r io.Reader) {
	defer sess.readers.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		sess.log.Debugf("stderr: %v", line)
		if s.isCurrent(sess) {
			s.logger.AppendLine(line)
			s.bus.Publish(protocol.EventStderr, line)
		}
	}
}

// wait reaps the process. An exit the client did not ask for is reported
// as a server error and stops the server.
func (s *Server) wait(sess *session) {
	sess.readers.Wait()
	sess.exitErr = sess.cmd.Wait()
	close(sess.exited)

	// Start reports exits that happen before the server has started.
	s.mu.Lock()
	unexpected := s.sess == sess && s.state == Started
	s.mu.Unlock()
	if !unexpected {
		sess.log.Debugf("exited: %v", sess.exitErr)
		return
	}
	err := errors.Errorf("OmniSharp server exited unexpectedly: %v", sess.exitErr)
	if sess.exitErr == nil {
		err = errors.New("OmniSharp server exited unexpectedly")
	}
	sess.log.Warn(err)
	s.logger.AppendLine(err.Error())
	s.bus.Publish(protocol.EventServerError, err)
	s.Stop()
}

func (s *Server) reportTelemetry(sess *session) {
	t := time.NewTicker(s.opts.telemetryInterval())
	defer t.Stop()

	for {
		select {
		case <-t.C:
			s.mu.Lock()
			ev := s.delays.Flush()
			s.mu.Unlock()
			telemetry.Send(s.reporter, ev)
		case <-sess.done:
			return
		}
	}
}

// Stop stops the server. Requests waiting for an answer fail with
// ErrStopped. Stopping a stopped server does nothing.
func (s *Server) Stop() error {
	s.mu.Lock()
	sess := s.sess
	prev := s.state
	s.sess = nil
	s.state = Stopped
	s.gen++
	ev := s.delays.Flush()
	s.mu.Unlock()

	telemetry.Send(s.reporter, ev)
	if sess == nil {
		if prev != Stopped {
			s.bus.Publish(protocol.EventStateChanged, Stopped)
			s.bus.Publish(protocol.EventServerStop, nil)
		}
		return nil
	}

	err := s.teardown(sess)
	s.bus.Publish(protocol.EventStateChanged, Stopped)
	s.bus.Publish(protocol.EventServerStop, nil)
	return err
}

// teardown ends a session that is no longer current.
func (s *Server) teardown(sess *session) error {
	close(sess.done)
	sess.listeners.Dispose()

	select {
	case <-sess.exited:
		return nil
	default:
	}
	sess.log.Debugf("stopping")
	var err error
	if err = killProcess(sess.cmd.Process); err != nil {
		err = errors.Wrap(err, "failed to stop OmniSharp server")
	}
	sess.stdin.Close()
	select {
	case <-sess.exited:
	case <-time.After(killTimeout):
		sess.log.Warnf("server did not exit; killing it")
		sess.cmd.Process.Kill()
	}
	return err
}

// Restart stops the server and starts it on target, or on the last
// target when target is nil.
func (s *Server) Restart(ctx context.Context, target *launcher.Target) error {
	if target == nil {
		target = s.LaunchTarget()
	}
	if target == nil {
		return ErrNoLaunchTargets
	}
	s.startMu.Lock()
	defer s.startMu.Unlock()
	return s.start(ctx, target)
}

// AutoStart starts the server on the only launch target under root, or on
// the one whose target path is preferred. When there are several targets
// and none is preferred, a MultipleLaunchTargets event is published with
// the candidates.
func (s *Server) AutoStart(ctx context.Context, root, preferred string) error {
	targets, err := launcher.FindTargets(root)
	if err != nil {
		return err
	}
	switch len(targets) {
	case 0:
		return ErrNoLaunchTargets
	case 1:
		return s.Restart(ctx, &targets[0])
	}
	if preferred != "" {
		if abs, err := filepath.Abs(preferred); err == nil {
			preferred = abs
		}
		for i := range targets {
			if targets[i].Target == preferred {
				return s.Restart(ctx, &targets[i])
			}
		}
	}
	s.bus.Publish(protocol.EventMultipleLaunchTargets, targets)
	return ErrMultipleLaunchTargets
}
