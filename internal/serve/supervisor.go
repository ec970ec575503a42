// SPDX-License-Identifier: MPL-2.0

package serve

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"driven-cli/internal/build"
	"driven-cli/internal/issue"
)

// ErrShutdown is returned by Run when it stops because its context was
// cancelled.
var ErrShutdown = errors.New("serve: shut down")

type (
	// Builder is the build side of the loop; *build.Orchestrator implements it.
	Builder interface {
		Build(ctx context.Context) build.Result
		Cleanup() error
		OutputPath() string
	}

	// Watcher reports changes through the callback it was created with and
	// runs until its context is cancelled.
	Watcher interface {
		Run(ctx context.Context) error
	}

	// Supervisor owns the watch, build, serve loop: every successful build
	// replaces the served process, failed builds leave it alone. All state
	// is owned by the goroutine running Run.
	Supervisor struct {
		builder Builder
		spawner Spawner
		entry   string
		args    []string
		clock   build.Clock
		logger  *log.Logger

		state   atomic.Int32
		outcome atomic.Int32
		pending chan struct{}
		exited  chan exit

		proc Process
	}

	// Option configures a Supervisor.
	Option func(*Supervisor)

	exit struct {
		proc Process
		err  error
	}

	systemClock struct{}
)

func (systemClock) Now() time.Time { return time.Now() }

// WithArgs passes extra arguments to every served process.
func WithArgs(args ...string) Option {
	return func(s *Supervisor) { s.args = args }
}

// WithLogger sets the logger for build and process messages.
func WithLogger(logger *log.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// WithClock replaces the clock used to timestamp build messages.
func WithClock(c build.Clock) Option {
	return func(s *Supervisor) { s.clock = c }
}

// New creates a supervisor serving entry, a path relative to the builder's
// output directory.
func New(builder Builder, spawner Spawner, entry string, opts ...Option) *Supervisor {
	s := &Supervisor{
		builder: builder,
		spawner: spawner,
		entry:   entry,
		clock:   systemClock{},
		logger:  log.New(io.Discard),
		pending: make(chan struct{}, 1),
		exited:  make(chan exit, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state (atomic, lock-free read).
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// LastOutcome reports how the most recent rebuild ended.
func (s *Supervisor) LastOutcome() Outcome {
	return Outcome(s.outcome.Load())
}

// Notify requests a rebuild. It never blocks: while a rebuild is already
// pending further requests are merged into it. Pass it as the watcher's
// change callback.
func (s *Supervisor) Notify([]string) {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

// Run builds once, serves the result and then rebuilds on every
// notification until ctx is cancelled or w fails. The watcher, served
// process and builder are released on every return path. Run returns
// ErrShutdown after cancellation and the watcher's error after a watcher
// failure. A Supervisor is single-use.
func (s *Supervisor) Run(ctx context.Context, w Watcher) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateWatching)) {
		return errors.New("serve: Run called more than once")
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	watchErr := make(chan error, 1)
	go func() { watchErr <- w.Run(watchCtx) }()

	// Builds are never cancelled midway; shutdown waits for the current one.
	buildCtx := context.WithoutCancel(ctx)
	s.rebuild(buildCtx)

	for {
		select {
		case <-ctx.Done():
			stopWatch()
			<-watchErr
			return s.shutdown(ErrShutdown)

		case err := <-watchErr:
			stopWatch()
			if err == nil {
				err = ErrShutdown
			}
			s.logger.Error("file watcher stopped", "err", err)
			return s.shutdown(err)

		case <-s.pending:
			s.rebuild(buildCtx)

		case ex := <-s.exited:
			if ex.proc != s.proc {
				continue
			}
			s.logger.Warn("served process exited; waiting for the next successful build", "err", ex.err)
			s.proc = nil
		}
	}
}

func (s *Supervisor) rebuild(ctx context.Context) {
	s.setState(StateBuilding)
	defer s.setState(StateWatching)

	res := s.builder.Build(ctx)
	if !res.Success {
		s.reportFailure(res)
		s.outcome.Store(int32(OutcomeBuildFailed))
		return
	}

	s.logger.Infof("Built - %d ms @ %s", res.Duration.Milliseconds(), s.clock.Now().Format(time.DateTime))
	if err := s.restart(); err != nil {
		s.logger.Error(err.Error())
		s.outcome.Store(int32(OutcomeSpawnFailed))
		return
	}
	s.outcome.Store(int32(OutcomeServing))
}

func (s *Supervisor) reportFailure(res build.Result) {
	s.logger.Error("Build failed", "err", res.Err)
	if res.Location != nil {
		if res.Location.LineText != "" {
			s.logger.Error(res.Location.String() + "\n  " + res.Location.LineText)
		}
		return
	}
	s.logger.Error("Error chain:" + issue.Chain(res.Err))
}

// restart stops the served process, waits for its exit to be confirmed and
// starts the entry point of the new build.
func (s *Supervisor) restart() error {
	s.stop()

	entry := filepath.Join(s.builder.OutputPath(), filepath.FromSlash(s.entry))
	proc, err := s.spawner.Spawn(entry, s.args)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("start served process").
			WithResource(entry).
			WithSuggestion("Check that serve.interpreter is installed").
			WithIssue(issue.ServeSpawnFailedId).
			Wrap(err).
			BuildError()
	}
	s.proc = proc
	go func() {
		err := proc.Wait()
		s.exited <- exit{proc: proc, err: err}
	}()
	s.logger.Debug("served process started", "entry", entry)
	return nil
}

// stop kills the served process, if any, and blocks until it has exited.
func (s *Supervisor) stop() {
	if s.proc == nil {
		return
	}
	if err := s.proc.Kill(); err != nil {
		s.logger.Warn("kill served process", "err", err)
	}
	for ex := range s.exited {
		if ex.proc == s.proc {
			break
		}
	}
	s.proc = nil
}

func (s *Supervisor) shutdown(cause error) error {
	s.setState(StateShuttingDown)
	s.stop()
	if err := s.builder.Cleanup(); err != nil {
		s.logger.Warn("remove build directories", "err", err)
	}
	s.setState(StateStopped)
	return cause
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
}
