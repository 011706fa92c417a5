// Package process is a wrapper of exec.Cmd for a child process whose standard
// streams are all connected to pipes. stdin and stdout carry the payload, stderr
// is drained line by line into a Parser by a single goroutine.
//
// A process is started once and released once. Release either closes stdin
// and waits (the writer side of a transcoder) or kills and waits (the reader
// side). There is no timeout on the wait, a hanging child blocks Release.
package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/avyn/avstream/log"
)

// Process represents a running child process with its pipes.
type Process interface {
	// Stdin returns the write end of the child's standard input.
	Stdin() io.WriteCloser

	// Stdout returns the read end of the child's standard output.
	Stdout() io.Reader

	// CloseInput closes the child's standard input. This signals the
	// end of the input to the child. Closing it twice is not an error.
	CloseInput() error

	// Kill terminates the child. An already exited child or a denied
	// permission is not reported as an error.
	Kill() error

	// Wait waits for the stderr drain to end and then for the child to
	// exit. It returns the exit error of the child. Calling it again
	// returns the same result.
	Wait() error

	// Release closes stdin and waits (ReleaseClose) or kills and waits
	// (ReleaseKill). Only the first call has an effect, all later calls
	// return nil. With ReleaseKill the exit status is not reported.
	Release(mode ReleaseMode) error

	// State returns the current state of the process.
	State() string

	// PID returns the process ID of the child, -1 if it exited.
	PID() int32

	// Usage returns the last sampled CPU and memory usage of the child.
	Usage() Usage

	// Args returns the arguments the child has been started with.
	Args() []string
}

// ReleaseMode selects how a process is released.
type ReleaseMode int

const (
	ReleaseClose ReleaseMode = iota // Close stdin, then wait
	ReleaseKill                     // Kill, then wait
)

func (m ReleaseMode) String() string {
	if m == ReleaseKill {
		return "kill"
	}

	return "close"
}

// Config is the configuration of a process
type Config struct {
	Binary        string                // Path to the binary, already resolved.
	Args          []string              // List of arguments for the binary.
	Parser        Parser                // A parser for the stderr lines of the process.
	OnExit        func(state string)    // A callback which is called after the process exited with the exit state.
	OnStateChange func(from, to string) // A callback which is called after a state changed.
	Logger        log.Logger
}

// States
//
// starting - Process is about to start
//
//	running - if process could be started
//	failed - if process couldn't be started (e.g. binary not found)
//
// running - Process is running
//
//	finished - if process exited normally
//	failed - if process exited with a non-zero exit code
//	killed - if process has been killed or exited because of a signal
type stateType string

const (
	stateFinished stateType = "finished"
	stateStarting stateType = "starting"
	stateRunning  stateType = "running"
	stateFailed   stateType = "failed"
	stateKilled   stateType = "killed"
)

// String returns a string representation of the state
func (s stateType) String() string {
	return string(s)
}

// IsRunning returns whether the state is representing a running state
func (s stateType) IsRunning() bool {
	return s == stateStarting || s == stateRunning
}

// States is a cumulative count of the states a number of processes had.
type States struct {
	Finished uint64
	Starting uint64
	Running  uint64
	Failed   uint64
	Killed   uint64
}

// Inc increments the counter for the given state.
func (s *States) Inc(state string) {
	switch stateType(state) {
	case stateFinished:
		s.Finished++
	case stateStarting:
		s.Starting++
	case stateRunning:
		s.Running++
	case stateFailed:
		s.Failed++
	case stateKilled:
		s.Killed++
	}
}

type process struct {
	binary string
	args   []string
	cmd    *exec.Cmd
	pid    atomic.Int32

	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	state struct {
		state stateType
		time  time.Time
		lock  sync.RWMutex
	}

	killed atomic.Bool

	parser  Parser
	drained chan struct{}

	wait struct {
		once sync.Once
		err  error
	}
	release sync.Once

	usage *usageSampler

	logger      log.Logger
	debuglogger log.Logger

	callbacks struct {
		onExit        func(state string)
		onStateChange func(from, to string)
	}
}

var _ Process = &process{}

// New starts the binary with all three standard streams connected to pipes
// and starts draining stderr.
func New(config Config) (Process, error) {
	p := &process{
		binary:  config.Binary,
		parser:  config.Parser,
		logger:  config.Logger,
		drained: make(chan struct{}),
	}

	p.pid.Store(-1)

	p.args = make([]string, len(config.Args))
	copy(p.args, config.Args)

	if len(p.binary) == 0 {
		return nil, fmt.Errorf("no valid binary given")
	}

	if p.parser == nil {
		p.parser = NewNullParser()
	}

	if p.logger == nil {
		p.logger = log.New("Process")
	}

	p.debuglogger = p.logger.WithFields(log.Fields{
		"binary": p.binary,
		"args":   p.args,
	})

	p.callbacks.onExit = config.OnExit
	p.callbacks.onStateChange = config.OnStateChange

	p.initState(stateStarting)

	if err := p.start(); err != nil {
		p.setState(stateFailed)

		p.parser.Parse([]byte(err.Error()))
		p.logger.WithError(err).Error().Log("Command failed")

		if p.callbacks.onExit != nil {
			p.callbacks.onExit(stateFailed.String())
		}

		return nil, err
	}

	p.setState(stateRunning)

	p.logger.Debug().Log("Started")
	p.debuglogger.WithField("pid", p.pid.Load()).Debug().Log("Started")

	go p.reader()

	return p, nil
}

func (p *process) start() error {
	var err error

	p.cmd = exec.Command(p.binary, p.args...)

	p.stdin, err = p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}

	p.stdout, err = p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	p.stderr, err = p.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	p.parser.ResetStats()
	p.parser.ResetLog()

	if err := p.cmd.Start(); err != nil {
		return err
	}

	p.pid.Store(int32(p.cmd.Process.Pid))
	p.usage = newUsageSampler(p.pid.Load())

	return nil
}

func (p *process) initState(state stateType) {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()

	p.state.state = state
	p.state.time = time.Now()

	if p.callbacks.onStateChange != nil {
		p.callbacks.onStateChange("", state.String())
	}
}

// setState sets a new state. Only the transitions listed for stateType are
// allowed, any other is an error and the state is left unchanged.
func (p *process) setState(state stateType) (stateType, error) {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()

	prevState := p.state.state
	failed := false

	if prevState == state {
		return prevState, nil
	}

	switch prevState {
	case stateStarting:
		switch state {
		case stateRunning, stateFailed:
			p.state.state = state
		default:
			failed = true
		}
	case stateRunning:
		switch state {
		case stateFinished, stateFailed, stateKilled:
			p.state.state = state
		default:
			failed = true
		}
	default:
		failed = true
	}

	if failed {
		return "", fmt.Errorf("can't change from state %s to %s", prevState, state)
	}

	p.state.time = time.Now()

	if p.callbacks.onStateChange != nil {
		p.callbacks.onStateChange(prevState.String(), p.state.state.String())
	}

	return prevState, nil
}

func (p *process) getState() stateType {
	p.state.lock.RLock()
	defer p.state.lock.RUnlock()

	return p.state.state
}

func (p *process) State() string {
	return p.getState().String()
}

func (p *process) PID() int32 {
	return p.pid.Load()
}

func (p *process) Args() []string {
	args := make([]string, len(p.args))
	copy(args, p.args)

	return args
}

func (p *process) Usage() Usage {
	if !p.getState().IsRunning() {
		return p.usage.Last()
	}

	return p.usage.Sample()
}

func (p *process) Stdin() io.WriteCloser {
	return p.stdin
}

func (p *process) Stdout() io.Reader {
	return p.stdout
}

func (p *process) CloseInput() error {
	err := p.stdin.Close()
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}

	return nil
}

func (p *process) Kill() error {
	if !p.getState().IsRunning() {
		return nil
	}

	p.killed.Store(true)

	err := p.cmd.Process.Kill()
	if err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, os.ErrPermission) {
			p.debuglogger.WithError(err).Debug().Log("Kill ignored")
			return nil
		}

		return err
	}

	return nil
}

func (p *process) Wait() error {
	p.wait.once.Do(func() {
		p.wait.err = p.waiter()
	})

	return p.wait.err
}

func (p *process) Release(mode ReleaseMode) error {
	var err error

	p.release.Do(func() {
		p.debuglogger.WithField("mode", mode.String()).Debug().Log("Releasing")

		switch mode {
		case ReleaseKill:
			err = p.Kill()
			p.Wait()
		default:
			if cerr := p.CloseInput(); cerr != nil {
				p.logger.WithError(cerr).Warn().Log("Closing input failed")
			}
			err = p.Wait()
		}
	})

	return err
}

// reader reads the stderr of the process line by line and gives
// each line to the parser. It ends when stderr has been closed by
// the process.
func (p *process) reader() {
	defer close(p.drained)

	scanner := bufio.NewScanner(p.stderr)
	scanner.Split(scanLines)

	for scanner.Scan() {
		p.parser.Parse(scanner.Bytes())
	}

	if err := scanner.Err(); err != nil {
		p.logger.Debug().WithError(err).Log("")
		p.parser.Parse([]byte(err.Error()))
	}
}

// waiter waits for the drain to end and for the process to exit.
func (p *process) waiter() error {
	// exec.Cmd.Wait closes the pipes, stderr has to be read to the end before.
	<-p.drained

	state := stateFinished

	usage := p.usage.Sample()

	err := p.cmd.Wait()
	if err != nil {
		var exiterr *exec.ExitError
		if errors.As(err, &exiterr) {
			p.debuglogger.WithFields(log.Fields{
				"exit_code":   exiterr.ExitCode(),
				"exit_string": exiterr.String(),
			}).Debug().Log("Exited")

			if exiterr.ExitCode() == -1 || p.killed.Load() {
				// Terminated by a signal
				p.logger.Debug().Log("Killed")
				state = stateKilled
			} else {
				p.logger.Debug().Log("Failed")
				state = stateFailed
			}
		} else {
			p.logger.WithError(err).Debug().Log("Killed")
			state = stateKilled
		}
	}

	p.setState(state)
	p.pid.Store(-1)

	p.logger.Debug().Log("Stopped")
	p.debuglogger.WithField("log", p.parser.Log()).Debug().Log("Stopped")

	p.parser.Stop(state.String(), usage)

	if p.callbacks.onExit != nil {
		p.callbacks.onExit(state.String())
	}

	if err != nil {
		return fmt.Errorf("%s %s: %w", p.binary, state, err)
	}

	return nil
}

// scanLines splits the data on \r, \n, or \r\n line endings
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	// Skip leading line endings.
	start := 0
	for width := 0; start < len(data); start += width {
		var r rune
		r, width = utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
	}

	// Scan until new line, marking end of line.
	for width, i := 0, start; i < len(data); i += width {
		var r rune
		r, width = utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + width, data[start:i], nil
		}
	}

	// If we're at EOF, we have a final, non-empty, non-terminated line. Return it.
	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}

	// Request more data.
	return start, nil, nil
}
