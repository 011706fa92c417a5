// Package ffmpeg launches ffmpeg and ffprobe processes from command templates.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/avyn/avstream/ffmpeg/parse"
	"github.com/avyn/avstream/ffmpeg/probe"
	"github.com/avyn/avstream/log"
	"github.com/avyn/avstream/media"
	"github.com/avyn/avstream/process"
)

// Launcher starts ffmpeg processes and probes media files.
type Launcher interface {
	// Query expands the template with the arguments and starts ffmpeg
	// with its standard streams connected to pipes. Errors on release carry
	// the last log line of ffmpeg.
	Query(template string, args ...interface{}) (Process, error)

	// Command expands the template with the arguments without starting anything.
	Command(template string, args ...interface{}) ([]string, error)

	// Probe returns the stream information of a media file.
	Probe(ctx context.Context, path string) (media.Info, error)

	// Interweave muxes the first video stream of videoPath and the first audio
	// stream of audioPath into target. With a zero duration the duration of
	// the video file is used.
	Interweave(ctx context.Context, videoPath, audioPath string, duration time.Duration, target string) error

	// States returns the cumulative exit states of all started processes.
	States() process.States

	// Version returns the version of the ffmpeg binary.
	Version() Version

	// WithLogger returns a launcher that logs to the given logger. It shares
	// the state counters with the original launcher.
	WithLogger(logger log.Logger) Launcher
}

// Config is the configuration of a Launcher.
type Config struct {
	Binary            string // Name or path of the ffmpeg binary
	ProbeBinary       string // Name or path of the ffprobe binary
	VersionConstraint string // Semver constraint for the ffmpeg version, empty for any
	LogLines          int    // Number of stderr lines to keep per process
	Logger            log.Logger
}

type counter struct {
	states process.States
	lock   sync.RWMutex
}

func (c *counter) onStateChange(from, to string) {
	c.lock.Lock()
	c.states.Inc(to)
	c.lock.Unlock()
}

type ffmpeg struct {
	binary   string
	logLines int
	version  Version

	prober probe.Prober
	probe  probe.Config

	states *counter
	logger log.Logger
}

// New resolves the binaries and checks the version of ffmpeg.
func New(config Config) (Launcher, error) {
	f := &ffmpeg{
		logLines: config.LogLines,
		states:   &counter{},
		logger:   config.Logger,
	}

	if f.logger == nil {
		f.logger = log.New("")
	}

	binary, err := exec.LookPath(config.Binary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffmpeg binary given: %w", err)
	}

	f.binary = binary

	probeBinary, err := exec.LookPath(config.ProbeBinary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffprobe binary given: %w", err)
	}

	f.probe = probe.Config{
		Binary:        probeBinary,
		Logger:        f.logger,
		OnStateChange: f.states.onStateChange,
	}

	f.prober, err = probe.New(f.probe)
	if err != nil {
		return nil, err
	}

	f.version, err = f.queryVersion()
	if err != nil {
		return nil, fmt.Errorf("invalid ffmpeg binary given: %w", err)
	}

	if err := f.version.Satisfies(config.VersionConstraint); err != nil {
		return nil, err
	}

	f.logger.WithFields(log.Fields{
		"binary":  f.binary,
		"ffprobe": probeBinary,
		"version": f.version.Version,
	}).Debug().Log("Found ffmpeg")

	return f, nil
}

func (f *ffmpeg) queryVersion() (Version, error) {
	proc, err := process.New(process.Config{
		Binary:        f.binary,
		Args:          []string{"-version"},
		OnStateChange: f.states.onStateChange,
		Logger:        f.logger,
	})
	if err != nil {
		return Version{}, err
	}

	data, rerr := io.ReadAll(proc.Stdout())

	if err := proc.Release(process.ReleaseClose); err != nil {
		return Version{}, err
	}

	if rerr != nil {
		return Version{}, fmt.Errorf("reading the output of %s -version: %w", f.binary, rerr)
	}

	v := parseVersion(bytes.TrimSpace(data))
	if len(v.Version) == 0 {
		return Version{}, fmt.Errorf("no version found in the output of %s -version", f.binary)
	}

	return v, nil
}

func (f *ffmpeg) Command(template string, args ...interface{}) ([]string, error) {
	return Expand(template, args...)
}

func (f *ffmpeg) Query(template string, args ...interface{}) (Process, error) {
	command, err := Expand(template, args...)
	if err != nil {
		return nil, err
	}

	parser := parse.New(parse.Config{
		LogLines: f.logLines,
		Logger:   f.logger,
	})

	f.logger.WithField("command", command).Debug().Log("Starting ffmpeg")

	proc, err := process.New(process.Config{
		Binary:        f.binary,
		Args:          command,
		Parser:        parser,
		OnStateChange: f.states.onStateChange,
		Logger:        f.logger,
	})
	if err != nil {
		return nil, err
	}

	return &ffmpegProcess{
		Process: proc,
		parser:  parser,
	}, nil
}

func (f *ffmpeg) Probe(ctx context.Context, path string) (media.Info, error) {
	return f.prober.Probe(ctx, path)
}

func (f *ffmpeg) Interweave(ctx context.Context, videoPath, audioPath string, duration time.Duration, target string) error {
	if duration == 0 {
		info, err := f.Probe(ctx, videoPath)
		if err != nil {
			return err
		}

		duration = info.Duration
	}

	limit := ""
	if duration > 0 {
		limit = "-t " + strconv.FormatFloat(duration.Seconds(), 'f', -1, 64)
	}

	proc, err := f.Query("-i @{0} -i @{1} -c copy -map 0:v:0 -map 1:a:0 {2} -y @{3}", videoPath, audioPath, limit, target)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			proc.Kill()
		case <-done:
		}
	}()

	err = proc.Release(process.ReleaseClose)

	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}

	if err != nil {
		return fmt.Errorf("interweaving %s and %s: %w", videoPath, audioPath, err)
	}

	return nil
}

func (f *ffmpeg) States() process.States {
	f.states.lock.RLock()
	defer f.states.lock.RUnlock()

	return f.states.states
}

func (f *ffmpeg) Version() Version {
	return f.version
}

func (f *ffmpeg) WithLogger(logger log.Logger) Launcher {
	if logger == nil {
		logger = log.New("")
	}

	c := *f
	c.logger = logger

	p := f.probe
	p.Logger = logger

	prober, err := probe.New(p)
	if err != nil {
		logger.Warn().WithError(err).Log("Keeping the previous prober")
	} else {
		c.prober = prober
	}

	return &c
}
