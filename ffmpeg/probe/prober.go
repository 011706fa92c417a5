// Package probe runs ffprobe and turns its section output into media.Info.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/avyn/avstream/log"
	"github.com/avyn/avstream/media"
	"github.com/avyn/avstream/process"
)

// ErrNotFound is returned if the file to probe doesn't exist.
var ErrNotFound = fmt.Errorf("media file not found: %w", fs.ErrNotExist)

// Prober returns the stream information of a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (media.Info, error)
}

type Config struct {
	Binary        string // Path to the ffprobe binary
	Logger        log.Logger
	OnStateChange func(from, to string) // Passed to every ffprobe process
}

type prober struct {
	binary        string
	logger        log.Logger
	onStateChange func(from, to string)
}

// New returns a Prober that runs the given ffprobe binary.
func New(config Config) (Prober, error) {
	p := &prober{
		binary:        config.Binary,
		logger:        config.Logger,
		onStateChange: config.OnStateChange,
	}

	if len(p.binary) == 0 {
		return nil, fmt.Errorf("no ffprobe binary given")
	}

	if p.logger == nil {
		p.logger = log.New("")
	}

	return p, nil
}

func (p *prober) Probe(ctx context.Context, path string) (media.Info, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return media.Info{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}

		return media.Info{}, err
	}

	parser := process.NewBufferParser()

	proc, err := process.New(process.Config{
		Binary:        p.binary,
		Args:          []string{"-hide_banner", "-i", path, "-show_format", "-show_streams"},
		Parser:        parser,
		OnStateChange: p.onStateChange,
		Logger:        p.logger,
	})
	if err != nil {
		return media.Info{}, fmt.Errorf("starting ffprobe: %w", err)
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

	sections, perr := ParseSections(proc.Stdout())
	if perr != nil {
		// Consume the rest such that ffprobe doesn't block on a full pipe.
		io.Copy(io.Discard, proc.Stdout())
	}

	werr := proc.Release(process.ReleaseClose)

	if err := ctx.Err(); err != nil {
		return media.Info{}, err
	}

	if werr != nil {
		lines := parser.Log()
		if len(lines) != 0 {
			return media.Info{}, fmt.Errorf("%w (%s)", werr, lines[len(lines)-1].Data)
		}

		return media.Info{}, werr
	}

	if perr != nil {
		return media.Info{}, perr
	}

	info, err := Build(sections, path)
	if err != nil {
		return media.Info{}, err
	}

	p.logger.WithFields(log.Fields{
		"file":    path,
		"format":  info.FormatCode,
		"streams": len(info.Streams),
	}).Debug().Log("Probed")

	return info, nil
}
