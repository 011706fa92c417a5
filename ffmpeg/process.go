package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/avyn/avstream/ffmpeg/parse"
	"github.com/avyn/avstream/process"
)

// Process is a running ffmpeg. Its stderr is parsed for progress and kept
// for error reports.
type Process interface {
	process.Process

	// Progress returns the last progress ffmpeg reported, with fps and
	// bitrate averaged.
	Progress() parse.Progress

	// Report returns the last log lines and the exit state.
	Report() parse.Report
}

type ffmpegProcess struct {
	process.Process

	parser parse.Parser
}

func (p *ffmpegProcess) Progress() parse.Progress {
	return p.parser.Progress()
}

func (p *ffmpegProcess) Report() parse.Report {
	return p.parser.Report()
}

// Release is process.Process.Release with the last log line of ffmpeg added
// to a failure.
func (p *ffmpegProcess) Release(mode process.ReleaseMode) error {
	err := p.Process.Release(mode)
	if err == nil {
		return nil
	}

	if line := lastLine(p.parser.Report().Log); len(line) != 0 {
		return fmt.Errorf("%w (%s)", err, line)
	}

	return err
}

func lastLine(lines []process.Line) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i].Data); len(line) != 0 {
			return line
		}
	}

	return ""
}
