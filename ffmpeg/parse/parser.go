// Package parse implements the stderr sink for ffmpeg processes. Every line
// is logged, non-progress lines are kept in a ring and the progress lines
// are turned into Progress with averaged fps and bitrate.
package parse

import (
	"container/ring"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avyn/avstream/log"
	"github.com/avyn/avstream/process"
)

// Parser is an extension to the process.Parser interface
type Parser interface {
	process.Parser

	// Progress returns the current progress information of the process
	Progress() Progress

	// Report returns the current logs
	Report() Report
}

// Config is the config for the Parser implementation
type Config struct {
	LogLines int // Number of non-progress lines to keep
	Logger   log.Logger
}

// Progress is the state reported by the last progress line of ffmpeg.
type Progress struct {
	Frame     uint64
	FPS       float64 // averaged over 30 seconds
	Quantizer float64
	Size      uint64        // bytes
	Time      time.Duration // media time
	Bitrate   float64       // bit/s, averaged over 30 seconds
	Speed     float64
	Drop      uint64
	Dup       uint64
}

// Report represents the last log lines of a process and how it exited.
type Report struct {
	CreatedAt time.Time
	Log       []process.Line
	ExitState string
	Usage     process.Usage
}

type parser struct {
	re struct {
		frame     *regexp.Regexp
		quantizer *regexp.Regexp
		size      *regexp.Regexp
		time      *regexp.Regexp
		speed     *regexp.Regexp
		drop      *regexp.Regexp
		dup       *regexp.Regexp
	}

	log       *ring.Ring
	logLines  int
	logStart  time.Time
	exitState string
	usage     process.Usage

	progress Progress
	stats    stats

	averager struct {
		window      time.Duration
		granularity time.Duration
		main        *averager
	}

	logger log.Logger

	lock struct {
		progress sync.RWMutex
		log      sync.RWMutex
	}
}

// New returns a Parser that satisfies the Parser interface
func New(config Config) Parser {
	p := &parser{
		logLines: config.LogLines,
		logger:   config.Logger,
	}

	if p.logger == nil {
		p.logger = log.New("")
	}

	if p.logLines <= 0 {
		p.logLines = 1
	}

	p.averager.window = 30 * time.Second
	p.averager.granularity = time.Second

	p.re.frame = regexp.MustCompile(`frame=\s*([0-9]+)`)
	p.re.quantizer = regexp.MustCompile(`q=\s*(-?[0-9\.]+)`)
	p.re.size = regexp.MustCompile(`size=\s*([0-9]+)(kB|KiB)`)
	p.re.time = regexp.MustCompile(`time=\s*([0-9]+):([0-9]{2}):([0-9]{2}).([0-9]{2})`)
	p.re.speed = regexp.MustCompile(`speed=\s*([0-9\.]+)x`)
	p.re.drop = regexp.MustCompile(`drop=\s*([0-9]+)`)
	p.re.dup = regexp.MustCompile(`dup=\s*([0-9]+)`)

	p.ResetLog()
	p.ResetStats()

	return p
}

func (p *parser) Parse(data []byte) uint64 {
	line := string(data)

	p.logger.WithField("line", line).Debug().Log("")

	p.lock.log.Lock()
	if p.logStart.IsZero() {
		p.logStart = time.Now()
	}
	p.lock.log.Unlock()

	if !strings.HasPrefix(line, "frame=") && !strings.HasPrefix(line, "size=") {
		p.addLog(line)

		return 0
	}

	p.lock.progress.Lock()
	defer p.lock.progress.Unlock()

	if p.averager.main == nil {
		p.averager.main = newAverager(p.averager.window, p.averager.granularity)
	}

	p.parseDefaultProgress(line)

	p.stats.update(&p.progress)

	p.averager.main.add(p.stats.diff.frame, p.stats.diff.size)

	p.progress.FPS = p.averager.main.fpsAverage()
	p.progress.Bitrate = p.averager.main.bitrateAverage()

	// Audio only processes report no frames, the growing size is progress as well.
	if p.stats.diff.frame == 0 {
		return p.stats.diff.size
	}

	return p.stats.diff.frame
}

func (p *parser) parseDefaultProgress(line string) {
	var matches []string

	if matches = p.re.frame.FindStringSubmatch(line); matches != nil {
		if x, err := strconv.ParseUint(matches[1], 10, 64); err == nil {
			p.progress.Frame = x
		}
	}

	if matches = p.re.quantizer.FindStringSubmatch(line); matches != nil {
		if x, err := strconv.ParseFloat(matches[1], 64); err == nil {
			p.progress.Quantizer = x
		}
	}

	if matches = p.re.size.FindStringSubmatch(line); matches != nil {
		if x, err := strconv.ParseUint(matches[1], 10, 64); err == nil {
			p.progress.Size = x * 1024
		}
	}

	if matches = p.re.time.FindStringSubmatch(line); matches != nil {
		s := fmt.Sprintf("%sh%sm%ss%s0ms", matches[1], matches[2], matches[3], matches[4])
		if x, err := time.ParseDuration(s); err == nil {
			p.progress.Time = x
		}
	}

	if matches = p.re.speed.FindStringSubmatch(line); matches != nil {
		if x, err := strconv.ParseFloat(matches[1], 64); err == nil {
			p.progress.Speed = x
		}
	}

	if matches = p.re.drop.FindStringSubmatch(line); matches != nil {
		if x, err := strconv.ParseUint(matches[1], 10, 64); err == nil {
			p.progress.Drop = x
		}
	}

	if matches = p.re.dup.FindStringSubmatch(line); matches != nil {
		if x, err := strconv.ParseUint(matches[1], 10, 64); err == nil {
			p.progress.Dup = x
		}
	}
}

func (p *parser) addLog(line string) {
	p.lock.log.Lock()
	defer p.lock.log.Unlock()

	p.log.Value = process.Line{
		Timestamp: time.Now(),
		Data:      line,
	}
	p.log = p.log.Next()
}

func (p *parser) Stop(state string, usage process.Usage) {
	p.lock.log.Lock()
	p.exitState = state
	p.usage = usage
	p.lock.log.Unlock()

	p.logger.WithFields(log.Fields{
		"exec_state": state,
		"cpu":        usage.CPU,
		"memory":     usage.Memory,
	}).Debug().Log("Process stopped")

	p.lock.progress.Lock()
	defer p.lock.progress.Unlock()

	p.stopAverager()
}

func (p *parser) stopAverager() {
	if p.averager.main == nil {
		return
	}

	p.averager.main.stop()
	p.averager.main = nil
}

func (p *parser) Progress() Progress {
	p.lock.progress.RLock()
	defer p.lock.progress.RUnlock()

	return p.progress
}

func (p *parser) Log() []process.Line {
	p.lock.log.RLock()
	defer p.lock.log.RUnlock()

	return p.lines()
}

func (p *parser) lines() []process.Line {
	var log = []process.Line{}

	p.log.Do(func(l interface{}) {
		if l == nil {
			return
		}

		log = append(log, l.(process.Line))
	})

	return log
}

func (p *parser) IsRunning() bool {
	p.lock.log.RLock()
	defer p.lock.log.RUnlock()

	return len(p.exitState) == 0
}

func (p *parser) ResetStats() {
	p.lock.progress.Lock()
	defer p.lock.progress.Unlock()

	p.stopAverager()

	p.progress = Progress{}
	p.stats = stats{}
}

func (p *parser) ResetLog() {
	p.lock.log.Lock()
	defer p.lock.log.Unlock()

	p.log = ring.New(p.logLines)
	p.logStart = time.Time{}
	p.exitState = ""
	p.usage = process.Usage{}
}

func (p *parser) Report() Report {
	p.lock.log.RLock()
	defer p.lock.log.RUnlock()

	return Report{
		CreatedAt: p.logStart,
		Log:       p.lines(),
		ExitState: p.exitState,
		Usage:     p.usage,
	}
}
