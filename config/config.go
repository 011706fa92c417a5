// Package config implements the configuration of avstream. Every value has
// a default and can be overridden by an environment variable.
package config

import (
	"github.com/avyn/avstream/config/value"
	"github.com/avyn/avstream/config/vars"

	haikunator "github.com/atrox/haikunatorgo/v2"
)

// Data is the actual configuration data
type Data struct {
	Name   string `json:"name"`
	FFmpeg struct {
		Binary      string `json:"binary"`
		ProbeBinary string `json:"probe_binary"`
		Version     string `json:"version"`
	} `json:"ffmpeg"`
	Stream struct {
		BufferSize int `json:"buffer_size"`
	} `json:"stream"`
	Render struct {
		Width     int     `json:"width"`
		Height    int     `json:"height"`
		FrameRate float64 `json:"framerate"`
	} `json:"render"`
	Log struct {
		Level    string   `json:"level"`
		Format   string   `json:"format"`
		Topics   []string `json:"topics"`
		MaxLines int      `json:"max_lines"`
		Buffer   int      `json:"buffer"`
	} `json:"log"`
	Metrics struct {
		Address string `json:"address"`
	} `json:"metrics"`
}

// Config is a wrapper for Data
type Config struct {
	vars vars.Variables

	Data
}

// New returns a Config which is initialized with its default values
func New() *Config {
	cfg := &Config{}

	cfg.init()

	return cfg
}

func (d *Config) init() {
	d.vars.Register(value.NewString(&d.Name, haikunator.New().Haikunate()), "name", "AVSTREAM_NAME", nil, "A human readable name for this instance, used in logs and metrics", false)

	// FFmpeg
	d.vars.Register(value.NewExec(&d.FFmpeg.Binary, "ffmpeg"), "ffmpeg.binary", "AVSTREAM_FFMPEG_BINARY", []string{"FFMPEG_BINARY"}, "Path to ffmpeg binary", true)
	d.vars.Register(value.NewExec(&d.FFmpeg.ProbeBinary, "ffprobe"), "ffmpeg.probe_binary", "AVSTREAM_FFPROBE_BINARY", []string{"FFPROBE_BINARY"}, "Path to ffprobe binary", true)
	d.vars.Register(value.NewVersionConstraint(&d.FFmpeg.Version, ""), "ffmpeg.version", "AVSTREAM_FFMPEG_VERSION", nil, "Required ffmpeg version as semver constraint, e.g. ^6.0.0", false)

	// Stream
	d.vars.Register(value.NewPositiveInt(&d.Stream.BufferSize, 32768), "stream.buffer_size", "AVSTREAM_BUFFER_SIZE", nil, "Number of bytes read from ffmpeg at once", false)

	// Render
	d.vars.Register(value.NewPositiveInt(&d.Render.Width, 1280), "render.width", "AVSTREAM_RENDER_WIDTH", nil, "Width of rendered video", false)
	d.vars.Register(value.NewPositiveInt(&d.Render.Height, 720), "render.height", "AVSTREAM_RENDER_HEIGHT", nil, "Height of rendered video", false)
	d.vars.Register(value.NewFloat(&d.Render.FrameRate, 25), "render.framerate", "AVSTREAM_RENDER_FRAMERATE", nil, "Frame rate of rendered video", false)

	// Log
	d.vars.Register(value.NewLogLevel(&d.Log.Level, "info"), "log.level", "AVSTREAM_LOG_LEVEL", nil, "Loglevel: silent, error, warn, info, debug", false)
	d.vars.Register(value.NewEnum(&d.Log.Format, "console", []string{"console", "json"}), "log.format", "AVSTREAM_LOG_FORMAT", nil, "Log format: console, json", false)
	d.vars.Register(value.NewStringList(&d.Log.Topics, []string{}, ","), "log.topics", "AVSTREAM_LOG_TOPICS", nil, "Show only selected log topics", false)
	d.vars.Register(value.NewInt(&d.Log.MaxLines, 100), "log.max_lines", "AVSTREAM_LOG_MAXLINES", nil, "Number of ffmpeg log lines to keep per process", false)
	d.vars.Register(value.NewInt(&d.Log.Buffer, 0), "log.buffer", "AVSTREAM_LOG_BUFFER", nil, "Number of recent debug messages printed when a command fails, 0 to disable", false)

	// Metrics
	d.vars.Register(value.NewAddress(&d.Metrics.Address, ""), "metrics.address", "AVSTREAM_METRICS_ADDRESS", nil, "Listening address for prometheus metrics, empty to disable", false)
}

func (d *Config) Get(name string) (string, error) {
	return d.vars.Get(name)
}

func (d *Config) Set(name, val string) error {
	return d.vars.Set(name, val)
}

// Merge sets the values from the environment.
func (d *Config) Merge() {
	d.vars.Merge()
}

// MergeFrom sets the values from the variables lookup returns.
func (d *Config) MergeFrom(lookup vars.LookupFunc) {
	d.vars.MergeFrom(lookup)
}

// Validate validates the current state of the Config. If resetLogs is true
// the messages of a previous Merge are dropped.
func (d *Config) Validate(resetLogs bool) {
	if resetLogs {
		d.vars.ResetLogs()
	}

	d.vars.Validate()
}

// Messages calls logger for every message of Merge and Validate.
func (d *Config) Messages(logger func(level string, v vars.Variable, message string)) {
	d.vars.Messages(logger)
}

// HasErrors returns whether there are errors after Merge or Validate.
func (d *Config) HasErrors() bool {
	return d.vars.HasErrors()
}

// Overrides returns the names of the values that have been set from the environment.
func (d *Config) Overrides() []string {
	return d.vars.Overrides()
}

// Variables returns all configuration values.
func (d *Config) Variables() []vars.Variable {
	return d.vars.List()
}
