package config

import (
	"testing"

	"github.com/avyn/avstream/config/vars"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := New()

	require.Equal(t, "ffmpeg", cfg.FFmpeg.Binary)
	require.Equal(t, "ffprobe", cfg.FFmpeg.ProbeBinary)
	require.Equal(t, "", cfg.FFmpeg.Version)
	require.Equal(t, 32768, cfg.Stream.BufferSize)
	require.Equal(t, 1280, cfg.Render.Width)
	require.Equal(t, 720, cfg.Render.Height)
	require.Equal(t, float64(25), cfg.Render.FrameRate)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "console", cfg.Log.Format)
	require.Equal(t, 0, cfg.Log.Buffer)
	require.Equal(t, []string{}, cfg.Log.Topics)
	require.Equal(t, 100, cfg.Log.MaxLines)
	require.Equal(t, "", cfg.Metrics.Address)

	require.NotEmpty(t, cfg.Name)

	require.Equal(t, 14, len(cfg.Variables()))
}

func TestMergeFrom(t *testing.T) {
	cfg := New()

	env := map[string]string{
		"FFMPEG_BINARY":            "/usr/local/bin/ffmpeg",
		"AVSTREAM_FFMPEG_VERSION":  "^6.0.0",
		"AVSTREAM_BUFFER_SIZE":     "4096",
		"AVSTREAM_LOG_LEVEL":       "DEBUG",
		"AVSTREAM_LOG_TOPICS":      "AudioFileReader,VideoFileWriter",
		"AVSTREAM_METRICS_ADDRESS": "9090",
	}

	cfg.MergeFrom(func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	})

	require.Equal(t, "/usr/local/bin/ffmpeg", cfg.FFmpeg.Binary)
	require.Equal(t, "^6.0.0", cfg.FFmpeg.Version)
	require.Equal(t, 4096, cfg.Stream.BufferSize)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, []string{"AudioFileReader", "VideoFileWriter"}, cfg.Log.Topics)
	require.Equal(t, ":9090", cfg.Metrics.Address)

	require.ElementsMatch(t, []string{
		"ffmpeg.binary",
		"ffmpeg.version",
		"stream.buffer_size",
		"log.level",
		"log.topics",
		"metrics.address",
	}, cfg.Overrides())

	v, err := cfg.Get("stream.buffer_size")
	require.NoError(t, err)
	require.Equal(t, "4096", v)
}

func TestValidate(t *testing.T) {
	cfg := New()

	require.NoError(t, cfg.Set("ffmpeg.binary", "/nonexistent/ffmpeg"))
	require.NoError(t, cfg.Set("stream.buffer_size", "0"))
	require.NoError(t, cfg.Set("log.level", "loud"))
	require.NoError(t, cfg.Set("log.format", "xml"))

	cfg.Validate(true)
	require.True(t, cfg.HasErrors())

	failed := map[string]bool{}
	cfg.Messages(func(level string, v vars.Variable, message string) {
		if level == "error" {
			failed[v.Name] = true
		}
	})

	require.True(t, failed["ffmpeg.binary"])
	require.True(t, failed["stream.buffer_size"])
	require.True(t, failed["log.level"])
	require.True(t, failed["log.format"])
	require.False(t, failed["render.width"])
}
