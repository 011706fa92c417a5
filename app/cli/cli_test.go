package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/avyn/avstream/internal/testhelper"
	"github.com/avyn/avstream/media"

	"github.com/stretchr/testify/require"
)

var binaries struct {
	once    sync.Once
	ffmpeg  string
	ffprobe string
	err     error
}

func newApp(t *testing.T, env map[string]string) (*App, *bytes.Buffer, error) {
	a, stdout, _, err := newAppWithStderr(t, env)

	return a, stdout, err
}

func newAppWithStderr(t *testing.T, env map[string]string) (*App, *bytes.Buffer, *bytes.Buffer, error) {
	binaries.once.Do(func() {
		binaries.ffmpeg, binaries.err = testhelper.BuildBinary("ffmpeg", "../../internal/testhelper")
		if binaries.err != nil {
			return
		}

		binaries.ffprobe, binaries.err = testhelper.BuildBinary("ffprobe", "../../internal/testhelper")
	})
	require.NoError(t, binaries.err, "Failed to build helper program")

	lookup := map[string]string{
		"AVSTREAM_FFMPEG_BINARY":  binaries.ffmpeg,
		"AVSTREAM_FFPROBE_BINARY": binaries.ffprobe,
		"AVSTREAM_LOG_LEVEL":      "silent",
	}

	for k, v := range env {
		lookup[k] = v
	}

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	a, err := New(func(name string) (string, bool) {
		v, ok := lookup[name]
		return v, ok
	}, stdout, stderr)
	if err == nil {
		t.Cleanup(a.Close)
	}

	return a, stdout, stderr, err
}

func writeVideo(t *testing.T, dir string, payload []byte) string {
	path := filepath.Join(dir, "input.mp4")
	require.NoError(t, testhelper.WriteMedia(path, testhelper.VideoProbe(16, 8, "25/1", "0.120000"), payload))

	return path
}

func TestNewInvalidConfig(t *testing.T) {
	_, _, err := newApp(t, map[string]string{
		"AVSTREAM_BUFFER_SIZE": "0",
	})
	require.Error(t, err)
}

func TestNewVersionMismatch(t *testing.T) {
	_, _, err := newApp(t, map[string]string{
		"AVSTREAM_FFMPEG_VERSION": "^7.0.0",
	})
	require.Error(t, err)
}

func TestUsage(t *testing.T) {
	a, _, err := newApp(t, nil)
	require.NoError(t, err)

	ctx := context.Background()

	require.ErrorIs(t, a.Run(ctx, nil), ErrUsage)
	require.ErrorIs(t, a.Run(ctx, []string{"play"}), ErrUsage)
	require.ErrorIs(t, a.Run(ctx, []string{"probe"}), ErrUsage)
	require.ErrorIs(t, a.Run(ctx, []string{"probe", "-verbose", "file"}), ErrUsage)
	require.ErrorIs(t, a.Run(ctx, []string{"interweave", "a", "b"}), ErrUsage)
	require.ErrorIs(t, a.Run(ctx, []string{"version", "extra"}), ErrUsage)
}

func TestProbe(t *testing.T) {
	a, stdout, err := newApp(t, nil)
	require.NoError(t, err)

	path := writeVideo(t, t.TempDir(), nil)

	require.NoError(t, a.Run(context.Background(), []string{"probe", path}))
	require.Contains(t, stdout.String(), "16x8")
	require.Contains(t, stdout.String(), "QuickTime / MOV")
}

func TestProbeJSON(t *testing.T) {
	a, stdout, err := newApp(t, nil)
	require.NoError(t, err)

	path := writeVideo(t, t.TempDir(), nil)

	require.NoError(t, a.Run(context.Background(), []string{"probe", "--json", path}))

	out := struct {
		Name     string  `json:"format_name"`
		Duration float64 `json:"duration"`
		Streams  []struct {
			Kind   string `json:"kind"`
			Stream struct {
				Width  int
				Height int
			} `json:"stream"`
		} `json:"streams"`
	}{}

	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	require.Equal(t, "QuickTime / MOV", out.Name)
	require.InDelta(t, 0.12, out.Duration, 0.001)
	require.Equal(t, 1, len(out.Streams))
	require.Equal(t, "video", out.Streams[0].Kind)
	require.Equal(t, 16, out.Streams[0].Stream.Width)
	require.Equal(t, 8, out.Streams[0].Stream.Height)
}

func TestProbeNotFound(t *testing.T) {
	a, _, err := newApp(t, nil)
	require.NoError(t, err)

	require.Error(t, a.Run(context.Background(), []string{"probe", filepath.Join(t.TempDir(), "missing.mp4")}))
}

func TestTranscodeVideoOnly(t *testing.T) {
	a, _, err := newApp(t, map[string]string{
		"AVSTREAM_BUFFER_SIZE": "100",
	})
	require.NoError(t, err)

	dir := t.TempDir()
	payload := bytes.Repeat([]byte{1, 2, 3, 4}, 16*8*3)
	input := writeVideo(t, dir, payload)

	videoPath := filepath.Join(dir, "video.mp4")
	audioPath := filepath.Join(dir, "audio.wav")

	require.NoError(t, a.Run(context.Background(), []string{"transcode", input, videoPath, audioPath}))

	data, err := os.ReadFile(videoPath)
	require.NoError(t, err)
	require.Equal(t, payload, data)

	require.NoFileExists(t, audioPath)

	states := a.Launcher().States()
	require.Equal(t, uint64(0), states.Failed)
}

func TestTranscodeMuxWithoutAudio(t *testing.T) {
	a, _, err := newApp(t, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	input := writeVideo(t, dir, make([]byte, 16*8*4))

	err = a.Run(context.Background(), []string{"transcode", "--mux", filepath.Join(dir, "out.mp4"), input, filepath.Join(dir, "video.mp4"), filepath.Join(dir, "audio.wav")})
	require.ErrorIs(t, err, media.ErrInvalidArgument)
}

func TestTranscodeEncoderFailed(t *testing.T) {
	a, _, err := newApp(t, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	input := writeVideo(t, dir, make([]byte, 16*8*4*2))

	err = a.Run(context.Background(), []string{"transcode", input, filepath.Join(dir, "video.fail"), filepath.Join(dir, "audio.wav")})
	require.Error(t, err)
}

func TestFailureDumpsSuppressedLogs(t *testing.T) {
	a, _, stderr, err := newAppWithStderr(t, map[string]string{
		"AVSTREAM_LOG_BUFFER": "50",
	})
	require.NoError(t, err)

	dir := t.TempDir()
	input := writeVideo(t, dir, make([]byte, 16*8*4))

	require.NoError(t, a.Run(context.Background(), []string{"version"}))
	require.Empty(t, stderr.String())

	err = a.Run(context.Background(), []string{"transcode", input, filepath.Join(dir, "video.fail"), filepath.Join(dir, "audio.wav")})
	require.Error(t, err)

	out := stderr.String()
	require.Contains(t, out, "suppressed log messages:")
	require.Contains(t, out, "Encoding failed")
	require.Contains(t, out, "Error while encoding: Invalid argument")
}

func TestFailureWithoutLogBuffer(t *testing.T) {
	a, _, stderr, err := newAppWithStderr(t, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	input := writeVideo(t, dir, make([]byte, 16*8*4))

	err = a.Run(context.Background(), []string{"transcode", input, filepath.Join(dir, "video.fail"), filepath.Join(dir, "audio.wav")})
	require.Error(t, err)
	require.NotContains(t, stderr.String(), "Encoding failed")
}

func TestLogFormatJSON(t *testing.T) {
	_, _, stderr, err := newAppWithStderr(t, map[string]string{
		"AVSTREAM_LOG_LEVEL":  "info",
		"AVSTREAM_LOG_FORMAT": "json",
	})
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(stderr.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)

	event := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &event))
	require.Equal(t, "Ready", event["message"])
	require.Equal(t, "INFO", event["level"])
	require.Equal(t, "6.1.1", event["ffmpeg"])
}

func TestLogFormatInvalid(t *testing.T) {
	_, _, err := newApp(t, map[string]string{
		"AVSTREAM_LOG_FORMAT": "xml",
	})
	require.Error(t, err)
}

func TestRender(t *testing.T) {
	a, _, err := newApp(t, nil)
	require.NoError(t, err)

	output := filepath.Join(t.TempDir(), "pattern.mp4")

	require.NoError(t, a.Run(context.Background(), []string{"render", "--width", "16", "--height", "8", "--fps", "5", "--seconds", "1", output}))

	info, err := os.Stat(output)
	require.NoError(t, err)
	require.Equal(t, int64(5*16*8*4), info.Size())
}

func TestRenderInvalid(t *testing.T) {
	a, _, err := newApp(t, nil)
	require.NoError(t, err)

	output := filepath.Join(t.TempDir(), "pattern.mp4")

	require.ErrorIs(t, a.Run(context.Background(), []string{"render", "--seconds", "0", output}), media.ErrInvalidArgument)
	require.Error(t, a.Run(context.Background(), []string{"render", "--width", "0", output}))
	require.Error(t, a.Run(context.Background(), []string{"render", "--image", filepath.Join(t.TempDir(), "missing.png"), output}))
}

func TestRenderCanceled(t *testing.T) {
	a, _, err := newApp(t, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	output := filepath.Join(t.TempDir(), "pattern.mp4")

	err = a.Run(ctx, []string{"render", "--width", "16", "--height", "8", output})
	require.ErrorIs(t, err, context.Canceled)
}

func TestInterweave(t *testing.T) {
	a, _, err := newApp(t, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	videoPath := writeVideo(t, dir, []byte("video"))
	audioPath := filepath.Join(dir, "audio.wav")
	output := filepath.Join(dir, "output.mp4")

	require.NoError(t, os.WriteFile(audioPath, []byte("audio"), 0644))

	require.NoError(t, a.Run(context.Background(), []string{"interweave", videoPath, audioPath, output}))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	require.Equal(t, "videoaudio", string(data))

	require.ErrorIs(t, a.Run(context.Background(), []string{"interweave", "--seconds=-1", videoPath, audioPath, output}), media.ErrInvalidArgument)
}

func TestConfig(t *testing.T) {
	a, stdout, err := newApp(t, map[string]string{
		"AVSTREAM_BUFFER_SIZE": "4096",
	})
	require.NoError(t, err)

	require.NoError(t, a.Run(context.Background(), []string{"config"}))
	require.Contains(t, stdout.String(), "stream.buffer_size=4096 (override)")
	require.Contains(t, stdout.String(), "render.width=1280\n")
}

func TestVersion(t *testing.T) {
	a, stdout, err := newApp(t, nil)
	require.NoError(t, err)

	require.NoError(t, a.Run(context.Background(), []string{"version"}))
	require.Contains(t, stdout.String(), "avstream v")
	require.Contains(t, stdout.String(), "ffmpeg 6.1.1")
}
