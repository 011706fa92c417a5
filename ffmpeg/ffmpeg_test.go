package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/avyn/avstream/internal/testhelper"
	"github.com/avyn/avstream/log"
	"github.com/avyn/avstream/process"

	"github.com/stretchr/testify/require"
)

var binaries struct {
	once    sync.Once
	ffmpeg  string
	ffprobe string
	err     error
}

func newLauncher(t *testing.T, constraint string) (Launcher, error) {
	binaries.once.Do(func() {
		binaries.ffmpeg, binaries.err = testhelper.BuildBinary("ffmpeg", "../internal/testhelper")
		if binaries.err != nil {
			return
		}

		binaries.ffprobe, binaries.err = testhelper.BuildBinary("ffprobe", "../internal/testhelper")
	})
	require.NoError(t, binaries.err, "Failed to build helper program")

	return New(Config{
		Binary:            binaries.ffmpeg,
		ProbeBinary:       binaries.ffprobe,
		VersionConstraint: constraint,
		LogLines:          10,
	})
}

func TestExpand(t *testing.T) {
	command, err := Expand("-i @{0} -f s16le -ac {1} -ar {2} -", "/tmp/my file.wav", 2, 44100)
	require.NoError(t, err)
	require.Equal(t, []string{"-hide_banner", "-i", "/tmp/my file.wav", "-f", "s16le", "-ac", "2", "-ar", "44100", "-"}, command)
}

func TestExpandOptional(t *testing.T) {
	command, err := Expand("-i {0} {1} -y @{2}", "a.mp4", "", "out.mp4")
	require.NoError(t, err)
	require.Equal(t, []string{"-hide_banner", "-i", "a.mp4", "-y", "out.mp4"}, command)

	command, err = Expand("-i {0} {1} -y @{2}", "a.mp4", "-t 2.5", "out.mp4")
	require.NoError(t, err)
	require.Equal(t, []string{"-hide_banner", "-i", "a.mp4", "-t", "2.5", "-y", "out.mp4"}, command)
}

func TestExpandEmbedded(t *testing.T) {
	command, err := Expand("-s {0}x{1} -vf scale={2}:{3}:flags=lanczos", 640, 480, 320, 240)
	require.NoError(t, err)
	require.Equal(t, []string{"-hide_banner", "-s", "640x480", "-vf", "scale=320:240:flags=lanczos"}, command)
}

func TestExpandMissingArgument(t *testing.T) {
	_, err := Expand("-i @{0} -ac {1}", "file.wav")
	require.Error(t, err)
}

func TestParseVersion(t *testing.T) {
	data := []byte(`ffmpeg version 4.4.1-static Copyright (c) 2000-2021 the FFmpeg developers
built with gcc 10.3.1 (Alpine 10.3.1_git20211027) 20211027
configuration: --extra-version=static --prefix=/usr
libavutil      56. 70.100 / 56. 70.100
libavcodec     58.134.100 / 58.134.100`)

	v := parseVersion(data)

	require.Equal(t, "4.4.1", v.Version)
	require.Equal(t, "gcc 10.3.1 (Alpine 10.3.1_git20211027) 20211027", v.Compiler)
	require.Equal(t, "--extra-version=static --prefix=/usr", v.Configuration)
	require.Equal(t, []Library{
		{Name: "libavutil", Compiled: "56. 70.100", Linked: "56. 70.100"},
		{Name: "libavcodec", Compiled: "58.134.100", Linked: "58.134.100"},
	}, v.Libraries)

	v = parseVersion([]byte("ffmpeg version 5.1 Copyright (c) 2000-2022"))
	require.Equal(t, "5.1.0", v.Version)

	v = parseVersion([]byte("ffmpeg version N-109741-gbbe95f7353"))
	require.Equal(t, "", v.Version)
}

func TestVersionSatisfies(t *testing.T) {
	v := Version{Version: "6.1.1"}

	require.NoError(t, v.Satisfies(""))
	require.NoError(t, v.Satisfies("^6.0.0"))
	require.NoError(t, v.Satisfies(">= 4.4"))
	require.Error(t, v.Satisfies("^5.1.0"))
	require.Error(t, v.Satisfies("not a constraint"))

	v = Version{Version: ""}
	require.Error(t, v.Satisfies("^6.0.0"))
}

func TestNew(t *testing.T) {
	l, err := newLauncher(t, "^6.1.0")
	require.NoError(t, err)

	require.Equal(t, "6.1.1", l.Version().Version)
	require.Equal(t, process.States{Starting: 1, Running: 1, Finished: 1}, l.States())
}

func TestNewVersionMismatch(t *testing.T) {
	_, err := newLauncher(t, "^7.0.0")
	require.Error(t, err)
}

func TestNewMissingBinary(t *testing.T) {
	_, err := New(Config{
		Binary:      "/nonexistent/ffmpeg",
		ProbeBinary: "/nonexistent/ffprobe",
	})
	require.Error(t, err)
}

func TestQuery(t *testing.T) {
	l, err := newLauncher(t, "")
	require.NoError(t, err)

	dir := t.TempDir()
	target := filepath.Join(dir, "out file.raw")

	proc, err := l.Query("-f s16le -i - -y @{0}", target)
	require.NoError(t, err)

	require.Equal(t, []string{"-hide_banner", "-f", "s16le", "-i", "-", "-y", target}, proc.Args())

	_, err = proc.Stdin().Write([]byte("payload"))
	require.NoError(t, err)

	require.NoError(t, proc.Release(process.ReleaseClose))
	require.Equal(t, "finished", proc.State())

	require.Equal(t, uint64(1), proc.Progress().Frame)
	require.Equal(t, time.Second, proc.Progress().Time)
	require.Equal(t, "finished", proc.Report().ExitState)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)

	// -version, then this process
	require.Equal(t, uint64(2), l.States().Finished)
}

func TestQueryWithLogger(t *testing.T) {
	l, err := newLauncher(t, "")
	require.NoError(t, err)

	ll := l.WithLogger(nil)

	proc, err := ll.Query("-f s16le -i - -y @{0}", filepath.Join(t.TempDir(), "x.fail"))
	require.NoError(t, err)
	require.Error(t, proc.Release(process.ReleaseClose))

	require.Equal(t, uint64(1), l.States().Failed, "the states are shared")
}

func TestQueryErrorHasLastLine(t *testing.T) {
	l, err := newLauncher(t, "")
	require.NoError(t, err)

	proc, err := l.Query("-f s16le -i - -y @{0}", filepath.Join(t.TempDir(), "x.fail"))
	require.NoError(t, err)

	err = proc.Release(process.ReleaseClose)
	require.Error(t, err)
	require.ErrorContains(t, err, "(Error while encoding: Invalid argument)")
	require.Equal(t, "failed", proc.Report().ExitState)

	// Release runs once, the error is not decorated twice
	require.NoError(t, proc.Release(process.ReleaseClose))
}

func TestWithLoggerKeepsProber(t *testing.T) {
	l, err := newLauncher(t, "")
	require.NoError(t, err)

	f := l.(*ffmpeg)
	f.probe.Binary = ""

	buffer := log.NewBufferWriter(log.Lwarn, 10)

	c := f.WithLogger(log.New("").WithOutput(buffer)).(*ffmpeg)
	require.True(t, c.prober == f.prober)

	events := buffer.Events()
	require.Equal(t, 1, len(events))
	require.Equal(t, "Keeping the previous prober", events[0].Message)
}

func TestProbe(t *testing.T) {
	l, err := newLauncher(t, "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "audio.wav")
	require.NoError(t, testhelper.WriteMedia(path, testhelper.AudioProbe("aac", 2, 44100, "10.500000"), []byte{}))

	info, err := l.Probe(context.Background(), path)
	require.NoError(t, err)

	audio, ok := info.AudioStream(0)
	require.True(t, ok)
	require.Equal(t, 2, audio.Channels)

	require.Equal(t, uint64(2), l.States().Finished)
}

func TestInterweave(t *testing.T) {
	l, err := newLauncher(t, "")
	require.NoError(t, err)

	dir := t.TempDir()
	videoPath := filepath.Join(dir, "video.mp4")
	audioPath := filepath.Join(dir, "audio.wav")
	target := filepath.Join(dir, "movie.mp4")

	require.NoError(t, testhelper.WriteMedia(videoPath, testhelper.VideoProbe(2, 2, "25/1", "2.000000"), []byte("video")))
	require.NoError(t, testhelper.WriteMedia(audioPath, testhelper.AudioProbe("pcm_s16le", 1, 8000, "2.000000"), []byte("audio")))

	err = l.Interweave(context.Background(), videoPath, audioPath, 0, target)
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, []byte("videoaudio"), data)

	err = l.Interweave(context.Background(), videoPath, audioPath, 1500*time.Millisecond, target)
	require.NoError(t, err)
}

func TestInterweaveMissingVideo(t *testing.T) {
	l, err := newLauncher(t, "")
	require.NoError(t, err)

	dir := t.TempDir()

	err = l.Interweave(context.Background(), filepath.Join(dir, "missing.mp4"), filepath.Join(dir, "audio.wav"), 0, filepath.Join(dir, "out.mp4"))
	require.Error(t, err)
}
