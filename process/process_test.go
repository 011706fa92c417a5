package process

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/avyn/avstream/internal/testhelper"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var ffmpeg struct {
	once   sync.Once
	binary string
	err    error
}

func buildFFmpeg(t *testing.T) string {
	ffmpeg.once.Do(func() {
		ffmpeg.binary, ffmpeg.err = testhelper.BuildBinary("ffmpeg", "../internal/testhelper")
	})

	require.NoError(t, ffmpeg.err, "Failed to build helper program")

	return ffmpeg.binary
}

func writeFixture(t *testing.T, name string, payload []byte) string {
	path := filepath.Join(t.TempDir(), name)

	err := testhelper.WriteMedia(path, testhelper.AudioProbe("pcm_s16le", 1, 8000, "1.0"), payload)
	require.NoError(t, err)

	return path
}

func TestProcessDecode(t *testing.T) {
	binary := buildFFmpeg(t)

	payload := bytes.Repeat([]byte{1, 2, 3, 4}, 10000)
	input := writeFixture(t, "input.raw", payload)

	p, err := New(Config{
		Binary: binary,
		Args:   []string{"-hide_banner", "-i", input, "-f", "s16le", "-"},
	})
	require.NoError(t, err)
	require.Equal(t, "running", p.State())
	require.Greater(t, p.PID(), int32(0))

	data, err := io.ReadAll(p.Stdout())
	require.NoError(t, err)
	require.Equal(t, payload, data)

	err = p.Release(ReleaseKill)
	require.NoError(t, err)
	require.Equal(t, int32(-1), p.PID())
	require.False(t, stateType(p.State()).IsRunning())
}

func TestProcessEncode(t *testing.T) {
	binary := buildFFmpeg(t)

	output := filepath.Join(t.TempDir(), "output.wav")

	p, err := New(Config{
		Binary: binary,
		Args:   []string{"-hide_banner", "-f", "s16le", "-i", "-", "-y", output},
	})
	require.NoError(t, err)

	payload := bytes.Repeat([]byte{0xff, 0x7f}, 50000)

	_, err = p.Stdin().Write(payload)
	require.NoError(t, err)

	err = p.Release(ReleaseClose)
	require.NoError(t, err)
	require.Equal(t, "finished", p.State())

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func TestProcessEncodeFailed(t *testing.T) {
	binary := buildFFmpeg(t)

	output := filepath.Join(t.TempDir(), "output.fail")

	exitState := ""

	p, err := New(Config{
		Binary: binary,
		Args:   []string{"-hide_banner", "-f", "s16le", "-i", "-", "-y", output},
		OnExit: func(state string) {
			exitState = state
		},
	})
	require.NoError(t, err)

	_, err = p.Stdin().Write([]byte{1, 2})
	require.NoError(t, err)

	err = p.Release(ReleaseClose)
	require.Error(t, err)
	require.Equal(t, "failed", p.State())
	require.Equal(t, "failed", exitState)

	require.NoError(t, p.Release(ReleaseClose), "a second release must not report anything")
}

func TestProcessKill(t *testing.T) {
	binary := buildFFmpeg(t)

	input := writeFixture(t, "input.loop", bytes.Repeat([]byte{42}, 4096))

	p, err := New(Config{
		Binary: binary,
		Args:   []string{"-hide_banner", "-i", input, "-f", "s16le", "-"},
	})
	require.NoError(t, err)

	buf := make([]byte, 8192)
	_, err = io.ReadFull(p.Stdout(), buf)
	require.NoError(t, err)

	err = p.Release(ReleaseKill)
	require.NoError(t, err)
	require.Equal(t, "killed", p.State())

	require.NoError(t, p.Kill(), "killing an exited process is not an error")
	require.NoError(t, p.Release(ReleaseKill))
	require.NoError(t, p.Release(ReleaseClose))
}

func TestProcessWaitIdempotent(t *testing.T) {
	binary := buildFFmpeg(t)

	p, err := New(Config{
		Binary: binary,
		Args:   []string{"-hide_banner"},
	})
	require.NoError(t, err)

	err1 := p.Wait()
	err2 := p.Wait()

	require.Error(t, err1)
	require.Equal(t, err1, err2)
	require.Equal(t, "failed", p.State())
}

func TestProcessNonExisting(t *testing.T) {
	exitState := ""

	_, err := New(Config{
		Binary: "/a/non/existing/binary",
		Args:   []string{},
		OnExit: func(state string) {
			exitState = state
		},
	})
	require.Error(t, err)
	require.Equal(t, "failed", exitState)

	_, err = New(Config{})
	require.Error(t, err)
}

func TestProcessStderrParser(t *testing.T) {
	binary := buildFFmpeg(t)

	input := writeFixture(t, "input.raw", []byte{1, 2, 3, 4})
	parser := NewBufferParser()

	p, err := New(Config{
		Binary: binary,
		Args:   []string{"-hide_banner", "-i", input, "-f", "s16le", "-"},
		Parser: parser,
	})
	require.NoError(t, err)

	_, err = io.ReadAll(p.Stdout())
	require.NoError(t, err)

	require.NoError(t, p.Wait())

	lines := parser.Log()
	require.NotEmpty(t, lines)
	require.True(t, strings.HasPrefix(lines[0].Data, "Input #0"))
	require.True(t, strings.HasPrefix(lines[1].Data, "frame="))
	require.False(t, parser.IsRunning())
}

func TestProcessStateChanges(t *testing.T) {
	binary := buildFFmpeg(t)

	input := writeFixture(t, "input.raw", []byte{1, 2})

	lock := sync.Mutex{}
	changes := []string{}
	states := States{}

	p, err := New(Config{
		Binary: binary,
		Args:   []string{"-hide_banner", "-i", input, "-f", "s16le", "-"},
		OnStateChange: func(from, to string) {
			lock.Lock()
			defer lock.Unlock()

			changes = append(changes, from+">"+to)
			states.Inc(to)
		},
	})
	require.NoError(t, err)

	io.Copy(io.Discard, p.Stdout())

	require.NoError(t, p.Release(ReleaseClose))

	lock.Lock()
	defer lock.Unlock()

	require.Equal(t, []string{">starting", "starting>running", "running>finished"}, changes)
	require.Equal(t, States{Starting: 1, Running: 1, Finished: 1}, states)
}

func TestProcessArgs(t *testing.T) {
	binary := buildFFmpeg(t)

	args := []string{"-hide_banner", "-version"}

	p, err := New(Config{
		Binary: binary,
		Args:   args,
	})
	require.NoError(t, err)

	args[1] = "-foobar"

	require.Equal(t, []string{"-hide_banner", "-version"}, p.Args())

	io.Copy(io.Discard, p.Stdout())
	require.NoError(t, p.Release(ReleaseClose))

	require.GreaterOrEqual(t, p.Usage().CPU, float64(0))
}

func TestProcessNoGoroutineLeak(t *testing.T) {
	binary := buildFFmpeg(t)

	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	input := writeFixture(t, "input.loop", bytes.Repeat([]byte{1}, 1024))

	p, err := New(Config{
		Binary: binary,
		Args:   []string{"-hide_banner", "-i", input, "-f", "s16le", "-"},
	})
	require.NoError(t, err)

	_, err = io.ReadFull(p.Stdout(), make([]byte, 1024))
	require.NoError(t, err)

	require.NoError(t, p.Release(ReleaseKill))
}

func TestScanLines(t *testing.T) {
	input := "frame=1\rframe=2\r\nInput #0\n\n\nlast"

	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Split(scanLines)

	lines := []string{}
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	require.NoError(t, scanner.Err())
	require.Equal(t, []string{"frame=1", "frame=2", "Input #0", "last"}, lines)
}
