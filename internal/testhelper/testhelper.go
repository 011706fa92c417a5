// Package testhelper builds the fake ffmpeg and ffprobe programs used by the
// tests and writes the media fixtures they understand.
//
// A fixture is a payload file and a sidecar file with the suffix ".probe".
// The fake ffprobe prints the sidecar, the fake ffmpeg decodes by copying the
// payload to stdout. An input with the suffix ".loop" is copied forever.
package testhelper

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// BuildBinary compiles the program in pathprefix/name and returns the
// path of the executable.
func BuildBinary(name, pathprefix string) (string, error) {
	dir := filepath.Join(pathprefix, name)

	// Packages are tested in parallel, every build gets its own directory.
	tmp, err := os.MkdirTemp("", "avstream-"+name+"-")
	if err != nil {
		return "", fmt.Errorf("temp dir: %w", err)
	}

	aout := filepath.Join(tmp, name)

	if runtime.GOOS == "windows" {
		aout += ".exe"
	}

	pkg := dir
	if !filepath.IsAbs(pkg) && !strings.HasPrefix(pkg, ".") {
		pkg = "." + string(filepath.Separator) + pkg
	}

	out, err := exec.Command("go", "build", "-o", aout, pkg).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("build command: %w: %s", err, string(out))
	}

	return aout, nil
}

// WriteMedia writes a fixture with the given probe output and payload.
func WriteMedia(path, probe string, payload []byte) error {
	if err := os.WriteFile(path, payload, 0644); err != nil {
		return err
	}

	return os.WriteFile(path+".probe", []byte(probe), 0644)
}

// AudioProbe returns the probe output of a file with one audio stream.
func AudioProbe(codec string, channels, rate int, duration string) string {
	return fmt.Sprintf(`[STREAM]
index=0
codec_name=%s
codec_long_name=%s
codec_type=audio
sample_rate=%d
channels=%d
start_time=0.000000
duration=%s
[/STREAM]
[FORMAT]
filename=fixture
nb_streams=1
format_name=wav
format_long_name=WAV / WAVE (Waveform Audio)
start_time=0.000000
duration=%s
[/FORMAT]
`, codec, codec, rate, channels, duration, duration)
}

// VideoProbe returns the probe output of a file with one video stream.
func VideoProbe(width, height int, rate string, duration string) string {
	return fmt.Sprintf(`[STREAM]
index=0
codec_name=rawvideo
codec_long_name=raw video
codec_type=video
width=%d
height=%d
pix_fmt=bgra
r_frame_rate=%s
start_time=0.000000
duration=%s
bit_rate=N/A
[/STREAM]
[FORMAT]
filename=fixture
nb_streams=1
format_name=mov,mp4,m4a,3gp,3g2,mj2
format_long_name=QuickTime / MOV
start_time=0.000000
duration=%s
[/FORMAT]
`, width, height, rate, duration, duration)
}
