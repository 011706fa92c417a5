package video

import (
	"fmt"
	"math"
	"time"

	"github.com/avyn/avstream/ffmpeg"
	"github.com/avyn/avstream/log"
	"github.com/avyn/avstream/media"
	"github.com/avyn/avstream/process"

	"github.com/lithammer/shortuuid/v4"
)

type fileWriter struct {
	proc   ffmpeg.Process
	format media.VideoStreamInfo
	index  int
	closed bool

	logger log.Logger
}

// CreateWriter starts encoding frames of the given format into a file. The
// codec, the pixel format and the bitrate of the format are used for the
// output, missing ones default to h264, yuv420p and the bitrate derived from
// the frame size. The file is overwritten if it exists.
func CreateWriter(launcher ffmpeg.Launcher, format media.VideoStreamInfo, path string, opts ...Option) (Writer, error) {
	o := newOptions(opts)

	if len(format.Codec) == 0 {
		format.Codec = "h264"
	}

	if len(format.PixelFormat) == 0 {
		format.PixelFormat = "yuv420p"
	}

	if format.Bitrate == 0 {
		format.Bitrate = media.Bitrate(format.Width, format.Height, format.FrameRate)
	}

	if err := format.Validate(); err != nil {
		return nil, err
	}

	scale := ""
	if o.outputHeight > 0 {
		width, height := OutputSize(format, o.outputHeight)
		scale = fmt.Sprintf("-vf scale=%d:%d:flags=lanczos", width, height)
	}

	w := &fileWriter{
		format: format,
		logger: o.logger.WithComponent("VideoFileWriter").WithFields(log.Fields{
			"stream": shortuuid.New(),
			"file":   path,
		}),
	}

	var err error

	w.proc, err = launcher.WithLogger(w.logger).Query(
		"-f rawvideo -c:v rawvideo -pix_fmt bgra -s {0}x{1} -r {2} -i - {3} -c:v {4} -pix_fmt {5} -b:v {6} -y @{7}",
		format.Width, format.Height, format.FrameRate, scale, format.Codec, format.PixelFormat, format.Bitrate, path,
	)
	if err != nil {
		return nil, fmt.Errorf("starting encoder: %w", err)
	}

	w.logger.WithField("format", format.String()).Debug().Log("Created")

	return w, nil
}

// OutputSize returns the size of a video of the given format scaled to
// height, keeping the aspect ratio.
func OutputSize(format media.VideoStreamInfo, height int) (int, int) {
	if format.Height <= 0 {
		return 0, height
	}

	width := int(math.Round(float64(height) * float64(format.Width) / float64(format.Height)))

	return width, height
}

func (w *fileWriter) Format() media.VideoStreamInfo {
	return w.format
}

func (w *fileWriter) FrameIndex() int {
	return w.index
}

func (w *fileWriter) Duration() (time.Duration, bool) {
	return w.format.Length()
}

func (w *fileWriter) WriteFrame(frame *Frame) error {
	if w.closed {
		return ErrInvalidOperation
	}

	if err := checkFrame(frame, w.format); err != nil {
		return err
	}

	if _, err := w.proc.Stdin().Write(frame.Pix); err != nil {
		return fmt.Errorf("writing frame %d: %w", w.index, err)
	}

	w.index++

	return nil
}

// Close closes the input of ffmpeg and waits until the file is written.
// It returns an error if ffmpeg failed.
func (w *fileWriter) Close() error {
	if w.closed {
		return nil
	}

	w.closed = true

	err := w.proc.Release(process.ReleaseClose)

	progress := w.proc.Progress()
	logger := w.logger.WithFields(log.Fields{
		"frames":  w.index,
		"encoded": progress.Frame,
		"fps":     progress.FPS,
		"speed":   progress.Speed,
		"time":    progress.Time.String(),
	})

	if err != nil {
		logger.WithError(err).Warn().Log("Encoding failed")
		return err
	}

	logger.Debug().Log("Closed")

	return nil
}
