package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/avyn/avstream/ffmpeg"
	"github.com/avyn/avstream/log"
	"github.com/avyn/avstream/media"
	"github.com/avyn/avstream/process"

	"github.com/lithammer/shortuuid/v4"
)

type fileReader struct {
	proc     ffmpeg.Process
	format   media.VideoStreamInfo
	duration time.Duration
	index    int

	bufferSize int
	eof        bool
	closed     bool

	logger log.Logger
}

// OpenReader probes the file and starts decoding its first video stream.
func OpenReader(ctx context.Context, launcher ffmpeg.Launcher, path string, opts ...Option) (Reader, error) {
	o := newOptions(opts)

	info, err := launcher.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	format, ok := info.VideoStream(0)
	if !ok {
		return nil, fmt.Errorf("%w: %s doesn't contain any video", ErrInvalidArgument, path)
	}

	r := &fileReader{
		format:     format,
		duration:   info.Duration,
		bufferSize: o.bufferSize,
		logger: o.logger.WithComponent("VideoFileReader").WithFields(log.Fields{
			"stream": shortuuid.New(),
			"file":   path,
		}),
	}

	r.proc, err = launcher.WithLogger(r.logger).Query("-i @{0} -f image2pipe -pix_fmt bgra -vcodec rawvideo -", path)
	if err != nil {
		return nil, fmt.Errorf("starting decoder: %w", err)
	}

	r.logger.WithField("format", format.String()).Debug().Log("Opened")

	return r, nil
}

func (r *fileReader) Format() media.VideoStreamInfo {
	return r.format
}

func (r *fileReader) FrameIndex() int {
	return r.index
}

func (r *fileReader) Duration() (time.Duration, bool) {
	return r.duration, r.duration > 0
}

func (r *fileReader) ReadFrame(frame *Frame) (bool, error) {
	if r.closed {
		return false, ErrInvalidOperation
	}

	if err := checkFrame(frame, r.format); err != nil {
		return false, err
	}

	if r.eof {
		return false, nil
	}

	stdout := r.proc.Stdout()
	size := frame.Size()
	n := 0

	for n < size {
		chunk := r.bufferSize
		if rest := size - n; rest < chunk {
			chunk = rest
		}

		read, err := io.ReadFull(stdout, frame.Pix[n:n+chunk])
		n += read

		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				return false, fmt.Errorf("reading frame: %w", err)
			}

			r.eof = true

			if n == 0 {
				return false, nil
			}

			r.logger.WithFields(log.Fields{
				"frame": r.index,
				"bytes": n,
			}).Warn().Log("Truncated frame")

			return false, ErrTruncated
		}
	}

	r.index++

	return true, nil
}

func (r *fileReader) Close() error {
	if r.closed {
		return nil
	}

	r.closed = true

	err := r.proc.Release(process.ReleaseKill)

	r.logger.WithField("frames", r.index).Debug().Log("Closed")

	return err
}
