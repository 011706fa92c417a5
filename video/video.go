// Package video reads and writes raw BGRA frames through ffmpeg processes
// and renders synthetic video.
//
// A stream is a Reader, which decodes a file or renders frames, or a Writer,
// which encodes frames into a file. Every frame has the width and height of
// the format of the stream.
package video

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/avyn/avstream/log"
	"github.com/avyn/avstream/media"
)

var (
	// ErrInvalidOperation is returned for an operation the stream doesn't
	// support or for any operation on a closed stream.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrTruncated is returned if the stream ended in the middle of a frame.
	ErrTruncated = errors.New("truncated frame")

	// ErrInvalidArgument is returned for a frame with the wrong size or a
	// file without a video stream.
	ErrInvalidArgument = media.ErrInvalidArgument
)

// DefaultBufferSize is the number of bytes read from ffmpeg at once.
const DefaultBufferSize = 32768

// Stream is the common part of Reader and Writer.
type Stream interface {
	// Format returns the format of the frames.
	Format() media.VideoStreamInfo

	// FrameIndex returns the number of frames read or written so far.
	FrameIndex() int

	// Duration returns the duration of the stream, if known.
	Duration() (time.Duration, bool)

	// Close releases the stream. Only the first call has an effect.
	Close() error
}

// Reader is a stream of frames.
type Reader interface {
	Stream

	// ReadFrame reads the next frame into frame. It returns false at the
	// end of the stream.
	ReadFrame(frame *Frame) (bool, error)
}

// Writer is a stream of frames to encode.
type Writer interface {
	Stream

	// WriteFrame writes the frame to ffmpeg.
	WriteFrame(frame *Frame) error
}

// Position returns the playback position of the stream derived from the
// frame index and the frame rate.
func Position(s Stream) time.Duration {
	return position(s.FrameIndex(), s.Format().FrameRate)
}

func position(index int, fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}

	return time.Duration(math.Round(float64(index) / fps * float64(time.Second)))
}

func checkFrame(frame *Frame, format media.VideoStreamInfo) error {
	if frame == nil {
		return fmt.Errorf("%w: no frame", ErrInvalidArgument)
	}

	if frame.Width != format.Width || frame.Height != format.Height || len(frame.Pix) != frame.Size() {
		return fmt.Errorf("%w: frame is %dx%d, stream is %dx%d", ErrInvalidArgument, frame.Width, frame.Height, format.Width, format.Height)
	}

	return nil
}

type options struct {
	bufferSize   int
	outputHeight int
	logger       log.Logger
}

// Option configures a Reader or a Writer.
type Option func(o *options)

// WithBufferSize sets the number of bytes that are read at once.
func WithBufferSize(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// WithOutputHeight makes a Writer scale the video to the given height. The
// width follows from the aspect ratio of the format.
func WithOutputHeight(height int) Option {
	return func(o *options) {
		o.outputHeight = height
	}
}

// WithLogger sets the logger of the stream and its ffmpeg process.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) options {
	o := options{
		bufferSize: DefaultBufferSize,
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.bufferSize <= 0 {
		o.bufferSize = DefaultBufferSize
	}

	if o.logger == nil {
		o.logger = log.New("")
	}

	return o
}
