// Package audio reads and writes interleaved 16-bit PCM samples through
// ffmpeg processes.
//
// A stream is either a Reader, which decodes a file, or a Writer, which
// encodes into a file. The samples are little-endian signed 16-bit integers
// on the wire. They are available as int16 or as float32 normalized to
// [-1, 1].
package audio

import (
	"errors"
	"math"
	"time"

	"github.com/avyn/avstream/log"
	"github.com/avyn/avstream/media"
)

var (
	// ErrInvalidOperation is returned for an operation on a closed stream.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrTruncated is returned if the stream ended in the middle of a sample.
	ErrTruncated = errors.New("truncated sample")

	// ErrInvalidArgument is returned if a file has no audio stream.
	ErrInvalidArgument = media.ErrInvalidArgument
)

// DefaultBufferSize is the number of bytes read from ffmpeg at once.
const DefaultBufferSize = 32768

// Stream is the common part of Reader and Writer.
type Stream interface {
	// Format returns the format of the samples.
	Format() media.AudioStreamInfo

	// Duration returns the duration of the stream, if known.
	Duration() (time.Duration, bool)

	// Close releases the ffmpeg process. It is safe to call Close more
	// than once, only the first call has an effect.
	Close() error
}

// Reader is a stream of decoded samples.
type Reader interface {
	Stream

	// ReadSamples fills buf with samples. It returns less than len(buf)
	// samples only at the end of the stream. After the last sample it
	// returns 0 and io.EOF.
	ReadSamples(buf []int16) (int, error)

	// ReadFloats is like ReadSamples with the samples normalized to [-1, 1].
	ReadFloats(buf []float32) (int, error)
}

// Writer is a stream of samples to encode.
type Writer interface {
	Stream

	// WriteSamples writes all samples in buf to ffmpeg.
	WriteSamples(buf []int16) error

	// WriteFloats writes samples in the range [-1, 1]. Values
	// outside of the range are clipped.
	WriteFloats(buf []float32) error
}

type options struct {
	bufferSize  int
	floatOutput bool
	logger      log.Logger
}

// Option configures a Reader or a Writer.
type Option func(o *options)

// WithBufferSize sets the number of bytes that are read or written at once.
// An odd size is rounded down.
func WithBufferSize(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// WithFloatOutput makes a Writer encode 32-bit float PCM instead of 16-bit
// integer PCM.
func WithFloatOutput() Option {
	return func(o *options) {
		o.floatOutput = true
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

	o.bufferSize &^= 1
	if o.bufferSize <= 0 {
		o.bufferSize = DefaultBufferSize
	}

	if o.logger == nil {
		o.logger = log.New("")
	}

	return o
}

// ToFloat converts a sample to a float in the range [-1, 1].
func ToFloat(s int16) float32 {
	f := float32(s) / math.MaxInt16
	if f < -1 {
		return -1
	}

	return f
}

// FromFloat converts a float in the range [-1, 1] to a sample. Values outside
// of the range are clipped.
func FromFloat(f float32) int16 {
	switch {
	case math.IsNaN(float64(f)):
		return 0
	case f >= 1:
		return math.MaxInt16
	case f <= -1:
		return -math.MaxInt16
	}

	return int16(math.Round(float64(f) * math.MaxInt16))
}
