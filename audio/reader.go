package audio

import (
	"context"
	"encoding/binary"
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
	format   media.AudioStreamInfo
	duration time.Duration

	scratch []byte
	eof     bool
	closed  bool

	logger log.Logger
}

// OpenReader probes the file and starts decoding its first audio stream.
func OpenReader(ctx context.Context, launcher ffmpeg.Launcher, path string, opts ...Option) (Reader, error) {
	o := newOptions(opts)

	info, err := launcher.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	format, ok := info.AudioStream(0)
	if !ok {
		return nil, fmt.Errorf("%w: %s doesn't contain audio", ErrInvalidArgument, path)
	}

	r := &fileReader{
		format:   format,
		duration: info.Duration,
		scratch:  make([]byte, o.bufferSize),
		logger: o.logger.WithComponent("AudioFileReader").WithFields(log.Fields{
			"stream": shortuuid.New(),
			"file":   path,
		}),
	}

	r.proc, err = launcher.WithLogger(r.logger).Query("-i @{0} -f s16le -", path)
	if err != nil {
		return nil, fmt.Errorf("starting decoder: %w", err)
	}

	r.logger.WithField("format", format.String()).Debug().Log("Opened")

	return r, nil
}

func (r *fileReader) Format() media.AudioStreamInfo {
	return r.format
}

func (r *fileReader) Duration() (time.Duration, bool) {
	return r.duration, r.duration > 0
}

func (r *fileReader) ReadSamples(buf []int16) (int, error) {
	return readSamples(r, buf, func(s int16) int16 { return s })
}

func (r *fileReader) ReadFloats(buf []float32) (int, error) {
	return readSamples(r, buf, ToFloat)
}

// readSamples reads len(buf) samples from ffmpeg in chunks of the
// buffer size and converts each of them with conv.
func readSamples[T int16 | float32](r *fileReader, buf []T, conv func(int16) T) (int, error) {
	if r.closed {
		return 0, ErrInvalidOperation
	}

	if len(buf) == 0 {
		return 0, nil
	}

	if r.eof {
		return 0, io.EOF
	}

	stdout := r.proc.Stdout()
	n := 0

	for n < len(buf) {
		chunk := len(r.scratch)
		if rest := (len(buf) - n) * 2; rest < chunk {
			chunk = rest
		}

		read, err := io.ReadFull(stdout, r.scratch[:chunk])

		for i := 0; i+1 < read; i += 2 {
			buf[n] = conv(int16(binary.LittleEndian.Uint16(r.scratch[i:])))
			n++
		}

		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				return n, fmt.Errorf("reading samples: %w", err)
			}

			r.eof = true

			if read%2 != 0 {
				return n, ErrTruncated
			}

			break
		}
	}

	if n == 0 {
		return 0, io.EOF
	}

	return n, nil
}

func (r *fileReader) Close() error {
	if r.closed {
		return nil
	}

	r.closed = true

	err := r.proc.Release(process.ReleaseKill)

	r.logger.Debug().Log("Closed")

	return err
}
