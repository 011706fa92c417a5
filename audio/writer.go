package audio

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/avyn/avstream/ffmpeg"
	"github.com/avyn/avstream/log"
	"github.com/avyn/avstream/media"
	"github.com/avyn/avstream/process"

	"github.com/lithammer/shortuuid/v4"
)

type fileWriter struct {
	proc   ffmpeg.Process
	format media.AudioStreamInfo

	scratch []byte
	closed  bool

	logger log.Logger
}

// CreateWriter starts encoding samples with the channels and the sample rate of
// format into a WAV file. The file is overwritten if it exists.
func CreateWriter(launcher ffmpeg.Launcher, format media.AudioStreamInfo, path string, opts ...Option) (Writer, error) {
	o := newOptions(opts)

	if err := format.Validate(); err != nil {
		return nil, err
	}

	codec := "pcm_s16le"
	if o.floatOutput {
		codec = "pcm_f32le"
	}

	w := &fileWriter{
		format:  format,
		scratch: make([]byte, o.bufferSize),
		logger: o.logger.WithComponent("AudioFileWriter").WithFields(log.Fields{
			"stream": shortuuid.New(),
			"file":   path,
		}),
	}

	var err error

	w.proc, err = launcher.WithLogger(w.logger).Query("-f s16le -ac {0} -ar {1} -i - -f wav -c:a {2} -y @{3}",
		format.Channels, format.SampleRate, codec, path)
	if err != nil {
		return nil, fmt.Errorf("starting encoder: %w", err)
	}

	w.logger.WithFields(log.Fields{
		"format": format.String(),
		"codec":  codec,
	}).Debug().Log("Created")

	return w, nil
}

func (w *fileWriter) Format() media.AudioStreamInfo {
	return w.format
}

func (w *fileWriter) Duration() (time.Duration, bool) {
	return w.format.Length()
}

func (w *fileWriter) WriteSamples(buf []int16) error {
	return writeSamples(w, buf, func(s int16) int16 { return s })
}

func (w *fileWriter) WriteFloats(buf []float32) error {
	return writeSamples(w, buf, FromFloat)
}

// writeSamples converts the samples into chunks of the buffer size and
// writes them to ffmpeg. The pipe is unbuffered, ffmpeg sees every
// chunk as soon as it is written.
func writeSamples[T int16 | float32](w *fileWriter, buf []T, conv func(T) int16) error {
	if w.closed {
		return ErrInvalidOperation
	}

	stdin := w.proc.Stdin()

	for len(buf) > 0 {
		n := len(w.scratch) / 2
		if n > len(buf) {
			n = len(buf)
		}

		for i, s := range buf[:n] {
			binary.LittleEndian.PutUint16(w.scratch[i*2:], uint16(conv(s)))
		}

		if _, err := stdin.Write(w.scratch[:n*2]); err != nil {
			return fmt.Errorf("writing samples: %w", err)
		}

		buf = buf[n:]
	}

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
		"size":    progress.Size,
		"bitrate": progress.Bitrate,
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
