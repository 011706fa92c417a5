// Package media holds the descriptors of audio and video streams and of a
// probed media file.
package media

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidArgument is returned if an argument doesn't fit the stream, e.g. a
// frame with the wrong size or a file without the required stream.
var ErrInvalidArgument = errors.New("invalid argument")

// CompressionRatio is used to derive the bitrate of a video stream from its
// raw size if no bitrate is given.
const CompressionRatio = 12

// Kind is the kind of a stream.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// StreamInfo is implemented by AudioStreamInfo and VideoStreamInfo.
type StreamInfo interface {
	Kind() Kind

	// Start returns the start time of the stream.
	Start() time.Duration

	// Length returns the duration of the stream, if known.
	Length() (time.Duration, bool)

	// CodecName returns the name of the codec.
	CodecName() string
}

// AudioStreamInfo describes an audio stream. A zero Duration means that the
// duration is unknown.
type AudioStreamInfo struct {
	StartTime     time.Duration
	Duration      time.Duration `validate:"gte=0"`
	Codec         string
	Channels      int `validate:"gt=0"`
	SampleRate    int `validate:"gt=0"`
	BitsPerSample int `validate:"gte=0"`
}

func (a AudioStreamInfo) Kind() Kind                    { return KindAudio }
func (a AudioStreamInfo) Start() time.Duration          { return a.StartTime }
func (a AudioStreamInfo) Length() (time.Duration, bool) { return a.Duration, a.Duration > 0 }
func (a AudioStreamInfo) CodecName() string             { return a.Codec }

// Validate checks that the descriptor can be used for encoding.
func (a AudioStreamInfo) Validate() error {
	return validate(a)
}

func (a AudioStreamInfo) String() string {
	return fmt.Sprintf("audio: %s, %d Hz, %d channels, %s", a.Codec, a.SampleRate, a.Channels, a.Duration)
}

// VideoStreamInfo describes a video stream. A zero Duration means that the
// duration is unknown.
type VideoStreamInfo struct {
	StartTime   time.Duration
	Duration    time.Duration `validate:"gte=0"`
	Codec       string
	PixelFormat string
	Width       int     `validate:"gt=0"`
	Height      int     `validate:"gt=0"`
	FrameRate   float64 `validate:"gt=0"`
	Bitrate     int64   `validate:"gt=0"`
}

// NewVideoStreamInfo returns the descriptor of a h264/yuv420p stream with
// the bitrate derived from its raw size.
func NewVideoStreamInfo(width, height int, frameRate float64, duration time.Duration) VideoStreamInfo {
	return VideoStreamInfo{
		Duration:    duration,
		Codec:       "h264",
		PixelFormat: "yuv420p",
		Width:       width,
		Height:      height,
		FrameRate:   frameRate,
		Bitrate:     Bitrate(width, height, frameRate),
	}
}

// Bitrate returns round(width*height*frameRate/CompressionRatio).
func Bitrate(width, height int, frameRate float64) int64 {
	return int64(math.Round(float64(width) * float64(height) * frameRate / CompressionRatio))
}

func (v VideoStreamInfo) Kind() Kind                    { return KindVideo }
func (v VideoStreamInfo) Start() time.Duration          { return v.StartTime }
func (v VideoStreamInfo) Length() (time.Duration, bool) { return v.Duration, v.Duration > 0 }
func (v VideoStreamInfo) CodecName() string             { return v.Codec }

// Validate checks that the descriptor can be used for encoding.
func (v VideoStreamInfo) Validate() error {
	return validate(v)
}

func (v VideoStreamInfo) String() string {
	return fmt.Sprintf("video: %s (%s), %dx%d, %.2f fps, %d bit/s, %s", v.Codec, v.PixelFormat, v.Width, v.Height, v.FrameRate, v.Bitrate, v.Duration)
}

// FrameSize returns the number of bytes of one BGRA frame.
func (v VideoStreamInfo) FrameSize() int {
	return v.Width * v.Height * 4
}

// Info is the result of probing a media file.
type Info struct {
	Duration   time.Duration
	FormatCode string // short format name, as used with -f
	FormatName string
	Streams    []StreamInfo
}

// AudioStream returns the nth audio stream.
func (i Info) AudioStream(n int) (AudioStreamInfo, bool) {
	for _, s := range i.Streams {
		if a, ok := s.(AudioStreamInfo); ok {
			if n == 0 {
				return a, true
			}
			n--
		}
	}

	return AudioStreamInfo{}, false
}

// VideoStream returns the nth video stream.
func (i Info) VideoStream(n int) (VideoStreamInfo, bool) {
	for _, s := range i.Streams {
		if v, ok := s.(VideoStreamInfo); ok {
			if n == 0 {
				return v, true
			}
			n--
		}
	}

	return VideoStreamInfo{}, false
}

func (i Info) String() string {
	b := strings.Builder{}

	fmt.Fprintf(&b, "%s (%s), %s\n", i.FormatCode, i.FormatName, i.Duration)
	for n, s := range i.Streams {
		fmt.Fprintf(&b, "  #%d %s\n", n, s)
	}

	return b.String()
}

var validation struct {
	once     sync.Once
	validate *validator.Validate
}

func validate(s interface{}) error {
	validation.once.Do(func() {
		validation.validate = validator.New()
	})

	if err := validation.validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, e := range verrs {
				fields = append(fields, fmt.Sprintf("%s must be %s %s", e.Field(), e.Tag(), e.Param()))
			}

			return fmt.Errorf("%w: %s", ErrInvalidArgument, strings.Join(fields, ", "))
		}

		return fmt.Errorf("%w: %s", ErrInvalidArgument, err)
	}

	return nil
}
