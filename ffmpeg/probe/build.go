package probe

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/avyn/avstream/media"
)

// Build creates the media info from the sections of
// "ffprobe -show_format -show_streams". Only STREAM sections of type audio or
// video and the FORMAT section are considered. The filename is used to pick
// the format code that matches the file extension.
func Build(sections []Section, filename string) (media.Info, error) {
	info := media.Info{}

	type indexedStream struct {
		index  int
		stream media.StreamInfo
	}

	streams := []indexedStream{}

	for _, section := range sections {
		switch section.Name {
		case "STREAM":
			codecType, _ := section.Get("codec_type")

			var stream media.StreamInfo
			var err error

			switch codecType {
			case "video":
				stream, err = buildVideo(section)
			case "audio":
				stream, err = buildAudio(section)
			default:
				continue
			}

			if err != nil {
				return media.Info{}, err
			}

			index := len(streams)
			if value, ok := section.Get("index"); ok {
				index, err = strconv.Atoi(value)
				if err != nil {
					return media.Info{}, fmt.Errorf("%w: index: %s", ErrFormat, err)
				}
			}

			streams = append(streams, indexedStream{
				index:  index,
				stream: stream,
			})
		case "FORMAT":
			d, err := seconds(section, "duration")
			if err != nil {
				return media.Info{}, err
			}

			info.Duration = d
			info.FormatCode = formatCode(section, filename)
			info.FormatName, _ = section.Get("format_long_name")
		}
	}

	sort.SliceStable(streams, func(i, j int) bool {
		return streams[i].index < streams[j].index
	})

	info.Streams = make([]media.StreamInfo, len(streams))
	for i, s := range streams {
		info.Streams[i] = s.stream
	}

	return info, nil
}

func buildVideo(section Section) (media.VideoStreamInfo, error) {
	var err error

	v := media.VideoStreamInfo{}

	v.Codec, _ = section.Get("codec_name")
	v.PixelFormat, _ = section.Get("pix_fmt")

	if v.Width, err = integer(section, "width"); err != nil {
		return v, err
	}

	if v.Height, err = integer(section, "height"); err != nil {
		return v, err
	}

	if v.FrameRate, err = frameRate(section); err != nil {
		return v, err
	}

	if v.StartTime, err = seconds(section, "start_time"); err != nil {
		return v, err
	}

	if v.Duration, err = seconds(section, "duration"); err != nil {
		return v, err
	}

	v.Bitrate = media.Bitrate(v.Width, v.Height, v.FrameRate)
	if value, ok := section.Get("bit_rate"); ok {
		bitrate, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return v, fmt.Errorf("%w: bit_rate: %s", ErrFormat, err)
		}

		v.Bitrate = bitrate
	}

	return v, nil
}

func buildAudio(section Section) (media.AudioStreamInfo, error) {
	var err error

	a := media.AudioStreamInfo{
		BitsPerSample: 16,
	}

	a.Codec, _ = section.Get("codec_name")

	if a.Channels, err = integer(section, "channels"); err != nil {
		return a, err
	}

	if a.SampleRate, err = integer(section, "sample_rate"); err != nil {
		return a, err
	}

	if a.StartTime, err = seconds(section, "start_time"); err != nil {
		return a, err
	}

	if a.Duration, err = seconds(section, "duration"); err != nil {
		return a, err
	}

	return a, nil
}

func integer(section Section, key string) (int, error) {
	value, ok := section.Get(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s is missing in %s", ErrFormat, key, section.Name)
	}

	x, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %s", ErrFormat, key, err)
	}

	return x, nil
}

// seconds returns the value of a field in seconds as duration. A missing
// field is a zero duration.
func seconds(section Section, key string) (time.Duration, error) {
	value, ok := section.Get(key)
	if !ok {
		return 0, nil
	}

	x, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %s", ErrFormat, key, err)
	}

	return time.Duration(x * float64(time.Second)), nil
}

// frameRate parses r_frame_rate, a fraction like 30000/1001. If it is not
// usable, avg_frame_rate is tried.
func frameRate(section Section) (float64, error) {
	var err error

	for _, key := range []string{"r_frame_rate", "avg_frame_rate"} {
		value, ok := section.Get(key)
		if !ok {
			continue
		}

		var fps float64
		fps, err = fraction(value)
		if err == nil && fps > 0 {
			return fps, nil
		}
	}

	if err != nil {
		return 0, fmt.Errorf("%w: frame rate: %s", ErrFormat, err)
	}

	return 0, fmt.Errorf("%w: no frame rate in %s", ErrFormat, section.Name)
}

func fraction(value string) (float64, error) {
	num, den, found := strings.Cut(value, "/")

	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}

	if !found {
		return n, nil
	}

	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, err
	}

	if d == 0 {
		return 0, fmt.Errorf("invalid fraction %s", value)
	}

	return n / d, nil
}

func formatCode(section Section, filename string) string {
	value, _ := section.Get("format_name")
	codes := strings.Split(value, ",")

	ext := strings.ToLower(filepath.Ext(filename))

	for _, code := range codes {
		if "."+code == ext {
			return code
		}
	}

	return codes[0]
}
