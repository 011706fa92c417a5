package video

import (
	"time"

	"github.com/avyn/avstream/media"
)

// RenderFunc draws the picture at the position t into frame. It returns
// false if there is no picture at t, this ends the stream.
type RenderFunc func(t time.Duration, frame *Frame) bool

// Renderer is a Reader whose frames are computed by a RenderFunc instead of
// being decoded. It doesn't own a process and it is not a Writer.
type Renderer struct {
	format   media.VideoStreamInfo
	duration time.Duration
	render   RenderFunc
	index    int
	ended    bool
	closed   bool
}

var _ Reader = &Renderer{}

// NewRenderer returns a renderer of frames with the given format. With a
// duration > 0 the stream ends at that position, otherwise it ends only if
// render returns false.
func NewRenderer(format media.VideoStreamInfo, duration time.Duration, render RenderFunc) *Renderer {
	if duration > 0 {
		format.Duration = duration
	}

	return &Renderer{
		format:   format,
		duration: duration,
		render:   render,
	}
}

func (r *Renderer) Format() media.VideoStreamInfo {
	return r.format
}

func (r *Renderer) FrameIndex() int {
	return r.index
}

func (r *Renderer) Duration() (time.Duration, bool) {
	return r.duration, r.duration > 0
}

// Ended returns whether the stream ended.
func (r *Renderer) Ended() bool {
	return r.ended
}

func (r *Renderer) ReadFrame(frame *Frame) (bool, error) {
	if r.closed {
		return false, ErrInvalidOperation
	}

	if err := checkFrame(frame, r.format); err != nil {
		return false, err
	}

	if r.ended {
		return false, nil
	}

	t := position(r.index, r.format.FrameRate)

	if r.duration > 0 && t >= r.duration {
		r.ended = true
		return false, nil
	}

	if !r.render(t, frame) {
		r.ended = true
		return false, nil
	}

	r.index++

	return true, nil
}

func (r *Renderer) Close() error {
	r.closed = true

	return nil
}
