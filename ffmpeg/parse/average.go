package parse

import (
	"time"

	"github.com/prep/average"
)

type averager struct {
	fps     *average.SlidingWindow
	bitrate *average.SlidingWindow
	window  time.Duration
}

func newAverager(window, granularity time.Duration) *averager {
	a := &averager{
		window: window,
	}

	a.fps = average.MustNew(window, granularity)
	a.bitrate = average.MustNew(window, granularity)

	return a
}

func (a *averager) add(frames, bytes uint64) {
	a.fps.Add(int64(frames))
	a.bitrate.Add(int64(bytes) * 8)
}

func (a *averager) fpsAverage() float64 {
	return a.fps.Average(a.window)
}

func (a *averager) bitrateAverage() float64 {
	return a.bitrate.Average(a.window)
}

func (a *averager) stop() {
	a.fps.Stop()
	a.bitrate.Stop()
}
