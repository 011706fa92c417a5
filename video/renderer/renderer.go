// Package renderer contains renderers of synthetic video.
package renderer

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/avyn/avstream/log"
	"github.com/avyn/avstream/media"
	"github.com/avyn/avstream/video"

	"github.com/disintegration/imaging"
	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Bars are the colours of the test pattern, from left to right.
var Bars = []color.RGBA{
	{R: 192, G: 192, B: 192, A: 255}, // grey
	{R: 192, G: 192, B: 0, A: 255},   // yellow
	{R: 0, G: 192, B: 192, A: 255},   // cyan
	{R: 0, G: 192, B: 0, A: 255},     // green
	{R: 192, G: 0, B: 192, A: 255},   // magenta
	{R: 192, G: 0, B: 0, A: 255},     // red
	{R: 0, G: 0, B: 192, A: 255},     // blue
}

// NewTestPattern returns a renderer of colour bars with a white bar that
// moves across the picture once per second.
func NewTestPattern(format media.VideoStreamInfo, duration time.Duration, logger log.Logger) *video.Renderer {
	logger = componentLogger(logger).WithField("renderer", "testpattern")

	logger.WithField("format", format.String()).Debug().Log("Created")

	return video.NewRenderer(format, duration, func(t time.Duration, frame *video.Frame) bool {
		DrawBars(frame, t)
		return true
	})
}

// DrawBars draws the test pattern at the position t into dst.
func DrawBars(dst draw.Image, t time.Duration) {
	b := dst.Bounds()

	for i, c := range Bars {
		r := image.Rect(b.Min.X+b.Dx()*i/len(Bars), b.Min.Y, b.Min.X+b.Dx()*(i+1)/len(Bars), b.Max.Y)
		draw.Draw(dst, r, &image.Uniform{c}, image.Point{}, draw.Src)
	}

	width := b.Dx() / 32
	if width < 1 {
		width = 1
	}

	x := b.Min.X + int(int64(b.Dx())*int64(t%time.Second)/int64(time.Second))

	draw.Draw(dst, image.Rect(x, b.Min.Y, x+width, b.Max.Y).Intersect(b), image.White, image.Point{}, draw.Src)
}

// NewStill returns a renderer that shows the image at path in every frame.
// The image is scaled and cropped to fill the frame.
func NewStill(format media.VideoStreamInfo, duration time.Duration, path string, logger log.Logger) (*video.Renderer, error) {
	logger = componentLogger(logger).WithFields(log.Fields{
		"renderer": "still",
		"file":     path,
	})

	if format.Width <= 0 || format.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid frame size %dx%d", video.ErrInvalidArgument, format.Width, format.Height)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("loading image: %w", err)
	}

	still := video.NewFrame(format.Width, format.Height)
	Fill(still, img)

	logger.WithFields(log.Fields{
		"format": format.String(),
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
	}).Debug().Log("Created")

	return video.NewRenderer(format, duration, func(t time.Duration, frame *video.Frame) bool {
		copy(frame.Pix, still.Pix)
		return true
	}), nil
}

// Fill scales and crops img to the size of dst and draws it into dst.
func Fill(dst draw.Image, img image.Image) {
	b := dst.Bounds()

	filled := imaging.Fill(img, b.Dx(), b.Dy(), imaging.Center, imaging.Lanczos)

	draw.Draw(dst, b, filled, image.Point{}, draw.Src)
}

func componentLogger(logger log.Logger) log.Logger {
	if logger == nil {
		logger = log.New("")
	}

	return logger.WithComponent("Renderer").WithField("stream", shortuuid.New())
}
