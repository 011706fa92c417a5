package video

import (
	"image"
	"image/color"
)

// Frame is a picture of packed 32-bit BGRA pixels, row by row without
// padding. This is the raw format ffmpeg reads and writes with -pix_fmt bgra.
// Frame implements draw.Image.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// NewFrame returns a black, transparent frame of the given size.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*4),
	}
}

// Size returns the number of bytes of a frame.
func (f *Frame) Size() int {
	return f.Width * f.Height * 4
}

// PixOffset returns the index of the first byte of the pixel at (x, y).
func (f *Frame) PixOffset(x, y int) int {
	return (y*f.Width + x) * 4
}

func (f *Frame) ColorModel() color.Model {
	return color.RGBAModel
}

func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

func (f *Frame) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(f.Bounds())) {
		return color.RGBA{}
	}

	i := f.PixOffset(x, y)
	s := f.Pix[i : i+4 : i+4]

	return color.RGBA{R: s[2], G: s[1], B: s[0], A: s[3]}
}

func (f *Frame) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(f.Bounds())) {
		return
	}

	rgba := color.RGBAModel.Convert(c).(color.RGBA)

	i := f.PixOffset(x, y)
	s := f.Pix[i : i+4 : i+4]
	s[0] = rgba.B
	s[1] = rgba.G
	s[2] = rgba.R
	s[3] = rgba.A
}

// Fill sets every pixel of the frame to c.
func (f *Frame) Fill(c color.Color) {
	rgba := color.RGBAModel.Convert(c).(color.RGBA)

	for i := 0; i+3 < len(f.Pix); i += 4 {
		f.Pix[i+0] = rgba.B
		f.Pix[i+1] = rgba.G
		f.Pix[i+2] = rgba.R
		f.Pix[i+3] = rgba.A
	}
}
