package audio

import (
	"errors"
	"io"
)

// PipeSize is the number of samples that Pipe moves at once.
const PipeSize = 4096

// Pipe reads all samples from src and writes them to dst. It returns dst
// such that it can be closed in the same statement.
func Pipe(src Reader, dst Writer) (Writer, error) {
	if src == nil || dst == nil {
		return dst, ErrInvalidOperation
	}

	return dst, pipe(make([]int16, PipeSize), src.ReadSamples, dst.WriteSamples)
}

// PipeFloats is like Pipe but moves the samples as normalized floats.
func PipeFloats(src Reader, dst Writer) (Writer, error) {
	if src == nil || dst == nil {
		return dst, ErrInvalidOperation
	}

	return dst, pipe(make([]float32, PipeSize), src.ReadFloats, dst.WriteFloats)
}

func pipe[T int16 | float32](buf []T, read func([]T) (int, error), write func([]T) error) error {
	for {
		n, err := read(buf)
		if n > 0 {
			if werr := write(buf[:n]); werr != nil {
				return werr
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}
	}
}
