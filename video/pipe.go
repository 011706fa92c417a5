package video

// Pipe reads all frames from src and writes them to dst. It returns dst
// such that it can be closed in the same statement.
func Pipe(src Reader, dst Writer) (Writer, error) {
	if src == nil || dst == nil {
		return dst, ErrInvalidOperation
	}

	format := src.Format()
	frame := NewFrame(format.Width, format.Height)

	for {
		ok, err := src.ReadFrame(frame)
		if err != nil {
			return dst, err
		}

		if !ok {
			return dst, nil
		}

		if err := dst.WriteFrame(frame); err != nil {
			return dst, err
		}
	}
}
