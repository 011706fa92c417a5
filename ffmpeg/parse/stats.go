package parse

type statsData struct {
	frame uint64
	size  uint64 // bytes
	dup   uint64
	drop  uint64
}

// stats keeps the difference between two consecutive progress lines.
type stats struct {
	last statsData
	diff statsData
}

func (s *stats) update(p *Progress) {
	s.diff.frame = sub(p.Frame, s.last.frame)
	s.diff.size = sub(p.Size, s.last.size)
	s.diff.drop = sub(p.Drop, s.last.drop)
	s.diff.dup = sub(p.Dup, s.last.dup)

	s.last.frame = p.Frame
	s.last.size = p.Size
	s.last.dup = p.Dup
	s.last.drop = p.Drop
}

// sub returns a-b, or 0 if the counter went backwards.
func sub(a, b uint64) uint64 {
	if a < b {
		return 0
	}

	return a - b
}
