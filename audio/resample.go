package audio

// resampler converts a sample stream between rates by linear
// interpolation, carrying fractional position across calls so chunk
// boundaries do not glitch.
type resampler struct {
	from, to int
	t        float64
	last     int16
	primed   bool
}

func newResampler(from, to int) *resampler {
	return &resampler{from: from, to: to}
}

func (r *resampler) process(in []int16) []int16 {
	if r.from == r.to {
		out := make([]int16, len(in))
		copy(out, in)
		return out
	}

	step := float64(r.from) / float64(r.to)
	out := make([]int16, 0, len(in)*r.to/r.from+1)
	for _, cur := range in {
		if !r.primed {
			r.last = cur
			r.primed = true
			continue
		}
		for r.t < 1 {
			v := float64(r.last)*(1-r.t) + float64(cur)*r.t
			out = append(out, int16(v))
			r.t += step
		}
		r.t--
		r.last = cur
	}
	return out
}
