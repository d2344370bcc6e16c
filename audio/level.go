package audio

import "math"

// RMS is the root-mean-square amplitude of the samples on the raw
// int16 scale (0..32767).
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Level maps an RMS amplitude to 0..1 for display meters.
func Level(rms float64) float64 {
	l := rms / 32767.0 * 8
	if l > 1 {
		l = 1
	}
	return l
}
