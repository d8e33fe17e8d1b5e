package sample

// Downsample reduces samples to at most maxPoints for display by decimation.
// The first and last sample are kept when maxPoints > 1.
// Destination-based: reuses dst if it has sufficient capacity, otherwise allocates new.
// Returns the destination slice (may be dst if reused, or a new slice if dst was too small).
func Downsample(dst []Sample, samples []Sample, maxPoints int) []Sample {
	if maxPoints <= 0 || len(samples) <= maxPoints {
		// Need to copy all samples
		if cap(dst) >= len(samples) {
			dst = dst[:len(samples)]
			copy(dst, samples)
			return dst
		}
		// dst too small, allocate new
		result := make([]Sample, len(samples))
		copy(result, samples)
		return result
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]Sample, 0, maxPoints)
	}

	if maxPoints == 1 {
		return append(dst, samples[len(samples)-1])
	}

	// Spread maxPoints indices evenly over [0, len-1].
	step := float64(len(samples)-1) / float64(maxPoints-1)
	for i := range maxPoints {
		dst = append(dst, samples[int(float64(i)*step+0.5)])
	}

	return dst
}
