package geospatial

// Resample walks along path and returns a position every strideMeters. The
// first and last points of path are always included. A non-positive stride
// returns a copy of path.
func Resample(path []Coordinate, strideMeters float64) []Coordinate {
	if len(path) == 0 {
		return nil
	}
	if strideMeters <= 0 || len(path) == 1 {
		out := make([]Coordinate, len(path))
		copy(out, path)
		return out
	}

	out := []Coordinate{path[0]}
	remaining := strideMeters

	for i := 1; i < len(path); i++ {
		from, to := path[i-1], path[i]
		seg := Distance(from, to)

		for seg >= remaining {
			from = Destination(from, Bearing(from, to), remaining)
			out = append(out, from)
			seg -= remaining
			remaining = strideMeters
		}
		remaining -= seg
	}

	// Snap a final stride that landed within a millimetre onto the endpoint.
	// A path that never moves keeps its single start point; a loop back to
	// the start still ends with the endpoint.
	last := path[len(path)-1]
	n := len(out)
	switch {
	case n > 1 && Distance(out[n-1], last) < 1e-3:
		out[n-1] = last
	case n == 1 && PathLength(path) == 0:
	default:
		out = append(out, last)
	}
	return out
}
