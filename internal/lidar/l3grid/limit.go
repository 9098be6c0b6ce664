package l3grid

// Limit caps points at m by stride subsampling. When len(points) <= m the
// input is returned unchanged; otherwise exactly m points are returned,
// taken at indices floor(i*N/m). Index math is exact integer arithmetic.
func Limit[T any](points []T, m int) []T {
	n := len(points)
	if n <= m {
		return points
	}
	if m <= 0 {
		return points[:0]
	}
	out := make([]T, m)
	for i := range out {
		out[i] = points[i*n/m]
	}
	return out
}
