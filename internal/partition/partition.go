// Package partition splits a batch of work items into contiguous lanes.
package partition

// Split divides items into exactly lanes contiguous groups of at most
// ceil(len(items)/lanes) elements each. Trailing groups may be shorter or
// empty. Concatenating the groups in order yields items unchanged. A lane
// count below one is treated as one.
func Split[T any](items []T, lanes int) [][]T {
	if lanes < 1 {
		lanes = 1
	}
	size := (len(items) + lanes - 1) / lanes
	groups := make([][]T, lanes)
	for i := range groups {
		start := min(i*size, len(items))
		end := min(start+size, len(items))
		groups[i] = items[start:end:end]
	}
	return groups
}
