package partition

import "errors"

// ErrInvalidPartitionCount is returned when the requested number of groups is not positive.
var ErrInvalidPartitionCount = errors.New("partition count must be positive")

// Partition splits items into k contiguous groups. Every group holds len(items)/k
// items except the last one, which also takes the len(items)%k remainder.
// Empty input yields k empty groups.
func Partition[T any](items []T, k int) ([][]T, error) {
	if k <= 0 {
		return nil, ErrInvalidPartitionCount
	}

	perGroup := len(items) / k
	groups := make([][]T, 0, k)
	for i := 0; i < k; i++ {
		start := i * perGroup
		end := start + perGroup
		if i == k-1 {
			end = len(items)
		}
		// Full slice expression keeps appends on one group from clobbering the next.
		groups = append(groups, items[start:end:end])
	}
	return groups, nil
}
