package scanner

import "github.com/chambridge/node-inventory-aggregator/internal/inventory"

// Align reorders results into node order. A node listed more than once takes its
// results first-in-first-out; a node without a result gets a NotAttempted placeholder.
// Results for nodes not in the list are dropped.
func Align(nodes []string, results []inventory.FetchResult) []inventory.FetchResult {
	byNode := make(map[string][]inventory.FetchResult, len(results))
	for _, r := range results {
		byNode[r.Node] = append(byNode[r.Node], r)
	}

	aligned := make([]inventory.FetchResult, len(nodes))
	for i, node := range nodes {
		queue := byNode[node]
		if len(queue) == 0 {
			aligned[i] = inventory.NotAttempted(node)
			continue
		}
		aligned[i] = queue[0]
		byNode[node] = queue[1:]
	}
	return aligned
}
