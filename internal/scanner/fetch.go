package scanner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chambridge/node-inventory-aggregator/internal/inventory"
	"github.com/chambridge/node-inventory-aggregator/internal/partition"
	"github.com/chambridge/node-inventory-aggregator/internal/redfish"
	"github.com/chambridge/node-inventory-aggregator/internal/workerpool"
)

// session is the part of a redfish.Client a fetch group needs.
type session interface {
	FetchAll(ctx context.Context, reqs []inventory.Request) []inventory.FetchResult
	Close()
}

var newSession = func(cfg redfish.Config, logger *zap.Logger) session {
	return redfish.NewClient(cfg, logger)
}

// BuildURLs returns scheme://node+path for every node, in node order.
func BuildURLs(nodes []string, scheme, path string) []string {
	urls := make([]string, len(nodes))
	for i, node := range nodes {
		urls[i] = scheme + "://" + node + path
	}
	return urls
}

// ParallelFetch splits urls and nodes into the same number of groups and fetches each
// group on its own session as one pool task. Results are concatenated in group order;
// inside a group they keep completion order. A group whose task fails contributes nothing.
func ParallelFetch(ctx context.Context, pool *workerpool.Pool, cfg redfish.Config, logger *zap.Logger,
	urls, nodes []string, workers int) ([]inventory.FetchResult, error) {
	if len(urls) != len(nodes) {
		return nil, fmt.Errorf("got %d urls for %d nodes", len(urls), len(nodes))
	}
	if workers <= 0 {
		workers = pool.Size()
	}

	urlGroups, err := partition.Partition(urls, workers)
	if err != nil {
		return nil, fmt.Errorf("failed to partition urls: %w", err)
	}
	nodeGroups, err := partition.Partition(nodes, workers)
	if err != nil {
		return nil, fmt.Errorf("failed to partition nodes: %w", err)
	}

	groups := make([][]inventory.FetchResult, workers)
	errs := pool.Run(ctx, workers, func(ctx context.Context, g int) error {
		if len(urlGroups[g]) == 0 {
			return nil
		}
		reqs := make([]inventory.Request, len(urlGroups[g]))
		for i := range urlGroups[g] {
			reqs[i] = inventory.Request{URL: urlGroups[g][i], Node: nodeGroups[g][i]}
		}

		s := newSession(cfg, logger)
		defer s.Close()
		groups[g] = s.FetchAll(ctx, reqs)
		return nil
	})

	results := make([]inventory.FetchResult, 0, len(urls))
	for g, err := range errs {
		if err != nil {
			logger.Error("fetch group failed",
				zap.Int("group", g),
				zap.Strings("nodes", nodeGroups[g]),
				zap.Error(err))
			continue
		}
		results = append(results, groups[g]...)
	}
	return results, nil
}
