package scanner

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chambridge/node-inventory-aggregator/internal/inventory"
	"github.com/chambridge/node-inventory-aggregator/internal/partition"
	"github.com/chambridge/node-inventory-aggregator/internal/processor"
	"github.com/chambridge/node-inventory-aggregator/internal/workerpool"
)

// ParallelExtract pairs systems and controllers by position and extracts one record per
// pair, one pool task per group. Records come back in input order. A pair with a malformed
// document, or whose task fails, yields a malformed placeholder for its node; fields of the
// wrong type are only nulled.
func ParallelExtract(ctx context.Context, pool *workerpool.Pool, logger *zap.Logger,
	systems, controllers []inventory.FetchResult) ([]inventory.Record, error) {
	if len(systems) != len(controllers) {
		return nil, fmt.Errorf("got %d system results for %d controller results", len(systems), len(controllers))
	}

	k := pool.Size()
	sysGroups, err := partition.Partition(systems, k)
	if err != nil {
		return nil, fmt.Errorf("failed to partition system results: %w", err)
	}
	ctrlGroups, err := partition.Partition(controllers, k)
	if err != nil {
		return nil, fmt.Errorf("failed to partition controller results: %w", err)
	}
	offsets := make([]int, k)
	for g := 1; g < k; g++ {
		offsets[g] = offsets[g-1] + len(sysGroups[g-1])
	}

	records := make([]inventory.Record, len(systems))
	filled := make([]bool, len(systems))
	errs := pool.Run(ctx, k, func(_ context.Context, g int) error {
		for i := range sysGroups[g] {
			sys, ctrl := sysGroups[g][i], ctrlGroups[g][i]
			rec, err := processor.Extract(sys, ctrl)
			switch {
			case errors.Is(err, processor.ErrMalformedDocument):
				logger.Warn("cannot extract inventory record",
					zap.String("node", sys.Node),
					zap.Error(err))
				rec = inventory.MalformedRecord(sys.Node)
			case err != nil:
				logger.Warn("ignoring invalid inventory fields",
					zap.String("node", sys.Node),
					zap.Error(err))
			}
			records[offsets[g]+i] = rec
			filled[offsets[g]+i] = true
		}
		return nil
	})

	for g, err := range errs {
		if err == nil {
			continue
		}
		logger.Error("extract group failed", zap.Int("group", g), zap.Error(err))
		for i, sys := range sysGroups[g] {
			if !filled[offsets[g]+i] {
				records[offsets[g]+i] = inventory.MalformedRecord(sys.Node)
			}
		}
	}
	return records, nil
}
