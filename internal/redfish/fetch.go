package redfish

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/chambridge/node-inventory-aggregator/internal/inventory"
)

// Fetch retrieves one document. Timeouts are retried until MaxRetries attempts have
// been made; every other failure gives up at once. A failed fetch yields an empty
// result tagged with the node and exactly one warning in the log.
func (c *Client) Fetch(ctx context.Context, req inventory.Request) inventory.FetchResult {
	maxAttempts := c.cfg.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempts := 0
	var doc map[string]interface{}
	operation := func() error {
		attempts++
		d, err := c.Get(ctx, req.URL)
		if err != nil {
			if IsTimeout(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		doc = d
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Debug("retrying after timeout",
			zap.String("node", req.Node),
			zap.String("url", req.URL),
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.RetryInterval), uint64(maxAttempts-1)),
		ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		c.logger.Warn("cannot fetch data from BMC",
			zap.String("node", req.Node),
			zap.String("url", req.URL),
			zap.Int("attempts", attempts),
			zap.Bool("timeout", IsTimeout(err)),
			zap.Error(err))
		return inventory.FetchResult{
			Node:     req.Node,
			Metrics:  map[string]interface{}{},
			Outcome:  inventory.OutcomeDegraded,
			Err:      err,
			Attempts: attempts,
		}
	}

	return inventory.FetchResult{
		Node:     req.Node,
		Metrics:  doc,
		Outcome:  inventory.OutcomeOK,
		Attempts: attempts,
	}
}

// FetchAll issues every request concurrently on this session and waits for all of
// them. Results come back in completion order; use FetchResult.Node for correspondence.
func (c *Client) FetchAll(ctx context.Context, reqs []inventory.Request) []inventory.FetchResult {
	results := make([]inventory.FetchResult, 0, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	done := make(chan inventory.FetchResult, len(reqs))
	for _, req := range reqs {
		go func(req inventory.Request) {
			done <- c.Fetch(ctx, req)
		}(req)
	}
	for range reqs {
		results = append(results, <-done)
	}
	return results
}
