// Package scanner sweeps a list of BMCs and turns their Redfish documents into
// inventory records.
package scanner

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/chambridge/node-inventory-aggregator/internal/config"
	"github.com/chambridge/node-inventory-aggregator/internal/inventory"
	"github.com/chambridge/node-inventory-aggregator/internal/redfish"
	"github.com/chambridge/node-inventory-aggregator/internal/workerpool"
)

// Sink receives the records of every completed sweep.
type Sink interface {
	Write(ctx context.Context, report *inventory.Report, records []inventory.Record) error
}

// Config describes how nodes are addressed and which session settings are used.
type Config struct {
	Client      redfish.Config
	Scheme      string
	SystemPath  string
	ManagerPath string
}

// ConfigFrom maps the loaded application configuration onto a scanner Config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Client: redfish.Config{
			Username:           cfg.IDRAC.Username,
			Password:           cfg.IDRAC.Password,
			ConnectTimeout:     cfg.Scan.ConnectTimeout,
			RequestTimeout:     cfg.Scan.RequestTimeout,
			MaxRetries:         cfg.Scan.MaxRetries,
			RetryInterval:      cfg.Scan.RetryInterval,
			InsecureSkipVerify: cfg.Scan.InsecureSkipVerify,
		},
		Scheme:      cfg.Scan.Scheme,
		SystemPath:  cfg.Scan.SystemPath,
		ManagerPath: cfg.Scan.ManagerPath,
	}
}

type Scanner struct {
	cfg    Config
	pool   *workerpool.Pool
	logger *zap.Logger
	clock  clockwork.Clock
	sinks  []Sink
}

type Option func(*Scanner)

// WithClock replaces the wall clock used for report timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scanner) { s.clock = clock }
}

// WithSinks appends sinks that receive every sweep.
func WithSinks(sinks ...Sink) Option {
	return func(s *Scanner) { s.sinks = append(s.sinks, sinks...) }
}

// New builds a Scanner on a shared pool. The pool is owned by the caller.
func New(cfg Config, pool *workerpool.Pool, logger *zap.Logger, opts ...Option) *Scanner {
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if cfg.SystemPath == "" {
		cfg.SystemPath = redfish.SystemPath
	}
	if cfg.ManagerPath == "" {
		cfg.ManagerPath = redfish.ManagerPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scanner{
		cfg:    cfg,
		pool:   pool,
		logger: logger,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one sweep over nodes and hands the result to every sink. Records are
// in node order, one per node. Unreachable nodes do not fail the sweep; a sink error or
// a canceled ctx does, and a canceled sweep reaches no sink.
func (s *Scanner) Run(ctx context.Context, nodes []string) (*inventory.Report, []inventory.Record, error) {
	report := &inventory.Report{
		ScanID:    uuid.New(),
		StartedAt: s.clock.Now().UTC(),
		Nodes:     len(nodes),
	}
	logger := s.logger.With(zap.String("scan_id", report.ScanID.String()))
	logger.Info("scan started", zap.Int("nodes", len(nodes)), zap.Int("workers", s.pool.Size()))

	systems, err := ParallelFetch(ctx, s.pool, s.cfg.Client, logger,
		BuildURLs(nodes, s.cfg.Scheme, s.cfg.SystemPath), nodes, s.pool.Size())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch system documents: %w", err)
	}
	controllers, err := ParallelFetch(ctx, s.pool, s.cfg.Client, logger,
		BuildURLs(nodes, s.cfg.Scheme, s.cfg.ManagerPath), nodes, s.pool.Size())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch controller documents: %w", err)
	}

	// Canceled sweeps never reach the sinks.
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan %s canceled: %w", report.ScanID, err)
	}

	systems = Align(nodes, systems)
	controllers = Align(nodes, controllers)

	records, err := ParallelExtract(ctx, s.pool, logger, systems, controllers)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to extract records: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan %s canceled: %w", report.ScanID, err)
	}

	tally(report, systems, controllers, records)
	report.FinishedAt = s.clock.Now().UTC()
	logger.Info("scan finished",
		zap.Int("reachable", report.Reachable),
		zap.Int("unreachable", report.Unreachable),
		zap.Int("malformed", report.Malformed),
		zap.Int("not_attempted", report.NotAttempted),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))

	for _, sink := range s.sinks {
		if err := sink.Write(ctx, report, records); err != nil {
			return report, records, fmt.Errorf("failed to write scan %s: %w", report.ScanID, err)
		}
	}
	return report, records, nil
}

// tally counts records by status. NotAttempted counts nodes with at least one document
// that was never requested, independently of the status buckets.
func tally(report *inventory.Report, systems, controllers []inventory.FetchResult, records []inventory.Record) {
	for i, rec := range records {
		switch {
		case rec.Status != nil && *rec.Status == inventory.StatusMalformed:
			report.Malformed++
		case rec.Status != nil && *rec.Status == inventory.StatusUnreachable:
			report.Unreachable++
		default:
			report.Reachable++
		}
		if systems[i].Outcome == inventory.OutcomeNotAttempted || controllers[i].Outcome == inventory.OutcomeNotAttempted {
			report.NotAttempted++
		}
	}
}
