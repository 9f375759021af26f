package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chambridge/node-inventory-aggregator/internal/inventory"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Write stores a scan and its records in one transaction. Records are stamped with the
// scan start time so a whole sweep lands in one daily partition.
func (r *Repository) Write(ctx context.Context, report *inventory.Report, records []inventory.Record) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	collectedAt := report.StartedAt.UTC()
	if err := createPartition(ctx, tx, collectedAt); err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO scans (id, started_at, finished_at, nodes, reachable, unreachable, malformed, not_attempted)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		report.ScanID, report.StartedAt, report.FinishedAt, report.Nodes,
		report.Reachable, report.Unreachable, report.Malformed, report.NotAttempted)
	if err != nil {
		return fmt.Errorf("failed to insert scan %s: %w", report.ScanID, err)
	}

	batch := &pgx.Batch{}
	for i, rec := range records {
		batch.Queue(
			`INSERT INTO node_records (
				scan_id, collected_at, position, bmc_ip_addr, service_tag, uuid, serial_number,
				host_name, model, manufacturer, processor_model, processor_count,
				logical_processor_count, total_system_memory_gib, bmc_model, bmc_firmware_version, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			report.ScanID, collectedAt, i, rec.BmcIPAddr, rec.ServiceTag, rec.UUID, rec.SerialNumber,
			rec.HostName, rec.Model, rec.Manufacturer, rec.ProcessorModel, rec.ProcessorCount,
			rec.LogicalProcessorCount, rec.TotalSystemMemoryGiB, rec.BmcModel, rec.BmcFirmwareVersion, rec.Status)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert node records: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit scan %s: %w", report.ScanID, err)
	}
	return nil
}

// CreatePartition creates the daily node_records partition for date if it is missing.
func (r *Repository) CreatePartition(ctx context.Context, date time.Time) error {
	return createPartition(ctx, r.db, date)
}

func createPartition(ctx context.Context, db execer, date time.Time) error {
	name := PartitionName(date)
	start, end := dayBounds(date)
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s
		PARTITION OF node_records
		FOR VALUES FROM ('%s') TO ('%s')`,
		pgx.Identifier{name}.Sanitize(), start.Format(time.RFC3339), end.Format(time.RFC3339))

	if _, err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create partition %s: %w", name, err)
	}
	return nil
}

// DropPartition removes the daily node_records partition for date. A missing partition is not an error.
func (r *Repository) DropPartition(ctx context.Context, date time.Time) error {
	name := PartitionName(date)
	if _, err := r.db.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{name}.Sanitize()); err != nil {
		return fmt.Errorf("failed to drop partition %s: %w", name, err)
	}
	return nil
}

// QueryNodeRecords returns one page of records in node order along with the number of
// records matching q.
func (r *Repository) QueryNodeRecords(ctx context.Context, q NodeQuery) ([]inventory.StoredRecord, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	if q.ScanID == uuid.Nil {
		conds = append(conds, "scan_id = (SELECT id FROM scans ORDER BY started_at DESC LIMIT 1)")
	} else {
		args = append(args, q.ScanID)
		conds = append(conds, fmt.Sprintf("scan_id = $%d", len(args)))
	}
	if q.Status != "" {
		args = append(args, q.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM node_records"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count node records: %w", err)
	}

	query := `
		SELECT scan_id, collected_at, bmc_ip_addr, service_tag, uuid, serial_number, host_name,
			model, manufacturer, processor_model, processor_count, logical_processor_count,
			total_system_memory_gib, bmc_model, bmc_firmware_version, status
		FROM node_records` + where +
		fmt.Sprintf(" ORDER BY position LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, q.Limit, q.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query node records: %w", err)
	}
	defer rows.Close()

	records := []inventory.StoredRecord{}
	for rows.Next() {
		var s inventory.StoredRecord
		if err := rows.Scan(
			&s.ScanID,
			&s.CollectedAt,
			&s.BmcIPAddr,
			&s.ServiceTag,
			&s.UUID,
			&s.SerialNumber,
			&s.HostName,
			&s.Model,
			&s.Manufacturer,
			&s.ProcessorModel,
			&s.ProcessorCount,
			&s.LogicalProcessorCount,
			&s.TotalSystemMemoryGiB,
			&s.BmcModel,
			&s.BmcFirmwareVersion,
			&s.Status,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan row: %w", err)
		}
		s.CollectedAt = s.CollectedAt.UTC()
		records = append(records, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	return records, total, nil
}

// QueryScans returns scans newest first along with the total number of scans.
func (r *Repository) QueryScans(ctx context.Context, limit, offset int) ([]inventory.Report, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM scans").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count scans: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, started_at, finished_at, nodes, reachable, unreachable, malformed, not_attempted
		FROM scans
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	scans := []inventory.Report{}
	for rows.Next() {
		var s inventory.Report
		if err := rows.Scan(&s.ScanID, &s.StartedAt, &s.FinishedAt, &s.Nodes,
			&s.Reachable, &s.Unreachable, &s.Malformed, &s.NotAttempted); err != nil {
			return nil, 0, fmt.Errorf("failed to scan row: %w", err)
		}
		s.StartedAt, s.FinishedAt = s.StartedAt.UTC(), s.FinishedAt.UTC()
		scans = append(scans, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	return scans, total, nil
}
