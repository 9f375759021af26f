package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NodeQuery filters stored node records. A nil ScanID selects the latest scan.
type NodeQuery struct {
	ScanID uuid.UUID
	Status string
	Limit  int
	Offset int
}

// PartitionName returns the daily node_records partition holding date.
func PartitionName(date time.Time) string {
	date = date.UTC()
	return fmt.Sprintf("node_records_y%d_m%02d_d%02d", date.Year(), int(date.Month()), date.Day())
}

// dayBounds returns the UTC day containing date as [start, end).
func dayBounds(date time.Time) (time.Time, time.Time) {
	date = date.UTC()
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
