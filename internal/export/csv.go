package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chambridge/node-inventory-aggregator/internal/inventory"
)

// Header is the column order of exported records.
var Header = []string{
	"ServiceTag", "UUID", "SerialNumber", "HostName", "Model", "Manufacturer",
	"ProcessorModel", "ProcessorCount", "LogicalProcessorCount", "TotalSystemMemoryGiB",
	"Bmc_Ip_Addr", "BmcModel", "BmcFirmwareVersion", "Status",
}

// Row renders a record in Header order. Nulls become empty cells.
func Row(r inventory.Record) []string {
	return []string{
		str(r.ServiceTag),
		str(r.UUID),
		str(r.SerialNumber),
		str(r.HostName),
		str(r.Model),
		str(r.Manufacturer),
		str(r.ProcessorModel),
		integer(r.ProcessorCount),
		integer(r.LogicalProcessorCount),
		float(r.TotalSystemMemoryGiB),
		r.BmcIPAddr,
		str(r.BmcModel),
		str(r.BmcFirmwareVersion),
		str(r.Status),
	}
}

// WriteCSV writes a header line and one line per record.
func WriteCSV(w io.Writer, records []inventory.Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range records {
		if err := writer.Write(Row(r)); err != nil {
			return fmt.Errorf("failed to write CSV row for %s: %w", r.BmcIPAddr, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// FileSink writes each sweep to a CSV file, replacing the previous one.
type FileSink struct {
	Path string
}

func (s FileSink) Write(_ context.Context, _ *inventory.Report, records []inventory.Record) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".nodes-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set CSV file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close CSV file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("failed to move CSV file into place: %w", err)
	}
	return nil
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func integer(p *int64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(*p, 10)
}

func float(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}
