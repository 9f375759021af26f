package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/chambridge/node-inventory-aggregator/internal/inventory"
)

// ErrMalformedDocument marks an inventory document whose structure does not match the
// Redfish schema, e.g. a summary that is not an object.
var ErrMalformedDocument = errors.New("malformed inventory document")

// ErrInvalidField marks a scalar of the wrong type. The field is left null and the
// rest of the record is kept.
var ErrInvalidField = errors.New("invalid inventory field")

// fieldReader collects scalar type errors while a record is filled in.
type fieldReader struct {
	errs []error
}

func (r *fieldReader) str(doc map[string]interface{}, key string) *string {
	s, err := stringField(doc, key)
	if err != nil {
		r.errs = append(r.errs, err)
	}
	return s
}

func (r *fieldReader) integer(doc map[string]interface{}, key string) *int64 {
	n, err := intField(doc, key)
	if err != nil {
		r.errs = append(r.errs, err)
	}
	return n
}

func (r *fieldReader) number(doc map[string]interface{}, key string) *float64 {
	f, err := floatField(doc, key)
	if err != nil {
		r.errs = append(r.errs, err)
	}
	return f
}

// Extract merges one node's system and manager documents into a flat record.
// Missing fields become nulls; the BMC address always comes from system.Node.
// A sub-object of the wrong type fails the whole record with ErrMalformedDocument.
// A scalar of the wrong type only nulls that field: the record is still returned,
// along with an error wrapping ErrInvalidField for each such field.
// Extract performs no I/O and has no state.
func Extract(system, manager inventory.FetchResult) (inventory.Record, error) {
	sys := system.Metrics
	bmc := manager.Metrics
	rec := inventory.Record{BmcIPAddr: system.Node}
	var r fieldReader

	if len(sys) > 0 {
		processor, err := objectField(sys, "ProcessorSummary")
		if err != nil {
			return inventory.Record{}, err
		}
		memory, err := objectField(sys, "MemorySummary")
		if err != nil {
			return inventory.Record{}, err
		}
		status, err := objectField(sys, "Status")
		if err != nil {
			return inventory.Record{}, err
		}

		rec.ServiceTag = r.str(sys, "SKU")
		rec.UUID = r.str(sys, "UUID")
		rec.SerialNumber = r.str(sys, "SerialNumber")
		rec.HostName = r.str(sys, "HostName")
		rec.Model = r.str(sys, "Model")
		rec.Manufacturer = r.str(sys, "Manufacturer")
		rec.ProcessorModel = r.str(processor, "Model")
		rec.ProcessorCount = r.integer(processor, "Count")
		rec.LogicalProcessorCount = r.integer(processor, "LogicalProcessorCount")
		rec.TotalSystemMemoryGiB = r.number(memory, "TotalSystemMemoryGiB")
		rec.Status = r.str(status, "Health")
	}

	if len(bmc) > 0 {
		rec.BmcModel = r.str(bmc, "Model")
		rec.BmcFirmwareVersion = r.str(bmc, "FirmwareVersion")
	}

	if len(sys) == 0 && len(bmc) == 0 {
		status := inventory.StatusUnreachable
		rec.Status = &status
	}
	return rec, errors.Join(r.errs...)
}

func malformed(key string, v interface{}, want string) error {
	return fmt.Errorf("%w: %s is %T, want %s", ErrMalformedDocument, key, v, want)
}

func invalid(key string, v interface{}, want string) error {
	return fmt.Errorf("%w: %s is %T (%v), want %s", ErrInvalidField, key, v, v, want)
}

// objectField returns doc[key] as an object; a missing or null value is an empty object.
func objectField(doc map[string]interface{}, key string) (map[string]interface{}, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return map[string]interface{}{}, nil
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, malformed(key, v, "object")
	}
	return obj, nil
}

func stringField(doc map[string]interface{}, key string) (*string, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, invalid(key, v, "string")
	}
	return &s, nil
}

func intField(doc map[string]interface{}, key string) (*int64, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return nil, nil
	}
	var n int64
	switch t := v.(type) {
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil || !integral(f) {
				return nil, invalid(key, v, "integer")
			}
			i = int64(f)
		}
		n = i
	case int:
		n = int64(t)
	case int64:
		n = t
	case float64:
		if !integral(t) {
			return nil, invalid(key, v, "integer")
		}
		n = int64(t)
	default:
		return nil, invalid(key, v, "integer")
	}
	return &n, nil
}

func floatField(doc map[string]interface{}, key string) (*float64, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return nil, nil
	}
	var f float64
	switch t := v.(type) {
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil, invalid(key, v, "number")
		}
		f = parsed
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case float64:
		f = t
	default:
		return nil, invalid(key, v, "number")
	}
	return &f, nil
}

// integral reports whether f is a whole number that fits in an int64.
func integral(f float64) bool {
	return f == math.Trunc(f) && f >= -(1<<63) && f < 1<<63
}
