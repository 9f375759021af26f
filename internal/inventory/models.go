package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Status values written when the BMC documents cannot provide a health value.
const (
	StatusUnreachable = "BMC unreachable in this query"
	StatusMalformed   = "BMC response malformed in this query"
)

// Outcome classifies how a FetchResult came to be.
type Outcome int

const (
	// OutcomeOK means the endpoint returned a JSON document.
	OutcomeOK Outcome = iota
	// OutcomeDegraded means the request was attempted and gave up; the failure was logged.
	OutcomeDegraded
	// OutcomeNotAttempted means no result was produced for the node, e.g. its worker failed.
	OutcomeNotAttempted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeNotAttempted:
		return "not_attempted"
	default:
		return "unknown"
	}
}

// Request is one GET issued against one BMC.
type Request struct {
	URL  string
	Node string
}

// FetchResult is the outcome of one Request. Metrics is empty unless Outcome is OutcomeOK.
type FetchResult struct {
	Node     string
	Metrics  map[string]interface{}
	Outcome  Outcome
	Err      error
	Attempts int
}

// Empty reports whether the result carries no document.
func (r FetchResult) Empty() bool {
	return len(r.Metrics) == 0
}

// NotAttempted builds the placeholder used for nodes that never produced a result.
func NotAttempted(node string) FetchResult {
	return FetchResult{Node: node, Metrics: map[string]interface{}{}, Outcome: OutcomeNotAttempted}
}

// Record is the flat per-node row handed to sinks. Nil pointers are nulls.
type Record struct {
	ServiceTag            *string  `json:"ServiceTag"`
	UUID                  *string  `json:"UUID"`
	SerialNumber          *string  `json:"SerialNumber"`
	HostName              *string  `json:"HostName"`
	Model                 *string  `json:"Model"`
	Manufacturer          *string  `json:"Manufacturer"`
	ProcessorModel        *string  `json:"ProcessorModel"`
	ProcessorCount        *int64   `json:"ProcessorCount"`
	LogicalProcessorCount *int64   `json:"LogicalProcessorCount"`
	TotalSystemMemoryGiB  *float64 `json:"TotalSystemMemoryGiB"`
	BmcIPAddr             string   `json:"Bmc_Ip_Addr"`
	BmcModel              *string  `json:"BmcModel"`
	BmcFirmwareVersion    *string  `json:"BmcFirmwareVersion"`
	Status                *string  `json:"Status"`
}

// MalformedRecord is the null-filled row emitted when a node's documents cannot be extracted.
func MalformedRecord(node string) Record {
	status := StatusMalformed
	return Record{BmcIPAddr: node, Status: &status}
}

// StoredRecord is a Record as persisted by a sink.
type StoredRecord struct {
	Record
	ScanID      uuid.UUID `json:"ScanID"`
	CollectedAt time.Time `json:"CollectedAt"`
}

// Report summarizes one sweep.
type Report struct {
	ScanID       uuid.UUID `json:"scan_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Nodes        int       `json:"nodes"`
	Reachable    int       `json:"reachable"`
	Unreachable  int       `json:"unreachable"`
	Malformed    int       `json:"malformed"`
	NotAttempted int       `json:"not_attempted"`
}
