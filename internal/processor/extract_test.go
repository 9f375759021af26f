package processor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chambridge/node-inventory-aggregator/internal/inventory"
)

func systemResult(node string) inventory.FetchResult {
	return inventory.FetchResult{
		Node:    node,
		Outcome: inventory.OutcomeOK,
		Metrics: map[string]interface{}{
			"SKU":          "H0RXGT2",
			"UUID":         "4c4c4544-0048-3010-8052-c8c04f475432",
			"SerialNumber": "CN747518BT0010",
			"HostName":     "cpu-1-1",
			"Model":        "PowerEdge R740",
			"Manufacturer": "Dell Inc.",
			"ProcessorSummary": map[string]interface{}{
				"Model":                 "Intel(R) Xeon(R) Gold 6248R CPU @ 3.00GHz",
				"Count":                 json.Number("2"),
				"LogicalProcessorCount": json.Number("96"),
			},
			"MemorySummary": map[string]interface{}{
				"TotalSystemMemoryGiB": json.Number("384"),
			},
			"Status": map[string]interface{}{"Health": "OK", "State": "Enabled"},
		},
	}
}

func managerResult(node string) inventory.FetchResult {
	return inventory.FetchResult{
		Node:    node,
		Outcome: inventory.OutcomeOK,
		Metrics: map[string]interface{}{
			"Model":           "14G Monolithic",
			"FirmwareVersion": "6.10.30.00",
		},
	}
}

func emptyResult(node string) inventory.FetchResult {
	return inventory.FetchResult{Node: node, Metrics: map[string]interface{}{}, Outcome: inventory.OutcomeDegraded}
}

func TestExtract(t *testing.T) {
	t.Run("FullDocuments", func(t *testing.T) {
		// Act
		rec, err := Extract(systemResult("10.101.1.1"), managerResult("10.101.1.1"))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "H0RXGT2", *rec.ServiceTag)
		assert.Equal(t, "4c4c4544-0048-3010-8052-c8c04f475432", *rec.UUID)
		assert.Equal(t, "CN747518BT0010", *rec.SerialNumber)
		assert.Equal(t, "cpu-1-1", *rec.HostName)
		assert.Equal(t, "PowerEdge R740", *rec.Model)
		assert.Equal(t, "Dell Inc.", *rec.Manufacturer)
		assert.Equal(t, "Intel(R) Xeon(R) Gold 6248R CPU @ 3.00GHz", *rec.ProcessorModel)
		assert.Equal(t, int64(2), *rec.ProcessorCount)
		assert.Equal(t, int64(96), *rec.LogicalProcessorCount)
		assert.Equal(t, 384.0, *rec.TotalSystemMemoryGiB)
		assert.Equal(t, "10.101.1.1", rec.BmcIPAddr)
		assert.Equal(t, "14G Monolithic", *rec.BmcModel)
		assert.Equal(t, "6.10.30.00", *rec.BmcFirmwareVersion)
		assert.Equal(t, "OK", *rec.Status)
	})

	t.Run("BothEmptyIsUnreachable", func(t *testing.T) {
		rec, err := Extract(emptyResult("10.101.1.2"), emptyResult("10.101.1.2"))

		require.NoError(t, err)
		require.NotNil(t, rec.Status)
		assert.Equal(t, inventory.StatusUnreachable, *rec.Status)
		assert.Equal(t, "10.101.1.2", rec.BmcIPAddr)
		assert.Nil(t, rec.ServiceTag)
		assert.Nil(t, rec.UUID)
		assert.Nil(t, rec.ProcessorCount)
		assert.Nil(t, rec.TotalSystemMemoryGiB)
		assert.Nil(t, rec.BmcModel)
		assert.Nil(t, rec.BmcFirmwareVersion)
	})

	t.Run("NilMetricsCountAsEmpty", func(t *testing.T) {
		rec, err := Extract(inventory.NotAttempted("n1"), inventory.FetchResult{Node: "n1"})

		require.NoError(t, err)
		assert.Equal(t, inventory.StatusUnreachable, *rec.Status)
	})

	t.Run("OnlyManagerReachable", func(t *testing.T) {
		rec, err := Extract(emptyResult("10.101.1.3"), managerResult("10.101.1.3"))

		require.NoError(t, err)
		assert.Nil(t, rec.Status, "no system document means no health value")
		assert.Nil(t, rec.ServiceTag)
		assert.Nil(t, rec.Model)
		assert.Equal(t, "14G Monolithic", *rec.BmcModel)
	})

	t.Run("OnlySystemReachable", func(t *testing.T) {
		rec, err := Extract(systemResult("10.101.1.4"), emptyResult("10.101.1.4"))

		require.NoError(t, err)
		assert.Equal(t, "OK", *rec.Status)
		assert.Nil(t, rec.BmcModel)
		assert.Nil(t, rec.BmcFirmwareVersion)
	})

	t.Run("MissingFieldsAreNull", func(t *testing.T) {
		sys := inventory.FetchResult{Node: "n5", Metrics: map[string]interface{}{"Model": "PowerEdge C6420"}}

		rec, err := Extract(sys, emptyResult("n5"))

		require.NoError(t, err)
		assert.Equal(t, "PowerEdge C6420", *rec.Model)
		assert.Nil(t, rec.ServiceTag)
		assert.Nil(t, rec.ProcessorModel)
		assert.Nil(t, rec.ProcessorCount)
		assert.Nil(t, rec.TotalSystemMemoryGiB)
		assert.Nil(t, rec.Status)
	})

	t.Run("AddressComesFromSystemNode", func(t *testing.T) {
		sys := systemResult("10.101.1.6")
		sys.Metrics["HostName"] = "10.0.0.99"

		rec, err := Extract(sys, managerResult("10.101.1.6"))

		require.NoError(t, err)
		assert.Equal(t, "10.101.1.6", rec.BmcIPAddr)
	})

	t.Run("PlainGoNumbers", func(t *testing.T) {
		sys := inventory.FetchResult{Node: "n7", Metrics: map[string]interface{}{
			"ProcessorSummary": map[string]interface{}{"Count": 2, "LogicalProcessorCount": 48.0},
			"MemorySummary":    map[string]interface{}{"TotalSystemMemoryGiB": 192},
		}}

		rec, err := Extract(sys, emptyResult("n7"))

		require.NoError(t, err)
		assert.Equal(t, int64(2), *rec.ProcessorCount)
		assert.Equal(t, int64(48), *rec.LogicalProcessorCount)
		assert.Equal(t, 192.0, *rec.TotalSystemMemoryGiB)
	})

	t.Run("Idempotent", func(t *testing.T) {
		sys, bmc := systemResult("n8"), managerResult("n8")

		first, err := Extract(sys, bmc)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := Extract(sys, bmc)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})
}

func TestExtractMalformed(t *testing.T) {
	cases := map[string]func(m map[string]interface{}){
		"ProcessorSummaryNotObject": func(m map[string]interface{}) { m["ProcessorSummary"] = "2 CPUs" },
		"MemorySummaryNotObject":    func(m map[string]interface{}) { m["MemorySummary"] = json.Number("384") },
		"StatusNotObject":           func(m map[string]interface{}) { m["Status"] = []interface{}{"OK"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			sys := systemResult("n9")
			mutate(sys.Metrics)

			rec, err := Extract(sys, managerResult("n9"))

			assert.ErrorIs(t, err, ErrMalformedDocument)
			assert.Equal(t, inventory.Record{}, rec)
		})
	}
}

func TestExtractInvalidField(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(m map[string]interface{})
		field  func(r inventory.Record) interface{}
	}{
		{
			name:   "HostNameIsNumber",
			mutate: func(m map[string]interface{}) { m["HostName"] = json.Number("42") },
			field:  func(r inventory.Record) interface{} { return r.HostName },
		},
		{
			name: "CountIsFractional",
			mutate: func(m map[string]interface{}) {
				m["ProcessorSummary"].(map[string]interface{})["Count"] = json.Number("1.5")
			},
			field: func(r inventory.Record) interface{} { return r.ProcessorCount },
		},
		{
			name: "CountIsString",
			mutate: func(m map[string]interface{}) {
				m["ProcessorSummary"].(map[string]interface{})["Count"] = "two"
			},
			field: func(r inventory.Record) interface{} { return r.ProcessorCount },
		},
		{
			name: "CountOverflowsInt64",
			mutate: func(m map[string]interface{}) {
				m["ProcessorSummary"].(map[string]interface{})["LogicalProcessorCount"] = json.Number("1e19")
			},
			field: func(r inventory.Record) interface{} { return r.LogicalProcessorCount },
		},
		{
			name: "MemoryIsBool",
			mutate: func(m map[string]interface{}) {
				m["MemorySummary"] = map[string]interface{}{"TotalSystemMemoryGiB": true}
			},
			field: func(r inventory.Record) interface{} { return r.TotalSystemMemoryGiB },
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			sys := systemResult("n9")
			tc.mutate(sys.Metrics)

			// Act
			rec, err := Extract(sys, managerResult("n9"))

			// Assert
			assert.ErrorIs(t, err, ErrInvalidField)
			assert.NotErrorIs(t, err, ErrMalformedDocument)
			assert.Nil(t, tc.field(rec))
			require.NotNil(t, rec.ServiceTag)
			assert.Equal(t, "H0RXGT2", *rec.ServiceTag)
			require.NotNil(t, rec.Status)
			assert.Equal(t, "OK", *rec.Status)
			require.NotNil(t, rec.BmcModel)
			assert.Equal(t, "14G Monolithic", *rec.BmcModel)
			assert.Equal(t, "n9", rec.BmcIPAddr)
		})
	}

	t.Run("HealthIsObject", func(t *testing.T) {
		sys := systemResult("n9")
		sys.Metrics["Status"] = map[string]interface{}{"Health": map[string]interface{}{}}

		rec, err := Extract(sys, managerResult("n9"))

		assert.ErrorIs(t, err, ErrInvalidField)
		assert.Nil(t, rec.Status)
		assert.Equal(t, "PowerEdge R740", *rec.Model)
	})

	t.Run("EveryBadFieldIsReported", func(t *testing.T) {
		sys := systemResult("n9")
		sys.Metrics["SerialNumber"] = json.Number("12")
		bmc := managerResult("n9")
		bmc.Metrics["Model"] = map[string]interface{}{}

		rec, err := Extract(sys, bmc)

		require.ErrorIs(t, err, ErrInvalidField)
		assert.Contains(t, err.Error(), "SerialNumber")
		assert.Contains(t, err.Error(), "Model")
		assert.Nil(t, rec.SerialNumber)
		assert.Nil(t, rec.BmcModel)
		assert.Equal(t, "6.10.30.00", *rec.BmcFirmwareVersion)
	})

	t.Run("ExponentCountIsKept", func(t *testing.T) {
		sys := systemResult("n9")
		sys.Metrics["ProcessorSummary"].(map[string]interface{})["Count"] = json.Number("4e3")

		rec, err := Extract(sys, managerResult("n9"))

		require.NoError(t, err)
		assert.Equal(t, int64(4000), *rec.ProcessorCount)
	})
}
