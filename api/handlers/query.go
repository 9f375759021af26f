package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chambridge/node-inventory-aggregator/internal/db"
	"github.com/chambridge/node-inventory-aggregator/internal/export"
	"github.com/chambridge/node-inventory-aggregator/internal/inventory"
)

// Store is the read side of the inventory database.
type Store interface {
	QueryNodeRecords(ctx context.Context, q db.NodeQuery) ([]inventory.StoredRecord, int, error)
	QueryScans(ctx context.Context, limit, offset int) ([]inventory.Report, int, error)
}

type NodeQueryParams struct {
	ScanID string `form:"scan_id"`
	Status string `form:"status"`
	Limit  int    `form:"limit,default=100"`
	Offset int    `form:"offset,default=0"`
}

type ScanQueryParams struct {
	Limit  int `form:"limit,default=100"`
	Offset int `form:"offset,default=0"`
}

func validatePage(c *gin.Context, limit, offset int) bool {
	if limit <= 0 || limit > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Limit must be between 1 and 1000"})
		return false
	}
	if offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Offset must be non-negative"})
		return false
	}
	return true
}

// QueryNodesHandler handles the /api/inventory/v1/nodes endpoint. Without scan_id the
// latest scan is returned.
func QueryNodesHandler(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params NodeQueryParams
		if err := c.ShouldBindQuery(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
			return
		}
		if !validatePage(c, params.Limit, params.Offset) {
			return
		}

		q := db.NodeQuery{Status: params.Status, Limit: params.Limit, Offset: params.Offset}
		if params.ScanID != "" {
			id, err := uuid.Parse(params.ScanID)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scan_id: " + err.Error()})
				return
			}
			q.ScanID = id
		}

		records, total, err := store.QueryNodeRecords(c.Request.Context(), q)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query node records: " + err.Error()})
			return
		}

		if c.GetHeader("Accept") == "text/csv" {
			var buf bytes.Buffer
			writer := csv.NewWriter(&buf)

			header := append(append([]string{}, export.Header...), "ScanID", "CollectedAt")
			if err := writer.Write(header); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write CSV header: " + err.Error()})
				return
			}
			for _, rec := range records {
				row := append(export.Row(rec.Record), rec.ScanID.String(), rec.CollectedAt.Format(time.RFC3339))
				if err := writer.Write(row); err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write CSV row: " + err.Error()})
					return
				}
			}

			writer.Flush()
			if err := writer.Error(); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to flush CSV: " + err.Error()})
				return
			}

			c.Header("Content-Type", "text/csv")
			c.Header("Content-Disposition", "attachment;filename=nodes_metadata.csv")
			c.String(http.StatusOK, buf.String())
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"metadata": gin.H{
				"total":  total,
				"limit":  params.Limit,
				"offset": params.Offset,
			},
			"data": records,
		})
	}
}

// QueryScansHandler handles the /api/inventory/v1/scans endpoint, newest scan first.
func QueryScansHandler(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params ScanQueryParams
		if err := c.ShouldBindQuery(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
			return
		}
		if !validatePage(c, params.Limit, params.Offset) {
			return
		}

		scans, total, err := store.QueryScans(c.Request.Context(), params.Limit, params.Offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query scans: " + err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"metadata": gin.H{
				"total":  total,
				"limit":  params.Limit,
				"offset": params.Offset,
			},
			"data": scans,
		})
	}
}
