package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/chambridge/node-inventory-aggregator/internal/hostlist"
	"github.com/chambridge/node-inventory-aggregator/internal/inventory"
)

// Sweeper runs one inventory sweep.
type Sweeper interface {
	Run(ctx context.Context, nodes []string) (*inventory.Report, []inventory.Record, error)
}

type ScanRequest struct {
	Nodelist []string `json:"nodelist"`
}

// TriggerScanHandler handles POST /api/inventory/v1/scans. The sweep runs synchronously
// over nodes, or over the nodelist patterns in the request body when given. Only one
// sweep runs at a time.
func TriggerScanHandler(sweeper Sweeper, nodes []string) gin.HandlerFunc {
	var running sync.Mutex
	return func(c *gin.Context) {
		var req ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		targets := nodes
		if len(req.Nodelist) > 0 {
			expanded, err := hostlist.Expand(req.Nodelist...)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid nodelist: " + err.Error()})
				return
			}
			targets = expanded
		}
		if len(targets) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No nodes to scan"})
			return
		}

		if !running.TryLock() {
			c.JSON(http.StatusConflict, gin.H{"error": "A scan is already running"})
			return
		}
		defer running.Unlock()

		report, _, err := sweeper.Run(c.Request.Context(), targets)
		if err != nil {
			if report == nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Scan failed: " + err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store scan: " + err.Error(), "report": report})
			return
		}

		c.JSON(http.StatusCreated, report)
	}
}
