package api

import (
	"github.com/gin-gonic/gin"

	"github.com/chambridge/node-inventory-aggregator/api/handlers"
)

// SetupRouter wires the inventory API. nodes is the configured node list used by
// scans triggered without an explicit nodelist.
func SetupRouter(store handlers.Store, sweeper handlers.Sweeper, nodes []string) *gin.Engine {
	r := gin.Default()

	api := r.Group("/api")
	{
		api.GET("/inventory/v1/nodes", handlers.QueryNodesHandler(store))
		api.GET("/inventory/v1/scans", handlers.QueryScansHandler(store))
		api.POST("/inventory/v1/scans", handlers.TriggerScanHandler(sweeper, nodes))
	}

	return r
}
