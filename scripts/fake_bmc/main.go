package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Starts count fake iDRACs on consecutive ports for local sweeps. Point scanodes at them
// with scan.scheme=http and the printed nodelist.
func main() {
	var (
		host        = flag.String("host", "127.0.0.1", "Listen address")
		basePort    = flag.Int("base-port", 8001, "Port of the first fake BMC")
		count       = flag.Int("count", 4, "Number of fake BMCs")
		username    = flag.String("username", "root", "Basic auth user")
		password    = flag.String("password", "calvin", "Basic auth password")
		delay       = flag.Duration("delay", 0, "Delay before every response")
		failEvery   = flag.Int("fail-every", 0, "Every n-th BMC answers 503 (0 disables)")
		garbleEvery = flag.Int("garble-every", 0, "Every n-th BMC returns a malformed system document (0 disables)")
	)
	flag.Parse()

	gin.SetMode(gin.ReleaseMode)
	fmt.Printf("nodelist: %s:[%d-%d]\n", *host, *basePort, *basePort+*count-1)

	var wg sync.WaitGroup
	for i := 0; i < *count; i++ {
		bmc := fakeBMC{
			index:   i + 1,
			failing: *failEvery > 0 && (i+1)%*failEvery == 0,
			garbled: *garbleEvery > 0 && (i+1)%*garbleEvery == 0,
			delay:   *delay,
		}
		addr := fmt.Sprintf("%s:%d", *host, *basePort+i)
		r := bmc.router(gin.Accounts{*username: *password})

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Run(addr); err != nil {
				log.Printf("Fake BMC %s stopped: %v", addr, err)
			}
		}()
	}
	wg.Wait()
}

type fakeBMC struct {
	index   int
	failing bool
	garbled bool
	delay   time.Duration
}

func (b fakeBMC) router(accounts gin.Accounts) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), gin.BasicAuth(accounts), b.latency)

	r.GET("/redfish/v1/Systems/System.Embedded.1", b.system)
	r.GET("/redfish/v1/Managers/iDRAC.Embedded.1", b.manager)
	return r
}

func (b fakeBMC) latency(c *gin.Context) {
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.failing {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
		return
	}
	c.Next()
}

func (b fakeBMC) serviceTag() string {
	return fmt.Sprintf("FAKE%03d", b.index)
}

func (b fakeBMC) system(c *gin.Context) {
	summary := interface{}(gin.H{
		"Model":                 "Intel(R) Xeon(R) Gold 6248R CPU @ 3.00GHz",
		"Count":                 2,
		"LogicalProcessorCount": 96,
	})
	if b.garbled {
		summary = "2 sockets"
	}

	c.JSON(http.StatusOK, gin.H{
		"@odata.id":        c.Request.URL.Path,
		"Id":               "System.Embedded.1",
		"SKU":              b.serviceTag(),
		"UUID":             uuid.NewSHA1(uuid.NameSpaceOID, []byte(b.serviceTag())).String(),
		"SerialNumber":     "CN7475" + b.serviceTag(),
		"HostName":         fmt.Sprintf("cpu-%d", b.index),
		"Model":            "PowerEdge R740",
		"Manufacturer":     "Dell Inc.",
		"ProcessorSummary": summary,
		"MemorySummary":    gin.H{"TotalSystemMemoryGiB": 384},
		"Status":           gin.H{"Health": "OK", "State": "Enabled"},
	})
}

func (b fakeBMC) manager(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"@odata.id":       c.Request.URL.Path,
		"Id":              "iDRAC.Embedded.1",
		"Model":           "14G Monolithic",
		"FirmwareVersion": "6.10.30.00",
		"ManagerType":     "BMC",
	})
}
