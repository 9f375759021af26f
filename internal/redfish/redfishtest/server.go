// Package redfishtest provides fake BMCs serving the iDRAC inventory resources over TLS.
package redfishtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const (
	Username = "root"
	Password = "calvin"

	systemPath  = "/redfish/v1/Systems/System.Embedded.1"
	managerPath = "/redfish/v1/Managers/iDRAC.Embedded.1"
)

// BMC is a fake controller. Node is the host:port to use as the node address.
type BMC struct {
	*httptest.Server
	Node string

	mu   sync.Mutex
	hits map[string]int
}

// NewServer starts a TLS server around handler, counting hits per path.
func NewServer(t testing.TB, handler http.Handler) *BMC {
	b := &BMC{hits: map[string]int{}}
	b.Server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[r.URL.Path]++
		b.mu.Unlock()
		handler.ServeHTTP(w, r)
	}))
	b.Node = strings.TrimPrefix(b.Server.URL, "https://")
	t.Cleanup(b.Server.Close)
	return b
}

// NewBMC serves system and manager as the two inventory documents behind basic auth.
// A nil document answers 404.
func NewBMC(t testing.TB, system, manager map[string]interface{}) *BMC {
	mux := http.NewServeMux()
	mux.Handle(systemPath, document(system))
	mux.Handle(managerPath, document(manager))
	return NewServer(t, mux)
}

// Hits returns how many requests reached path.
func (b *BMC) Hits(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

func document(doc map[string]interface{}) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != Username || pass != Password {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if doc == nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	})
}

// SystemDocument returns a trimmed ComputerSystem resource as an iDRAC reports it.
func SystemDocument(serviceTag, hostName, health string) map[string]interface{} {
	return map[string]interface{}{
		"@odata.id":    systemPath,
		"Id":           "System.Embedded.1",
		"SKU":          serviceTag,
		"UUID":         "4c4c4544-0048-3010-8052-" + strings.ToLower(serviceTag),
		"SerialNumber": "CN7475" + serviceTag,
		"HostName":     hostName,
		"Model":        "PowerEdge R740",
		"Manufacturer": "Dell Inc.",
		"ProcessorSummary": map[string]interface{}{
			"Model":                 "Intel(R) Xeon(R) Gold 6248R CPU @ 3.00GHz",
			"Count":                 2,
			"LogicalProcessorCount": 96,
			"Status":                map[string]interface{}{"Health": "OK"},
		},
		"MemorySummary": map[string]interface{}{
			"TotalSystemMemoryGiB": 384.0,
			"Status":               map[string]interface{}{"Health": "OK"},
		},
		"Status": map[string]interface{}{
			"Health": health,
			"State":  "Enabled",
		},
	}
}

// ManagerDocument returns a trimmed Manager resource.
func ManagerDocument(model, firmware string) map[string]interface{} {
	return map[string]interface{}{
		"@odata.id":       managerPath,
		"Id":              "iDRAC.Embedded.1",
		"Model":           model,
		"FirmwareVersion": firmware,
		"ManagerType":     "BMC",
	}
}
