package redfish

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chambridge/node-inventory-aggregator/internal/inventory"
	"github.com/chambridge/node-inventory-aggregator/internal/redfish/redfishtest"
)

func testConfig() Config {
	return Config{
		Username:           redfishtest.Username,
		Password:           redfishtest.Password,
		ConnectTimeout:     time.Second,
		RequestTimeout:     2 * time.Second,
		MaxRetries:         3,
		InsecureSkipVerify: true,
	}
}

func observedClient(cfg Config) (*Client, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	c := NewClient(cfg, zap.New(core))
	return c, logs
}

func TestFetchSuccess(t *testing.T) {
	// Arrange
	bmc := redfishtest.NewBMC(t,
		redfishtest.SystemDocument("H0RXGT2", "cpu-1-1", "OK"),
		redfishtest.ManagerDocument("14G Monolithic", "6.10.30.00"))
	client, logs := observedClient(testConfig())
	defer client.Close()

	// Act
	res := client.Fetch(context.Background(), inventory.Request{URL: bmc.URL + SystemPath, Node: bmc.Node})

	// Assert
	require.NoError(t, res.Err)
	assert.Equal(t, inventory.OutcomeOK, res.Outcome)
	assert.Equal(t, bmc.Node, res.Node)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "H0RXGT2", res.Metrics["SKU"])
	summary, ok := res.Metrics["ProcessorSummary"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, json.Number("2"), summary["Count"], "numbers are kept as json.Number")
	assert.Zero(t, logs.Len())
}

func TestFetchNonSuccessStatusIsNotRetried(t *testing.T) {
	// Arrange
	var hits int64
	bmc := redfishtest.NewServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	client, logs := observedClient(testConfig())
	defer client.Close()

	// Act
	res := client.Fetch(context.Background(), inventory.Request{URL: bmc.URL + SystemPath, Node: bmc.Node})

	// Assert
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, inventory.OutcomeDegraded, res.Outcome)
	assert.Equal(t, bmc.Node, res.Node)
	assert.NotNil(t, res.Metrics)
	assert.Empty(t, res.Metrics)
	var statusErr *StatusError
	require.ErrorAs(t, res.Err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Equal(t, 1, logs.Len())
}

func TestFetchTimeoutRetriedUpToMax(t *testing.T) {
	// Arrange
	var hits int64
	release := make(chan struct{})
	bmc := redfishtest.NewServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		select {
		case <-release:
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer close(release)
	cfg := testConfig()
	cfg.RequestTimeout = 100 * time.Millisecond
	client, logs := observedClient(cfg)
	defer client.Close()

	// Act
	res := client.Fetch(context.Background(), inventory.Request{URL: bmc.URL + SystemPath, Node: bmc.Node})

	// Assert
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int64(3), atomic.LoadInt64(&hits))
	assert.Equal(t, inventory.OutcomeDegraded, res.Outcome)
	assert.Empty(t, res.Metrics)
	assert.True(t, IsTimeout(res.Err))
	require.Equal(t, 1, logs.Len(), "a failure is logged exactly once")
	entry := logs.All()[0]
	assert.Equal(t, bmc.Node, entry.ContextMap()["node"])
	assert.Equal(t, int64(3), entry.ContextMap()["attempts"])
}

func TestFetchRetryBudgetIsPerRequest(t *testing.T) {
	// Arrange: one slow BMC must not eat the retry budget of a healthy one.
	slow := redfishtest.NewServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	var flakyHits int64
	flaky := redfishtest.NewServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&flakyHits, 1) < 3 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"Model": "14G Monolithic"})
	}))
	cfg := testConfig()
	cfg.RequestTimeout = 100 * time.Millisecond
	client, _ := observedClient(cfg)
	defer client.Close()

	// Act
	results := client.FetchAll(context.Background(), []inventory.Request{
		{URL: slow.URL + ManagerPath, Node: slow.Node},
		{URL: flaky.URL + ManagerPath, Node: flaky.Node},
	})

	// Assert
	require.Len(t, results, 2)
	byNode := map[string]inventory.FetchResult{}
	for _, r := range results {
		byNode[r.Node] = r
	}
	assert.Equal(t, inventory.OutcomeDegraded, byNode[slow.Node].Outcome)
	assert.Equal(t, 3, byNode[slow.Node].Attempts)
	assert.Equal(t, inventory.OutcomeOK, byNode[flaky.Node].Outcome)
	assert.Equal(t, 3, byNode[flaky.Node].Attempts)
	assert.Equal(t, "14G Monolithic", byNode[flaky.Node].Metrics["Model"])
}

func TestFetchMalformedBody(t *testing.T) {
	cases := map[string]string{
		"NotJSON":    "<html>login</html>",
		"JSONArray":  `[{"Model": "x"}]`,
		"Truncated":  `{"Model": `,
		"JSONString": `"ok"`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var hits int64
			bmc := redfishtest.NewServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt64(&hits, 1)
				_, _ = w.Write([]byte(body))
			}))
			client, logs := observedClient(testConfig())
			defer client.Close()

			res := client.Fetch(context.Background(), inventory.Request{URL: bmc.URL + SystemPath, Node: bmc.Node})

			assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
			assert.Equal(t, inventory.OutcomeDegraded, res.Outcome)
			assert.Empty(t, res.Metrics)
			assert.Error(t, res.Err)
			assert.Equal(t, 1, logs.Len())
		})
	}
}

func TestFetchWrongCredentials(t *testing.T) {
	bmc := redfishtest.NewBMC(t, redfishtest.SystemDocument("ABC1234", "cpu-1-2", "OK"), nil)
	cfg := testConfig()
	cfg.Password = "wrong"
	client, _ := observedClient(cfg)
	defer client.Close()

	res := client.Fetch(context.Background(), inventory.Request{URL: bmc.URL + SystemPath, Node: bmc.Node})

	var statusErr *StatusError
	require.ErrorAs(t, res.Err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	assert.Equal(t, 1, bmc.Hits(SystemPath))
}

func TestFetchConnectionRefused(t *testing.T) {
	bmc := redfishtest.NewServer(t, http.NotFoundHandler())
	url := bmc.URL + SystemPath
	node := bmc.Node
	bmc.Close()
	client, logs := observedClient(testConfig())
	defer client.Close()

	res := client.Fetch(context.Background(), inventory.Request{URL: url, Node: node})

	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, inventory.OutcomeDegraded, res.Outcome)
	assert.False(t, IsTimeout(res.Err))
	assert.Equal(t, 1, logs.Len())
}

func TestFetchAll(t *testing.T) {
	t.Run("OneResultPerRequestTaggedByNode", func(t *testing.T) {
		var reqs []inventory.Request
		want := map[string]string{}
		for _, tag := range []string{"AAA0001", "AAA0002", "AAA0003", "AAA0004", "AAA0005"} {
			bmc := redfishtest.NewBMC(t, redfishtest.SystemDocument(tag, "h-"+tag, "OK"), nil)
			reqs = append(reqs, inventory.Request{URL: bmc.URL + SystemPath, Node: bmc.Node})
			want[bmc.Node] = tag
		}
		client, _ := observedClient(testConfig())
		defer client.Close()

		results := client.FetchAll(context.Background(), reqs)

		require.Len(t, results, len(reqs))
		seen := map[string]bool{}
		for _, r := range results {
			assert.Equal(t, want[r.Node], r.Metrics["SKU"])
			seen[r.Node] = true
		}
		assert.Len(t, seen, len(reqs))
	})

	t.Run("Empty", func(t *testing.T) {
		client, _ := observedClient(testConfig())
		defer client.Close()

		results := client.FetchAll(context.Background(), nil)

		assert.NotNil(t, results)
		assert.Empty(t, results)
	})
}

func TestIsTimeout(t *testing.T) {
	assert.False(t, IsTimeout(nil))
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.False(t, IsTimeout(context.Canceled))
	assert.False(t, IsTimeout(&StatusError{URL: "https://x", Code: 503}))
}
