package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CountersByLabels(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("orders_total", map[string]string{"status": "completed", "payment_status": "completed"})
	r.IncrementCounter("orders_total", map[string]string{"payment_status": "completed", "status": "completed"})
	r.IncrementCounter("orders_total", map[string]string{"status": "failed", "payment_status": "timeout"})
	r.IncrementCounter("database_errors_total", nil)

	assert.Equal(t, uint64(2), r.Counter("orders_total", map[string]string{"status": "completed", "payment_status": "completed"}))
	assert.Equal(t, uint64(1), r.Counter("orders_total", map[string]string{"status": "failed", "payment_status": "timeout"}))
	assert.Equal(t, uint64(1), r.Counter("database_errors_total", nil))
	assert.Equal(t, uint64(0), r.Counter("orders_total", map[string]string{"status": "failed", "payment_status": "error"}))
}

func TestRegistry_Histogram(t *testing.T) {
	r := NewRegistry()
	r.RegisterHistogram("order_processing_duration_seconds", []float64{0.5, 0.1, 1})

	for _, v := range []float64{0.05, 0.3, 0.7, 3} {
		r.ObserveDuration("order_processing_duration_seconds", v)
	}

	h := r.Snapshot().Histograms["order_processing_duration_seconds"]
	assert.Equal(t, uint64(4), h.Count)
	assert.InDelta(t, 4.05, h.Sum, 1e-9)
	assert.Equal(t, uint64(1), h.Buckets["0.1"])
	assert.Equal(t, uint64(2), h.Buckets["0.5"])
	assert.Equal(t, uint64(3), h.Buckets["1"])
	assert.Equal(t, uint64(4), h.Buckets["+Inf"])
}

func TestRegistry_Gauges(t *testing.T) {
	r := NewRegistry()
	r.SetGauge("stale_pending_orders", 3)
	r.GaugeFunc("active_orders", func() float64 { return 7 })

	snap := r.Snapshot()
	assert.Equal(t, 3.0, snap.Gauges["stale_pending_orders"])
	assert.Equal(t, 7.0, snap.Gauges["active_orders"])
}

func TestRegistry_ConcurrentIncrements(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.IncrementCounter("payments_total", map[string]string{"status": "success"})
			r.ObserveDuration("payment_processing_duration_seconds", 0.2)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(100), r.Counter("payments_total", map[string]string{"status": "success"}))
	assert.Equal(t, uint64(100), r.Snapshot().Histograms["payment_processing_duration_seconds"].Count)
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.IncrementCounter("orders_total", map[string]string{"status": "failed", "payment_status": "none"})

	rec := httptest.NewRecorder()
	Handler(r).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Counters, 1)
	assert.Equal(t, "orders_total", snap.Counters[0].Name)
	assert.Equal(t, "none", snap.Counters[0].Labels["payment_status"])
}
