// Package metrics holds the counters, duration histograms and gauges fed by
// the order saga and the payment simulator.
package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Sink is what instrumented code needs: counters and duration observations.
type Sink interface {
	IncrementCounter(name string, labels map[string]string)
	ObserveDuration(name string, seconds float64)
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncrementCounter(string, map[string]string) {}
func (Nop) ObserveDuration(string, float64)            {}

// DefaultBuckets are the upper bounds, in seconds, used for histograms that
// were not registered explicitly.
var DefaultBuckets = []float64{0.1, 0.5, 1, 2, 5}

type CounterSample struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  uint64            `json:"value"`
}

type HistogramSnapshot struct {
	Count   uint64            `json:"count"`
	Sum     float64           `json:"sum"`
	Buckets map[string]uint64 `json:"buckets"`
}

type Snapshot struct {
	UptimeSec  int64                        `json:"uptime_sec"`
	Counters   []CounterSample              `json:"counters"`
	Histograms map[string]HistogramSnapshot `json:"histograms"`
	Gauges     map[string]float64           `json:"gauges"`
}

type counter struct {
	name   string
	labels map[string]string
	value  uint64
}

type histogram struct {
	bounds []float64
	counts []uint64
	count  uint64
	sum    float64
}

// Registry is an in-process Sink that also keeps gauges and can produce a
// point-in-time Snapshot.
type Registry struct {
	mu         sync.Mutex
	start      time.Time
	counters   map[string]*counter
	histograms map[string]*histogram
	gauges     map[string]float64
	gaugeFuncs map[string]func() float64
}

func NewRegistry() *Registry {
	return &Registry{
		start:      time.Now(),
		counters:   make(map[string]*counter),
		histograms: make(map[string]*histogram),
		gauges:     make(map[string]float64),
		gaugeFuncs: make(map[string]func() float64),
	}
}

// RegisterHistogram sets the bucket bounds of a histogram. It resets any
// observations already made under that name.
func (r *Registry) RegisterHistogram(name string, bounds []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[name] = newHistogram(bounds)
}

func (r *Registry) IncrementCounter(name string, labels map[string]string) {
	key := counterKey(name, labels)

	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.counters[key]
	if !ok {
		c = &counter{name: name, labels: copyLabels(labels)}
		r.counters[key] = c
	}
	c.value++
}

func (r *Registry) ObserveDuration(name string, seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.histograms[name]
	if !ok {
		h = newHistogram(DefaultBuckets)
		r.histograms[name] = h
	}
	h.observe(seconds)
}

func (r *Registry) SetGauge(name string, value float64) {
	r.mu.Lock()
	r.gauges[name] = value
	r.mu.Unlock()
}

// GaugeFunc registers a gauge whose value is read at snapshot time.
func (r *Registry) GaugeFunc(name string, fn func() float64) {
	r.mu.Lock()
	r.gaugeFuncs[name] = fn
	r.mu.Unlock()
}

// Counter returns the current value of a labelled counter.
func (r *Registry) Counter(name string, labels map[string]string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[counterKey(name, labels)]; ok {
		return c.value
	}
	return 0
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	funcs := make(map[string]func() float64, len(r.gaugeFuncs))
	for name, fn := range r.gaugeFuncs {
		funcs[name] = fn
	}

	snap := Snapshot{
		UptimeSec:  int64(time.Since(r.start).Seconds()),
		Counters:   make([]CounterSample, 0, len(r.counters)),
		Histograms: make(map[string]HistogramSnapshot, len(r.histograms)),
		Gauges:     make(map[string]float64, len(r.gauges)+len(funcs)),
	}

	keys := make([]string, 0, len(r.counters))
	for key := range r.counters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		c := r.counters[key]
		snap.Counters = append(snap.Counters, CounterSample{Name: c.name, Labels: copyLabels(c.labels), Value: c.value})
	}
	for name, h := range r.histograms {
		snap.Histograms[name] = h.snapshot()
	}
	for name, v := range r.gauges {
		snap.Gauges[name] = v
	}
	r.mu.Unlock()

	// gauge funcs may take their own locks; call them outside ours
	for name, fn := range funcs {
		snap.Gauges[name] = fn()
	}
	return snap
}

func newHistogram(bounds []float64) *histogram {
	b := append([]float64(nil), bounds...)
	sort.Float64s(b)
	return &histogram{bounds: b, counts: make([]uint64, len(b))}
}

func (h *histogram) observe(v float64) {
	h.count++
	h.sum += v
	for i, bound := range h.bounds {
		if v <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) snapshot() HistogramSnapshot {
	buckets := make(map[string]uint64, len(h.bounds)+1)
	for i, bound := range h.bounds {
		buckets[formatBound(bound)] = h.counts[i]
	}
	buckets["+Inf"] = h.count
	return HistogramSnapshot{Count: h.count, Sum: h.sum, Buckets: buckets}
}

func counterKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range names {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	return b.String()
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}
