package gateway

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"orderflow/internal/metrics"
)

const MetricExternalCalls = "external_api_calls_total"

type SimulatorConfig struct {
	Seed int64
	// GatewayFailureRate is the share of calls the upstream gateway rejects.
	GatewayFailureRate float64
	// DeclineRate is the share of remaining calls declined by the processor.
	DeclineRate float64
	MinLatency  time.Duration
	MaxLatency  time.Duration
	// GatewayName labels external call metrics.
	GatewayName string
}

func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Seed:               time.Now().UnixNano(),
		GatewayFailureRate: 0.10,
		DeclineRate:        0.15,
		MinLatency:         100 * time.Millisecond,
		MaxLatency:         800 * time.Millisecond,
		GatewayName:        "stripe",
	}
}

// Simulator is a seedable failure-injecting Authorizer. With the same seed
// and the same sequence of calls it produces the same outcomes.
type Simulator struct {
	cfg     SimulatorConfig
	metrics metrics.Sink

	mu  sync.Mutex
	rng *rand.Rand
}

type plan struct {
	latency       time.Duration
	gatewayOK     bool
	declined      bool
	transactionID string
}

func NewSimulator(cfg SimulatorConfig, sink metrics.Sink) *Simulator {
	if cfg.MaxLatency < cfg.MinLatency {
		cfg.MaxLatency = cfg.MinLatency
	}
	if cfg.GatewayName == "" {
		cfg.GatewayName = "stripe"
	}
	if sink == nil {
		sink = metrics.Nop{}
	}
	return &Simulator{
		cfg:     cfg,
		metrics: sink,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}
}

func (s *Simulator) Authorize(ctx context.Context, _ Request) (Result, error) {
	p := s.next()

	if err := sleepContext(ctx, p.latency); err != nil {
		return Result{}, err
	}

	if p.gatewayOK {
		s.metrics.IncrementCounter(MetricExternalCalls, map[string]string{"gateway": s.cfg.GatewayName, "status": "success"})
	} else {
		s.metrics.IncrementCounter(MetricExternalCalls, map[string]string{"gateway": s.cfg.GatewayName, "status": "failed"})
	}

	if !p.gatewayOK || p.declined {
		return Result{Approved: false, Reason: DeclineReason}, nil
	}
	return Result{Approved: true, TransactionID: p.transactionID}, nil
}

// next draws every random value for one call under the lock, so outcomes
// depend only on call order and not on timing.
func (s *Simulator) next() plan {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := plan{latency: s.cfg.MinLatency}
	if spread := s.cfg.MaxLatency - s.cfg.MinLatency; spread > 0 {
		p.latency += time.Duration(s.rng.Int63n(int64(spread) + 1))
	}
	p.gatewayOK = s.rng.Float64() >= s.cfg.GatewayFailureRate
	p.declined = s.rng.Float64() < s.cfg.DeclineRate

	id, err := uuid.NewRandomFromReader(s.rng)
	if err != nil {
		id = uuid.New()
	}
	p.transactionID = "TXN-" + id.String()
	return p
}
