package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"orderflow/internal/model"
)

type memoryEntry struct {
	mu    sync.Mutex
	order model.Order
}

// MemoryStore keeps orders in process. Each order has its own lock, so
// operations on different ids never contend.
type MemoryStore struct {
	orders sync.Map // int64 -> *memoryEntry
	nextID atomic.Int64
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now}
}

func (s *MemoryStore) InsertPending(ctx context.Context, o NewOrder) (model.Order, error) {
	if err := ctx.Err(); err != nil {
		return model.Order{}, err
	}

	order := model.Order{
		ID:            s.nextID.Add(1),
		CustomerName:  o.CustomerName,
		Product:       o.Product,
		Amount:        o.Amount,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
		CreatedAt:     s.now().UTC(),
	}
	s.orders.Store(order.ID, &memoryEntry{order: order})
	return order, nil
}

func (s *MemoryStore) UpdateOutcome(ctx context.Context, id int64, ps model.PaymentStatus) (model.Order, error) {
	if err := ctx.Err(); err != nil {
		return model.Order{}, err
	}
	if err := checkTransition(ps); err != nil {
		return model.Order{}, err
	}

	entry, ok := s.entry(id)
	if !ok {
		return model.Order{}, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.order.PaymentStatus.Terminal() {
		return entry.order, ErrAlreadyFinal
	}
	entry.order.PaymentStatus = ps
	entry.order.Status = model.StatusFor(ps)
	return entry.order, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (model.Order, error) {
	if err := ctx.Err(); err != nil {
		return model.Order{}, err
	}
	entry, ok := s.entry(id)
	if !ok {
		return model.Order{}, ErrNotFound
	}
	return entry.snapshot(), nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	orders := s.collect(func(model.Order) bool { return true })
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return truncate(orders, limit), nil
}

func (s *MemoryStore) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	orders := s.collect(func(o model.Order) bool {
		return o.PaymentStatus == model.PaymentStatusPending && o.CreatedAt.Before(cutoff)
	})
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return truncate(orders, limit), nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) entry(id int64) (*memoryEntry, bool) {
	v, ok := s.orders.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*memoryEntry), true
}

func (s *MemoryStore) collect(keep func(model.Order) bool) []model.Order {
	var orders []model.Order
	s.orders.Range(func(_, v any) bool {
		o := v.(*memoryEntry).snapshot()
		if keep(o) {
			orders = append(orders, o)
		}
		return true
	})
	return orders
}

func (e *memoryEntry) snapshot() model.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order
}

func truncate(orders []model.Order, limit int) []model.Order {
	if limit > 0 && len(orders) > limit {
		return orders[:limit]
	}
	return orders
}
