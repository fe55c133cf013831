package gateway

import (
	"context"
	"fmt"
	"time"
)

// Static returns the same answer for every request, after Delay. It is used
// to force a particular outcome in tests and demos.
type Static struct {
	Result Result
	Err    error
	Delay  time.Duration
	// IgnoreCancel makes Authorize sleep the full Delay even after ctx is
	// done, like a gateway that does not honor cancellation.
	IgnoreCancel bool
}

func Approve() *Static {
	return &Static{Result: Result{Approved: true, TransactionID: "TXN-STATIC"}}
}

func Decline() *Static {
	return &Static{Result: Result{Approved: false, Reason: DeclineReason}}
}

// Hang never answers before d has passed.
func Hang(d time.Duration) *Static {
	return &Static{Result: Result{Approved: true, TransactionID: "TXN-LATE"}, Delay: d}
}

func Fail(err error) *Static {
	return &Static{Err: fmt.Errorf("%w: %v", ErrGateway, err)}
}

func (s *Static) Authorize(ctx context.Context, _ Request) (Result, error) {
	if s.Delay > 0 {
		if s.IgnoreCancel {
			time.Sleep(s.Delay)
		} else if err := sleepContext(ctx, s.Delay); err != nil {
			return Result{}, err
		}
	}
	if s.Err != nil {
		return Result{}, s.Err
	}
	return s.Result, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
