package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/blkd-app/wallet-api/internal/domain"
)

// SimulatedLedger is an in-process ledger backend used in local and demo
// deployments. It settles after a fixed delay and never moves real money.
type SimulatedLedger struct {
	delay    time.Duration
	clock    func() time.Time
	failHook func(sub Submission) error
}

// SimulatedOption configures a SimulatedLedger.
type SimulatedOption func(*SimulatedLedger)

// WithDelay sets the simulated settlement latency.
func WithDelay(d time.Duration) SimulatedOption {
	return func(l *SimulatedLedger) {
		if d >= 0 {
			l.delay = d
		}
	}
}

// WithClock overrides the receipt timestamp source.
func WithClock(clock func() time.Time) SimulatedOption {
	return func(l *SimulatedLedger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithFailureHook injects a per-submission rejection decision. A non-nil
// return fails the submission with that error.
func WithFailureHook(hook func(sub Submission) error) SimulatedOption {
	return func(l *SimulatedLedger) {
		l.failHook = hook
	}
}

// NewSimulatedLedger builds a simulated backend with a 1.5s default delay,
// matching the latency of a typical acquirer round trip.
func NewSimulatedLedger(opts ...SimulatedOption) *SimulatedLedger {
	l := &SimulatedLedger{
		delay: 1500 * time.Millisecond,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit waits out the configured delay, honouring context cancellation, then
// issues a receipt. A deadline hit during the delay maps to ErrSubmissionTimeout
// so callers can distinguish it from a rejection.
func (l *SimulatedLedger) Submit(ctx context.Context, sub Submission) (domain.Receipt, error) {
	if l.delay > 0 {
		timer := time.NewTimer(l.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return domain.Receipt{}, fmt.Errorf("%w: %v", ErrSubmissionTimeout, ctx.Err())
			}
			return domain.Receipt{}, ctx.Err()
		case <-timer.C:
		}
	}

	if l.failHook != nil {
		if err := l.failHook(sub); err != nil {
			return domain.Receipt{}, fmt.Errorf("%w: %v", ErrSubmissionRejected, err)
		}
	}

	return domain.Receipt{
		TransactionID: fmt.Sprintf("txn_%s", ulid.Make().String()),
		Flow:          sub.Flow,
		Currency:      sub.Currency,
		Amount:        sub.Plan.TotalDue,
		CreditApplied: sub.Plan.CreditApplied,
		InstrumentID:  sub.Plan.InstrumentID,
		DisplayAmount: DisplayAmount(sub.Currency, sub.Plan.TotalDue),
		CreatedAt:     l.clock().UTC(),
	}, nil
}
