package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blkd-app/wallet-api/internal/domain"
)

var (
	// ErrSubmissionRejected indicates the ledger refused the settlement.
	// Nothing was charged.
	ErrSubmissionRejected = errors.New("ledger: submission rejected")
	// ErrSubmissionTimeout indicates the submission did not resolve before the
	// caller's deadline.
	ErrSubmissionTimeout = errors.New("ledger: submission timed out")
	// ErrUnsupportedFlow is returned when the manager has no submitter for a flow.
	ErrUnsupportedFlow = errors.New("ledger: unsupported flow")
)

// Submission is the finalized settlement handed to the ledger. The plan inside
// it is satisfied by construction; submitters do not re-validate funding.
type Submission struct {
	SessionID      string
	UserID         string
	Flow           domain.FlowKind
	Currency       string
	Plan           domain.SettlementPlan
	TargetID       string
	Quantity       int64
	Note           string
	IdempotencyKey string
}

// Submitter executes a settlement submission against a ledger backend.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (domain.Receipt, error)
}

// SubmitterFunc adapts a plain function to the Submitter interface.
type SubmitterFunc func(ctx context.Context, sub Submission) (domain.Receipt, error)

// Submit implements Submitter.
func (f SubmitterFunc) Submit(ctx context.Context, sub Submission) (domain.Receipt, error) {
	return f(ctx, sub)
}

// Manager routes submissions to per-flow submitters with a fallback default.
type Manager struct {
	submitters map[domain.FlowKind]Submitter
	fallback   Submitter
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithFlowSubmitter registers a submitter for a specific flow, overriding the
// default for that flow only.
func WithFlowSubmitter(flow domain.FlowKind, sub Submitter) ManagerOption {
	return func(m *Manager) {
		if sub == nil {
			return
		}
		if m.submitters == nil {
			m.submitters = make(map[domain.FlowKind]Submitter)
		}
		m.submitters[flow] = sub
	}
}

// NewManager constructs a Manager with the given default submitter.
func NewManager(fallback Submitter, opts ...ManagerOption) (*Manager, error) {
	if fallback == nil {
		return nil, errors.New("ledger: default submitter is required")
	}
	m := &Manager{fallback: fallback}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Submit delegates to the submitter registered for the submission's flow.
func (m *Manager) Submit(ctx context.Context, sub Submission) (domain.Receipt, error) {
	if m == nil {
		return domain.Receipt{}, errors.New("ledger: manager is nil")
	}
	if !sub.Flow.Valid() {
		return domain.Receipt{}, fmt.Errorf("%w: %q", ErrUnsupportedFlow, sub.Flow)
	}
	if strings.TrimSpace(sub.SessionID) == "" {
		return domain.Receipt{}, fmt.Errorf("%w: missing session id", ErrSubmissionRejected)
	}
	if s, ok := m.submitters[sub.Flow]; ok {
		return s.Submit(ctx, sub)
	}
	return m.fallback.Submit(ctx, sub)
}
