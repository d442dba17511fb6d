package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blkd-app/wallet-api/internal/domain"
	"github.com/blkd-app/wallet-api/internal/ledger"
	"github.com/blkd-app/wallet-api/internal/settlement"
	"github.com/blkd-app/wallet-api/internal/wallets"
)

// Step identifies a checkout session state. Non-terminal steps form a fixed
// ordered path per flow; Succeeded and Failed are terminal.
type Step string

const (
	// StepSelectTarget chooses the secondary entity (tier, business, recipient).
	StepSelectTarget Step = "select_target"
	// StepSpecifyAmount captures the amount or quantity being purchased.
	StepSpecifyAmount Step = "specify_amount"
	// StepChoosePayment selects the rewards toggle and fallback instrument.
	StepChoosePayment Step = "choose_payment_method"
	// StepReview shows the final plan; advancing from here submits.
	StepReview Step = "review"
	// StepProcessing represents the single outstanding settlement submission.
	StepProcessing Step = "processing"
	// StepSucceeded is the terminal success state carrying a receipt.
	StepSucceeded Step = "succeeded"
	// StepFailed is the terminal failure state carrying a reason code.
	StepFailed Step = "failed"
)

// Terminal reports whether the step is a terminal outcome.
func (s Step) Terminal() bool {
	return s == StepSucceeded || s == StepFailed
}

var (
	// ErrStepValidationFailed is returned by Advance when the current step's
	// gate does not hold. The session state is unchanged and recoverable.
	ErrStepValidationFailed = errors.New("checkout: step validation failed")
	// ErrInvalidTransition is returned for transitions the machine forbids,
	// such as retreating out of processing or mutating a terminal session.
	ErrInvalidTransition = errors.New("checkout: invalid transition")
	// ErrUnknownInstrument is returned when a payment selection names an
	// instrument the session does not know about.
	ErrUnknownInstrument = errors.New("checkout: unknown instrument")
	// ErrInvalidFlow is returned when a session is created for an unsupported flow.
	ErrInvalidFlow = errors.New("checkout: invalid flow")
)

// Context accumulates the user's selections across steps. It is recomputed
// material, not persisted state: the settlement plan inside it is re-derived
// from the other fields on every mutation.
type Context struct {
	Currency             string
	TargetID             string
	Quantity             int64
	Amount               int64
	Note                 string
	UseRewards           bool
	RewardsBalance       int64
	Instruments          []wallets.Instrument
	SelectedInstrumentID string
	Plan                 domain.SettlementPlan
}

// SubmitFunc performs the settlement submission when the session enters
// processing. It is the only asynchronous boundary of the machine.
type SubmitFunc func(ctx context.Context, data Context) (domain.Receipt, error)

// Session is the stateful checkout entity. It expects a single logical writer;
// the duplicate-submission guard protects against repeated user input, not
// concurrent goroutines.
type Session struct {
	id        string
	userID    string
	flow      domain.FlowKind
	initial   Step
	current   Step
	history   []Step
	data      Context
	outcome   *domain.Receipt
	failure   domain.FailureReason
	submitted bool
	idemKey   string
}

// New creates a session at the flow's initial step. Flows without a secondary
// target start directly at amount entry.
func New(id, userID string, flow domain.FlowKind, currency string) (*Session, error) {
	if !flow.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFlow, flow)
	}
	initial := StepSpecifyAmount
	if flow.RequiresTarget() {
		initial = StepSelectTarget
	}
	return &Session{
		id:      strings.TrimSpace(id),
		userID:  strings.TrimSpace(userID),
		flow:    flow,
		initial: initial,
		current: initial,
		data:    Context{Currency: strings.ToUpper(strings.TrimSpace(currency))},
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the owning user.
func (s *Session) UserID() string { return s.userID }

// Flow returns the flow kind the session drives.
func (s *Session) Flow() domain.FlowKind { return s.flow }

// Current returns the current step.
func (s *Session) Current() Step { return s.current }

// History returns the completed steps in order.
func (s *Session) History() []Step {
	out := make([]Step, len(s.history))
	copy(out, s.history)
	return out
}

// Context returns a copy of the accumulated selections.
func (s *Session) Context() Context {
	data := s.data
	data.Instruments = make([]wallets.Instrument, len(s.data.Instruments))
	copy(data.Instruments, s.data.Instruments)
	return data
}

// Outcome returns the settlement receipt after a successful submission.
func (s *Session) Outcome() (domain.Receipt, bool) {
	if s.outcome == nil {
		return domain.Receipt{}, false
	}
	return *s.outcome, true
}

// Failure returns the reason code when the session is in the failed state.
func (s *Session) Failure() domain.FailureReason { return s.failure }

// IdempotencyKey returns the key attached to this settlement attempt.
func (s *Session) IdempotencyKey() string { return s.idemKey }

// SetIdempotencyKey attaches the submission idempotency key for the current
// attempt. The service mints a fresh key on start and after reset.
func (s *Session) SetIdempotencyKey(key string) { s.idemKey = strings.TrimSpace(key) }

// SetTarget records the selected target entity.
func (s *Session) SetTarget(targetID string) error {
	if err := s.mutable(); err != nil {
		return err
	}
	s.data.TargetID = strings.TrimSpace(targetID)
	return nil
}

// SetAmount records the resolved amount due (and, for tier flows, the
// purchased quantity) in minor units.
func (s *Session) SetAmount(amount, quantity int64) error {
	if err := s.mutable(); err != nil {
		return err
	}
	s.data.Amount = amount
	s.data.Quantity = quantity
	return s.recomputePlan()
}

// SetNote attaches a free-text note to the purchase.
func (s *Session) SetNote(note string) error {
	if err := s.mutable(); err != nil {
		return err
	}
	s.data.Note = note
	return nil
}

// SetCurrency switches the session currency. The selected instrument is
// cleared because an instrument valid for one currency may be invalid for
// another.
func (s *Session) SetCurrency(currency string) error {
	if err := s.mutable(); err != nil {
		return err
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency != s.data.Currency {
		s.data.Currency = currency
		s.data.SelectedInstrumentID = ""
	}
	return s.recomputePlan()
}

// SetFunding refreshes the rewards balance and candidate instruments from the
// wallet source of truth.
func (s *Session) SetFunding(rewardsBalance int64, instruments []wallets.Instrument) error {
	if err := s.mutable(); err != nil {
		return err
	}
	s.data.RewardsBalance = rewardsBalance
	s.data.Instruments = make([]wallets.Instrument, len(instruments))
	copy(s.data.Instruments, instruments)
	if s.data.SelectedInstrumentID != "" {
		if _, ok := wallets.Find(s.data.Instruments, s.data.SelectedInstrumentID); !ok {
			s.data.SelectedInstrumentID = ""
		}
	}
	return s.recomputePlan()
}

// SetPaymentMethod records the rewards opt-in and the fallback instrument.
// An empty instrument id clears the selection.
func (s *Session) SetPaymentMethod(useRewards bool, instrumentID string) error {
	if err := s.mutable(); err != nil {
		return err
	}
	instrumentID = strings.TrimSpace(instrumentID)
	if instrumentID != "" {
		if _, ok := wallets.Find(s.data.Instruments, instrumentID); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownInstrument, instrumentID)
		}
	}
	s.data.UseRewards = useRewards
	s.data.SelectedInstrumentID = instrumentID
	return s.recomputePlan()
}

// Advance moves the session forward when the current step's gate holds.
// Advancing from review is the irreversible entry into processing: submit is
// invoked exactly once per session and resolves to succeeded or failed. A
// duplicate Advance while processing is a no-op so repeated user input cannot
// double-submit.
func (s *Session) Advance(ctx context.Context, submit SubmitFunc) error {
	switch s.current {
	case StepProcessing:
		return nil
	case StepSucceeded, StepFailed:
		return fmt.Errorf("%w: session is %s", ErrInvalidTransition, s.current)
	case StepSelectTarget:
		if s.data.TargetID == "" {
			return fmt.Errorf("%w: no target selected", ErrStepValidationFailed)
		}
	case StepSpecifyAmount:
		if s.data.Amount <= 0 {
			return fmt.Errorf("%w: amount must be positive", ErrStepValidationFailed)
		}
		if !s.settlementPathExists() {
			return fmt.Errorf("%w: no settlement path for %d %s", ErrStepValidationFailed, s.data.Amount, s.data.Currency)
		}
	case StepChoosePayment:
		if err := settlement.Finalize(s.data.Plan); err != nil {
			return fmt.Errorf("%w: %w", ErrStepValidationFailed, err)
		}
	case StepReview:
		return s.submitOnce(ctx, submit)
	default:
		return fmt.Errorf("%w: unknown step %q", ErrInvalidTransition, s.current)
	}

	s.history = append(s.history, s.current)
	s.current = s.next(s.current)
	return nil
}

// Retreat restores the previously completed step. It is forbidden once a
// settlement has been submitted and from terminal states; those require Reset.
func (s *Session) Retreat() error {
	if s.current == StepProcessing || s.current.Terminal() {
		return fmt.Errorf("%w: cannot retreat from %s", ErrInvalidTransition, s.current)
	}
	if len(s.history) == 0 {
		return fmt.Errorf("%w: already at first step", ErrInvalidTransition)
	}
	s.current = s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	return nil
}

// Reset abandons the session from any state, discarding selections, history,
// and outcome, and returns to the initial step. It is the only way to leave a
// terminal state.
func (s *Session) Reset() {
	currency := s.data.Currency
	s.current = s.initial
	s.history = nil
	s.data = Context{Currency: currency}
	s.outcome = nil
	s.failure = ""
	s.submitted = false
	s.idemKey = ""
}

func (s *Session) submitOnce(ctx context.Context, submit SubmitFunc) error {
	if s.submitted {
		return nil
	}
	if submit == nil {
		return fmt.Errorf("%w: no submitter configured", ErrInvalidTransition)
	}

	s.history = append(s.history, StepReview)
	s.current = StepProcessing
	s.submitted = true

	receipt, err := submit(ctx, s.Context())
	if err != nil {
		s.current = StepFailed
		if errors.Is(err, ledger.ErrSubmissionTimeout) || errors.Is(err, context.DeadlineExceeded) {
			s.failure = domain.FailureSubmissionTimeout
		} else {
			s.failure = domain.FailureSubmissionRejected
		}
		return err
	}

	s.outcome = &receipt
	s.current = StepSucceeded
	return nil
}

// settlementPathExists reports whether the amount can be covered at all:
// either rewards credit can absorb it fully, or some instrument is eligible
// for the minimal residual after rewards.
func (s *Session) settlementPathExists() bool {
	residual := s.data.Amount
	if s.data.RewardsBalance > 0 {
		residual -= s.data.RewardsBalance
	}
	if residual <= 0 {
		return true
	}
	return len(wallets.FilterEligible(s.data.Instruments, s.data.Currency, residual)) > 0
}

func (s *Session) recomputePlan() error {
	var selected *wallets.Instrument
	if s.data.SelectedInstrumentID != "" {
		if in, ok := wallets.Find(s.data.Instruments, s.data.SelectedInstrumentID); ok {
			selected = &in
		}
	}
	plan, err := settlement.Compute(s.data.Currency, s.data.Amount, s.data.RewardsBalance, s.data.UseRewards, selected)
	if err != nil {
		return err
	}
	s.data.Plan = plan
	return nil
}

func (s *Session) mutable() error {
	if s.current == StepProcessing || s.current.Terminal() {
		return fmt.Errorf("%w: session is %s", ErrInvalidTransition, s.current)
	}
	return nil
}

func (s *Session) next(step Step) Step {
	switch step {
	case StepSelectTarget:
		return StepSpecifyAmount
	case StepSpecifyAmount:
		return StepChoosePayment
	case StepChoosePayment:
		return StepReview
	case StepReview:
		return StepProcessing
	default:
		return step
	}
}
