// Package txflow sequences the approve and confirm transactions of one
// user action. Confirmation is never automatic and never precedes the
// approval, and only one transaction is in flight at a time.
package txflow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ligun0805/ifo-client/internal/logger"
	"github.com/ligun0805/ifo-client/internal/metrics"
)

type Status string

const (
	StatusIdle              Status = "idle"
	StatusCheckingAllowance Status = "checkingAllowance"
	StatusApproving         Status = "approving"
	StatusApproved          Status = "approved"
	StatusConfirming        Status = "confirming"
	StatusConfirmed         Status = "confirmed"
	StatusFailed            Status = "failed"
)

func (s Status) String() string { return string(s) }

// Phase tells which step a failure belongs to.
type Phase string

const (
	PhaseNone    Phase = ""
	PhaseApprove Phase = "approve"
	PhaseConfirm Phase = "confirm"
)

type Kind string

const (
	KindContribute Kind = "contribute"
	KindClaim      Kind = "claim"
)

// Config wires an orchestrator to its collaborators. Only Confirm is
// required.
type Config struct {
	Kind Kind
	// CheckAllowance reports whether the approval step can be skipped.
	// A nil CheckAllowance means the action needs no approval. An error
	// is treated as "approval required".
	CheckAllowance func(ctx context.Context) (bool, error)
	Approve        func(ctx context.Context) error
	Confirm        func(ctx context.Context, amount *big.Int) error
	// Validate runs right before confirming, under the orchestrator lock.
	Validate   func(amount *big.Int) error
	OnSuccess  func(amount *big.Int)
	SetPending func(pending bool)
	// Timeout bounds each transaction wait. Zero waits for the context.
	Timeout time.Duration
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

type Orchestrator struct {
	cfg Config
	log *zap.Logger

	mu       sync.Mutex
	status   Status
	phase    Phase
	err      error
	actionID string
	closed   bool
}

func New(cfg Config) *Orchestrator {
	if cfg.Kind == "" {
		cfg.Kind = KindContribute
	}
	return &Orchestrator{
		cfg:    cfg,
		log:    logger.Named(cfg.Logger, "txflow").With(zap.String("kind", string(cfg.Kind))),
		status: StatusIdle,
	}
}

func busy(s Status) bool {
	return s == StatusCheckingAllowance || s == StatusApproving || s == StatusConfirming
}

// Approve checks the allowance and submits an approval when needed. It is a
// no-op once approved.
func (o *Orchestrator) Approve(ctx context.Context) error {
	o.mu.Lock()
	switch {
	case o.closed:
		o.mu.Unlock()
		return ErrClosed
	case busy(o.status):
		o.mu.Unlock()
		return ErrBusy
	case o.status == StatusConfirmed:
		o.mu.Unlock()
		return ErrAlreadyConfirmed
	case o.status == StatusApproved, o.status == StatusFailed && o.phase == PhaseConfirm:
		o.mu.Unlock()
		return nil
	}
	o.status = StatusCheckingAllowance
	o.phase = PhaseNone
	o.err = nil
	o.actionID = uuid.NewString()
	ctx = logger.WithAction(ctx, o.actionID)
	o.mu.Unlock()

	log := logger.For(ctx, o.log)

	satisfied := o.cfg.CheckAllowance == nil
	if !satisfied {
		ok, err := o.cfg.CheckAllowance(ctx)
		if err != nil {
			log.Warn("allowance check failed, requesting approval", zap.Error(err))
		}
		satisfied = ok && err == nil
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if satisfied {
		o.status = StatusApproved
		o.mu.Unlock()
		log.Debug("approval not required")
		return nil
	}
	if o.cfg.Approve == nil {
		o.fail(PhaseApprove, &AllowanceError{Err: errors.New("approval required but no approver configured")})
		err := o.err
		o.mu.Unlock()
		return err
	}
	o.status = StatusApproving
	o.mu.Unlock()

	log.Info("submitting approval")
	err := o.submit(ctx, func(ctx context.Context) error { return o.cfg.Approve(ctx) })

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if err != nil {
		o.fail(PhaseApprove, &AllowanceError{Err: err})
		o.cfg.Metrics.Transaction(string(o.cfg.Kind), string(PhaseApprove), resultOf(err))
		log.Warn("approval failed", zap.Error(err))
		return o.err
	}
	o.status = StatusApproved
	o.cfg.Metrics.Transaction(string(o.cfg.Kind), string(PhaseApprove), metrics.ResultOK)
	log.Info("approval confirmed")
	return nil
}

// Confirm submits the deposit or claim for amount. It requires a completed
// approval and explicit invocation; amount is validated at this moment.
func (o *Orchestrator) Confirm(ctx context.Context, amount *big.Int) error {
	o.mu.Lock()
	if err := o.guardLocked(amount); err != nil {
		o.mu.Unlock()
		return err
	}
	o.status = StatusConfirming
	o.phase = PhaseNone
	o.err = nil
	if o.actionID == "" {
		o.actionID = uuid.NewString()
	}
	ctx = logger.WithAction(ctx, o.actionID)
	if amount != nil {
		amount = new(big.Int).Set(amount)
	}
	o.mu.Unlock()

	log := logger.For(ctx, o.log)
	log.Info("submitting confirmation", zap.Stringer("amount", amount))
	err := o.submit(ctx, func(ctx context.Context) error { return o.cfg.Confirm(ctx, amount) })

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		o.fail(PhaseConfirm, &ConfirmationError{Err: err})
		o.cfg.Metrics.Transaction(string(o.cfg.Kind), string(PhaseConfirm), resultOf(err))
		ferr := o.err
		o.mu.Unlock()
		log.Warn("confirmation failed", zap.Error(err))
		return ferr
	}
	o.status = StatusConfirmed
	o.cfg.Metrics.Transaction(string(o.cfg.Kind), string(PhaseConfirm), metrics.ResultOK)
	o.mu.Unlock()

	log.Info("confirmation succeeded")
	if o.cfg.OnSuccess != nil {
		o.cfg.OnSuccess(amount)
	}
	return nil
}

// CanConfirm runs the Confirm guards without changing state.
func (o *Orchestrator) CanConfirm(amount *big.Int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.guardLocked(amount)
}

func (o *Orchestrator) guardLocked(amount *big.Int) error {
	switch {
	case o.closed:
		return ErrClosed
	case busy(o.status):
		return ErrBusy
	case o.status == StatusConfirmed:
		return ErrAlreadyConfirmed
	case o.status == StatusApproved, o.status == StatusFailed && o.phase == PhaseConfirm:
	default:
		return ErrNotApproved
	}
	if o.cfg.Confirm == nil {
		return errors.New("txflow: no confirm action configured")
	}
	if o.cfg.Validate != nil {
		if err := o.cfg.Validate(amount); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return err
			}
			return &ValidationError{Reason: err.Error()}
		}
	}
	return nil
}

// Reset rearms a failed orchestrator: a failed approval goes back to idle,
// a failed confirmation back to approved.
func (o *Orchestrator) Reset() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || o.status != StatusFailed {
		return o.status
	}
	if o.phase == PhaseConfirm {
		o.status = StatusApproved
	} else {
		o.status = StatusIdle
		o.actionID = ""
	}
	o.phase = PhaseNone
	o.err = nil
	return o.status
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Failure is the phase and error of the last failure, if any.
func (o *Orchestrator) Failure() (Phase, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase, o.err
}

func (o *Orchestrator) ActionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.actionID
}

// Close detaches the orchestrator. Completions arriving later leave the
// state alone and skip OnSuccess.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

func (o *Orchestrator) fail(p Phase, err error) {
	o.status = StatusFailed
	o.phase = p
	o.err = err
}

// submit brackets fn with the pending flag and bounds it by the timeout.
// The pending flag is always cleared, even after Close, so the allowance
// watcher does not stay suspended.
func (o *Orchestrator) submit(ctx context.Context, fn func(context.Context) error) error {
	if o.cfg.SetPending != nil {
		o.cfg.SetPending(true)
		defer o.cfg.SetPending(false)
	}
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}

func resultOf(err error) string {
	if errors.Is(err, ErrTimeout) {
		return metrics.ResultTimeout
	}
	return metrics.ResultError
}
