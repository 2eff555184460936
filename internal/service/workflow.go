package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
	"github.com/spec-kit/ticket-upgrade-agent/internal/pricing"
	"github.com/spec-kit/ticket-upgrade-agent/pkg/util/errorutil"
)

// WorkflowState is a step of the upgrade workflow.
type WorkflowState string

const (
	StateStart             WorkflowState = "start"
	StateValidating        WorkflowState = "validating"
	StatePricing           WorkflowState = "pricing"
	StateRecommending      WorkflowState = "recommending"
	StateAwaitingSelection WorkflowState = "awaiting_selection"
	StateCreating          WorkflowState = "creating"
	StateConfirming        WorkflowState = "confirming"
	StateCompleted         WorkflowState = "completed"
	StateRejected          WorkflowState = "rejected"
	StateFailed            WorkflowState = "failed"
)

var workflowTransitions = map[WorkflowState][]WorkflowState{
	StateStart:             {StateValidating, StateConfirming, StateFailed},
	StateValidating:        {StatePricing, StateRejected, StateFailed},
	StatePricing:           {StateRecommending, StateRejected, StateFailed},
	StateRecommending:      {StateAwaitingSelection},
	StateAwaitingSelection: {StateCreating, StateRejected},
	StateCreating:          {StateCompleted, StateRejected, StateFailed},
	StateConfirming:        {StateCompleted, StateRejected, StateFailed},
}

// IsTerminal reports whether s ends a workflow run.
func (s WorkflowState) IsTerminal() bool {
	return s == StateCompleted || s == StateRejected || s == StateFailed
}

// WorkflowResult is the structured outcome of one workflow run.
type WorkflowResult struct {
	State          WorkflowState          `json:"state"`
	Trail          []WorkflowState        `json:"trail"`
	Ticket         *domain.Ticket         `json:"ticket,omitempty"`
	Customer       *domain.Customer       `json:"customer,omitempty"`
	Quotes         []pricing.TierQuote    `json:"quotes,omitempty"`
	Recommendation *Recommendation        `json:"recommendation,omitempty"`
	Order          *domain.UpgradeOrder   `json:"order,omitempty"`
	Replayed       bool                   `json:"replayed,omitempty"`
	Err            *errorutil.DomainError `json:"-"`
	Retryable      bool                   `json:"retryable,omitempty"`
}

// EligibleTiers lists the tiers quoted as eligible, in catalog order.
func (r WorkflowResult) EligibleTiers() []domain.Tier {
	return pricing.EligibleTiers(r.Quotes)
}

// workflow tracks one run and enforces the transition table.
type workflow struct {
	op     string
	logger *zap.Logger
	result WorkflowResult
}

func newWorkflow(op string, logger *zap.Logger) *workflow {
	return &workflow{
		op:     op,
		logger: logger,
		result: WorkflowResult{State: StateStart, Trail: []WorkflowState{StateStart}},
	}
}

// advance moves to next. An illegal move ends the run as Failed with an
// internal inconsistency and returns false.
func (w *workflow) advance(next WorkflowState) bool {
	current := w.result.State
	for _, allowed := range workflowTransitions[current] {
		if allowed == next {
			w.result.State = next
			w.result.Trail = append(w.result.Trail, next)
			w.logger.Debug("workflow transition",
				zap.String("op", w.op), zap.String("from", string(current)), zap.String("to", string(next)))
			return true
		}
	}
	err := errorutil.NewInternalInconsistency("workflow transition not allowed",
		fmt.Errorf("%s: %s -> %s", w.op, current, next))
	w.logger.Error("workflow invariant violated", zap.Error(err))
	w.result.State = StateFailed
	w.result.Trail = append(w.result.Trail, StateFailed)
	w.result.Err = err
	w.result.Retryable = false
	return false
}

func (w *workflow) reject(err *errorutil.DomainError) WorkflowResult {
	if w.advance(StateRejected) {
		w.result.Err = err
	}
	return w.result
}

func (w *workflow) fail(err *errorutil.DomainError) WorkflowResult {
	if w.advance(StateFailed) {
		w.result.Err = err
		w.result.Retryable = errorutil.IsRetryable(err)
		if err.Code == errorutil.CodeInternalInconsistency {
			w.logger.Error("workflow failed", zap.String("op", w.op), zap.Error(err))
		} else {
			w.logger.Warn("workflow failed", zap.String("op", w.op), zap.Error(err))
		}
	}
	return w.result
}

// stop ends the run on a tool error: user-correctable kinds reject, the rest fail.
func (w *workflow) stop(err *errorutil.DomainError) WorkflowResult {
	switch err.Code {
	case errorutil.CodeValidation, errorutil.CodeNotFound, errorutil.CodeIneligible, errorutil.CodeConflict:
		return w.reject(err)
	default:
		return w.fail(err)
	}
}
