package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDecision is returned for decision values outside the
// accepted set.
var ErrInvalidDecision = errors.New("invalid decision")

// Decision is the human review outcome for a pipeline run.
type Decision string

const (
	DecisionNone    Decision = ""
	DecisionApprove Decision = "approve"
	DecisionModify  Decision = "modify"
	DecisionReject  Decision = "reject"
	DecisionPending Decision = "pending"
)

// ParseDecision validates an externally supplied decision value.
// Only approve, modify and reject are accepted at the service boundary;
// pending is an internal marker, never a caller input.
func ParseDecision(raw string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(raw))); d {
	case DecisionApprove, DecisionModify, DecisionReject:
		return d, nil
	default:
		return DecisionNone, fmt.Errorf("%w %q: must be approve, modify, or reject", ErrInvalidDecision, raw)
	}
}

// Continues reports whether the decision routes the pipeline on to the
// evaluation stage. Everything else terminates the run.
func (d Decision) Continues() bool {
	return d == DecisionApprove || d == DecisionModify
}
