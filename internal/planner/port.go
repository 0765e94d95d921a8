// Package planner decomposes a user message into 1-3 typed steps (spec
// component C2). It is specified as a capability port (spec §9 Design
// Notes): a typed Request/Plan pair, an oracle-backed implementation, and a
// deterministic fallback used in tests and whenever no oracle is configured.
package planner

import (
	"context"
	"errors"

	"github.com/fleetctl/masterctl/internal/domain"
)

// Request is the planner's input: the user message plus any attached-file
// summaries that might influence step decomposition.
type Request struct {
	Message string
	Files   []domain.FileSummary
}

// ErrPlanInvalid names the invalid-plan case. No function in this package
// returns it: when the oracle's steps don't validate, Plan degrades to the
// fallback plan instead.
var ErrPlanInvalid = errors.New("planner: invalid plan")

// Port is the planner capability: turn a request into a domain.Plan.
type Port interface {
	Plan(ctx context.Context, req Request) (domain.Plan, error)
}
