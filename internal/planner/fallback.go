package planner

import (
	"context"

	"github.com/fleetctl/masterctl/internal/domain"
)

// Fallback is the deterministic, zero-dependency implementation used in
// tests and whenever no planning oracle is configured or it returns invalid
// output (spec §4.2: "fall back to [\"general\"]").
type Fallback struct{}

// NewFallback constructs the deterministic planner.
func NewFallback() *Fallback { return &Fallback{} }

// Plan always returns a single general step. It never errors: a fallback
// that could itself fail would defeat the purpose of the degrade path.
func (f *Fallback) Plan(ctx context.Context, req Request) (domain.Plan, error) {
	return domain.Plan{
		Steps:       []domain.Capability{domain.CapabilityGeneral},
		IsMultiStep: false,
		Reasoning:   "planning oracle unavailable or returned invalid output; defaulting to general",
	}, nil
}
