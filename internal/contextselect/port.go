// Package contextselect implements the hybrid two-phase policy that decides
// whether a request depends on prior conversation turns, and narrows the
// context to the minimal relevant slice (spec component C3).
package contextselect

import (
	"context"

	"github.com/fleetctl/masterctl/internal/domain"
)

// Decision is the selector's verdict for one message.
type Decision struct {
	NeedsContext    bool
	RelevantIndices []int
	Reason          string
}

// ContextOracle is the semantic phase-2 port: given the current message and
// up to the last few turns, confirm whether context is needed and which
// turns are relevant. Absence (nil) degrades every call to the phase-1
// keyword verdict, preserving determinism (spec §4.3).
type ContextOracle interface {
	AnalyzeContext(ctx context.Context, message string, history []domain.Message) (Decision, error)
}
