package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fleetctl/masterctl/internal/domain"
)

func TestFallbackPlanAlwaysReturnsSingleGeneralStep(t *testing.T) {
	f := NewFallback()
	plan, err := f.Plan(context.Background(), Request{Message: "anything at all"})
	require.NoError(t, err)
	require.Equal(t, []domain.Capability{domain.CapabilityGeneral}, plan.Steps)
	require.False(t, plan.IsMultiStep)
}
