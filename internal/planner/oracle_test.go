package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fleetctl/masterctl/internal/domain"
)

type fakeJSONOracle struct {
	obj map[string]any
	err error
}

func (f fakeJSONOracle) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	return f.obj, f.err
}

func TestOraclePlannerParsesValidSteps(t *testing.T) {
	p := NewOracle(fakeJSONOracle{obj: map[string]any{
		"steps":     []any{"coding", "documentation"},
		"reasoning": "user wants code and a report",
	}})
	plan, err := p.Plan(context.Background(), Request{Message: "write code and a report"})
	require.NoError(t, err)
	require.Equal(t, []domain.Capability{domain.CapabilityCoding, domain.CapabilityDocumentation}, plan.Steps)
	require.True(t, plan.IsMultiStep)
	require.Equal(t, "user wants code and a report", plan.Reasoning)
}

func TestOraclePlannerDegradesOnOracleError(t *testing.T) {
	p := NewOracle(fakeJSONOracle{err: errors.New("boom")})
	plan, err := p.Plan(context.Background(), Request{Message: "anything"})
	require.NoError(t, err)
	require.Equal(t, []domain.Capability{domain.CapabilityGeneral}, plan.Steps)
}

func TestOraclePlannerDegradesOnInvalidStepKind(t *testing.T) {
	p := NewOracle(fakeJSONOracle{obj: map[string]any{
		"steps": []any{"not-a-real-capability"},
	}})
	plan, err := p.Plan(context.Background(), Request{Message: "anything"})
	require.NoError(t, err)
	require.Equal(t, []domain.Capability{domain.CapabilityGeneral}, plan.Steps)
}

func TestOraclePlannerCapsAtMaxPlanSteps(t *testing.T) {
	p := NewOracle(fakeJSONOracle{obj: map[string]any{
		"steps": []any{"coding", "documentation", "analysis", "general"},
	}})
	plan, err := p.Plan(context.Background(), Request{Message: "do everything"})
	require.NoError(t, err)
	require.Len(t, plan.Steps, domain.MaxPlanSteps)
}

func TestOraclePlannerNilOracleUsesFallback(t *testing.T) {
	p := NewOracle(nil)
	plan, err := p.Plan(context.Background(), Request{Message: "anything"})
	require.NoError(t, err)
	require.Equal(t, []domain.Capability{domain.CapabilityGeneral}, plan.Steps)
}
