package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/fleetctl/masterctl/internal/domain"
)

// JSONOracle is the narrow slice of oracle.Client the planner depends on,
// kept as a local interface per Go convention so the planner package never
// imports internal/oracle directly.
type JSONOracle interface {
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
}

var planSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"steps": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"reasoning": map[string]any{"type": "string"},
	},
	"required": []string{"steps"},
}

// OraclePlanner asks an LLM to decompose a message into steps, following the
// planning rules and worked examples ported from task_planner.py's
// _build_planning_prompt, and degrades to Fallback on any oracle or
// validation failure.
type OraclePlanner struct {
	oracle   JSONOracle
	fallback *Fallback
}

// NewOracle constructs an oracle-backed planner. oracle may be nil, in which
// case Plan always uses the fallback (mirrors "no AI planner available").
func NewOracle(oracle JSONOracle) *OraclePlanner {
	return &OraclePlanner{oracle: oracle, fallback: NewFallback()}
}

func (p *OraclePlanner) Plan(ctx context.Context, req Request) (domain.Plan, error) {
	if p.oracle == nil {
		return p.fallback.Plan(ctx, req)
	}

	obj, err := p.oracle.GenerateJSON(ctx, planningSystemPrompt, buildPlanningPrompt(req), "task_plan", planSchema)
	if err != nil {
		return p.fallback.Plan(ctx, req)
	}

	rawSteps, ok := obj["steps"].([]any)
	if !ok {
		return p.fallback.Plan(ctx, req)
	}

	steps := make([]domain.Capability, 0, len(rawSteps))
	for _, s := range rawSteps {
		str, ok := s.(string)
		if !ok {
			continue
		}
		cap := domain.Capability(strings.ToLower(strings.TrimSpace(str)))
		if cap.IsStepKind() {
			steps = append(steps, cap)
		}
		if len(steps) == domain.MaxPlanSteps {
			break
		}
	}
	if len(steps) == 0 {
		return p.fallback.Plan(ctx, req)
	}

	reasoning, _ := obj["reasoning"].(string)
	if reasoning == "" {
		reasoning = "oracle task planning"
	}

	return domain.Plan{
		Steps:       steps,
		IsMultiStep: len(steps) > 1,
		Reasoning:   reasoning,
	}, nil
}

const planningSystemPrompt = `You are a smart task planner. Understand what the user REALLY wants to accomplish and break it into logical steps.

STEP CATEGORIES:
- "coding" -> Creating/fixing/working with any kind of programs or code
- "documentation" -> Creating/writing any kind of explanatory content, reports, guides, or documents
- "analysis" -> Researching/analyzing/comparing/evaluating data or information
- "general" -> Other tasks

PLANNING RULES:
1. DEFAULT to SINGLE STEP - most requests need just one type of work
2. Use MULTIPLE STEPS only when the user explicitly wants multiple different types of work done sequentially
3. Maximum 3 steps

IMPORTANT DISTINCTIONS:
- "write code and a report" -> ["coding", "documentation"] (code + written report)
- "write code and analyze" -> ["coding", "analysis"] (code + evaluation)
- "analyze data and write report" -> ["analysis", "documentation"] (research + write)
- "write code to analyze" -> ["coding"] (SINGLE step - code that does analysis)
- "create analysis code" -> ["coding"] (SINGLE step - just code)
- "explain analysis results" -> ["documentation"] (SINGLE step - just explanation)

THINK:
- Does the user want ONE thing done? Single step.
- Does the user want multiple DIFFERENT things done in sequence? Multiple steps.
- Connecting words like "and then", "after that", "also", "plus" suggest multiple steps.

Understand their GOAL, not their exact words. Respond with a JSON object containing "steps" and "reasoning".`

func buildPlanningPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "USER REQUEST: %q", req.Message)
	if len(req.Files) > 0 {
		kinds := make([]string, 0, len(req.Files))
		for _, f := range req.Files {
			kinds = append(kinds, f.Kind)
		}
		fmt.Fprintf(&b, "\n\nFiles attached: %d files (%s)", len(req.Files), strings.Join(kinds, ", "))
	}
	return b.String()
}
