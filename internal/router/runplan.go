package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/planner"
)

// PlanResult aggregates every step's outcome for one /chat request.
type PlanResult struct {
	StepResults []StepResult
	FinalAnswer string
	WorkersUsed []string
}

// RunPlan drives every step of a planner.Plan in order, applying the
// §4.2 continuation rule between steps (planner.ShouldContinue) and
// recording (log-only) whether this request's message overlaps heavily
// with the prior task in the conversation, per spec.md §4.8
// "context-aware routing". contextStr is C3's already-selected context
// block; from the second step on, the outputs of the earlier steps are
// appended to it so each step sees what the steps before it produced.
func (s *Supervisor) RunPlan(ctx context.Context, conversationID, userID, message string, plan domain.Plan, contextStr, priorTaskDescription string) (PlanResult, error) {
	if s.leader != nil && !s.leader.ShouldProcessRequest() {
		return PlanResult{}, ErrNotLeader
	}

	tag := domain.ContextTagSingle
	switch {
	case plan.IsMultiStep:
		tag = domain.ContextTagMultiStep
	case contextStr != "":
		tag = domain.ContextTagContextual
	}

	if priorTaskDescription != "" {
		if related, shared := RelatedToPrior(message, priorTaskDescription); related {
			s.log.Info("related task detected", "shared_words", shared, "conversation_id", conversationID)
		}
	}

	var result PlanResult
	stepContext := contextStr
	var priorOutputs []string
	for i, capability := range plan.Steps {
		task := &domain.Task{
			ConversationID: conversationID,
			UserID:         userID,
			Description:    message,
			TaskType:       capability,
			Priority:       domain.PriorityNormal,
			Status:         domain.TaskPending,
			ContextTag:     tag,
		}
		if err := s.store.CreateTask(ctx, task); err != nil {
			return result, fmt.Errorf("router: create task: %w", err)
		}
		_ = s.store.RecordContext(ctx, &domain.ContextSlice{
			TaskID:         task.ID,
			ConversationID: conversationID,
			NeedsContext:   contextStr != "",
			Reason:         string(tag),
		})

		step := s.RouteStep(ctx, task, stepContext)
		result.StepResults = append(result.StepResults, step)

		if step.Outcome == OutcomeCompleted {
			result.FinalAnswer = step.Answer
			result.WorkersUsed = append(result.WorkersUsed, step.WorkerName)
		} else if step.Outcome == OutcomeUseBuiltin {
			result.FinalAnswer = step.Answer
		} else {
			// queued / queued_overload / queued_for_worker / failed: the
			// plan cannot proceed synchronously past this step.
			break
		}

		if !planner.ShouldContinue(i, len(plan.Steps), result.FinalAnswer) {
			break
		}
		priorOutputs = append(priorOutputs, step.Answer)
		stepContext = strings.TrimSpace(contextStr + "\n\nPrevious Step Output:\n" + strings.Join(priorOutputs, "\n\n"))
	}
	return result, nil
}
