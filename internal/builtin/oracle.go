// Package builtin implements the controller's own fallback "brain"
// (router.BuiltinResponder): a last-resort direct answer when step 1 of
// routing finds no worker registered at all for the requested capability,
// backed by the shared oracle. Without an oracle, or when the oracle call
// fails, it reports no answer and routing falls through to the queue.
package builtin

import (
	"context"
	"fmt"
	"sync"

	"github.com/fleetctl/masterctl/internal/domain"
)

// JSONOracle is the narrow slice of oracle.Client this package depends on.
type JSONOracle interface {
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
}

var respondSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"answer": map[string]any{"type": "string"},
	},
}

const systemPrompt = `You are the master controller answering directly because no
specialized worker is currently available for this request. Give the best
direct answer you can; keep it concise and do not mention workers, routing,
or infrastructure.`

// Responder answers directly via the oracle. When the oracle is
// unconfigured, errors, or returns an empty answer, Respond returns
// ("", false) and the caller queues the task instead.
type Responder struct {
	oracle JSONOracle

	mu    sync.Mutex
	calls int
}

func NewOracle(oracle JSONOracle) *Responder {
	return &Responder{oracle: oracle}
}

func (r *Responder) Respond(ctx context.Context, task domain.Task, contextStr string) (string, bool) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	if r.oracle == nil {
		return "", false
	}

	user := task.Description
	if contextStr != "" {
		user = fmt.Sprintf("Previous Conversation:\n%s\n\nCurrent Request:\n%s", contextStr, task.Description)
	}
	obj, err := r.oracle.GenerateJSON(ctx, systemPrompt, user, "builtin_answer", respondSchema)
	if err != nil {
		return "", false
	}
	answer, ok := obj["answer"].(string)
	if !ok || answer == "" {
		return "", false
	}
	return answer, true
}

// Calls reports how many times this responder has been consulted.
func (r *Responder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
