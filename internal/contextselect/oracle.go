package contextselect

import (
	"context"
	"fmt"
	"strings"

	"github.com/fleetctl/masterctl/internal/domain"
)

// JSONOracle is the narrow slice of oracle.Client this package depends on.
type JSONOracle interface {
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
}

var contextSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"is_continuation": map[string]any{"type": "boolean"},
		"relevant_message_indices": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "integer"},
		},
		"reasoning": map[string]any{"type": "string"},
	},
}

// OracleAnalyzer implements ContextOracle against an LLM, following the
// continuation-detection prompt ported from context_manager.py's
// _build_context_analysis_prompt.
type OracleAnalyzer struct {
	oracle JSONOracle
}

func NewOracleAnalyzer(oracle JSONOracle) *OracleAnalyzer {
	return &OracleAnalyzer{oracle: oracle}
}

func (a *OracleAnalyzer) AnalyzeContext(ctx context.Context, message string, history []domain.Message) (Decision, error) {
	if a.oracle == nil || len(history) == 0 {
		return Decision{NeedsContext: false, Reason: "no oracle or no history"}, nil
	}

	obj, err := a.oracle.GenerateJSON(ctx, contextAnalysisSystemPrompt, buildContextPrompt(message, history), "context_analysis", contextSchema)
	if err != nil {
		return Decision{}, err
	}

	needsContext, _ := obj["is_continuation"].(bool)
	reason, _ := obj["reasoning"].(string)
	if reason == "" {
		reason = "oracle analysis"
	}

	var indices []int
	if raw, ok := obj["relevant_message_indices"].([]any); ok {
		for _, v := range raw {
			if f, ok := v.(float64); ok {
				indices = append(indices, int(f))
			}
		}
	}

	return Decision{
		NeedsContext:    needsContext,
		RelevantIndices: indices,
		Reason:          reason,
	}, nil
}

const contextAnalysisSystemPrompt = `Analyze if the current message needs context from previous conversation. Understand the USER'S INTENT, not just keywords.

Determine if the current message is CONTINUING the previous conversation or starting something NEW.

THINK: "Does understanding this message REQUIRE knowing what was discussed before?"

CONTINUATION can be expressed in many ways: reference words ("it", "this", "that", "them", "above"),
implied continuation ("now do X", "also Y", "make it better"), follow-up questions, requests to
modify or enhance previous work, or sequential actions ("next step", "after that").

NEW REQUEST indicators: a completely different topic, a fresh question unrelated to history, or an
explicit new start ("new task", "different question").

RELEVANT MESSAGES:
- Only include messages that directly help understand the current request.
- Maximum 5 messages.
- Skip unrelated chatter, greetings, thanks.

Respond with a JSON object: is_continuation (bool), relevant_message_indices (array of integers
indexing into the numbered history below), reasoning (string).`

func buildContextPrompt(message string, history []domain.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CURRENT MESSAGE: %q\n\nCONVERSATION HISTORY:", message)
	for i, m := range history {
		content := m.Content
		if len(content) > 200 {
			content = content[:200]
		}
		fmt.Fprintf(&b, "\n[%d] %s: %s", i, strings.ToUpper(string(m.Role)), content)
	}
	return b.String()
}
