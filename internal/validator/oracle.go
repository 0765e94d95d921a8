package validator

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// JSONOracle is the narrow slice of oracle.Client this package depends on.
type JSONOracle interface {
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
}

var validationSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"is_complete":   map[string]any{"type": "boolean"},
		"quality_score": map[string]any{"type": "number"},
		"should_retry":  map[string]any{"type": "boolean"},
		"reasoning":     map[string]any{"type": "string"},
		"confidence":    map[string]any{"type": "number"},
	},
}

// record is one completed validation, kept for get_validation_stats-style
// reporting.
type record struct {
	worker   string
	quality  float64
	complete bool
	retry    bool
}

// OracleValidator validates with an LLM, falling back to the deterministic
// Fallback on any oracle failure, matching validate_answer's try/except.
type OracleValidator struct {
	oracle   JSONOracle
	fallback *Fallback

	mu      sync.Mutex
	history []record
}

func NewOracle(oracle JSONOracle) *OracleValidator {
	return &OracleValidator{oracle: oracle, fallback: NewFallback()}
}

func (v *OracleValidator) Validate(ctx context.Context, originalTask, response, workerName string) Result {
	if workerName == "" {
		workerName = "Unknown"
	}
	if v.oracle == nil {
		result := basicValidation(response)
		v.record(workerName, result)
		return result
	}

	obj, err := v.oracle.GenerateJSON(ctx, validationSystemPrompt, buildValidationPrompt(originalTask, response), "validation", validationSchema)
	if err != nil {
		result := basicValidation(response)
		v.record(workerName, result)
		return result
	}

	result := Result{
		IsComplete:   true,
		QualityScore: 7,
		ShouldRetry:  false,
		Reasoning:    "validation complete",
		Confidence:   0.8,
	}
	if b, ok := obj["is_complete"].(bool); ok {
		result.IsComplete = b
	}
	if f, ok := obj["quality_score"].(float64); ok {
		result.QualityScore = f
	}
	if b, ok := obj["should_retry"].(bool); ok {
		result.ShouldRetry = b
	}
	if s, ok := obj["reasoning"].(string); ok && s != "" {
		result.Reasoning = s
	}
	if f, ok := obj["confidence"].(float64); ok {
		result.Confidence = f
	}

	result.QualityScore = math.Max(0, math.Min(10, result.QualityScore))
	result.Confidence = math.Max(0, math.Min(1, result.Confidence))

	v.record(workerName, result)
	return result
}

func (v *OracleValidator) record(workerName string, result Result) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.history = append(v.history, record{
		worker:   workerName,
		quality:  result.QualityScore,
		complete: result.IsComplete,
		retry:    result.ShouldRetry,
	})
}

// Stats mirrors get_validation_stats's shape.
type Stats struct {
	Total            int
	AvgQualityScore  float64
	RetryRatePercent float64
	CompletionRate   float64
}

func (v *OracleValidator) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.history) == 0 {
		return Stats{}
	}
	var qualitySum float64
	var retryCount, completeCount int
	for _, r := range v.history {
		qualitySum += r.quality
		if r.retry {
			retryCount++
		}
		if r.complete {
			completeCount++
		}
	}
	total := len(v.history)
	return Stats{
		Total:            total,
		AvgQualityScore:  qualitySum / float64(total),
		RetryRatePercent: float64(retryCount) / float64(total) * 100,
		CompletionRate:   float64(completeCount) / float64(total) * 100,
	}
}

const validationSystemPrompt = `You are an answer quality validator. Check if the response properly answers the task.

EVALUATE THE RESPONSE:

1. Is it COMPLETE? (Does it fully answer the task?)
   - Yes if: task is answered, nothing missing
   - No if: partial answer, missing key parts

2. Quality Score (0-10):
   - 9-10: excellent, comprehensive, correct
   - 7-8: good, mostly correct
   - 5-6: acceptable but has issues
   - 3-4: poor quality, major problems
   - 0-2: failed, wrong, or useless

3. Should RETRY?
   - Yes if: quality < 6 OR incomplete OR errors detected
   - No if: quality >= 6 AND complete

4. Confidence (0.0-1.0): how sure are you of this evaluation?

SPECIAL CASES:
- If response says "error", "failed", "cannot" -> quality=2, retry=true
- If response is just a greeting for a greeting -> quality=10, complete=true
- If response is code that looks broken -> quality=3, retry=true
- If response is too short (<50 chars) for a complex task -> quality=4, retry=true

Respond with a JSON object: is_complete (bool), quality_score (0-10), should_retry (bool),
reasoning (string), confidence (0.0-1.0).`

func buildValidationPrompt(task, response string) string {
	preview := response
	truncated := ""
	if len(preview) > 1000 {
		preview = preview[:1000]
		truncated = "..."
	}
	return fmt.Sprintf("ORIGINAL TASK:\n%q\n\nRESPONSE RECEIVED:\n%q", task, preview+truncated)
}
