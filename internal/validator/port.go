// Package validator implements the answer validator (spec component): a
// quality/completeness check run on a worker's response before it is
// returned to the caller, grounded on answer_validator.py's AnswerValidator.
package validator

import "context"

// Result is the validation verdict for one response.
type Result struct {
	IsComplete   bool
	QualityScore float64 // 0-10
	ShouldRetry  bool
	Reasoning    string
	Confidence   float64 // 0.0-1.0
}

// Port is implemented by both the oracle-backed validator and its
// deterministic fallback.
type Port interface {
	Validate(ctx context.Context, originalTask, response, workerName string) Result
}
