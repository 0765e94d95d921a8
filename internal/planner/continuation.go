package planner

import "strings"

// errorIndicators mirrors should_continue_to_next_step's result_lower scan.
var errorIndicators = []string{
	"error", "failed", "cannot", "unable to",
	"sorry", "apologize", "something went wrong",
}

// ShouldContinue decides whether router.Supervisor.RunPlan proceeds to the
// next step after currentStep (0-indexed), ported from
// should_continue_to_next_step: stop on an apparent error in the result's
// first 200 characters, otherwise continue until the last step.
func ShouldContinue(currentStep, totalSteps int, currentResult string) bool {
	head := strings.ToLower(currentResult)
	if len(head) > 200 {
		head = head[:200]
	}
	for _, indicator := range errorIndicators {
		if strings.Contains(head, indicator) {
			return false
		}
	}
	return currentStep < totalSteps-1
}
