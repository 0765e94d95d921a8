package planner

import "testing"

func TestShouldContinueStopsOnErrorIndicator(t *testing.T) {
	if ShouldContinue(0, 3, "Sorry, something went wrong while processing that.") {
		t.Fatalf("expected ShouldContinue to stop on an error indicator")
	}
}

func TestShouldContinueOnlyScansFirst200Chars(t *testing.T) {
	padding := make([]byte, 250)
	for i := range padding {
		padding[i] = 'x'
	}
	result := string(padding) + " error"
	if !ShouldContinue(0, 3, result) {
		t.Fatalf("expected ShouldContinue to ignore an error indicator beyond the first 200 chars")
	}
}

func TestShouldContinueStopsOnLastStep(t *testing.T) {
	if ShouldContinue(2, 3, "all good") {
		t.Fatalf("expected ShouldContinue to stop once the last step is reached")
	}
}

func TestShouldContinueProceedsOnCleanIntermediateResult(t *testing.T) {
	if !ShouldContinue(0, 3, "all good, moving on") {
		t.Fatalf("expected ShouldContinue to proceed past a clean intermediate step")
	}
}
