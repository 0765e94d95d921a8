package tracker

import "testing"

func TestRing20WrapsAfterCapacity(t *testing.T) {
	var r ring20
	for i := 0; i < 25; i++ {
		r.push(float64(i))
	}
	if r.len != 20 {
		t.Fatalf("expected len capped at 20, got %d", r.len)
	}
	vals := r.values()
	if vals[0] != 5 || vals[len(vals)-1] != 24 {
		t.Fatalf("expected oldest-first window [5..24], got %v", vals)
	}
}

func TestRing20LastN(t *testing.T) {
	var r ring20
	for i := 1; i <= 5; i++ {
		r.push(float64(i))
	}
	last := r.lastN(3)
	want := []float64{3, 4, 5}
	for i, v := range want {
		if last[i] != v {
			t.Fatalf("lastN mismatch: got %v want %v", last, want)
		}
	}
}

func TestRing20LastNBeyondLenReturnsAll(t *testing.T) {
	var r ring20
	r.push(1)
	r.push(2)
	if got := r.lastN(10); len(got) != 2 {
		t.Fatalf("expected 2 values, got %d", len(got))
	}
}

func TestMean(t *testing.T) {
	if got := mean(nil); got != 0 {
		t.Fatalf("mean of empty slice should be 0, got %v", got)
	}
	if got := mean([]float64{1, 2, 3}); got != 2 {
		t.Fatalf("expected mean 2, got %v", got)
	}
}
