package logging

import "testing"

func TestProgressSamplerSteps(t *testing.T) {
	s := NewProgressSampler(25)
	var logged []int
	for done := 1; done <= 10; done++ {
		if s.Observe(done, 10) {
			logged = append(logged, done)
		}
	}
	want := []int{1, 3, 5, 8, 10}
	if len(logged) != len(want) {
		t.Fatalf("logged %v, want %v", logged, want)
	}
	for i := range want {
		if logged[i] != want[i] {
			t.Fatalf("logged %v, want %v", logged, want)
		}
	}
}

func TestProgressSamplerEdgeCases(t *testing.T) {
	var nilSampler *ProgressSampler
	if !nilSampler.Observe(1, 5) {
		t.Fatal("nil sampler should always log")
	}
	s := NewProgressSampler(0)
	if !s.Observe(0, 0) {
		t.Fatal("unknown total should log")
	}
	if !s.Observe(1, 1) {
		t.Fatal("single unit should log")
	}
}
