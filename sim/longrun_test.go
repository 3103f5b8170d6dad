package sim

import (
	"testing"

	"github.com/pthm-cable/lenia/conv"
	"github.com/pthm-cable/lenia/growth"
	"github.com/pthm-cable/lenia/kernel"
)

// TestLongRunSurvival drives a labyrinth-forming rule for 250 steps under
// the homeostatic controller. Without feedback this rule collapses within
// a few dozen steps; with it the field must neither die nor saturate.
func TestLongRunSurvival(t *testing.T) {
	s, err := New(Options{
		Side:    96,
		Pattern: "sprinkle",
		Seed:    7,
		Backend: conv.FrequencyDomain,
	})
	if err != nil {
		t.Fatalf("new sim: %v", err)
	}

	p := Params{
		Kernel: kernel.Spec{
			Radius:  13,
			Rings:   []float64{0.5},
			Widths:  []float64{0.15},
			Weights: []float64{1},
		},
		Growth: growth.Params{Kind: growth.Gaussian, Mu: 0.30, Sigma: 0.057},
		Dt:     0.1,
		Feedback: &FeedbackSpec{
			Mode:   FeedbackAdditive,
			Target: 0.18,
			Gain:   18,
			Period: 4,
		},
	}

	if err := s.Run(p, 250, Euler, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if s.Tick() != 250 {
		t.Fatalf("tick = %d, want 250", s.Tick())
	}

	mean := s.Mean()
	if mean < 0.02 {
		t.Errorf("field died: mean %f", mean)
	}
	if mean > 0.8 {
		t.Errorf("field saturated: mean %f", mean)
	}
	if max := s.Max(); max < 0.05 {
		t.Errorf("no structure left: max %f", max)
	}
}
