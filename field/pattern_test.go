package field

import (
	"errors"
	"testing"
)

var patternNames = []string{"noise", "blob", "sprinkle", "fragments", "plasma"}

func TestPatternsInRange(t *testing.T) {
	for _, name := range patternNames {
		t.Run(name, func(t *testing.T) {
			g, err := NewFromPattern(64, name, 42, PatternOpts{})
			if err != nil {
				t.Fatalf("NewFromPattern(%q): %v", name, err)
			}
			if g.Side() != 64 {
				t.Fatalf("side = %d, want 64", g.Side())
			}
			if lo, hi := g.Min(), g.Max(); lo < 0 || hi > 1 {
				t.Errorf("values outside [0,1]: min=%f max=%f", lo, hi)
			}
			if g.Max() == 0 {
				t.Error("pattern produced an empty field")
			}
		})
	}
}

func TestPatternDeterministic(t *testing.T) {
	for _, name := range patternNames {
		a, err := NewFromPattern(48, name, 7, PatternOpts{})
		if err != nil {
			t.Fatalf("NewFromPattern(%q): %v", name, err)
		}
		b, _ := NewFromPattern(48, name, 7, PatternOpts{})
		for i := range a.Data {
			if a.Data[i] != b.Data[i] {
				t.Fatalf("%s: same seed produced different fields at cell %d", name, i)
			}
		}

		c, _ := NewFromPattern(48, name, 8, PatternOpts{})
		same := true
		for i := range a.Data {
			if a.Data[i] != c.Data[i] {
				same = false
				break
			}
		}
		if same {
			t.Errorf("%s: different seeds produced identical fields", name)
		}
	}
}

func TestUnknownPattern(t *testing.T) {
	_, err := NewFromPattern(32, "checkerboard", 1, PatternOpts{})
	if !errors.Is(err, ErrUnknownPattern) {
		t.Errorf("expected ErrUnknownPattern, got %v", err)
	}
}

func TestBlobCenterPeak(t *testing.T) {
	g, err := NewFromPattern(64, "blob", 3, PatternOpts{})
	if err != nil {
		t.Fatal(err)
	}

	center := g.At(32, 32)
	corner := g.At(0, 0)
	if center < 0.5 {
		t.Errorf("blob center too weak: %f", center)
	}
	if corner > 0.2 {
		t.Errorf("blob corner too strong: %f", corner)
	}
}

func TestSprinkleScalesWithArea(t *testing.T) {
	small, err := NewFromPattern(32, "sprinkle", 11, PatternOpts{})
	if err != nil {
		t.Fatal(err)
	}
	large, _ := NewFromPattern(128, "sprinkle", 11, PatternOpts{})

	// Active fraction should be comparable across sizes: blob count scales
	// with area, so coverage stays in the same band.
	fs := small.ActiveFraction(0.1)
	fl := large.ActiveFraction(0.1)
	if fs == 0 || fl == 0 {
		t.Fatalf("sprinkle left field empty: small=%f large=%f", fs, fl)
	}
	if ratio := fs / fl; ratio < 0.2 || ratio > 5 {
		t.Errorf("coverage not scaling with area: small=%f large=%f", fs, fl)
	}
}
