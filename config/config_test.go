package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("loading embedded defaults: %v", err)
	}

	if cfg.Grid.Side != 128 {
		t.Errorf("default side = %d, want 128", cfg.Grid.Side)
	}
	if cfg.Engine.Backend != "frequency" {
		t.Errorf("default backend = %q, want frequency", cfg.Engine.Backend)
	}
	if cfg.Engine.DT != 0.1 {
		t.Errorf("default dt = %v, want 0.1", cfg.Engine.DT)
	}
	if cfg.Derived.DT32 != 0.1 {
		t.Errorf("derived DT32 = %v, want 0.1", cfg.Derived.DT32)
	}
	if cfg.Derived.Workers < 1 {
		t.Errorf("derived workers = %d, want >= 1", cfg.Derived.Workers)
	}

	// Species presets are synthesized when the list is empty.
	if len(cfg.Species) != 3 {
		t.Fatalf("expected 3 synthesized species, got %d", len(cfg.Species))
	}
	if _, ok := cfg.Derived.SpeciesIndex["labyrinth"]; !ok {
		t.Errorf("species index missing labyrinth: %v", cfg.Derived.SpeciesIndex)
	}
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	override := `
grid:
  side: 64
growth:
  mu: 0.22
`
	if err := os.WriteFile(path, []byte(override), 0644); err != nil {
		t.Fatalf("writing override: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("loading override: %v", err)
	}

	if cfg.Grid.Side != 64 {
		t.Errorf("side = %d, want overridden 64", cfg.Grid.Side)
	}
	if cfg.Growth.Mu != 0.22 {
		t.Errorf("mu = %v, want overridden 0.22", cfg.Growth.Mu)
	}

	// Fields absent from the override keep their defaults.
	if cfg.Grid.Pattern != "sprinkle" {
		t.Errorf("pattern = %q, want default sprinkle", cfg.Grid.Pattern)
	}
	if cfg.Growth.Sigma != 0.017 {
		t.Errorf("sigma = %v, want default 0.017", cfg.Growth.Sigma)
	}
}

func TestApplySpecies(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}

	if err := cfg.ApplySpecies("labyrinth"); err != nil {
		t.Fatalf("applying labyrinth: %v", err)
	}
	if cfg.Growth.Mu != 0.30 {
		t.Errorf("mu = %v, want 0.30 from labyrinth", cfg.Growth.Mu)
	}
	if !cfg.Feedback.Enabled || cfg.Feedback.Mode != "additive" {
		t.Errorf("labyrinth should enable additive feedback, got %+v", cfg.Feedback)
	}
	if cfg.Grid.Pattern != "sprinkle" {
		t.Errorf("pattern = %q, want sprinkle", cfg.Grid.Pattern)
	}

	if err := cfg.ApplySpecies("nonexistent"); !errors.Is(err, ErrUnknownSpecies) {
		t.Errorf("expected ErrUnknownSpecies, got %v", err)
	}
}

func TestSpeciesInheritBaseValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "species.yaml")
	raw := `
species:
  - name: bare
    growth:
      mu: 0.2
      sigma: 0.03
`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}

	if len(cfg.Species) != 1 {
		t.Fatalf("expected user species to replace synthesis, got %d", len(cfg.Species))
	}
	sp := cfg.Species[0]
	if sp.Kernel.Radius != cfg.Kernel.Radius {
		t.Errorf("species kernel radius %d should inherit base %d",
			sp.Kernel.Radius, cfg.Kernel.Radius)
	}
	if sp.Pattern != cfg.Grid.Pattern {
		t.Errorf("species pattern %q should inherit base %q", sp.Pattern, cfg.Grid.Pattern)
	}
	if sp.DT != cfg.Engine.DT {
		t.Errorf("species dt %v should inherit base %v", sp.DT, cfg.Engine.DT)
	}
	if sp.Growth.Mu != 0.2 {
		t.Errorf("species growth mu = %v, want 0.2", sp.Growth.Mu)
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	cfg.Grid.Side = 96
	cfg.Engine.Backend = "spatial"

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("writing yaml: %v", err)
	}

	back, err := Load(path)
	if err != nil {
		t.Fatalf("reloading: %v", err)
	}
	if back.Grid.Side != 96 {
		t.Errorf("side = %d after round trip, want 96", back.Grid.Side)
	}
	if back.Engine.Backend != "spatial" {
		t.Errorf("backend = %q after round trip, want spatial", back.Engine.Backend)
	}
}

func TestCfgPanicsBeforeInit(t *testing.T) {
	old := global
	global = nil
	defer func() {
		global = old
		if recover() == nil {
			t.Errorf("Cfg() before Init() should panic")
		}
	}()
	Cfg()
}
