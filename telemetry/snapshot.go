package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pthm-cable/lenia/field"
	"github.com/pthm-cable/lenia/growth"
	"github.com/pthm-cable/lenia/kernel"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the field and its dynamics for replay or reseeding.
type Snapshot struct {
	Version int   `json:"version"`
	Seed    int64 `json:"seed"`
	Tick    int32 `json:"tick"`

	Side    int    `json:"side"`
	Backend string `json:"backend"`

	Kernel SnapshotKernel `json:"kernel"`
	Growth SnapshotGrowth `json:"growth"`
	Dt     float64        `json:"dt"`

	Field []float32 `json:"field"`
}

// SnapshotKernel is the JSON-serializable kernel spec.
type SnapshotKernel struct {
	Radius  int       `json:"radius"`
	Rings   []float64 `json:"rings"`
	Widths  []float64 `json:"widths"`
	Weights []float64 `json:"weights"`
}

// SnapshotGrowth is the JSON-serializable growth parameters. Custom growth
// closures do not survive a snapshot; the named kind is recorded instead.
type SnapshotGrowth struct {
	Kind  string  `json:"kind"`
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
}

// KernelToJSON converts a kernel spec to its snapshot form.
func KernelToJSON(s kernel.Spec) SnapshotKernel {
	c := s.Clone()
	return SnapshotKernel{
		Radius:  c.Radius,
		Rings:   c.Rings,
		Widths:  c.Widths,
		Weights: c.Weights,
	}
}

// Spec converts the snapshot form back to a kernel spec.
func (k SnapshotKernel) Spec() kernel.Spec {
	return kernel.Spec{
		Radius:  k.Radius,
		Rings:   k.Rings,
		Widths:  k.Widths,
		Weights: k.Weights,
	}
}

// GrowthToJSON converts growth parameters to their snapshot form.
func GrowthToJSON(p growth.Params) SnapshotGrowth {
	return SnapshotGrowth{
		Kind:  p.Kind.String(),
		Mu:    p.Mu,
		Sigma: p.Sigma,
	}
}

// Params converts the snapshot form back to growth parameters.
func (g SnapshotGrowth) Params() (growth.Params, error) {
	kind, err := growth.ParseKind(g.Kind)
	if err != nil {
		return growth.Params{}, err
	}
	return growth.Params{Kind: kind, Mu: g.Mu, Sigma: g.Sigma}, nil
}

// Grid reconstructs the snapshot field as a host grid.
func (s *Snapshot) Grid() (*field.Grid, error) {
	if s.Side < 1 || len(s.Field) != s.Side*s.Side {
		return nil, fmt.Errorf("snapshot field %d cells for side %d", len(s.Field), s.Side)
	}
	g := field.New(s.Side)
	copy(g.Data, s.Field)
	return g, nil
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("snapshot_%d.json", snapshot.Tick))

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}
