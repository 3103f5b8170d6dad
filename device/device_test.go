package device

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/lenia/field"
	"github.com/pthm-cable/lenia/growth"
)

func TestRegistryOpen(t *testing.T) {
	eng, err := Open("pooled")
	if err != nil {
		t.Fatalf("pooled engine should open: %v", err)
	}
	if eng.Name() != "pooled" {
		t.Errorf("expected name pooled, got %q", eng.Name())
	}

	if _, err := Open("quantum"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for unknown engine, got %v", err)
	}
}

func TestRegistryDefault(t *testing.T) {
	eng, err := Default()
	if err != nil {
		t.Fatalf("default engine should resolve: %v", err)
	}
	if eng.Name() != "pooled" {
		t.Errorf("default should prefer pooled, got %q", eng.Name())
	}

	found := false
	for _, name := range Engines() {
		if name == "pooled" {
			found = true
		}
	}
	if !found {
		t.Errorf("pooled missing from registry list %v", Engines())
	}
}

func TestPooledRoundTrip(t *testing.T) {
	eng, err := Open("pooled")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	side := 32

	rng := rand.New(rand.NewSource(7))
	host := field.New(side)
	for i := range host.Data {
		host.Data[i] = rng.Float32()
	}

	src, err := eng.NewGrid(side)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	src.LoadFrom(host)

	plan, err := eng.NewPlan(side)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	f := plan.Alloc()
	if f.Len() != side*side {
		t.Fatalf("spectrum len %d, expected %d", f.Len(), side*side)
	}
	if err := plan.Forward(f, src); err != nil {
		t.Fatalf("forward: %v", err)
	}

	dst, err := eng.NewGrid(side)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if err := plan.Inverse(dst, f); err != nil {
		t.Fatalf("inverse: %v", err)
	}

	back := field.New(side)
	dst.HostInto(back)

	var mae float64
	for i := range host.Data {
		mae += math.Abs(float64(back.Data[i] - host.Data[i]))
	}
	mae /= float64(len(host.Data))
	if mae > 1e-6 {
		t.Errorf("round trip MAE %e too large", mae)
	}
}

func TestPooledProbeScaleIsOne(t *testing.T) {
	eng, err := Open("pooled")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	plan, err := eng.NewPlan(64)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	scale, err := ProbeScale(eng, plan, 64)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if scale != 1 {
		t.Errorf("self-normalizing transforms probe to 1, got %g", scale)
	}

	// One-shot path agrees with the planned path.
	scale, err = ProbeScale(eng, nil, 64)
	if err != nil {
		t.Fatalf("planless probe: %v", err)
	}
	if scale != 1 {
		t.Errorf("planless probe should also give 1, got %g", scale)
	}
}

func TestResolveScale(t *testing.T) {
	cases := []struct {
		name     string
		observed float64
		side     int
		want     float64
		wantErr  bool
	}{
		{"normalized", 1.0, 64, 1.0, false},
		{"near-normalized", 1.0004, 64, 1.0, false},
		{"unnormalized", 4096, 64, 1.0 / 4096, false},
		{"near-unnormalized", 4097, 64, 1.0 / 4096, false},
		{"exotic", 0.5, 64, 2.0, false},
		{"zero", 0, 64, 0, true},
		{"negative", -3, 64, 0, true},
		{"nan", math.NaN(), 64, 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveScale(tc.observed, tc.side)
			if tc.wantErr {
				if !errors.Is(err, ErrProbe) {
					t.Errorf("expected ErrProbe, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-12 {
				t.Errorf("scale %g, expected %g", got, tc.want)
			}
		})
	}
}

func TestPooledMul(t *testing.T) {
	eng, err := Open("pooled")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	side := 8

	// Multiplying by a forward-transformed impulse at the origin is the
	// identity in the frequency domain.
	imp := field.New(side)
	imp.Set(0, 0, 1)
	impBuf, _ := eng.NewGrid(side)
	impBuf.LoadFrom(imp)
	impF, err := eng.Forward(impBuf)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}

	host := field.New(side)
	for i := range host.Data {
		host.Data[i] = float32(i%5) * 0.2
	}
	buf, _ := eng.NewGrid(side)
	buf.LoadFrom(host)
	f, err := eng.Forward(buf)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}

	if err := eng.Mul(f, f, impF); err != nil {
		t.Fatalf("mul: %v", err)
	}
	out, _ := eng.NewGrid(side)
	if err := eng.Inverse(out, f); err != nil {
		t.Fatalf("inverse: %v", err)
	}

	back := field.New(side)
	out.HostInto(back)
	for i := range host.Data {
		if math.Abs(float64(back.Data[i]-host.Data[i])) > 1e-6 {
			t.Fatalf("identity convolution changed cell %d: %f vs %f",
				i, back.Data[i], host.Data[i])
		}
	}
}

func TestPooledGridOps(t *testing.T) {
	eng, err := Open("pooled")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	side := 6

	a, _ := eng.NewGrid(side)
	b, _ := eng.NewGrid(side)

	host := field.New(side)
	host.Fill(0.5)
	a.LoadFrom(host)
	host.Fill(0.25)
	b.LoadFrom(host)

	a.Axpy(2.0, b) // 0.5 + 2*0.25 = 1.0
	if math.Abs(a.Mean()-1.0) > 1e-9 {
		t.Errorf("mean after axpy %f, expected 1.0", a.Mean())
	}

	a.Scale(3.0)
	a.AddScalar(-1.5) // 1.5
	if math.Abs(a.Max()-1.5) > 1e-9 {
		t.Errorf("max %f, expected 1.5", a.Max())
	}

	a.Clamp01()
	if a.Max() != 1.0 {
		t.Errorf("max after clamp %f, expected 1.0", a.Max())
	}

	a.ApplyGrowth(growth.Params{Kind: growth.Gaussian, Mu: 1.0, Sigma: 0.1})
	if math.Abs(a.Mean()-1.0) > 1e-9 {
		t.Errorf("growth at mu should map to 1.0, got %f", a.Mean())
	}
}

func TestPooledHostRoundTrip(t *testing.T) {
	eng, err := Open("pooled")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	side := 5

	host := field.New(side)
	for i := range host.Data {
		host.Data[i] = float32(i) * 0.01
	}

	buf, _ := eng.NewGrid(side)
	buf.LoadFrom(host)
	back := field.New(side)
	buf.HostInto(back)

	for i := range host.Data {
		if back.Data[i] != host.Data[i] {
			t.Fatalf("cell %d changed: %f vs %f", i, back.Data[i], host.Data[i])
		}
	}
}

func TestPooledRejectsForeignBuffers(t *testing.T) {
	eng, err := Open("pooled")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := eng.Forward(field.New(8)); err == nil {
		t.Errorf("forward should reject a host grid")
	}

	defer func() {
		if recover() == nil {
			t.Errorf("expected panic mixing residencies")
		}
	}()
	buf, _ := eng.NewGrid(8)
	buf.Axpy(1.0, field.New(8))
}
