package conv

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/lenia/device"
	"github.com/pthm-cable/lenia/field"
	"github.com/pthm-cable/lenia/kernel"
)

// Device convolves on a transform engine with engine-resident buffers.
// When the engine cannot plan, the backend degrades to the one-shot
// transforms: same results, slower, announced once.
type Device struct {
	side     int
	eng      device.Engine
	plan     device.Plan
	degraded bool
	norm     float64

	spec       kernel.Spec
	haveKernel bool
	kernelF    device.Spectrum
	fieldF     device.Spectrum
}

// NewDevice builds a device backend on an explicit engine. The impulse
// probe runs here, so a broken engine fails construction instead of
// producing wrongly scaled potentials.
func NewDevice(side int, eng device.Engine) (*Device, error) {
	d := &Device{side: side, eng: eng}

	plan, err := eng.NewPlan(side)
	if err != nil {
		slog.Warn("engine cannot plan, continuing with one-shot transforms",
			"engine", eng.Name(), "side", side, "error", err)
		d.degraded = true
	} else {
		d.plan = plan
	}

	norm, err := device.ProbeScale(eng, d.plan, side)
	if err != nil {
		return nil, fmt.Errorf("device backend on %q: %w", eng.Name(), err)
	}
	d.norm = norm
	return d, nil
}

func (d *Device) Kind() Kind { return DeviceResident }
func (d *Device) Side() int  { return d.side }

// Degraded reports whether the backend fell back to one-shot transforms.
func (d *Device) Degraded() bool { return d.degraded }

// NormScale returns the probed normalization factor.
func (d *Device) NormScale() float64 { return d.norm }

// Engine returns the engine this backend runs on.
func (d *Device) Engine() device.Engine { return d.eng }

func (d *Device) NewBuffer() (field.Buffer, error) {
	return d.eng.NewGrid(d.side)
}

func (d *Device) Compute(dst, src field.Buffer, spec kernel.Spec) error {
	if src.Side() != d.side || dst.Side() != d.side {
		return fmt.Errorf("device: side %d backend given %d/%d buffers",
			d.side, src.Side(), dst.Side())
	}

	if !d.haveKernel || !d.spec.Equal(spec) {
		if err := d.rebuildKernel(spec); err != nil {
			return err
		}
	}

	var err error
	if d.plan != nil {
		if d.fieldF == nil {
			d.fieldF = d.plan.Alloc()
		}
		err = d.plan.Forward(d.fieldF, src)
	} else {
		d.fieldF, err = d.eng.Forward(src)
	}
	if err != nil {
		return fmt.Errorf("device forward: %w", err)
	}

	if err := d.eng.Mul(d.fieldF, d.fieldF, d.kernelF); err != nil {
		return fmt.Errorf("device mul: %w", err)
	}

	if d.plan != nil {
		err = d.plan.Inverse(dst, d.fieldF)
	} else {
		err = d.eng.Inverse(dst, d.fieldF)
	}
	if err != nil {
		return fmt.Errorf("device inverse: %w", err)
	}

	if d.norm != 1 {
		dst.Scale(float32(d.norm))
	}
	return nil
}

func (d *Device) rebuildKernel(spec kernel.Spec) error {
	k, err := kernel.BuildPeriodic(spec, d.side)
	if err != nil {
		return err
	}

	stage := field.New(d.side)
	for i, v := range k {
		stage.Data[i] = float32(v)
	}
	buf, err := d.eng.NewGrid(d.side)
	if err != nil {
		return fmt.Errorf("device kernel upload: %w", err)
	}
	buf.LoadFrom(stage)

	if d.plan != nil {
		kf := d.plan.Alloc()
		if err := d.plan.Forward(kf, buf); err != nil {
			return fmt.Errorf("device kernel transform: %w", err)
		}
		d.kernelF = kf
	} else {
		kf, err := d.eng.Forward(buf)
		if err != nil {
			return fmt.Errorf("device kernel transform: %w", err)
		}
		d.kernelF = kf
	}

	d.spec = spec.Clone()
	d.haveKernel = true
	return nil
}

func (d *Device) Release() {
	d.kernelF = nil
	d.fieldF = nil
	d.haveKernel = false
}
