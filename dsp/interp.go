package dsp

// Interpolation selects how fractional sample positions are reconstructed.
type Interpolation int

const (
	InterpLinear Interpolation = iota
	InterpCatmullRom
	InterpLagrange
)

// String returns the config name of the interpolation mode.
func (m Interpolation) String() string {
	switch m {
	case InterpCatmullRom:
		return "cubic"
	case InterpLagrange:
		return "lagrange"
	default:
		return "linear"
	}
}

// ParseInterpolation maps a config name to a mode. Unknown names return false.
func ParseInterpolation(name string) (Interpolation, bool) {
	switch name {
	case "", "linear":
		return InterpLinear, true
	case "cubic", "catmull-rom":
		return InterpCatmullRom, true
	case "lagrange":
		return InterpLagrange, true
	}
	return InterpLinear, false
}

// Linear interpolates between y0 and y1.
func Linear(y0, y1, frac float32) float32 {
	return y0 + frac*(y1-y0)
}

// CatmullRom interpolates between y1 and y2 using a Catmull-Rom spline through
// the four neighbouring points.
func CatmullRom(y0, y1, y2, y3, frac float32) float32 {
	c0 := y1
	c1 := 0.5 * (y2 - y0)
	c2 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	c3 := 0.5*(y3-y0) + 1.5*(y1-y2)
	return ((c3*frac+c2)*frac+c1)*frac + c0
}

// Lagrange3 is third-order Lagrange interpolation between y1 and y2.
func Lagrange3(y0, y1, y2, y3, frac float32) float32 {
	d := frac
	c0 := y1
	c1 := y2 - y0/3.0 - y1/2.0 - y3/6.0
	c2 := y0/2.0 - y1 + y2/2.0
	c3 := y1/2.0 - y2/2.0 + (y3-y0)/6.0
	return c0 + d*(c1+d*(c2+d*c3))
}

// Interpolate dispatches on mode. Linear ignores y0 and y3.
func Interpolate(mode Interpolation, y0, y1, y2, y3, frac float32) float32 {
	switch mode {
	case InterpCatmullRom:
		return CatmullRom(y0, y1, y2, y3, frac)
	case InterpLagrange:
		return Lagrange3(y0, y1, y2, y3, frac)
	default:
		return Linear(y1, y2, frac)
	}
}
