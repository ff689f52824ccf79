package thermal

import "github.com/banshee-data/thermal.view/internal/temperature"

// Default smoothing coefficients for AutoRangeController. The range expands
// quickly toward new extremes but contracts slowly, so a momentary outlier
// widens the display briefly instead of making it flicker.
const (
	autoRangeAttack = 0.35
	autoRangeDecay  = 0.03
)

// AutoRangeController smooths per-frame captured extremes into a stable
// display range. It must be fed exactly one captured range per frame and is
// not safe for concurrent use; the capture worker owns it exclusively.
type AutoRangeController struct {
	current temperature.Range
	primed  bool
	attack  float64
	decay   float64
}

// NewAutoRangeController returns a controller with the default coefficients.
func NewAutoRangeController() *AutoRangeController {
	return &AutoRangeController{attack: autoRangeAttack, decay: autoRangeDecay}
}

// Compute advances the controller with one captured range and returns the
// smoothed display range. The first call adopts the captured range verbatim.
// Deterministic given its call history.
func (c *AutoRangeController) Compute(captured temperature.Range) temperature.Range {
	if !c.primed {
		c.current = captured
		c.primed = true
		return c.current
	}

	c.current.Low = temperature.FromKelvin(c.step(c.current.Low.Kelvin(), captured.Low.Kelvin(), captured.Low < c.current.Low))
	c.current.High = temperature.FromKelvin(c.step(c.current.High.Kelvin(), captured.High.Kelvin(), captured.High > c.current.High))

	// Smoothing the edges independently cannot cross them as long as the
	// captured input is well formed, but normalise anyway.
	c.current = temperature.NewRange(c.current.Low, c.current.High)
	return c.current
}

// step moves the current edge toward the target, fast when the target lies
// outside the current range (expanding) and slow when inside (contracting).
func (c *AutoRangeController) step(current, target float64, expanding bool) float64 {
	coeff := c.decay
	if expanding {
		coeff = c.attack
	}
	return current + (target-current)*coeff
}
