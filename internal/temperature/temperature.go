// Package temperature provides shared value types for temperatures,
// temperature units and temperature ranges.
package temperature

import (
	"fmt"
	"math"
)

// Unit identifies a temperature scale. The zero value is Kelvin, which is
// also the canonical storage scale for Temp.
type Unit int

// Supported temperature scales.
const (
	Kelvin Unit = iota
	Celsius
	Fahrenheit
)

// ValidUnits contains the accepted textual unit names for configuration and
// query parameters.
var ValidUnits = []string{"kelvin", "celsius", "fahrenheit"}

// ParseUnit maps a textual unit name to a Unit.
func ParseUnit(name string) (Unit, error) {
	switch name {
	case "kelvin", "k":
		return Kelvin, nil
	case "celsius", "c":
		return Celsius, nil
	case "fahrenheit", "f":
		return Fahrenheit, nil
	default:
		return Kelvin, fmt.Errorf("unknown temperature unit %q (valid: kelvin, celsius, fahrenheit)", name)
	}
}

func (u Unit) String() string {
	switch u {
	case Celsius:
		return "celsius"
	case Fahrenheit:
		return "fahrenheit"
	default:
		return "kelvin"
	}
}

// Suffix returns the display suffix for the unit ("K", "°C", "°F").
func (u Unit) Suffix() string {
	switch u {
	case Celsius:
		return "°C"
	case Fahrenheit:
		return "°F"
	default:
		return "K"
	}
}

// FromKelvin converts a value in Kelvin to this unit.
func (u Unit) FromKelvin(kelvin float64) float64 {
	switch u {
	case Celsius:
		return kelvin - 273.15
	case Fahrenheit:
		return (kelvin-273.15)*1.8 + 32.0
	default:
		return kelvin
	}
}

// ToKelvin converts a value in this unit to Kelvin.
func (u Unit) ToKelvin(value float64) float64 {
	switch u {
	case Celsius:
		return value + 273.15
	case Fahrenheit:
		return (value-32.0)/1.8 + 273.15
	default:
		return value
	}
}

// Temp is a scalar temperature stored canonically in Kelvin.
type Temp float64

// FromKelvin constructs a Temp from a Kelvin value.
func FromKelvin(kelvin float64) Temp { return Temp(kelvin) }

// FromUnit constructs a Temp from a value in the given unit.
func FromUnit(u Unit, value float64) Temp { return Temp(u.ToKelvin(value)) }

// Kelvin returns the temperature in Kelvin.
func (t Temp) Kelvin() float64 { return float64(t) }

// In returns the temperature expressed in the given unit.
func (t Temp) In(u Unit) float64 { return u.FromKelvin(float64(t)) }

func (t Temp) String() string {
	return fmt.Sprintf("%.2fK", float64(t))
}

// Range is an ordered temperature interval with Low <= High.
type Range struct {
	Low  Temp
	High Temp
}

// NewRange returns a Range over the two temperatures, normalising the order
// so that Low <= High always holds.
func NewRange(a, b Temp) Range {
	if b < a {
		a, b = b, a
	}
	return Range{Low: a, High: b}
}

// Factor normalises t into [0,1] relative to the range. Values outside the
// range extrapolate beyond [0,1]; callers that need clamping (such as
// gradient lookup) clamp themselves. A degenerate range (High <= Low) has no
// natural factor, so 0 is returned for every input.
func (r Range) Factor(t Temp) float64 {
	width := float64(r.High - r.Low)
	if width <= 0 {
		return 0
	}
	return float64(t-r.Low) / width
}

// Contains reports whether t lies within the range (inclusive).
func (r Range) Contains(t Temp) bool {
	return t >= r.Low && t <= r.High
}

// Join returns the smallest range containing both r and other. Join is
// commutative, associative and idempotent.
func (r Range) Join(other Range) Range {
	return Range{
		Low:  Temp(math.Min(float64(r.Low), float64(other.Low))),
		High: Temp(math.Max(float64(r.High), float64(other.High))),
	}
}

// Width returns the span of the range in Kelvin.
func (r Range) Width() float64 { return float64(r.High - r.Low) }

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", r.Low, r.High)
}
