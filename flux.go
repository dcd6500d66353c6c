/*
Copyright © 2026 the ecflux authors.
This file is part of ecflux.

ecflux is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ecflux is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ecflux.  If not, see <http://www.gnu.org/licenses/>.
*/

package ecflux

import (
	"fmt"
	"math"
	"strings"

	"github.com/ctessum/unit"
)

// Kind is a type of turbulent flux.
type Kind int

// The supported flux kinds. The set is closed.
const (
	// SensibleHeat is the sensible heat flux H = rho * cp * <w'T'> [W m-2].
	SensibleHeat Kind = iota + 1

	// LatentHeat is the latent heat flux LE = rho * Lv * <w'q'> [W m-2].
	LatentHeat

	// Momentum is the momentum flux (wind stress)
	// Tau = rho * sqrt(<u'w'>² + <v'w'>²) [N m-2].
	Momentum
)

// ParseKind returns the flux kind named by s. Valid names are H, L, LE and
// Tau; case is ignored. L and LE both refer to the latent heat flux.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "H":
		return SensibleHeat, nil
	case "L", "LE":
		return LatentHeat, nil
	case "TAU":
		return Momentum, nil
	default:
		return 0, fmt.Errorf("ecflux: flux type '%s'; use 'H', 'L'/'LE', or 'Tau': %w", s, ErrUnknownKind)
	}
}

func (k Kind) String() string {
	switch k {
	case SensibleHeat:
		return "H"
	case LatentHeat:
		return "LE"
	case Momentum:
		return "Tau"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// seriesName returns the name given to result series of this kind.
func (k Kind) seriesName() string {
	switch k {
	case SensibleHeat:
		return "H_W_per_m2"
	case LatentHeat:
		return "LE_W_per_m2"
	case Momentum:
		return "tau_N_per_m2"
	default:
		return ""
	}
}

// Columns names the table columns used to calculate a flux.
type Columns struct {
	// W is the vertical wind velocity [m s-1].
	W string

	// Scalar is the scalar transported by the flux: temperature [K or °C]
	// for SensibleHeat, specific humidity [kg kg-1] for LatentHeat.
	// It is not used for Momentum.
	Scalar string

	// U and V are the horizontal wind components [m s-1], used only
	// for Momentum.
	U, V string
}

// Validate checks that all of the columns that kind k requires are
// specified. Missing columns are never substituted with defaults.
func (k Kind) Validate(c Columns) error {
	if c.W == "" {
		return fmt.Errorf("ecflux: vertical wind column must be specified for %v flux: %w", k, ErrMissingColumn)
	}
	switch k {
	case SensibleHeat:
		if c.Scalar == "" {
			return fmt.Errorf("ecflux: scalar (temperature) must be specified for sensible heat flux: %w", ErrMissingColumn)
		}
	case LatentHeat:
		if c.Scalar == "" {
			return fmt.Errorf("ecflux: scalar (specific humidity) must be specified for latent heat flux: %w", ErrMissingColumn)
		}
	case Momentum:
		if c.U == "" || c.V == "" {
			return fmt.Errorf("ecflux: horizontal wind components u and v must be specified for momentum flux: %w", ErrMissingColumn)
		}
	default:
		return fmt.Errorf("ecflux: %v: %w", k, ErrUnknownKind)
	}
	return nil
}

var (
	specificHeatUnits = unit.Dimensions{
		unit.LengthDim:      2,
		unit.TimeDim:        -2,
		unit.TemperatureDim: -1,
	}
	latentHeatUnits = unit.Dimensions{
		unit.LengthDim: 2,
		unit.TimeDim:   -2,
	}
)

// Units returns the physical dimensions of fluxes of kind k: the product of
// the kind's scale factor and the dimensions of the underlying covariance.
func (k Kind) Units() unit.Dimensions {
	c := DefaultConstants()
	var cov unit.Dimensions
	switch k {
	case SensibleHeat:
		cov = unit.Dimensions{unit.LengthDim: 1, unit.TimeDim: -1, unit.TemperatureDim: 1}
	case LatentHeat:
		cov = unit.MeterPerSecond
	case Momentum:
		cov = unit.Dimensions{unit.LengthDim: 2, unit.TimeDim: -2}
	default:
		return nil
	}
	return unit.Mul(c.scale(k), unit.New(1, cov)).Dimensions()
}

// Constants holds the physical constants used to convert kinematic
// covariances into fluxes.
type Constants struct {
	// Rho is the air density [kg m-3].
	Rho float64

	// Cp is the specific heat capacity of air [J kg-1 K-1].
	Cp float64

	// Lv is the latent heat of vaporization [J kg-1].
	Lv float64
}

// DefaultConstants returns the default physical constants.
func DefaultConstants() Constants {
	return Constants{
		Rho: 1.2,
		Cp:  1005.0,
		Lv:  2.5e6,
	}
}

// Check returns an error if any constant is not a finite positive number.
func (c Constants) Check() error {
	for _, v := range []struct {
		name string
		val  float64
	}{{"rho", c.Rho}, {"cp", c.Cp}, {"Lv", c.Lv}} {
		if !isFinite(v.val) || v.val <= 0 {
			return fmt.Errorf("ecflux: %s must be a positive number but is %g: %w", v.name, v.val, ErrConstant)
		}
	}
	return nil
}

// scale returns the factor, with dimensions, that converts the covariance
// of kind k into a flux.
func (c Constants) scale(k Kind) *unit.Unit {
	rho := unit.New(c.Rho, unit.KilogramPerMeter3)
	switch k {
	case SensibleHeat:
		return unit.Mul(rho, unit.New(c.Cp, specificHeatUnits))
	case LatentHeat:
		return unit.Mul(rho, unit.New(c.Lv, latentHeatUnits))
	default:
		return rho
	}
}

// An Option overrides one or more of the default physical constants.
type Option func(*Constants)

// WithRho sets the air density [kg m-3].
func WithRho(rho float64) Option { return func(c *Constants) { c.Rho = rho } }

// WithCp sets the specific heat capacity of air [J kg-1 K-1].
func WithCp(cp float64) Option { return func(c *Constants) { c.Cp = cp } }

// WithLv sets the latent heat of vaporization [J kg-1].
func WithLv(lv float64) Option { return func(c *Constants) { c.Lv = lv } }

// WithConstants replaces all of the constants.
func WithConstants(cc Constants) Option { return func(c *Constants) { *c = cc } }

// NewConstants returns the default constants with the given
// options applied.
func NewConstants(opts ...Option) (Constants, error) {
	c := DefaultConstants()
	for _, o := range opts {
		o(&c)
	}
	return c, c.Check()
}

// Flux calculates a turbulent flux of the given kind in each window
// determined by w. The columns required by kind must be set in cols.
// Default physical constants can be overridden with opts.
func Flux(tbl *Table, kind Kind, cols Columns, w Windower, opts ...Option) (*Series, error) {
	if err := kind.Validate(cols); err != nil {
		return nil, err
	}
	c, err := NewConstants(opts...)
	if err != nil {
		return nil, err
	}
	var names []string
	if kind == Momentum {
		names = []string{cols.U, cols.V, cols.W}
	} else {
		names = []string{cols.W, cols.Scalar}
	}
	data, err := tbl.columns(names...)
	if err != nil {
		return nil, err
	}
	g, err := w.Group(tbl.Time())
	if err != nil {
		return nil, err
	}

	scale := c.scale(kind).Value()
	var values []float64
	switch kind {
	case Momentum:
		values = momentum(g, data[0], data[1], data[2], scale)
	default:
		values = windowCovariance(g, data[0], data[1])
		for i := range values {
			values[i] *= scale
		}
	}
	return newSeries(kind.seriesName(), g, values, kind.Units()), nil
}

// momentum returns rho * sqrt(<u'w'>² + <v'w'>²) for each window. Rows
// where any of the wind components is missing are ignored.
func momentum(g *Grouping, u, v, w []float64, rho float64) []float64 {
	m := maskRows(u, v, w)
	wp := fluctuate(m[2], g)
	uw := Covariance(fluctuate(m[0], g), wp, g)
	vw := Covariance(fluctuate(m[1], g), wp, g)
	o := make([]float64, len(uw))
	for i := range o {
		o[i] = rho * math.Hypot(uw[i], vw[i])
	}
	return o
}

// ComputeFlux is a convenience wrapper around Flux that accepts the flux
// kind and the window period as strings, e.g.
//
//	ComputeFlux(tbl, "H", Columns{W: "W_m_s", Scalar: "T_C"}, "30T")
func ComputeFlux(tbl *Table, kind string, cols Columns, period string, opts ...Option) (*Series, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, err
	}
	w, err := ParseWindow(period)
	if err != nil {
		return nil, err
	}
	return Flux(tbl, k, cols, w, opts...)
}

// SensibleHeatFlux calculates H = rho * cp * <w'T'> in each window.
func SensibleHeatFlux(tbl *Table, wCol, tCol string, w Windower, opts ...Option) (*Series, error) {
	return Flux(tbl, SensibleHeat, Columns{W: wCol, Scalar: tCol}, w, opts...)
}

// LatentHeatFlux calculates LE = rho * Lv * <w'q'> in each window.
func LatentHeatFlux(tbl *Table, wCol, qCol string, w Windower, opts ...Option) (*Series, error) {
	return Flux(tbl, LatentHeat, Columns{W: wCol, Scalar: qCol}, w, opts...)
}

// MomentumFlux calculates tau = rho * sqrt(<u'w'>² + <v'w'>²) in each window.
func MomentumFlux(tbl *Table, uCol, vCol, wCol string, w Windower, opts ...Option) (*Series, error) {
	return Flux(tbl, Momentum, Columns{U: uCol, V: vCol, W: wCol}, w, opts...)
}
