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

// Package ecflux computes turbulent exchange quantities (sensible heat, latent
// heat, momentum flux and turbulent kinetic energy) from high-frequency
// micrometeorological time series using the eddy-covariance method.
//
// The package operates on an in-memory Table of time-indexed channels. Raw
// signals are split into window means and fluctuations (Reynolds
// decomposition), and fluxes are estimated from the mean product of the
// fluctuations within each window. Windows are defined by a Windower, either a
// fixed wall-clock duration (CalendarWindow) or a fixed number of samples
// (CountWindow).
//
// All functions are pure: they never modify the input table or the supplied
// constants and hold no state between calls. Missing samples are represented
// as NaN and a window without enough valid data produces a NaN result rather
// than an error.
package ecflux

import "errors"

// Version gives the version number.
const Version = "0.1.0"

var (
	// ErrUnknownKind is returned when a flux kind is not one of H, L, LE or Tau.
	ErrUnknownKind = errors.New("unknown flux kind")

	// ErrMissingColumn is returned when a column required for an operation
	// is either not specified or not present in the table.
	ErrMissingColumn = errors.New("missing column")

	// ErrWindow is returned for invalid or unsupported window specifications.
	ErrWindow = errors.New("invalid window")

	// ErrConstant is returned when a physical constant is not a finite,
	// positive number.
	ErrConstant = errors.New("invalid physical constant")
)
