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

// Command ecflux is a command-line interface for eddy-covariance
// turbulent flux calculations.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/ecflux/ecfluxutil"
)

func main() {
	if err := ecfluxutil.Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
