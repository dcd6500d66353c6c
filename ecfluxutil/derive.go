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

package ecfluxutil

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/spatialmodel/ecflux"
)

// deriveFunctions are the functions available in derived column
// expressions.
var deriveFunctions = map[string]govaluate.ExpressionFunction{
	"exp":  mathFunc("exp", math.Exp),
	"log":  mathFunc("log", math.Log),
	"sqrt": mathFunc("sqrt", math.Sqrt),
	"abs":  mathFunc("abs", math.Abs),
}

func mathFunc(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("ecflux: got %d arguments for function '%s', but needs 1", len(arg), name)
		}
		v, ok := arg[0].(float64)
		if !ok {
			return nil, fmt.Errorf("ecflux: invalid argument %v for function '%s'", arg[0], name)
		}
		return f(v), nil
	}
}

// derive returns a table with the columns of tbl plus the columns
// defined by exprs, which maps new column names to expressions of
// existing columns, e.g. {"T_K": "T_C + 273.15"}. Derived columns can
// depend on other derived columns. tbl is not modified; the returned
// table shares its columns.
func derive(tbl *ecflux.Table, exprs map[string]string) (*ecflux.Table, error) {
	if len(exprs) == 0 {
		return tbl, nil
	}
	o := ecflux.NewTable(tbl.Time())
	for _, name := range tbl.Columns() {
		c, _ := tbl.Column(name)
		if err := o.AddColumn(name, c); err != nil {
			return nil, err
		}
	}

	pending := make(map[string]*govaluate.EvaluableExpression, len(exprs))
	for name, e := range exprs {
		if o.HasColumn(name) {
			return nil, fmt.Errorf("ecflux: derived column '%s' already exists in the input", name)
		}
		expr, err := govaluate.NewEvaluableExpressionWithFunctions(e, deriveFunctions)
		if err != nil {
			return nil, fmt.Errorf("ecflux: derived column '%s': %v", name, err)
		}
		pending[name] = expr
	}

	for len(pending) > 0 {
		// Evaluate in name order so that results do not depend on map order.
		names := make([]string, 0, len(pending))
		for name := range pending {
			names = append(names, name)
		}
		sort.Strings(names)
		var progress bool
		for _, name := range names {
			expr := pending[name]
			if !hasVars(o, expr.Vars()) {
				continue
			}
			values, err := evaluate(o, expr)
			if err != nil {
				return nil, fmt.Errorf("ecflux: derived column '%s': %v", name, err)
			}
			if err := o.AddColumn(name, values); err != nil {
				return nil, err
			}
			delete(pending, name)
			progress = true
		}
		if !progress {
			var missing []string
			for _, name := range names {
				for _, v := range pending[name].Vars() {
					if !o.HasColumn(v) {
						missing = append(missing, fmt.Sprintf("%s (needed by %s)", v, name))
					}
				}
			}
			return nil, fmt.Errorf("ecflux: derived columns refer to unknown columns: %s: %w",
				strings.Join(missing, ", "), ecflux.ErrMissingColumn)
		}
	}
	return o, nil
}

func hasVars(tbl *ecflux.Table, vars []string) bool {
	for _, v := range vars {
		if !tbl.HasColumn(v) {
			return false
		}
	}
	return true
}

// evaluate calculates expr for every row of tbl.
func evaluate(tbl *ecflux.Table, expr *govaluate.EvaluableExpression) ([]float64, error) {
	vars := expr.Vars()
	cols := make([][]float64, len(vars))
	for i, v := range vars {
		cols[i], _ = tbl.Column(v)
	}
	params := make(map[string]interface{}, len(vars))
	o := make([]float64, tbl.Len())
	for i := range o {
		for j, v := range vars {
			params[v] = cols[j][i]
		}
		r, err := expr.Evaluate(params)
		if err != nil {
			return nil, err
		}
		switch rr := r.(type) {
		case float64:
			o[i] = rr
		case bool:
			if rr {
				o[i] = 1
			}
		default:
			return nil, fmt.Errorf("expression result %v is not a number", r)
		}
	}
	return o, nil
}
