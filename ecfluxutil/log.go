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
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/ecflux/tsio"
)

// newLogger returns a logger that writes to w and, if logFile is not
// empty, to logFile. The returned function closes the log file.
func newLogger(w io.Writer, level, logFile string) (*logrus.Logger, func() error, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("ecflux: invalid LogLevel: %v", err)
	}
	log := logrus.New()
	log.Level = lvl
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	log.Out = w
	if logFile == "" {
		return log, func() error { return nil }, nil
	}
	f, err := tsio.Create(context.Background(), logFile)
	if err != nil {
		return nil, nil, fmt.Errorf("ecflux: problem creating log file: %v", err)
	}
	log.Out = io.MultiWriter(w, f)
	return log, f.Close, nil
}
