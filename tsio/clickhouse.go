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

package tsio

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/ecflux"
)

// ClickHouseConfig holds the connection information for a ClickHouse
// results table.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Table    string
	User     string
	Password string
}

func (c ClickHouseConfig) fqn() string {
	return fmt.Sprintf("%s.%s", c.Database, c.Table)
}

// createTableSQL returns the statement that creates the results table
// if it does not already exist.
func (c ClickHouseConfig) createTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	series String,
	time DateTime64(3, 'UTC'),
	value Float64,
	units String
) ENGINE = MergeTree()
ORDER BY (series, time)`, c.fqn())
}

// ClickHouseSink inserts flux series into a ClickHouse table.
type ClickHouseSink struct {
	cfg  ClickHouseConfig
	conn driver.Conn
	log  logrus.FieldLogger
}

// NewClickHouseSink connects to the server described by cfg and creates
// the results table if necessary.
func NewClickHouseSink(ctx context.Context, cfg ClickHouseConfig, log logrus.FieldLogger) (*ClickHouseSink, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("tsio: missing ClickHouse address")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Table == "" {
		cfg.Table = "ecflux"
	}
	if cfg.User == "" {
		cfg.User = "default"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("tsio: connecting to ClickHouse: %v", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tsio: ClickHouse ping: %v", err)
	}
	if err := conn.Exec(ctx, cfg.createTableSQL()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tsio: creating ClickHouse table %s: %v", cfg.fqn(), err)
	}
	log.WithFields(logrus.Fields{
		"addr":  cfg.Addr,
		"table": cfg.fqn(),
	}).Info("connected to ClickHouse")
	return &ClickHouseSink{cfg: cfg, conn: conn, log: log}, nil
}

// Insert writes the values of the given series in a single batch.
// NaN values are skipped.
func (s *ClickHouseSink) Insert(ctx context.Context, series ...*ecflux.Series) error {
	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", s.cfg.fqn()))
	if err != nil {
		return fmt.Errorf("tsio: preparing ClickHouse batch: %v", err)
	}
	var n int
	for _, ser := range series {
		units := ser.Units.String()
		for i, v := range ser.Values {
			if !isFinite(v) {
				continue
			}
			if err := batch.Append(ser.Name, ser.Time[i].UTC(), v, units); err != nil {
				batch.Abort()
				return fmt.Errorf("tsio: appending to ClickHouse batch: %v", err)
			}
			n++
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("tsio: sending ClickHouse batch: %v", err)
	}
	s.log.WithFields(logrus.Fields{
		"table": s.cfg.fqn(),
		"rows":  n,
	}).Info("inserted flux values")
	return nil
}

// Close closes the connection.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}
