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

// Package ecfluxutil implements the ecflux command-line interface.
package ecfluxutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/ecflux"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to ecflux.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum severity of log messages: one of
              debug, info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is an optional file to write log messages to, in
              addition to standard error. It can be a blob storage location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Input",
			usage: `
              Input is the path to the input time series: a local file,
              an http(s) URL, or a blob storage location (gs://, s3:// or
              file://). Supported formats are CSV and Parquet, optionally
              gzipped (".csv.gz").`,
			shorthand:  "i",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fluxCmd.Flags(), tkeCmd.Flags(), fluctuationsCmd.Flags()},
		},
		{
			name: "TimeColumn",
			usage: `
              TimeColumn is the name of the input column holding the timestamps.`,
			defaultVal: "time",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "TimeFormat",
			usage: `
              TimeFormat is the Go time layout of the timestamps
              (e.g. "2006-01-02 15:04:05.000"), or one of unix, unixms,
              unixus or unixns for numeric timestamps since the epoch.
              The default is RFC3339.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "TimeZone",
			usage: `
              TimeZone is the IANA time zone of timestamps that do not
              include zone information. The default is UTC.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Output",
			usage: `
              Output is the output file. The format is chosen by the
              extension: .csv, .parquet or .xlsx (fluctuations: .csv only).
              If empty, CSV is written to standard output.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fluxCmd.Flags(), tkeCmd.Flags(), fluctuationsCmd.Flags()},
		},
		{
			name: "Plot",
			usage: `
              Plot is an optional image file (.png, .svg or .pdf) to plot
              the calculated series to.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fluxCmd.Flags(), tkeCmd.Flags()},
		},
		{
			name: "Flux",
			usage: `
              Flux is the kind of flux to calculate: H (sensible heat),
              L or LE (latent heat), or Tau (momentum).`,
			shorthand:  "f",
			defaultVal: "H",
			flagsets:   []*pflag.FlagSet{fluxCmd.Flags()},
		},
		{
			name: "W",
			usage: `
              W is the name of the vertical wind speed column [m/s].`,
			defaultVal: "w",
			flagsets:   []*pflag.FlagSet{fluxCmd.Flags(), tkeCmd.Flags()},
		},
		{
			name: "Scalar",
			usage: `
              Scalar is the name of the scalar column: air temperature [K or °C]
              for H or specific humidity [kg/kg] for LE.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fluxCmd.Flags()},
		},
		{
			name: "U",
			usage: `
              U is the name of the streamwise wind speed column [m/s].`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fluxCmd.Flags(), tkeCmd.Flags()},
		},
		{
			name: "V",
			usage: `
              V is the name of the crosswind wind speed column [m/s].`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fluxCmd.Flags(), tkeCmd.Flags()},
		},
		{
			name: "Window",
			usage: `
              Window is the averaging period, either as a Go duration
              (e.g. 30m) or a pandas-style offset alias (e.g. 30T, 30min, 1H).
              Windows are aligned to midnight of the first sample's day.`,
			defaultVal: "30min",
			flagsets:   []*pflag.FlagSet{fluxCmd.Flags(), fluctuationsCmd.Flags()},
		},
		{
			name: "WindowSize",
			usage: `
              WindowSize is the number of consecutive samples in each TKE
              window (e.g. 18000 for 30 minutes at 10 Hz).`,
			shorthand:  "n",
			defaultVal: 18000,
			flagsets:   []*pflag.FlagSet{tkeCmd.Flags()},
		},
		{
			name: "Rho",
			usage: `
              Rho is the air density [kg/m³]. The default is 1.2.`,
			defaultVal: ecflux.DefaultConstants().Rho,
			flagsets:   []*pflag.FlagSet{fluxCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "Cp",
			usage: `
              Cp is the specific heat of air [J/kg/K]. The default is 1005.`,
			defaultVal: ecflux.DefaultConstants().Cp,
			flagsets:   []*pflag.FlagSet{fluxCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "Lv",
			usage: `
              Lv is the latent heat of vaporization [J/kg]. The default is 2.5e6.`,
			defaultVal: ecflux.DefaultConstants().Lv,
			flagsets:   []*pflag.FlagSet{fluxCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "Derive",
			usage: `
              Derive defines additional input columns as expressions of
              existing columns, for example {"T_K": "T_C + 273.15"}.
              Expressions can use the functions exp, log, sqrt and abs.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{fluxCmd.Flags(), tkeCmd.Flags(), fluctuationsCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "Columns",
			usage: `
              Columns are the columns to calculate fluctuations for. If
              empty, all numeric columns are used.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{fluctuationsCmd.Flags()},
		},
		{
			name: "Jobs",
			usage: `
              Jobs is the path to a TOML file containing a [[Job]] table
              for each calculation to perform. It can also be given as the
              argument to the batch command.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{batchCmd.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the maximum number of batch jobs to run at the
              same time. If zero, the number of processors is used.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{batchCmd.Flags()},
		},
		{
			name: "ClickHouse.Addr",
			usage: `
              ClickHouse.Addr is the host:port of a ClickHouse server to
              insert results into. If empty, no results are inserted.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fluxCmd.Flags(), tkeCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "ClickHouse.Database",
			usage: `
              ClickHouse.Database is the ClickHouse database name.`,
			defaultVal: "default",
			flagsets:   []*pflag.FlagSet{fluxCmd.Flags(), tkeCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "ClickHouse.Table",
			usage: `
              ClickHouse.Table is the table to insert results into. It is
              created if it does not exist.`,
			defaultVal: "ecflux",
			flagsets:   []*pflag.FlagSet{fluxCmd.Flags(), tkeCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "ClickHouse.User",
			usage: `
              ClickHouse.User is the ClickHouse user name.`,
			defaultVal: "default",
			flagsets:   []*pflag.FlagSet{fluxCmd.Flags(), tkeCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "ClickHouse.Password",
			usage: `
              ClickHouse.Password is the ClickHouse password.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fluxCmd.Flags(), tkeCmd.Flags(), batchCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("ECFLUX")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(v)
				set.StringP(option.name, option.shorthand, strings.TrimSpace(b.String()), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(fluxCmd)
	Root.AddCommand(tkeCmd)
	Root.AddCommand(fluctuationsCmd)
	Root.AddCommand(batchCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("ecflux: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "ecflux",
	Short: "Eddy-covariance turbulent flux calculations.",
	Long: `ecflux calculates turbulent fluxes of sensible heat, latent heat and
momentum, and turbulent kinetic energy, from high-frequency
micrometeorological time series using the eddy-covariance method.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'ECFLUX_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of ecflux.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("ecflux v%s\n", ecflux.Version)
	},
	DisableAutoGenTag: true,
}

// fluxCmd calculates a covariance flux.
var fluxCmd = &cobra.Command{
	Use:   "flux",
	Short: "Calculate a turbulent flux.",
	Long: `flux calculates the sensible heat (H), latent heat (LE) or momentum (Tau)
flux of the input time series for each averaging window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := jobFromConfig(Cfg)
		if err != nil {
			return err
		}
		j.Name = "flux"
		return runCommand(cmd, Cfg, j)
	},
	DisableAutoGenTag: true,
}

// tkeCmd calculates turbulent kinetic energy.
var tkeCmd = &cobra.Command{
	Use:   "tke",
	Short: "Calculate turbulent kinetic energy.",
	Long: `tke calculates the turbulent kinetic energy of the input time series for
consecutive blocks of WindowSize samples. A shorter final block is included.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := jobFromConfig(Cfg)
		if err != nil {
			return err
		}
		j.Name = "tke"
		j.Flux = TKE
		return runCommand(cmd, Cfg, j)
	},
	DisableAutoGenTag: true,
}

// fluctuationsCmd writes the turbulent fluctuations of the input.
var fluctuationsCmd = &cobra.Command{
	Use:   "fluctuations",
	Short: "Calculate turbulent fluctuations.",
	Long: `fluctuations calculates the deviation of each value from the mean of its
averaging window (Reynolds decomposition) and writes the result as CSV with a
"_prime" suffix appended to each column name.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, closeLog, err := newLogger(cmd.OutOrStderr(), Cfg.GetString("LogLevel"), Cfg.GetString("LogFile"))
		if err != nil {
			return err
		}
		defer closeLog()
		j, err := jobFromConfig(Cfg)
		if err != nil {
			return err
		}
		cols, err := stringSlice(Cfg, "Columns")
		if err != nil {
			return err
		}
		return RunFluctuations(context.Background(), log, cmd.OutOrStdout(), j, cols)
	},
	DisableAutoGenTag: true,
}

// batchCmd runs the jobs in a job file.
var batchCmd = &cobra.Command{
	Use:   "batch [jobs.toml]",
	Short: "Run a batch of flux calculations.",
	Long: `batch runs the flux calculations listed in a TOML job file, for example:

    [[Job]]
    Name = "site1_H"
    Input = "gs://bucket/site1.csv.gz"
    Flux = "H"
    Scalar = "T_K"
    Output = "site1_H.parquet"

Fields that are not set in a job default to the top-level configuration.
Jobs run concurrently and input files shared by several jobs are only read once.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := Cfg.GetString("Jobs")
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("ecflux: no job file specified")
		}
		log, closeLog, err := newLogger(cmd.OutOrStderr(), Cfg.GetString("LogLevel"), Cfg.GetString("LogFile"))
		if err != nil {
			return err
		}
		defer closeLog()
		ctx := context.Background()
		defaults, err := jobFromConfig(Cfg)
		if err != nil {
			return err
		}
		jobs, err := ReadJobs(ctx, path, *defaults)
		if err != nil {
			return err
		}
		r, err := newConfiguredRunner(ctx, Cfg, log, cmd.OutOrStdout(), workers(Cfg.GetInt("Workers")))
		if err != nil {
			return err
		}
		defer r.close()
		return r.runBatch(ctx, jobs, workers(Cfg.GetInt("Workers")))
	},
	DisableAutoGenTag: true,
}

// runCommand runs a single job from the command line.
func runCommand(cmd *cobra.Command, cfg *viper.Viper, j *Job) error {
	log, closeLog, err := newLogger(cmd.OutOrStderr(), cfg.GetString("LogLevel"), cfg.GetString("LogFile"))
	if err != nil {
		return err
	}
	defer closeLog()
	ctx := context.Background()
	r, err := newConfiguredRunner(ctx, cfg, log, cmd.OutOrStdout(), 1)
	if err != nil {
		return err
	}
	defer r.close()
	return r.run(ctx, j)
}
