// Command syncrollups drives a persistent synchronous cross-domain rollup
// engine against a simulated settlement layer.
//
// Usage:
//
//	syncrollups [global flags] <command> [flags] [args]
//
// Global flags:
//
//	--config       YAML configuration file
//	--datadir      Data directory path (default: syncrollups-data)
//	--verbosity    Log level 0-5 (default: 3)
//	--log.format   Log format: text, json (default: text)
//	--metrics      Print the engine metrics after the command
//
// Every invocation is one settlement-layer transaction against the data
// directory; the clock only moves with "tick advance".
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/urfave/cli/v2"

	"github.com/eth2030/syncrollups/config"
	"github.com/eth2030/syncrollups/log"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "YAML configuration file",
		EnvVars: []string{config.EnvPrefix + "CONFIG"},
	}
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "data directory path",
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "log level 0-5 (0=silent, 5=trace)",
	}
	logFormatFlag = &cli.StringFlag{
		Name:  "log.format",
		Usage: "log format (text, json)",
	}
	metricsFlag = &cli.BoolFlag{
		Name:  "metrics",
		Usage: "print the engine metrics in Prometheus text format after the command",
	}
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(append([]string{app.Name}, args...)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// cliContext carries the resolved configuration from the Before hook to the
// commands.
type cliContext struct {
	cfg      config.Config
	registry *prometheus.Registry
}

func newApp(stdout, stderr io.Writer) *cli.App {
	cc := &cliContext{}
	return &cli.App{
		Name:      "syncrollups",
		Usage:     "synchronous cross-domain rollup execution engine",
		Version:   fmt.Sprintf("%s (commit %s)", version, commit),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     []cli.Flag{configFlag, dataDirFlag, verbosityFlag, logFormatFlag, metricsFlag},
		Before: func(c *cli.Context) error {
			return cc.setup(c, stderr)
		},
		After: func(c *cli.Context) error {
			if !c.Bool(metricsFlag.Name) || cc.registry == nil {
				return nil
			}
			return dumpMetrics(c.App.Writer, cc.registry)
		},
		Commands: commands(cc),
	}
}

// setup resolves the configuration: defaults, then the config file and the
// environment, then command line flags.
func (cc *cliContext) setup(c *cli.Context, stderr io.Writer) error {
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return err
	}
	if c.IsSet(dataDirFlag.Name) {
		cfg.DataDir = c.String(dataDirFlag.Name)
	}
	if c.IsSet(verbosityFlag.Name) {
		cfg.Log.Verbosity = c.Int(verbosityFlag.Name)
	}
	if c.IsSet(logFormatFlag.Name) {
		cfg.Log.Format = c.String(logFormatFlag.Name)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.SetDefault(log.NewWithWriter(stderr, cfg.Log.Format, log.FromVerbosity(cfg.Log.Verbosity)))
	cc.cfg = cfg
	cc.registry = prometheus.NewRegistry()
	return nil
}

func dumpMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
