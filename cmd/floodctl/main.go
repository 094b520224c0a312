// Command floodctl is the operator CLI for flood metrics and the FloodPredictor
// contract.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	flag "github.com/spf13/pflag"

	"floodguard/internal/app"
	"floodguard/internal/config"
	"floodguard/internal/models"
	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

type command struct {
	usage string
	// online commands need configured components; writes also need a session
	online bool
	write  bool
	run    func(ctx context.Context, c *cli, args []string) (interface{}, error)
}

type cli struct {
	out     io.Writer
	format  string
	station string
	product string
	app     *app.App
}

func main() {
	fs := flag.NewFlagSet("floodctl", flag.ContinueOnError)
	fs.SetInterspersed(false)
	format := fs.StringP("output", "o", "json", "Output format: json or yaml")
	station := fs.StringP("station", "s", "", "NOAA station ID (default: noaa.default_station)")
	product := fs.StringP("type", "t", "all", "NOAA product: water_level, tides, currents or all")
	fs.Usage = func() { usage(fs) }

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if fs.NArg() == 0 {
		usage(fs)
		os.Exit(2)
	}

	name, args := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage(fs)
		os.Exit(2)
	}
	if *format != "json" && *format != "yaml" {
		fmt.Fprintf(os.Stderr, "unsupported output format %q\n", *format)
		os.Exit(2)
	}

	c := &cli{out: os.Stdout, format: *format, station: *station, product: *product}
	ctx := context.Background()

	if cmd.online {
		closeApp, err := c.open(ctx, cmd.write)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", models.ReasonOf(err))
			os.Exit(1)
		}
		defer closeApp()
	}

	result, err := cmd.run(ctx, c, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", models.ReasonOf(err))
		if result != nil {
			c.print(result)
		}
		os.Exit(1)
	}
	if err := c.print(result); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// open builds the configured components; logs go to stderr so stdout stays
// machine-readable
func (c *cli) open(ctx context.Context, write bool) (func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if c.station == "" {
		c.station = cfg.NOAA.DefaultStation
	}

	logger := logging.NewStructuredLogger("floodctl", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	logger.SetOutput(os.Stderr)

	a, err := app.New(ctx, cfg, logger, metrics.NewCollector("floodctl"))
	if err != nil {
		return nil, err
	}
	c.app = a

	if write {
		if a.Gateway == nil {
			a.Close()
			return nil, fmt.Errorf("ledger is disabled: set ledger.enabled")
		}
		if err := a.ConnectSession(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a.Close, nil
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: floodctl [flags] <command> [args]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-18s %s\n", name, commands[name].usage)
	}
	fmt.Fprintf(os.Stderr, "\nFlags:\n%s", fs.FlagUsages())
}

func requireArgs(args []string, n int, names ...string) error {
	if len(args) != n {
		return &models.ValidationError{Message: fmt.Sprintf("expected %d argument(s): %s", n, strings.Join(names, " "))}
	}
	return nil
}
