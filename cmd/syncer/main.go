package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"floodguard/internal/app"
	"floodguard/internal/config"
	"floodguard/internal/models"
	"floodguard/internal/scheduler"
	"floodguard/internal/services"
	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

func main() {
	once := flag.Bool("once", false, "Run a single sync cycle and exit")
	station := flag.StringP("station", "s", "", "NOAA station to watch (default: sync.station or noaa.default_station)")
	schedule := flag.String("schedule", "", "Cron schedule override (five fields)")
	timeout := flag.Duration("timeout", 5*time.Minute, "Upper bound for a single cycle")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *schedule != "" {
		cfg.Sync.Schedule = *schedule
	}
	if *station != "" {
		cfg.Sync.Station = *station
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("floodguard-syncer", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[SYNCER_START] Starting flood metric synchronization", logging.Fields{
		"station":         cfg.SyncStation(),
		"schedule":        cfg.Sync.Schedule,
		"submit_on_chain": cfg.Sync.SubmitOnChain,
		"once":            *once,
	})

	metricsCollector := metrics.NewCollector("floodguard_syncer")

	components, err := app.New(ctx, cfg, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[SYNCER_ERROR] Failed to initialize components", logging.Fields{}, err)
	}
	defer components.Close()

	if cfg.Sync.SubmitOnChain {
		if err := components.ConnectSession(ctx); err != nil {
			logger.Fatal(ctx, "[SYNCER_ERROR] Ledger session could not be connected", logging.Fields{
				"kind": models.KindOf(err),
			}, err)
		}
	}

	sched := scheduler.NewScheduler(components.Sync, cfg.SyncStation(), *timeout, logger)

	if *once {
		result, err := sched.RunNow()
		printResult(result, err)
		if err != nil {
			os.Exit(1)
		}
		return
	}

	if err := sched.Register(cfg.Sync.Schedule); err != nil {
		logger.Fatal(ctx, "[SYNCER_ERROR] Failed to schedule sync", logging.Fields{}, err)
	}
	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Stopping syncer...", logging.Fields{})
	sched.Stop()
	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Syncer stopped", logging.Fields{})
}

func printResult(result *services.SyncResult, err error) {
	fmt.Println(strings.Repeat("=", 80))
	if err != nil {
		fmt.Println("SYNC FAILED")
	} else {
		fmt.Println("SYNC COMPLETE")
	}
	fmt.Println(strings.Repeat("=", 80))

	if result != nil {
		for _, line := range result.Summary() {
			fmt.Println(line)
		}
	}
	if err != nil {
		fmt.Printf("Error:              %s\n", models.ReasonOf(err))
	}
}
