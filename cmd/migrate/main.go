package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"floodguard/internal/config"
	"floodguard/migrations"
	"floodguard/pkg/database"
	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

func main() {
	direction := flag.String("direction", migrations.DirectionUp, "Migration direction: up or down")
	flag.Parse()

	if *direction != migrations.DirectionUp && *direction != migrations.DirectionDown {
		fmt.Fprintf(os.Stderr, "Invalid direction %q: expected up or down\n", *direction)
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("floodguard-migrate", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	metricsCollector := metrics.NewCollector("floodguard_migrate")

	// Migrations run against the configured database even when the services
	// have history disabled
	db, err := database.Open(cfg.DatabaseOptions(), logger, metricsCollector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Printf("Connected to %s database successfully\n", db.Driver())

	applied, err := migrations.Apply(context.Background(), db, *direction)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute migration: %v\n", err)
		os.Exit(1)
	}

	for _, name := range applied {
		fmt.Printf("Ran migration: %s\n", name)
	}
	fmt.Println("Migration completed successfully")
}
