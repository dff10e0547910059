package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	dbfs "github.com/garnizeh/skillswap/db"
	"github.com/garnizeh/skillswap/internal/config"
	"github.com/garnizeh/skillswap/internal/db"
	"github.com/garnizeh/skillswap/internal/repository/sqlite"
	"github.com/garnizeh/skillswap/internal/seed"
	"github.com/garnizeh/skillswap/internal/swap"
	"github.com/spf13/pflag"
)

func main() {
	flagSet := pflag.NewFlagSet("db_init", pflag.ExitOnError)
	configPath := flagSet.String("config", "", "Path to config YAML file")
	dbPath := flagSet.String("db", "", "SQLite database path (overrides config)")
	withSeed := flagSet.Bool("seed", false, "Load the demo users and swaps")
	_ = flagSet.Parse(os.Args[1:])

	ctx := context.Background()
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	database, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DB init error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
		fmt.Fprintf(os.Stderr, "Migration runner error: %v\n", err)
		os.Exit(1)
	}

	if *withSeed {
		f, err := seed.Load(dbfs.SeedFiles, "seed")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Seed error: %v\n", err)
			os.Exit(1)
		}
		repo := sqlite.New(database, logger)
		res, err := seed.Apply(ctx, f, repo, swap.NewService(repo, logger), cfg.BcryptCost, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Seed error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Seeded %d users and %d swaps.\n", res.Users, res.Swaps)
	}

	fmt.Println("Database initialized successfully.")
}
