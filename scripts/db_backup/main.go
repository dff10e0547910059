package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/garnizeh/skillswap/internal/config"
	"github.com/garnizeh/skillswap/internal/db"
	"github.com/spf13/pflag"
)

func main() {
	flagSet := pflag.NewFlagSet("db_backup", pflag.ExitOnError)
	configPath := flagSet.String("config", "", "Path to config YAML file")
	out := flagSet.String("out", "", "Backup file (default: <database>.bak)")
	_ = flagSet.Parse(os.Args[1:])

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	dst := *out
	if dst == "" {
		dst = cfg.DatabasePath + ".bak"
	}
	// VACUUM INTO refuses to overwrite
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Backup error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	database, err := db.New(ctx, cfg.DatabasePath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backup error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	// a consistent copy even while the server is writing
	if _, err := database.Exec(ctx, `VACUUM INTO '`+strings.ReplaceAll(dst, "'", "''")+`'`); err != nil {
		fmt.Fprintf(os.Stderr, "Backup error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Database backup written to %s.\n", dst)
}
