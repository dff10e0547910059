package main

import (
	"fmt"
	"io"
	"os"

	"github.com/garnizeh/skillswap/internal/config"
	"github.com/spf13/pflag"
)

func main() {
	flagSet := pflag.NewFlagSet("db_restore", pflag.ExitOnError)
	configPath := flagSet.String("config", "", "Path to config YAML file")
	in := flagSet.String("in", "", "Backup file (default: <database>.bak)")
	_ = flagSet.Parse(os.Args[1:])

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	src := *in
	if src == "" {
		src = cfg.DatabasePath + ".bak"
	}
	dst := cfg.DatabasePath

	srcFile, err := os.Open(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Restore error: %v\n", err)
		os.Exit(1)
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Restore error: %v\n", err)
		os.Exit(1)
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Restore error: %v\n", err)
		os.Exit(1)
	}

	// stale WAL files would be replayed over the restored copy
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(dst + suffix)
	}

	fmt.Println("Database restore completed.")
}
