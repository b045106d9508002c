package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/claude/formcoach/internal/coach"
	"github.com/claude/formcoach/internal/profiles"
	"github.com/claude/formcoach/internal/replay"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "formcoach server URL (e.g. https://formcoach.tail1234.ts.net)")
	apiKey := flag.String("api-key", os.Getenv("FORMCOACH_AUTH_API_KEY"), "ingest API key")
	path := flag.String("path", "", "directory of .jsonl recordings")
	profilesPath := flag.String("profiles", "", "exercise database (default: built-in)")
	dryRun := flag.Bool("dry-run", false, "replay and print but don't send to server")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("formcoach-replay", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *path == "" {
		fmt.Fprintf(os.Stderr, "Usage: formcoach-replay -server <URL> -api-key <key> -path <dir> [-dry-run]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if (*serverURL == "" || *apiKey == "") && !*dryRun {
		fmt.Fprintf(os.Stderr, "Error: -server and -api-key are required (or use -dry-run)\n")
		os.Exit(1)
	}
	*serverURL = strings.TrimRight(*serverURL, "/")

	info, err := os.Stat(*path)
	if err != nil || !info.IsDir() {
		log.Error("recordings directory not found", "path", *path)
		os.Exit(1)
	}

	var pdb *profiles.Database
	if *profilesPath != "" {
		pdb, err = profiles.LoadFile(*profilesPath)
	} else {
		pdb, err = profiles.Default()
	}
	if err != nil {
		log.Error("failed to load exercise database", "error", err)
		os.Exit(1)
	}
	catalog, err := pdb.Catalog(log)
	if err != nil {
		log.Error("failed to build exercise catalog", "error", err)
		os.Exit(1)
	}

	// State database and client are only needed when uploading.
	var (
		state  *replay.StateDB
		sender replay.Sender
	)
	if *dryRun {
		log.Info("DRY RUN mode: recordings will be replayed but not sent")
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Error("failed to get home directory", "error", err)
			os.Exit(1)
		}
		state, err = replay.OpenStateDB(filepath.Join(homeDir, ".formcoach-replay"))
		if err != nil {
			log.Error("failed to open state database", "error", err)
			os.Exit(1)
		}
		defer state.Close()
		sender = replay.NewClient(*serverURL, *apiKey)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := replay.New(catalog, coach.Options{}, sender, state, *path, *dryRun, log)
	stats, err := runner.Run(ctx)
	printStats(stats)
	if err != nil {
		log.Error("replay failed", "error", err)
		os.Exit(1)
	}
	log.Info("replay complete")
}

func printStats(stats *replay.Stats) {
	fmt.Println()
	fmt.Println("=== Replay Summary ===")
	fmt.Printf("  Files total:      %d\n", stats.FilesTotal)
	fmt.Printf("  Files replayed:   %d\n", stats.FilesReplayed)
	fmt.Printf("  Files skipped:    %d (already uploaded)\n", stats.FilesSkipped)
	fmt.Printf("  Files errored:    %d\n", stats.FilesErrored)
	fmt.Println()
	fmt.Printf("  Frames:           %d\n", stats.FramesProcessed)
	fmt.Printf("  Reps:             %d\n", stats.RepsCounted)
	fmt.Printf("  Form warnings:    %d\n", stats.FormWarnings)
	fmt.Println()
}
