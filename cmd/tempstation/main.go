package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tempstation/internal/app"
	"tempstation/internal/board"
	"tempstation/internal/config"
	"tempstation/internal/logging"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

const appName = "tempstation"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	listBoards := flag.Bool("boards", false, "list built-in board profiles and exit")
	check := flag.Bool("check", false, "validate environment and board profile, then exit")
	flag.Parse()

	switch {
	case *showVersion:
		fmt.Println(appName, version)
		return
	case *listBoards:
		fmt.Println(strings.Join(board.Names(), "\n"))
		return
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if *check {
		p, err := board.Resolve(cfg.Board, cfg.BoardFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "board error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("ok: board %s, sensor %s\n", p.Name, p.Sensor.Model)
		return
	}

	logger := logging.New(os.Stdout, cfg, version, appName)
	slog.SetDefault(logger)

	slog.Info("starting",
		"board", cfg.Board,
		"board_file", cfg.BoardFile,
		"http_addr", cfg.HTTPAddr,
		"log_level", cfg.LogLevel.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, version); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}

	slog.Info("stopped")
}
