package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"stockdata-pipeline/internal/application"
	"stockdata-pipeline/internal/bootstrap"
	"stockdata-pipeline/internal/config"
	"stockdata-pipeline/internal/infrastructure/logx"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const usage = `usage: ingest <command>

commands:
  create-table   ensure the stock_data table exists
  fetch          fetch the latest quote and store it
  run            create-table, then fetch`

var errUsage = errors.New("unknown command")

func init() { _ = godotenv.Load() }

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := logx.Init(cfg.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	log := logx.L()
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], cfg, log); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		log.Error("ingest failed", zap.String("command", os.Args[1]), zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

// tasks is the part of the pipeline the commands drive.
type tasks interface {
	Symbol() string
	CreateTable(ctx context.Context) error
	FetchAndStore(ctx context.Context) (application.RunResult, error)
}

func validCommand(cmd string) error {
	switch cmd {
	case "create-table", "fetch", "run":
		return nil
	default:
		return fmt.Errorf("%w: %q", errUsage, cmd)
	}
}

func run(ctx context.Context, cmd string, cfg config.Config, log *zap.Logger) error {
	if err := validCommand(cmd); err != nil {
		return err
	}
	p, _, cleanup, err := bootstrap.InitPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()
	return execute(ctx, cmd, p, log)
}

// execute runs cmd; "run" stops before fetching when the table step fails.
func execute(ctx context.Context, cmd string, t tasks, log *zap.Logger) error {
	if err := validCommand(cmd); err != nil {
		return err
	}
	switch cmd {
	case "create-table":
		return t.CreateTable(ctx)
	case "fetch":
		return fetch(ctx, t, log)
	default:
		if err := t.CreateTable(ctx); err != nil {
			return err
		}
		return fetch(ctx, t, log)
	}
}

func fetch(ctx context.Context, t tasks, log *zap.Logger) error {
	res, err := t.FetchAndStore(ctx)
	if err != nil {
		return err
	}
	log.Info("ingest done",
		zap.String("run_id", res.RunID),
		zap.String("symbol", t.Symbol()),
		zap.Bool("inserted", res.Inserted),
	)
	return nil
}
