package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmp1ce/charge-lnd/internal/config"
	"github.com/dmp1ce/charge-lnd/internal/history"
	"github.com/dmp1ce/charge-lnd/internal/lndclient"
	"github.com/dmp1ce/charge-lnd/internal/runner"
	"github.com/dmp1ce/charge-lnd/internal/server"
)

const defaultConfigPath = "/etc/charge-lnd/charge.toml"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "daemon" {
		runDaemon(os.Args[2:])
		return
	}

	runOnce(os.Args[1:])
}

func runOnce(args []string) {
	fs := flag.NewFlagSet("charge-lnd", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to charge.toml")
	dryRun := fs.Bool("dry-run", false, "Resolve policies without applying fee updates")
	concurrency := fs.Int("concurrency", 0, "Concurrent channel evaluations (0 = default)")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	db := openHistory(ctx, cfg, logger)
	if db != nil {
		defer db.Close()
	}

	summary, err := makeRunner(cfg, logger, runner.Options{DryRun: *dryRun, Concurrency: *concurrency}).
		Run(ctx, cfg.Policies, cfg.Default)
	if err != nil {
		logger.Fatalf("run failed: %v", err)
	}

	summary.Print(os.Stdout)
	if err := history.InsertRows(ctx, db, summary.HistoryRows()); err != nil {
		logger.Printf("history insert failed: %v", err)
	}
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func runDaemon(args []string) {
	fs := flag.NewFlagSet("charge-lnd daemon", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to charge.toml")
	dryRun := fs.Bool("dry-run", false, "Resolve policies without applying fee updates")
	interval := fs.Duration("interval", time.Hour, "Delay between runs")
	listen := fs.String("listen", "", "Status API address (overrides config)")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := openHistory(ctx, cfg, logger)
	if db != nil {
		defer db.Close()
	}

	var mu sync.Mutex
	current := cfg
	go config.Watch(ctx, *configPath, logger, func(next *config.Config) {
		mu.Lock()
		current = next
		mu.Unlock()
	})

	srv := server.New(logger, db)
	addr := *listen
	if addr == "" {
		addr = cfg.Server.Listen
	}
	if addr != "" {
		go func() {
			if err := srv.Run(addr); err != nil {
				logger.Printf("status api stopped: %v", err)
			}
		}()
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		mu.Lock()
		active := current
		mu.Unlock()

		summary, err := makeRunner(active, logger, runner.Options{DryRun: *dryRun}).
			Run(ctx, active.Policies, active.Default)
		if err != nil {
			logger.Printf("run failed: %v", err)
			srv.SetLastError(err)
		} else {
			logger.Printf("run %s: %d channels, %d resolved, %d defaulted, %d failed, %d updates",
				summary.RunID, len(summary.Results), summary.Resolved, summary.Defaulted,
				summary.Failed, summary.Applied)
			srv.SetLastRun(summary)
			if err := history.InsertRows(ctx, db, summary.HistoryRows()); err != nil {
				logger.Printf("history insert failed: %v", err)
			}
		}

		select {
		case <-ctx.Done():
			logger.Printf("shutting down")
			return
		case <-ticker.C:
		}
	}
}

func makeRunner(cfg *config.Config, logger *log.Logger, opts runner.Options) *runner.Runner {
	client := lndclient.New(cfg.LND, logger)
	gateway, err := lndclient.NewCachedGateway(client)
	if err != nil {
		logger.Fatalf("gateway cache init failed: %v", err)
	}
	return runner.New(gateway, client, client, logger, opts)
}

func openHistory(ctx context.Context, cfg *config.Config, logger *log.Logger) *pgxpool.Pool {
	if cfg.History.DSN == "" {
		return nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(dialCtx, cfg.History.DSN)
	if err != nil {
		logger.Printf("history store unavailable: %v", err)
		return nil
	}
	if err := history.EnsureSchema(dialCtx, pool); err != nil {
		logger.Printf("history store unavailable: failed to init schema: %v", err)
		pool.Close()
		return nil
	}
	return pool
}
