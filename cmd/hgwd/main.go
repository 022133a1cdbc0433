package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"netfarm/internal/controller"
	"netfarm/internal/gamerpc"
	"netfarm/internal/hgw"
	"netfarm/internal/persistence/indexdb"
	persistlog "netfarm/internal/persistence/log"
	"netfarm/internal/tuning"
)

func main() {
	var (
		url        = flag.String("url", "ws://localhost:8080/v1/ws", "game api ws url")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the batch-history index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[hgwd] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := tuning.Load(*tuningPath)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if len(cfg.Targets) == 0 {
		logger.Fatalf("tuning.yaml lists no targets")
	}
	if len(cfg.Workers) == 0 {
		logger.Fatalf("tuning.yaml lists no workers")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := gamerpc.Dial(ctx, *url, cfg.AgentName, logger)
	if err != nil {
		logger.Fatalf("dial game api: %v", err)
	}
	defer client.Close()
	logger.Printf("connected session=%s", client.Welcome().SessionID)

	// Prefer the costs the server announces; tuning is the fallback for
	// servers that predate the handshake field.
	costs := client.RAMCosts()
	if costs.Hack <= 0 {
		costs = hgw.RAMCosts{
			Hack:   cfg.RAMCosts.HackGB,
			Grow:   cfg.RAMCosts.GrowGB,
			Weaken: cfg.RAMCosts.WeakenGB,
		}
	}

	var index controller.BatchIndex
	if !*disableDB {
		idx, err := indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		index = idx
	}

	history := persistlog.NewHistoryLogger(filepath.Join(*dataDir, "history"))
	defer history.Close()

	ctrl := controller.New(client, controller.Config{
		Targets:      cfg.Targets,
		Workers:      cfg.Workers,
		Strategy:     hgw.Strategy(cfg.Strategy),
		HackFraction: cfg.HackFraction,
		Spacing:      cfg.Spacing(),
		SafetyBuffer: cfg.SafetyBuffer(),
		PollInterval: cfg.PollInterval(),
		Retry:        cfg.Retry(),
		RAMCosts:     costs,
	}, logger, index, history)

	logger.Printf("running targets=[%s] workers=%d strategy=%s",
		strings.Join(cfg.Targets, ","), len(cfg.Workers), cfg.Strategy)
	ctrl.Run(ctx)
	logger.Printf("shutdown")
}
