package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/chambridge/node-inventory-aggregator/api"
	"github.com/chambridge/node-inventory-aggregator/internal/config"
	"github.com/chambridge/node-inventory-aggregator/internal/db"
	"github.com/chambridge/node-inventory-aggregator/internal/hostlist"
	"github.com/chambridge/node-inventory-aggregator/internal/logging"
	"github.com/chambridge/node-inventory-aggregator/internal/scanner"
	"github.com/chambridge/node-inventory-aggregator/internal/workerpool"
)

func main() {
	configPath := flag.String("config", os.Getenv("SCANODES_CONFIG"), "Path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	nodes, err := hostlist.Expand(cfg.IDRAC.Nodelist...)
	if err != nil {
		logger.Fatal("Failed to expand node list", zap.Error(err))
	}

	dbpool, err := pgxpool.New(context.Background(), cfg.TimescaleDB.DSN())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbpool.Close()

	pool := workerpool.New(cfg.Scan.Workers)
	defer pool.Close()

	repo := db.NewRepository(dbpool)
	s := scanner.New(scanner.ConfigFrom(cfg), pool, logger, scanner.WithSinks(repo))

	router := api.SetupRouter(repo, s, nodes)
	logger.Info("Starting server", zap.String("address", cfg.ServerAddress), zap.Int("nodes", len(nodes)))
	if err := router.Run(cfg.ServerAddress); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}
