package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chambridge/node-inventory-aggregator/internal/config"
	"github.com/chambridge/node-inventory-aggregator/internal/db"
)

// Drops every daily node_records partition of the previous month.
func main() {
	configPath := flag.String("config", os.Getenv("SCANODES_CONFIG"), "Path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dbpool, err := pgxpool.New(context.Background(), cfg.TimescaleDB.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbpool.Close()
	repo := db.NewRepository(dbpool)

	now := time.Now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	dropped := 0
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		if err := repo.DropPartition(context.Background(), d); err != nil {
			log.Printf("%v", err)
			continue
		}
		log.Printf("Dropped partition %s", db.PartitionName(d))
		dropped++
	}

	log.Printf("Successfully dropped %d partitions for %d-%02d", dropped, first.Year(), first.Month())
}
