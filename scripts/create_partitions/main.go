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

// Creates the daily node_records partitions for today and tomorrow, and with --init
// for the 90 days before today.
func main() {
	var backfill bool
	configPath := flag.String("config", os.Getenv("SCANODES_CONFIG"), "Path to the YAML configuration file")
	flag.BoolVar(&backfill, "init", false, "Initialize partitions for 90 days prior and current day")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dbpool, err := pgxpool.New(ctx, cfg.TimescaleDB.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbpool.Close()
	repo := db.NewRepository(dbpool)

	currentDate := time.Now().UTC().Truncate(24 * time.Hour)
	startDate := currentDate
	if backfill {
		startDate = currentDate.AddDate(0, 0, -90)
	}

	created := 0
	for d := startDate; !d.After(currentDate.AddDate(0, 0, 1)); d = d.AddDate(0, 0, 1) {
		if err := repo.CreatePartition(ctx, d); err != nil {
			log.Fatalf("%v", err)
		}
		log.Printf("Created partition %s for %s", db.PartitionName(d), d.Format("2006-01-02"))
		created++
	}
	log.Printf("Ensured %d partitions", created)
}
