package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chambridge/node-inventory-aggregator/internal/config"
	"github.com/chambridge/node-inventory-aggregator/internal/db"
	"github.com/chambridge/node-inventory-aggregator/internal/export"
	"github.com/chambridge/node-inventory-aggregator/internal/hostlist"
	"github.com/chambridge/node-inventory-aggregator/internal/logging"
	"github.com/chambridge/node-inventory-aggregator/internal/scanner"
	"github.com/chambridge/node-inventory-aggregator/internal/workerpool"
)

var rootCmd = &cobra.Command{
	Use:          "scanodes",
	Short:        "Collects hardware inventory from iDRAC BMCs over Redfish.",
	SilenceUsage: true,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Sweeps every configured BMC once and writes the records to CSV",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

var nodelistCmd = &cobra.Command{
	Use:   "nodelist",
	Short: "Prints the expanded node list, one node per line",
	Args:  cobra.NoArgs,
	RunE:  runNodelist,
}

var configCmd = &cobra.Command{
	Use:   "config <target>",
	Short: "Prints one configuration section (idrac, timescaledb, slurm_rest_api)",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfig,
}

var (
	configPath string
	outputPath string
	store      bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("SCANODES_CONFIG"), "Path to the YAML configuration file")
	scanCmd.Flags().StringVarP(&outputPath, "output", "o", "", "CSV file to write (defaults to the configured output)")
	scanCmd.Flags().BoolVar(&store, "store", false, "Also store the sweep in TimescaleDB")

	rootCmd.AddCommand(scanCmd, nodelistCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadNodes() (*config.Config, []string, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	nodes, err := hostlist.Expand(cfg.IDRAC.Nodelist...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to expand node list: %w", err)
	}
	return cfg, nodes, nil
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, nodes, err := loadNodes()
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("no nodes configured under idrac.nodelist")
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if outputPath == "" {
		outputPath = cfg.Output
	}
	sinks := []scanner.Sink{export.FileSink{Path: outputPath}}
	if store {
		dbpool, err := pgxpool.New(ctx, cfg.TimescaleDB.DSN())
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer dbpool.Close()
		if err := dbpool.Ping(ctx); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		sinks = append(sinks, db.NewRepository(dbpool))
	}

	pool := workerpool.New(cfg.Scan.Workers)
	defer pool.Close()

	s := scanner.New(scanner.ConfigFrom(cfg), pool, logger, scanner.WithSinks(sinks...))
	report, _, err := s.Run(ctx, nodes)
	if err != nil {
		return err
	}

	logger.Info("inventory written", zap.String("output", outputPath), zap.Bool("stored", store))
	fmt.Fprintf(cmd.OutOrStdout(), "scan %s: %d nodes, %d reachable, %d unreachable, %d malformed\n",
		report.ScanID, report.Nodes, report.Reachable, report.Unreachable, report.Malformed)
	return nil
}

func runNodelist(cmd *cobra.Command, _ []string) error {
	_, nodes, err := loadNodes()
	if err != nil {
		return err
	}
	for _, node := range nodes {
		fmt.Fprintln(cmd.OutOrStdout(), node)
	}
	return nil
}

var secretKeys = map[string]bool{"password": true, "token": true}

func runConfig(cmd *cobra.Command, args []string) error {
	if _, err := config.LoadConfig(configPath); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	section, err := config.Target(args[0])
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(section))
	for k := range section {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := section[k]
		if secretKeys[k] && v != "" {
			v = "******"
		}
		out, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to render %s.%s: %w", args[0], k, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", k, out)
	}
	return nil
}
