package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/goran-ethernal/EventSyncor/internal/common"
	"github.com/goran-ethernal/EventSyncor/internal/config"
	"github.com/goran-ethernal/EventSyncor/internal/db"
	"github.com/goran-ethernal/EventSyncor/internal/logger"
	"github.com/goran-ethernal/EventSyncor/internal/store"
	pkgconfig "github.com/goran-ethernal/EventSyncor/pkg/config"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "syncstore",
	Short:   "EventSyncor - Blockchain event sync store",
	Long:    `Administrative tooling for the EventSyncor sync store: schema migrations, database maintenance and store statistics.`,
	Version: version,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply all pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfigAndLogger()
		if err != nil {
			return err
		}
		defer log.Close()

		s, err := store.NewStoreFromConfig(cfg.Store, log)
		if err != nil {
			return err
		}
		defer s.Kill()

		if err := s.MigrateUp(); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		fmt.Println("migrations applied")
		return nil
	},
}

var vacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Run database maintenance (WAL checkpoint + VACUUM) once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfigAndLogger()
		if err != nil {
			return err
		}
		defer log.Close()

		sqlDB, err := db.NewSQLiteDBFromConfig(cfg.Store.DB)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		maintenanceCfg := cfg.Store.Maintenance
		if maintenanceCfg == nil {
			maintenanceCfg = &pkgconfig.MaintenanceConfig{}
			maintenanceCfg.ApplyDefaults()
		}

		coordinator := db.NewMaintenanceCoordinator(cfg.Store.DB.Path, sqlDB, maintenanceCfg, log)
		return coordinator.RunMaintenance(context.Background())
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print row counts and database size",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfigAndLogger()
		if err != nil {
			return err
		}
		defer log.Close()

		sqlDB, err := db.NewSQLiteDBFromConfig(cfg.Store.DB)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		tables := []string{
			"blocks", "transactions", "logs",
			"log_filters", "log_filter_intervals",
			"factories", "factory_log_filter_intervals",
			"rpc_request_results",
		}

		for _, table := range tables {
			var count int64
			if err := sqlDB.QueryRow("SELECT count(*) FROM " + table).Scan(&count); err != nil {
				return fmt.Errorf("failed to count %s: %w", table, err)
			}
			fmt.Printf("%-30s %d\n", table, count)
		}

		size, err := db.DBTotalSize(cfg.Store.DB.Path)
		if err != nil {
			return err
		}
		fmt.Printf("%-30s %d bytes\n", "total size", size)

		return nil
	},
}

var (
	truncateChainID   uint64
	truncateFromBlock string
)

var truncateCmd = &cobra.Command{
	Use:   "truncate",
	Short: "Delete speculative data beyond a block on one chain",
	Long: `Truncate removes blocks, transactions, logs and cached RPC results past
the given block on one chain and clamps that chain's coverage intervals,
exactly as the store does when a reorg is detected. The block number may
be decimal or 0x-prefixed hex.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fromBlock, err := common.ParseUint64orHex(&truncateFromBlock)
		if err != nil {
			return fmt.Errorf("invalid --from-block %q: %w", truncateFromBlock, err)
		}

		cfg, log, err := loadConfigAndLogger()
		if err != nil {
			return err
		}
		defer log.Close()

		s, err := store.NewStoreFromConfig(cfg.Store, log)
		if err != nil {
			return err
		}
		defer s.Kill()

		if err := s.DeleteRealtimeData(context.Background(), truncateChainID, fromBlock); err != nil {
			return fmt.Errorf("truncation failed: %w", err)
		}

		fmt.Printf("truncated chain %d past block %d\n", truncateChainID, fromBlock)
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		reflector := jsonschema.Reflector{ExpandedStruct: true}
		schema := reflector.Reflect(&pkgconfig.Config{})

		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal schema: %w", err)
		}

		fmt.Println(string(data))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")

	truncateCmd.Flags().Uint64Var(&truncateChainID, "chain-id", 0, "chain whose data to truncate")
	truncateCmd.Flags().StringVar(&truncateFromBlock, "from-block", "", "pivot block number (decimal or 0x hex)")
	truncateCmd.MarkFlagRequired("chain-id")
	truncateCmd.MarkFlagRequired("from-block")

	rootCmd.AddCommand(migrateCmd, vacuumCmd, statsCmd, truncateCmd, schemaCmd)
}

func loadConfigAndLogger() (*pkgconfig.Config, *logger.Logger, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := "info"
	development := false
	if cfg.Logging != nil {
		level = cfg.Logging.GetDefaultLevel()
		development = cfg.Logging.IsDevelopment()
	}

	log, err := logger.NewLogger(level, development)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return cfg, log, nil
}
