package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/assguard/internal/auth"
	"github.com/good-yellow-bee/assguard/internal/dataform"
	"github.com/good-yellow-bee/assguard/internal/metrics"
	"github.com/good-yellow-bee/assguard/internal/pipeline"
	"github.com/good-yellow-bee/assguard/internal/warehouse"
	"github.com/good-yellow-bee/assguard/pkg/config"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "assguard",
	Short: "assguard - Dataform assertion results into the warehouse",
	Long: `assguard pulls workflow invocation and assertion results from the
Dataform API, appends them to the assertion_data warehouse table, and
publishes the daily_recap and action_summary reporting views.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ETL once and exit",
	RunE:  runPipeline,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.VersionString())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if verbose {
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zapConfig.Build()
}

func runPipeline(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := LoadConfig(configFile)
	if err != nil {
		logger.Error("configuration invalid", zap.Error(err))
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Authenticate
	credentials, err := auth.Authenticate(ctx, cfg.ServiceAccountJSON, logger)
	if err != nil {
		logger.Error("authentication failed", zap.Error(err))
		return err
	}

	// Extractor
	client, err := dataform.NewClient(dataform.ClientConfig{
		Token:  credentials.Token,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("create dataform client: %w", err)
	}

	// Warehouse
	store := warehouse.New(&cfg.Warehouse)
	if err := store.Open(); err != nil {
		logger.Error("warehouse connection failed", zap.Error(err))
		return err
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		logger.Error("warehouse migration failed", zap.Error(err))
		return err
	}

	// Run
	etl := pipeline.New(pipeline.Config{
		Project:    cfg.Source.Project,
		Location:   cfg.Source.Location,
		Repository: cfg.Source.Repository,
	}, client, store, logger)

	report, runErr := etl.Run(ctx)

	if cfg.PushgatewayURL != "" {
		if pushErr := metrics.Push(cfg.PushgatewayURL, report.RunID); pushErr != nil {
			logger.Warn("metrics push failed", zap.Error(pushErr))
		}
	}

	return runErr
}
