package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/FileShelf/internal/app"
	"github.com/dharsanguruparan/FileShelf/internal/config"
	"github.com/dharsanguruparan/FileShelf/internal/logging"
)

var (
	configFile string
	verbose    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fileshelf: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fileshelf",
		Short: "FileShelf server and operator CLI",
		Long: `FileShelf stores uploaded files, classifies them into categories and tags,
and recommends files to users. This CLI runs the server and inspects its persisted state.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("FILESHELF_CONFIG"), "YAML config file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	cmd.AddCommand(
		newServeCmd(),
		newClassifyCmd(),
		newRecommendCmd(),
		newSimilarCmd(),
		newOrganizeCmd(),
		newStatsCmd(),
	)
	return cmd
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger := logging.New(logging.Config{Level: level, Format: cfg.Log.Format})
	return cfg, logger, nil
}

// openApp loads persisted state for the read-only commands. Logging stays
// quiet unless --verbose is set so command output is clean.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !verbose {
		logger = logger.Level(zerolog.WarnLevel)
	}
	return app.New(ctx, cfg, logger)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and classification workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Run(ctx)
		},
	}
}
