package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"redteam/internal/adapters/config"
	"redteam/internal/bootstrap"
	"redteam/pkg/logger"
)

// Swapped in tests.
var (
	loadConfig   = config.Load
	newContainer = func(ctx context.Context, cfg *config.Config) (*bootstrap.Container, error) {
		return bootstrap.New(ctx, cfg)
	}
)

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRoot().ExecuteContext(ctx)
}

func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "redteam",
		Short:        "Multi-perspective red-team analysis of strategies",
		SilenceUsage: true,
	}
	root.AddCommand(
		AnalyzeCmd(),
		PerspectivesCmd(),
		CheckCmd(),
	)
	return root
}

// setup loads configuration, initializes logging and builds the container.
func setup(ctx context.Context) (*bootstrap.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		return nil, err
	}
	return newContainer(ctx, cfg)
}
