package cli

import (
	"context"
	"fmt"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/compozy/guidebook/pkg/config"
	"github.com/compozy/guidebook/pkg/config/definition"
	"github.com/compozy/guidebook/pkg/logger"
)

func RootCmd() *cobra.Command {
	registry := definition.CreateRegistry()
	root := &cobra.Command{
		Use:           "guidebook",
		Short:         "Walk through guidebooks of choices and tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := setupContext(cmd, registry)
			if err != nil {
				return err
			}
			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return config.ManagerFromContext(cmd.Context()).Close(cmd.Context())
		},
	}
	registerConfigFlags(root.PersistentFlags(), registry)
	root.AddCommand(
		GuideCmd(),
		RunCmd(),
		PlanCmd(),
		ProfileCmd(),
		SchemaCmd(),
		ConfigCmd(),
		VersionCmd(),
	)
	return root
}

// setupContext loads the configuration, installs the logger and tags it
// with a run identifier.
func setupContext(cmd *cobra.Command, registry *definition.Registry) (context.Context, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	manager, err := loadManager(ctx, cmd, registry)
	if err != nil {
		return nil, err
	}
	cfg := manager.Get()
	logger.SetupLogger(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Source)
	log := logger.GetDefault().With("run_id", ksuid.New().String())
	ctx = logger.ContextWithLogger(ctx, log)
	return config.ContextWithManager(ctx, manager), nil
}

func loadManager(ctx context.Context, cmd *cobra.Command, registry *definition.Registry) (*config.Manager, error) {
	var sources []config.Source
	path, err := configFilePath(cmd)
	if err != nil {
		return nil, err
	}
	if path != "" {
		sources = append(sources, config.NewYAMLProvider(path))
	}
	sources = append(sources, config.NewCLIProvider(extractCLIFlags(cmd, registry)))
	manager := config.NewManager(config.NewService())
	if _, err := manager.Load(ctx, sources...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return manager, nil
}
