package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/compozy/guidebook/engine/store"
	"github.com/compozy/guidebook/pkg/config"
	"github.com/compozy/guidebook/pkg/logger"
)

// ProfileCmd manages saved answer profiles.
func ProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage saved answer profiles",
	}
	cmd.AddCommand(
		profileListCmd(),
		profileShowCmd(),
		profileDeleteCmd(),
		profileExportCmd(),
	)
	return cmd
}

func profileStore(cfg *config.Config) (*store.ProfileStore, error) {
	dir, err := store.DefaultProfilesPath(cfg.Store.ProfilesPath)
	if err != nil {
		return nil, err
	}
	return store.NewProfileStore(afero.NewOsFs(), dir, store.WithLocking(cfg.Store.Locking)), nil
}

func profileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles, most recently used first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles, err := profileStore(config.FromContext(cmd.Context()))
			if err != nil {
				return err
			}
			summaries, err := profiles.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No profiles in %s\n", profiles.Dir())
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tLAST USED\tPATH")
			for _, s := range summaries {
				lastUsed := "never"
				if !s.LastUsed.IsZero() {
					lastUsed = s.LastUsed.Local().Format(time.DateTime)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, lastUsed, s.Path)
			}
			return w.Flush()
		},
	}
}

func profileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Print a profile's answers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			profiles, err := profileStore(cfg)
			if err != nil {
				return err
			}
			p, err := profiles.Get(cmd.Context(), profileName(cfg, args))
			if err != nil {
				return err
			}
			data, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("failed to encode profile: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(pretty.Pretty(data))
			return err
		},
	}
}

func profileDeleteCmd() *cobra.Command {
	var forgetStatus bool
	cmd := &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			profiles, err := profileStore(cfg)
			if err != nil {
				return err
			}
			name := profileName(cfg, args)
			if err := profiles.Delete(ctx, name); err != nil {
				return err
			}
			logger.FromContext(ctx).Info("Deleted profile", "profile", name)
			if forgetStatus {
				return clearStatus(ctx, cfg)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&forgetStatus, "forget-status", false, "Also forget which tasks already succeeded")
	return cmd
}

func profileExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <name> <file>",
		Short: "Copy a profile to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := profileStore(config.FromContext(cmd.Context()))
			if err != nil {
				return err
			}
			return profiles.Export(cmd.Context(), args[0], args[1])
		},
	}
}

func clearStatus(ctx context.Context, cfg *config.Config) error {
	path, err := store.DefaultStatusPath(cfg.Store.CachePath)
	if err != nil {
		return err
	}
	statuses := store.NewStatusStore(afero.NewOsFs(), path, store.WithLocking(cfg.Store.Locking))
	if err := statuses.Clear(ctx); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Forgot task statuses", "path", path)
	return nil
}

func profileName(cfg *config.Config, args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return cfg.Run.Profile
}
