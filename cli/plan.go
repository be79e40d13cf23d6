package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/compozy/guidebook/cli/helpers"
	"github.com/compozy/guidebook/engine/guide"
	"github.com/compozy/guidebook/engine/guidebook"
	"github.com/compozy/guidebook/engine/wizard"
	"github.com/compozy/guidebook/pkg/config"
	"github.com/compozy/guidebook/pkg/logger"
)

type planFlags struct {
	json  bool
	watch bool
	copy  bool
}

// PlanCmd shows the plan a guidebook compiles to for a profile's answers.
func PlanCmd() *cobra.Command {
	var flags planFlags
	cmd := &cobra.Command{
		Use:   "plan [guidebook]",
		Short: "Show the steps a guidebook would take",
		Long: `Compile and optimize a guidebook against the answers saved in the selected
profile, and print the resulting steps as a tree or as JSON. Nothing is run
except validation predicates.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, firstArg(args), flags)
		},
	}
	cmd.Flags().BoolVar(&flags.json, "json", false, "Print the plan as JSON")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "Print the plan again whenever the guidebook changes")
	cmd.Flags().BoolVar(&flags.copy, "copy", false, "Copy the printed plan to the clipboard")
	return cmd
}

func runPlan(cmd *cobra.Command, target string, flags planFlags) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	out := cmd.OutOrStdout()
	if err := printPlan(ctx, cfg, target, flags, out); err != nil {
		return err
	}
	if !flags.watch {
		return nil
	}
	return watchPlan(ctx, cfg, target, flags, out)
}

func printPlan(ctx context.Context, cfg *config.Config, target string, flags planFlags, out io.Writer) error {
	text, err := renderPlan(ctx, cfg, target, flags.json)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, text)
	if flags.copy {
		if err := clipboard.WriteAll(text); err != nil {
			logger.FromContext(ctx).Warn("Failed to copy plan to clipboard", "error", err)
		}
	}
	return nil
}

func renderPlan(ctx context.Context, cfg *config.Config, target string, asJSON bool) (string, error) {
	s, err := openSession(ctx, cfg, target, sessionOptions{replay: true})
	if err != nil {
		return "", err
	}
	defer func() {
		if err := s.close(context.WithoutCancel(ctx), false); err != nil {
			logger.FromContext(ctx).Warn("Failed to close plan session", "error", err)
		}
	}()
	g := s.newGuide(guide.ModeDryRun, false)
	_, w, err := g.Plan(ctx, nil)
	if err != nil {
		return "", err
	}
	if asJSON {
		return planJSON(s.doc, w)
	}
	return helpers.RenderPlan(s.doc.Title, w, helpers.ShouldUseColor(cfg)), nil
}

type planDocument struct {
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Source      string        `json:"source"`
	Steps       wizard.Wizard `json:"steps"`
}

func planJSON(doc *guidebook.Document, w wizard.Wizard) (string, error) {
	if w == nil {
		w = wizard.Wizard{}
	}
	data, err := json.Marshal(planDocument{
		Title:       doc.Title,
		Description: doc.Description,
		Source:      doc.Source,
		Steps:       w,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode plan: %w", err)
	}
	return strings.TrimRight(string(pretty.Pretty(data)), "\n"), nil
}

func watchPlan(ctx context.Context, cfg *config.Config, target string, flags planFlags, out io.Writer) error {
	log := logger.FromContext(ctx)
	path, err := resolveGuidebook(target)
	if err != nil {
		return err
	}
	watcher, err := guidebook.NewWatcher(guidebook.DefaultWatchDebounce)
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Watch(path); err != nil {
		return err
	}
	watcher.OnChange(func(string) {
		if err := printPlan(ctx, cfg, path, flags, out); err != nil {
			helpers.OutputError(os.Stderr, err, helpers.ShouldUseColor(cfg))
		}
	})
	log.Info("Watching guidebook for changes", "path", path)
	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
