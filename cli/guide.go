package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/compozy/guidebook/cli/helpers"
	"github.com/compozy/guidebook/engine/guide"
	"github.com/compozy/guidebook/pkg/config"
	"github.com/compozy/guidebook/pkg/logger"
)

// GuideCmd walks a guidebook interactively, asking every choice.
func GuideCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "guide [guidebook]",
		Short: "Answer a guidebook's choices and run the resulting tasks",
		Long: `Walk through a guidebook interactively. Choices are asked one at a time,
with the answers of the selected profile suggested, and the tasks a choice
depends on run before it is asked. The answers are saved to the profile.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuidebook(cmd, firstArg(args), true)
		},
	}
}

// RunCmd replays the saved answers of a profile without asking.
func RunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [guidebook]",
		Short: "Run a guidebook with the answers saved in a profile",
		Long: `Run a guidebook without asking anything. Every choice must already be
answered by the selected profile; otherwise the run fails listing how many
questions are unresolved.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuidebook(cmd, firstArg(args), false)
		},
	}
}

func runGuidebook(cmd *cobra.Command, target string, interactive bool) error {
	ctx := cmd.Context()
	log := logger.FromContext(ctx)
	cfg := config.FromContext(ctx)
	if interactive && !helpers.IsInteractiveTerminal() {
		log.Warn("No interactive terminal, choices cannot be asked")
		interactive = false
	}
	mode := guide.Mode(cfg.Run.Mode)
	if mode == guide.ModeStep && !interactive {
		return helpers.NewCliError("STEP_NEEDS_TERMINAL", "step mode needs an interactive terminal")
	}
	s, err := openSession(ctx, cfg, target, sessionOptions{replay: !interactive})
	if err != nil {
		return err
	}
	g := s.newGuide(mode, interactive, sessionUI(cfg, interactive)...)
	report, runErr := g.Run(ctx)
	closeErr := s.close(context.WithoutCancel(ctx), mode != guide.ModeDryRun)
	if closeErr != nil {
		log.Error("Failed to finish the run cleanly", "error", closeErr)
	}
	if runErr != nil {
		return runErr
	}
	if !report.Success && mode != guide.ModeDryRun {
		return helpers.NewCliError("INCOMPLETE", "guidebook incomplete")
	}
	return closeErr
}

func sessionUI(cfg *config.Config, interactive bool) []guide.Option {
	color := helpers.ShouldUseColor(cfg)
	presenter := helpers.NewPresenter(os.Stdout, color, helpers.IsNarrow(cfg), helpers.TerminalWidth())
	options := []guide.Option{guide.WithPresenter(presenter)}
	if interactive {
		accessible := os.Getenv("ACCESSIBLE") != ""
		options = append(options,
			guide.WithPrompter(helpers.NewPrompter(helpers.WithAccessible(accessible))),
			guide.WithPauser(helpers.NewPauser(accessible)),
		)
	}
	return options
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
