package helpers

import (
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/compozy/guidebook/pkg/config"
)

const (
	defaultWidth = 80
	// NarrowWidth is the width under which the compact presentation is used.
	NarrowWidth = 60
)

var ciEnvironmentVars = []string{
	"CI",
	"JENKINS_HOME",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"CIRCLECI",
	"TRAVIS",
	"BUILDKITE",
	"DRONE",
	"TF_BUILD",
	"APPVEYOR",
	"BITBUCKET_COMMIT",
	"CODEBUILD_BUILD_ID",
	"TEAMCITY_VERSION",
	"CONTINUOUS_INTEGRATION",
}

// IsRunningInCI checks if we're running in a CI/CD environment
func IsRunningInCI() bool {
	for _, v := range ciEnvironmentVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// IsInteractiveTerminal reports whether questions can be asked: both ends
// are terminals, the terminal is not dumb, and we are not in CI.
func IsInteractiveTerminal() bool {
	if IsRunningInCI() {
		return false
	}
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return false
	}
	t := os.Getenv("TERM")
	return t != "" && t != "dumb"
}

// ShouldUseColor determines if colored output should be used
func ShouldUseColor(cfg *config.Config) bool {
	if cfg != nil && cfg.CLI.NoColor {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if !isTerminal(os.Stdout) {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

// TerminalWidth returns the width of stdout, or a default when stdout is
// not a terminal.
func TerminalWidth() int {
	if !isTerminal(os.Stdout) {
		return defaultWidth
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

// IsNarrow reports whether the compact presentation should be used.
func IsNarrow(cfg *config.Config) bool {
	if cfg != nil && cfg.CLI.Narrow {
		return true
	}
	return TerminalWidth() < NarrowWidth
}
