package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/compozy/guidebook/cli/helpers"
	"github.com/compozy/guidebook/engine/choices"
	"github.com/compozy/guidebook/engine/compile"
	"github.com/compozy/guidebook/engine/exec"
	"github.com/compozy/guidebook/engine/guide"
	"github.com/compozy/guidebook/engine/guidebook"
	"github.com/compozy/guidebook/engine/infra/monitoring"
	"github.com/compozy/guidebook/engine/memo"
	"github.com/compozy/guidebook/engine/optimize"
	"github.com/compozy/guidebook/engine/store"
	"github.com/compozy/guidebook/engine/validate"
	"github.com/compozy/guidebook/pkg/config"
	"github.com/compozy/guidebook/pkg/logger"
	"github.com/compozy/guidebook/pkg/version"
)

// session holds everything one guidebook invocation needs, from the
// loaded document to the stores its results are written back to.
type session struct {
	cfg        *config.Config
	fs         afero.Fs
	doc        *guidebook.Document
	compiler   *compile.Compiler
	state      *choices.State
	memos      *memo.Memos
	profiles   *store.ProfileStore
	profile    *store.Profile
	statuses   *store.StatusStore
	dispatcher *exec.Dispatcher
	monitoring *monitoring.Service
}

type sessionOptions struct {
	// replay starts from the profile's answers instead of asking again.
	replay bool
}

func openSession(ctx context.Context, cfg *config.Config, target string, opts sessionOptions) (*session, error) {
	log := logger.FromContext(ctx)
	fs := afero.NewOsFs()
	path, err := resolveGuidebook(target)
	if err != nil {
		return nil, err
	}
	doc, err := guidebook.Load(fs, path)
	if err != nil {
		return nil, err
	}
	if err := checkRequires(doc); err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, fs: fs, doc: doc}
	s.compiler = compile.New(doc, compile.Options{Aprioris: cfg.Optimize.Aprioris})
	if err := s.openStores(ctx); err != nil {
		return nil, err
	}
	s.memos = memo.New(cfg.Store.ValidationCacheSize)
	statuses, err := s.statuses.Load(ctx)
	if err != nil {
		log.Warn("Ignoring unreadable status memo", "path", s.statuses.Path(), "error", err)
	} else {
		s.memos.StatusMemo = statuses
	}
	s.memos.Suggestions = memo.SuggestionsFrom(s.profile.Choices)
	s.state = choices.New()
	if opts.replay && s.profile.Choices != nil {
		s.state = choices.FromSnapshot(s.profile.Choices.Snapshot())
	}
	if err := s.openDispatcher(ctx); err != nil {
		return nil, err
	}
	log.Debug("Guidebook loaded", "path", path, "profile", s.profile.Name, "answers", s.state.Len())
	return s, nil
}

// resolveGuidebook accepts a guidebook file or a directory holding
// exactly one guidebook.
func resolveGuidebook(target string) (string, error) {
	if target == "" {
		target = "."
	}
	info, err := os.Stat(target)
	if err != nil {
		return "", fmt.Errorf("failed to open guidebook %s: %w", target, err)
	}
	if !info.IsDir() {
		return target, nil
	}
	files, err := guidebook.NewDiscoverer(target).Discover(nil, nil)
	if err != nil {
		return "", err
	}
	switch len(files) {
	case 0:
		return "", helpers.NewCliError("NO_GUIDEBOOK", "no guidebook found in "+target)
	case 1:
		return files[0], nil
	}
	rel := make([]string, 0, len(files))
	for _, f := range files {
		if r, err := filepath.Rel(target, f); err == nil {
			f = r
		}
		rel = append(rel, f)
	}
	return "", helpers.NewCliError("AMBIGUOUS_GUIDEBOOK",
		fmt.Sprintf("%d guidebooks found in %s, name one", len(files), target), fmt.Sprint(rel))
}

func checkRequires(doc *guidebook.Document) error {
	current := version.Get().Version
	ok, err := version.Satisfies(current, doc.Requires)
	if err != nil {
		return err
	}
	if !ok {
		return helpers.NewCliError("VERSION_MISMATCH",
			fmt.Sprintf("guidebook requires %s, this is %s", doc.Requires, current))
	}
	return nil
}

func (s *session) openStores(ctx context.Context) error {
	profilesDir, err := store.DefaultProfilesPath(s.cfg.Store.ProfilesPath)
	if err != nil {
		return err
	}
	statusPath, err := store.DefaultStatusPath(s.cfg.Store.CachePath)
	if err != nil {
		return err
	}
	locking := store.WithLocking(s.cfg.Store.Locking)
	s.profiles = store.NewProfileStore(s.fs, profilesDir, locking)
	s.statuses = store.NewStatusStore(s.fs, statusPath, locking)
	s.profile, err = s.profiles.Restore(ctx, s.cfg.Run.Profile)
	return err
}

func (s *session) openDispatcher(ctx context.Context) error {
	s.monitoring = monitoring.NewMonitoringServiceWithFallback(ctx, &monitoring.Config{
		Enabled: s.cfg.Monitoring.Enabled || s.cfg.Monitoring.Path != "",
		Path:    s.cfg.Monitoring.Path,
	})
	metrics, err := exec.NewMetrics(s.monitoring.Meter())
	if err != nil {
		return fmt.Errorf("failed to create dispatch metrics: %w", err)
	}
	env := exec.ProcessEnv()
	if s.cfg.Exec.DotEnv != "" {
		if err := env.LoadDotenv(s.cfg.Exec.DotEnv); err != nil {
			return err
		}
	}
	s.dispatcher = exec.NewDispatcher(exec.Config{
		Shell:      s.cfg.Exec.Shell,
		Python:     s.cfg.Exec.Python,
		Dir:        filepath.Dir(s.doc.Source),
		Timeout:    s.cfg.Exec.Timeout,
		MaxCapture: int64(s.cfg.Exec.MaxCapture),
		Shortcuts:  s.cfg.Exec.Shortcuts,
	}, exec.WithEnv(env), exec.WithMetrics(metrics))
	return nil
}

// newGuide wires the engine for this session.
func (s *session) newGuide(mode guide.Mode, interactive bool, options ...guide.Option) *guide.Guide {
	opts := guide.Options{
		Interactive: interactive,
		Mode:        mode,
		Optimize:    s.cfg.Optimize.Enabled,
		OptimizeOptions: optimize.Options{
			Validate:    s.cfg.Optimize.Validate,
			ThrowErrors: s.cfg.Optimize.ThrowErrors,
			Concurrency: s.cfg.Optimize.ValidateConcurrency,
		},
		Concurrency: s.cfg.Run.Concurrency,
		Verbose:     s.cfg.CLI.Verbose || !s.cfg.Exec.Quiet,
	}
	options = append([]guide.Option{guide.WithValidator(validate.NewShellValidator(s.dispatcher, s.memos))}, options...)
	return guide.New(s.compiler, s.state, s.memos, s.dispatcher, opts, options...)
}

// close runs finalizers, then persists answers and statuses. Nothing is
// persisted after a dry run.
func (s *session) close(ctx context.Context, persist bool) error {
	var errs []error
	if err := s.dispatcher.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("finalizers failed: %w", err))
	}
	if persist {
		s.profile.Choices = s.state
		if err := s.profiles.Save(ctx, s.profile); err != nil {
			errs = append(errs, err)
		}
		if err := s.statuses.Save(ctx, s.memos.StatusMemo); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.monitoring.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
