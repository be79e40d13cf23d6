package exec

import (
	"context"
	"errors"
	"io"
	"os"
	osexec "os/exec"
	"sync"
	"time"

	"github.com/compozy/guidebook/engine/core"
	"github.com/compozy/guidebook/pkg/logger"
	"github.com/compozy/guidebook/pkg/tplengine"
)

// Handler is one link of the dispatch chain.
type Handler interface {
	Name() string
	Handle(ctx context.Context, d *Dispatcher, req *Request) (Result, error)
}

// HostHook lets the embedding program claim an execution before any
// built-in handler sees it. Returning an unhandled Result defers to the
// chain.
type HostHook func(ctx context.Context, req *Request) (Result, error)

type Config struct {
	Shell      string
	Python     string
	Dir        string
	TempDir    string
	Timeout    time.Duration
	MaxCapture int64
	// Shortcuts maps a directive name to the custom executor it expands to.
	Shortcuts map[string]string
	Stdout    io.Writer
	Stderr    io.Writer
	Stdin     io.Reader
}

func DefaultConfig() Config {
	return Config{
		Shell:      "sh",
		Python:     "python3",
		MaxCapture: 1 << 20,
		Shortcuts:  map[string]string{},
	}
}

type Option func(*Dispatcher)

func WithHostHook(hook HostHook) Option {
	return func(d *Dispatcher) { d.hook = hook }
}

func WithEnv(env *Env) Option {
	return func(d *Dispatcher) {
		if env != nil {
			d.env = env
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher routes a Request to exactly one handler. It owns the scoped
// environment, the finalizers registered during a run, and any
// fire-and-forget processes it started.
type Dispatcher struct {
	cfg     Config
	env     *Env
	hook    HostHook
	metrics *Metrics
	tpl     *tplengine.TemplateEngine

	customChain []Handler
	shellChain  []Handler
	pythonChain []Handler

	// run and start execute prepared commands; replaced in tests.
	run      func(*osexec.Cmd) error
	start    func(*osexec.Cmd) error
	lookPath func(name, path string) (string, error)

	mu         sync.Mutex
	finalizers []*Request
	background []*process
	closed     bool
}

func NewDispatcher(cfg Config, opts ...Option) *Dispatcher {
	defaults := DefaultConfig()
	if cfg.Shell == "" {
		cfg.Shell = defaults.Shell
	}
	if cfg.Python == "" {
		cfg.Python = defaults.Python
	}
	if cfg.MaxCapture == 0 {
		cfg.MaxCapture = defaults.MaxCapture
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	d := &Dispatcher{
		cfg:      cfg,
		tpl:      tplengine.NewEngine(),
		run:      (*osexec.Cmd).Run,
		start:    (*osexec.Cmd).Start,
		lookPath: lookPathIn,
	}
	d.customChain = []Handler{finallyHandler{}, newShortcutHandler(cfg.Shortcuts), customHandler{}}
	d.shellChain = []Handler{exportHandler{}, whichHandler{}, shellHandler{}}
	d.pythonChain = []Handler{pythonHandler{}}
	for _, opt := range opts {
		opt(d)
	}
	if d.env == nil {
		d.env = ProcessEnv()
	}
	return d
}

// Env exposes the scoped environment shared by every dispatch.
func (d *Dispatcher) Env() *Env {
	return d.env
}

// ShellExec dispatches req and reports its terminal status. A non-nil
// error always accompanies core.StatusError.
func (d *Dispatcher) ShellExec(ctx context.Context, req Request) (core.Status, error) {
	res, err := d.dispatch(ctx, &req)
	if err != nil {
		return core.StatusError, err
	}
	return res.Status, nil
}

// ShellExecToString runs req synchronously with output capture forced on
// and returns what the command printed on stdout.
func (d *Dispatcher) ShellExecToString(ctx context.Context, req Request) (string, error) {
	req.Capture = true
	req.Async = false
	res, err := d.dispatch(ctx, &req)
	if err != nil {
		return res.Output, err
	}
	return res.Output, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, req *Request) (Result, error) {
	log := logger.FromContext(ctx).With("task_id", req.TaskID, "language", req.Language)
	started := time.Now()
	if d.hook != nil {
		res, err := d.hook(ctx, req)
		if err != nil || res.Handled {
			d.metrics.observe("host", res, err, time.Since(started))
			return settle(res, err)
		}
	}
	chain, err := d.chainFor(req)
	if err != nil {
		d.metrics.observe("unsupported", Result{}, err, time.Since(started))
		return failure(""), err
	}
	return d.runChain(ctx, log, chain, req, started)
}

func (d *Dispatcher) chainFor(req *Request) ([]Handler, error) {
	switch {
	case req.Exec != "":
		return d.customChain, nil
	case IsShellish(req.Language):
		return d.shellChain, nil
	case IsPythonic(req.Language):
		return d.pythonChain, nil
	default:
		return nil, core.NewUnsupportedLanguageError(req.Language)
	}
}

func (d *Dispatcher) runChain(
	ctx context.Context,
	log logger.Logger,
	chain []Handler,
	req *Request,
	started time.Time,
) (Result, error) {
	for _, h := range chain {
		res, err := h.Handle(ctx, d, req)
		if err == nil && !res.Handled {
			continue
		}
		log.Debug("Dispatched task", "handler", h.Name(), "status", res.Status, "duration", time.Since(started))
		d.metrics.observe(h.Name(), res, err, time.Since(started))
		return settle(res, err)
	}
	// every chain ends in a handler that always claims the request
	return failure(""), core.NewUnsupportedLanguageError(req.Language)
}

// settle normalizes a handler outcome: errors imply StatusError and a
// handled result without a status counts as success.
func settle(res Result, err error) (Result, error) {
	res.Handled = true
	if err != nil {
		res.Status = core.StatusError
		return res, err
	}
	if res.Status == core.StatusBlank {
		res.Status = core.StatusSuccess
	}
	if res.Status == core.StatusError {
		return res, errors.New("executor reported failure")
	}
	return res, nil
}

// Close runs registered finalizers in reverse registration order and then
// terminates fire-and-forget processes still running. It is safe to call
// more than once.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	finalizers := d.finalizers
	background := d.background
	d.finalizers = nil
	d.background = nil
	d.mu.Unlock()

	log := logger.FromContext(ctx)
	var errs []error
	for i := len(finalizers) - 1; i >= 0; i-- {
		req := finalizers[i]
		log.Debug("Running finalizer", "task_id", req.TaskID)
		if _, err := d.dispatch(ctx, req); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range background {
		p.stop()
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) registerFinalizer(req *Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finalizers = append(d.finalizers, req)
}

func (d *Dispatcher) track(p *process) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.background = append(d.background, p)
}
