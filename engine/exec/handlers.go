package exec

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/shlex"
	"github.com/joho/godotenv"

	"github.com/compozy/guidebook/pkg/logger"
)

// RaySubmit expands the ray-submit directive: submit the body as a Ray job
// whose working directory is the body's temporary directory.
const RaySubmit = `ray job submit --runtime-env-json="{\"working_dir\": \"$MWDIR\"}" -- python3 "$MWFILENAME"`

var (
	finallyPattern = regexp.MustCompile(`^\s*finally(?:\s+(.*?))?\s*$`)
	exportPattern  = regexp.MustCompile(`^export\s+([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)
)

// finallyHandler defers the body until the dispatcher closes. A directive
// of "finally <exec>" runs the deferred body through <exec>.
type finallyHandler struct{}

func (finallyHandler) Name() string { return "finally" }

func (finallyHandler) Handle(ctx context.Context, d *Dispatcher, req *Request) (Result, error) {
	m := finallyPattern.FindStringSubmatch(req.Exec)
	if m == nil {
		return notApplicable, nil
	}
	deferred := *req
	deferred.Exec = m[1]
	deferred.Async = false
	deferred.Capture = false
	deferred.Env = maps.Clone(req.Env)
	d.registerFinalizer(&deferred)
	logger.FromContext(ctx).Debug("Registered finalizer", "task_id", req.TaskID)
	return success(""), nil
}

type shortcutHandler struct {
	shortcuts map[string]string
}

func newShortcutHandler(extra map[string]string) shortcutHandler {
	shortcuts := map[string]string{"ray-submit": RaySubmit}
	maps.Copy(shortcuts, extra)
	return shortcutHandler{shortcuts: shortcuts}
}

func (shortcutHandler) Name() string { return "shortcut" }

func (h shortcutHandler) Handle(ctx context.Context, d *Dispatcher, req *Request) (Result, error) {
	expanded, ok := h.shortcuts[strings.TrimSpace(req.Exec)]
	if !ok {
		return notApplicable, nil
	}
	rewritten := *req
	rewritten.Exec = expanded
	return customHandler{}.Handle(ctx, d, &rewritten)
}

// customHandler stores the body in a temporary file and runs the directive
// in a shell. The directive sees the file as $MWFILENAME and its directory
// as $MWDIR, and may also use {{ .File }}, {{ .Dir }}, {{ .Body }} and
// {{ .Language }}.
type customHandler struct{}

func (customHandler) Name() string { return "custom" }

func (customHandler) Handle(ctx context.Context, d *Dispatcher, req *Request) (Result, error) {
	ext := ".sh"
	if IsPythonic(req.Language) {
		ext = ".py"
	}
	file, err := d.writeScript(req.Body, ext)
	if err != nil {
		return failure(""), err
	}
	if !req.Async {
		defer func() { _ = os.Remove(file) }()
	}
	dir := filepath.Dir(file)
	command, err := d.tpl.RenderString(req.Exec, map[string]any{
		"File":     file,
		"Dir":      dir,
		"Body":     req.Body,
		"Language": req.Language,
	})
	if err != nil {
		return failure(""), fmt.Errorf("failed to render custom executor: %w", err)
	}
	run := *req
	run.Env = maps.Clone(req.Env)
	if run.Env == nil {
		run.Env = make(map[string]string, 2)
	}
	run.Env["MWFILENAME"] = file
	run.Env["MWDIR"] = dir
	return d.spawn(ctx, &run, d.cfg.Shell, "-c", command)
}

// exportHandler applies a lone `export NAME=value` to the scoped
// environment without spawning a shell, unless the value needs command
// substitution.
type exportHandler struct{}

func (exportHandler) Name() string { return "export" }

func (exportHandler) Handle(ctx context.Context, d *Dispatcher, req *Request) (Result, error) {
	name, raw, ok := ParseExport(req.Body)
	if !ok {
		return notApplicable, nil
	}
	value, err := evalExportValue(ctx, d, req, raw)
	if err != nil {
		return failure(""), fmt.Errorf("failed to evaluate export of %s: %w", name, err)
	}
	d.env.Set(name, value)
	logger.FromContext(ctx).Debug("Exported variable", "name", name)
	return success(""), nil
}

// ParseExport recognizes a single-line `export NAME=value` statement.
func ParseExport(body string) (name, value string, ok bool) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || strings.ContainsAny(trimmed, "\r\n") {
		return "", "", false
	}
	m := exportPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return "", "", false
	}
	return m[1], strings.TrimSpace(m[2]), true
}

// exportScratchVar receives the value as a shell assignment, which neither
// splits words nor expands globs.
const exportScratchVar = "__guidebook_export"

func evalExportValue(ctx context.Context, d *Dispatcher, req *Request, raw string) (string, error) {
	if strings.Contains(raw, "$(") || strings.Contains(raw, "`") {
		sub := *req
		sub.Capture = true
		sub.Async = false
		script := exportScratchVar + "=" + raw + "; printf '%s' \"$" + exportScratchVar + "\""
		res, err := d.spawn(ctx, &sub, d.cfg.Shell, "-c", script)
		if err != nil {
			return "", err
		}
		return res.Output, nil
	}
	if !strings.HasPrefix(raw, "'") {
		raw = os.Expand(raw, func(key string) string {
			if v, ok := req.Env[key]; ok {
				return v
			}
			return d.env.Get(key)
		})
	}
	parsed, err := godotenv.Unmarshal("V=" + raw)
	if err != nil {
		return "", err
	}
	return parsed["V"], nil
}

// whichHandler answers `which <name>` against the scoped PATH.
type whichHandler struct{}

func (whichHandler) Name() string { return "which" }

func (whichHandler) Handle(ctx context.Context, d *Dispatcher, req *Request) (Result, error) {
	line, ok := singleLine(req.Body)
	if !ok {
		return notApplicable, nil
	}
	words, err := shlex.Split(line)
	if err != nil || len(words) != 2 || words[0] != "which" {
		return notApplicable, nil
	}
	path := d.env.Get("PATH")
	if v, ok := req.Env["PATH"]; ok {
		path = v
	}
	found, err := d.lookPath(words[1], path)
	if err != nil {
		return failure(""), err
	}
	logger.FromContext(ctx).Debug("Resolved executable", "name", words[1], "path", found)
	if req.Capture {
		return success(found + "\n"), nil
	}
	_, _ = fmt.Fprintln(d.cfg.Stdout, found)
	return success(""), nil
}

type shellHandler struct{}

func (shellHandler) Name() string { return "shell" }

func (shellHandler) Handle(ctx context.Context, d *Dispatcher, req *Request) (Result, error) {
	shell := d.cfg.Shell
	switch strings.ToLower(strings.TrimSpace(req.Language)) {
	case "bash", "zsh":
		shell = strings.ToLower(strings.TrimSpace(req.Language))
	}
	return d.spawn(ctx, req, shell, "-c", req.Body)
}

type pythonHandler struct{}

func (pythonHandler) Name() string { return "python" }

func (pythonHandler) Handle(ctx context.Context, d *Dispatcher, req *Request) (Result, error) {
	file, err := d.writeScript(req.Body, ".py")
	if err != nil {
		return failure(""), err
	}
	if !req.Async {
		defer func() { _ = os.Remove(file) }()
	}
	return d.spawn(ctx, req, d.cfg.Python, file)
}
