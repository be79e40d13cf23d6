package definition

import (
	"reflect"
	"time"
)

var (
	stringType   = reflect.TypeOf("")
	boolType     = reflect.TypeOf(false)
	intType      = reflect.TypeOf(0)
	durationType = reflect.TypeOf(time.Duration(0))
)

// CreateRegistry lists every configuration field settable from the
// command line.
func CreateRegistry() *Registry {
	registry := NewRegistry()
	registerRunFields(registry)
	registerOptimizeFields(registry)
	registerExecFields(registry)
	registerStoreFields(registry)
	registerCLIFields(registry)
	registerLogFields(registry)
	registerMonitoringFields(registry)
	return registry
}

func registerRunFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "run.mode",
		Default: "auto",
		CLIFlag: "mode",
		EnvVar:  "GUIDEBOOK_RUN_MODE",
		Type:    stringType,
		Help:    "Execution mode: auto, step or dry-run",
	})
	registry.Register(&FieldDef{
		Path:      "run.profile",
		Default:   "default",
		CLIFlag:   "profile",
		Shorthand: "p",
		EnvVar:    "GUIDEBOOK_RUN_PROFILE",
		Type:      stringType,
		Help:      "Profile whose answers are restored and saved",
	})
	registry.Register(&FieldDef{
		Path:    "run.concurrency",
		Default: 1,
		CLIFlag: "concurrency",
		EnvVar:  "GUIDEBOOK_RUN_CONCURRENCY",
		Type:    intType,
		Help:    "Task steps presented at once (side effects stay ordered)",
	})
}

func registerOptimizeFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "optimize.enabled",
		Default: true,
		CLIFlag: "optimize",
		EnvVar:  "GUIDEBOOK_OPTIMIZE_ENABLED",
		Type:    boolType,
		Help:    "Optimize the plan before running it",
	})
	registry.Register(&FieldDef{
		Path:    "optimize.aprioris",
		Default: true,
		CLIFlag: "aprioris",
		EnvVar:  "GUIDEBOOK_OPTIMIZE_APRIORIS",
		Type:    boolType,
		Help:    "Answer choices about the host platform automatically",
	})
	registry.Register(&FieldDef{
		Path:    "optimize.validate",
		Default: true,
		CLIFlag: "validate",
		EnvVar:  "GUIDEBOOK_OPTIMIZE_VALIDATE",
		Type:    boolType,
		Help:    "Drop tasks whose validation already passes",
	})
}

func registerExecFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "exec.shell",
		Default: "sh",
		CLIFlag: "shell",
		EnvVar:  "GUIDEBOOK_EXEC_SHELL",
		Type:    stringType,
		Help:    "Shell used for shell tasks",
	})
	registry.Register(&FieldDef{
		Path:    "exec.python",
		Default: "python3",
		CLIFlag: "python",
		EnvVar:  "GUIDEBOOK_EXEC_PYTHON",
		Type:    stringType,
		Help:    "Interpreter used for python tasks",
	})
	registry.Register(&FieldDef{
		Path:    "exec.timeout",
		Default: time.Duration(0),
		CLIFlag: "timeout",
		EnvVar:  "GUIDEBOOK_EXEC_TIMEOUT",
		Type:    durationType,
		Help:    "Per task timeout, zero for none",
	})
	registry.Register(&FieldDef{
		Path:    "exec.dotenv",
		Default: "",
		CLIFlag: "env-file",
		EnvVar:  "GUIDEBOOK_EXEC_DOTENV",
		Type:    stringType,
		Help:    "Dotenv file seeding the task environment",
	})
}

func registerStoreFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "store.profiles_path",
		Default: "",
		CLIFlag: "profiles-path",
		EnvVar:  "GUIDEBOOK_STORE_PROFILES_PATH",
		Type:    stringType,
		Help:    "Directory holding the profiles directory",
	})
	registry.Register(&FieldDef{
		Path:    "store.cache_path",
		Default: "",
		CLIFlag: "cache-path",
		EnvVar:  "GUIDEBOOK_STORE_CACHE_PATH",
		Type:    stringType,
		Help:    "Directory holding the status memo",
	})
}

func registerCLIFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "cli.narrow",
		Default: false,
		CLIFlag: "narrow",
		EnvVar:  "GUIDEBOOK_CLI_NARROW",
		Type:    boolType,
		Help:    "Use a compact presentation",
	})
	registry.Register(&FieldDef{
		Path:    "cli.no_color",
		Default: false,
		CLIFlag: "no-color",
		EnvVar:  "NO_COLOR",
		Type:    boolType,
		Help:    "Disable colored output",
	})
	registry.Register(&FieldDef{
		Path:      "cli.verbose",
		Default:   false,
		CLIFlag:   "verbose",
		Shorthand: "V",
		EnvVar:    "GUIDEBOOK_CLI_VERBOSE",
		Type:      boolType,
		Help:      "Show housekeeping tasks and task output",
	})
}

func registerLogFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "log.level",
		Default: "info",
		CLIFlag: "log-level",
		EnvVar:  "GUIDEBOOK_LOG_LEVEL",
		Type:    stringType,
		Help:    "Log level: debug, info, warn, error or disabled",
	})
	registry.Register(&FieldDef{
		Path:    "log.json",
		Default: false,
		CLIFlag: "log-json",
		EnvVar:  "GUIDEBOOK_LOG_JSON",
		Type:    boolType,
		Help:    "Log in JSON",
	})
	registry.Register(&FieldDef{
		Path:    "log.source",
		Default: false,
		CLIFlag: "log-source",
		EnvVar:  "GUIDEBOOK_LOG_SOURCE",
		Type:    boolType,
		Help:    "Include caller information in logs",
	})
}

func registerMonitoringFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "monitoring.path",
		Default: "",
		CLIFlag: "metrics-file",
		EnvVar:  "GUIDEBOOK_MONITORING_PATH",
		Type:    stringType,
		Help:    "Write dispatch metrics to this Prometheus textfile",
	})
}
