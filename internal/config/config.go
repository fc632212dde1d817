// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	Rules     RulesConfig     `mapstructure:"rules" yaml:"rules"`
	Report    ReportConfig    `mapstructure:"report" yaml:"report"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// EngineConfig tunes the scan engine.
type EngineConfig struct {
	// Concurrency is the number of files analyzed in parallel.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	// FailOnParseError aborts the scan on the first file that cannot be parsed
	// instead of recording it in the result.
	FailOnParseError bool `mapstructure:"fail_on_parse_error" yaml:"fail_on_parse_error"`
}

// DiscoveryConfig controls which files are picked up from the scan targets.
type DiscoveryConfig struct {
	ExcludeDirs      []string `mapstructure:"exclude_dirs" yaml:"exclude_dirs"`
	PythonExtensions []string `mapstructure:"python_extensions" yaml:"python_extensions"`
	JSXExtensions    []string `mapstructure:"jsx_extensions" yaml:"jsx_extensions"`
	// MaxFileSize in bytes; larger files are skipped. Zero disables the limit.
	MaxFileSize int64 `mapstructure:"max_file_size" yaml:"max_file_size"`
}

// RulesConfig groups the classifier configuration of every analyzer.
type RulesConfig struct {
	Python PythonRulesConfig `mapstructure:"python" yaml:"python"`
	JSX    JSXRulesConfig    `mapstructure:"jsx" yaml:"jsx"`
}

// PythonRulesConfig lists the names the Python classifier recognizes. Each
// option is a set of names; anything not listed is left unclassified.
type PythonRulesConfig struct {
	SourceRootNames             []string `mapstructure:"source_root_names" yaml:"source_root_names"`
	SourceBucketNames           []string `mapstructure:"source_bucket_names" yaml:"source_bucket_names"`
	SourceMethodNames           []string `mapstructure:"source_method_names" yaml:"source_method_names"`
	SQLCursorNames              []string `mapstructure:"sql_cursor_names" yaml:"sql_cursor_names"`
	SQLExecuteMethodNames       []string `mapstructure:"sql_execute_method_names" yaml:"sql_execute_method_names"`
	ProcessModuleNames          []string `mapstructure:"process_module_names" yaml:"process_module_names"`
	ProcessFunctionNames        []string `mapstructure:"process_function_names" yaml:"process_function_names"`
	DeserializeModuleNames      []string `mapstructure:"deserialize_module_names" yaml:"deserialize_module_names"`
	DeserializeFunctionNames    []string `mapstructure:"deserialize_function_names" yaml:"deserialize_function_names"`
	RawResponseConstructorNames []string `mapstructure:"raw_response_constructor_names" yaml:"raw_response_constructor_names"`
	GenericSinkNames            []string `mapstructure:"generic_sink_names" yaml:"generic_sink_names"`
	SanitizerFunctionNames      []string `mapstructure:"sanitizer_function_names" yaml:"sanitizer_function_names"`
}

// JSXRulesConfig lists the names the React analyzer recognizes.
type JSXRulesConfig struct {
	EventNames     []string `mapstructure:"event_names" yaml:"event_names"`
	StateHookNames []string `mapstructure:"state_hook_names" yaml:"state_hook_names"`
	EvalNames      []string `mapstructure:"eval_names" yaml:"eval_names"`
	DOMGlobals     []string `mapstructure:"dom_globals" yaml:"dom_globals"`
}

// ReportConfig selects the report writer.
type ReportConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
	Color  bool   `mapstructure:"color" yaml:"color"`
}

// DatabaseConfig holds the database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"-"`
}

// Report formats understood by the reporting package.
var supportedFormats = []string{"json", "sarif", "text"}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "tainttrace")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Engine --
	v.SetDefault("engine.concurrency", 8)
	v.SetDefault("engine.fail_on_parse_error", false)

	// -- Discovery --
	v.SetDefault("discovery.exclude_dirs", []string{".git", "node_modules", "__pycache__", "venv", ".venv"})
	v.SetDefault("discovery.python_extensions", []string{".py"})
	v.SetDefault("discovery.jsx_extensions", []string{".js", ".jsx", ".ts", ".tsx"})
	v.SetDefault("discovery.max_file_size", 2<<20)

	// -- Python rules --
	v.SetDefault("rules.python.source_root_names", []string{"request"})
	v.SetDefault("rules.python.source_bucket_names", []string{"GET", "POST", "COOKIES", "META", "session"})
	v.SetDefault("rules.python.source_method_names", []string{"get", "getlist"})
	v.SetDefault("rules.python.sql_cursor_names", []string{"cursor"})
	v.SetDefault("rules.python.sql_execute_method_names", []string{"execute"})
	v.SetDefault("rules.python.process_module_names", []string{"os"})
	v.SetDefault("rules.python.process_function_names", []string{"system", "popen", "spawn", "call", "check_output"})
	v.SetDefault("rules.python.deserialize_module_names", []string{"pickle", "cPickle", "yaml"})
	v.SetDefault("rules.python.deserialize_function_names", []string{"load", "loads", "unsafe_load"})
	v.SetDefault("rules.python.raw_response_constructor_names", []string{"HttpResponse"})
	v.SetDefault("rules.python.generic_sink_names", []string{"render", "redirect", "JsonResponse"})
	v.SetDefault("rules.python.sanitizer_function_names", []string{"escape", "conditional_escape", "clean", "sanitize", "strip_tags", "quote"})

	// -- JSX rules --
	v.SetDefault("rules.jsx.event_names", []string{"event", "e", "evt"})
	v.SetDefault("rules.jsx.state_hook_names", []string{"useState"})
	v.SetDefault("rules.jsx.eval_names", []string{"eval"})
	v.SetDefault("rules.jsx.dom_globals", []string{"window", "document"})

	// -- Report --
	v.SetDefault("report.format", "json")
	v.SetDefault("report.output", "")
	v.SetDefault("report.color", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The connection string usually carries a password, keep it out of files.
	_ = v.BindEnv("database.url", "TAINTTRACE_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("TAINTTRACE_DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Engine.Concurrency <= 0 {
		return fmt.Errorf("engine.concurrency must be a positive integer")
	}
	if c.Discovery.MaxFileSize < 0 {
		return fmt.Errorf("discovery.max_file_size must not be negative")
	}
	if len(c.Discovery.PythonExtensions) == 0 && len(c.Discovery.JSXExtensions) == 0 {
		return fmt.Errorf("discovery must enable at least one file extension")
	}
	if err := c.Report.Validate(); err != nil {
		return fmt.Errorf("report configuration invalid: %w", err)
	}
	if err := c.Rules.Python.Validate(); err != nil {
		return fmt.Errorf("rules.python configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the report settings.
func (r *ReportConfig) Validate() error {
	for _, f := range supportedFormats {
		if strings.EqualFold(r.Format, f) {
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q (expected one of %s)", r.Format, strings.Join(supportedFormats, ", "))
}

// ErrNoSourceRules is returned when the Python rules can never match a source.
var ErrNoSourceRules = errors.New("source_root_names, source_bucket_names and source_method_names must all be non-empty")

// Validate checks the Python rule set. Sinks and sanitizers may be empty,
// but a rule set without sources cannot produce any finding.
func (p *PythonRulesConfig) Validate() error {
	if len(p.SourceRootNames) == 0 || len(p.SourceBucketNames) == 0 || len(p.SourceMethodNames) == 0 {
		return ErrNoSourceRules
	}
	return nil
}
