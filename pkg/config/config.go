package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	// ErrConfigNotFound is returned when the workspace file does not exist
	ErrConfigNotFound = errors.New("workspace configuration not found")

	// ErrInvalidConfig is returned when the loaded configuration fails validation
	ErrInvalidConfig = errors.New("invalid workspace configuration")
)

// EnvPrefix is the prefix for environment overrides, e.g. LLMOPS_LLM_PROVIDER
const EnvPrefix = "LLMOPS"

// Config is the workspace configuration
type Config struct {
	Version       int                 `mapstructure:"version"`
	ProjectName   string              `mapstructure:"project_name"`
	Description   string              `mapstructure:"description"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Prompts       PromptsConfig       `mapstructure:"prompts"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Payroll       PayrollConfig       `mapstructure:"payroll"`
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ObservabilityConfig selects and tunes the telemetry sinks
type ObservabilityConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Tool            string        `mapstructure:"tool"`
	Async           bool          `mapstructure:"async"`
	BufferSize      int           `mapstructure:"buffer_size"`
	CapturePayloads bool          `mapstructure:"capture_payloads"`
	Retention       int           `mapstructure:"retention"`
	Phoenix         PhoenixConfig `mapstructure:"phoenix"`
	Redis           RedisConfig   `mapstructure:"redis"`
	Tracing         TracingConfig `mapstructure:"tracing"`
}

type PhoenixConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	ProjectID  string        `mapstructure:"project_id"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
	MaxLen   int64  `mapstructure:"max_len"`
}

// TracingConfig configures the OTLP exporter
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Protocol string `mapstructure:"protocol"`
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type PromptsConfig struct {
	Source string    `mapstructure:"source"`
	Folder string    `mapstructure:"folder"`
	GCS    GCSConfig `mapstructure:"gcs"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`
	Endpoint        string `mapstructure:"endpoint"`
}

// LLMConfig selects the provider behind prompt-driven agents
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	Region      string  `mapstructure:"region"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
}

type PayrollConfig struct {
	DirectoryFile string `mapstructure:"directory_file"`
	SystemPrompt  string `mapstructure:"system_prompt"`
}

type ServerConfig struct {
	HTTPPort int `mapstructure:"http_port"`
	GRPCPort int `mapstructure:"grpc_port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var validTools = map[string]bool{"phoenix": true, "redis": true, "log": true, "memory": true, "none": true}

var validProviders = map[string]bool{"bedrock": true, "openai": true, "gemini": true, "mock": true}

// SetDefaults registers the workspace defaults on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("version", 1)
	v.SetDefault("description", "")

	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.tool", "phoenix")
	v.SetDefault("observability.async", true)
	v.SetDefault("observability.buffer_size", 256)
	v.SetDefault("observability.capture_payloads", false)
	v.SetDefault("observability.retention", 100)
	v.SetDefault("observability.phoenix.base_url", "http://localhost:6006")
	v.SetDefault("observability.phoenix.project_id", "")
	v.SetDefault("observability.phoenix.api_key", "")
	v.SetDefault("observability.phoenix.timeout", 10*time.Second)
	v.SetDefault("observability.phoenix.max_retries", 3)
	v.SetDefault("observability.redis.addr", "localhost:6379")
	v.SetDefault("observability.redis.password", "")
	v.SetDefault("observability.redis.db", 0)
	v.SetDefault("observability.redis.stream", "llmops:events")
	v.SetDefault("observability.redis.max_len", 10000)
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.protocol", "http")
	v.SetDefault("observability.tracing.endpoint", "http://localhost:6006")
	v.SetDefault("observability.tracing.insecure", true)

	v.SetDefault("prompts.source", "local")
	v.SetDefault("prompts.folder", "prompts")
	v.SetDefault("prompts.gcs.bucket", "")
	v.SetDefault("prompts.gcs.prefix", "")
	v.SetDefault("prompts.gcs.credentials_file", "")
	v.SetDefault("prompts.gcs.credentials_json", "")
	v.SetDefault("prompts.gcs.endpoint", "")

	v.SetDefault("llm.provider", "mock")
	v.SetDefault("llm.model", "amazon.titan-text-express-v1")
	v.SetDefault("llm.region", "us-east-1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.top_p", 0.9)

	v.SetDefault("payroll.directory_file", "")
	v.SetDefault("payroll.system_prompt", "payroll_system")

	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 9090)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// envAliases are the unprefixed environment names honored alongside LLMOPS_*
var envAliases = map[string][]string{
	"project_name":                   {"LLMOPS_PROJECT_NAME", "LLM_OBSERVE_PROJECT_NAME"},
	"observability.tool":             {"LLMOPS_OBSERVABILITY_TOOL", "LLM_OBSERVE_TOOL"},
	"observability.phoenix.base_url": {"LLMOPS_OBSERVABILITY_PHOENIX_BASE_URL", "PHOENIX_BASE_URL"},
	"observability.phoenix.api_key":  {"LLMOPS_OBSERVABILITY_PHOENIX_API_KEY", "PHOENIX_API_KEY"},
	"observability.tracing.endpoint": {"LLMOPS_OBSERVABILITY_TRACING_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"},
	"observability.redis.addr":       {"LLMOPS_OBSERVABILITY_REDIS_ADDR", "REDIS_ADDR"},
	"llm.region":                     {"LLMOPS_LLM_REGION", "AWS_REGION"},
	"llm.api_key":                    {"LLMOPS_LLM_API_KEY"},
	"prompts.gcs.credentials_file":   {"LLMOPS_PROMPTS_GCS_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS"},
	"prompts.gcs.credentials_json":   {"LLMOPS_PROMPTS_GCS_CREDENTIALS_JSON"},
	"prompts.gcs.endpoint":           {"LLMOPS_PROMPTS_GCS_ENDPOINT"},
}

// LoadOptions controls where Load reads from
type LoadOptions struct {
	// Path is the workspace YAML file
	Path string

	// EnvFile is an optional dotenv file loaded before the environment is consulted
	EnvFile string

	// Flags, when set, are bound so explicit command line values win
	Flags *pflag.FlagSet
}

// Load reads the workspace file, applies defaults, env overrides and flags, and validates the result
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	SetDefaults(v)

	if opts.Path != "" {
		raw, err := readWorkspace(opts.Path)
		if err != nil {
			return nil, err
		}
		if err := v.MergeConfigMap(raw); err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", opts.Path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if opts.Flags != nil {
		if flag := opts.Flags.Lookup("log-level"); flag != nil {
			if err := v.BindPFlag("logging.level", flag); err != nil {
				return nil, fmt.Errorf("failed to bind log-level flag: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// readWorkspace parses the YAML file and normalises shorthand forms before viper sees them
func readWorkspace(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	normalise(raw)
	return raw, nil
}

// normalise turns "observability: true|false" into the full mapping form
func normalise(raw map[string]interface{}) {
	if enabled, ok := raw["observability"].(bool); ok {
		raw["observability"] = map[string]interface{}{
			"enabled": enabled,
			"tool":    "phoenix",
		}
	}
}

// Validate checks required fields and enumerations
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.ProjectName) == "" {
		problems = append(problems, "project_name is required")
	}
	if c.Observability.Enabled && !validTools[c.Observability.Tool] {
		problems = append(problems, fmt.Sprintf("unsupported observability tool %q", c.Observability.Tool))
	}
	if !validProviders[c.LLM.Provider] {
		problems = append(problems, fmt.Sprintf("unsupported llm provider %q", c.LLM.Provider))
	}
	switch c.Prompts.Source {
	case "local", "gcs":
	default:
		problems = append(problems, fmt.Sprintf("unsupported prompts source %q", c.Prompts.Source))
	}
	if c.Prompts.Source == "gcs" && c.Prompts.GCS.Bucket == "" {
		problems = append(problems, "prompts.gcs.bucket is required when prompts.source is gcs")
	}
	switch c.Observability.Tracing.Protocol {
	case "http", "grpc":
	default:
		problems = append(problems, fmt.Sprintf("unsupported tracing protocol %q", c.Observability.Tracing.Protocol))
	}
	if c.Observability.BufferSize < 0 || c.Observability.Retention < 0 {
		problems = append(problems, "observability buffer_size and retention must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// PhoenixProject returns the Phoenix project identifier, defaulting to the project name
func (c *Config) PhoenixProject() string {
	if c.Observability.Phoenix.ProjectID != "" {
		return c.Observability.Phoenix.ProjectID
	}
	return c.ProjectName
}
