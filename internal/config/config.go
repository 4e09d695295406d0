// Package config defines the application configuration and loads it from
// environment variables and an optional YAML file. Environment variables
// take precedence over file values.
package config

// Config holds all application configuration, grouped by concern.
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Skill    SkillConfig    `mapstructure:"skill"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
}

// PipelineConfig tunes the orchestrator and retry behavior.
type PipelineConfig struct {
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// BatchLimit caps how many items one run processes. Zero means no cap.
	BatchLimit int `mapstructure:"batch_limit" validate:"gte=0"`

	// ItemTimeoutSeconds bounds each adapter invocation.
	ItemTimeoutSeconds int `mapstructure:"item_timeout_seconds" validate:"required,gt=0"`

	// BackoffHours is the retry delay table indexed by attempt count.
	// Empty means the built-in default of 1h, 4h, 12h, 24h.
	BackoffHours []int `mapstructure:"backoff_hours" validate:"dive,gt=0"`

	// PermanentPatterns are case-insensitive substrings of adapter output
	// that mark a failure as unrecoverable. Empty means the built-in set.
	PermanentPatterns []string `mapstructure:"permanent_patterns"`

	// InboxDir is the directory the fetch collaborator scans for new
	// captured items.
	InboxDir string `mapstructure:"inbox_dir"`
}

// DatabaseConfig contains the database connection settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// SkillConfig configures the subprocess skill adapter. Command is empty when
// the in-process LLM evaluator is used instead.
type SkillConfig struct {
	Command    string            `mapstructure:"command"`
	PluginDirs []string          `mapstructure:"plugin_dirs"`
	OutputDir  string            `mapstructure:"output_dir"`
	Skills     map[string]string `mapstructure:"skills"`
}

// LLMConfig contains the in-process evaluator settings. GeminiAPIKey is
// empty when the subprocess adapter is used instead.
type LLMConfig struct {
	GeminiAPIKey       string `mapstructure:"gemini_api_key"`
	ModelName          string `mapstructure:"model_name"`
	PromptTemplatePath string `mapstructure:"prompt_template_path"`
	OutputDir          string `mapstructure:"output_dir"`
}

// ServerConfig contains the dashboard server settings.
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"required,gt=0,lt=65536"`
}
