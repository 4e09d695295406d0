package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional config.yaml in the working
// directory and from CURATOR_-prefixed environment variables, validates the
// result, and returns it. Environment variables win over file values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("pipeline.log_level", "info")
	v.SetDefault("pipeline.batch_limit", 0)
	v.SetDefault("pipeline.item_timeout_seconds", 600)
	v.SetDefault("server.port", 8080)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// Missing file is fine; everything can come from the environment.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("CURATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so the
	// critical ones are bound explicitly.
	bindEnvs := []struct {
		key    string
		envVar string
	}{
		{"database.url", "CURATOR_DATABASE_URL"},
		{"llm.gemini_api_key", "CURATOR_LLM_GEMINI_API_KEY"},
		{"llm.model_name", "CURATOR_LLM_MODEL_NAME"},
		{"llm.output_dir", "CURATOR_LLM_OUTPUT_DIR"},
		{"skill.command", "CURATOR_SKILL_COMMAND"},
		{"skill.output_dir", "CURATOR_SKILL_OUTPUT_DIR"},
		{"pipeline.log_level", "CURATOR_PIPELINE_LOG_LEVEL"},
		{"pipeline.batch_limit", "CURATOR_PIPELINE_BATCH_LIMIT"},
		{"pipeline.item_timeout_seconds", "CURATOR_PIPELINE_ITEM_TIMEOUT_SECONDS"},
		{"pipeline.inbox_dir", "CURATOR_PIPELINE_INBOX_DIR"},
		{"server.port", "CURATOR_SERVER_PORT"},
	}
	for _, env := range bindEnvs {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", env.envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate applies the struct tags plus the cross-field rule that exactly
// one adapter (subprocess skill or LLM evaluator) must be configured.
func validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	hasSkill := cfg.Skill.Command != ""
	hasLLM := cfg.LLM.GeminiAPIKey != ""
	if hasSkill && hasLLM {
		return fmt.Errorf("config validation failed: skill.command and llm.gemini_api_key are mutually exclusive")
	}
	if !hasSkill && !hasLLM {
		return fmt.Errorf("config validation failed: one of skill.command or llm.gemini_api_key is required")
	}

	return nil
}
