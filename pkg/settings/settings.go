// Package settings resolves the run configuration from flags, environment,
// a .env file and an optional YAML config file.
package settings

import (
	"os"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	AppName   = "marionette"
	EnvPrefix = "MARIONETTE"

	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	// ModeAsk leaves the choice to the operator at startup.
	ModeAsk         = ""
	ModeAutonomous  = "autonomous"
	ModeInteractive = "interactive"

	DefaultModel         = "qwen3:8b"
	DefaultOllamaBaseURL = "http://127.0.0.1:11434"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

type Settings struct {
	Provider        string `mapstructure:"provider"`
	BaseURL         string `mapstructure:"base-url"`
	Model           string `mapstructure:"model"`
	SupervisorModel string `mapstructure:"supervisor-model"`
	APIKey          string `mapstructure:"api-key"`
	Think           bool   `mapstructure:"think"`
	ReasoningEffort string `mapstructure:"reasoning-effort"`
	Mode            string `mapstructure:"mode"`
	PromptsFile     string `mapstructure:"prompts"`
	RenderMarkdown  bool   `mapstructure:"render-markdown"`
	NoColor         bool   `mapstructure:"no-color"`
}

// AddFlags registers the run flags as persistent flags of cmd.
func AddFlags(cmd *cobra.Command) {
	fs := cmd.PersistentFlags()
	fs.String("config", "", "Config file (default $HOME/.marionette/config.yaml)")
	fs.String("provider", ProviderOllama, "Model provider (ollama or openai)")
	fs.String("base-url", "", "Provider base URL (defaults depend on the provider)")
	fs.String("model", DefaultModel, "Model used by the agent")
	fs.String("supervisor-model", "", "Model used by the supervisor (defaults to --model)")
	fs.String("api-key", "", "API key for OpenAI-compatible providers")
	fs.Bool("think", true, "Ask the model to expose its reasoning")
	fs.String("reasoning-effort", "", "reasoning_effort sent to OpenAI-compatible reasoning models (low, medium, high)")
	fs.String("mode", ModeAsk, "Skip the startup question: autonomous or interactive")
	fs.String("prompts", "", "YAML file overriding the built-in prompts")
	fs.Bool("render-markdown", false, "Print a rendered markdown recap of every agent answer")
	fs.Bool("no-color", false, "Disable coloured output")
}

// NewViper builds a viper instance bound to the flags of cmd. A .env file in the
// working directory is loaded into the environment first.
func NewViper(cmd *cobra.Command) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not load .env")
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api-key", EnvPrefix+"_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, errors.Wrap(err, "binding api key env")
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, errors.Wrap(err, "binding flags")
	}

	configFile := v.GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+AppName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "reading config")
		}
	} else {
		log.Debug().Str("config", v.ConfigFileUsed()).Msg("loaded config file")
	}

	return v, nil
}

// FromViper decodes, fills provider defaults and validates.
func FromViper(v *viper.Viper) (*Settings, error) {
	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "decoding settings")
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) applyDefaults() {
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	s.Mode = strings.ToLower(strings.TrimSpace(s.Mode))
	if s.Provider == "" {
		s.Provider = ProviderOllama
	}
	if s.BaseURL == "" {
		switch s.Provider {
		case ProviderOllama:
			s.BaseURL = DefaultOllamaBaseURL
		case ProviderOpenAI:
			s.BaseURL = DefaultOpenAIBaseURL
		}
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.SupervisorModel == "" {
		s.SupervisorModel = s.Model
	}
}

func (s Settings) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.Provider, validation.Required, validation.In(ProviderOllama, ProviderOpenAI)),
		validation.Field(&s.BaseURL, validation.Required, is.URL),
		validation.Field(&s.Model, validation.Required),
		validation.Field(&s.SupervisorModel, validation.Required),
		validation.Field(&s.Mode, validation.In(ModeAutonomous, ModeInteractive)),
		validation.Field(&s.ReasoningEffort, validation.In("minimal", "low", "medium", "high")),
	)
	if err != nil {
		return errors.Wrap(err, "invalid settings")
	}
	return nil
}
