package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Specification struct {
	Provider string `yaml:"provider"`

	GeminiAPIKey     string `yaml:"geminiApiKey" envconfig:"GEMINI_API_KEY"`
	GeminiModel      string `yaml:"geminiModel" envconfig:"GEMINI_MODEL"`
	OpenAIAPIKey     string `yaml:"openaiApiKey" envconfig:"OPENAI_API_KEY"`
	OpenAIModel      string `yaml:"openaiModel" envconfig:"OPENAI_MODEL"`
	AnthropicAPIKey  string `yaml:"anthropicApiKey" envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel   string `yaml:"anthropicModel" envconfig:"ANTHROPIC_MODEL"`
	OpenRouterAPIKey string `yaml:"openrouterApiKey" envconfig:"OPENROUTER_API_KEY"`
	OpenRouterModel  string `yaml:"openrouterModel" envconfig:"OPENROUTER_MODEL"`

	GithubToken  string `yaml:"githubToken" envconfig:"GITHUB_TOKEN"`
	Database     string `yaml:"database" envconfig:"DB_URL"`
	Language     string `yaml:"language"`
	MaxFiles     int    `yaml:"maxFiles" split_words:"true"`
	FetchWorkers int    `yaml:"fetchWorkers" split_words:"true"`
	AllowLocal   bool   `yaml:"allowLocal" split_words:"true"`
	LogLevel     string `yaml:"logLevel" split_words:"true"`
	Port         int    `yaml:"port"`

	// One-shot generation (cmd/generate).
	Source     string `yaml:"source"`
	SourceType string `yaml:"sourceType" split_words:"true"`
	Output     string `yaml:"output"`

	Auth AuthSpecification `yaml:"auth"`

	flags *pflag.FlagSet `ignored:"true"`
}

type AuthSpecification struct {
	Enabled   bool   `yaml:"enabled"`
	JwtSecret string `yaml:"jwtSecret" split_words:"true"`
}

const envPrefix = "REPOTUTOR"

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// Load => defaults < YAML < env < flags.
// configPath may be ""; if so we auto-discover.
func Load(configPath string, fs *pflag.FlagSet) (Specification, error) {
	var cfg Specification

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	// config file
	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/repotutor.yaml",
				"config/config.yaml",
				"./repotutor.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(os.Args[1:]); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	// Minimal sanity
	if strings.TrimSpace(cfg.Provider) == "" {
		cfg.Provider = "stub"
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Auth.Enabled && strings.TrimSpace(cfg.Auth.JwtSecret) == "" {
		return Specification{}, fmt.Errorf("REPOTUTOR_AUTH_JWT_SECRET is required when auth is enabled")
	}
	return cfg, nil
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	// If --config is provided on the command line, capture it now so
	// config discovery (which runs before flags.Parse) can use it.
	for i, a := range os.Args {
		if a == "--config" {
			if i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", os.Args[i+1])
			}
		} else if strings.HasPrefix(a, "--config=") {
			parts := strings.SplitN(a, "=", 2)
			if len(parts) == 2 {
				_ = os.Setenv(envPrefix+"_CONFIG", parts[1])
			}
		}
	}

	fs.String("provider", c.Provider, "Default LLM provider (gemini|openai|anthropic|openrouter|stub)")
	fs.String("gemini-api-key", c.GeminiAPIKey, "Gemini API key")
	fs.String("gemini-model", c.GeminiModel, "Gemini model")
	fs.String("openai-api-key", c.OpenAIAPIKey, "OpenAI API key")
	fs.String("openai-model", c.OpenAIModel, "OpenAI model")
	fs.String("anthropic-api-key", c.AnthropicAPIKey, "Anthropic API key")
	fs.String("anthropic-model", c.AnthropicModel, "Anthropic model")
	fs.String("openrouter-api-key", c.OpenRouterAPIKey, "OpenRouter API key")
	fs.String("openrouter-model", c.OpenRouterModel, "OpenRouter model")

	fs.String("github-token", c.GithubToken, "GitHub API token")
	fs.String("db-url", c.Database, "Database URL (DSN); empty keeps tutorials in memory")
	fs.String("language", c.Language, "Default tutorial language")
	fs.Int("max-files", c.MaxFiles, "Maximum files fetched per source")
	fs.Int("fetch-workers", c.FetchWorkers, "Concurrent file-content fetches")
	fs.Bool("allow-local", c.AllowLocal, "Allow local directory sources")

	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("port", c.Port, "API server port")

	fs.String("source", c.Source, "Source to generate a tutorial from (cmd/generate)")
	fs.String("source-type", c.SourceType, "Source type: repo or dir (cmd/generate)")
	fs.String("output", c.Output, "Output file; empty writes to stdout (cmd/generate)")

	fs.Bool("auth-enabled", c.Auth.Enabled, "Require a bearer token on the API")
	fs.String("auth-jwt-secret", c.Auth.JwtSecret, "JWT secret for signing tokens")

	// Used later for usage/help
	// create a shallow copy of fs (so Usage can be called safely without mutating caller)
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) {
		if fs.Changed(name) {
			v, _ := fs.GetBool(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	setStr("provider", &c.Provider)
	setStr("gemini-api-key", &c.GeminiAPIKey)
	setStr("gemini-model", &c.GeminiModel)
	setStr("openai-api-key", &c.OpenAIAPIKey)
	setStr("openai-model", &c.OpenAIModel)
	setStr("anthropic-api-key", &c.AnthropicAPIKey)
	setStr("anthropic-model", &c.AnthropicModel)
	setStr("openrouter-api-key", &c.OpenRouterAPIKey)
	setStr("openrouter-model", &c.OpenRouterModel)

	setStr("github-token", &c.GithubToken)
	setStr("db-url", &c.Database)
	setStr("language", &c.Language)
	setInt("max-files", &c.MaxFiles)
	setInt("fetch-workers", &c.FetchWorkers)
	setBool("allow-local", &c.AllowLocal)

	setStr("log-level", &c.LogLevel)
	setInt("port", &c.Port)

	setStr("source", &c.Source)
	setStr("source-type", &c.SourceType)
	setStr("output", &c.Output)

	setBool("auth-enabled", &c.Auth.Enabled)
	setStr("auth-jwt-secret", &c.Auth.JwtSecret)
}

func setDefaults(c *Specification) {
	c.Provider = "gemini"
	c.Language = "English"
	c.MaxFiles = 100
	c.FetchWorkers = 4
	c.AllowLocal = false
	c.LogLevel = "info"
	c.Port = 8080
	c.SourceType = "repo"
	c.Auth.Enabled = false
}
