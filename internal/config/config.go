package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources       Sources       `yaml:"sources"`
	Summarization Summarization `yaml:"summarization"`
	Pipeline      Pipeline      `yaml:"pipeline"`
	PDF           PDF           `yaml:"pdf"`
	Output        Output        `yaml:"output"`
	Server        Server        `yaml:"server"`
	Logging       Logging       `yaml:"logging"`
}

type Sources struct {
	Feeds       []Feed        `yaml:"feeds"`
	Proxies     []string      `yaml:"proxies"`
	FeedTimeout time.Duration `yaml:"feed_timeout"`
	MaxPerFeed  int           `yaml:"max_per_feed"`
	APIs        APIsConfig    `yaml:"apis"`
}

type Feed struct {
	Tag  string `yaml:"tag"`
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type APIsConfig struct {
	WorldNews APIConfig `yaml:"worldnews"`
	NewsData  APIConfig `yaml:"newsdata"`
	GNews     APIConfig `yaml:"gnews"`
	NewsAPI   APIConfig `yaml:"newsapi"`
}

type APIConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	Country   string `yaml:"country"`
	PageSize  int    `yaml:"page_size"`
}

// Key returns the API key from the configured environment variable.
func (a APIConfig) Key() string {
	if a.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(a.APIKeyEnv))
}

type Summarization struct {
	Groq              ChatProvider  `yaml:"groq"`
	OpenAI            ChatProvider  `yaml:"openai"`
	MinInterval       time.Duration `yaml:"min_interval"`
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown"`
	FailureCooldown   time.Duration `yaml:"failure_cooldown"`
	MaxTokens         int           `yaml:"max_tokens"`
	AnalysisMaxTokens int           `yaml:"analysis_max_tokens"`
}

type ChatProvider struct {
	BaseURL    string   `yaml:"base_url"`
	Model      string   `yaml:"model"`
	APIKeyEnvs []string `yaml:"api_key_envs"`
}

// Keys returns the values of the configured key environment variables, in order.
// Unset variables yield empty strings, which the key pool treats as unconfigured.
func (c ChatProvider) Keys() []string {
	keys := make([]string, len(c.APIKeyEnvs))
	for i, env := range c.APIKeyEnvs {
		keys[i] = os.Getenv(env)
	}
	return keys
}

type Pipeline struct {
	Preset        string   `yaml:"preset"`
	Topics        []string `yaml:"topics"`
	Language      string   `yaml:"language"`
	Enrich        bool     `yaml:"enrich"`
	FetchFullText bool     `yaml:"fetch_full_text"`
}

type PDF struct {
	MaxSizeMB int `yaml:"max_size_mb"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// Debug reports whether verbose per-item logging is enabled.
func (l Logging) Debug() bool {
	return strings.EqualFold(l.Level, "DEBUG")
}

// ConfigDir returns the XDG config directory for exambrief.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "exambrief")
}

// DataDir returns the XDG data directory for exambrief.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "exambrief")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/exambrief/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'exambrief init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sources: Sources{
			Proxies:     []string{""},
			FeedTimeout: 5 * time.Second,
			MaxPerFeed:  25,
			APIs: APIsConfig{
				WorldNews: APIConfig{
					Enabled:   true,
					APIKeyEnv: "WORLDNEWS_API_KEY",
					BaseURL:   "https://api.worldnewsapi.com",
					Country:   "in",
					PageSize:  30,
				},
				NewsData: APIConfig{
					Enabled:   true,
					APIKeyEnv: "NEWSDATA_API_KEY",
					BaseURL:   "https://newsdata.io/api/1",
					Country:   "in",
					PageSize:  10,
				},
				GNews: APIConfig{
					Enabled:   true,
					APIKeyEnv: "GNEWS_API_KEY",
					BaseURL:   "https://gnews.io/api/v4",
					Country:   "in",
					PageSize:  30,
				},
				NewsAPI: APIConfig{
					Enabled:   false,
					APIKeyEnv: "NEWSAPI_KEY",
					BaseURL:   "https://newsapi.org/v2",
					PageSize:  50,
				},
			},
		},
		Summarization: Summarization{
			Groq: ChatProvider{
				BaseURL:    "https://api.groq.com/openai/v1",
				Model:      "llama-3.1-8b-instant",
				APIKeyEnvs: []string{"GROQ_API_KEY", "GROQ_API_KEY_2", "GROQ_API_KEY_3"},
			},
			OpenAI: ChatProvider{
				Model:      "gpt-4o-mini",
				APIKeyEnvs: []string{"OPENAI_API_KEY"},
			},
			MinInterval:       3 * time.Second,
			RateLimitCooldown: 3 * time.Second,
			FailureCooldown:   time.Second,
			MaxTokens:         300,
			AnalysisMaxTokens: 2000,
		},
		Pipeline: Pipeline{
			Preset:   "week",
			Topics:   []string{"all"},
			Language: "en",
		},
		PDF:     PDF{MaxSizeMB: 50},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
