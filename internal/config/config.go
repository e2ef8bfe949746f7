package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSnapshotURL = "https://storage.googleapis.com/benchmarks-artifacts/travel-db/travel2.sqlite"
	DefaultFAQURL      = "https://storage.googleapis.com/benchmarks-artifacts/travel-db/swiss_faq.md"
)

// ErrMissingCredentials is returned by Validate when any required API key is empty.
var ErrMissingCredentials = errors.New("API keys are not found. Please create a .env file in the project root and add all required keys")

// RequiredCredentials lists the environment variables that must be set before startup.
var RequiredCredentials = []string{"GOOGLE_API_KEY", "GROQ_API_KEY", "TAVILY_API_KEY", "OPENAI_API_KEY"}

type Config struct {
	App         AppConfig         `yaml:"app"`
	Data        DataConfig        `yaml:"data"`
	Retriever   RetrieverConfig   `yaml:"retriever"`
	API         APIConfig         `yaml:"api"`
	Approvals   ApprovalsConfig   `yaml:"approvals"`
	Redis       RedisConfig       `yaml:"redis"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Logging     LoggingConfig     `yaml:"logging"`
	Exports     ExportConfig      `yaml:"exports"`
	Credentials CredentialsConfig `yaml:"credentials"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// DataConfig describes where the reference snapshot comes from and how the
// working copy is derived from it.
type DataConfig struct {
	Dir          string `yaml:"dir"`
	SnapshotURL  string `yaml:"snapshot_url"`
	WorkingFile  string `yaml:"working_file"`
	SnapshotFile string `yaml:"snapshot_file"`

	ReferenceTable  string              `yaml:"reference_table"`
	ReferenceColumn string              `yaml:"reference_column"`
	ShiftColumns    map[string][]string `yaml:"shift_columns"`

	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type RetrieverConfig struct {
	Provider     string        `yaml:"provider"` // openai, gemini
	Model        string        `yaml:"model"`
	FAQURL       string        `yaml:"faq_url"`
	IndexDir     string        `yaml:"index_dir"`
	TopK         int           `yaml:"top_k"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// ApprovalsConfig controls the human-approval gate in front of mutating tools.
type ApprovalsConfig struct {
	Required bool          `yaml:"required"`
	TTL      time.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// CredentialsConfig holds the provider keys, normally injected through ${VAR}
// expansion from the environment or a .env file.
type CredentialsConfig struct {
	GoogleAPIKey string `yaml:"google_api_key"`
	GroqAPIKey   string `yaml:"groq_api_key"`
	TavilyAPIKey string `yaml:"tavily_api_key"`
	OpenAIAPIKey string `yaml:"openai_api_key"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; values already in the environment win.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if missing := c.MissingCredentials(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	if c.Data.Dir == "" {
		return errors.New("data dir is required")
	}
	if c.Data.WorkingFile == c.Data.SnapshotFile {
		return errors.New("working file and snapshot file must differ")
	}
	if c.Data.ReferenceTable == "" || c.Data.ReferenceColumn == "" {
		return errors.New("reference table and column are required")
	}

	switch c.Retriever.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown retriever provider %q", c.Retriever.Provider)
	}
	if c.Retriever.TopK <= 0 {
		return errors.New("retriever top_k must be positive")
	}

	return nil
}

// MissingCredentials returns the names of required keys that are empty.
func (c *Config) MissingCredentials() []string {
	values := map[string]string{
		"GOOGLE_API_KEY": c.Credentials.GoogleAPIKey,
		"GROQ_API_KEY":   c.Credentials.GroqAPIKey,
		"TAVILY_API_KEY": c.Credentials.TavilyAPIKey,
		"OPENAI_API_KEY": c.Credentials.OpenAIAPIKey,
	}
	var missing []string
	for _, name := range RequiredCredentials {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// CredentialsHelp is the user-facing hint printed when keys are missing.
func CredentialsHelp() string {
	var b strings.Builder
	b.WriteString("# .env file format:\n")
	for _, name := range RequiredCredentials {
		fmt.Fprintf(&b, "%s=\"your_key\"\n", name)
	}
	return b.String()
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "airsupport"
	}

	if c.Data.Dir == "" {
		c.Data.Dir = "db"
	}
	if c.Data.SnapshotURL == "" {
		c.Data.SnapshotURL = DefaultSnapshotURL
	}
	if c.Data.WorkingFile == "" {
		c.Data.WorkingFile = "travel2.sqlite"
	}
	if c.Data.SnapshotFile == "" {
		c.Data.SnapshotFile = "travel2.backup.sqlite"
	}
	if c.Data.ReferenceTable == "" {
		c.Data.ReferenceTable = "flights"
	}
	if c.Data.ReferenceColumn == "" {
		c.Data.ReferenceColumn = "actual_departure"
	}
	if len(c.Data.ShiftColumns) == 0 {
		c.Data.ShiftColumns = map[string][]string{
			"bookings": {"book_date"},
			"flights":  {"scheduled_departure", "scheduled_arrival", "actual_departure", "actual_arrival"},
		}
	}
	if c.Data.FetchTimeout == 0 {
		c.Data.FetchTimeout = 2 * time.Minute
	}

	if c.Retriever.Provider == "" {
		c.Retriever.Provider = "openai"
	}
	if c.Retriever.Model == "" {
		switch c.Retriever.Provider {
		case "gemini":
			c.Retriever.Model = "text-embedding-004"
		default:
			c.Retriever.Model = "text-embedding-3-small"
		}
	}
	if c.Retriever.FAQURL == "" {
		c.Retriever.FAQURL = DefaultFAQURL
	}
	if c.Retriever.IndexDir == "" {
		c.Retriever.IndexDir = filepath.Join(c.Data.Dir, "faq_index")
	}
	if c.Retriever.TopK == 0 {
		c.Retriever.TopK = 2
	}
	if c.Retriever.FetchTimeout == 0 {
		c.Retriever.FetchTimeout = 30 * time.Second
	}

	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Approvals.TTL == 0 {
		c.Approvals.TTL = 30 * time.Minute
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}

	c.Credentials.applyEnv()
}

// applyEnv fills keys the YAML left empty straight from the environment.
func (c *CredentialsConfig) applyEnv() {
	fill := func(dst *string, name string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = os.Getenv(name)
		}
	}
	fill(&c.GoogleAPIKey, "GOOGLE_API_KEY")
	fill(&c.GroqAPIKey, "GROQ_API_KEY")
	fill(&c.TavilyAPIKey, "TAVILY_API_KEY")
	fill(&c.OpenAIAPIKey, "OPENAI_API_KEY")
}

// WorkingPath is the location of the mutable working copy.
func (d DataConfig) WorkingPath() string {
	return filepath.Join(d.Dir, d.WorkingFile)
}

// SnapshotPath is the location of the pristine reference image.
func (d DataConfig) SnapshotPath() string {
	return filepath.Join(d.Dir, d.SnapshotFile)
}
