package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    HTTPServerConfig `json:"server"`
	LLM       LLMConfig        `json:"llm"`
	GitHub    GitHubConfig     `json:"github"`
	Workspace WorkspaceConfig  `json:"workspace"`
	Mongo     MongoConfig      `json:"mongo"`
	Notify    NotifyConfig     `json:"notify"`
	Metrics   MetricsConfig    `json:"metrics"`
	LogLevel  slog.Level       `json:"log_level" default:"info"`
}

type HTTPServerConfig struct {
	Host         string        `json:"host" default:"0.0.0.0"`
	Port         int           `json:"port" default:"8080"`
	ReadTimeout  time.Duration `json:"read_timeout" default:"30s"`
	WriteTimeout time.Duration `json:"write_timeout" default:"10m"`
	// Secret is the shared value callers must send in the request body.
	Secret string `json:"-"`
}

type LLMConfig struct {
	APIKey      string        `json:"-" required:"true"`
	BaseURL     string        `json:"base_url" required:"true"`
	Model       string        `json:"model" default:"gpt-4o-mini"`
	Temperature float64       `json:"temperature" default:"0.2"`
	Timeout     time.Duration `json:"timeout" default:"60s"`
}

type GitHubConfig struct {
	User    string        `json:"user" required:"true"`
	Token   string        `json:"-" required:"true"`
	APIURL  string        `json:"api_url" default:"https://api.github.com"`
	Host    string        `json:"host" default:"github.com"`
	Timeout time.Duration `json:"timeout" default:"30s"`
}

type WorkspaceConfig struct {
	Root       string        `json:"root" default:"/tmp"`
	GitBin     string        `json:"git_bin" default:"git"`
	GitTimeout time.Duration `json:"git_timeout" default:"2m"`
}

type MongoConfig struct {
	URI      string `json:"uri"`
	Database string `json:"database" default:"sitebuilder"`
}

type NotifyConfig struct {
	Enabled      bool          `json:"enabled" default:"false"`
	MaxTries     int           `json:"max_tries" default:"6"`
	InitialDelay time.Duration `json:"initial_delay" default:"1s"`
	Timeout      time.Duration `json:"timeout" default:"20s"`
}

type MetricsConfig struct {
	Addr string `json:"addr" default:":2112"`
}

// Load reads .env (when present) and the process environment. Missing
// credentials are not an error here; the components that need them fail
// with a configuration error on first use.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: HTTPServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getInt("SERVER_PORT", 8080),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Minute),
			Secret:       os.Getenv("SERVER_SECRET"),
		},
		LLM: LLMConfig{
			APIKey:      os.Getenv("LLM_API_KEY"),
			BaseURL:     os.Getenv("LLM_API_BASE"),
			Model:       getEnv("LLM_MODEL", "gpt-4o-mini"),
			Temperature: getFloat("LLM_TEMPERATURE", 0.2),
			Timeout:     getDuration("LLM_TIMEOUT", 60*time.Second),
		},
		GitHub: GitHubConfig{
			User:    os.Getenv("GITHUB_USER"),
			Token:   os.Getenv("GITHUB_TOKEN"),
			APIURL:  getEnv("GITHUB_API_URL", "https://api.github.com"),
			Host:    getEnv("GITHUB_HOST", "github.com"),
			Timeout: getDuration("GITHUB_TIMEOUT", 30*time.Second),
		},
		Workspace: WorkspaceConfig{
			Root:       getEnv("WORK_ROOT", "/tmp"),
			GitBin:     getEnv("GIT_BIN", "git"),
			GitTimeout: getDuration("GIT_TIMEOUT", 2*time.Minute),
		},
		Mongo: MongoConfig{
			URI:      os.Getenv("MONGO_URI"),
			Database: getEnv("MONGO_DB", "sitebuilder"),
		},
		Notify: NotifyConfig{
			Enabled:      getBool("NOTIFY_EVALUATION", false),
			MaxTries:     getInt("NOTIFY_MAX_TRIES", 6),
			InitialDelay: getDuration("NOTIFY_INITIAL_DELAY", time.Second),
			Timeout:      getDuration("NOTIFY_TIMEOUT", 20*time.Second),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":2112"),
		},
		LogLevel: getLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func getLevel(key string, defaultValue slog.Level) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(os.Getenv(key)))); err != nil {
		return defaultValue
	}
	return lvl
}
