package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Session  SessionConfig  `toml:"session"`
	LLM      LLMConfig      `toml:"llm"`
	Auth     AuthConfig     `toml:"auth"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type DatabaseConfig struct {
	Path      string `toml:"path"`
	AuditPath string `toml:"audit_path"`
}

type SessionConfig struct {
	IdleTimeoutMin   int `toml:"idle_timeout_min"`
	SweepIntervalSec int `toml:"sweep_interval_sec"`
}

type LLMConfig struct {
	BaseURL       string `toml:"base_url"`
	APIKey        string `toml:"api_key"`
	Model         string `toml:"model"`
	GroqAPIKey    string `toml:"groq_api_key"`
	OpenRouterKey string `toml:"openrouter_api_key"`
}

type AuthConfig struct {
	JWTSecret         string `toml:"jwt_secret"`
	TokenExpiryMin    int    `toml:"token_expiry_min"`
	AdminHandle       string `toml:"admin_handle"`
	AdminPasswordHash string `toml:"admin_password_hash"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Database: DatabaseConfig{
			Path:      "data/bridge.db",
			AuditPath: "data/audit.db",
		},
		Session: SessionConfig{
			IdleTimeoutMin:   30,
			SweepIntervalSec: 60,
		},
		LLM: LLMConfig{
			BaseURL: "http://localhost:11434/v1",
			Model:   "llama3.1",
		},
		Auth: AuthConfig{
			JWTSecret:      "change-me-in-production",
			TokenExpiryMin: 1440, // 24h
		},
	}
}

// Load reads defaults, overlays the TOML file when present, then applies
// environment overrides. A missing config file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		} else if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays DBBRIDGE_* environment variables, loading a .env file
// first when one exists.
func (c *Config) applyEnv() {
	_ = godotenv.Load()

	setString(&c.Server.Addr, "DBBRIDGE_ADDR")
	setString(&c.Database.Path, "DBBRIDGE_DB_PATH")
	setString(&c.Database.AuditPath, "DBBRIDGE_AUDIT_DB_PATH")
	setString(&c.LLM.BaseURL, "DBBRIDGE_LLM_BASE_URL")
	setString(&c.LLM.APIKey, "DBBRIDGE_LLM_API_KEY")
	setString(&c.LLM.Model, "DBBRIDGE_LLM_MODEL")
	setString(&c.LLM.GroqAPIKey, "DBBRIDGE_GROQ_API_KEY")
	setString(&c.LLM.OpenRouterKey, "DBBRIDGE_OPENROUTER_API_KEY")
	setString(&c.Auth.JWTSecret, "DBBRIDGE_JWT_SECRET")
	setInt(&c.Session.IdleTimeoutMin, "DBBRIDGE_SESSION_IDLE_MIN")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
