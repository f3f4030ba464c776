package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Dev struct {
		Mode bool `yaml:"mode"`
	} `yaml:"dev"`
	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Auth struct {
		SigningKey string `yaml:"signing_key"`
		Issuer     string `yaml:"issuer"`
		Audience   string `yaml:"audience"`
	} `yaml:"auth"`
	Replicate struct {
		Token         string        `yaml:"token"`
		Model         string        `yaml:"model"`
		FallbackModel string        `yaml:"fallback_model"`
		PollInterval  time.Duration `yaml:"poll_interval"`
	} `yaml:"replicate"`
	HuggingFace struct {
		Token         string `yaml:"token"`
		Model         string `yaml:"model"`
		FallbackModel string `yaml:"fallback_model"`
	} `yaml:"huggingface"`
	Watsonx struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"watsonx"`
	Chat struct {
		ContextItems int `yaml:"context_items"`
	} `yaml:"chat"`
	CORS struct {
		AllowOrigins []string `yaml:"allow_origins"`
	} `yaml:"cors"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Default() Config {
	var cfg Config
	cfg.HTTP.Addr = ":8000"
	cfg.Dev.Mode = true
	cfg.Replicate.Model = "ibm-granite/granite-3.3-8b-instruct"
	cfg.Replicate.FallbackModel = "meta/llama-2-70b-chat:02e509c789964a7ea8736978a43525956ef40397be9033abf9fd2badfe68c9e3"
	cfg.Replicate.PollInterval = time.Second
	cfg.HuggingFace.Model = "openai/gpt-oss-20b"
	cfg.HuggingFace.FallbackModel = "google/flan-t5-base"
	cfg.Chat.ContextItems = 3
	cfg.CORS.AllowOrigins = []string{"http://localhost:3000"}
	cfg.Log.Level = "info"
	return cfg
}

func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	applyEnv(&cfg)

	if cfg.Database.DSN == "" {
		return cfg, errors.New("missing database.dsn (or WIRA_DB_DSN)")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("WIRA_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("WIRA_DEV_MODE"); v != "" {
		cfg.Dev.Mode = parseBool(v, cfg.Dev.Mode)
	}
	if v := os.Getenv("WIRA_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("WIRA_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("WIRA_JWT_SIGNING_KEY"); v != "" {
		cfg.Auth.SigningKey = v
	}
	if v := os.Getenv("WIRA_JWT_ISSUER"); v != "" {
		cfg.Auth.Issuer = v
	}
	if v := os.Getenv("WIRA_JWT_AUDIENCE"); v != "" {
		cfg.Auth.Audience = v
	}
	if v := os.Getenv("WIRA_REPLICATE_TOKEN"); v != "" {
		cfg.Replicate.Token = v
	}
	if v := os.Getenv("WIRA_REPLICATE_MODEL"); v != "" {
		cfg.Replicate.Model = v
	}
	if v := os.Getenv("WIRA_REPLICATE_FALLBACK_MODEL"); v != "" {
		cfg.Replicate.FallbackModel = v
	}
	if v := os.Getenv("WIRA_REPLICATE_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Replicate.PollInterval = d
		}
	}
	if v := os.Getenv("WIRA_HUGGINGFACE_TOKEN"); v != "" {
		cfg.HuggingFace.Token = v
	}
	if v := os.Getenv("WIRA_HUGGINGFACE_MODEL"); v != "" {
		cfg.HuggingFace.Model = v
	}
	if v := os.Getenv("WIRA_HUGGINGFACE_FALLBACK_MODEL"); v != "" {
		cfg.HuggingFace.FallbackModel = v
	}
	if v := os.Getenv("WIRA_WATSONX_API_KEY"); v != "" {
		cfg.Watsonx.APIKey = v
	}
	if v := os.Getenv("WIRA_WATSONX_BASE_URL"); v != "" {
		cfg.Watsonx.BaseURL = v
	}
	if v := os.Getenv("WIRA_CHAT_CONTEXT_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Chat.ContextItems = n
		}
	}
	if v := os.Getenv("WIRA_CORS_ALLOW_ORIGINS"); v != "" {
		cfg.CORS.AllowOrigins = splitCSV(v)
	}
	if v := os.Getenv("WIRA_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func parseBool(input string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func splitCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		val := strings.TrimSpace(part)
		if val == "" {
			continue
		}
		out = append(out, val)
	}
	return out
}
