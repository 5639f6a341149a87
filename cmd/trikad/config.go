package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all trikad server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	ListenAddr    string `json:"listen_addr"`
	DBPath        string `json:"db_path"`
	Store         string `json:"store"` // "libsql" or "memory"
	LogLevel      string `json:"log_level"`
	OpenAIAPIKey  string `json:"openai_api_key"`
	OpenAIModel   string `json:"openai_model"`
	OpenAIBaseURL string `json:"openai_base_url"`
	SearchURL     string `json:"search_url"`
	RAGURL        string `json:"rag_url"`
	MCP           bool   `json:"mcp"`
	Scheduler     bool   `json:"scheduler"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr: ":4200",
		DBPath:     filepath.Join(trikaDir(), "trika.db"),
		Store:      "libsql",
		LogLevel:   "info",
		RAGURL:     "http://localhost:8000",
		Scheduler:  true,
	}
}

func trikaDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".trika"
	}
	return filepath.Join(home, ".trika")
}

func settingsPath() string {
	return filepath.Join(trikaDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("TRIKA_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("TRIKA_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TRIKA_STORE"); v != "" {
		cfg.Store = v
	}
	if v := os.Getenv("TRIKA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TRIKA_OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("TRIKA_OPENAI_MODEL"); v != "" {
		cfg.OpenAIModel = v
	}
	if v := os.Getenv("TRIKA_OPENAI_BASE_URL"); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := os.Getenv("TRIKA_SEARCH_URL"); v != "" {
		cfg.SearchURL = v
	}
	if v := os.Getenv("TRIKA_RAG_URL"); v != "" {
		cfg.RAGURL = v
	}
	if v := os.Getenv("TRIKA_MCP"); v != "" {
		cfg.MCP = v == "true" || v == "1"
	}
	if v := os.Getenv("TRIKA_SCHEDULER"); v != "" {
		cfg.Scheduler = v == "true" || v == "1"
	}

	return cfg
}
