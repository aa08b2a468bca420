package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var envKeys = []string{
	"GEMINI_API_KEY", "API_KEY", "GEMINI_MODEL", "MARKET_PROVIDER", "LOCAL_HISTORY_URL",
	"HTTP_ADDR", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "DIGEST_CRON", "LOG_LEVEL", "HTTPS_PROXY",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Market.Provider != ProviderGemini {
		t.Errorf("provider = %q", cfg.Market.Provider)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Schedule.DigestCron != "0 0 8 * * *" {
		t.Errorf("digest cron = %q", cfg.Schedule.DigestCron)
	}
	if cfg.Telegram.APIBase != "https://api.telegram.org" {
		t.Errorf("api base = %q", cfg.Telegram.APIBase)
	}
	if cfg.HasGeminiKey() || cfg.TelegramEnabled() {
		t.Error("expected no credentials")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
gemini:
  api_key: file-key
  model: gemini-2.5-pro
market:
  provider: Yahoo
local_history:
  base_url: http://localhost:3002
  pairs:
    Silver: XAG,USD
server:
  addr: ":9090"
telegram:
  bot_token: token
  chat_id: "42"
log:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gemini.APIKey != "file-key" || cfg.Gemini.Model != "gemini-2.5-pro" {
		t.Errorf("gemini = %+v", cfg.Gemini)
	}
	if cfg.Market.Provider != ProviderYahoo {
		t.Errorf("provider should be normalized, got %q", cfg.Market.Provider)
	}
	if cfg.LocalHistory.Pairs["Silver"] != "XAG,USD" {
		t.Errorf("pairs = %v", cfg.LocalHistory.Pairs)
	}
	if cfg.Server.Addr != ":9090" || cfg.Log.Level != "debug" {
		t.Errorf("unexpected server/log: %+v %+v", cfg.Server, cfg.Log)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "gemini:\n  api_key: file-key\n")
	t.Setenv("API_KEY", "legacy-key")
	t.Setenv("MARKET_PROVIDER", "mock")
	t.Setenv("LOCAL_HISTORY_URL", "http://history:3002")
	t.Setenv("HTTP_ADDR", ":7000")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("TELEGRAM_CHAT_ID", "7")
	t.Setenv("DIGEST_CRON", "0 30 9 * * 1-5")
	t.Setenv("HTTPS_PROXY", "http://proxy:3128")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gemini.APIKey != "legacy-key" {
		t.Errorf("API_KEY should override the file, got %q", cfg.Gemini.APIKey)
	}
	if cfg.Market.Provider != ProviderMock || cfg.LocalHistory.BaseURL != "http://history:3002" {
		t.Errorf("unexpected market config %+v %+v", cfg.Market, cfg.LocalHistory)
	}
	if cfg.Server.Addr != ":7000" || cfg.Proxy != "http://proxy:3128" {
		t.Errorf("unexpected addr/proxy %q %q", cfg.Server.Addr, cfg.Proxy)
	}
	if !cfg.TelegramEnabled() || cfg.Telegram.ChatID != "7" {
		t.Errorf("unexpected telegram %+v", cfg.Telegram)
	}
	if cfg.Schedule.DigestCron != "0 30 9 * * 1-5" {
		t.Errorf("digest cron = %q", cfg.Schedule.DigestCron)
	}

	t.Setenv("GEMINI_API_KEY", "primary-key")
	cfg, _ = Load(path)
	if cfg.Gemini.APIKey != "primary-key" {
		t.Errorf("GEMINI_API_KEY should win over API_KEY, got %q", cfg.Gemini.APIKey)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "gemini: [unterminated")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad provider", func(c *Config) { c.Market.Provider = "bloomberg" }, "market.provider"},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"token without chat", func(c *Config) { c.Telegram.BotToken = "t" }, "telegram.chat_id"},
		{"bad cron", func(c *Config) { c.Schedule.DigestCron = "every day" }, "schedule.digest_cron"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
