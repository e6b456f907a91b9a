package config

import (
	"os"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Telegram.Token = "test-token"
	cfg.Telegram.AllowedUserIDs = []int64{100, 200}
	cfg.Telegram.AdminUserIDs = []int64{100}
	cfg.GigaChat.BaseURL = "https://gigachat.devices.sberbank.ru/api/v1"
	cfg.GigaChat.AuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	cfg.GigaChat.ClientID = "client-id"
	cfg.GigaChat.ClientSecret = "client-secret"
	cfg.GigaChat.Model = "GigaChat"
	return cfg
}

func TestLoadConfig(t *testing.T) {
	yaml := []byte(`
server:
  port: 18800
  host: localhost
telegram:
  token: test-token
  mode: polling
  allowed_user_ids: [100, 200]
  admin_user_ids: [100]
gigachat:
  base_url: https://gigachat.devices.sberbank.ru/api/v1
  auth_url: https://ngw.devices.sberbank.ru:9443/api/v2/oauth
  client_id: cid
  client_secret: secret
  model: GigaChat
  token_force_refresh_interval: 10m
history:
  enabled: true
  turns: 8
  redis_addr: localhost:6379
`)
	f, _ := os.CreateTemp("", "config-*.yaml")
	f.Write(yaml)
	f.Close()
	defer os.Remove(f.Name())

	cfg, err := Load(f.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 18800 {
		t.Errorf("Expected port 18800, got %d", cfg.Server.Port)
	}
	if cfg.History.Turns != 8 {
		t.Errorf("Expected 8 history turns, got %d", cfg.History.Turns)
	}
	if got := cfg.GigaChat.GetTokenForceRefreshInterval(); got != 10*time.Minute {
		t.Errorf("Expected 10m force refresh interval, got %s", got)
	}
	if got := cfg.History.GetTTL(); got != 7*24*time.Hour {
		t.Errorf("Expected default 7d TTL, got %s", got)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	yaml := []byte(`
telegram:
  token: file-token
  allowed_user_ids: [100]
gigachat:
  base_url: https://example.test/api/v1
  auth_url: https://example.test/oauth
  client_id: cid
  client_secret: file-secret
  model: GigaChat
`)
	f, _ := os.CreateTemp("", "config-*.yaml")
	f.Write(yaml)
	f.Close()
	defer os.Remove(f.Name())

	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("GIGACHAT_CLIENT_SECRET", "env-secret")

	cfg, err := Load(f.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("Expected env token override, got %s", cfg.Telegram.Token)
	}
	if cfg.GigaChat.ClientSecret != "env-secret" {
		t.Errorf("Expected env secret override, got %s", cfg.GigaChat.ClientSecret)
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestValidateInvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = -1
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for invalid port")
	}
}

func TestValidateAdminOutsideAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.AdminUserIDs = []int64{999}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for admin outside allowed set")
	}
}

func TestValidateWebhookSecretsRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Mode = ModeWebhook
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for missing webhook secrets")
	}
	cfg.Telegram.WebhookSecretPath = "hook-path"
	cfg.Telegram.WebhookSecretToken = "hook-token"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed with webhook secrets set: %v", err)
	}
}

func TestValidateHistoryTurnsRange(t *testing.T) {
	cfg := validConfig()
	cfg.History.Turns = 21
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for too many history turns")
	}
}

func TestAdminsFallback(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.AdminUserIDs = nil
	admins := cfg.Telegram.Admins()
	if len(admins) != 2 {
		t.Errorf("Expected admins to fall back to allowed users, got %v", admins)
	}
}
