package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, path string, contents string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("create config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    slog.Level
		wantErr bool
	}{
		{name: "debug", input: "debug", want: slog.LevelDebug},
		{name: "info", input: "info", want: slog.LevelInfo},
		{name: "warn", input: "warn", want: slog.LevelWarn},
		{name: "warning", input: "warning", want: slog.LevelWarn},
		{name: "error", input: "error", want: slog.LevelError},
		{name: "invalid", input: "trace", wantErr: true},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			got, err := parseLogLevel(testCase.input)
			if testCase.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if testCase.wantErr {
				return
			}
			if got != testCase.want {
				t.Fatalf("level = %v, want %v", got, testCase.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("loads all supported fields from config file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bot.json")
		writeConfigFile(t, configPath, `{
			"log_level":"warn",
			"kernel":{
				"module_hook_timeout":"7s",
				"shutdown_timeout":"15s",
				"subscription_buffer":64,
				"subscription_workers":5
			},
			"telegram":{
				"app_id":123456,
				"app_hash":"sample_hash",
				"bot_token":"123:abc",
				"session_file":"state/telegram/session.json"
			},
			"steam":{
				"api_key":"sample_key",
				"base_url":"https://steam.test",
				"timeout":"9s"
			},
			"cache":{
				"capacity":512,
				"ttl":"48h",
				"save_interval":"5m"
			},
			"party":{
				"idle_timeout":"3m"
			},
			"storage":{
				"dir":"state"
			}
		}`)
		t.Setenv(envConfigFile, configPath)

		cfg, err := loadConfig()
		if err != nil {
			t.Fatalf("load config failed: %v", err)
		}

		if cfg.logLevel != slog.LevelWarn {
			t.Fatalf("log level = %v, want %v", cfg.logLevel, slog.LevelWarn)
		}
		if cfg.moduleHookTimeout != 7*time.Second {
			t.Fatalf("module hook timeout = %s, want 7s", cfg.moduleHookTimeout)
		}
		if cfg.shutdownTimeout != 15*time.Second {
			t.Fatalf("shutdown timeout = %s, want 15s", cfg.shutdownTimeout)
		}
		if cfg.subscriptionBuffer != 64 {
			t.Fatalf("subscription buffer = %d, want 64", cfg.subscriptionBuffer)
		}
		if cfg.subscriptionWorkers != 5 {
			t.Fatalf("subscription workers = %d, want 5", cfg.subscriptionWorkers)
		}
		if !strings.Contains(string(cfg.telegramConfig), `"app_hash":"sample_hash"`) {
			t.Fatalf("telegram config = %s, want raw payload preserved", cfg.telegramConfig)
		}
		if cfg.steamAPIKey != "sample_key" {
			t.Fatalf("steam api key = %q, want sample_key", cfg.steamAPIKey)
		}
		if cfg.steamBaseURL != "https://steam.test" {
			t.Fatalf("steam base url = %q, want https://steam.test", cfg.steamBaseURL)
		}
		if cfg.steamTimeout != 9*time.Second {
			t.Fatalf("steam timeout = %s, want 9s", cfg.steamTimeout)
		}
		if cfg.cacheCapacity != 512 {
			t.Fatalf("cache capacity = %d, want 512", cfg.cacheCapacity)
		}
		if cfg.cacheTTL != 48*time.Hour {
			t.Fatalf("cache ttl = %s, want 48h", cfg.cacheTTL)
		}
		if cfg.cacheSaveInterval != 5*time.Minute {
			t.Fatalf("cache save interval = %s, want 5m", cfg.cacheSaveInterval)
		}
		if cfg.partyIdleTimeout != 3*time.Minute {
			t.Fatalf("party idle timeout = %s, want 3m", cfg.partyIdleTimeout)
		}
		if cfg.storageDir != "state" {
			t.Fatalf("storage dir = %q, want state", cfg.storageDir)
		}
	})

	t.Run("applies defaults when optional sections are absent", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bot.json")
		writeConfigFile(t, configPath, `{
			"telegram":{"app_id":1,"app_hash":"hash","bot_token":"123:abc"},
			"steam":{"api_key":"sample_key"}
		}`)
		t.Setenv(envConfigFile, configPath)

		cfg, err := loadConfig()
		if err != nil {
			t.Fatalf("load config failed: %v", err)
		}

		if cfg.logLevel != slog.LevelInfo {
			t.Fatalf("log level = %v, want %v", cfg.logLevel, slog.LevelInfo)
		}
		if cfg.cacheCapacity != defaultCacheCapacity {
			t.Fatalf("cache capacity = %d, want %d", cfg.cacheCapacity, defaultCacheCapacity)
		}
		if cfg.cacheTTL != defaultCacheTTL {
			t.Fatalf("cache ttl = %s, want %s", cfg.cacheTTL, defaultCacheTTL)
		}
		if cfg.cacheSaveInterval != defaultCacheSaveInterval {
			t.Fatalf("cache save interval = %s, want %s", cfg.cacheSaveInterval, defaultCacheSaveInterval)
		}
		if cfg.partyIdleTimeout != defaultPartyIdleTimeout {
			t.Fatalf("party idle timeout = %s, want %s", cfg.partyIdleTimeout, defaultPartyIdleTimeout)
		}
		if cfg.storageDir != defaultStorageDir {
			t.Fatalf("storage dir = %q, want %q", cfg.storageDir, defaultStorageDir)
		}
	})

	t.Run("loads fallback path bin/config/bot.json when no explicit path is set", func(t *testing.T) {
		workDir := t.TempDir()
		configPath := filepath.Join(workDir, "bin", "config", "bot.json")
		writeConfigFile(t, configPath, `{
			"telegram":{"app_id":777,"app_hash":"fallback_hash","bot_token":"123:abc"},
			"steam":{"api_key":"fallback_key"}
		}`)

		currentDir, err := os.Getwd()
		if err != nil {
			t.Fatalf("get working directory: %v", err)
		}
		if err := os.Chdir(workDir); err != nil {
			t.Fatalf("chdir to temp work dir: %v", err)
		}
		t.Cleanup(func() {
			if err := os.Chdir(currentDir); err != nil {
				t.Fatalf("restore working directory: %v", err)
			}
		})
		t.Setenv(envConfigFile, "")

		cfg, err := loadConfig()
		if err != nil {
			t.Fatalf("load config failed: %v", err)
		}

		if cfg.steamAPIKey != "fallback_key" {
			t.Fatalf("steam api key = %q, want fallback_key", cfg.steamAPIKey)
		}
	})

	t.Run("invalid config values fail", func(t *testing.T) {
		tests := []struct {
			name       string
			fileJSON   string
			wantErrSub string
		}{
			{
				name:       "invalid log level",
				fileJSON:   `{"log_level":"trace","telegram":{"app_id":1},"steam":{"api_key":"key"}}`,
				wantErrSub: "parse log_level",
			},
			{
				name:       "invalid kernel timeout",
				fileJSON:   `{"kernel":{"module_hook_timeout":"bad"},"telegram":{"app_id":1},"steam":{"api_key":"key"}}`,
				wantErrSub: "parse kernel.module_hook_timeout",
			},
			{
				name:       "non-positive kernel buffer",
				fileJSON:   `{"kernel":{"subscription_buffer":0},"telegram":{"app_id":1},"steam":{"api_key":"key"}}`,
				wantErrSub: "parse kernel.subscription_buffer",
			},
			{
				name:       "invalid steam timeout",
				fileJSON:   `{"telegram":{"app_id":1},"steam":{"api_key":"key","timeout":"bad"}}`,
				wantErrSub: "parse steam.timeout",
			},
			{
				name:       "non-positive cache capacity",
				fileJSON:   `{"telegram":{"app_id":1},"steam":{"api_key":"key"},"cache":{"capacity":0}}`,
				wantErrSub: "parse cache.capacity",
			},
			{
				name:       "invalid cache ttl",
				fileJSON:   `{"telegram":{"app_id":1},"steam":{"api_key":"key"},"cache":{"ttl":"bad"}}`,
				wantErrSub: "parse cache.ttl",
			},
			{
				name:       "non-positive party idle timeout",
				fileJSON:   `{"telegram":{"app_id":1},"steam":{"api_key":"key"},"party":{"idle_timeout":"-1m"}}`,
				wantErrSub: "parse party.idle_timeout",
			},
		}

		for _, testCase := range tests {
			testCase := testCase
			t.Run(testCase.name, func(t *testing.T) {
				configPath := filepath.Join(t.TempDir(), "bot.json")
				writeConfigFile(t, configPath, testCase.fileJSON)
				t.Setenv(envConfigFile, configPath)

				_, err := loadConfig()
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), testCase.wantErrSub) {
					t.Fatalf("error = %v, want substring %q", err, testCase.wantErrSub)
				}
			})
		}
	})

	t.Run("missing required sections fail", func(t *testing.T) {
		tests := []struct {
			name       string
			fileJSON   string
			wantErrSub string
		}{
			{
				name:       "telegram config missing",
				fileJSON:   `{"steam":{"api_key":"key"}}`,
				wantErrSub: "telegram config is required",
			},
			{
				name:       "steam api key missing",
				fileJSON:   `{"telegram":{"app_id":1,"app_hash":"hash"}}`,
				wantErrSub: "steam.api_key is required",
			},
		}

		for _, testCase := range tests {
			testCase := testCase
			t.Run(testCase.name, func(t *testing.T) {
				configPath := filepath.Join(t.TempDir(), "bot.json")
				writeConfigFile(t, configPath, testCase.fileJSON)
				t.Setenv(envConfigFile, configPath)

				_, err := loadConfig()
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), testCase.wantErrSub) {
					t.Fatalf("error = %v, want substring %q", err, testCase.wantErrSub)
				}
			})
		}
	})

	t.Run("missing explicit config file fails", func(t *testing.T) {
		t.Setenv(envConfigFile, filepath.Join(t.TempDir(), "missing.json"))
		if _, err := loadConfig(); err == nil {
			t.Fatal("expected error for missing config file")
		}
	})
}
