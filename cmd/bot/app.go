package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"steam-party-bot/internal/driver/telegram"
	"steam-party-bot/internal/kernel"
	"steam-party-bot/internal/steam"
	"steam-party-bot/internal/storage"
	"steam-party-bot/modules/gamecache"
	"steam-party-bot/modules/help"
	"steam-party-bot/modules/party"
	"steam-party-bot/modules/register"
	"steam-party-bot/pkg/partybot"
)

const (
	envConfigFile             = "PARTYBOT_CONFIG_FILE"
	defaultConfigFilePath     = "config/bot.json"
	alternateConfigFilePath   = "bin/config/bot.json"
	defaultModuleHookTimeout  = 3 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultSubscriptionBuffer = 256
	defaultSubscriptionWorker = 2
	defaultStorageDir         = "data"
	defaultCacheCapacity      = 2048
	defaultCacheTTL           = 72 * time.Hour
	defaultCacheSaveInterval  = 10 * time.Minute
	defaultPartyIdleTimeout   = 10 * time.Minute
)

type appConfig struct {
	logLevel slog.Level

	moduleHookTimeout   time.Duration
	shutdownTimeout     time.Duration
	subscriptionBuffer  int
	subscriptionWorkers int

	telegramConfig json.RawMessage

	steamAPIKey  string
	steamBaseURL string
	steamTimeout time.Duration

	cacheCapacity     int
	cacheTTL          time.Duration
	cacheSaveInterval time.Duration

	partyIdleTimeout time.Duration

	storageDir string
}

type fileConfig struct {
	LogLevel string            `json:"log_level"`
	Kernel   fileKernelConfig  `json:"kernel"`
	Telegram json.RawMessage   `json:"telegram"`
	Steam    fileSteamConfig   `json:"steam"`
	Cache    fileCacheConfig   `json:"cache"`
	Party    filePartyConfig   `json:"party"`
	Storage  fileStorageConfig `json:"storage"`
}

type fileKernelConfig struct {
	ModuleHookTimeout   string `json:"module_hook_timeout"`
	ShutdownTimeout     string `json:"shutdown_timeout"`
	SubscriptionBuffer  *int   `json:"subscription_buffer"`
	SubscriptionWorkers *int   `json:"subscription_workers"`
}

type fileSteamConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Timeout string `json:"timeout"`
}

type fileCacheConfig struct {
	Capacity     *int   `json:"capacity"`
	TTL          string `json:"ttl"`
	SaveInterval string `json:"save_interval"`
}

type filePartyConfig struct {
	IdleTimeout string `json:"idle_timeout"`
}

type fileStorageConfig struct {
	Dir string `json:"dir"`
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))
	kernelRuntime := buildKernelRuntime(logger, cfg)

	fileStore, err := storage.NewFileStore(cfg.storageDir)
	if err != nil {
		return fmt.Errorf("open file store: %w", err)
	}
	registrations, err := storage.NewRegistrationStore(fileStore, logger)
	if err != nil {
		return fmt.Errorf("open registration store: %w", err)
	}

	steamClient, err := buildSteamClient(logger, cfg)
	if err != nil {
		return err
	}

	telegramRuntime, err := telegram.BuildRuntimeFromConfig("telegram", logger, cfg.telegramConfig)
	if err != nil {
		return fmt.Errorf("build telegram runtime: %w", err)
	}

	if err := registerRuntimeServices(kernelRuntime, logger, telegramRuntime, registrations); err != nil {
		return err
	}
	if err := registerRuntimeModules(context.Background(), kernelRuntime, cfg, steamClient, fileStore); err != nil {
		return err
	}
	if err := kernelRuntime.RegisterDriver(telegramRuntime.Driver); err != nil {
		return fmt.Errorf("register telegram driver: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := kernelRuntime.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run kernel: %w", err)
	}

	return nil
}

func loadConfig() (appConfig, error) {
	cfg := defaultAppConfig()
	configFile, err := resolveConfigFilePath()
	if err != nil {
		return appConfig{}, err
	}

	if err := applyConfigFile(&cfg, configFile); err != nil {
		return appConfig{}, err
	}
	if err := validateAppConfig(&cfg); err != nil {
		return appConfig{}, fmt.Errorf("validate config file %s: %w", configFile, err)
	}

	return cfg, nil
}

func resolveConfigFilePath() (string, error) {
	if configFile := strings.TrimSpace(os.Getenv(envConfigFile)); configFile != "" {
		return configFile, nil
	}

	candidates := []string{defaultConfigFilePath, alternateConfigFilePath}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config file %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}

	return "", fmt.Errorf(
		"config file not found; create %s or %s, or set %s",
		defaultConfigFilePath,
		alternateConfigFilePath,
		envConfigFile,
	)
}

func defaultAppConfig() appConfig {
	return appConfig{
		logLevel: slog.LevelInfo,

		moduleHookTimeout:   defaultModuleHookTimeout,
		shutdownTimeout:     defaultShutdownTimeout,
		subscriptionBuffer:  defaultSubscriptionBuffer,
		subscriptionWorkers: defaultSubscriptionWorker,

		cacheCapacity:     defaultCacheCapacity,
		cacheTTL:          defaultCacheTTL,
		cacheSaveInterval: defaultCacheSaveInterval,

		partyIdleTimeout: defaultPartyIdleTimeout,

		storageDir: defaultStorageDir,
	}
}

func applyConfigFile(cfg *appConfig, path string) error {
	if cfg == nil {
		return fmt.Errorf("apply config file: nil config")
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}

	if rawTimeout := strings.TrimSpace(parsed.Kernel.ModuleHookTimeout); rawTimeout != "" {
		timeout, err := time.ParseDuration(rawTimeout)
		if err != nil {
			return fmt.Errorf("parse kernel.module_hook_timeout: %w", err)
		}
		if timeout <= 0 {
			return fmt.Errorf("parse kernel.module_hook_timeout: must be > 0")
		}
		cfg.moduleHookTimeout = timeout
	}
	if rawTimeout := strings.TrimSpace(parsed.Kernel.ShutdownTimeout); rawTimeout != "" {
		timeout, err := time.ParseDuration(rawTimeout)
		if err != nil {
			return fmt.Errorf("parse kernel.shutdown_timeout: %w", err)
		}
		if timeout <= 0 {
			return fmt.Errorf("parse kernel.shutdown_timeout: must be > 0")
		}
		cfg.shutdownTimeout = timeout
	}
	if parsed.Kernel.SubscriptionBuffer != nil {
		if *parsed.Kernel.SubscriptionBuffer <= 0 {
			return fmt.Errorf("parse kernel.subscription_buffer: must be > 0")
		}
		cfg.subscriptionBuffer = *parsed.Kernel.SubscriptionBuffer
	}
	if parsed.Kernel.SubscriptionWorkers != nil {
		if *parsed.Kernel.SubscriptionWorkers <= 0 {
			return fmt.Errorf("parse kernel.subscription_workers: must be > 0")
		}
		cfg.subscriptionWorkers = *parsed.Kernel.SubscriptionWorkers
	}

	cfg.telegramConfig = append([]byte(nil), parsed.Telegram...)

	cfg.steamAPIKey = strings.TrimSpace(parsed.Steam.APIKey)
	cfg.steamBaseURL = strings.TrimSpace(parsed.Steam.BaseURL)
	if rawTimeout := strings.TrimSpace(parsed.Steam.Timeout); rawTimeout != "" {
		timeout, err := time.ParseDuration(rawTimeout)
		if err != nil {
			return fmt.Errorf("parse steam.timeout: %w", err)
		}
		if timeout <= 0 {
			return fmt.Errorf("parse steam.timeout: must be > 0")
		}
		cfg.steamTimeout = timeout
	}

	if parsed.Cache.Capacity != nil {
		if *parsed.Cache.Capacity <= 0 {
			return fmt.Errorf("parse cache.capacity: must be > 0")
		}
		cfg.cacheCapacity = *parsed.Cache.Capacity
	}
	if rawTTL := strings.TrimSpace(parsed.Cache.TTL); rawTTL != "" {
		ttl, err := time.ParseDuration(rawTTL)
		if err != nil {
			return fmt.Errorf("parse cache.ttl: %w", err)
		}
		if ttl <= 0 {
			return fmt.Errorf("parse cache.ttl: must be > 0")
		}
		cfg.cacheTTL = ttl
	}
	if rawInterval := strings.TrimSpace(parsed.Cache.SaveInterval); rawInterval != "" {
		interval, err := time.ParseDuration(rawInterval)
		if err != nil {
			return fmt.Errorf("parse cache.save_interval: %w", err)
		}
		if interval <= 0 {
			return fmt.Errorf("parse cache.save_interval: must be > 0")
		}
		cfg.cacheSaveInterval = interval
	}

	if rawTimeout := strings.TrimSpace(parsed.Party.IdleTimeout); rawTimeout != "" {
		timeout, err := time.ParseDuration(rawTimeout)
		if err != nil {
			return fmt.Errorf("parse party.idle_timeout: %w", err)
		}
		if timeout <= 0 {
			return fmt.Errorf("parse party.idle_timeout: must be > 0")
		}
		cfg.partyIdleTimeout = timeout
	}

	if dir := strings.TrimSpace(parsed.Storage.Dir); dir != "" {
		cfg.storageDir = dir
	}

	return nil
}

func validateAppConfig(cfg *appConfig) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if len(cfg.telegramConfig) == 0 {
		return fmt.Errorf("telegram config is required")
	}
	if cfg.steamAPIKey == "" {
		return fmt.Errorf("steam.api_key is required")
	}

	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}

func buildKernelRuntime(logger *slog.Logger, cfg appConfig) *kernel.Kernel {
	return kernel.New(
		kernel.WithLogger(logger),
		kernel.WithModuleHookTimeout(cfg.moduleHookTimeout),
		kernel.WithShutdownTimeout(cfg.shutdownTimeout),
		kernel.WithDefaultSubscriptionBuffer(cfg.subscriptionBuffer),
		kernel.WithDefaultSubscriptionWorkers(cfg.subscriptionWorkers),
	)
}

func buildSteamClient(logger *slog.Logger, cfg appConfig) (*steam.Client, error) {
	options := []steam.Option{steam.WithLogger(logger)}
	if cfg.steamBaseURL != "" {
		options = append(options, steam.WithBaseURL(cfg.steamBaseURL))
	}
	if cfg.steamTimeout > 0 {
		options = append(options, steam.WithHTTPClient(&http.Client{Timeout: cfg.steamTimeout}))
	}

	client, err := steam.NewClient(cfg.steamAPIKey, options...)
	if err != nil {
		return nil, fmt.Errorf("build steam client: %w", err)
	}

	return client, nil
}

func registerRuntimeServices(
	kernelRuntime *kernel.Kernel,
	logger *slog.Logger,
	telegramRuntime *telegram.Runtime,
	registrations *storage.RegistrationStore,
) error {
	if err := kernelRuntime.RegisterService(partybot.ServiceLogger, logger); err != nil {
		return fmt.Errorf("register logger service: %w", err)
	}
	if err := kernelRuntime.RegisterService(partybot.ServiceOutboundDispatcher, telegramRuntime.Outbound); err != nil {
		return fmt.Errorf("register outbound dispatcher service: %w", err)
	}
	if err := kernelRuntime.RegisterService(partybot.ServiceRegistrationStore, registrations); err != nil {
		return fmt.Errorf("register registration store service: %w", err)
	}
	if err := kernelRuntime.RegisterService(partybot.ServiceUserResolver, telegramRuntime.Resolver); err != nil {
		return fmt.Errorf("register user resolver service: %w", err)
	}

	return nil
}

func registerRuntimeModules(
	ctx context.Context,
	kernelRuntime *kernel.Kernel,
	cfg appConfig,
	steamClient *steam.Client,
	fileStore *storage.FileStore,
) error {
	cacheModule := gamecache.New(
		steamClient,
		gamecache.WithMaxEntries(cfg.cacheCapacity),
		gamecache.WithTTL(cfg.cacheTTL),
		gamecache.WithStore(fileStore),
		gamecache.WithSaveInterval(cfg.cacheSaveInterval),
	)
	if err := kernelRuntime.RegisterModule(ctx, cacheModule); err != nil {
		return fmt.Errorf("register gamecache module: %w", err)
	}
	registerModule := register.New()
	if err := kernelRuntime.RegisterModule(ctx, registerModule); err != nil {
		return fmt.Errorf("register register module: %w", err)
	}
	partyModule := party.New(party.WithIdleTimeout(cfg.partyIdleTimeout))
	if err := kernelRuntime.RegisterModule(ctx, partyModule); err != nil {
		return fmt.Errorf("register party module: %w", err)
	}
	helpModule := help.New()
	if err := kernelRuntime.RegisterModule(ctx, helpModule); err != nil {
		return fmt.Errorf("register help module: %w", err)
	}

	return nil
}
