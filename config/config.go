package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"betrounds/database"
)

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken   string
	DiscordGuildID string

	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// Ledger configuration
	StartingBalance int64

	// Round configuration
	WagerFeePercent     int64         // Percent of each stake withheld at placement (0-100)
	FallbackMultiplier  float64       // Multiplier used when a side's ratio is undefined
	AmountPromptTimeout time.Duration // How long a participant has to submit an amount
	MaxAutoStop         time.Duration

	// Observability
	MetricsAddr string // Empty disables the metrics server
	NATSServers string // Empty disables the NATS event bridge
	LogLevel    string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.RWMutex
)

// Get returns the global configuration instance
func Get() *Config {
	mu.RLock()
	if instance != nil {
		defer mu.RUnlock()
		return instance
	}
	mu.RUnlock()

	once.Do(func() {
		cfg, err := load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
		mu.Lock()
		instance = cfg
		mu.Unlock()
	})

	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := defaults()

	config.DiscordToken = os.Getenv("DISCORD_TOKEN")
	config.DiscordGuildID = os.Getenv("DISCORD_GUILD_ID")
	config.DatabaseName = os.Getenv("DATABASE_NAME")
	config.DatabaseURL = database.ConstructDatabaseURL(os.Getenv("DATABASE_URL"), config.DatabaseName)
	config.NATSServers = os.Getenv("NATS_SERVERS")

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		config.Environment = env
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
	if addr, ok := os.LookupEnv("METRICS_ADDR"); ok {
		config.MetricsAddr = addr
	}

	// Override defaults if environment variables are set
	if balance := os.Getenv("STARTING_BALANCE"); balance != "" {
		parsed, err := strconv.ParseInt(balance, 10, 64)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("STARTING_BALANCE must be a non-negative integer, got %q", balance)
		}
		config.StartingBalance = parsed
	}
	if fee := os.Getenv("WAGER_FEE_PERCENT"); fee != "" {
		parsed, err := strconv.ParseInt(fee, 10, 64)
		if err != nil || parsed < 0 || parsed > 100 {
			return nil, fmt.Errorf("WAGER_FEE_PERCENT must be between 0 and 100, got %q", fee)
		}
		config.WagerFeePercent = parsed
	}
	if multiplier := os.Getenv("FALLBACK_MULTIPLIER"); multiplier != "" {
		parsed, err := strconv.ParseFloat(multiplier, 64)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("FALLBACK_MULTIPLIER must be a non-negative number, got %q", multiplier)
		}
		config.FallbackMultiplier = parsed
	}
	if timeout := os.Getenv("AMOUNT_PROMPT_TIMEOUT_SECONDS"); timeout != "" {
		parsed, err := strconv.Atoi(timeout)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("AMOUNT_PROMPT_TIMEOUT_SECONDS must be a positive integer, got %q", timeout)
		}
		config.AmountPromptTimeout = time.Duration(parsed) * time.Second
	}
	if maxStop := os.Getenv("MAX_AUTO_STOP_MINUTES"); maxStop != "" {
		parsed, err := strconv.Atoi(maxStop)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("MAX_AUTO_STOP_MINUTES must be a non-negative integer, got %q", maxStop)
		}
		config.MaxAutoStop = time.Duration(parsed) * time.Minute
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DiscordToken == "" {
			return nil, fmt.Errorf("DISCORD_TOKEN is required")
		}
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		StartingBalance:     1000,
		WagerFeePercent:     0,
		FallbackMultiplier:  2.0,
		AmountPromptTimeout: 60 * time.Second,
		MaxAutoStop:         24 * time.Hour,
		MetricsAddr:         ":9090",
		LogLevel:            "info",
		Environment:         "development",
	}
}

// SetTestConfig sets a test configuration (for testing only)
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	cfg := defaults()
	cfg.Environment = "test"
	cfg.MetricsAddr = ""
	return cfg
}
