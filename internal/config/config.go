package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	defaultAppName          = "Giftstream"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultMintRate         = "40"
	defaultReferralDepth    = 10
	defaultCreditTimeout    = 5 * time.Second
	defaultOrphanPolicy     = "none"
	defaultSpendRatePerMin  = 60
	defaultReferralCacheTTL = time.Hour
	idemTTLSecondsEnvVar    = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar        = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"
)

// Split holds the reward percentages as read from the environment.
type Split struct {
	Admin    decimal.Decimal
	Anchor   decimal.Decimal
	Agency   decimal.Decimal
	Spender  decimal.Decimal
	Referral decimal.Decimal
}

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	LogFile        string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	JWTSecret      string

	AdminAccountID   string
	MintRate         decimal.Decimal
	Split            Split
	ReferralMaxDepth int
	CreditTimeout    time.Duration
	OrphanPolicy     string
	SpendRatePerMin  int
	ReferralCacheTTL time.Duration
}

// Load reads configuration values from the environment and populates a
// Config instance. A .env file in the working directory is honoured.
// Split percentages are not checked here: the reward engine refuses events
// while the split is invalid, so a bad value cannot mint tokens.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFile:        os.Getenv("LOG_FILE"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AdminAccountID: os.Getenv("ADMIN_ACCOUNT_ID"),
		OrphanPolicy:   strings.ToLower(getEnv("REWARD_ORPHAN_POLICY", defaultOrphanPolicy)),
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.CreditTimeout, err = durationEnv("", "REWARD_CREDIT_TIMEOUT", defaultCreditTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ReferralCacheTTL, err = durationEnv("", "REFERRAL_CACHE_TTL", defaultReferralCacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.ReferralMaxDepth, err = intEnv("REFERRAL_MAX_DEPTH", defaultReferralDepth); err != nil {
		return Config{}, err
	}
	if cfg.SpendRatePerMin, err = intEnv("SPEND_RATE_LIMIT_PER_MIN", defaultSpendRatePerMin); err != nil {
		return Config{}, err
	}

	if cfg.MintRate, err = decimalEnv("REWARD_MINT_RATE", defaultMintRate); err != nil {
		return Config{}, err
	}
	splits := []struct {
		key      string
		fallback string
		dst      *decimal.Decimal
	}{
		{"REWARD_SPLIT_ADMIN", "10", &cfg.Split.Admin},
		{"REWARD_SPLIT_ANCHOR", "50", &cfg.Split.Anchor},
		{"REWARD_SPLIT_AGENCY", "10", &cfg.Split.Agency},
		{"REWARD_SPLIT_SPENDER", "20", &cfg.Split.Spender},
		{"REWARD_SPLIT_REFERRAL", "10", &cfg.Split.Referral},
	}
	for _, s := range splits {
		if *s.dst, err = decimalEnv(s.key, s.fallback); err != nil {
			return Config{}, err
		}
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
		if cfg.JWTSecret == "" {
			return Config{}, fmt.Errorf("JWT_SECRET must be set")
		}
	}

	return cfg, nil
}

// IsDev reports whether in-memory backends are acceptable.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv prefers an integer seconds variable, then a Go duration string.
func durationEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if secondsKey != "" {
		if v := os.Getenv(secondsKey); v != "" {
			seconds, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
			}
			return time.Duration(seconds) * time.Second, nil
		}
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func decimalEnv(key, fallback string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(getEnv(key, fallback))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
