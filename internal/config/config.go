package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port        string
	MetricsAddr string
	DBConn      string
	LogLevel    string
	JWTSecret   string
	JWTTTL      time.Duration
	ECBURL      string
	LinkSecret  string

	// Chain
	Network      string
	NetworksFile string
	RPCURL       string
	RPCRateLimit float64

	// Keeper
	KeeperPrivateKey       string
	KeeperPrivateKeySealed string
	EncryptionKey          string
	KeeperTargets          string
	KeeperDiscover         bool
	KeeperInterval         time.Duration
	TxTimeout              time.Duration

	// SMTP
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
	NotifyEmail  string
}

// NewConfig loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment wins.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	interval, err := time.ParseDuration(getEnv("KEEPER_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid KEEPER_INTERVAL: %w", err)
	}
	txTimeout, err := time.ParseDuration(getEnv("TX_TIMEOUT", "2m"))
	if err != nil {
		return nil, fmt.Errorf("invalid TX_TIMEOUT: %w", err)
	}
	jwtTTL, err := time.ParseDuration(getEnv("JWT_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	rateLimit, err := strconv.ParseFloat(getEnv("RPC_RATE_LIMIT", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RPC_RATE_LIMIT: %w", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":2112"),
		DBConn:      getEnv("DB_CONN", "host=localhost port=5432 user=confidance password=confidance dbname=confidance sslmode=disable"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		JWTTTL:      jwtTTL,
		ECBURL:      getEnv("ECB_URL", "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"),
		LinkSecret:  getEnv("LINK_SECRET", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"),

		Network:      getEnv("NETWORK", "base"),
		NetworksFile: getEnv("NETWORKS_FILE", ""),
		RPCURL:       getEnv("RPC_URL", ""),
		RPCRateLimit: rateLimit,

		KeeperPrivateKey:       getEnv("KEEPER_PRIVATE_KEY", ""),
		KeeperPrivateKeySealed: getEnv("KEEPER_PRIVATE_KEY_SEALED", ""),
		EncryptionKey:          getEnv("ENCRYPTION_KEY", ""),
		KeeperTargets:          getEnv("KEEPER_TARGETS", ""),
		KeeperDiscover:         strings.EqualFold(getEnv("KEEPER_DISCOVER", "false"), "true"),
		KeeperInterval:         interval,
		TxTimeout:              txTimeout,

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SenderEmail:  getEnv("SENDER_EMAIL", "keeper@confidance.app"),
		NotifyEmail:  getEnv("NOTIFY_EMAIL", ""),
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.LinkSecret == "" {
		return nil, fmt.Errorf("LINK_SECRET is required")
	}
	// the scheduler only ticks on whole seconds
	if cfg.KeeperInterval < time.Second || cfg.KeeperInterval%time.Second != 0 {
		return nil, fmt.Errorf("KEEPER_INTERVAL must be a whole number of seconds, at least 1s")
	}
	if cfg.RPCRateLimit <= 0 {
		return nil, fmt.Errorf("RPC_RATE_LIMIT must be positive")
	}

	return cfg, nil
}

// SMTPEnabled reports whether outgoing email is configured.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.NotifyEmail != ""
}

// ValidateKeeper checks the settings only the keeper needs.
func (c *Config) ValidateKeeper() error {
	if c.KeeperPrivateKey == "" && c.KeeperPrivateKeySealed == "" {
		return fmt.Errorf("KEEPER_PRIVATE_KEY or KEEPER_PRIVATE_KEY_SEALED is required")
	}
	if c.KeeperPrivateKeySealed != "" && c.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required to open KEEPER_PRIVATE_KEY_SEALED")
	}
	if c.KeeperTargets == "" && !c.KeeperDiscover {
		return fmt.Errorf("KEEPER_TARGETS is required unless KEEPER_DISCOVER=true")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
