package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment    string               `mapstructure:"environment"`
	LogLevel       string               `mapstructure:"log_level"`
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Blockchain     BlockchainConfig     `mapstructure:"blockchain"`
	Routing        RoutingConfig        `mapstructure:"routing"`
	Signer         SignerConfig         `mapstructure:"signer"`
	NATS           NATSConfig           `mapstructure:"nats"`
	Settlement     SettlementConfig     `mapstructure:"settlement"`
	Ledger         LedgerConfig         `mapstructure:"ledger"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string `mapstructure:"migrations_path"`
}

type RedisConfig struct {
	// Enabled backs idempotency with Redis; the redis ledger backend needs it too
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

type BlockchainConfig struct {
	Networks map[string]NetworkConfig `mapstructure:"networks"`
}

type NetworkConfig struct {
	Name            string                 `mapstructure:"name"`
	ChainID         int64                  `mapstructure:"chain_id"`
	Family          string                 `mapstructure:"family"` // "evm" or "solana"
	RPC             string                 `mapstructure:"rpc"`
	Explorer        string                 `mapstructure:"explorer"`
	SettlementToken string                 `mapstructure:"settlement_token"` // key into Tokens
	Tokens          map[string]TokenConfig `mapstructure:"tokens"`
}

type TokenConfig struct {
	Address  string `mapstructure:"address"`
	Symbol   string `mapstructure:"symbol"`
	Name     string `mapstructure:"name"`
	Decimals int    `mapstructure:"decimals"`
}

// RoutingConfig configures the cross-chain routing service client
type RoutingConfig struct {
	BaseURL           string   `mapstructure:"base_url"`
	APIKey            string   `mapstructure:"api_key"`
	Integrator        string   `mapstructure:"integrator"`
	Timeout           int      `mapstructure:"timeout"` // seconds
	RequestsPerSecond float64  `mapstructure:"requests_per_second"`
	Slippage          float64  `mapstructure:"slippage"`
	Order             string   `mapstructure:"order"`
	AllowedBridges    []string `mapstructure:"allowed_bridges"`
}

// SignerConfig configures the remote signing service
type SignerConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

// NATSConfig configures the message bus used for direct-tip signals and status fan-out
type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	Name          string `mapstructure:"name"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// SettlementConfig configures the settlement engine
type SettlementConfig struct {
	CurrentChain     int64         `mapstructure:"current_chain"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	PollJitter       time.Duration `mapstructure:"poll_jitter"`
	MaxPollInterval  time.Duration `mapstructure:"max_poll_interval"`
	BackoffThreshold int           `mapstructure:"backoff_threshold"`
	PollTimeout      time.Duration `mapstructure:"poll_timeout"`
	LedgerRetries    int           `mapstructure:"ledger_retries"`
}

// LedgerConfig selects the persistence backend of the transaction ledger
type LedgerConfig struct {
	Backend string `mapstructure:"backend"` // "postgres", "redis" or "memory"
}

// TracingConfig configures OpenTelemetry export
type TracingConfig struct {
	Enabled              bool    `mapstructure:"enabled"`
	ServiceName          string  `mapstructure:"service_name"`
	ExportTimeoutSeconds int     `mapstructure:"export_timeout_seconds"`
	CollectorURL         string  `mapstructure:"collector_url"`
	SampleRate           float64 `mapstructure:"sample_rate"`
	Insecure             bool    `mapstructure:"insecure"`
}

// ReconciliationConfig configures the pending reconciliation worker
type ReconciliationConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"` // cron spec, e.g. "@every 1m"
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if not provided
	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_per_min", 120)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "tip_service")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.migrations_path", "migrations")

	// Redis defaults
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.key_prefix", "tips")

	// Chains: Mantle is the platform settlement chain, the rest are tip sources
	v.SetDefault("blockchain.networks", defaultNetworks())

	// Routing defaults
	v.SetDefault("routing.base_url", "https://li.quest")
	v.SetDefault("routing.integrator", "tip-service")
	v.SetDefault("routing.timeout", 30)
	v.SetDefault("routing.requests_per_second", 10)
	v.SetDefault("routing.slippage", 0.005)
	v.SetDefault("routing.order", "RECOMMENDED")

	// Signer defaults
	v.SetDefault("signer.base_url", "http://localhost:8200")
	v.SetDefault("signer.timeout", 60)

	// NATS defaults
	v.SetDefault("nats.enabled", true)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", "tip-service")
	v.SetDefault("nats.subject_prefix", "tips")

	// Settlement defaults
	v.SetDefault("settlement.current_chain", 5000)
	v.SetDefault("settlement.poll_interval", 15*time.Second)
	v.SetDefault("settlement.poll_jitter", 3*time.Second)
	v.SetDefault("settlement.max_poll_interval", 2*time.Minute)
	v.SetDefault("settlement.backoff_threshold", 20)
	v.SetDefault("settlement.poll_timeout", 10*time.Second)
	v.SetDefault("settlement.ledger_retries", 3)

	v.SetDefault("ledger.backend", "postgres")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.collector_url", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.service_name", "tip-service")
	v.SetDefault("tracing.export_timeout_seconds", 10)

	// Reconciliation defaults
	v.SetDefault("reconciliation.enabled", true)
	v.SetDefault("reconciliation.schedule", "@every 1m")
}

func defaultNetworks() map[string]interface{} {
	usdc := func(address string) map[string]interface{} {
		return map[string]interface{}{
			"usdc": map[string]interface{}{
				"address":  address,
				"symbol":   "USDC",
				"name":     "USD Coin",
				"decimals": 6,
			},
		}
	}
	network := func(name string, chainID int64, family, rpc, usdcAddress string) map[string]interface{} {
		return map[string]interface{}{
			"name":             name,
			"chain_id":         chainID,
			"family":           family,
			"rpc":              rpc,
			"settlement_token": "usdc",
			"tokens":           usdc(usdcAddress),
		}
	}
	return map[string]interface{}{
		"ethereum": network("Ethereum", 1, "evm", "https://eth.llamarpc.com", "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		"mantle":   network("Mantle", 5000, "evm", "https://rpc.mantle.xyz", "0x09Bc4E0D864854c6aFB6eB9A9cdF58aC190D0dF9"),
		"polygon":  network("Polygon", 137, "evm", "https://polygon-rpc.com", "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"),
		"arbitrum": network("Arbitrum", 42161, "evm", "https://arb1.arbitrum.io/rpc", "0xaf88d065e77c8cC2239327C5EDb3A432268e5831"),
		"base":     network("Base", 8453, "evm", "https://mainnet.base.org", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		"solana":   network("Solana", 1151111081099710, "solana", "https://api.mainnet-beta.solana.com", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
	}
}

func overrideFromEnv(v *viper.Viper) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("server.port", p)
		}
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		v.Set("database.url", dbURL)
	}

	if redisURL := os.Getenv("REDIS_HOST"); redisURL != "" {
		v.Set("redis.host", redisURL)
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		v.Set("redis.password", redisPassword)
	}

	// Routing service
	if routingKey := os.Getenv("ROUTING_API_KEY"); routingKey != "" {
		v.Set("routing.api_key", routingKey)
	}
	if lifiKey := os.Getenv("LIFI_API_KEY"); lifiKey != "" {
		v.Set("routing.api_key", lifiKey)
	}
	if routingBaseURL := os.Getenv("ROUTING_BASE_URL"); routingBaseURL != "" {
		v.Set("routing.base_url", routingBaseURL)
	}
	if bridges := os.Getenv("ROUTING_ALLOWED_BRIDGES"); bridges != "" {
		var allowed []string
		for _, part := range strings.Split(bridges, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				allowed = append(allowed, strings.ToLower(trimmed))
			}
		}
		if len(allowed) > 0 {
			v.Set("routing.allowed_bridges", allowed)
		}
	}

	// Signer
	if signerURL := os.Getenv("SIGNER_BASE_URL"); signerURL != "" {
		v.Set("signer.base_url", signerURL)
	}
	if signerKey := os.Getenv("SIGNER_API_KEY"); signerKey != "" {
		v.Set("signer.api_key", signerKey)
	}

	// NATS
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		v.Set("nats.url", natsURL)
	}

	// Settlement
	if currentChain := os.Getenv("SETTLEMENT_CURRENT_CHAIN"); currentChain != "" {
		if id, err := strconv.ParseInt(currentChain, 10, 64); err == nil {
			v.Set("settlement.current_chain", id)
		}
	}
	if pollInterval := os.Getenv("SETTLEMENT_POLL_INTERVAL"); pollInterval != "" {
		if d, err := time.ParseDuration(pollInterval); err == nil {
			v.Set("settlement.poll_interval", d)
		}
	}

	if backend := os.Getenv("LEDGER_BACKEND"); backend != "" {
		v.Set("ledger.backend", strings.ToLower(backend))
	}

	if collector := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); collector != "" {
		v.Set("tracing.collector_url", collector)
		v.Set("tracing.enabled", true)
	}
}

func validate(config *Config) error {
	if config.Settlement.CurrentChain == 0 {
		return fmt.Errorf("settlement current chain is required")
	}

	found := false
	for _, network := range config.Blockchain.Networks {
		if network.ChainID == config.Settlement.CurrentChain {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("settlement current chain %d is not a configured network", config.Settlement.CurrentChain)
	}

	if config.Settlement.PollInterval <= 0 {
		return fmt.Errorf("settlement poll interval must be positive")
	}

	switch config.Ledger.Backend {
	case "postgres":
		if config.Database.URL == "" && (config.Database.Host == "" || config.Database.Name == "") {
			return fmt.Errorf("database configuration is incomplete")
		}
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown ledger backend %q", config.Ledger.Backend)
	}

	if config.Routing.BaseURL == "" {
		return fmt.Errorf("routing base url is required")
	}

	return nil
}
