package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type OrdersConfig struct {
	RunAddress         string
	DatabaseURI        string
	PaymentServiceURL  string
	PaymentTimeout     time.Duration
	RedisURL           string
	OrderCacheTTL      time.Duration
	JWTSecret          string
	StaleOrderGrace    time.Duration
	StaleOrderInterval time.Duration
	SimulatorSeed      int64
	// IssueToken, when set, makes the binary print a bearer token for
	// that subject and exit.
	IssueToken string
	Log        LogConfig
}

type PaymentsConfig struct {
	RunAddress         string
	SimulatorSeed      int64
	DeclineRate        float64
	GatewayFailureRate float64
	MinLatency         time.Duration
	MaxLatency         time.Duration
	Log                LogConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// LoadEnvFile reads variables from a .env file when one exists. Variables
// already set in the environment win.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func NewOrders(args []string) (*OrdersConfig, error) {
	cfg := &OrdersConfig{}

	flags := flag.NewFlagSet("orders", flag.ContinueOnError)
	flags.StringVar(&cfg.RunAddress, "a", "localhost:8080", "server address and port")
	flags.StringVar(&cfg.DatabaseURI, "d", "", "database URI, in-memory store when empty")
	flags.StringVar(&cfg.PaymentServiceURL, "p", "", "payment service URL, in-process simulator when empty")
	flags.DurationVar(&cfg.PaymentTimeout, "t", 5*time.Second, "payment call timeout")
	flags.StringVar(&cfg.IssueToken, "issue-token", "", "print a bearer token for this subject and exit")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	cfg.RunAddress = getEnv("RUN_ADDRESS", cfg.RunAddress)
	cfg.DatabaseURI = getEnv("DATABASE_URI", cfg.DatabaseURI)
	cfg.PaymentServiceURL = getEnv("PAYMENT_SERVICE_URL", cfg.PaymentServiceURL)
	cfg.RedisURL = getEnv("REDIS_URL", "")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.Log = logConfig()

	var err error
	if cfg.PaymentTimeout, err = getDuration("PAYMENT_TIMEOUT", cfg.PaymentTimeout); err != nil {
		return nil, err
	}
	if cfg.OrderCacheTTL, err = getDuration("ORDER_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.StaleOrderGrace, err = getDuration("STALE_ORDER_GRACE", time.Minute); err != nil {
		return nil, err
	}
	if cfg.StaleOrderInterval, err = getDuration("STALE_ORDER_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SimulatorSeed, err = getInt64("SIMULATOR_SEED", time.Now().UnixNano()); err != nil {
		return nil, err
	}

	if cfg.PaymentTimeout <= 0 {
		return nil, fmt.Errorf("payment timeout must be positive, got %s", cfg.PaymentTimeout)
	}
	if cfg.IssueToken != "" && cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required to issue a token")
	}
	return cfg, nil
}

func NewPayments(args []string) (*PaymentsConfig, error) {
	cfg := &PaymentsConfig{}

	flags := flag.NewFlagSet("payments", flag.ContinueOnError)
	flags.StringVar(&cfg.RunAddress, "a", "localhost:8081", "server address and port")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	cfg.RunAddress = getEnv("RUN_ADDRESS", cfg.RunAddress)
	cfg.Log = logConfig()

	var err error
	if cfg.SimulatorSeed, err = getInt64("SIMULATOR_SEED", time.Now().UnixNano()); err != nil {
		return nil, err
	}
	if cfg.DeclineRate, err = getRate("DECLINE_RATE", 0.15); err != nil {
		return nil, err
	}
	if cfg.GatewayFailureRate, err = getRate("GATEWAY_FAILURE_RATE", 0.10); err != nil {
		return nil, err
	}
	if cfg.MinLatency, err = getDuration("MIN_LATENCY", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.MaxLatency, err = getDuration("MAX_LATENCY", 800*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.MaxLatency < cfg.MinLatency {
		return nil, fmt.Errorf("MAX_LATENCY %s is below MIN_LATENCY %s", cfg.MaxLatency, cfg.MinLatency)
	}
	return cfg, nil
}

// NewLogger builds a slog logger writing to w. Format is "json" or "text".
func NewLogger(w io.Writer, cfg LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func logConfig() LogConfig {
	return LogConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "text"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getRate(key string, fallback float64) (float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	r, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if r < 0 || r > 1 {
		return 0, fmt.Errorf("%s must be between 0 and 1, got %v", key, r)
	}
	return r, nil
}
