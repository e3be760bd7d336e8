package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	ScopeAll    = "all"
	ScopeOffice = "office"
)

type Config struct {
	Port            string
	LogLevel        string
	StoreDriver     string
	DatabaseURL     string
	SQLitePath      string
	RunMigrations   bool
	DBMaxConns      int
	BroadcastScope  string
	SendBuffer      int
	DispatchTimeout time.Duration
	ReceiptSink     string
	ReceiptDir      string
	ReceiptRedisKey string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	OfficesSeedFile string
	AdminTokenHash  string
	RateLimitPerMin int
	RateLimitBurst  int
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists.
func Load() Config {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:            port,
		LogLevel:        readString("LOG_LEVEL", "info"),
		StoreDriver:     strings.ToLower(readString("STORE_DRIVER", DriverMemory)),
		DatabaseURL:     os.Getenv("DB_DSN"),
		SQLitePath:      readString("SQLITE_PATH", "queue.db"),
		RunMigrations:   readBool("RUN_MIGRATIONS", true),
		DBMaxConns:      readInt("DB_MAX_CONNS", 10),
		BroadcastScope:  strings.ToLower(readString("BROADCAST_SCOPE", ScopeAll)),
		SendBuffer:      readInt("REALTIME_SEND_BUFFER", 64),
		DispatchTimeout: readDurationSeconds("DISPATCH_TIMEOUT_SECONDS", 5),
		ReceiptSink:     strings.ToLower(readString("RECEIPT_SINK", "file")),
		ReceiptDir:      readString("RECEIPT_DIR", "tickets"),
		ReceiptRedisKey: readString("RECEIPT_REDIS_KEY", "qms:receipts"),
		RedisAddr:       readString("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         readInt("REDIS_DB", 0),
		OfficesSeedFile: os.Getenv("OFFICES_SEED_FILE"),
		AdminTokenHash:  os.Getenv("ADMIN_TOKEN_HASH"),
		RateLimitPerMin: readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:  readInt("RATE_LIMIT_BURST", 30),
	}
}

func readString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
