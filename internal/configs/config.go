package configs

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/logger"
	"github.com/joho/godotenv"
)

// Config is read from the environment, optionally seeded from a .env file.
type Config struct {
	Port           string
	DBDriver       string // memory, sqlite or postgres
	DBSource       string
	LogFile        string
	Verbose        bool
	RequestTimeout time.Duration
	SweepInterval  time.Duration // 0 disables the expiry sweeper
	CORSOrigins    []string
	SeedDemo       bool
}

// LoadConfig loads .env files when present and reads the configuration.
func LoadConfig(files ...string) *Config {
	if err := godotenv.Load(files...); err != nil {
		logger.Infof("no .env file loaded: %v", err)
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		DBDriver:       getEnv("DB_DRIVER", "sqlite"),
		DBSource:       getEnv("DB_SOURCE", "spinwheel.db"),
		LogFile:        getEnv("LOG_FILE", ""),
		Verbose:        getBool("LOG_VERBOSE", true),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 5*time.Second),
		SweepInterval:  getDuration("SWEEP_INTERVAL", 10*time.Minute),
		CORSOrigins:    getList("CORS_ORIGINS", []string{"*"}),
		SeedDemo:       getBool("SEED_DEMO", false),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warningf("invalid %s=%q, using %t", key, v, fallback)
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		logger.Warningf("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
