package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	LogLevel    string

	ServerPort  int
	CORSOrigins []string

	DatabaseDriver string
	DatabaseURL    string

	JWTAccessSecret []byte
	AccessTokenTTL  time.Duration

	KafkaBrokers []string

	RedisAddr     string
	RedisPassword string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string
}

// LoadDotEnv reads one of the given files into the environment. Missing files are not an error.
func LoadDotEnv(files ...string) {
	for _, f := range files {
		if err := godotenv.Load(f); err == nil {
			return
		}
	}
	log.Printf("notice: no .env file found, using system environment")
}

func Load() Config {
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "cartify"),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		ServerPort:  EnvIntDefault("SERVER_PORT", 8080),
		CORSOrigins: CSV(os.Getenv("CORS_ORIGINS")),

		DatabaseDriver: EnvDefault("DATABASE_DRIVER", "postgres"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		JWTAccessSecret: []byte(os.Getenv("JWT_SECRET")),
		AccessTokenTTL:  EnvDurationDefault("ACCESS_TOKEN_TTL", 15*time.Minute),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "products"),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnvDurationDefault accepts Go durations ("2s", "150ms") or a plain number of milliseconds.
func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
