package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// FeedCfg configures the Kafka feed of map registrations and camera moves.
type FeedCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type Config struct {
	Addr           string
	LogLevel       string
	LogConsole     bool
	MetricsEnabled bool

	IndoorMinZoom        float64
	IndoorRescanInterval time.Duration
	IndoorH3Res          int

	StyleURL      string
	StyleCacheTTL time.Duration
	StyleLRUSize  int
	StyleTimeout  time.Duration
	RedisAddr     string

	Feed FeedCfg
}

func FromEnv() Config {
	res := getint("INDOOR_H3_RES", 9)
	if res > 15 {
		res = 15
	}

	lru := getint("STYLE_LRU_SIZE", 16)
	if lru < 1 {
		lru = 1
	}

	return Config{
		Addr:           getenv("ADDR", ":8090"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		MetricsEnabled: getbool("METRICS_ENABLED", true),

		IndoorMinZoom:        getfloat("INDOOR_MIN_ZOOM", 17),
		IndoorRescanInterval: getduration("INDOOR_RESCAN_INTERVAL", 500*time.Millisecond),
		// negative disables the locator cell
		IndoorH3Res: res,

		StyleURL:      getenv("STYLE_URL", ""),
		StyleCacheTTL: getduration("STYLE_CACHE_TTL", 10*time.Minute),
		StyleLRUSize:  lru,
		StyleTimeout:  getduration("STYLE_FETCH_TIMEOUT", 10*time.Second),
		RedisAddr:     getenv("REDIS_ADDR", ""),

		Feed: FeedCfg{
			Enabled: getbool("FEED_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "indoor-maps"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "indoor-level-manager"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
