package tableside

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/tableside/pkg/cart"
	"github.com/appetiteclub/tableside/pkg/realtime"
)

const (
	defaultOrderURL     = "http://localhost:8084"
	defaultNATSURL      = "nats://localhost:4222"
	defaultCartTTL      = 24 * time.Hour
	defaultPollInterval = 30 * time.Second
)

// Settings gathers the configuration the tableside service reads at start.
type Settings struct {
	OrderURL          string
	NATSURL           string
	TaxRate           string
	Redis             cart.RedisOptions
	ReconnectAttempts int
	PollInterval      time.Duration
}

// LoadSettings reads Settings from config, applying defaults to missing keys.
func LoadSettings(config *aqm.Config) (Settings, error) {
	get := func(key string) string {
		v, _ := config.GetString(key)
		return strings.TrimSpace(v)
	}

	s := Settings{
		OrderURL: config.GetStringOrDef("services.order.url", defaultOrderURL),
		NATSURL:  config.GetStringOrDef("nats.url", defaultNATSURL),
		TaxRate:  get("pricing.tax.rate"),
		Redis: cart.RedisOptions{
			Addr:     get("cache.redis.addr"),
			Password: get("cache.redis.password"),
		},
	}

	var err error
	if s.Redis.DB, err = parseInt(get("cache.redis.db"), 0); err != nil {
		return Settings{}, fmt.Errorf("cache.redis.db: %w", err)
	}
	if s.Redis.TTL, err = parseDuration(get("cart.redis.ttl"), defaultCartTTL); err != nil {
		return Settings{}, fmt.Errorf("cart.redis.ttl: %w", err)
	}
	if s.ReconnectAttempts, err = parseInt(get("realtime.reconnect.attempts"), realtime.DefaultMaxAttempts); err != nil {
		return Settings{}, fmt.Errorf("realtime.reconnect.attempts: %w", err)
	}
	if s.PollInterval, err = parseDuration(get("tracking.poll.interval"), defaultPollInterval); err != nil {
		return Settings{}, fmt.Errorf("tracking.poll.interval: %w", err)
	}

	return s, nil
}

func parseInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	return n, nil
}

// parseDuration accepts Go durations ("90s") and bare seconds ("90").
// Zero or negative values turn the feature off.
func parseDuration(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return d, nil
}
