// Package config loads and validates daemon settings from viper.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sweeney/mitemp-sensor/internal/logic"
)

// Keys accepted from flags, environment (MITEMP_ prefix) and config file.
const (
	KeyMAC                 = "mac"
	KeyMonitoredConditions = "monitored_conditions"
	KeyName                = "name"
	KeyMedian              = "median"
	KeyForceUpdate         = "force_update"
	KeyTimeout             = "timeout"
	KeyCacheValue          = "cache_value"
	KeyAdapter             = "adapter"
	KeyUpdateInterval      = "update_interval"
	KeyBroker              = "broker"
	KeyDiscoveryPrefix     = "discovery_prefix"
	KeyHTTP                = "http"
	KeyHeartbeat           = "heartbeat"
	KeyLEDPin              = "led_pin"
	KeyLogLevel            = "log_level"
	KeyLogFormat           = "log_format"
)

// EnvPrefix is prepended to every key when read from the environment.
const EnvPrefix = "MITEMP"

// Defaults.
const (
	DefaultName            = "MiTemp BT"
	DefaultMedian          = 3
	DefaultTimeout         = 10 * time.Second
	DefaultCacheValue      = 300 * time.Second
	DefaultAdapter         = "hci0"
	DefaultUpdateInterval  = 300 * time.Second
	DefaultBroker          = "tcp://localhost:1883"
	DefaultDiscoveryPrefix = "homeassistant"
	DefaultHTTP            = ":80"
	DefaultHeartbeat       = 15 * time.Minute
	DefaultLEDPin          = -1
)

// Config is the validated daemon configuration.
type Config struct {
	Address         string
	Conditions      []logic.Quantity
	Name            string
	Median          int
	ForceUpdate     bool
	Timeout         time.Duration
	CacheValue      time.Duration
	Adapter         string
	UpdateInterval  time.Duration
	Broker          string
	DiscoveryPrefix string
	HTTPAddr        string // empty disables the status page
	Heartbeat       time.Duration
	LEDPin          int
	LogLevel        slog.Level
	LogFormat       string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	conditions := make([]string, 0, len(logic.AllQuantities()))
	for _, q := range logic.AllQuantities() {
		conditions = append(conditions, string(q))
	}

	v.SetDefault(KeyMonitoredConditions, conditions)
	v.SetDefault(KeyName, DefaultName)
	v.SetDefault(KeyMedian, DefaultMedian)
	v.SetDefault(KeyForceUpdate, false)
	v.SetDefault(KeyTimeout, DefaultTimeout.String())
	v.SetDefault(KeyCacheValue, DefaultCacheValue.String())
	v.SetDefault(KeyAdapter, DefaultAdapter)
	v.SetDefault(KeyUpdateInterval, DefaultUpdateInterval.String())
	v.SetDefault(KeyBroker, DefaultBroker)
	v.SetDefault(KeyDiscoveryPrefix, DefaultDiscoveryPrefix)
	v.SetDefault(KeyHTTP, DefaultHTTP)
	v.SetDefault(KeyHeartbeat, DefaultHeartbeat.String())
	v.SetDefault(KeyLEDPin, DefaultLEDPin)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config

	mac := strings.TrimSpace(v.GetString(KeyMAC))
	if mac == "" {
		return Config{}, errors.New("mac is required")
	}
	hw, err := net.ParseMAC(mac)
	if err != nil || len(hw) != 6 {
		return Config{}, fmt.Errorf("invalid mac %q (expected XX:XX:XX:XX:XX:XX)", mac)
	}
	cfg.Address = strings.ToUpper(hw.String())

	cfg.Conditions, err = parseConditions(v.GetStringSlice(KeyMonitoredConditions))
	if err != nil {
		return Config{}, err
	}

	cfg.Name = strings.TrimSpace(v.GetString(KeyName))
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}

	cfg.Median = v.GetInt(KeyMedian)
	if cfg.Median < 1 {
		return Config{}, fmt.Errorf("invalid median %d: %w", cfg.Median, logic.ErrInvalidWindowSize)
	}
	cfg.ForceUpdate = v.GetBool(KeyForceUpdate)

	if cfg.Timeout, err = positiveDuration(v, KeyTimeout); err != nil {
		return Config{}, err
	}
	if cfg.CacheValue, err = positiveDuration(v, KeyCacheValue); err != nil {
		return Config{}, err
	}
	if cfg.UpdateInterval, err = positiveDuration(v, KeyUpdateInterval); err != nil {
		return Config{}, err
	}
	if cfg.Heartbeat, err = duration(v, KeyHeartbeat); err != nil {
		return Config{}, err
	}
	if cfg.Heartbeat < 0 {
		return Config{}, fmt.Errorf("invalid %s %v (must be >= 0)", KeyHeartbeat, cfg.Heartbeat)
	}

	cfg.Adapter = strings.TrimSpace(v.GetString(KeyAdapter))
	if cfg.Adapter == "" {
		cfg.Adapter = DefaultAdapter
	}

	cfg.Broker = strings.TrimSpace(v.GetString(KeyBroker))
	if cfg.Broker == "" {
		return Config{}, errors.New("broker is required")
	}
	cfg.DiscoveryPrefix = strings.Trim(strings.TrimSpace(v.GetString(KeyDiscoveryPrefix)), "/")
	if cfg.DiscoveryPrefix == "" {
		cfg.DiscoveryPrefix = DefaultDiscoveryPrefix
	}
	cfg.HTTPAddr = strings.TrimSpace(v.GetString(KeyHTTP))

	cfg.LEDPin = v.GetInt(KeyLEDPin)

	if cfg.LogLevel, err = ParseLogLevel(v.GetString(KeyLogLevel)); err != nil {
		return Config{}, err
	}
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat)))
	switch cfg.LogFormat {
	case "console", "json":
	default:
		return Config{}, fmt.Errorf("invalid log_format %q (allowed: console, json)", cfg.LogFormat)
	}

	return cfg, nil
}

// ParseLogLevel converts a level name into an slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q (allowed: debug, info, warn, error)", s)
	}
}

func parseConditions(raw []string) ([]logic.Quantity, error) {
	// A single comma separated value arrives from the environment.
	var names []string
	for _, r := range raw {
		for _, s := range strings.Split(r, ",") {
			if s = strings.TrimSpace(s); s != "" {
				names = append(names, s)
			}
		}
	}
	if len(names) == 0 {
		return logic.AllQuantities(), nil
	}

	seen := make(map[logic.Quantity]bool, len(names))
	out := make([]logic.Quantity, 0, len(names))
	for _, name := range names {
		q, err := logic.ParseQuantity(strings.ToLower(name))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", KeyMonitoredConditions, err)
		}
		if seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out, nil
}

// duration reads key as a Go duration string; bare numbers are seconds.
func duration(v *viper.Viper, key string) (time.Duration, error) {
	switch raw := v.Get(key).(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return raw, nil
	case int:
		return time.Duration(raw) * time.Second, nil
	case int64:
		return time.Duration(raw) * time.Second, nil
	case float64:
		return time.Duration(raw * float64(time.Second)), nil
	default:
		s := strings.TrimSpace(fmt.Sprint(raw))
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(n * float64(time.Second)), nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
		}
		return d, nil
	}
}

func positiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := duration(v, key)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %v (must be > 0)", key, d)
	}
	return d, nil
}
