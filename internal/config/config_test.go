package config

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/sweeney/mitemp-sensor/internal/logic"
)

func newViper(values map[string]any) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper(map[string]any{KeyMAC: "58:2d:34:10:ab:cd"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Address != "58:2D:34:10:AB:CD" {
		t.Errorf("Address: got %q", cfg.Address)
	}
	if len(cfg.Conditions) != 3 {
		t.Errorf("Conditions: got %v, want all quantities", cfg.Conditions)
	}
	if cfg.Name != "MiTemp BT" {
		t.Errorf("Name: got %q", cfg.Name)
	}
	if cfg.Median != 3 {
		t.Errorf("Median: got %d, want 3", cfg.Median)
	}
	if cfg.ForceUpdate {
		t.Error("ForceUpdate: got true, want false")
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout: got %v, want 10s", cfg.Timeout)
	}
	if cfg.CacheValue != 300*time.Second {
		t.Errorf("CacheValue: got %v, want 300s", cfg.CacheValue)
	}
	if cfg.UpdateInterval != 300*time.Second {
		t.Errorf("UpdateInterval: got %v, want 300s", cfg.UpdateInterval)
	}
	if cfg.Adapter != "hci0" {
		t.Errorf("Adapter: got %q", cfg.Adapter)
	}
	if cfg.DiscoveryPrefix != "homeassistant" {
		t.Errorf("DiscoveryPrefix: got %q", cfg.DiscoveryPrefix)
	}
	if cfg.LEDPin != -1 {
		t.Errorf("LEDPin: got %d, want -1", cfg.LEDPin)
	}
	if cfg.LogLevel != slog.LevelInfo || cfg.LogFormat != "console" {
		t.Errorf("logging: got %v/%q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadRequiresMAC(t *testing.T) {
	_, err := Load(newViper(nil))
	if err == nil || !strings.Contains(err.Error(), "mac is required") {
		t.Errorf("expected missing mac error, got %v", err)
	}
}

func TestLoadRejectsBadMAC(t *testing.T) {
	for _, mac := range []string{"not-a-mac", "58:2D:34:10:AB", "58:2D:34:10:AB:CD:EF:01"} {
		if _, err := Load(newViper(map[string]any{KeyMAC: mac})); err == nil {
			t.Errorf("mac %q: expected error", mac)
		}
	}
}

func TestLoadMedian(t *testing.T) {
	cfg, err := Load(newViper(map[string]any{KeyMAC: "58:2D:34:10:AB:CD", KeyMedian: 1}))
	if err != nil {
		t.Fatalf("median 1: %v", err)
	}
	if cfg.Median != 1 {
		t.Errorf("Median: got %d, want 1", cfg.Median)
	}

	cfg, err = Load(newViper(map[string]any{KeyMAC: "58:2D:34:10:AB:CD", KeyMedian: 4}))
	if err != nil {
		t.Fatalf("even median should be accepted: %v", err)
	}
	if cfg.Median != 4 {
		t.Errorf("Median: got %d, want 4", cfg.Median)
	}

	for _, n := range []int{0, -3} {
		_, err := Load(newViper(map[string]any{KeyMAC: "58:2D:34:10:AB:CD", KeyMedian: n}))
		if !errors.Is(err, logic.ErrInvalidWindowSize) {
			t.Errorf("median %d: expected ErrInvalidWindowSize, got %v", n, err)
		}
	}
}

func TestLoadConditions(t *testing.T) {
	cfg, err := Load(newViper(map[string]any{
		KeyMAC:                 "58:2D:34:10:AB:CD",
		KeyMonitoredConditions: []string{"Humidity", "temperature", "humidity"},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []logic.Quantity{logic.QuantityHumidity, logic.QuantityTemperature}
	if len(cfg.Conditions) != len(want) {
		t.Fatalf("Conditions: got %v, want %v", cfg.Conditions, want)
	}
	for i := range want {
		if cfg.Conditions[i] != want[i] {
			t.Errorf("Conditions[%d]: got %q, want %q", i, cfg.Conditions[i], want[i])
		}
	}
}

func TestLoadConditionsCommaSeparated(t *testing.T) {
	cfg, err := Load(newViper(map[string]any{
		KeyMAC:                 "58:2D:34:10:AB:CD",
		KeyMonitoredConditions: "battery, temperature",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Conditions) != 2 || cfg.Conditions[0] != logic.QuantityBattery {
		t.Errorf("Conditions: got %v", cfg.Conditions)
	}
}

func TestLoadRejectsUnknownCondition(t *testing.T) {
	_, err := Load(newViper(map[string]any{
		KeyMAC:                 "58:2D:34:10:AB:CD",
		KeyMonitoredConditions: []string{"pressure"},
	}))
	if err == nil {
		t.Error("expected error for unknown condition")
	}
}

func TestLoadDurations(t *testing.T) {
	tests := []struct {
		raw  any
		want time.Duration
	}{
		{"10s", 10 * time.Second},
		{"2m", 2 * time.Minute},
		{"45", 45 * time.Second},
		{30, 30 * time.Second},
		{1.5, 1500 * time.Millisecond},
		{5 * time.Second, 5 * time.Second},
	}
	for _, tt := range tests {
		cfg, err := Load(newViper(map[string]any{KeyMAC: "58:2D:34:10:AB:CD", KeyTimeout: tt.raw}))
		if err != nil {
			t.Errorf("timeout %v: %v", tt.raw, err)
			continue
		}
		if cfg.Timeout != tt.want {
			t.Errorf("timeout %v: got %v, want %v", tt.raw, cfg.Timeout, tt.want)
		}
	}
}

func TestLoadRejectsNonPositiveDurations(t *testing.T) {
	for _, key := range []string{KeyTimeout, KeyCacheValue, KeyUpdateInterval} {
		for _, raw := range []any{0, "-5s", "soon"} {
			_, err := Load(newViper(map[string]any{KeyMAC: "58:2D:34:10:AB:CD", key: raw}))
			if err == nil {
				t.Errorf("%s=%v: expected error", key, raw)
			}
		}
	}
}

func TestLoadHeartbeatZeroDisables(t *testing.T) {
	cfg, err := Load(newViper(map[string]any{KeyMAC: "58:2D:34:10:AB:CD", KeyHeartbeat: "0"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Heartbeat != 0 {
		t.Errorf("Heartbeat: got %v, want 0", cfg.Heartbeat)
	}

	if _, err := Load(newViper(map[string]any{KeyMAC: "58:2D:34:10:AB:CD", KeyHeartbeat: "-1m"})); err == nil {
		t.Error("expected error for negative heartbeat")
	}
}

func TestLoadDiscoveryPrefixTrimmed(t *testing.T) {
	cfg, err := Load(newViper(map[string]any{KeyMAC: "58:2D:34:10:AB:CD", KeyDiscoveryPrefix: " /ha/ "}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DiscoveryPrefix != "ha" {
		t.Errorf("DiscoveryPrefix: got %q, want ha", cfg.DiscoveryPrefix)
	}
}

func TestLoadEmptyHTTPDisables(t *testing.T) {
	cfg, err := Load(newViper(map[string]any{KeyMAC: "58:2D:34:10:AB:CD", KeyHTTP: ""}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != "" {
		t.Errorf("HTTPAddr: got %q, want empty", cfg.HTTPAddr)
	}
}

func TestLoadRequiresBroker(t *testing.T) {
	_, err := Load(newViper(map[string]any{KeyMAC: "58:2D:34:10:AB:CD", KeyBroker: "  "}))
	if err == nil {
		t.Error("expected error for empty broker")
	}
}

func TestLoadLogging(t *testing.T) {
	cfg, err := Load(newViper(map[string]any{KeyMAC: "58:2D:34:10:AB:CD", KeyLogLevel: "DEBUG", KeyLogFormat: "JSON"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "json" {
		t.Errorf("logging: got %v/%q", cfg.LogLevel, cfg.LogFormat)
	}

	if _, err := Load(newViper(map[string]any{KeyMAC: "58:2D:34:10:AB:CD", KeyLogLevel: "loud"})); err == nil {
		t.Error("expected error for bad log level")
	}
	if _, err := Load(newViper(map[string]any{KeyMAC: "58:2D:34:10:AB:CD", KeyLogFormat: "xml"})); err == nil {
		t.Error("expected error for bad log format")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MITEMP_MAC", "58:2D:34:10:AB:CD")
	t.Setenv("MITEMP_MEDIAN", "5")
	t.Setenv("MITEMP_CACHE_VALUE", "120")
	t.Setenv("MITEMP_MONITORED_CONDITIONS", "temperature,battery")

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Median != 5 {
		t.Errorf("Median: got %d, want 5", cfg.Median)
	}
	if cfg.CacheValue != 120*time.Second {
		t.Errorf("CacheValue: got %v, want 2m", cfg.CacheValue)
	}
	if len(cfg.Conditions) != 2 || cfg.Conditions[1] != logic.QuantityBattery {
		t.Errorf("Conditions: got %v", cfg.Conditions)
	}
}
