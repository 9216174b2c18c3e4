// Command mitemp-sensor reads a BLE thermometer, stabilizes each quantity with
// a rolling median and publishes the results to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sweeney/mitemp-sensor/internal/config"
	"github.com/sweeney/mitemp-sensor/internal/gpio"
	"github.com/sweeney/mitemp-sensor/internal/logging"
	"github.com/sweeney/mitemp-sensor/internal/mqtt"
	"github.com/sweeney/mitemp-sensor/internal/poller"
	"github.com/sweeney/mitemp-sensor/internal/sensor"
	"github.com/sweeney/mitemp-sensor/internal/status"
	"github.com/sweeney/mitemp-sensor/internal/web"
)

const appName = "mitemp-sensor"

// Set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Publish median-filtered BLE thermometer readings to MQTT",
		Args:          cobra.NoArgs,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cfgFile)
			if err != nil {
				return err
			}
			logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat, version, appName)
			slog.SetDefault(logger)
			return run(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	bindFlags(cmd, v)
	return cmd
}

// bindFlags registers one flag per config key (underscores become dashes)
// and wires flags, MITEMP_* environment variables and defaults into v.
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()
	f.String(flagName(config.KeyMAC), "", "sensor MAC address (required)")
	f.StringSlice(flagName(config.KeyMonitoredConditions), nil, "quantities to publish: temperature, humidity, battery (default all)")
	f.String(flagName(config.KeyName), config.DefaultName, "entity name prefix")
	f.Int(flagName(config.KeyMedian), config.DefaultMedian, "median window size (1 disables smoothing)")
	f.Bool(flagName(config.KeyForceUpdate), false, "publish every cycle even if the value is unchanged")
	f.String(flagName(config.KeyTimeout), config.DefaultTimeout.String(), "how long a read waits for an advertisement")
	f.String(flagName(config.KeyCacheValue), config.DefaultCacheValue.String(), "how long an advertisement stays valid")
	f.String(flagName(config.KeyAdapter), config.DefaultAdapter, "bluetooth adapter (linux)")
	f.String(flagName(config.KeyUpdateInterval), config.DefaultUpdateInterval.String(), "polling interval")
	f.String(flagName(config.KeyBroker), config.DefaultBroker, "MQTT broker address")
	f.String(flagName(config.KeyDiscoveryPrefix), config.DefaultDiscoveryPrefix, "Home Assistant discovery prefix")
	f.String(flagName(config.KeyHTTP), config.DefaultHTTP, "HTTP status address (empty to disable)")
	f.String(flagName(config.KeyHeartbeat), config.DefaultHeartbeat.String(), "heartbeat interval (0 to disable)")
	f.Int(flagName(config.KeyLEDPin), config.DefaultLEDPin, "BCM pin of the ready LED (-1 to disable)")
	f.String(flagName(config.KeyLogLevel), "info", "log level: debug, info, warn, error")
	f.String(flagName(config.KeyLogFormat), "console", "log format: console, json")

	config.SetDefaults(v)
	for _, key := range configKeys {
		// Lookup cannot fail: every key was registered above.
		_ = v.BindPFlag(key, f.Lookup(flagName(key)))
	}
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
}

var configKeys = []string{
	config.KeyMAC,
	config.KeyMonitoredConditions,
	config.KeyName,
	config.KeyMedian,
	config.KeyForceUpdate,
	config.KeyTimeout,
	config.KeyCacheValue,
	config.KeyAdapter,
	config.KeyUpdateInterval,
	config.KeyBroker,
	config.KeyDiscoveryPrefix,
	config.KeyHTTP,
	config.KeyHeartbeat,
	config.KeyLEDPin,
	config.KeyLogLevel,
	config.KeyLogFormat,
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// loadConfig reads the optional config file into v and validates the result.
func loadConfig(v *viper.Viper, cfgFile string) (config.Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Initialize the ready LED. A missing LED never stops the daemon.
	indicator, err := gpio.Open(cfg.LEDPin)
	if err != nil {
		logger.Warn("led disabled", "pin", cfg.LEDPin, "error", err)
		indicator = gpio.NopIndicator{}
	}
	defer indicator.Close()

	// Initialize BLE scanning
	ble, err := poller.NewBLEPoller(poller.Options{
		Address:      cfg.Address,
		Adapter:      cfg.Adapter,
		CacheTimeout: cfg.CacheValue,
		Timeout:      cfg.Timeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("init ble: %w", err)
	}
	go func() {
		if err := ble.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("ble scan stopped", "error", err)
		}
	}()

	entities := make([]*sensor.Entity, 0, len(cfg.Conditions))
	for _, q := range cfg.Conditions {
		e, err := sensor.New(q, cfg.Name, cfg.Median, cfg.ForceUpdate, logger)
		if err != nil {
			return fmt.Errorf("init sensor: %w", err)
		}
		entities = append(entities, e)
	}

	// Initialize MQTT
	topics := mqtt.NewTopics(cfg.Address, cfg.DiscoveryPrefix)
	publisher, err := mqtt.NewRealPublisher(cfg.Broker, mqtt.NodeID(cfg.Address), topics, logger)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Address:          cfg.Address,
		Name:             cfg.Name,
		Adapter:          cfg.Adapter,
		Median:           cfg.Median,
		ForceUpdate:      cfg.ForceUpdate,
		UpdateIntervalMs: cfg.UpdateInterval.Milliseconds(),
		TimeoutMs:        cfg.Timeout.Milliseconds(),
		CacheValueMs:     cfg.CacheValue.Milliseconds(),
		HeartbeatMs:      cfg.Heartbeat.Milliseconds(),
		Broker:           cfg.Broker,
		DiscoveryPrefix:  cfg.DiscoveryPrefix,
		HTTPPort:         cfg.HTTPAddr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	d := &daemon{
		entities:   entities,
		deviceName: cfg.Name,
		poller:     ble,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		indicator:  indicator,
		logger:     logger,
		heartbeat:  cfg.Heartbeat,
		now:        time.Now,
	}
	d.announce()

	// Publish startup event with full status snapshot
	tracker.SetMQTTConnected(publisher.IsConnected())
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		logger.Warn("failed to publish startup event", "error", err)
	} else {
		logger.Info("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http status server listening", "addr", cfg.HTTPAddr)
	}

	logger.Info("started",
		"mac", cfg.Address,
		"conditions", cfg.Conditions,
		"median", cfg.Median,
		"update_interval", cfg.UpdateInterval,
		"broker", cfg.Broker,
		"heartbeat", cfg.Heartbeat,
	)

	ticker := time.NewTicker(cfg.UpdateInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	loopCtx, loopSig, stop := cancelOnSignal(ctx, sigCh)
	defer stop()
	return d.runLoop(loopCtx, ticker.C, loopSig)
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
