package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/anchorwatch/anchorsim/internal/config"
	"github.com/anchorwatch/anchorsim/internal/dispatcher"
	"github.com/anchorwatch/anchorsim/internal/influx"
	"github.com/anchorwatch/anchorsim/internal/logging"
	"github.com/anchorwatch/anchorsim/internal/publisher"
	"github.com/anchorwatch/anchorsim/internal/runner"
	"github.com/anchorwatch/anchorsim/internal/server"
	"github.com/anchorwatch/anchorsim/internal/sim"
	"github.com/anchorwatch/anchorsim/internal/storage"
)

// Version can be set at build time via ldflags.
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

const appName = "anchorsim"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configDir := flag.String("config", ".", "directory containing anchorsim.cfg.json")
	flag.Parse()

	sessionStart := time.Now()

	// A missing config file is fine; defaults cover everything.
	if err := config.Load(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v, continuing with defaults\n", err)
	}

	logger, err := logging.Setup(appName, sessionStart)
	if err != nil {
		return fmt.Errorf("logging setup: %w", err)
	}
	logger.Info().Str("version", Version).Str("buildDate", BuildDate).Msg("Starting anchorsim")

	simCfg := config.SimConfig()
	simulation, err := sim.New(simCfg, logger)
	if err != nil {
		return fmt.Errorf("invalid simulation config: %w", err)
	}

	backend, err := storage.NewBackend(config.GetStorageConfig(), logger)
	if err != nil {
		return fmt.Errorf("storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("storage init: %w", err)
	}

	var metrics *influx.Manager
	if viper.GetBool("influx.enabled") {
		backupPath := filepath.Join(viper.GetString("logsDir"), "influx_backup.gz")
		metrics = influx.NewManager(logger, backupPath)
		if err := metrics.Connect(); err != nil {
			logger.Warn().Err(err).Msg("InfluxDB unavailable, metrics disabled")
			metrics = nil
		}
	}

	var pubs []publisher.Publisher
	if viper.GetBool("websocket.enabled") {
		wsPub, err := publisher.NewWebSocketPublisher(viper.GetString("websocket.url"), logger)
		if err != nil {
			logger.Warn().Err(err).Msg("WebSocket publisher unavailable")
		} else {
			pubs = append(pubs, wsPub)
		}
	}
	if viper.GetBool("mqtt.enabled") {
		mqttPub, err := publisher.NewMQTTPublisher(publisher.MQTTConfig{
			Broker:      viper.GetString("mqtt.broker"),
			ClientID:    viper.GetString("mqtt.clientId"),
			Username:    viper.GetString("mqtt.username"),
			Password:    viper.GetString("mqtt.password"),
			TopicPrefix: viper.GetString("mqtt.topicPrefix"),
			QoS:         byte(viper.GetInt("mqtt.qos")),
		}, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("MQTT publisher unavailable")
		} else {
			pubs = append(pubs, mqttPub)
		}
	}
	var pub publisher.Publisher
	if len(pubs) > 0 {
		pub = publisher.NewMulti(logger, pubs...)
	}

	disp, err := dispatcher.New(logging.NewDispatcherLogger(logger))
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}

	tickLoop, err := runner.New(simulation, runner.Options{
		TickSeconds:      viper.GetFloat64("runner.tickSeconds"),
		TimeAcceleration: viper.GetFloat64("runner.timeAcceleration"),
		SessionTag:       viper.GetString("runner.sessionTag"),
	}, backend, metrics, pub, logger)
	if err != nil {
		return fmt.Errorf("runner: %w", err)
	}
	tickLoop.RegisterHandlers(disp)

	if err := tickLoop.Start(simCfg); err != nil {
		return fmt.Errorf("runner start: %w", err)
	}

	srv := server.New(disp, tickLoop.Snapshot, logger)
	listenAddr := viper.GetString("server.listen")
	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("listen", listenAddr).Msg("HTTP server listening")
		serverErr <- srv.Listen(listenAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("HTTP server failed")
		}
	}

	if err := srv.Shutdown(); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown error")
	}
	if err := tickLoop.Stop(); err != nil {
		logger.Warn().Err(err).Msg("Runner stop error")
	}
	if pub != nil {
		if err := pub.Close(); err != nil {
			logger.Warn().Err(err).Msg("Publisher close error")
		}
	}
	if metrics != nil {
		metrics.Close()
	}
	if err := backend.Close(); err != nil {
		logger.Warn().Err(err).Msg("Storage close error")
	}
	if exp, ok := backend.(storage.Exportable); ok {
		if path := exp.GetExportedFilePath(); path != "" {
			logger.Info().Str("path", path).Msg("Run exported")
		}
	}

	logger.Info().Msg("Shutdown complete")
	return nil
}
