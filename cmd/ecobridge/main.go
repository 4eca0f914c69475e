package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brindle-labs/ecobridge/cmd/app"
	httpctrl "github.com/brindle-labs/ecobridge/internal/controllers/http"
	modbusctrl "github.com/brindle-labs/ecobridge/internal/controllers/modbus"
	mqttctrl "github.com/brindle-labs/ecobridge/internal/controllers/mqtt"
	"github.com/brindle-labs/ecobridge/internal/ecobee"
	"github.com/brindle-labs/ecobridge/internal/platform"
)

func main() {
	var configPath string
	var debug bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file (.yaml/.yml/.json)")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	app.ApplyEnvOverrides(&cfg)

	if cfg.Ecobee.AccessToken == "" {
		logger.Error("no ecobee access token configured")
		os.Exit(1)
	}

	opts := []ecobee.ClientOption{
		ecobee.WithTimeout(cfg.Ecobee.Timeout),
		ecobee.WithLogger(logger),
	}
	if cfg.Ecobee.BaseURL != "" {
		opts = append(opts, ecobee.WithBaseURL(cfg.Ecobee.BaseURL))
	}
	client, err := ecobee.NewClient(cfg.Ecobee.AccessToken, opts...)
	if err != nil {
		logger.Error("build ecobee client", "error", err)
		os.Exit(1)
	}
	svc := ecobee.NewService(client, cfg.Ecobee.Throttle, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	plat, err := platform.Setup(ctx, svc, &platform.DiscoveryInfo{HoldTemp: cfg.HoldTemp()}, logger)
	if err != nil {
		logger.Error("platform setup", "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, 4)

	go func() { errCh <- plat.Run(ctx, cfg.Platform.RefreshInterval) }()

	if cfg.Controllers.HTTP.Enabled {
		srv := httpctrl.New(plat, plat.ServiceDescriptions(), cfg.Controllers.HTTP.Addr, logger)
		logger.Info("http controller listening", "addr", cfg.Controllers.HTTP.Addr)
		go func() { errCh <- srv.Run(ctx) }()
	}
	if cfg.Controllers.MQTT.Enabled {
		ctrl, err := mqttctrl.New(plat, mqttctrl.Config{
			BrokerURL:       cfg.Controllers.MQTT.BrokerURL,
			ClientID:        cfg.Controllers.MQTT.ClientID,
			BaseTopic:       cfg.Controllers.MQTT.BaseTopic,
			QoS:             cfg.Controllers.MQTT.QoS,
			RetainState:     cfg.Controllers.MQTT.RetainState,
			PublishInterval: cfg.Controllers.MQTT.PublishInterval,
			Username:        cfg.Controllers.MQTT.Username,
			Password:        cfg.Controllers.MQTT.Password,
		}, logger)
		if err != nil {
			logger.Error("build mqtt controller", "error", err)
			os.Exit(1)
		}
		go func() { errCh <- ctrl.Run(ctx) }()
	}
	if cfg.Controllers.MODBUS.Enabled {
		ctrl, err := modbusctrl.New(plat, modbusctrl.Config{
			Addr:   cfg.Controllers.MODBUS.Addr,
			UnitID: cfg.Controllers.MODBUS.UnitID,
		})
		if err != nil {
			logger.Error("build modbus controller", "error", err)
			os.Exit(1)
		}
		go func() { errCh <- ctrl.Run(ctx) }()
	}

	if err := <-errCh; err != nil && err != context.Canceled {
		logger.Error("controller exited", "error", err)
		os.Exit(1)
	}
}
