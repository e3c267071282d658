package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/salushome/controller/config"
	"github.com/salushome/controller/it600"
	"github.com/salushome/controller/state"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/nest"
)

// DefaultGatewayStartTimeout bounds the connect and first poll of a gateway,
// a gateway that can not complete both does not come up.
const DefaultGatewayStartTimeout = 2 * time.Minute

type StartedGateway struct {
	Name     string
	Gateway  state.Gateway
	Shutdown func() error
}

func startGateways(cfgs []config.GatewayConfig, mux *state.GatewayMux, directories Directories, l logwrap.Logger) ([]StartedGateway, error) {
	var retGws []StartedGateway

	for _, cfg := range cfgs {
		dataDir := filepath.Join(directories.Data, "gateways", cfg.Name)

		if err := os.MkdirAll(dataDir, DefaultDirectoryPermissions); err != nil {
			return nil, fmt.Errorf("failed to create gateway data directory '%s': %w", dataDir, err)
		}

		if gw, shutdown, err := startGateway(cfg, dataDir, l); err != nil {
			return nil, fmt.Errorf("failed to start gateway '%s': %w", cfg.Name, err)
		} else {
			mux.Add(cfg.Name, gw)
			retGws = append(retGws, StartedGateway{
				Gateway:  gw,
				Name:     cfg.Name,
				Shutdown: shutdown,
			})
		}
	}

	return retGws, nil
}

func startGateway(cfg config.GatewayConfig, _ string, l logwrap.Logger) (state.Gateway, func() error, error) {
	wl := logwrap.New(nest.Wrap(l))
	wl.AddOptionsToLogger(logwrap.Datum("gateway", cfg.Name))

	switch gwCfg := cfg.Config.(type) {
	case *config.IT600Config:
		wl.AddOptionsToLogger(logwrap.Source("it600"))
		return startIT600Gateway(*gwCfg, wl)
	default:
		return nil, nil, fmt.Errorf("unknown gateway type loaded: %s", cfg.Type)
	}
}

func startIT600Gateway(cfg config.IT600Config, l logwrap.Logger) (state.Gateway, func() error, error) {
	transport := it600.NewHTTPTransport(cfg.Host, cfg.EUID)

	client, err := it600.New(it600.Config{
		Host:    cfg.Host,
		EUID:    cfg.EUID,
		Timeout: time.Duration(cfg.PollTimeoutSeconds) * time.Second,
	}, transport, l)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to construct it600 client: %w", err)
	}

	poller := it600.NewPoller(client, it600.PollerConfig{
		Interval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		Timeout:  time.Duration(cfg.PollTimeoutSeconds) * time.Second,
	}, l)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultGatewayStartTimeout)
	defer cancel()

	if err := poller.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start it600 poller: %w", err)
	}

	return poller, poller.Stop, nil
}

func loadGatewayConfigurations(dir string) ([]config.GatewayConfig, error) {
	if err := os.MkdirAll(dir, DefaultDirectoryPermissions); err != nil {
		return nil, fmt.Errorf("failed to ensure gateway configuration directory exists: %w", err)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory listing for gateway configurations: %w", err)
	}

	var retCfgs []config.GatewayConfig

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		fullPath := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(fullPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read gateway configuration file '%s': %w", fullPath, err)
		}

		cfg := config.GatewayConfig{
			Name: strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())),
		}

		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse gateway configuration file '%s': %w", fullPath, err)
		}

		retCfgs = append(retCfgs, cfg)
	}

	return retCfgs, nil
}
