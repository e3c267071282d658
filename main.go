package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/salushome/controller/layers"
	"github.com/salushome/controller/state"
	lw "github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/golog"
)

func main() {
	ctx := context.Background()
	l := lw.New(golog.Wrap(log.New(os.Stderr, "", log.LstdFlags)))

	l.LogInfo(ctx, "Salus Home: Controller - Starting...")

	directories := enumerateDirectories(ctx, l)

	l.LogInfo(ctx, "Directory enumeration complete.", lw.Datum("directories", directories))

	l, err := configureLogging(filepath.Join(directories.Config, "logging"), directories.Log, l)
	if err != nil {
		l.LogFatal(ctx, "Failed to configure logging.", lw.Err(err))
	}

	gatewayCfgs, err := loadGatewayConfigurations(filepath.Join(directories.Config, "gateways"))
	if err != nil {
		l.LogFatal(ctx, "Failed to load gateway configurations.", lw.Err(err))
	}

	interfaceCfgs, err := loadInterfaceConfigurations(filepath.Join(directories.Config, "interfaces"))
	if err != nil {
		l.LogFatal(ctx, "Failed to load interface configurations.", lw.Err(err))
	}

	eventbus := state.NewEventBus()

	l.LogInfo(ctx, "Initialising device organiser.")
	deviceOrganiser := state.NewDeviceOrganiser(eventbus)

	shutdownDeviceOrganiser, err := initialiseDeviceOrganiser(l, directories.Data, &deviceOrganiser)
	if err != nil {
		l.LogFatal(ctx, "Failed to initialise device organiser.", lw.Err(err))
	}

	l.LogInfo(ctx, "Loaded gateway configurations.", lw.Datum("configCount", len(gatewayCfgs)))
	gwMux := state.NewGatewayMux(eventbus)

	l.LogInfo(ctx, "Linking device organiser to event bus.")
	unlinkDeviceOrganiser := updateDeviceOrganiserFromEvents(eventbus, &deviceOrganiser)

	stack := layers.PassThruStack{}

	l.LogInfo(ctx, "Starting interfaces.")
	startedInterfaces, err := startInterfaces(interfaceCfgs, gwMux, &deviceOrganiser, eventbus, directories, stack, l)
	if err != nil {
		l.LogFatal(ctx, "Failed to start interfaces.", lw.Err(err))
	}

	l.LogInfo(ctx, "Starting gateways.")
	startedGateways, err := startGateways(gatewayCfgs, gwMux, directories, l)
	if err != nil {
		l.LogFatal(ctx, "Failed to start gateways.", lw.Err(err))
	}

	l.LogInfo(ctx, "Controller ready.")

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	s := <-signalCh
	l.LogInfo(ctx, "Signal received, shutting down.", lw.Datum("signal", s.String()))

	for _, i := range startedInterfaces {
		l.LogInfo(ctx, "Shutting down interface.", lw.Datum("interface", i.Name))

		if err := i.Shutdown(); err != nil {
			l.LogError(ctx, "Failed to shutdown interface.", lw.Err(err), lw.Datum("interface", i.Name))
		}
	}

	for _, gw := range startedGateways {
		l.LogInfo(ctx, "Shutting down gateway.", lw.Datum("gateway", gw.Name))

		if err := gw.Shutdown(); err != nil {
			l.LogError(ctx, "Failed to shutdown gateway.", lw.Err(err), lw.Datum("gateway", gw.Name))
		}
	}

	l.LogInfo(ctx, "Shutting down gateway mux.")
	gwMux.Stop()

	l.LogInfo(ctx, "Unlinking device organiser from event bus.")
	unlinkDeviceOrganiser()

	l.LogInfo(ctx, "Shutting down device organiser.")
	shutdownDeviceOrganiser()

	l.LogInfo(ctx, "Shut down complete.")
}

func initialiseDeviceOrganiser(l lw.Logger, dir string, d *state.DeviceOrganiser) (func(), error) {
	zoneFile := filepath.Join(dir, "zones.json")
	deviceFile := filepath.Join(dir, "devices.json")

	if err := state.LoadZones(zoneFile, d); err != nil {
		return func() {}, fmt.Errorf("failed to load zones: %w", err)
	}

	if err := state.LoadDevices(deviceFile, d); err != nil {
		return func() {}, fmt.Errorf("failed to load devices: %w", err)
	}

	if err := state.SaveZones(zoneFile, d); err != nil {
		return func() {}, fmt.Errorf("failed initial save of zones: %w", err)
	}

	if err := state.SaveDevices(deviceFile, d); err != nil {
		return func() {}, fmt.Errorf("failed initial save of devices: %w", err)
	}

	save := func() {
		if err := state.SaveZones(zoneFile, d); err != nil {
			l.LogError(context.Background(), "Failed to periodically save zones for device organiser.", lw.Err(err))
		}

		if err := state.SaveDevices(deviceFile, d); err != nil {
			l.LogError(context.Background(), "Failed to periodically save devices for device organiser.", lw.Err(err))
		}
	}

	shutCh := make(chan struct{}, 1)

	go func() {
		t := time.NewTicker(1 * time.Minute)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				save()
			case <-shutCh:
				save()
				return
			}
		}
	}()

	return func() {
		shutCh <- struct{}{}
	}, nil
}

// updateDeviceOrganiserFromEvents keeps the organiser's device metadata table
// in step with the devices the gateways actually have, metadata for a device
// that leaves a gateway is discarded.
func updateDeviceOrganiserFromEvents(subscriber state.EventSubscriber, do *state.DeviceOrganiser) func() {
	ch := subscriber.Subscribe()
	stopCh := make(chan struct{}, 1)

	go func() {
		defer subscriber.Unsubscribe(ch)

		for {
			select {
			case e := <-ch:
				switch ce := e.(type) {
				case state.DeviceUpdate:
					do.AddDevice(ce.Device.ID)
				case state.DeviceRemove:
					do.RemoveDevice(ce.Device.ID)
				}
			case <-stopCh:
				return
			}
		}
	}()

	return func() {
		stopCh <- struct{}{}
	}
}
