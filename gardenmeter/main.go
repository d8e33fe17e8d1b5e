package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itohio/gardenmeter/pkg/acquisition"
	"github.com/itohio/gardenmeter/pkg/clock"
	"github.com/itohio/gardenmeter/pkg/config"
	"github.com/itohio/gardenmeter/pkg/logstore"
	"github.com/itohio/gardenmeter/pkg/measurement"
	"github.com/itohio/gardenmeter/pkg/sensor"
	"github.com/itohio/gardenmeter/pkg/server"
)

func main() {
	var (
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		portFlag   = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		addrFlag   = flag.String("addr", "", "HTTP listen address override (e.g., :8080)")
		mockFlag   = flag.Bool("mock", false, "Use mocked sensors instead of hardware")
		debugFlag  = flag.Bool("debug", false, "Enable debug logging")
		portsFlag  = flag.Bool("ports", false, "List serial ports and exit")
		saveFlag   = flag.Bool("save-config", false, "Write the effective configuration to -config and exit")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debugFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *portsFlag {
		listPorts()
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		logger.Error("Failed to load configuration", "path", *configFlag, "error", err)
		os.Exit(1)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *addrFlag != "" {
		cfg.HTTP.Addr = *addrFlag
	}
	if *mockFlag {
		cfg.Device.Analog = config.DeviceMock
		cfg.Device.Climate = config.DeviceMock
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if *saveFlag {
		if err := cfg.Save(*configFlag); err != nil {
			logger.Error("Failed to save configuration", "error", err)
			os.Exit(1)
		}
		logger.Info("Configuration saved", "path", *configFlag)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Exiting", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}

func listPorts() {
	ports, err := sensor.Ports()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, p := range ports {
		fmt.Println(p.Name)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	device, err := newDevice(cfg, logger)
	if err != nil {
		return err
	}
	if err := device.Connect(); err != nil {
		return fmt.Errorf("failed to connect sensors: %w", err)
	}
	defer device.Close()

	loc, err := time.LoadLocation(cfg.Clock.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}
	clk := clock.New(newTimeSource(cfg), loc, logger.With("component", "clock"))
	// Not synchronized is not fatal: measurements are stamped with the sentinel.
	_ = clk.Sync(ctx, cfg.Clock.Attempts, cfg.Clock.Delay)

	store := logstore.New(cfg.Storage.Dir, cfg.Storage.File, logger.With("component", "logstore"))
	if err := store.Initialize(); err != nil {
		logger.Error("Failed to initialize log file, running without persistence", "path", store.Path(), "error", err)
	}

	recorders := []acquisition.Recorder{store}
	opts := []server.Option{server.WithFileName(cfg.Storage.File)}

	if cfg.Storage.SQLite != "" {
		mirror, err := logstore.OpenSQLMirror(cfg.Storage.SQLite)
		if err != nil {
			logger.Error("Failed to open SQLite mirror, history disabled", "path", cfg.Storage.SQLite, "error", err)
		} else {
			defer mirror.Close()
			recorders = append(recorders, mirror)
			opts = append(opts, server.WithHistory(mirror))
		}
	}

	state := measurement.NewState()
	reader := sensor.NewReader(device, cfg.Sampling.RetryBackoff, logger.With("component", "sensor"))
	loop := acquisition.New(acquisition.Config{
		Interval:      cfg.Sampling.Interval,
		SoilChannel:   sensor.Channel(cfg.Channels.Soil),
		LightChannel:  sensor.Channel(cfg.Channels.Light),
		RetryAttempts: cfg.Sampling.RetryAttempts,
	}, reader, cfg.Calibration, clk, state, logger.With("component", "acquisition"), recorders...)

	opts = append(opts, server.WithHealth(func() server.Health {
		return server.Health{
			Status:           "ok",
			Phase:            loop.Phase().String(),
			Cycles:           loop.Cycles(),
			TimeSynchronized: clk.Synchronized(),
			Timestamp:        clk.Now(),
		}
	}))
	srv := server.New(state, store, logger.With("component", "http"), opts...)

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(loopCtx) }()

	// Serve returns on shutdown or when the listener fails; either ends the loop.
	serveErr := srv.Serve(ctx, cfg.HTTP.Addr)
	cancelLoop()

	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return serveErr
}

func newDevice(cfg *config.Config, logger *slog.Logger) (sensor.Device, error) {
	var serial *sensor.Serial
	serialDevice := func() *sensor.Serial {
		if serial == nil {
			serial = sensor.NewSerial(cfg.Serial.Port, cfg.Serial.BaudRate, cfg.Serial.Timeout)
		}
		return serial
	}
	var mock *sensor.Mock
	mockDevice := func() *sensor.Mock {
		if mock == nil {
			mock = sensor.NewMock(&cfg.Mock)
		}
		return mock
	}

	var analog sensor.Device
	switch cfg.Device.Analog {
	case config.DeviceSerial:
		analog = serialDevice()
	case config.DeviceADS1115:
		ads, err := sensor.NewADS1115(cfg.I2C.Bus, cfg.I2C.Address, cfg.I2C.Gain, cfg.I2C.NativeMax)
		if err != nil {
			return nil, err
		}
		analog = ads
	case config.DeviceMock:
		analog = mockDevice()
	default:
		return nil, fmt.Errorf("unknown analog device %q", cfg.Device.Analog)
	}

	var climate sensor.Device
	switch cfg.Device.Climate {
	case config.DeviceSerial:
		climate = serialDevice()
	case config.DeviceMock:
		climate = mockDevice()
	default:
		return nil, fmt.Errorf("unknown climate device %q", cfg.Device.Climate)
	}

	logger.Info("Sensors configured", "analog", cfg.Device.Analog, "climate", cfg.Device.Climate, "serial_port", cfg.Serial.Port)
	if analog == climate {
		return analog, nil
	}
	return sensor.NewComposite(analog, climate), nil
}

func newTimeSource(cfg *config.Config) clock.TimeSource {
	if cfg.Clock.Source == config.ClockSystem {
		return clock.NewSystem()
	}
	return clock.NewNTP(cfg.Clock.Server, 0)
}
