package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tempstation/internal/api"
	"tempstation/internal/board"
	"tempstation/internal/config"
	"tempstation/internal/httpapi"
	"tempstation/internal/influx"
	"tempstation/internal/led"
	"tempstation/internal/mqtt"
	"tempstation/internal/network"
	"tempstation/internal/report"
	"tempstation/internal/sensor"
	"tempstation/internal/station"
	"tempstation/internal/status"
	"tempstation/internal/telemetry"
)

// Run boots the station and runs the measurement loop until ctx is done.
func Run(ctx context.Context, cfg config.Config, version string) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"board", cfg.Board,
		"boardFile", cfg.BoardFile,
		"networkInterface", cfg.NetworkInterface,
		"intervalUnit", cfg.IntervalUnit,
		"mqttBroker", cfg.MQTTBroker,
		"influxURL", cfg.InfluxURL,
	)

	profile, err := board.Resolve(cfg.Board, cfg.BoardFile)
	if err != nil {
		return err
	}

	if err := sensor.Init(); err != nil {
		return err
	}
	dev, err := sensor.Open(profile.Sensor, sensor.Options{I2CBus: cfg.I2CBus, BME280Address: cfg.BME280Address})
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			slog.Error("sensor close", "error", err)
		}
	}()
	slog.Info("sensor ready", "device", dev.String(), "metrics", dev.Metrics())

	leds, err := led.Open(profile.LEDs, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if err := leds.Close(); err != nil {
			slog.Error("led close", "error", err)
		}
	}()

	if err := network.WaitReady(ctx, network.SystemLookup, cfg.NetworkInterface, cfg.NetworkWait, slog.Default()); err != nil {
		return err
	}
	hardwareID := cfg.HardwareID
	if hardwareID == "" {
		hardwareID, err = network.HardwareID(network.SystemLookup, cfg.NetworkInterface)
		if err != nil {
			return err
		}
	}

	client := api.New(api.Options{
		ConfigURL:       cfg.ConfigURL,
		DataURL:         cfg.DataURL,
		IntervalUnit:    cfg.IntervalUnit,
		Timeout:         cfg.APITimeout,
		BreakerFailures: cfg.APIBreakerFailures,
		BreakerOpenFor:  cfg.APIBreakerOpenFor,
		Logger:          slog.Default(),
	})
	st, err := client.FetchStation(ctx, hardwareID)
	if err != nil {
		return err
	}
	slog.Info("station configured",
		"station_id", st.ID,
		"hardware_id", st.HardwareID,
		"interval", st.Interval,
		"thresholds", len(st.Thresholds),
	)

	metrics := telemetry.New()
	metrics.SetInfo(strconv.Itoa(st.ID), st.HardwareID, profile.Name, version)

	sinks, closeSinks, err := buildSinks(ctx, cfg, st, profile, client)
	if err != nil {
		return err
	}
	defer closeSinks()
	fanout := report.NewFanout(slog.Default(), metrics.ObserveReport, sinks...)

	tracker := status.NewTracker(status.Snapshot{
		StationID:  st.ID,
		HardwareID: st.HardwareID,
		Board:      profile.Name,
		Sensor:     dev.String(),
		Interval:   st.Interval.String(),
		Sinks:      fanout.Names(),
	}, client.BreakerState)

	srv, errCh, err := startHTTP(cfg, tracker, metrics.Handler())
	if err != nil {
		return err
	}

	// The self test blinks for several seconds; /healthz is already up.
	if profile.SelfTest {
		if err := leds.SelfTest(ctx); err != nil {
			if serr := shutdownHTTP(srv, errCh); serr != nil {
				slog.Error("http shutdown", "error", serr)
			}
			return err
		}
	}

	loop := NewLoop(LoopOptions{
		Station:      st,
		Sensor:       dev,
		LEDs:         leds,
		Reporter:     fanout,
		Metrics:      metrics,
		Tracker:      tracker,
		Logger:       slog.Default(),
		SignalFirst:  profile.SignalBeforeReport,
		StartupDelay: cfg.StartupDelay,
	})

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(loopCtx) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		stopLoop()
		<-loopErr
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
	stopLoop()
	<-loopErr

	if err := shutdownHTTP(srv, errCh); err != nil {
		return err
	}
	return ctx.Err()
}

// startHTTP starts the local listener in the background. srv is nil when
// HTTP_ADDR is empty; errCh receives ListenAndServe's result.
func startHTTP(cfg config.Config, src httpapi.StatusSource, metrics http.Handler) (*http.Server, chan error, error) {
	errCh := make(chan error, 1)
	if cfg.HTTPAddr == "" {
		return nil, errCh, nil
	}
	mux, err := httpapi.NewMux(src, metrics)
	if err != nil {
		return nil, nil, err
	}
	srv := httpapi.NewServer(cfg, mux, slog.Default())
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()
	return srv, errCh, nil
}

// shutdownHTTP stops srv and waits for ListenAndServe to return. It is a
// no-op when the listener is disabled.
func shutdownHTTP(srv *http.Server, errCh <-chan error) error {
	if srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// buildSinks assembles the report destinations. The API sink is always
// present; MQTT and InfluxDB join when configured.
func buildSinks(ctx context.Context, cfg config.Config, st station.Station, profile board.Profile, client report.Poster) ([]report.Sink, func(), error) {
	sinks := []report.Sink{report.NewAPISink(client, slog.Default())}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.MQTTBroker != "" {
		mc, err := mqtt.NewClient(cfg, st, slog.Default())
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		go func() {
			if err := mc.Connect(ctx); err != nil {
				slog.Warn("mqtt connect failed, mirror disabled", "error", err)
				return
			}
			if err := mc.PublishPresence(mqtt.Presence{HardwareID: st.HardwareID, Online: true, Board: profile.Name}); err != nil {
				slog.Warn("mqtt presence", "error", err)
			}
		}()
		closers = append(closers, func() {
			if mc.IsConnected() {
				if err := mc.PublishPresence(mqtt.Presence{HardwareID: st.HardwareID, Online: false, Board: profile.Name}); err != nil {
					slog.Warn("mqtt presence", "error", err)
				}
			}
			mc.Disconnect()
		})
		slog.Info("mqtt mirror enabled", "telemetry_topic", mc.Topics().Telemetry, "status_topic", mc.Topics().Status)
		sinks = append(sinks, report.NewMQTTSink(mc))
	}

	if cfg.InfluxURL != "" {
		w, err := influx.NewWriter(cfg, profile.Name)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, w.Close)
		sinks = append(sinks, report.NewInfluxSink(w))
	}

	return sinks, closeAll, nil
}
