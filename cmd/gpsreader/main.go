package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"gpsreader/internal/config"
	"gpsreader/internal/console"
	"gpsreader/internal/gps"
	"gpsreader/internal/metrics"
	"gpsreader/internal/replay"
	"gpsreader/internal/sim"
	"gpsreader/internal/udp"
	"gpsreader/internal/web"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath string
	summary    string
	help       bool
}

// parseFlags loads the config file (if any) and applies flag overrides on
// top of it.
func parseFlags(args []string, stderr io.Writer) (config.Config, options, error) {
	fs := pflag.NewFlagSet("gpsreader", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	var opt options
	fs.StringVarP(&opt.configPath, "config", "c", "", "Path to YAML config.")
	fs.StringVar(&opt.summary, "summary", "", "Print a summary of a recorded chunk log and exit.")
	fs.BoolVar(&opt.help, "help", false, "Display help text.")

	device := fs.StringP("device", "d", "", "Serial device, e.g. /dev/ttyACM0. Empty to auto-detect.")
	baud := fs.IntP("baud", "b", 9600, "Serial port speed.")
	source := fs.StringP("source", "s", "nmea", "Byte source: nmea, gpsd, tcp or sim.")
	addr := fs.String("addr", "", "host:port for the gpsd and tcp sources.")
	strict := fs.Bool("strict", false, "Reject sentences without a checksum.")
	replayPath := fs.String("replay", "", "Replay a recorded chunk log instead of reading a device.")
	replaySpeed := fs.Float64("replay-speed", 1, "Replay speed multiplier.")
	loop := fs.Bool("loop", false, "Loop the replay.")
	recordPath := fs.String("record", "", "Record raw input chunks to this file.")
	level := fs.StringP("log-level", "l", "info", "Log level: debug, info, warn, error.")
	printLines := fs.BoolP("print", "p", false, "Print one line per update cycle to stdout.")
	timeFormat := fs.StringP("timestamp-format", "T", config.DefaultTimeFormat, "strftime pattern for --print.")
	grid := fs.String("grid", "", "Add a grid reference to --print output: utm or mgrs.")
	udpDest := fs.String("udp", "", "Send one JSON datagram per update cycle to host:port.")
	listen := fs.String("listen", "", "Serve the status API and websocket on this address.")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Read NMEA-0183 from a GPS receiver and publish fixes.\n\n")
		fmt.Fprintf(stderr, "Usage: gpsreader [options]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return config.Config{}, opt, err
	}
	if opt.help {
		fs.Usage()
		return config.Config{}, opt, nil
	}

	cfg := config.Default()
	if opt.configPath != "" {
		c, err := config.Load(opt.configPath)
		if err != nil {
			return config.Config{}, opt, fmt.Errorf("config load failed: %w", err)
		}
		cfg = c
	}

	if fs.Changed("device") {
		cfg.GPS.Device = *device
		cfg.GPS.Enable = true
	}
	if fs.Changed("baud") {
		cfg.GPS.Baud = *baud
	}
	if fs.Changed("source") {
		cfg.GPS.Source = *source
		cfg.GPS.Enable = true
	}
	if fs.Changed("addr") {
		cfg.GPS.Addr = *addr
	}
	if fs.Changed("strict") {
		cfg.GPS.Strict = *strict
	}
	if fs.Changed("replay") {
		cfg.Replay = config.ReplayConfig{Enable: true, Path: *replayPath, Speed: *replaySpeed, Loop: *loop}
	}
	if fs.Changed("record") {
		cfg.Record = config.RecordConfig{Enable: true, Path: *recordPath}
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = *level
	}
	if fs.Changed("print") {
		cfg.Console.Enable = *printLines
	}
	if fs.Changed("timestamp-format") {
		cfg.Console.TimeFormat = *timeFormat
	}
	if fs.Changed("grid") {
		cfg.Console.Grid = *grid
	}
	if fs.Changed("udp") {
		cfg.UDP = config.UDPConfig{Enable: true, Dest: *udpDest}
	}
	if fs.Changed("listen") {
		cfg.Web = config.WebConfig{Enable: true, Listen: *listen}
	}

	if err := cfg.Normalize(); err != nil {
		return config.Config{}, opt, err
	}
	return cfg, opt, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, opt, err := parseFlags(args, stderr)
	if errors.Is(err, pflag.ErrHelp) || (err == nil && opt.help) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "gpsreader: %v\n", err)
		return 2
	}

	if opt.summary != "" {
		if err := printLogSummary(stdout, opt.summary); err != nil {
			fmt.Fprintf(stderr, "gpsreader: %v\n", err)
			return 1
		}
		return 0
	}

	logs := web.NewLogBuffer(2000)
	logger := log.NewWithOptions(io.MultiWriter(stderr, logs), log.Options{
		ReportTimestamp: true,
		Prefix:          "gpsreader",
	})
	lvl, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)

	if err := serve(ctx, cfg, logger, logs, stdout); err != nil {
		logger.Error("gpsreader stopped", "err", err)
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg config.Config, logger *log.Logger, logs *web.LogBuffer, stdout io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := metrics.New()
	hub := web.NewHub(logger)

	var sinks []gps.Notifier
	if cfg.UDP.Enable {
		b, err := udp.NewBroadcaster(cfg.UDP.Dest)
		if err != nil {
			return fmt.Errorf("udp broadcaster init failed: %w", err)
		}
		defer b.Close()
		pub := udp.NewPublisher(b, udp.WithLogger(logger))
		sinks = append(sinks, pub)
		logger.Info("udp publishing", "dest", cfg.UDP.Dest, "session", pub.Session())
	}
	if cfg.Console.Enable {
		p, err := console.NewPrinter(stdout, cfg.Console.TimeFormat, console.WithGrid(console.Grid(cfg.Console.Grid)))
		if err != nil {
			return err
		}
		sinks = append(sinks, p)
	}

	opts := []gps.ServiceOption{
		gps.WithSinks(sinks...),
		gps.WithObserver(m),
		gps.WithServiceLogger(logger),
		gps.WithCommitHook(hub.Publish),
	}
	if cfg.Record.Enable {
		w, err := replay.CreateWriter(cfg.Record.Path)
		if err != nil {
			return fmt.Errorf("record open failed: %w", err)
		}
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("record close failed", "err", err)
			}
		}()
		opts = append(opts, gps.WithRecorder(w))
		logger.Info("recording raw input", "path", cfg.Record.Path)
	}

	gcfg := gps.Config{
		Enable:     cfg.GPS.Enable || cfg.Replay.Enable,
		Source:     cfg.GPS.Source,
		Addr:       cfg.GPS.Addr,
		Device:     cfg.GPS.Device,
		Baud:       cfg.GPS.Baud,
		BufferSize: cfg.GPS.BufferSize,
		Strict:     cfg.GPS.Strict,
		Sim: sim.Route{
			CenterLatDeg: cfg.GPS.Sim.CenterLatDeg,
			CenterLonDeg: cfg.GPS.Sim.CenterLonDeg,
			AltMeters:    cfg.GPS.Sim.AltMeters,
			GroundKt:     cfg.GPS.Sim.GroundKt,
			RadiusNm:     cfg.GPS.Sim.RadiusNm,
			Period:       cfg.GPS.Sim.Period,
		},
		SimInterval: cfg.GPS.Sim.Interval,
	}
	svc := gps.New(gcfg, opts...)
	defer svc.Close()

	status := web.NewStatus(svc, m)
	if cfg.UDP.Enable {
		status.SetUDPDest(cfg.UDP.Dest)
	}

	errCh := make(chan error, 2)
	if cfg.Web.Enable {
		h := web.Handler(status, hub, logs, m.Handler())
		go func() {
			if err := web.Serve(ctx, cfg.Web.Listen, h); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("web server: %w", err)
			}
		}()
		logger.Info("web listening", "addr", cfg.Web.Listen)
	}

	if cfg.Replay.Enable {
		recs, err := replay.ReadFile(cfg.Replay.Path)
		if err != nil {
			return fmt.Errorf("replay load failed: %w", err)
		}
		logger.Info("replaying", "path", cfg.Replay.Path, "records", len(recs), "speed", cfg.Replay.Speed, "loop", cfg.Replay.Loop)
		go func() {
			err := replay.Play(ctx, recs, cfg.Replay.Speed, cfg.Replay.Loop, nil, func(chunk []byte) error {
				svc.Feed(chunk)
				return nil
			})
			if err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("replay: %w", err)
				return
			}
			errCh <- nil
		}()
	} else if err := svc.Start(ctx); err != nil {
		return err
	}

	logger.Info("gpsreader started")
	select {
	case <-ctx.Done():
		logger.Info("gpsreader stopping")
		return nil
	case err := <-errCh:
		if err == nil {
			snap := svc.Snapshot()
			logger.Info("replay finished", "cycles", snap.Cycles, "valid", snap.Valid)
		}
		return err
	}
}
