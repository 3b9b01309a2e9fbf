package gps

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"gpsreader/internal/sim"
)

// Config controls the GPS reader.
//
// Receivers usually appear as /dev/ttyACM* or /dev/ttyUSB*; Bluetooth
// receivers bound with rfcomm appear as /dev/rfcomm*. Most emit NMEA at
// 9600 baud (older units 4800).
//
// Device may be empty to auto-detect.
type Config struct {
	Enable bool

	// Source selects the byte source: "nmea" (serial tty), "gpsd" (raw NMEA
	// relayed by gpsd), "tcp" (plain NMEA over TCP) or "sim" (a synthetic
	// receiver flying Sim). Defaults to "nmea".
	Source string

	// Addr is host:port for the gpsd and tcp sources.
	Addr string

	// Device is the serial device path for Source=="nmea".
	Device string
	Baud   int

	// BufferSize is the line buffer capacity. Zero selects DefaultCapacity,
	// or 4096 for gpsd whose JSON reports share the stream.
	BufferSize int

	// Strict rejects sentences without a checksum.
	Strict bool

	Sim         sim.Route
	SimInterval time.Duration
}

// ChunkRecorder captures raw input as it arrives.
type ChunkRecorder interface {
	WriteChunk(now time.Time, chunk []byte) error
}

type ServiceOption func(*Service)

// WithSinks adds notifiers that receive every update alongside the
// Service's own Fix.
func WithSinks(ns ...Notifier) ServiceOption {
	return func(s *Service) { s.sinks = append(s.sinks, ns...) }
}

func WithObserver(h Hooks) ServiceOption {
	return func(s *Service) { s.hooks = h }
}

func WithServiceLogger(l *log.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func WithRecorder(r ChunkRecorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// WithCommitHook runs fn with every committed Snapshot, source details
// included. It runs on the ingestion goroutine.
func WithCommitHook(fn func(Snapshot)) ServiceOption {
	return func(s *Service) { s.onCommit = fn }
}

type Service struct {
	cfg    Config
	source string
	logger *log.Logger
	hooks  Hooks
	sinks  []Notifier

	fix      *Fix
	onCommit func(Snapshot)

	feedMu   sync.Mutex
	reader   *Reader
	recorder ChunkRecorder

	cancel context.CancelFunc
	wg     sync.WaitGroup

	last atomic.Value // Snapshot

	mu      sync.Mutex
	closer  io.Closer
	device  string
	baud    int
	addr    string
	lastErr string
}

func New(cfg Config, opts ...ServiceOption) *Service {
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	if s.hooks == nil {
		s.hooks = NopHooks{}
	}

	s.source = strings.ToLower(strings.TrimSpace(cfg.Source))
	if s.source == "" {
		s.source = "nmea"
	}
	s.device = cfg.Device
	s.baud = cfg.Baud
	s.addr = strings.TrimSpace(cfg.Addr)

	s.fix = NewFix(OnCommit(func(snap Snapshot) {
		s.last.Store(snap)
		if s.onCommit != nil {
			s.onCommit(s.withSource(snap))
		}
	}))
	notifiers := append([]Notifier{s.fix}, s.sinks...)
	disp := NewDispatcher(Notifiers(notifiers...),
		WithLogger(s.logger),
		WithHooks(s.hooks),
		WithStrict(cfg.Strict),
	)

	var h LineHandler = disp
	size := cfg.BufferSize
	if s.source == "gpsd" {
		h = gpsdFilter{next: disp, onReport: s.gpsdReport}
		if size <= 0 {
			size = 4096
		}
	}
	s.reader = NewReader(size, h, s.hooks)

	s.last.Store(Snapshot{Enabled: cfg.Enable})
	return s
}

// Feed pushes raw bytes through the framer. It is safe to call from any
// goroutine; chunks are processed one at a time.
func (s *Service) Feed(chunk []byte) {
	if s == nil || len(chunk) == 0 {
		return
	}
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	if s.recorder != nil {
		if err := s.recorder.WriteChunk(time.Now(), chunk); err != nil {
			s.logger.Warn("gps record failed", "err", err)
			s.recorder = nil
		}
	}
	s.reader.Append(chunk)
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("gps service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	var open func(ctx context.Context) (io.ReadCloser, error)
	switch s.source {
	case "nmea":
		if err := s.resolveDeviceLocked(); err != nil {
			return err
		}
		device, baud := s.device, s.baud
		open = func(context.Context) (io.ReadCloser, error) {
			f, err := openSerial(device, baud)
			if err != nil {
				return nil, fmt.Errorf("gps open failed device=%s baud=%d: %w", device, baud, err)
			}
			return f, nil
		}
		s.logger.Info("gps enabled", "source", s.source, "device", device, "baud", baud)
	case "gpsd":
		if s.addr == "" {
			s.addr = gpsdDefaultAddr
		}
		addr := s.addr
		open = func(ctx context.Context) (io.ReadCloser, error) {
			conn, err := dialGPSD(ctx, addr)
			if err != nil {
				return nil, fmt.Errorf("gpsd dial failed addr=%s: %w", addr, err)
			}
			if err := gpsdWatch(conn); err != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("gpsd watch failed: %w", err)
			}
			return conn, nil
		}
		s.logger.Info("gps enabled", "source", s.source, "addr", addr)
	case "tcp":
		if s.addr == "" {
			return fmt.Errorf("gps tcp source requires addr")
		}
		addr := s.addr
		open = func(ctx context.Context) (io.ReadCloser, error) {
			d := &net.Dialer{Timeout: 2 * time.Second}
			conn, err := d.DialContext(ctx, "tcp", addr)
			if err != nil {
				return nil, fmt.Errorf("tcp dial failed addr=%s: %w", addr, err)
			}
			return conn, nil
		}
		s.logger.Info("gps enabled", "source", s.source, "addr", addr)
	case "sim":
		route, interval := s.cfg.Sim, s.cfg.SimInterval
		open = func(context.Context) (io.ReadCloser, error) {
			return sim.NewReceiver(route, interval), nil
		}
		s.logger.Info("gps enabled", "source", s.source,
			"center_lat", route.CenterLatDeg, "center_lon", route.CenterLonDeg)
	default:
		return fmt.Errorf("unknown gps source %q", s.cfg.Source)
	}

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runLoop(childCtx, open)
	}()
	return nil
}

func (s *Service) resolveDeviceLocked() error {
	s.device = strings.TrimSpace(s.device)
	if s.device == "" {
		s.device = autoDetectDevice()
		if s.device == "" {
			s.lastErr = "gps auto-detect failed: no /dev/ttyACM*, /dev/ttyUSB* or /dev/rfcomm* found"
			return fmt.Errorf("gps auto-detect failed")
		}
	}
	if s.baud == 0 {
		s.baud = 9600
	}
	return nil
}

// runLoop reads the source until ctx ends, reopening it with exponential
// backoff after failures.
func (s *Service) runLoop(ctx context.Context, open func(context.Context) (io.ReadCloser, error)) {
	const (
		minBackoff = 250 * time.Millisecond
		maxBackoff = 10 * time.Second
	)
	backoff := minBackoff
	buf := make([]byte, 512)

	for {
		if ctx.Err() != nil {
			return
		}

		rc, err := open(ctx)
		if err != nil {
			s.setError(err.Error())
			s.logger.Warn("gps source unavailable", "err", err, "retry", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < maxBackoff {
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			continue
		}
		backoff = minBackoff

		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			_ = rc.Close()
			return
		}
		// Swap the closer so Close() can interrupt an active read.
		s.closer = rc
		s.mu.Unlock()

		// A partial line from a previous connection must not prefix the
		// first line of this one.
		s.feedMu.Lock()
		s.reader.Reset()
		s.feedMu.Unlock()

		for {
			n, err := rc.Read(buf)
			if n > 0 {
				s.Feed(buf[:n])
			}
			if err != nil {
				_ = rc.Close()
				if ctx.Err() != nil {
					return
				}
				s.setError(fmt.Sprintf("gps read stopped: %v", err))
				s.logger.Warn("gps read stopped", "err", err)
				break
			}
		}
	}
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	// Cancel first: runLoop re-checks ctx before publishing a new closer.
	s.mu.Lock()
	closer := s.closer
	s.closer = nil
	s.mu.Unlock()
	if closer != nil {
		_ = closer.Close()
	}
	s.wg.Wait()
}

// Snapshot returns the last committed fix plus source details.
func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	v, _ := s.last.Load().(Snapshot)
	return s.withSource(v)
}

func (s *Service) withSource(v Snapshot) Snapshot {
	s.mu.Lock()
	v.Source = s.source
	v.Device = s.device
	v.Baud = s.baud
	v.Addr = s.addr
	v.LastError = s.lastErr
	s.mu.Unlock()
	return v
}

func (s *Service) gpsdReport(rep gpsdReport) {
	switch rep.Class {
	case "ERROR":
		s.setError("gpsd: " + rep.Message)
		s.logger.Warn("gpsd error", "message", rep.Message)
	case "DEVICES":
		paths := make([]string, 0, len(rep.Devices))
		for _, d := range rep.Devices {
			paths = append(paths, d.Path)
		}
		s.mu.Lock()
		if len(paths) > 0 {
			s.device = strings.Join(paths, ",")
		}
		s.mu.Unlock()
		s.logger.Info("gpsd devices", "paths", paths)
	}
}

func (s *Service) setError(msg string) {
	s.mu.Lock()
	// Do not touch Valid; transient source errors shouldn't flip validity.
	s.lastErr = msg
	s.mu.Unlock()
}

func autoDetectDevice() string {
	candidates := []string{}
	for _, prefix := range []string{"/dev/ttyACM", "/dev/ttyUSB", "/dev/rfcomm"} {
		for i := 0; i < 10; i++ {
			candidates = append(candidates, fmt.Sprintf("%s%d", prefix, i))
		}
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
