// Command muxmon tails the framed telemetry a sensor-array board emits and
// renders it as structured logs, optionally forwarding every sample to
// InfluxDB. It reads a serial port, or stdin so host builds can pipe
// straight in.
//
//	muxmon -list
//	muxmon -port /dev/ttyACM0
//	hostsim 2>/dev/null | muxmon -port -
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dikkadev/prettyslog"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/pkg/errors"
	"go.bug.st/serial"
	"gopkg.in/yaml.v2"

	"sensorcode-go/muxwire"
)

// Config is muxmon.yaml. Everything has a workable default except the port.
type Config struct {
	Port   string       `yaml:"port"`
	Baud   int          `yaml:"baud"`
	Labels []string     `yaml:"labels"` // channel labels, index = channel
	Influx InfluxConfig `yaml:"influx"`
}

type InfluxConfig struct {
	URL         string `yaml:"url"` // empty disables forwarding
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
	Device      string `yaml:"device"` // tag distinguishing boards
}

func (c Config) label(i int) string {
	if i < len(c.Labels) && c.Labels[i] != "" {
		return c.Labels[i]
	}
	return "ch" + strconv.Itoa(i)
}

func main() {
	var (
		cfgPath = flag.String("config", "muxmon.yaml", "config file")
		port    = flag.String("port", "", "serial port; overrides config, \"-\" reads stdin")
		baud    = flag.Int("baud", 0, "baud rate; overrides config")
		list    = flag.Bool("list", false, "list serial ports and exit")
		raw     = flag.Bool("raw", false, "log every sample, not just the sweep summary")
	)
	flag.Parse()

	logger := slog.New(prettyslog.NewPrettyslogHandler("muxmon",
		prettyslog.WithLevel(slog.LevelDebug),
	))
	slog.SetDefault(logger)

	if *list {
		ports, err := serial.GetPortsList()
		if err != nil {
			slog.Error("listing ports", "err", err)
			os.Exit(1)
		}
		for _, p := range ports {
			slog.Info("port", "name", p)
		}
		return
	}

	cfg := loadConfig(*cfgPath)
	if *port != "" {
		cfg.Port = *port
	}
	if *baud != 0 {
		cfg.Baud = *baud
	}
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	if cfg.Port == "" {
		slog.Error("no port; use -port or set one in the config file")
		os.Exit(2)
	}

	in, err := openInput(cfg)
	if err != nil {
		slog.Error("opening input", "port", cfg.Port, "err", err)
		os.Exit(1)
	}

	var sink *influxSink
	if cfg.Influx.URL != "" {
		sink = newInfluxSink(cfg)
		defer sink.close()
		slog.Info("forwarding to influx", "url", cfg.Influx.URL, "bucket", cfg.Influx.Bucket)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		// Unblock the pending Read when the operator bails out.
		<-ctx.Done()
		_ = in.Close()
	}()

	slog.Info("listening", "port", cfg.Port, "baud", cfg.Baud)
	run(ctx, in, cfg, sink, *raw)
}

func loadConfig(path string) Config {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("no config file; using defaults", "path", path)
		return cfg
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		slog.Warn("error parsing config file", "path", path, "err", err)
		return Config{}
	}
	return cfg
}

func openInput(cfg Config) (io.ReadCloser, error) {
	if cfg.Port == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	p, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.Baud})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", cfg.Port)
	}
	return p, nil
}

// -----------------------------------------------------------------------------
// Read loop
// -----------------------------------------------------------------------------

func run(ctx context.Context, in io.Reader, cfg Config, sink *influxSink, raw bool) {
	sc := muxwire.NewScanner()
	buf := make([]byte, 512)

	var (
		lastSeq uint8
		haveSeq bool
		frames  uint64
		lost    uint64
	)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			sc.Push(buf[:n])
			for {
				f, ok := sc.Next()
				if !ok {
					break
				}
				frames++
				if haveSeq {
					// Wrapping uint8 arithmetic covers the 255->0 rollover.
					if gap := f.Seq - lastSeq - 1; gap != 0 {
						lost += uint64(gap)
						slog.Warn("sequence gap", "expected", lastSeq+1, "got", f.Seq)
					}
				}
				lastSeq, haveSeq = f.Seq, true

				logFrame(cfg, f, raw)
				if sink != nil {
					sink.send(ctx, f)
				}
			}
		}
		if err != nil {
			if ctx.Err() != nil || err == io.EOF {
				slog.Info("input closed",
					"frames", frames, "lost", lost,
					"skipped_bytes", sc.Skipped, "dropped_frames", sc.Dropped)
				return
			}
			slog.Error("read failed", "err", err)
			return
		}
	}
}

func logFrame(cfg Config, f muxwire.Frame, raw bool) {
	lo, hi := minMax(f.Samples)
	slog.Info("sweep", "seq", f.Seq, "n", len(f.Samples), "min", lo, "max", hi)
	if !raw {
		return
	}
	for i, v := range f.Samples {
		slog.Debug("sample", "label", cfg.label(i), "raw", v)
	}
}

func minMax(s []uint16) (lo, hi uint16) {
	if len(s) == 0 {
		return 0, 0
	}
	lo, hi = s[0], s[0]
	for _, v := range s[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// -----------------------------------------------------------------------------
// Influx forwarding
// -----------------------------------------------------------------------------

type influxSink struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	meas   string
	device string
	cfg    Config
}

func newInfluxSink(cfg Config) *influxSink {
	meas := cfg.Influx.Measurement
	if meas == "" {
		meas = "mux_sweep"
	}
	client := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
	return &influxSink{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Influx.Org, cfg.Influx.Bucket),
		meas:   meas,
		device: cfg.Influx.Device,
		cfg:    cfg,
	}
}

// send writes one point per channel. Errors are logged, not fatal: telemetry
// keeps flowing to the console while the database is down.
func (s *influxSink) send(ctx context.Context, f muxwire.Frame) {
	ts := time.Now()
	for i, v := range f.Samples {
		p := influxdb2.NewPoint(s.meas,
			map[string]string{
				"device":  s.device,
				"channel": strconv.Itoa(i),
				"label":   s.cfg.label(i),
			},
			map[string]interface{}{
				"raw": int64(v),
				"seq": int64(f.Seq),
			},
			ts)
		if err := s.write.WritePoint(ctx, p); err != nil {
			slog.Warn("influx write failed", "err", err)
			return
		}
	}
}

func (s *influxSink) close() { s.client.Close() }
