package main

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/reflow-dev/reflow/internal/config"
	"github.com/reflow-dev/reflow/pkg/devtools"
	"github.com/reflow-dev/reflow/pkg/loaders/s3loader"
	"github.com/reflow-dev/reflow/pkg/observe"
	"github.com/reflow-dev/reflow/pkg/reactive"
	"github.com/reflow-dev/reflow/pkg/resource"
)

func demoCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a self-driving demo graph",
		Long: `Run a small reactive graph that feeds itself random sensor readings,
derives aggregates, and logs changes. With devtools enabled (the
default), point a browser or websocket client at the devtools address
to watch flushes happen.

Examples:
  reflow demo
  reflow demo --config reflow.toml
  REFLOW_DEVTOOLS_ADDR=0.0.0.0:7000 reflow demo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")

	return cmd
}

func runDemo(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	opts := []reactive.Option{
		reactive.WithLogger(logger),
		reactive.WithFlushIterationLimit(cfg.FlushIterationLimit),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, reactive.WithObserver(observe.NewMetrics(
			observe.WithNamespace(cfg.Metrics.Namespace),
			observe.WithSubsystem(cfg.Metrics.Subsystem),
		)))
	}

	g := reactive.New(opts...)
	defer g.Close()

	if cfg.Devtools.Enabled {
		dt := devtools.New(g, devtools.WithAddress(cfg.Devtools.Addr), devtools.WithLogger(logger))
		go func() {
			if err := dt.Run(); err != nil {
				logger.Error("devtools server failed", "error", err)
			}
		}()
		defer dt.Shutdown(context.Background())
	}

	stop := startSensorDemo(g, logger)
	defer stop()

	if cfg.S3.Bucket != "" && cfg.S3.Key != "" {
		disposeS3 := startS3Demo(g, logger, cfg.S3)
		defer disposeS3()
	}

	logger.Info("demo running", "devtools", cfg.Devtools.Addr)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown
	logger.Info("shutting down...")
	return nil
}

// startSensorDemo wires a toy pipeline: a cell per sensor, a computed
// average, and an effect that logs threshold crossings.
func startSensorDemo(g *reactive.Graph, logger *slog.Logger) func() {
	sensors := make([]*reactive.Cell[float64], 4)
	for i := range sensors {
		sensors[i] = reactive.NewCell(g, 20.0)
	}

	average := reactive.NewComputed(g, func() float64 {
		var sum float64
		for _, s := range sensors {
			sum += s.Get()
		}
		return sum / float64(len(sensors))
	})

	hot := reactive.NewComputed(g, func() bool {
		return average.Get() > 25
	})

	alarm := reactive.NewEffect(g, func() reactive.Cleanup {
		if hot.Get() {
			logger.Warn("average temperature above threshold", "avg", average.Peek())
		}
		return nil
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				i := rand.Intn(len(sensors))
				delta := rand.Float64()*4 - 2
				s := sensors[i]
				s.Update(func(v float64) float64 { return v + delta })
				logger.Debug("sensor updated", "sensor", i, "avg", average.Peek())
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		alarm.Dispose()
	}
}

// startS3Demo polls an S3 object into a resource so the devtools stream
// shows real async loads. The client uses anonymous credentials; point it
// at a public bucket or skip the [s3] config section.
func startS3Demo(g *reactive.Graph, logger *slog.Logger, cfg config.S3Config) func() {
	client := s3.New(s3.Options{
		Region:      "us-east-1",
		Credentials: aws.AnonymousCredentials{},
	})
	loader := s3loader.New(client, cfg.Bucket, s3loader.WithMaxSize(1<<20))

	key := reactive.NewCell(g, cfg.Key)
	r := resource.New(g, resource.Config[string, []byte]{
		Request: func() (string, bool) { return key.Get(), true },
		Loader:  loader.Bytes(),
	},
		resource.OnResolved[string, []byte](func(data []byte) {
			logger.Info("s3 object loaded", "bucket", cfg.Bucket, "key", cfg.Key, "bytes", len(data))
		}),
		resource.OnError[string, []byte](func(err error) {
			logger.Error("s3 load failed", "bucket", cfg.Bucket, "key", cfg.Key, "error", err)
		}),
	)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Reload()
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		r.Dispose()
	}
}
