package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/c360/exchange/broker"
	"github.com/c360/exchange/config"
	"github.com/c360/exchange/metric"
	"github.com/c360/exchange/natsclient"
	"github.com/c360/exchange/pipeline"
	"github.com/c360/exchange/requester"
	"github.com/c360/exchange/storage"
	"github.com/c360/exchange/storage/azureblob"
	"github.com/c360/exchange/storage/objectstore"
)

type producerCloser interface {
	pipeline.Producer
	Close() error
}

type consumerCloser interface {
	pipeline.Consumer
	Close() error
}

// app carries the state shared by every command of one invocation. The
// constructors are fields so tests can swap in fakes.
type app struct {
	flags globalFlags

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	logger   *slog.Logger
	registry *metric.Registry
	loader   *config.Loader

	openStore   func(ctx context.Context) (storage.Store, func(), error)
	newProducer func() (producerCloser, error)
	newConsumer func(topic string) (consumerCloser, error)
	newFetcher  func() pipeline.Fetcher
	pingBroker  func(ctx context.Context) (int, error)
	edit        func(ctx context.Context, path string) error
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	a := &app{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		logger: slog.Default(),
	}
	a.openStore = a.defaultStore
	a.newProducer = a.defaultProducer
	a.newConsumer = a.defaultConsumer
	a.newFetcher = a.defaultFetcher
	a.pingBroker = a.defaultPing
	a.edit = config.Editor{Stdin: stdin, Stdout: stdout, Stderr: stderr}.Edit
	return a
}

// setup validates the global flags and builds the logger, metrics registry
// and config loader. It runs before every command.
func (a *app) setup(command string) error {
	if err := a.flags.validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	a.logger = setupLogger(a.stderr, a.flags.LogLevel, a.flags.LogFormat, a.flags.Debug).
		With("command", command)
	slog.SetDefault(a.logger)

	dir, err := config.ResolveDir(a.flags.ConfigDir)
	if err != nil {
		return err
	}
	a.loader = config.Load(dir)
	a.registry = metric.NewRegistry()

	a.logger.Debug("Starting", "config_dir", dir, "store", a.flags.Store)
	return nil
}

// finish writes the metrics file when one was requested. "-" writes the
// metrics to stderr.
func (a *app) finish() error {
	if a.registry == nil || a.flags.MetricsFile == "" {
		return nil
	}
	if a.flags.MetricsFile == "-" {
		return a.registry.WriteText(a.stderr)
	}
	if err := a.registry.WriteTextfile(a.flags.MetricsFile); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}

func (a *app) metrics() *metric.Metrics {
	return a.registry.CoreMetrics()
}

func (a *app) defaultStore(ctx context.Context) (storage.Store, func(), error) {
	switch a.flags.Store {
	case storeNATS:
		return a.natsStore(ctx)
	default:
		cfg, err := a.loader.Azure()
		if err != nil {
			return nil, nil, err
		}
		s, err := azureblob.New(cfg,
			azureblob.WithLogger(a.logger),
			azureblob.WithMetrics(a.metrics()),
			azureblob.WithRetry(3, a.flags.Timeout),
		)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}

func (a *app) natsStore(ctx context.Context) (storage.Store, func(), error) {
	cfg, err := a.loader.NATS()
	if err != nil {
		return nil, nil, err
	}

	client, err := natsclient.NewFromConfig(cfg,
		natsclient.WithLogger(a.logger),
		natsclient.WithTimeout(a.flags.Timeout),
		natsclient.WithDrainTimeout(a.flags.Timeout),
	)
	if err != nil {
		return nil, nil, err
	}

	closeClient := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			a.logger.Warn("Closing NATS connection failed", "error", err)
		}
	}

	if err := client.ConnectWithRetry(ctx); err != nil {
		closeClient()
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	if rtt, err := client.RTT(); err == nil {
		a.logger.Debug("Connected to NATS", "url", client.URL(), "rtt", rtt)
	}

	s, err := objectstore.NewStore(client,
		objectstore.WithLogger(a.logger),
		objectstore.WithRegistry(a.registry),
		objectstore.WithReplicas(cfg.BucketReplicas),
	)
	if err != nil {
		closeClient()
		return nil, nil, err
	}
	return s, closeClient, nil
}

func (a *app) defaultProducer() (producerCloser, error) {
	cfg, err := a.loader.Kafka()
	if err != nil {
		return nil, err
	}
	p, err := broker.NewProducer(cfg, broker.WithLogger(a.logger), broker.WithMetrics(a.metrics()))
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (a *app) defaultConsumer(topic string) (consumerCloser, error) {
	cfg, err := a.loader.Kafka()
	if err != nil {
		return nil, err
	}
	c, err := broker.NewConsumer(cfg, topic, broker.WithLogger(a.logger), broker.WithMetrics(a.metrics()))
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (a *app) defaultPing(ctx context.Context) (int, error) {
	cfg, err := a.loader.Kafka()
	if err != nil {
		return 0, err
	}
	return broker.Ping(ctx, cfg)
}

func (a *app) defaultFetcher() pipeline.Fetcher {
	return requester.New(
		requester.WithLogger(a.logger),
		requester.WithMetrics(a.metrics()),
		requester.WithTimeout(a.flags.Timeout),
	)
}

// withStore opens the selected blob store for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(storage.Store) error) error {
	s, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(s)
}

// azureDefaults returns the container and blob defaults from
// azure_config.json. A missing or invalid file yields empty defaults.
func (a *app) azureDefaults() (container, blob string) {
	cfg, err := a.loader.Azure()
	if err != nil {
		a.logger.Debug("No azure defaults", "error", err)
		return "", ""
	}
	return cfg.StorageContainer, cfg.StorageBlobName
}

// printJSON writes v to stdout as indented JSON.
func (a *app) printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintln(a.stdout, string(out))
	return err
}
