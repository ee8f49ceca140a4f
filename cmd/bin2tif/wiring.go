package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/terraref/bin2tif/internal/extractor"
	"github.com/terraref/bin2tif/pkg/clowder"
	"github.com/terraref/bin2tif/pkg/config"
	"github.com/terraref/bin2tif/pkg/influx"
	"github.com/terraref/bin2tif/pkg/logger"
	"github.com/terraref/bin2tif/pkg/storage/objectstore"
)

func newLogger(cfg *config.Config, encoding string) (*zap.Logger, error) {
	logr, err := logger.New(logger.Options{
		Level:     cfg.App.LogLevel,
		Encoding:  encoding,
		Extractor: cfg.App.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logr, nil
}

// remoteFactory binds the configured Clowder client to the host and key an
// event carries, falling back to the configured ones.
func remoteFactory(base *clowder.Client) extractor.RemoteFactory {
	return func(host, key string) extractor.Remote {
		return base.WithCredentials(host, key)
	}
}

// newRunner wires the extractor and its optional sinks. On success the
// returned cleanup closes whatever was opened.
func newRunner(cfg *config.Config, logr *zap.Logger, publisher extractor.Publisher) (*extractor.Runner, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logr.Warn("close failed", zap.Error(err))
			}
		}
	}

	base := clowder.New(clowder.Config{
		Host:      cfg.Clowder.Host,
		SecretKey: cfg.Clowder.SecretKey,
		Timeout:   cfg.Clowder.Timeout,
	})

	var telemetry extractor.Telemetry
	if cfg.Influx.Host != "" && cfg.Influx.Database != "" {
		sink, err := influx.New(influx.Config{
			Host:     cfg.Influx.Host,
			Port:     cfg.Influx.Port,
			Database: cfg.Influx.Database,
			User:     cfg.Influx.User,
			Password: cfg.Influx.Password,
			Timeout:  cfg.Influx.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, sink.Close)
		telemetry = sink
	}

	var mirror objectstore.Client
	if cfg.Storage.Enabled {
		store, err := objectstore.New(objectstore.Config{
			Provider:  cfg.Storage.Provider,
			Endpoint:  cfg.Storage.Endpoint,
			Region:    cfg.Storage.Region,
			Bucket:    cfg.Storage.Bucket,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("init object store: %w", err)
		}
		closers = append(closers, store.Close)
		mirror = store
	}

	ext := extractor.New(extractor.Params{
		Name:           cfg.App.Name,
		OutputDir:      cfg.Extractor.OutputDir,
		ScratchDir:     cfg.Extractor.ScratchDir,
		ForceOverwrite: cfg.Extractor.ForceOverwrite,
		Store:          base,
		Converter:      extractor.NewConverter(cfg.Extractor.GDALTranslate),
		Telemetry:      telemetry,
		Mirror:         mirror,
		Logger:         logr,
	})

	runner := extractor.NewRunner(extractor.RunnerParams{
		Extractor:  ext,
		Remote:     remoteFactory(base),
		Publisher:  publisher,
		ScratchDir: cfg.Extractor.ScratchDir,
		Logger:     logr,
	})
	return runner, cleanup, nil
}

func logSettings(logr *zap.Logger, cfg *config.Config) {
	logr.Info("extractor settings",
		zap.String("output_dir", cfg.Extractor.OutputDir),
		zap.Bool("overwrite", cfg.Extractor.ForceOverwrite),
		zap.String("clowder_host", cfg.Clowder.Host),
		zap.String("influx_host", cfg.Influx.Host),
		zap.Bool("mirror", cfg.Storage.Enabled),
	)
}
