package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terraref/bin2tif/internal/extractor"
	"github.com/terraref/bin2tif/pkg/kafka"
	"github.com/terraref/bin2tif/pkg/tracing"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Consume dataset events and serve the trigger API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd, ctx)
		},
	}
}

func runServe(ctx context.Context, cmd *cobra.Command, cc *commandContext) error {
	cfg, err := cc.ensureConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logr, err := newLogger(cfg, "json")
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
		Attributes:     tracing.ParseAttributes(cfg.Tracing.ResourceAttr),
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.CompletedTopic,
		BatchSize:    cfg.Kafka.BatchSize,
		BatchTimeout: cfg.Kafka.BatchTimeout,
		Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
		RequiredAcks: kafkago.RequireAll,
		MaxAttempts:  cfg.Kafka.Retries,
	})

	runner, cleanup, err := newRunner(cfg, logr, producer)
	if err != nil {
		_ = producer.Close(context.Background())
		return err
	}
	defer cleanup()
	logSettings(logr, cfg)

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.EventsTopic,
		GroupID: cfg.Kafka.GroupID,
		MaxWait: cfg.Kafka.MaxWait,
	}, logr)

	handler := extractor.NewHTTPHandler(runner, logr, cfg.HTTP.WriteTimeout)
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	logr.Info("bin2tif extractor starting",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("topic", cfg.Kafka.EventsTopic),
	)
	serveErr, consumerErr := runUntilDone(ctx, server, func(ctx context.Context) error {
		return consumer.Run(ctx, handleEvent(runner, logr))
	}, logr)

	if err := consumer.Close(); err != nil {
		logr.Warn("consumer close failed", zap.Error(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := producer.Close(shutdownCtx); err != nil {
		logr.Warn("producer close failed", zap.Error(err))
	}
	logr.Info("bin2tif extractor stopped")

	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return consumerErr
}

// runUntilDone serves HTTP and runs consume until ctx ends or either side
// fails; a failure on one side stops the other.
func runUntilDone(ctx context.Context, server *http.Server, consume func(context.Context) error, logr *zap.Logger) (serveErr, consumeErr error) {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	consumerDone := make(chan error, 1)
	go func() {
		err := consume(ctx)
		if err != nil {
			stop()
		}
		consumerDone <- err
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("http server shutdown failed", zap.Error(err))
		}
	}()

	serveErr = server.ListenAndServe()
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}
	stop()
	return serveErr, <-consumerDone
}

// handleEvent decodes an ExtractionEvent and runs it. Errors are logged by
// the consumer; the offset is committed either way.
func handleEvent(runner *extractor.Runner, logr *zap.Logger) kafka.Handler {
	return func(ctx context.Context, msg kafkago.Message) error {
		ev, err := decodeEvent(msg.Value)
		if err != nil {
			return err
		}
		outcome, err := runner.Handle(ctx, ev)
		if err != nil {
			return err
		}
		logr.Debug("event handled",
			zap.String("dataset_id", ev.DatasetID),
			zap.Stringer("verdict", outcome.Verdict),
		)
		return nil
	}
}

func decodeEvent(data []byte) (extractor.ExtractionEvent, error) {
	var ev extractor.ExtractionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("decode extraction event: %w", err)
	}
	if ev.DatasetID == "" {
		return ev, extractor.ErrInvalidEvent
	}
	return ev, nil
}
