package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func holdPort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func TestRunUntilDoneStopsConsumerWhenListenFails(t *testing.T) {
	server := &http.Server{Addr: holdPort(t), Handler: http.NotFoundHandler()}
	consumerStopped := make(chan struct{})
	consume := func(ctx context.Context) error {
		<-ctx.Done()
		close(consumerStopped)
		return nil
	}

	done := make(chan error, 1)
	go func() {
		serveErr, consumeErr := runUntilDone(context.Background(), server, consume, zap.NewNop())
		if consumeErr != nil {
			t.Errorf("consume error = %v", consumeErr)
		}
		done <- serveErr
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected listen error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runUntilDone did not return after the listener failed")
	}
	select {
	case <-consumerStopped:
	default:
		t.Fatal("consumer still running")
	}
}

func TestRunUntilDoneStopsServerWhenConsumerFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	server := &http.Server{Addr: addr, Handler: http.NotFoundHandler()}
	brokerDown := errors.New("fetch message: broker down")
	consume := func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		return brokerDown
	}

	done := make(chan error, 1)
	go func() {
		serveErr, consumeErr := runUntilDone(context.Background(), server, consume, zap.NewNop())
		if serveErr != nil {
			t.Errorf("serve error = %v", serveErr)
		}
		done <- consumeErr
	}()

	select {
	case err := <-done:
		if !errors.Is(err, brokerDown) {
			t.Fatalf("consume error = %v, want %v", err, brokerDown)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runUntilDone did not return after the consumer failed")
	}
}

func TestServeReturnsWhenPortInUse(t *testing.T) {
	t.Setenv("HTTP_ADDR", holdPort(t))
	t.Setenv("KAFKA_BROKERS", "127.0.0.1:1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("STORAGE_ENABLED", "false")
	t.Setenv("APP_LOG_LEVEL", "error")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := newRootCommand()
	cmd.SetArgs([]string{"serve"})
	start := time.Now()
	err := cmd.ExecuteContext(ctx)
	elapsed := time.Since(start)

	if err == nil || !strings.Contains(err.Error(), "http server") {
		t.Fatalf("serve error = %v, want http server failure", err)
	}
	if elapsed > 10*time.Second {
		t.Fatalf("serve took %s to report the listen failure", elapsed)
	}
}
