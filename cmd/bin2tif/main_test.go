package main

import (
	"errors"
	"testing"

	"github.com/spf13/cobra"

	"github.com/terraref/bin2tif/internal/extractor"
	"github.com/terraref/bin2tif/pkg/config"
)

func TestRootFlagsOverrideConfig(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	defaultUser := cfg.Influx.User

	flags := &rootFlags{}
	cmd := &cobra.Command{Use: "bin2tif"}
	flags.register(cmd)
	if err := cmd.ParseFlags([]string{"-o", "/data/out", "--overwrite", "--influxHost", "influx.local", "--influxPort", "9999", "--influxDB", "metrics"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	flags.apply(cmd, cfg)

	if cfg.Extractor.OutputDir != "/data/out" {
		t.Fatalf("output dir = %s", cfg.Extractor.OutputDir)
	}
	if !cfg.Extractor.ForceOverwrite {
		t.Fatal("overwrite not applied")
	}
	if cfg.Influx.Host != "influx.local" || cfg.Influx.Port != 9999 || cfg.Influx.Database != "metrics" {
		t.Fatalf("influx = %+v", cfg.Influx)
	}
	if cfg.Influx.User != defaultUser {
		t.Fatalf("unset flag changed user to %q", cfg.Influx.User)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"serve", "process", "check"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %s not found: %v", name, err)
		}
	}
}

func TestDecodeEvent(t *testing.T) {
	ev, err := decodeEvent([]byte(`{"dataset_id":"ds1","filename":"a_right.bin","host":"http://clowder","secret_key":"k"}`))
	if err != nil {
		t.Fatalf("decodeEvent: %v", err)
	}
	want := extractor.ExtractionEvent{DatasetID: "ds1", Filename: "a_right.bin", Host: "http://clowder", SecretKey: "k"}
	if ev != want {
		t.Fatalf("event = %+v, want %+v", ev, want)
	}

	if _, err := decodeEvent([]byte(`{"filename":"a_left.bin"}`)); !errors.Is(err, extractor.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if _, err := decodeEvent([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}
