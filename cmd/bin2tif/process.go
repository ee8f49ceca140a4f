package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terraref/bin2tif/internal/extractor"
)

type eventFlags struct {
	file string
	host string
	key  string
}

func (f *eventFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "file", "", "Name of the file that triggered the event")
	cmd.Flags().StringVar(&f.host, "host", "", "Clowder host (defaults to CLOWDER_HOST)")
	cmd.Flags().StringVar(&f.key, "key", "", "Clowder secret key (defaults to CLOWDER_KEY)")
}

func (f *eventFlags) event(datasetID string) extractor.ExtractionEvent {
	return extractor.ExtractionEvent{
		DatasetID: datasetID,
		Filename:  f.file,
		Host:      f.host,
		SecretKey: f.key,
	}
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	flags := &eventFlags{}
	cmd := &cobra.Command{
		Use:   "process <dataset-id>",
		Short: "Convert one dataset now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := newLogger(cfg, "console")
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck

			runner, cleanup, err := newRunner(cfg, logr, nil)
			if err != nil {
				return err
			}
			defer cleanup()
			logSettings(logr, cfg)

			outcome, err := runner.Handle(cmd.Context(), flags.event(args[0]))
			if err != nil {
				return err
			}
			if outcome.Verdict == extractor.CheckIgnore {
				logr.Info("dataset not eligible; nothing to do", zap.String("dataset_id", args[0]))
			}
			return printJSON(cmd, outcome)
		},
	}
	flags.register(cmd)
	return cmd
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	flags := &eventFlags{}
	cmd := &cobra.Command{
		Use:   "check <dataset-id>",
		Short: "Report whether a dataset would be converted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := newLogger(cfg, "console")
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck

			runner, cleanup, err := newRunner(cfg, logr, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			verdict, err := runner.Check(cmd.Context(), flags.event(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), verdict)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
