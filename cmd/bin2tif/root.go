package main

import (
	"sync"

	"github.com/spf13/cobra"

	"github.com/terraref/bin2tif/pkg/config"
)

// rootFlags mirror the extractor's command line. Set flags override the
// environment.
type rootFlags struct {
	output     string
	overwrite  bool
	influxHost string
	influxPort int
	influxUser string
	influxPass string
	influxDB   string
	logLevel   string
}

type commandContext struct {
	flags *rootFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *rootFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		c.flags.apply(cmd, cfg)
		c.config = cfg
	})
	return c.config, c.configErr
}

func (f *rootFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Extractor.OutputDir = f.output
	}
	if flags.Changed("overwrite") {
		cfg.Extractor.ForceOverwrite = f.overwrite
	}
	if flags.Changed("influxHost") {
		cfg.Influx.Host = f.influxHost
	}
	if flags.Changed("influxPort") {
		cfg.Influx.Port = f.influxPort
	}
	if flags.Changed("influxUser") {
		cfg.Influx.User = f.influxUser
	}
	if flags.Changed("influxPass") {
		cfg.Influx.Password = f.influxPass
	}
	if flags.Changed("influxDB") {
		cfg.Influx.Database = f.influxDB
	}
	if flags.Changed("log-level") {
		cfg.App.LogLevel = f.logLevel
	}
}

func (f *rootFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.output, "output", "o", "", "Root directory where output directories will be created")
	pf.BoolVar(&f.overwrite, "overwrite", false, "Regenerate outputs even if they exist")
	pf.StringVar(&f.influxHost, "influxHost", "", "InfluxDB host")
	pf.IntVar(&f.influxPort, "influxPort", 0, "InfluxDB port")
	pf.StringVar(&f.influxUser, "influxUser", "", "InfluxDB user")
	pf.StringVar(&f.influxPass, "influxPass", "", "InfluxDB password")
	pf.StringVar(&f.influxDB, "influxDB", "", "InfluxDB database")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:           "bin2tif",
		Short:         "Convert stereo BIN captures to JPEG and GeoTIFF",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags.register(rootCmd)

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newProcessCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))

	return rootCmd
}
