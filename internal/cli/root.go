package cli

import (
	"io"

	"github.com/soyeahso/leechcore/internal/config"
	"github.com/soyeahso/leechcore/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths     config.Paths
	log       *logging.Logger
	logCloser io.Closer
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leechcore",
		Short: "leechcore: plugin host and entity router",
		Long: "leechcore loads plugins, lets them hook into each other and routes " +
			"entities (URLs, files, notifications) to the plugin best able to handle them.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}

			opts := logging.Options{Level: logLevel, ConsoleStyle: "pretty"}
			if cfg, err := config.Load(paths.Config); err == nil {
				if opts.Level == "" {
					opts.Level = cfg.Logging.Level
				}
				opts.ConsoleStyle = cfg.Logging.ConsoleStyle
				opts.File = cfg.Logging.File
			}
			if opts.Level == "" {
				opts.Level = "info"
			}
			log, logCloser, err = logging.Open(opts)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				_ = logCloser.Close()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.leechcore/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newEntityCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newPluginsCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
