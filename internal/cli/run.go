package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/soyeahso/leechcore/internal/config"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		port        int
		bind        string
		noGateway   bool
		interactive bool
		enabled     []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load the plugins and run the core until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
				cfg.Gateway.Enabled = true
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if noGateway {
				cfg.Gateway.Enabled = false
			}
			if len(enabled) > 0 {
				cfg.Plugins.Enabled = enabled
			}
			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			opts := appOptions{}
			if interactive {
				opts.ChooserIn = os.Stdin
				opts.ChooserOut = os.Stderr
			}

			a, err := newApp(cfg, paths, log, opts)
			if err != nil {
				return err
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info().
				Strs("plugins", cfg.Plugins.Enabled).
				Str("tiePolicy", cfg.Core.TiePolicy).
				Bool("gateway", cfg.Gateway.Enabled).
				Msg("starting leechcore")
			return a.run(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "serve the gateway on this port")
	cmd.Flags().StringVar(&bind, "bind", "", "override gateway bind mode (loopback, lan, custom)")
	cmd.Flags().BoolVar(&noGateway, "no-gateway", false, "do not start the gateway")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "ask on the terminal when several plugins tie for a user-initiated entity")
	cmd.Flags().StringSliceVar(&enabled, "plugins", nil, "override the enabled plugin list")

	return cmd
}
