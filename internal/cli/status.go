package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/soyeahso/leechcore/internal/config"
	"github.com/soyeahso/leechcore/internal/gateway"
	"github.com/soyeahso/leechcore/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show leechcore status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "leechcore %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Fprintf(out, "Config:   %s\n", paths.Config)
			fmt.Fprintf(out, "Data:     %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:     %s\n", paths.Logs)
			fmt.Fprintln(out)

			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:   not found (using defaults)")
			}
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:   error loading: %v\n", err)
				return nil
			}
			printConfigSummary(out, cfg)

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			fmt.Fprintln(out)
			r, err := dialGateway(context.Background(), cfg.Gateway)
			if err != nil {
				fmt.Fprintf(out, "Running:  no (%v)\n", err)
				return nil
			}
			defer r.Close()

			var st gateway.StatusResponse
			if err := r.Call(context.Background(), "status", nil, &st); err != nil {
				return err
			}
			fmt.Fprintf(out, "Running:  %s, phase=%s up=%s\n", st.Version, st.Phase,
				(time.Duration(st.UptimeMs) * time.Millisecond).Round(time.Second))
			fmt.Fprintf(out, "Loaded:   plugins=%d hooks=%d clients=%d\n", st.Plugins, st.Hooks, st.Clients)
			fmt.Fprintf(out, "Handlers: %s\n", strings.Join(st.Handlers, ", "))
			return nil
		},
	}

	return cmd
}

func printConfigSummary(out io.Writer, cfg config.Config) {
	fmt.Fprintf(out, "Core:     tiePolicy=%s noHandlerNotice=%v strictStale=%v\n",
		cfg.Core.TiePolicy, cfg.Core.NoHandlerNotice, cfg.Core.StrictStale)

	if cfg.Gateway.Enabled {
		fmt.Fprintf(out, "Gateway:  port=%d bind=%s auth=%s tls=%v\n",
			cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Auth.Mode, cfg.Gateway.TLS.Enabled)
	} else {
		fmt.Fprintln(out, "Gateway:  disabled")
	}

	history := cfg.History.Store
	if history == "sqlite" {
		path := cfg.History.Path
		if path == "" {
			path = paths.History
		}
		history += " " + path
	}
	fmt.Fprintf(out, "History:  %s (limit %d)\n", history, cfg.History.Limit)
	fmt.Fprintf(out, "Plugins:  %s\n", strings.Join(cfg.Plugins.Enabled, ", "))

	if irc := cfg.Plugins.IRC; irc != nil {
		fmt.Fprintf(out, "IRC:      server=%s nick=%s channels=%s tls=%v\n",
			irc.Server, irc.Nick, strings.Join(irc.Channels, ","), irc.UseTLS)
	}
	if mail := cfg.Plugins.Mail; mail != nil {
		fmt.Fprintf(out, "Mail:     server=%s mailbox=%s every=%s\n", mail.Server, mail.Mailbox, mail.PollInterval)
	}
}
