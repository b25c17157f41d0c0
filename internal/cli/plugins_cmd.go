package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/soyeahso/leechcore/internal/config"
	"github.com/soyeahso/leechcore/internal/hooks"
	"github.com/soyeahso/leechcore/internal/plugin"
	"github.com/spf13/cobra"
)

func newPluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect plugins",
	}

	cmd.AddCommand(newPluginsListCmd())
	return cmd
}

func newPluginsListCmd() *cobra.Command {
	var showHooks bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the plugins of a running leechcore",
		Long: "List the plugins loaded by a running leechcore. When no instance is " +
			"reachable, the plugins enabled in the config are listed instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ctx := context.Background()

			r, err := dialGateway(ctx, cfg.Gateway)
			if err != nil {
				log.Debug().Err(err).Msg("gateway unreachable")
				fmt.Fprintln(out, "leechcore is not running; enabled in config:")
				for _, name := range cfg.Plugins.Enabled {
					fmt.Fprintf(out, "  %s\n", name)
				}
				return nil
			}
			defer r.Close()

			var list struct {
				Plugins []plugin.Info `json:"plugins"`
			}
			if err := r.Call(ctx, "plugins.list", nil, &list); err != nil {
				return err
			}
			printPlugins(out, list.Plugins)

			if showHooks {
				var hl struct {
					Hooks []hooks.Info `json:"hooks"`
				}
				if err := r.Call(ctx, "hooks.list", nil, &hl); err != nil {
					return err
				}
				fmt.Fprintln(out)
				printHooks(out, hl.Hooks)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showHooks, "hooks", false, "also list hook registrations")
	return cmd
}

func printPlugins(w io.Writer, infos []plugin.Info) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATE\tCAPABILITIES")
	for _, p := range infos {
		caps := make([]string, len(p.Capabilities))
		for i, c := range p.Capabilities {
			caps[i] = string(c)
		}
		state := string(p.State)
		if p.Error != "" {
			state += ": " + p.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, state, strings.Join(caps, ","))
	}
	tw.Flush()
}

func printHooks(w io.Writer, infos []hooks.Info) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HOOK\tOWNER\tNAME")
	for _, h := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", h.Hook, h.Owner, h.Name)
	}
	tw.Flush()
}
