package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/soyeahso/leechcore/internal/config"
	"github.com/soyeahso/leechcore/internal/entity"
	"github.com/soyeahso/leechcore/internal/gateway"
	"github.com/soyeahso/leechcore/internal/routing"
	"github.com/spf13/cobra"
)

// entityFlags are the flags shared by entity send and entity candidates.
type entityFlags struct {
	mime     string
	location string
	flags    []string
	set      []string
}

func (f *entityFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mime, "mime", "", "entity MIME type (default text/plain, or text/uri for URLs)")
	cmd.Flags().StringVar(&f.location, "location", "", "entity location, such as a download directory")
	cmd.Flags().StringSliceVar(&f.flags, "flag", nil, "task parameter by name, e.g. FromUserInitiated (repeatable)")
	cmd.Flags().StringArrayVar(&f.set, "set", nil, "additional key=value (repeatable)")
}

// params builds the wire entity for payload.
func (f *entityFlags) params(payload string) (gateway.EntityParams, error) {
	p := gateway.EntityParams{
		Payload:  payload,
		Mime:     f.mime,
		Location: f.location,
		Flags:    f.flags,
	}
	if p.Mime == "" {
		p.Mime = guessMime(payload)
	}
	if _, unknown := entity.ParseFlags(f.flags); len(unknown) > 0 {
		return p, fmt.Errorf("unknown flags: %s", strings.Join(unknown, ", "))
	}
	for _, kv := range f.set {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return p, fmt.Errorf("invalid --set %q, want key=value", kv)
		}
		if p.Additional == nil {
			p.Additional = make(map[string]any)
		}
		p.Additional[k] = parseValue(v)
	}
	return p, nil
}

func guessMime(payload string) string {
	if strings.Contains(payload, "://") {
		return "text/uri"
	}
	return "text/plain"
}

func newEntityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Send entities to a running leechcore",
	}

	cmd.AddCommand(newEntitySendCmd())
	cmd.AddCommand(newEntityCandidatesCmd())
	return cmd
}

func newEntitySendCmd() *cobra.Command {
	var (
		f      entityFlags
		asJSON bool
		notify bool
	)

	cmd := &cobra.Command{
		Use:   "send <payload>",
		Short: "Dispatch an entity and print which plugins handled it",
		Long: "Dispatch an entity through the gateway. With --notify the arguments are " +
			"a header and a text and the entity is a notification.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p gateway.EntityParams
			if notify {
				if len(args) != 2 {
					return fmt.Errorf("--notify takes a header and a text")
				}
				n := entity.MakeNotification(args[0], args[1], entity.PInfo)
				p = gateway.EntityParams{Payload: n.Payload, Mime: n.Mime, Flags: n.Flags.Names(), Additional: n.Additional}
			} else {
				if len(args) != 1 {
					return fmt.Errorf("expected a single payload")
				}
				var err error
				if p, err = f.params(args[0]); err != nil {
					return err
				}
			}

			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r, err := dialGateway(ctx, cfg.Gateway)
			if err != nil {
				return err
			}
			defer r.Close()

			var res routing.Result
			if err := r.Call(ctx, "entity.handle", p, &res); err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	f.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the dispatch result as JSON")
	cmd.Flags().BoolVar(&notify, "notify", false, "send a notification built from <header> <text>")
	return cmd
}

func newEntityCandidatesCmd() *cobra.Command {
	var f entityFlags

	cmd := &cobra.Command{
		Use:   "candidates <payload>",
		Short: "List the plugins able to handle an entity, best first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := f.params(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			ctx := context.Background()
			r, err := dialGateway(ctx, cfg.Gateway)
			if err != nil {
				return err
			}
			defer r.Close()

			var out struct {
				Candidates []routing.Candidate `json:"candidates"`
			}
			if err := r.Call(ctx, "entity.candidates", p, &out); err != nil {
				return err
			}
			printCandidates(cmd.OutOrStdout(), out.Candidates)
			return nil
		},
	}

	f.bind(cmd)
	return cmd
}

func printResult(w io.Writer, res routing.Result) {
	switch {
	case res.Cancelled:
		fmt.Fprintf(w, "entity %s: dispatch cancelled\n", res.EntityID)
	case !res.Accepted:
		fmt.Fprintf(w, "entity %s: no plugin handled it\n", res.EntityID)
	default:
		fmt.Fprintf(w, "entity %s: handled by %s\n", res.EntityID, strings.Join(res.Handlers, ", "))
	}
}

func printCandidates(w io.Writer, cands []routing.Candidate) {
	if len(cands) == 0 {
		fmt.Fprintln(w, "no plugin can handle this entity")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLUGIN\tGRADE\tCANCELS OTHERS")
	for _, c := range cands {
		fmt.Fprintf(tw, "%s\t%d\t%v\n", c.Owner, c.Grade, c.CancelOthers)
	}
	tw.Flush()
}
