package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/soyeahso/leechcore/internal/config"
	"github.com/soyeahso/leechcore/internal/gateway"
	"github.com/soyeahso/leechcore/internal/routing"
	"github.com/soyeahso/leechcore/internal/store"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the entity history",
	}

	cmd.AddCommand(newHistoryListCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var (
		limit  int
		query  string
		remote bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently dispatched entities, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			ctx := context.Background()

			var recs []routing.Record
			if remote {
				recs, err = remoteHistory(ctx, cfg.Gateway, limit, query)
			} else {
				recs, err = localHistory(ctx, cfg.History, limit, query)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), recs)
			}
			printRecords(cmd.OutOrStdout(), recs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of records")
	cmd.Flags().StringVarP(&query, "query", "q", "", "full-text search over payloads and notification text")
	cmd.Flags().BoolVar(&remote, "remote", false, "ask the gateway of a running leechcore instead of reading the database")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

// localHistory reads the SQLite journal directly.
func localHistory(ctx context.Context, cfg config.HistoryConfig, limit int, query string) ([]routing.Record, error) {
	if cfg.Store != "sqlite" {
		return nil, fmt.Errorf("history store is %q; use --remote to query a running instance", cfg.Store)
	}
	path := cfg.Path
	if path == "" {
		path = paths.History
	}
	db, err := store.Open(path, log)
	if err != nil {
		return nil, err
	}
	j := store.NewJournal(db, 0)
	defer j.Close()

	if query != "" {
		return j.Search(ctx, query, limit)
	}
	return j.Recent(ctx, limit)
}

func remoteHistory(ctx context.Context, cfg config.GatewayConfig, limit int, query string) ([]routing.Record, error) {
	r, err := dialGateway(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out struct {
		Records []routing.Record `json:"records"`
	}
	if err := r.Call(ctx, "history.list", gateway.HistoryParams{Limit: limit, Query: query}, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

func printRecords(w io.Writer, recs []routing.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "no history")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tMIME\tHANDLED BY\tSUMMARY")
	for _, rec := range recs {
		by := "-"
		switch {
		case rec.Cancelled:
			by = "(cancelled)"
		case len(rec.Handlers) > 0:
			by = rec.Handlers[0]
			if len(rec.Handlers) > 1 {
				by += fmt.Sprintf(" +%d", len(rec.Handlers)-1)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			rec.Time.Local().Format(time.DateTime), rec.Entity.Mime, by, truncate(store.Summarize(rec.Entity), 60))
	}
	tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
