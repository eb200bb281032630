package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/oracle/pkg/config"
	"github.com/pario-ai/oracle/pkg/journal"
	journalsqlite "github.com/pario-ai/oracle/pkg/journal/sqlite"
	"github.com/pario-ai/oracle/pkg/models"
)

func newJournalCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Run and inspect the cache journal",
	}
	cmd.AddCommand(
		newJournalServeCmd(g),
		newJournalHiCmd(g),
		newJournalGetCmd(g),
		newJournalStatsCmd(g),
		newJournalDumpCmd(g),
		newJournalClearCmd(g),
	)
	return cmd
}

func openStore(cfg *config.Config) (*journalsqlite.Store, error) {
	return journalsqlite.New(cfg.Journal.DBPath, cfg.Journal.CacheSize)
}

func newJournalServeCmd(g *globalFlags) *cobra.Command {
	var (
		addr   string
		memory bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the journal server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Journal.Addr
			}

			var store journal.Store
			if memory {
				store = journal.NewMemoryStore()
			} else {
				s, err := openStore(cfg)
				if err != nil {
					return fmt.Errorf("open journal: %w", err)
				}
				defer func() { _ = s.Close() }()
				store = s
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("starting journal server", "addr", ln.Addr().String(), "db", cfg.Journal.DBPath, "memory", memory)
			return journal.NewServer(store, logger).Serve(ctx, ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&memory, "memory", false, "keep records in memory instead of the database")
	return cmd
}

func newJournalHiCmd(g *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "hi",
		Short: "Check that a journal server is answering",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Journal.Addr
			}
			c := journal.NewClient(addr)
			defer c.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			status, err := c.Hi(ctx)
			fmt.Printf("%s: %s\n", addr, status)
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "server address (default from config)")
	return cmd
}

func newJournalGetCmd(g *globalFlags) *cobra.Command {
	var (
		addr string
		sort string
		req  models.WorkRequest
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch the newest outcome for a key from a running journal server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Journal.Addr
			}
			if sort == "" {
				sort = cfg.Journal.Sort
			}
			if req.Model == "" {
				req.Model = cfg.DefaultModel
			}
			c := journal.NewClient(addr)
			defer c.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			out, err := c.Get(ctx, sort, req)
			if errors.Is(err, journal.ErrMiss) {
				fmt.Println("Not found.")
				return nil
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "server address (default from config)")
	cmd.Flags().StringVar(&sort, "sort", "", "journal sort (default from config)")
	cmd.Flags().StringVar(&req.Key, "key", "", "request key")
	cmd.Flags().StringVar(&req.Model, "model", "", "model id (default from config)")
	cmd.Flags().IntVar(&req.Ctr, "ctr", 0, "cache counter")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newJournalStatsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show journal database statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			ctx := context.Background()
			stats, err := s.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Entries: %d\n", stats.Entries)

			sorts, err := s.Sorts(ctx)
			if err != nil {
				return err
			}
			if len(sorts) == 0 {
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SORT\tENTRIES")
			for _, sc := range sorts {
				fmt.Fprintf(w, "%s\t%d\n", sc.Sort, sc.Count)
			}
			return w.Flush()
		},
	}
}

func newJournalDumpCmd(g *globalFlags) *cobra.Command {
	var (
		sort   string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print journal records in append order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			recs, err := s.Dump(context.Background(), models.NormalizeSort(sort), limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				for _, rec := range recs {
					if err := enc.Encode(rec); err != nil {
						return err
					}
				}
				return nil
			}
			if len(recs) == 0 {
				fmt.Println("No records found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "EID\tTIME\tSORT\tKEY\tMODEL\tCTR\tRESULT")
			for _, rec := range recs {
				o := rec.Outcome
				result := string(o.Kind())
				if o.OK() {
					result = truncate(o.Value(), 40)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
					rec.EID, rec.Time.Format("2006-01-02T15:04:05"), rec.Sort,
					truncate(o.Request.Key, 24), o.Request.Model, o.Request.Ctr, result)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&sort, "sort", "", "only this sort (default: all)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum records (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON record per line")
	return cmd
}

func newJournalClearCmd(g *globalFlags) *cobra.Command {
	var sort string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete journal records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			n, err := s.Clear(context.Background(), models.NormalizeSort(sort))
			if err != nil {
				return err
			}
			if sort == "" {
				fmt.Printf("All journal records cleared (%d).\n", n)
			} else {
				fmt.Printf("Journal records for %s cleared (%d).\n", sort, n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sort, "sort", "", "only clear this sort (default: all)")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
