package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/oracle/pkg/models"
)

func newAskCmd(g *globalFlags) *cobra.Command {
	var (
		model    string
		key      string
		ctr      int
		thinking bool
	)

	cmd := &cobra.Command{
		Use:   "ask [prompt...]",
		Short: "Send a single prompt and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = rt.close(closeCtx)
			}()

			query := strings.Join(args, " ")
			if key == "" {
				key = query
			}
			actx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
			out, err := rt.dispatcher.Await(actx, models.WorkRequest{Key: key, Query: query, Model: model, Ctr: ctr})
			if err != nil {
				return err
			}
			if !out.OK() {
				return fmt.Errorf("%s: %s", out.Failure.Kind, out.Failure.Message)
			}

			if thinking && out.Success.Thinking != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "<think>\n%s\n</think>\n\n", *out.Success.Thinking)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Value())
			if out.CacheHit {
				logger.Debug("served from journal", "key", key, "model", out.Request.Model)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "model id (default from config)")
	cmd.Flags().StringVar(&key, "key", "", "cache key (default: the prompt)")
	cmd.Flags().IntVar(&ctr, "ctr", 0, "cache counter; bump to bypass an earlier answer")
	cmd.Flags().BoolVar(&thinking, "thinking", false, "print the reasoning trace when the model returns one")
	return cmd
}
