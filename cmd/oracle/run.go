package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/oracle/pkg/models"
)

func newRunCmd(g *globalFlags) *cobra.Command {
	var (
		inPath      string
		outPath     string
		concurrency int
		timeout     time.Duration
		model       string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dispatch a batch of requests read as JSON lines",
		Long: `Reads one work request per line ({"key":..,"query":..,"model":..}),
dispatches them all, and writes one outcome per line in completion order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			if concurrency > 0 {
				cfg.Concurrency = concurrency
			}
			if timeout > 0 {
				cfg.Timeout = timeout
			}

			reqs, err := readRequests(inPath, model)
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
				closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := rt.close(closeCtx); err != nil {
					logger.Warn("shutdown incomplete", "error", err)
				}
			}()

			out := os.Stdout
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}
			w := bufio.NewWriter(out)
			defer w.Flush()
			enc := json.NewEncoder(w)

			for _, req := range reqs {
				if err := rt.dispatcher.Submit(req); err != nil {
					return err
				}
			}

			var ok, failed, cached int
			start := time.Now()
			last := start
			for rt.dispatcher.Pending() > 0 {
				idle := time.Since(last)
				if idle >= cfg.Timeout {
					logger.Warn("no outcome within timeout", "timeout", cfg.Timeout, "pending", rt.dispatcher.Pending())
					return nil
				}
				select {
				case <-ctx.Done():
					logger.Warn("interrupted", "pending", rt.dispatcher.Pending())
					return nil
				default:
				}
				// Poll in short steps so an interrupt is noticed promptly.
				o, got := rt.dispatcher.PollNext(min(time.Second, cfg.Timeout-idle))
				if !got {
					continue
				}
				last = time.Now()
				switch {
				case o.CacheHit:
					cached++
				case o.OK():
					ok++
				default:
					failed++
				}
				if err := enc.Encode(o); err != nil {
					return fmt.Errorf("write outcome: %w", err)
				}
			}
			logger.Info("batch finished",
				"requests", len(reqs), "ok", ok, "cached", cached, "failed", failed,
				"elapsed", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&inPath, "input", "i", "-", "requests file (JSON lines), - for stdin")
	cmd.Flags().StringVarP(&outPath, "output", "o", "-", "outcomes file (JSON lines), - for stdout")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "worker pool size; overrides config")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up when no outcome arrives for this long; overrides config timeout")
	cmd.Flags().StringVar(&model, "model", "", "model for requests that do not name one")
	return cmd
}

func readRequests(path, model string) ([]models.WorkRequest, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var reqs []models.WorkRequest
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Bytes()
		if len(text) == 0 {
			continue
		}
		var req models.WorkRequest
		if err := json.Unmarshal(text, &req); err != nil {
			return nil, fmt.Errorf("input line %d: %w", line, err)
		}
		if req.Key == "" {
			req.Key = fmt.Sprintf("line-%d", line)
		}
		if req.Model == "" {
			req.Model = model
		}
		reqs = append(reqs, req)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return reqs, nil
}
