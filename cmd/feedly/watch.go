package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"feedlykit/internal/pkg/config"
	"feedlykit/internal/render"
	"feedlykit/pkg/cloudapi"
	"feedlykit/pkg/entity"
)

const (
	defaultWatchSchedule = "*/15 * * * *"
	seenCapacity         = 4096
)

// watcher prints entries of a stream that it has not printed before.
type watcher struct {
	client   *cloudapi.Client
	streamID string
	params   cloudapi.PaginationParams
	seen     *lru.Cache[string, struct{}]
	out      io.Writer
	logger   *slog.Logger
}

func newWatcher(c *cloudapi.Client, streamID string, params cloudapi.PaginationParams, out io.Writer, logger *slog.Logger) (*watcher, error) {
	seen, err := lru.New[string, struct{}](seenCapacity)
	if err != nil {
		return nil, fmt.Errorf("create seen set: %w", err)
	}
	return &watcher{client: c, streamID: streamID, params: params, seen: seen, out: out, logger: logger}, nil
}

// poll fetches the newest page and prints unseen entries, oldest first.
func (w *watcher) poll(ctx context.Context) (int, error) {
	page, err := w.client.FetchContents(ctx, w.streamID, w.params)
	if err != nil {
		return 0, err
	}

	fresh := lo.Filter(page.Items, func(e *entity.Entry, _ int) bool { return !w.seen.Contains(e.ID) })
	for _, e := range lo.Reverse(fresh) {
		w.seen.Add(e.ID, struct{}{})
		if err := render.EntryLine(w.out, e); err != nil {
			return 0, err
		}
	}
	return len(fresh), nil
}

// runPoll is the cron job body. Failures are logged and the next tick tries again.
func (w *watcher) runPoll(ctx context.Context, timeout time.Duration) {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	n, err := w.poll(pollCtx)
	if err != nil {
		w.logger.Error("poll failed", slog.String("stream", w.streamID), slog.Any("error", err))
		return
	}
	w.logger.Info("poll finished",
		slog.String("stream", w.streamID),
		slog.Int("new_entries", n),
		slog.Duration("duration", time.Since(start)))
}

func (a *app) watchCmd() *cobra.Command {
	var (
		schedule    string
		timezone    string
		count       int
		unread      bool
		timeout     time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch [streamId|label]",
		Short: "Poll a stream on a cron schedule and print new entries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ValidateCronSchedule(schedule); err != nil {
				return err
			}
			if err := config.ValidateTimezone(timezone); err != nil {
				return err
			}
			loc, _ := time.LoadLocation(timezone)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.withProfile(ctx, func(c *cloudapi.Client, p *entity.Profile) error {
				arg := "all"
				if len(args) == 1 {
					arg = args[0]
				}
				params := cloudapi.PaginationParams{Count: count}
				if unread {
					params.UnreadOnly = lo.ToPtr(true)
				}

				w, err := newWatcher(c, streamID(p, arg), params, cmd.OutOrStdout(), a.logger)
				if err != nil {
					return err
				}
				if metricsAddr != "" {
					startMetricsServer(ctx, a.logger, metricsAddr, a.registry)
				}

				w.runPoll(ctx, timeout)

				scheduler := cron.New(
					cron.WithLocation(loc),
					cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
				)
				if _, err := scheduler.AddFunc(schedule, func() { w.runPoll(ctx, timeout) }); err != nil {
					return fmt.Errorf("add cron job: %w", err)
				}
				scheduler.Start()
				a.logger.Info("watching stream",
					slog.String("stream", w.streamID),
					slog.String("schedule", schedule),
					slog.String("timezone", timezone))

				<-ctx.Done()
				<-scheduler.Stop().Done()
				a.logger.Info("watch stopped")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", defaultWatchSchedule, "cron schedule (5 fields or a descriptor such as @every 5m)")
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "IANA timezone the schedule is evaluated in")
	cmd.Flags().IntVar(&count, "count", 20, "entries fetched per poll")
	cmd.Flags().BoolVar(&unread, "unread", false, "only unread entries")
	cmd.Flags().DurationVar(&timeout, "poll-timeout", time.Minute, "timeout of one poll")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

// startMetricsServer serves /metrics and /health until ctx is canceled.
func startMetricsServer(ctx context.Context, logger *slog.Logger, addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		}
	}()

	return server
}
