package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/agnosto/autoposter/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// runExecutor runs the scheduler loop in the foreground until ctx ends, with
// the metrics endpoint alongside when [metrics] listen is set.
func runExecutor(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("run")
	once := fs.Bool("once", false, "Process due schedules once and exit")
	listen := fs.String("metrics", app.Config.Metrics.Listen, "Address for the /metrics endpoint, empty to disable")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger.EnableConsole()

	if *once {
		res, err := app.Scheduler.RunOnce(ctx)
		if err != nil {
			return err
		}
		success(app.Out, "Processed %d due schedules: %d executed, %d failed, %d skipped.",
			res.Due, res.Executed, res.Failed, res.Skipped)
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Scheduler.Run(ctx)
	})

	if *listen != "" {
		srv := newMetricsServer(app, *listen)
		g.Go(func() error {
			logger.Logger.WithField("addr", *listen).Info("Serving metrics")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func newMetricsServer(app *App, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := app.DB.IntegrityCheck(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
