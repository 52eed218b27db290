package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"groupfeed/internal/config"
	"groupfeed/internal/feed"
	appLog "groupfeed/internal/log"
	"groupfeed/internal/web"
)

// cronLogger routes scheduler messages into the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}

// rebuilder runs one fetch+build at a time for the scheduler and the API.
type rebuilder struct {
	mu       sync.Mutex
	cfg      *config.Config
	pipeline *feed.Pipeline
	fetch    bool
}

func (r *rebuilder) run(ctx context.Context) (feed.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fetch {
		if err := fetchSources(ctx, r.cfg); err != nil {
			appLog.Error("fetch incomplete, building from what is on disk", err)
		}
	}
	res, err := r.pipeline.Run(ctx)
	if err != nil {
		logProblems(err)
		return res, err
	}
	return res, nil
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	p, dir, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	ctx := c.Context

	rb := &rebuilder{cfg: cfg, pipeline: p, fetch: c.Bool("fetch")}
	srv := web.NewServer(cfg, dir, rb.run)

	// The API answers 503 until a build succeeds.
	if res, err := rb.run(ctx); err != nil {
		appLog.Error("initial build failed", err)
	} else {
		srv.Update(res)
	}

	sched := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})), cron.WithLogger(cronLogger{}))
	if _, err := sched.AddFunc(cfg.RefreshCron, func() {
		res, err := rb.run(ctx)
		if err != nil {
			appLog.Error("scheduled rebuild failed; keeping previous feeds", err)
			return
		}
		srv.Update(res)
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", cfg.RefreshCron, err)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen, "refresh", cfg.RefreshCron)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	appLog.Info("groupfeed exiting")
	return nil
}
