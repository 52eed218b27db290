package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"groupfeed/internal/config"
	"groupfeed/internal/feed"
	"groupfeed/internal/groups"
	"groupfeed/internal/ics"
	appLog "groupfeed/internal/log"
	"groupfeed/internal/store"
)

const version = "0.1.0"

func main() {
	// A missing .env is normal; flags and the environment still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		appLog.Error("groupfeed failed", err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "groupfeed",
		Usage:   "merge group calendars into sorted JSON event feeds",
		Version: version,
		Suggest: true,
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file (written with defaults when missing)",
				Value:   "groupfeed.yaml",
				EnvVars: []string{"GROUPFEED_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error (overrides config)",
				EnvVars: []string{"GROUPFEED_LOG_LEVEL"},
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "calendar files processed concurrently (overrides config)",
				EnvVars: []string{"GROUPFEED_WORKERS"},
			},
			&cli.BoolFlag{
				Name:    "strict",
				Usage:   "fail the run when any event is invalid instead of skipping it",
				EnvVars: []string{"GROUPFEED_STRICT"},
			},
		},
		Action: buildAction,
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "build the combined and per-group feeds once",
				Action: buildAction,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "fetch",
						Usage: "download configured sources before building",
					},
				},
			},
			{
				Name:   "fetch",
				Usage:  "download configured sources into the input directory",
				Action: fetchAction,
			},
			{
				Name:   "serve",
				Usage:  "serve the feeds over HTTP and rebuild them on a schedule",
				Action: serveAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "listen",
						Aliases: []string{"l"},
						Usage:   "host and port to listen on (overrides config)",
						EnvVars: []string{"GROUPFEED_LISTEN"},
					},
					&cli.StringFlag{
						Name:    "refresh",
						Usage:   "cron schedule for rebuilds (overrides config)",
						EnvVars: []string{"GROUPFEED_REFRESH"},
					},
					&cli.BoolFlag{
						Name:  "fetch",
						Usage: "download configured sources before every rebuild",
					},
				},
			},
		},
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.Path("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.Bool("strict") {
		cfg.OnInvalid = config.OnInvalidFail
	}
	if c.IsSet("listen") {
		cfg.Listen = c.String("listen")
	}
	if c.IsSet("refresh") {
		cfg.RefreshCron = c.String("refresh")
	}
	cfg.Normalize()

	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	appLog.Info("effective config",
		"config_path", path,
		"input_dir", cfg.InputDir,
		"groups_file", cfg.GroupsFile,
		"combined", cfg.Output.Combined,
		"group_dir", cfg.Output.GroupDir,
		"fallback_zone", cfg.FallbackZone,
		"grace_days", cfg.GraceDays,
		"on_invalid", cfg.OnInvalid,
		"workers", cfg.Workers,
		"source_count", len(cfg.Sources),
	)
	return cfg, nil
}

func newPipeline(cfg *config.Config) (*feed.Pipeline, groups.Directory, error) {
	dir, err := groups.Load(cfg.GroupsFile)
	if err != nil {
		return nil, nil, err
	}
	appLog.Debug("group directory loaded", "path", cfg.GroupsFile, "groups", len(dir))
	return feed.New(cfg, dir), dir, nil
}

func buildAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	p, _, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	if c.Bool("fetch") {
		if err := fetchSources(c.Context, cfg); err != nil {
			appLog.Error("fetch incomplete, building from what is on disk", err)
		}
	}

	_, err = p.Run(c.Context)
	logProblems(err)
	return err
}

func fetchAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return fetchSources(c.Context, cfg)
}

// fetchSources downloads every configured source. The error joins the
// sources that failed and had no previous copy on disk.
func fetchSources(ctx context.Context, cfg *config.Config) error {
	if len(cfg.Sources) == 0 {
		appLog.Info("no sources configured; nothing to fetch")
		return nil
	}

	cache, err := store.Open(cfg.CacheDB)
	if err != nil {
		return err
	}
	defer cache.Close()

	sources := make([]ics.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		sources = append(sources, ics.Source{Group: s.Group, URL: s.URL})
	}

	results, errs := ics.NewFetcher(cfg.InputDir, cache).FetchAll(ctx, sources)
	updated := 0
	for _, r := range results {
		if r.Updated {
			updated++
		}
	}
	appLog.Info("fetch finished", "sources", len(sources), "updated", updated, "failed", len(errs))
	return errors.Join(errs...)
}

func logProblems(err error) {
	var verr *feed.ValidationError
	if !errors.As(err, &verr) {
		return
	}
	for _, p := range verr.Problems {
		appLog.Error("invalid event", p.Err, "group", p.Group, "file", p.File, "uid", p.UID, "ordinal", p.Ordinal)
	}
}
