package feed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"groupfeed/internal/config"
	"groupfeed/internal/ics"
	appLog "groupfeed/internal/log"
	"groupfeed/internal/model"
	"groupfeed/internal/output"
)

// SourceFile is one calendar file in the input directory.
type SourceFile struct {
	Name  string
	Group string
	Path  string
}

// Result is the outcome of one run.
type Result struct {
	Groups   []GroupFeed
	Combined []model.NormalizedEvent
	Problems []Problem
	BuiltAt  time.Time
}

// Group returns the feed of one group.
func (r Result) Group(id string) (GroupFeed, bool) {
	for _, g := range r.Groups {
		if g.Group == id {
			return g, true
		}
	}
	return GroupFeed{}, false
}

// Pipeline reads every calendar in InputDir and writes the combined feed and
// one feed per file.
type Pipeline struct {
	InputDir     string
	CombinedPath string
	GroupDir     string

	Codec   ics.Codec
	Builder Builder
	Writer  output.FeedWriter

	// Workers bounds concurrent file processing; <= 1 is sequential.
	Workers int
	// FailOnInvalid aborts the run, before anything is written, when any
	// event fails validation. Otherwise such events are dropped and logged.
	FailOnInvalid bool
}

// New wires a Pipeline from configuration.
func New(cfg *config.Config, dir GroupLookup) *Pipeline {
	return &Pipeline{
		InputDir:     cfg.InputDir,
		CombinedPath: cfg.Output.Combined,
		GroupDir:     cfg.Output.GroupDir,
		Codec:        ics.Codec{FallbackZone: cfg.FallbackZone},
		Builder: Builder{
			Normalizer: Normalizer{Groups: dir},
			GraceDays:  cfg.GraceDays,
		},
		Writer:        output.JSONWriter{},
		Workers:       cfg.Workers,
		FailOnInvalid: cfg.OnInvalid == config.OnInvalidFail,
	}
}

// GroupPath is where the feed of group is written.
func (p *Pipeline) GroupPath(group string) string {
	return filepath.Join(p.GroupDir, group+".json")
}

// ListSources returns the non-hidden regular files of dir, sorted by name.
func ListSources(dir string) ([]SourceFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	files := make([]SourceFile, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || e.IsDir() {
			continue
		}
		files = append(files, SourceFile{
			Name:  name,
			Group: GroupID(name),
			Path:  filepath.Join(dir, name),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// GroupID is the file name up to its first dot.
func GroupID(name string) string {
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}

// Run builds every feed and writes them. Read and write faults abort the
// run; a file that does not parse as a calendar contributes no events.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	res, err := p.Build(ctx)
	if err != nil {
		return res, err
	}
	if err := p.Write(res); err != nil {
		return res, err
	}
	return res, nil
}

// Build processes all input files without writing anything.
func (p *Pipeline) Build(ctx context.Context) (Result, error) {
	started := time.Now()

	files, err := ListSources(p.InputDir)
	if err != nil {
		return Result{}, err
	}

	feeds := make([]GroupFeed, len(files))
	g, gctx := errgroup.WithContext(ctx)
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			feed, err := p.processFile(f)
			if err != nil {
				return err
			}
			feeds[i] = feed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{
		Groups:   feeds,
		Combined: BuildCombinedFeed(feeds...),
		BuiltAt:  time.Now(),
	}
	for _, f := range feeds {
		res.Problems = append(res.Problems, f.Problems...)
	}

	if len(res.Problems) > 0 {
		if p.FailOnInvalid {
			return res, &ValidationError{Problems: res.Problems}
		}
		for _, pr := range res.Problems {
			appLog.Warn("event skipped", "group", pr.Group, "file", pr.File, "uid", pr.UID, "reason", pr.Err.Error())
		}
	}

	appLog.Info("feeds built",
		"files", len(files),
		"events", len(res.Combined),
		"skipped", len(res.Problems),
		"duration", time.Since(started).String(),
	)
	return res, nil
}

func (p *Pipeline) processFile(f SourceFile) (GroupFeed, error) {
	body, err := os.ReadFile(f.Path)
	if err != nil {
		return GroupFeed{}, fmt.Errorf("read %s: %w", f.Path, err)
	}

	doc, err := ics.ParseDocument(body)
	if err != nil {
		// Not a calendar: no events, keep going.
		appLog.Error("calendar parse failed", err, "file", f.Name, "group", f.Group)
		doc = nil
	}

	raws := ics.Extract(doc)
	events := make([]model.Event, 0, len(raws))
	for i, raw := range raws {
		events = append(events, Canonicalize(p.Codec, f.Group, f.Name, i, raw))
	}

	feed := p.Builder.BuildGroupFeed(f.Group, f.Name, events)
	appLog.Debug("group feed built",
		"file", f.Name,
		"group", f.Group,
		"extracted", len(raws),
		"kept", len(feed.Events),
		"stale", feed.Stale,
		"invalid", len(feed.Problems),
	)
	return feed, nil
}

// Write hands every group feed, then the combined feed, to the writer.
func (p *Pipeline) Write(res Result) error {
	if p.Writer == nil {
		return fmt.Errorf("pipeline has no writer")
	}
	for _, g := range res.Groups {
		path := p.GroupPath(g.Group)
		if err := p.Writer.WriteFeed(path, g.Events); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := p.Writer.WriteFeed(p.CombinedPath, res.Combined); err != nil {
		return fmt.Errorf("write %s: %w", p.CombinedPath, err)
	}
	appLog.Info("feeds written", "combined", p.CombinedPath, "groups", len(res.Groups))
	return nil
}
