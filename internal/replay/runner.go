package replay

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/claude/formcoach/internal/coach"
	"github.com/claude/formcoach/internal/models"
)

// Sender uploads a replayed session.
type Sender interface {
	SendSession(ctx context.Context, imp models.SessionImport) error
}

// Stats tracks replay progress.
type Stats struct {
	FilesTotal    int
	FilesReplayed int
	FilesSkipped  int
	FilesErrored  int

	FramesProcessed int
	RepsCounted     int
	FormWarnings    int
}

// Runner walks a directory of recordings, replays new ones through the
// engine and uploads the sessions.
type Runner struct {
	catalog *coach.Catalog
	opts    coach.Options
	sender  Sender
	state   *StateDB
	root    string
	dryRun  bool
	log     *slog.Logger
	stats   Stats
}

// New creates a Runner. In dry-run mode sender and state may be nil.
func New(catalog *coach.Catalog, opts coach.Options, sender Sender, state *StateDB, root string, dryRun bool, log *slog.Logger) *Runner {
	return &Runner{
		catalog: catalog,
		opts:    opts,
		sender:  sender,
		state:   state,
		root:    root,
		dryRun:  dryRun,
		log:     log,
	}
}

// Run replays every recording under the root directory.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	var files []string
	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), Extension) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return &r.stats, fmt.Errorf("scanning %s: %w", r.root, err)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &r.stats, err
		}
		r.stats.FilesTotal++
		r.processFile(ctx, f)
	}
	return &r.stats, nil
}

func (r *Runner) processFile(ctx context.Context, path string) {
	relPath, _ := filepath.Rel(r.root, path)
	info, err := os.Stat(path)
	if err != nil {
		r.log.Warn("stat failed", "file", path, "error", err)
		r.stats.FilesErrored++
		return
	}

	hash, err := HashFile(path)
	if err != nil {
		r.log.Warn("hash failed", "file", path, "error", err)
		r.stats.FilesErrored++
		return
	}

	if r.state != nil {
		done, err := r.state.IsReplayed(relPath, info.Size(), hash)
		if err != nil {
			r.log.Warn("state check failed", "file", path, "error", err)
			r.stats.FilesErrored++
			return
		}
		if done {
			r.stats.FilesSkipped++
			return
		}
	}

	f, err := os.Open(path)
	if err != nil {
		r.log.Warn("open failed", "file", path, "error", err)
		r.stats.FilesErrored++
		return
	}
	res, err := Session(r.catalog, r.opts, f, SessionID(hash))
	f.Close()
	if err != nil {
		r.log.Warn("replay failed", "file", path, "error", err)
		r.stats.FilesErrored++
		return
	}

	r.stats.FramesProcessed += res.Frames
	r.stats.RepsCounted += res.Summary.RepCount
	r.stats.FormWarnings += res.Warnings
	r.log.Info("replayed",
		"file", relPath,
		"exercise", res.Import.Session.ExerciseKey,
		"frames", res.Frames,
		"reps", res.Summary.RepCount,
		"avg_quality", res.Summary.AvgQuality,
	)

	if r.dryRun {
		r.stats.FilesReplayed++
		return
	}

	if err := r.sender.SendSession(ctx, res.Import); err != nil {
		r.log.Error("upload failed", "file", relPath, "error", err)
		r.stats.FilesErrored++
		return
	}
	if err := r.state.MarkReplayed(relPath, info.Size(), hash, res.Import.Session.ID.String()); err != nil {
		r.log.Warn("state update failed", "file", relPath, "error", err)
	}
	r.stats.FilesReplayed++
}
