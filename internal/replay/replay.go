package replay

import (
	"errors"
	"io"
	"time"

	"github.com/claude/formcoach/internal/coach"
	"github.com/claude/formcoach/internal/models"
	"github.com/google/uuid"
)

// namespace seeds session IDs derived from recording hashes, so replaying
// the same file twice upserts the same session.
var namespace = uuid.MustParse("6f1d7c2e-5b0a-4c1e-9a53-2f8e4d7b1c90")

// Result is the outcome of replaying one recording.
type Result struct {
	Import   models.SessionImport
	Summary  coach.Summary
	Frames   int
	Warnings int
}

// SessionID derives the session ID of a recording from its content hash.
func SessionID(hash string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(hash))
}

// Session replays a recording through a fresh engine session.
func Session(catalog *coach.Catalog, opts coach.Options, r io.Reader, id uuid.UUID) (*Result, error) {
	rd, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	p, err := catalog.Lookup(rd.Header.ExerciseKey)
	if err != nil {
		return nil, err
	}
	sess := coach.NewSession(p, opts)

	res := &Result{}
	var first, last float64
	prev := coach.FeedbackReady
	for {
		fl, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if res.Frames == 0 {
			first = fl.T
		}
		snap := sess.Process(coach.NewFrame(fl.Landmarks), fl.T)
		if snap.Feedback == coach.FeedbackNeedsImprovement && prev != coach.FeedbackNeedsImprovement {
			res.Warnings++
		}
		prev = snap.Feedback
		last = fl.T
		res.Frames++
	}

	started := rd.Header.StartedAt
	at := func(ts float64) time.Time {
		return started.Add(time.Duration((ts - first) * float64(time.Second)))
	}
	res.Summary = sess.Summary()
	row := models.SessionRow{
		ID:           id,
		ExerciseKey:  p.Key,
		ExerciseName: p.Name,
		Source:       models.SourceReplay,
		StartedAt:    started,
		EndedAt:      at(last),
	}
	res.Import = models.NewSessionImport(row, res.Summary, at)
	return res, nil
}
