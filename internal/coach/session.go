package coach

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Cues shown alongside the feedback state.
const (
	CueGoFurther     = "GO FURTHER"
	CueGoodDepth     = "GOOD DEPTH"
	CueFullExtension = "FULL EXTENSION"
	CueGoodExtension = "GOOD EXTENSION"
	CueFixForm       = "FIX FORM"
)

// RepResult describes one completed rep.
type RepResult struct {
	Number    int     `json:"number"`
	MinAngle  float64 `json:"min_angle"`
	Quality   float64 `json:"quality"`
	Timestamp float64 `json:"timestamp"`
}

// Snapshot is the engine output after a frame.
type Snapshot struct {
	Exercise     string        `json:"exercise"`
	RepCount     int           `json:"rep_count"`
	Phase        Phase         `json:"phase"`
	CurrentAngle float64       `json:"current_angle"`
	Feedback     FeedbackState `json:"feedback_state"`
	ActiveIssue  string        `json:"active_form_issue,omitempty"`
	Cue          string        `json:"cue,omitempty"`
	Depth        Depth         `json:"depth,omitempty"`
	Progress     float64       `json:"progress"`

	// Tracked is false when the primary joint could not be measured in
	// this frame, so callers can tell missing data from good form.
	Tracked bool           `json:"tracked"`
	Joints  []JointReading `json:"joints,omitempty"`

	// Rep is set only on the frame that completed a rep.
	Rep *RepResult `json:"rep,omitempty"`
}

// Summary aggregates the reps of a session.
type Summary struct {
	Exercise    string      `json:"exercise"`
	RepCount    int         `json:"rep_count"`
	Reps        []RepResult `json:"reps"`
	AvgQuality  float64     `json:"avg_quality"`
	StdQuality  float64     `json:"std_quality"`
	BestQuality float64     `json:"best_quality"`
}

// Session is the state of one exercise session for one user. It is a
// synchronous reducer over frames and is not safe for concurrent use.
// Frames must arrive in non-decreasing timestamp order.
type Session struct {
	profile *Profile
	opts    Options

	gate  *Gate
	phase *PhaseMachine
	avg   *AngleAverage

	currentAngle float64
	reps         []RepResult
	last         Snapshot
}

// NewSession starts a session for the profile.
func NewSession(p *Profile, opts Options) *Session {
	s := &Session{opts: opts.withDefaults()}
	s.Reset(p)
	return s
}

// Reset replaces all state with initial values. A nil profile keeps the
// current one.
func (s *Session) Reset(p *Profile) {
	if p != nil {
		s.profile = p
	}
	_, pr := s.profile.Primary()
	s.gate = NewGate(s.opts)
	s.phase = NewPhaseMachine(pr, s.opts.HysteresisMargin)
	s.avg = nil
	if s.opts.AngleSmoothing > 1 {
		s.avg = NewAngleAverage(s.opts.AngleSmoothing)
	}
	s.currentAngle = NeutralAngle
	s.reps = nil
	s.last = Snapshot{
		Exercise:     s.profile.Key,
		Phase:        PhaseExtended,
		CurrentAngle: NeutralAngle,
		Feedback:     FeedbackReady,
	}
}

// Process evaluates one frame captured at ts seconds.
func (s *Session) Process(f Frame, ts float64) Snapshot {
	ev := Evaluate(s.profile, f, s.opts.MinVisibility)
	if ev.PrimaryTracked {
		angle := ev.PrimaryAngle
		if s.avg != nil {
			angle = s.avg.Add(angle)
		}
		s.currentAngle = angle
	}

	state := s.gate.Observe(ev.OK, ev.Issue, ts)

	var rep *RepResult
	if !(s.opts.HoldRepsDuringWarning && state == FeedbackNeedsImprovement) {
		if done, minAngle := s.phase.Step(s.currentAngle); done {
			_, pr := s.profile.Primary()
			r := RepResult{
				Number:    s.phase.Reps(),
				MinAngle:  minAngle,
				Quality:   QualityScore(minAngle, pr.ExcellentMidpoint()),
				Timestamp: ts,
			}
			s.reps = append(s.reps, r)
			rep = &r
		}
	}

	s.last = Snapshot{
		Exercise:     s.profile.Key,
		RepCount:     s.phase.Reps(),
		Phase:        s.phase.Phase(),
		CurrentAngle: s.currentAngle,
		Feedback:     state,
		ActiveIssue:  s.gate.Issue(),
		Cue:          s.cue(state),
		Depth:        s.depth(),
		Progress:     s.progress(),
		Tracked:      ev.PrimaryTracked,
		Joints:       ev.Joints,
		Rep:          rep,
	}
	return s.last
}

func (s *Session) cue(state FeedbackState) string {
	if state == FeedbackNeedsImprovement {
		return CueFixForm
	}
	flexAt, extendAt := s.phase.Thresholds()
	if s.phase.Phase() == PhaseExtended {
		if s.currentAngle > flexAt {
			return CueGoFurther
		}
		return CueGoodDepth
	}
	if s.currentAngle < extendAt {
		return CueFullExtension
	}
	return CueGoodExtension
}

func (s *Session) depth() Depth {
	if !s.opts.DepthCues || s.phase.Phase() != PhaseFlexed {
		return ""
	}
	_, pr := s.profile.Primary()
	return DepthBand(pr, s.currentAngle)
}

// progress is 0 at full extension and 1 at full flexion.
func (s *Session) progress() float64 {
	_, pr := s.profile.Primary()
	span := pr.Extended - pr.Flexed
	if span <= 0 {
		return 0
	}
	a := min(max(s.currentAngle, pr.Flexed), pr.Extended)
	return 1 - (a-pr.Flexed)/span
}

// Snapshot returns the output of the last processed frame.
func (s *Session) Snapshot() Snapshot { return s.last }

// Profile returns the active profile.
func (s *Session) Profile() *Profile { return s.profile }

// Options returns the effective engine options.
func (s *Session) Options() Options { return s.opts }

// Window exposes the smoothing window.
func (s *Session) Window() *Window { return s.gate.Window() }

// Reps returns a copy of the completed reps.
func (s *Session) Reps() []RepResult {
	out := make([]RepResult, len(s.reps))
	copy(out, s.reps)
	return out
}

// Summary aggregates rep qualities.
func (s *Session) Summary() Summary {
	sum := Summary{
		Exercise: s.profile.Key,
		RepCount: s.phase.Reps(),
		Reps:     s.Reps(),
	}
	if len(s.reps) == 0 {
		return sum
	}
	q := make([]float64, len(s.reps))
	for i, r := range s.reps {
		q[i] = r.Quality
	}
	sum.BestQuality = floats.Max(q)
	if len(q) == 1 {
		sum.AvgQuality = q[0]
		return sum
	}
	sum.AvgQuality, sum.StdQuality = stat.MeanStdDev(q, nil)
	return sum
}
