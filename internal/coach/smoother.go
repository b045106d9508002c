package coach

// FeedbackState is the debounced form verdict shown to the user.
type FeedbackState string

const (
	FeedbackReady            FeedbackState = "READY"
	FeedbackExcellent        FeedbackState = "EXCELLENT"
	FeedbackNeedsImprovement FeedbackState = "NEEDS_IMPROVEMENT"
)

// Window is a fixed-capacity ring buffer of frame classifications.
// true means the frame had good form.
type Window struct {
	buf   []bool
	start int
	n     int
	bad   int
}

// NewWindow returns an empty window holding at most capacity frames.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &Window{buf: make([]bool, capacity)}
}

// Push appends a classification, evicting the oldest when full.
func (w *Window) Push(ok bool) {
	if w.n == len(w.buf) {
		if !w.buf[w.start] {
			w.bad--
		}
		w.buf[w.start] = ok
		w.start = (w.start + 1) % len(w.buf)
	} else {
		w.buf[(w.start+w.n)%len(w.buf)] = ok
		w.n++
	}
	if !ok {
		w.bad++
	}
}

// Len returns the number of buffered frames.
func (w *Window) Len() int { return w.n }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Bad returns the number of buffered bad frames.
func (w *Window) Bad() int { return w.bad }

// BadRatio returns Bad()/Len(), or 0 for an empty window.
func (w *Window) BadRatio() float64 {
	if w.n == 0 {
		return 0
	}
	return float64(w.bad) / float64(w.n)
}

// Values returns the buffered classifications, oldest first.
func (w *Window) Values() []bool {
	out := make([]bool, w.n)
	for i := range w.n {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

// Reset empties the window.
func (w *Window) Reset() {
	clear(w.buf)
	w.start, w.n, w.bad = 0, 0, 0
}

// Gate turns smoothed frame classifications into a feedback state that is
// held for a cooldown after the last warning-worthy frame.
type Gate struct {
	window   *Window
	badRatio float64
	hold     float64

	lastBad float64
	seenBad bool
	state   FeedbackState
	issue   string
}

// NewGate returns a gate in the READY state.
func NewGate(opts Options) *Gate {
	opts = opts.withDefaults()
	return &Gate{
		window:   NewWindow(opts.WindowSize),
		badRatio: opts.BadRatio,
		hold:     opts.WarningHold,
		state:    FeedbackReady,
	}
}

// Observe records one frame at timestamp ts (seconds) and returns the new state.
// issue is the frame's representative form issue, if any.
func (g *Gate) Observe(ok bool, issue string, ts float64) FeedbackState {
	g.window.Push(ok)
	if g.window.BadRatio() > g.badRatio {
		g.lastBad = ts
		g.seenBad = true
		if issue != "" {
			g.issue = issue
		}
	}

	if g.seenBad && ts-g.lastBad < g.hold {
		g.state = FeedbackNeedsImprovement
	} else {
		g.state = FeedbackExcellent
		g.issue = ""
	}
	return g.state
}

// State returns the current feedback state.
func (g *Gate) State() FeedbackState { return g.state }

// Issue returns the active form issue, empty when none.
func (g *Gate) Issue() string { return g.issue }

// Window exposes the smoothing window for inspection.
func (g *Gate) Window() *Window { return g.window }

// Reset returns the gate to READY with an empty window.
func (g *Gate) Reset() {
	g.window.Reset()
	g.lastBad = 0
	g.seenBad = false
	g.state = FeedbackReady
	g.issue = ""
}
