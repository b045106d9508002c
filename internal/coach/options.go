package coach

// Engine defaults.
const (
	DefaultHysteresisMargin = 20.0
	DefaultWarningHold      = 1.5
	DefaultWindowSize       = 20
	DefaultBadRatio         = 0.3
)

// Options tunes the engine. Zero fields take the defaults above.
type Options struct {
	// HysteresisMargin is added to the flexed threshold and subtracted from
	// the extended threshold before a phase transition is accepted.
	HysteresisMargin float64

	// WarningHold is how long, in seconds, NEEDS_IMPROVEMENT is held after
	// the last frame whose bad ratio exceeded BadRatio.
	WarningHold float64

	// WindowSize is the capacity of the smoothing window.
	WindowSize int

	// BadRatio is the fraction of bad frames in the window above which a
	// frame counts as a form warning.
	BadRatio float64

	// MinVisibility treats landmarks below this confidence as missing.
	MinVisibility float64

	// HoldRepsDuringWarning freezes the phase machine while NEEDS_IMPROVEMENT
	// is shown, so reps performed with bad form are not counted.
	HoldRepsDuringWarning bool

	// AngleSmoothing averages the primary angle over this many frames
	// before rep counting. 0 or 1 uses raw angles.
	AngleSmoothing int

	// DepthCues grades the primary angle with a Depth band while flexed.
	DepthCues bool
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		HysteresisMargin: DefaultHysteresisMargin,
		WarningHold:      DefaultWarningHold,
		WindowSize:       DefaultWindowSize,
		BadRatio:         DefaultBadRatio,
	}
}

func (o Options) withDefaults() Options {
	if o.HysteresisMargin <= 0 {
		o.HysteresisMargin = DefaultHysteresisMargin
	}
	if o.WarningHold <= 0 {
		o.WarningHold = DefaultWarningHold
	}
	if o.WindowSize <= 0 {
		o.WindowSize = DefaultWindowSize
	}
	if o.BadRatio <= 0 {
		o.BadRatio = DefaultBadRatio
	}
	return o
}
