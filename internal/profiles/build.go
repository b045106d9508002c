package profiles

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/claude/formcoach/internal/coach"
)

const (
	defaultView         = "side"
	defaultTolerance    = 15.0
	defaultTarget       = 180.0
	defaultMaxDeviation = 15.0
)

// ErrInvalidExercise marks exercises that cannot drive rep counting.
var ErrInvalidExercise = errors.New("invalid exercise")

// Profile resolves one exercise into an engine profile.
func (db *Database) Profile(key string) (*coach.Profile, error) {
	ex, ok := db.Exercise(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", coach.ErrExerciseNotFound, key)
	}
	if ex.UsesTemplate == "" {
		return nil, fmt.Errorf("%w: %s has no template", ErrInvalidExercise, key)
	}
	tpl, ok := db.Template(ex.UsesTemplate)
	if !ok {
		return nil, fmt.Errorf("%w: %s uses unknown template %q", ErrInvalidExercise, key, ex.UsesTemplate)
	}
	if len(tpl.Views) == 0 {
		return nil, fmt.Errorf("%w: template %s has no views", ErrInvalidExercise, tpl.Name)
	}

	viewName := tpl.PrimaryView
	if viewName == "" {
		viewName = defaultView
	}
	view, ok := tpl.View(viewName)
	if !ok {
		view = tpl.Views[0]
	}
	if len(view.Joints) == 0 {
		return nil, fmt.Errorf("%w: view %s of %s has no joints", ErrInvalidExercise, view.Name, tpl.Name)
	}

	primaryName := resolvePrimary(tpl.PrimaryJoint, view)
	primaryCfg, _ := view.Joint(primaryName)
	flexed, okF := first(primaryCfg.Flexed, primaryCfg.Parallel, primaryCfg.Bent)
	extended, okE := first(primaryCfg.Extended, primaryCfg.Standing, primaryCfg.Lockout)
	if !okF || !okE {
		return nil, fmt.Errorf("%w: %s primary joint %s lacks flexed/extended thresholds", ErrInvalidExercise, key, primaryName)
	}
	if !coach.KnownJoint(primaryName) {
		return nil, fmt.Errorf("%w: %s primary joint %s is not trackable", ErrInvalidExercise, key, primaryName)
	}

	p := &coach.Profile{
		Key:          key,
		Name:         PrettyName(ex.FullName),
		Category:     ex.Category,
		Template:     tpl.Name,
		View:         view.Name,
		PrimaryJoint: primaryName,
	}
	if p.Name == "" {
		p.Name = key
	}

	for _, cfg := range view.Joints {
		if !coach.KnownJoint(cfg.Name) {
			continue
		}
		var role coach.Role
		switch {
		case cfg.Name == primaryName:
			role = coach.Primary{
				Flexed:       flexed,
				Extended:     extended,
				Tolerance:    orDefault(cfg.Tolerance, defaultTolerance),
				ExcellentMin: orDefault(cfg.ExcellentMin, 0),
				ExcellentMax: orDefault(cfg.ExcellentMax, 0),
			}
		case cfg.Type == "stability":
			target, ok := first(cfg.Target, cfg.Upright)
			if !ok {
				target = defaultTarget
			}
			role = coach.Stability{
				Target:       target,
				MaxDeviation: orDefault(cfg.MaxDeviation, defaultMaxDeviation),
			}
		default:
			continue
		}
		j, err := coach.NewJoint(cfg.Name, role)
		if err != nil {
			return nil, err
		}
		p.Joints = append(p.Joints, j)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExercise, err)
	}
	return p, nil
}

// resolvePrimary picks the template's primary joint if the view has it,
// else the first joint typed primary, else the first joint.
func resolvePrimary(name string, view View) string {
	if _, ok := view.Joint(name); ok && name != "" {
		return name
	}
	for _, j := range view.Joints {
		if j.Type == "primary" {
			return j.Name
		}
	}
	return view.Joints[0].Name
}

// Valid reports whether key resolves to a usable profile.
func (db *Database) Valid(key string) bool {
	_, err := db.Profile(key)
	return err == nil
}

// FirstValidKey returns the first usable exercise in document order.
func (db *Database) FirstValidKey() (string, bool) {
	for _, ex := range db.Exercises {
		if db.Valid(ex.Key) {
			return ex.Key, true
		}
	}
	return "", false
}

// Catalog builds the immutable catalog of every usable exercise. Unusable
// exercises are logged and left out.
func (db *Database) Catalog(log *slog.Logger) (*coach.Catalog, error) {
	var profiles []*coach.Profile
	for _, ex := range db.Exercises {
		p, err := db.Profile(ex.Key)
		if err != nil {
			log.Warn("skipping exercise", "key", ex.Key, "error", err)
			continue
		}
		profiles = append(profiles, p)
	}
	if len(profiles) == 0 {
		return nil, errors.New("exercise database has no usable exercises")
	}
	return coach.NewCatalog(profiles...)
}
