package coach

import (
	"errors"
	"fmt"
	"sort"
)

// ErrExerciseNotFound is returned when an exercise key is not in the catalog.
var ErrExerciseNotFound = errors.New("exercise not found")

// ErrUnknownJoint is returned for joint names without a landmark chain.
var ErrUnknownJoint = errors.New("unknown joint")

// chains lists the proximal, vertex and distal landmark roles of each joint.
var chains = map[string][3]string{
	"elbow":    {"shoulder", "elbow", "wrist"},
	"shoulder": {"hip", "shoulder", "elbow"},
	"hip":      {"shoulder", "hip", "knee"},
	"knee":     {"hip", "knee", "ankle"},
	"ankle":    {"knee", "ankle", "footindex"},
}

// KnownJoint reports whether a joint name has a landmark chain.
func KnownJoint(name string) bool {
	_, ok := chains[name]
	return ok
}

// Role is the closed set of joint roles: Primary or Stability.
type Role interface {
	role()
}

// Primary drives rep counting.
type Primary struct {
	Flexed    float64 `json:"flexed"`
	Extended  float64 `json:"extended"`
	Tolerance float64 `json:"tolerance,omitempty"`

	// Excellent range of the minimum angle reached in a rep. Zero values
	// mean the profile has no excellent range.
	ExcellentMin float64 `json:"excellent_min,omitempty"`
	ExcellentMax float64 `json:"excellent_max,omitempty"`
}

// Stability validates posture; the angle must stay within MaxDeviation of Target.
type Stability struct {
	Target       float64 `json:"target"`
	MaxDeviation float64 `json:"max_deviation"`
}

func (Primary) role()   {}
func (Stability) role() {}

// ExcellentMidpoint is the ideal minimum angle used by QualityScore.
func (p Primary) ExcellentMidpoint() float64 {
	if p.ExcellentMin == 0 && p.ExcellentMax == 0 {
		return p.Flexed
	}
	return (p.ExcellentMin + p.ExcellentMax) / 2
}

// Joint is one tracked joint of an exercise.
type Joint struct {
	Name     string
	Proximal string
	Vertex   string
	Distal   string
	Role     Role
}

// NewJoint builds a joint with the landmark chain registered for name.
func NewJoint(name string, role Role) (Joint, error) {
	chain, ok := chains[name]
	if !ok {
		return Joint{}, fmt.Errorf("%w: %q", ErrUnknownJoint, name)
	}
	return Joint{
		Name:     name,
		Proximal: chain[0],
		Vertex:   chain[1],
		Distal:   chain[2],
		Role:     role,
	}, nil
}

// Profile is the immutable configuration of one exercise.
type Profile struct {
	Key      string
	Name     string
	Category string
	Template string
	View     string

	// Joints are evaluated in order; the first stability issue wins.
	Joints       []Joint
	PrimaryJoint string
}

// Primary returns the primary joint and its thresholds.
func (p *Profile) Primary() (Joint, Primary) {
	for _, j := range p.Joints {
		if pr, ok := j.Role.(Primary); ok && j.Name == p.PrimaryJoint {
			return j, pr
		}
	}
	return Joint{}, Primary{}
}

// Validate checks that the profile has exactly one usable primary joint.
func (p *Profile) Validate() error {
	if p.Key == "" {
		return errors.New("profile key is required")
	}
	primaries := 0
	for _, j := range p.Joints {
		if !KnownJoint(j.Name) {
			return fmt.Errorf("profile %s: %w: %q", p.Key, ErrUnknownJoint, j.Name)
		}
		pr, ok := j.Role.(Primary)
		if !ok {
			continue
		}
		if j.Name != p.PrimaryJoint {
			return fmt.Errorf("profile %s: joint %s is primary but %s is designated", p.Key, j.Name, p.PrimaryJoint)
		}
		if pr.Extended <= pr.Flexed {
			return fmt.Errorf("profile %s: extended (%.1f) must exceed flexed (%.1f)", p.Key, pr.Extended, pr.Flexed)
		}
		primaries++
	}
	if primaries != 1 {
		return fmt.Errorf("profile %s: want 1 primary joint, have %d", p.Key, primaries)
	}
	return nil
}

// WithPrimary returns a copy of the profile with the primary thresholds replaced.
// The receiver is not modified.
func (p *Profile) WithPrimary(pr Primary) (*Profile, error) {
	cp := *p
	cp.Joints = make([]Joint, len(p.Joints))
	copy(cp.Joints, p.Joints)
	for i, j := range cp.Joints {
		if _, ok := j.Role.(Primary); ok {
			cp.Joints[i].Role = pr
		}
	}
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Catalog is an immutable exercise key → profile lookup shared by all sessions.
type Catalog struct {
	profiles map[string]*Profile
	keys     []string
}

// NewCatalog validates the profiles and indexes them by key.
func NewCatalog(profiles ...*Profile) (*Catalog, error) {
	c := &Catalog{profiles: make(map[string]*Profile, len(profiles))}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.profiles[p.Key]; dup {
			return nil, fmt.Errorf("duplicate exercise key %q", p.Key)
		}
		c.profiles[p.Key] = p
		c.keys = append(c.keys, p.Key)
	}
	sort.Strings(c.keys)
	return c, nil
}

// Lookup returns the profile for key or an error wrapping ErrExerciseNotFound.
func (c *Catalog) Lookup(key string) (*Profile, error) {
	p, ok := c.profiles[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrExerciseNotFound, key)
	}
	return p, nil
}

// Keys returns all exercise keys in sorted order.
func (c *Catalog) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Profiles returns all profiles ordered by key.
func (c *Catalog) Profiles() []*Profile {
	out := make([]*Profile, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.profiles[k])
	}
	return out
}

// Len returns the number of exercises.
func (c *Catalog) Len() int {
	return len(c.keys)
}
