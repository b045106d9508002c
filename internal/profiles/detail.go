package profiles

import "github.com/claude/formcoach/internal/coach"

// Joint roles as reported in Detail.
const (
	RolePrimary   = "primary"
	RoleStability = "stability"
)

// Detail is the JSON view of a profile.
type Detail struct {
	Entry
	Template string        `json:"template,omitempty"`
	View     string        `json:"view"`
	Joints   []JointDetail `json:"joints"`
}

// JointDetail is the JSON view of one joint.
type JointDetail struct {
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Landmarks [3]string `json:"landmarks"`

	*coach.Primary
	*coach.Stability
}

// Describe renders a profile for API clients.
func Describe(p *coach.Profile) Detail {
	d := Detail{
		Entry: Entry{
			Key:          p.Key,
			Name:         p.Name,
			Category:     p.Category,
			PrimaryJoint: p.PrimaryJoint,
		},
		Template: p.Template,
		View:     p.View,
		Joints:   make([]JointDetail, 0, len(p.Joints)),
	}
	for _, j := range p.Joints {
		jd := JointDetail{Name: j.Name, Landmarks: [3]string{j.Proximal, j.Vertex, j.Distal}}
		switch r := j.Role.(type) {
		case coach.Primary:
			jd.Role = RolePrimary
			jd.Primary = &r
		case coach.Stability:
			jd.Role = RoleStability
			jd.Stability = &r
		}
		d.Joints = append(d.Joints, jd)
	}
	return d
}
