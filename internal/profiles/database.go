package profiles

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultDatabase []byte

// Database is the decoded exercise biomechanics database. YAML is a superset
// of JSON, so the same decoder reads both encodings. Mapping order from the
// document is preserved for exercises, views and joints.
type Database struct {
	Exercises     Exercises `yaml:"exercises"`
	BaseTemplates Templates `yaml:"base_templates"`
}

// Exercise is one entry of the exercises table.
type Exercise struct {
	Key          string `yaml:"-"`
	FullName     string `yaml:"full_name"`
	Category     string `yaml:"category"`
	UsesTemplate string `yaml:"uses_template"`
}

// Template is a reusable joint configuration shared by several exercises.
type Template struct {
	Name         string `yaml:"-"`
	PrimaryJoint string `yaml:"primary_joint"`
	PrimaryView  string `yaml:"primary_view"`
	Views        Views  `yaml:"views"`
}

// View is the ordered joint configuration for one camera angle.
type View struct {
	Name   string
	Joints []JointConfig
}

// JointConfig holds the raw thresholds of one joint. Several aliases exist
// for the same threshold; the first non-zero one wins.
type JointConfig struct {
	Name string `yaml:"-"`
	Type string `yaml:"type"`

	Flexed   *float64 `yaml:"flexed"`
	Parallel *float64 `yaml:"parallel"`
	Bent     *float64 `yaml:"bent"`

	Extended *float64 `yaml:"extended"`
	Standing *float64 `yaml:"standing"`
	Lockout  *float64 `yaml:"lockout"`

	Tolerance    *float64 `yaml:"tolerance"`
	ExcellentMin *float64 `yaml:"excellent_min"`
	ExcellentMax *float64 `yaml:"excellent_max"`

	Target       *float64 `yaml:"target"`
	Upright      *float64 `yaml:"upright"`
	MaxDeviation *float64 `yaml:"max_deviation"`
}

// Exercises keeps document order.
type Exercises []Exercise

// Templates keeps document order.
type Templates []Template

// Views keeps document order.
type Views []View

func (e *Exercises) UnmarshalYAML(node *yaml.Node) error {
	return eachPair(node, func(key string, value *yaml.Node) error {
		var ex Exercise
		if err := value.Decode(&ex); err != nil {
			return fmt.Errorf("exercise %s: %w", key, err)
		}
		ex.Key = key
		*e = append(*e, ex)
		return nil
	})
}

func (t *Templates) UnmarshalYAML(node *yaml.Node) error {
	return eachPair(node, func(key string, value *yaml.Node) error {
		var tpl Template
		if err := value.Decode(&tpl); err != nil {
			return fmt.Errorf("template %s: %w", key, err)
		}
		tpl.Name = key
		*t = append(*t, tpl)
		return nil
	})
}

func (v *Views) UnmarshalYAML(node *yaml.Node) error {
	return eachPair(node, func(key string, value *yaml.Node) error {
		view := View{Name: key}
		err := eachPair(value, func(joint string, cfgNode *yaml.Node) error {
			var cfg JointConfig
			if err := cfgNode.Decode(&cfg); err != nil {
				return fmt.Errorf("view %s joint %s: %w", key, joint, err)
			}
			cfg.Name = joint
			view.Joints = append(view.Joints, cfg)
			return nil
		})
		if err != nil {
			return err
		}
		*v = append(*v, view)
		return nil
	})
}

// eachPair walks a mapping node in document order.
func eachPair(node *yaml.Node, fn func(key string, value *yaml.Node) error) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if err := fn(node.Content[i].Value, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// Parse decodes a database document (YAML or JSON).
func Parse(data []byte) (*Database, error) {
	db := &Database{}
	if err := yaml.Unmarshal(data, db); err != nil {
		return nil, fmt.Errorf("parsing exercise database: %w", err)
	}
	return db, nil
}

// LoadFile reads and decodes a database file.
func LoadFile(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading exercise database: %w", err)
	}
	return Parse(data)
}

// Default returns the embedded database.
func Default() (*Database, error) {
	return Parse(defaultDatabase)
}

// Exercise returns the entry for key.
func (db *Database) Exercise(key string) (Exercise, bool) {
	for _, e := range db.Exercises {
		if e.Key == key {
			return e, true
		}
	}
	return Exercise{}, false
}

// Template returns the template named name.
func (db *Database) Template(name string) (Template, bool) {
	for _, t := range db.BaseTemplates {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}

// View returns the named view.
func (t Template) View(name string) (View, bool) {
	for _, v := range t.Views {
		if v.Name == name {
			return v, true
		}
	}
	return View{}, false
}

// Joint returns the named joint configuration.
func (v View) Joint(name string) (JointConfig, bool) {
	for _, j := range v.Joints {
		if j.Name == name {
			return j, true
		}
	}
	return JointConfig{}, false
}

// first returns the first set, non-zero value.
func first(vals ...*float64) (float64, bool) {
	for _, v := range vals {
		if v != nil && *v != 0 {
			return *v, true
		}
	}
	return 0, false
}

func orDefault(v *float64, def float64) float64 {
	if f, ok := first(v); ok {
		return f
	}
	return def
}
