package profiles

import (
	"sort"
	"strings"
	"unicode"

	"github.com/claude/formcoach/internal/coach"
)

// namePrefixes expands equipment abbreviations at the start of raw names.
var namePrefixes = map[string]string{
	"BB": "Barbell ",
	"DB": "Dumbbell ",
	"CB": "Cable ",
	"BW": "Bodyweight ",
	"LV": "Machine ",
	"ST": "Strength Training ",
	"AS": "Assisted ",
	"Wt": "Weight ",
	"SM": "Smith Machine ",
	"SI": "Stability Index ",
	"TB": "Trap Bar ",
}

// PrettyName turns a raw database name like "BBCurl" into "Barbell Curl".
func PrettyName(raw string) string {
	if raw == "" {
		return ""
	}
	prefix, core := "", raw
	if len(raw) >= 2 {
		if p, ok := namePrefixes[raw[:2]]; ok {
			prefix, core = p, raw[2:]
		}
	}
	words := splitWords(core)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	name := strings.Join(words, " ")
	if name != "" {
		r := []rune(name)
		r[0] = unicode.ToUpper(r[0])
		name = string(r)
	}
	return strings.TrimSpace(prefix + name)
}

// splitWords splits CamelCase and acronyms: "PushUpEZBar" → Push Up EZ Bar.
// Characters that are not letters separate words and are dropped.
func splitWords(s string) []string {
	rs := []rune(s)
	var words []string
	for i := 0; i < len(rs); {
		switch {
		case unicode.IsUpper(rs[i]):
			j := i
			for j < len(rs) && unicode.IsUpper(rs[j]) {
				j++
			}
			if j < len(rs) && unicode.IsLower(rs[j]) {
				// The last capital starts the next word.
				if j-i > 1 {
					words = append(words, string(rs[i:j-1]))
					i = j - 1
				}
				k := j
				for k < len(rs) && unicode.IsLower(rs[k]) {
					k++
				}
				words = append(words, string(rs[i:k]))
				i = k
				continue
			}
			words = append(words, string(rs[i:j]))
			i = j
		case unicode.IsLower(rs[i]):
			k := i
			for k < len(rs) && unicode.IsLower(rs[k]) {
				k++
			}
			words = append(words, string(rs[i:k]))
			i = k
		default:
			i++
		}
	}
	return words
}

// Legs groups the thigh and calf categories.
const Legs = "Legs"

func displayCategory(cat string) string {
	if cat == "Thighs" || cat == "Calves" {
		return Legs
	}
	return cat
}

// Entry is the listing view of one exercise.
type Entry struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	PrimaryJoint string `json:"primary_joint"`
}

// Categories returns the sorted display categories present in the catalog.
func Categories(c *coach.Catalog) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range c.Profiles() {
		cat := displayCategory(p.Category)
		if cat == "" || seen[cat] {
			continue
		}
		seen[cat] = true
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// List returns the exercises of a display category sorted by name.
// An empty category lists everything.
func List(c *coach.Catalog, category string) []Entry {
	out := []Entry{}
	for _, p := range c.Profiles() {
		if category != "" && displayCategory(p.Category) != category {
			continue
		}
		out = append(out, Entry{
			Key:          p.Key,
			Name:         p.Name,
			Category:     p.Category,
			PrimaryJoint: p.PrimaryJoint,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
