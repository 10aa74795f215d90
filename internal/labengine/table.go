package labengine

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed guidelines.yaml
var defaultGuidelines []byte

// Table is the immutable guideline and alias lookup. It is built once,
// validated at construction, and safe for concurrent reads.
type Table struct {
	guidelines []Guideline
	byKey      map[string]int
	aliases    []Alias
	aliasIndex map[string]string
}

// ValidationError lists every problem found in a guideline table.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid guideline table: %s", strings.Join(e.Problems, "; "))
}

type tableDocument struct {
	Guidelines []Guideline `yaml:"guidelines"`
	Aliases    []Alias     `yaml:"aliases"`
}

// NewTable validates and copies the given guidelines and aliases. Declared
// order is preserved and drives fuzzy resolution.
func NewTable(guidelines []Guideline, aliases []Alias) (*Table, error) {
	t := &Table{
		guidelines: make([]Guideline, 0, len(guidelines)),
		byKey:      make(map[string]int, len(guidelines)),
		aliases:    make([]Alias, 0, len(aliases)),
		aliasIndex: make(map[string]string, len(aliases)),
	}

	var problems []string
	for i, g := range guidelines {
		problems = append(problems, validateGuideline(i, &g)...)
		if _, dup := t.byKey[g.Key]; dup {
			problems = append(problems, fmt.Sprintf("duplicate guideline key %q", g.Key))
			continue
		}
		t.byKey[g.Key] = len(t.guidelines)
		t.guidelines = append(t.guidelines, g.clone())
	}

	for _, a := range aliases {
		if a.Alias == "" {
			problems = append(problems, fmt.Sprintf("empty alias for key %q", a.Key))
			continue
		}
		if normalizeName(a.Alias) != a.Alias {
			problems = append(problems, fmt.Sprintf("alias %q must be lowercase and trimmed", a.Alias))
		}
		if _, ok := t.byKey[a.Key]; !ok {
			problems = append(problems, fmt.Sprintf("alias %q points to unknown key %q", a.Alias, a.Key))
		}
		if prev, dup := t.aliasIndex[a.Alias]; dup {
			problems = append(problems, fmt.Sprintf("duplicate alias %q (keys %q and %q)", a.Alias, prev, a.Key))
			continue
		}
		t.aliasIndex[a.Alias] = a.Key
		t.aliases = append(t.aliases, a)
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return t, nil
}

func validateGuideline(i int, g *Guideline) []string {
	var problems []string
	label := g.Key
	if label == "" {
		label = fmt.Sprintf("#%d", i)
		problems = append(problems, fmt.Sprintf("guideline %s has no key", label))
	} else if normalizeName(g.Key) != g.Key {
		problems = append(problems, fmt.Sprintf("guideline %s: key must be lowercase and trimmed", label))
	}
	if g.Name == "" {
		problems = append(problems, fmt.Sprintf("guideline %s has no name", label))
	}
	if g.Interpretation.Normal == "" {
		problems = append(problems, fmt.Sprintf("guideline %s has no normal interpretation", label))
	}
	if g.Normal == nil {
		return append(problems, fmt.Sprintf("guideline %s has no normal range", label))
	}

	n := *g.Normal
	if n.Min != nil && n.Max != nil && *n.Min > *n.Max {
		problems = append(problems, fmt.Sprintf("guideline %s: normal min %v > max %v", label, *n.Min, *n.Max))
	}

	// lowFloor and highCeiling are the innermost bounds a critical threshold
	// has to sit strictly outside of.
	lowFloor, highCeiling := n.Min, n.Max
	if b := g.Borderline; b != nil {
		if b.Min != nil && b.Max != nil && *b.Min > *b.Max {
			problems = append(problems, fmt.Sprintf("guideline %s: borderline min %v > max %v", label, *b.Min, *b.Max))
		}
		switch {
		case b.Max != nil && n.Min != nil && *b.Max <= *n.Min:
			lowFloor = b.Min
		case b.Min != nil && n.Max != nil && *b.Min >= *n.Max:
			highCeiling = b.Max
		case b.reachesDown(n.Min) && b.reachesUp(n.Max):
			lowFloor, highCeiling = b.Min, b.Max
		default:
			problems = append(problems, fmt.Sprintf("guideline %s: borderline range neither adjacent to nor containing normal range", label))
		}
	}

	if c := g.Critical; c != nil {
		if c.Low != nil && lowFloor != nil && *c.Low >= *lowFloor {
			problems = append(problems, fmt.Sprintf("guideline %s: critical low %v must be below %v", label, *c.Low, *lowFloor))
		}
		if c.High != nil && highCeiling != nil && *c.High <= *highCeiling {
			problems = append(problems, fmt.Sprintf("guideline %s: critical high %v must be above %v", label, *c.High, *highCeiling))
		}
		if c.Low != nil && c.High != nil && *c.Low >= *c.High {
			problems = append(problems, fmt.Sprintf("guideline %s: critical low %v >= critical high %v", label, *c.Low, *c.High))
		}
	}
	return problems
}

// reachesDown reports whether r extends at least as far down as v.
func (r Range) reachesDown(v *float64) bool {
	if r.Min == nil {
		return true
	}
	return v != nil && *r.Min <= *v
}

// reachesUp reports whether r extends at least as far up as v.
func (r Range) reachesUp(v *float64) bool {
	if r.Max == nil {
		return true
	}
	return v != nil && *r.Max >= *v
}

// LoadTable decodes a YAML guideline document and validates it.
func LoadTable(data []byte) (*Table, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc tableDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode guideline table: %w", err)
	}
	if len(doc.Guidelines) == 0 {
		return nil, &ValidationError{Problems: []string{"no guidelines defined"}}
	}
	return NewTable(doc.Guidelines, doc.Aliases)
}

// LoadTableFile reads and validates a YAML guideline document from disk.
func LoadTableFile(path string) (*Table, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read guideline table: %w", err)
	}
	return LoadTable(data)
}

// DefaultTable returns a freshly built copy of the bundled guideline table.
func DefaultTable() (*Table, error) {
	return LoadTable(defaultGuidelines)
}

// Guideline returns a copy of the guideline for key.
func (t *Table) Guideline(key string) (Guideline, bool) {
	g := t.lookup(key)
	if g == nil {
		return Guideline{}, false
	}
	return g.clone(), true
}

func (t *Table) lookup(key string) *Guideline {
	i, ok := t.byKey[key]
	if !ok {
		return nil
	}
	return &t.guidelines[i]
}

// Keys returns the canonical keys in declared order.
func (t *Table) Keys() []string {
	keys := make([]string, len(t.guidelines))
	for i := range t.guidelines {
		keys[i] = t.guidelines[i].Key
	}
	return keys
}

// Guidelines returns copies of every guideline in declared order.
func (t *Table) Guidelines() []Guideline {
	out := make([]Guideline, len(t.guidelines))
	for i := range t.guidelines {
		out[i] = t.guidelines[i].clone()
	}
	return out
}

// Aliases returns the alias entries in declared order.
func (t *Table) Aliases() []Alias {
	out := make([]Alias, len(t.aliases))
	copy(out, t.aliases)
	return out
}

// Len returns the number of guidelines.
func (t *Table) Len() int { return len(t.guidelines) }
