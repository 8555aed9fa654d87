package route

import (
	"fmt"
	"slices"
	"strings"
)

// Table is an ordered set of rules plus one fallback. It implements
// Registrar so it can record a build; once sealed it is read-only and safe
// for concurrent readers.
type Table struct {
	rules    []Rule
	fallback *Fallback
	sealed   bool
}

var _ Registrar = (*Table)(nil)

// NewTable builds and seals a table from the given addons.
// A nil addons value contributes no rules.
func NewTable(addons *Addons) *Table {
	t := &Table{}
	Build(t, addons)
	t.sealed = true
	return t
}

// When appends a rule. It panics when the table is sealed or the fallback
// has already been registered, since the fallback must come last.
func (t *Table) When(pattern string, opts Options) {
	if t.sealed {
		panic("route: When called on a sealed table")
	}
	if t.fallback != nil {
		panic("route: rule " + pattern + " registered after fallback")
	}
	t.rules = append(t.rules, Rule{
		Definition: Definition{
			Path:          pattern,
			TemplateRef:   opts.TemplateURL,
			ControllerRef: opts.Controller,
		},
		Source: opts.Source,
	})
}

// Otherwise registers the fallback. It panics on a second call or on a
// sealed table.
func (t *Table) Otherwise(opts Options) {
	if t.sealed {
		panic("route: Otherwise called on a sealed table")
	}
	if t.fallback != nil {
		panic("route: fallback registered twice")
	}
	t.fallback = &Fallback{RedirectTo: opts.RedirectTo}
}

// Rules returns the rules in registration order.
func (t *Table) Rules() []Rule {
	return slices.Clone(t.rules)
}

// Len returns the number of rules, excluding the fallback.
func (t *Table) Len() int {
	return len(t.rules)
}

// Fallback returns the fallback rule and whether one was registered.
func (t *Table) Fallback() (Fallback, bool) {
	if t.fallback == nil {
		return Fallback{}, false
	}
	return *t.fallback, true
}

// BySource returns the rules whose Source equals source, in order.
func (t *Table) BySource(source string) []Rule {
	var out []Rule
	for _, r := range t.rules {
		if r.Source == source {
			out = append(out, r)
		}
	}
	return out
}

// Conflict reports two rules whose patterns match the same paths.
type Conflict struct {
	Pattern string `json:"pattern"`
	First   Rule   `json:"first"`
	Second  Rule   `json:"second"`
}

// Conflicts returns every pair of rules whose patterns are identical once
// parameter names are ignored ("/a/:x" and "/a/:y" conflict). Each later
// duplicate is paired with the first rule that claimed the pattern.
func (t *Table) Conflicts() []Conflict {
	var out []Conflict
	seen := make(map[string]int, len(t.rules))
	for i, r := range t.rules {
		key := PatternKey(r.Path)
		if j, ok := seen[key]; ok {
			out = append(out, Conflict{Pattern: key, First: t.rules[j], Second: r})
			continue
		}
		seen[key] = i
	}
	return out
}

// PatternKey normalizes a path pattern for collision checks: parameter and
// catch-all names are dropped and a trailing slash is ignored. An eager
// ":name*" segment keys like a catch-all.
func PatternKey(pattern string) string {
	p := strings.TrimSuffix(pattern, "/")
	if p == "" {
		return "/"
	}
	segs := strings.Split(p, "/")
	for i, s := range segs {
		switch {
		case strings.HasPrefix(s, ":") && strings.HasSuffix(s, "*"):
			segs[i] = "*"
		case strings.HasPrefix(s, ":") && strings.HasSuffix(s, "?"):
			segs[i] = ":?"
		case strings.HasPrefix(s, ":"):
			segs[i] = ":"
		case strings.HasPrefix(s, "*"):
			segs[i] = "*"
		}
	}
	return strings.Join(segs, "/")
}

// GinPaths translates pattern into the paths gin registers for it. Plain
// ":name" and "*name" segments pass through. A last segment ":name*"
// matches the rest of the path and becomes "*name"; a last segment
// ":name?" is optional and yields the path both without and with ":name".
func GinPaths(pattern string) ([]string, error) {
	segs := strings.Split(pattern, "/")
	last := len(segs) - 1
	for i, s := range segs {
		if !strings.HasPrefix(s, ":") {
			continue
		}
		name, eager := strings.CutSuffix(s[1:], "*")
		if !eager {
			var optional bool
			if name, optional = strings.CutSuffix(s[1:], "?"); !optional {
				continue
			}
		}
		if i != last {
			return nil, fmt.Errorf("route %q: %q is only allowed as the last segment", pattern, s)
		}
		if name == "" {
			return nil, fmt.Errorf("route %q: parameter %q has no name", pattern, s)
		}
		if eager {
			segs[i] = "*" + name
			return []string{strings.Join(segs, "/")}, nil
		}
		base := strings.Join(segs[:i], "/")
		if base == "" {
			base = "/"
		}
		segs[i] = ":" + name
		return []string{base, strings.Join(segs, "/")}, nil
	}
	return []string{pattern}, nil
}
