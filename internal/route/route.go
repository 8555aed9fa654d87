// Package route builds the console's route table.
//
// A table is assembled in three steps, always in this order: routes
// contributed by addons, the built-in store views, and one fallback rule.
// The result is handed to the console router, which evaluates rules in
// registration order.
package route

const (
	// TemplateBase is prefixed to every addon section's template href.
	TemplateBase = "cp/layover/"

	// FallbackPath is where unmatched console paths are redirected.
	FallbackPath = "/remote"

	// SourceBuiltin marks rules from the static store view table.
	SourceBuiltin = "builtin"

	sourceAddonPrefix = "addon"
)

// Definition maps a path pattern to a view template and an optional controller.
// Path may contain named segments (":name") and a trailing catch-all ("*rest").
// An empty ControllerRef means no controller is bound.
type Definition struct {
	Path          string `json:"path" yaml:"path"`
	TemplateRef   string `json:"template" yaml:"template"`
	ControllerRef string `json:"controller,omitempty" yaml:"controller,omitempty"`
}

// Options are the registration options passed to a Registrar.
type Options struct {
	TemplateURL string
	Controller  string
	RedirectTo  string
	Source      string
}

// Registrar is the routing capability the table is built against.
// When registers a rule for pattern; Otherwise registers the fallback.
type Registrar interface {
	When(pattern string, opts Options)
	Otherwise(opts Options)
}

// Rule is a registered Definition together with where it came from.
type Rule struct {
	Definition `yaml:",inline"`
	Source     string `json:"source" yaml:"source"`
}

// Fallback is the rule applied when no other rule matches.
type Fallback struct {
	RedirectTo string `json:"redirect_to" yaml:"redirect_to"`
}

// AddonSource returns the Source recorded for rules contributed by the named addon.
func AddonSource(name string) string {
	if name == "" {
		return sourceAddonPrefix
	}
	return sourceAddonPrefix + ":" + name
}
