package route

import "github.com/simp-lee/layover/internal/seq"

// Addons is the collection of addon descriptors supplied at startup.
// A nil *Addons means no addon configuration exists at all, which is
// distinct from an empty Items list.
type Addons struct {
	Items []Descriptor `koanf:"items" json:"items" yaml:"items"`
}

// Descriptor describes one addon. A nil Sections slice means the addon
// declares no sections.
type Descriptor struct {
	Name     string    `koanf:"name" json:"name" yaml:"name"`
	Sections []Section `koanf:"sections" json:"sections,omitempty" yaml:"sections,omitempty"`
}

// Section is one console view contributed by an addon. TemplateHref is
// relative to TemplateBase; Controller is optional.
type Section struct {
	Route        string `koanf:"route" json:"route" yaml:"route"`
	TemplateHref string `koanf:"template_href" json:"templateHref" yaml:"template_href"`
	Controller   string `koanf:"controller" json:"controller,omitempty" yaml:"controller,omitempty"`
}

// Len returns the number of descriptors; zero for a nil collection.
func (a *Addons) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Items)
}

// Join concatenates addon collections in argument order. Nil collections
// are skipped. Join returns nil when every argument is nil or empty.
func Join(sets ...*Addons) *Addons {
	var items []Descriptor
	for _, s := range sets {
		if s.Len() == 0 {
			continue
		}
		items = append(items, s.Items...)
	}
	if len(items) == 0 {
		return nil
	}
	return &Addons{Items: items}
}

// ExpandAddons registers one rule per addon section, descriptor by descriptor
// and section by section. Each rule is registered as soon as it is produced.
// A nil collection registers nothing; so does a descriptor without sections.
// Section fields are passed through unchecked.
func ExpandAddons(r Registrar, addons *Addons) {
	if addons == nil {
		return
	}

	seq.Each(addons.Items, func(addon Descriptor) {
		if addon.Sections == nil {
			return
		}
		source := AddonSource(addon.Name)
		seq.Each(addon.Sections, func(section Section) {
			r.When(section.Route, Options{
				TemplateURL: TemplateBase + section.TemplateHref,
				Controller:  section.Controller,
				Source:      source,
			})
		})
	})
}
