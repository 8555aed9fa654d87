package addon

import "github.com/simp-lee/layover/internal/domain"

// SectionRequest is one section in a create or update request.
type SectionRequest struct {
	Route        string `json:"route" binding:"required,startswith=/,max=255"`
	TemplateHref string `json:"templateHref" binding:"required,max=255"`
	Controller   string `json:"controller" binding:"omitempty,max=100"`
}

// CreateAddonRequest represents the input for registering an addon.
type CreateAddonRequest struct {
	Name     string           `json:"name" binding:"required,min=1,max=100"`
	Sections []SectionRequest `json:"sections" binding:"omitempty,dive"`
}

// UpdateAddonRequest replaces an addon's name and sections.
type UpdateAddonRequest struct {
	Name     string           `json:"name" binding:"required,min=1,max=100"`
	Sections []SectionRequest `json:"sections" binding:"omitempty,dive"`
}

// PositionRequest moves an addon to a new position.
type PositionRequest struct {
	Position *int `json:"position" binding:"required,min=0"`
}

func toSections(in []SectionRequest) []domain.AddonSection {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.AddonSection, len(in))
	for i, s := range in {
		out[i] = domain.AddonSection{
			Route:        s.Route,
			TemplateHref: s.TemplateHref,
			Controller:   s.Controller,
		}
	}
	return out
}
