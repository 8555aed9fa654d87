package domain

import (
	"context"

	"github.com/simp-lee/pagination"

	"github.com/simp-lee/layover/internal/route"
)

// Addon is a registered console extension. Position orders addons; lower
// positions register their routes first.
type Addon struct {
	BaseModel
	Name     string         `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Position int            `gorm:"not null;index" json:"position"`
	Sections []AddonSection `gorm:"foreignKey:AddonID" json:"sections"`
}

// AddonSection is one console view contributed by an addon.
type AddonSection struct {
	ID           uint   `gorm:"primaryKey" json:"-"`
	AddonID      uint   `gorm:"index;not null" json:"-"`
	Ordinal      int    `gorm:"not null" json:"-"`
	Route        string `gorm:"size:255;not null" json:"route"`
	TemplateHref string `gorm:"size:255;not null" json:"templateHref"`
	Controller   string `gorm:"size:100" json:"controller,omitempty"`
}

// Descriptor converts the addon to the form consumed by the route builder.
// An addon without sections yields a descriptor whose Sections is nil.
func (a *Addon) Descriptor() route.Descriptor {
	d := route.Descriptor{Name: a.Name}
	for _, s := range a.Sections {
		d.Sections = append(d.Sections, route.Section{
			Route:        s.Route,
			TemplateHref: s.TemplateHref,
			Controller:   s.Controller,
		})
	}
	return d
}

// AddonCheck inspects the other registry addons inside a write's
// transaction. A non-nil error aborts the write and is returned as is.
type AddonCheck func(others []Addon) error

// AddonRepository defines the data access interface for addons.
// Reads return sections in ordinal order.
type AddonRepository interface {
	Create(ctx context.Context, addon *Addon, check AddonCheck) error
	GetByID(ctx context.Context, id uint) (*Addon, error)
	GetByName(ctx context.Context, name string) (*Addon, error)
	List(ctx context.Context, req PageRequest) (*pagination.Pagination[Addon], error)
	All(ctx context.Context) ([]Addon, error)
	Update(ctx context.Context, addon *Addon, check AddonCheck) error
	Delete(ctx context.Context, id uint) error
	Reorder(ctx context.Context, ids []uint) error
}

// AddonService defines the business logic interface for addons.
type AddonService interface {
	CreateAddon(ctx context.Context, name string, sections []AddonSection) (*Addon, error)
	GetAddon(ctx context.Context, id uint) (*Addon, error)
	ListAddons(ctx context.Context, req PageRequest) (*pagination.Pagination[Addon], error)
	UpdateAddon(ctx context.Context, id uint, name string, sections []AddonSection) (*Addon, error)
	DeleteAddon(ctx context.Context, id uint) error
	MoveAddon(ctx context.Context, id uint, position int) ([]Addon, error)
	Manifest(ctx context.Context) (*route.Addons, error)
}
