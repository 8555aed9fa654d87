package addon

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/simp-lee/pagination"

	"github.com/simp-lee/layover/internal/domain"
	"github.com/simp-lee/layover/internal/module/console"
	"github.com/simp-lee/layover/internal/route"
	"github.com/simp-lee/layover/internal/seq"
)

// addonService implements domain.AddonService.
type addonService struct {
	repo       domain.AddonRepository
	configured *route.Addons
	reserved   []string

	// writeMu serializes writes that add routes, so two requests cannot
	// both pass the collision check against the same registry state.
	writeMu sync.Mutex
}

// NewAddonService creates a new AddonService. configured holds the addons
// declared in configuration; they precede registry addons in the manifest
// and take part in name and route collision checks. It may be nil.
// reserved lists the path prefixes console routes may not claim.
func NewAddonService(repo domain.AddonRepository, configured *route.Addons, reserved ...string) domain.AddonService {
	return &addonService{repo: repo, configured: configured, reserved: reserved}
}

// CreateAddon validates the input and registers a new addon after all
// existing ones.
func (s *addonService) CreateAddon(ctx context.Context, name string, sections []domain.AddonSection) (*domain.Addon, error) {
	addon := &domain.Addon{Name: strings.TrimSpace(name), Sections: sections}
	if err := s.validate(addon); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.repo.Create(ctx, addon, s.routeCheck(addon)); err != nil {
		return nil, err
	}
	return addon, nil
}

// GetAddon retrieves an addon by ID.
func (s *addonService) GetAddon(ctx context.Context, id uint) (*domain.Addon, error) {
	return s.repo.GetByID(ctx, id)
}

// ListAddons returns a paginated list of registry addons.
func (s *addonService) ListAddons(ctx context.Context, req domain.PageRequest) (*pagination.Pagination[domain.Addon], error) {
	return s.repo.List(ctx, req)
}

// UpdateAddon replaces an addon's name and sections, keeping its position.
func (s *addonService) UpdateAddon(ctx context.Context, id uint, name string, sections []domain.AddonSection) (*domain.Addon, error) {
	addon, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	addon.Name = strings.TrimSpace(name)
	addon.Sections = sections
	if err := s.validate(addon); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.repo.Update(ctx, addon, s.routeCheck(addon)); err != nil {
		return nil, err
	}
	return addon, nil
}

// DeleteAddon removes an addon by ID and closes the gap in positions.
func (s *addonService) DeleteAddon(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	rest, err := s.repo.All(ctx)
	if err != nil {
		return err
	}
	return s.repo.Reorder(ctx, addonIDs(rest))
}

// MoveAddon moves an addon to position and returns the registry in its new
// order. A position past the end moves the addon to the end.
func (s *addonService) MoveAddon(ctx context.Context, id uint, position int) ([]domain.Addon, error) {
	if position < 0 {
		return nil, domain.NewAppError(domain.CodeValidation, "position must not be negative", nil)
	}

	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	from := slices.IndexFunc(all, func(a domain.Addon) bool { return a.ID == id })
	if from < 0 {
		return nil, domain.ErrNotFound
	}

	ids := seq.Move(addonIDs(all), from, position)
	// Moving past the end pads with zero IDs.
	ids = slices.DeleteFunc(ids, func(id uint) bool { return id == 0 })

	if err := s.repo.Reorder(ctx, ids); err != nil {
		return nil, err
	}
	return s.repo.All(ctx)
}

// Manifest returns configured addons followed by registry addons in
// position order, or nil when there are none.
func (s *addonService) Manifest(ctx context.Context) (*route.Addons, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	return route.Join(s.configured, &route.Addons{Items: descriptors(all)}), nil
}

// validate checks the addon on its own and rejects names declared in
// configuration.
func (s *addonService) validate(addon *domain.Addon) error {
	if err := validateAddon(addon); err != nil {
		return err
	}
	if s.configured != nil {
		for _, d := range s.configured.Items {
			if d.Name == addon.Name {
				return domain.NewAppError(domain.CodeAlreadyExists,
					fmt.Sprintf("addon %q is declared in configuration", addon.Name), nil)
			}
		}
	}
	return nil
}

// routeCheck returns the check the repository runs inside the write's
// transaction. It rejects routes that collide with configured addons, other
// registry addons or the built-in console routes, and any table the console
// could not mount on the next start.
func (s *addonService) routeCheck(addon *domain.Addon) domain.AddonCheck {
	return func(others []domain.Addon) error {
		taken := make(map[string]route.Rule)
		for _, r := range route.NewTable(route.Join(s.configured, &route.Addons{Items: descriptors(others)})).Rules() {
			key := route.PatternKey(r.Path)
			if _, ok := taken[key]; !ok {
				taken[key] = r
			}
		}

		source := route.AddonSource(addon.Name)
		for _, sec := range addon.Sections {
			key := route.PatternKey(sec.Route)
			if r, ok := taken[key]; ok {
				return domain.NewAppError(domain.CodeConflict,
					fmt.Sprintf("route %q collides with %s route %q", sec.Route, r.Source, r.Path), nil)
			}
			taken[key] = route.Rule{Definition: route.Definition{Path: sec.Route}, Source: source}
		}

		candidate := route.NewTable(route.Join(s.configured, &route.Addons{Items: placed(others, addon)}))
		if err := console.Check(candidate, s.reserved...); err != nil {
			return domain.NewAppError(domain.CodeValidation, err.Error(), nil)
		}
		if err := console.Mountable(candidate, s.reserved...); err != nil {
			return domain.NewAppError(domain.CodeConflict, err.Error(), nil)
		}
		return nil
	}
}

// placed returns the registry descriptors with addon inserted at its
// position among others, which are in position order.
func placed(others []domain.Addon, addon *domain.Addon) []route.Descriptor {
	i := slices.IndexFunc(others, func(a domain.Addon) bool { return a.Position >= addon.Position })
	if i < 0 {
		i = len(others)
	}
	return slices.Insert(descriptors(others), i, addon.Descriptor())
}

func validateAddon(addon *domain.Addon) error {
	if addon.Name == "" {
		return domain.NewAppError(domain.CodeValidation, "name is required", nil)
	}
	if utf8.RuneCountInString(addon.Name) > 100 {
		return domain.NewAppError(domain.CodeValidation, "name must be at most 100 characters", nil)
	}
	for i, sec := range addon.Sections {
		if !strings.HasPrefix(sec.Route, "/") {
			return domain.NewAppError(domain.CodeValidation,
				fmt.Sprintf("section %d: route must start with /", i), nil)
		}
		if _, err := route.GinPaths(sec.Route); err != nil {
			return domain.NewAppError(domain.CodeValidation,
				fmt.Sprintf("section %d: %v", i, err), nil)
		}
		if strings.TrimSpace(sec.TemplateHref) == "" {
			return domain.NewAppError(domain.CodeValidation,
				fmt.Sprintf("section %d: templateHref is required", i), nil)
		}
	}
	return nil
}

func descriptors(addons []domain.Addon) []route.Descriptor {
	out := make([]route.Descriptor, len(addons))
	for i := range addons {
		out[i] = addons[i].Descriptor()
	}
	return out
}

func addonIDs(addons []domain.Addon) []uint {
	ids := make([]uint, len(addons))
	for i, a := range addons {
		ids[i] = a.ID
	}
	return ids
}
