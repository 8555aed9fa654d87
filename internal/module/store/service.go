package store

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/simp-lee/pagination"

	"github.com/simp-lee/layover/internal/domain"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,100}$`)

// storeService implements domain.StoreService.
type storeService struct {
	repo domain.StoreRepository

	// writeMu serializes writes so group membership checks see a stable
	// set of stores.
	writeMu sync.Mutex
}

// NewStoreService creates a new StoreService.
func NewStoreService(repo domain.StoreRepository) domain.StoreService {
	return &storeService{repo: repo}
}

// CreateStore validates and defines a new store.
func (s *storeService) CreateStore(ctx context.Context, store *domain.Store, user string) (*domain.Store, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.validate(ctx, store); err != nil {
		return nil, err
	}
	store.ID = 0
	store.UpdatedBy = user
	if err := s.repo.Create(ctx, store); err != nil {
		return nil, err
	}
	return store, nil
}

// GetStore retrieves a store by key.
func (s *storeService) GetStore(ctx context.Context, key domain.StoreKey) (*domain.Store, error) {
	return s.repo.Get(ctx, key)
}

// StoreExists reports whether a store is defined.
func (s *storeService) StoreExists(ctx context.Context, key domain.StoreKey) (bool, error) {
	return s.repo.Exists(ctx, key)
}

// ListStores returns a paginated list of stores of one type.
func (s *storeService) ListStores(ctx context.Context, typ domain.StoreType, req domain.PageRequest) (*pagination.Pagination[domain.Store], error) {
	return s.repo.List(ctx, typ, req)
}

// UpdateStore replaces the definition of the store at key. The body may not
// rename or retype the store.
func (s *storeService) UpdateStore(ctx context.Context, key domain.StoreKey, store *domain.Store, user string) (*domain.Store, error) {
	if store.Type != key.Type || store.Name != key.Name {
		return nil, domain.NewAppError(domain.CodeValidation,
			fmt.Sprintf("store %s does not match path %s", store.Key(), key), nil)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.validate(ctx, store); err != nil {
		return nil, err
	}
	store.UpdatedBy = user
	if err := s.repo.Update(ctx, store); err != nil {
		return nil, err
	}
	return store, nil
}

// DeleteStore removes a store and its group memberships.
func (s *storeService) DeleteStore(ctx context.Context, key domain.StoreKey) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.repo.Delete(ctx, key)
}

// validate checks store's fields for its family and zeroes the fields of
// the other families.
func (s *storeService) validate(ctx context.Context, store *domain.Store) error {
	store.Name = strings.TrimSpace(store.Name)
	if !namePattern.MatchString(store.Name) {
		return invalid("name must be 1-100 letters, digits, '.', '_' or '-'")
	}
	if len(store.Description) > 255 {
		return invalid("description must be at most 255 characters")
	}

	switch store.Type {
	case domain.StoreRemote:
		store.AllowReleases, store.AllowSnapshots = false, false
		store.Constituents = nil
		return validateRemote(store)
	case domain.StoreHosted:
		store.URL, store.TimeoutSeconds, store.Passthrough = "", 0, false
		store.Constituents = nil
		return nil
	case domain.StoreGroup:
		store.URL, store.TimeoutSeconds, store.Passthrough = "", 0, false
		store.AllowReleases, store.AllowSnapshots = false, false
		return s.validateGroup(ctx, store)
	default:
		return invalid(fmt.Sprintf("unknown store type %q", store.Type))
	}
}

func validateRemote(store *domain.Store) error {
	u, err := url.Parse(store.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("url must be an absolute http or https URL")
	}
	if store.TimeoutSeconds < 0 {
		return invalid("timeout_seconds must not be negative")
	}
	return nil
}

// validateGroup requires every constituent to be an existing store listed
// once, and rejects memberships that would make the group contain itself.
func (s *storeService) validateGroup(ctx context.Context, group *domain.Store) error {
	self := group.Key()
	seen := make(map[domain.StoreKey]bool, len(group.Constituents))
	for _, raw := range group.Constituents {
		key, err := domain.ParseStoreKey(raw)
		if err != nil {
			return invalid(err.Error())
		}
		if key == self {
			return invalid(fmt.Sprintf("group %s cannot contain itself", self))
		}
		if seen[key] {
			return invalid(fmt.Sprintf("constituent %s listed twice", key))
		}
		seen[key] = true

		ok, err := s.repo.Exists(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return invalid(fmt.Sprintf("constituent %s is not defined", key))
		}
		if key.Type == domain.StoreGroup {
			if err := s.reaches(ctx, key, self, map[domain.StoreKey]bool{}); err != nil {
				return err
			}
		}
	}
	return nil
}

// reaches fails when target is a transitive constituent of from.
func (s *storeService) reaches(ctx context.Context, from, target domain.StoreKey, visited map[domain.StoreKey]bool) error {
	if visited[from] {
		return nil
	}
	visited[from] = true

	g, err := s.repo.Get(ctx, from)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil
		}
		return err
	}
	for _, raw := range g.Constituents {
		key, err := domain.ParseStoreKey(raw)
		if err != nil || key.Type != domain.StoreGroup {
			continue
		}
		if key == target {
			return invalid(fmt.Sprintf("group %s would contain itself through %s", target, from))
		}
		if err := s.reaches(ctx, key, target, visited); err != nil {
			return err
		}
	}
	return nil
}

func invalid(msg string) error {
	return domain.NewAppError(domain.CodeValidation, msg, nil)
}
