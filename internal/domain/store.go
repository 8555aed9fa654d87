package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/simp-lee/pagination"
)

// StoreType names a store family. Each family has its own built-in console
// views and admin API path.
type StoreType string

const (
	StoreRemote StoreType = "remote"
	StoreHosted StoreType = "hosted"
	StoreGroup  StoreType = "group"
)

// StoreTypes lists the families in console order.
var StoreTypes = []StoreType{StoreRemote, StoreHosted, StoreGroup}

// ParseStoreType accepts a family name as it appears in API paths.
func ParseStoreType(s string) (StoreType, bool) {
	for _, t := range StoreTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// StoreKey identifies a store across families. Its text form is
// "type:name", which is how groups list their constituents.
type StoreKey struct {
	Type StoreType
	Name string
}

func (k StoreKey) String() string {
	return string(k.Type) + ":" + k.Name
}

// ParseStoreKey parses the "type:name" form.
func ParseStoreKey(s string) (StoreKey, error) {
	typ, name, ok := strings.Cut(s, ":")
	if !ok || name == "" {
		return StoreKey{}, fmt.Errorf("store key %q: want type:name", s)
	}
	t, ok := ParseStoreType(typ)
	if !ok {
		return StoreKey{}, fmt.Errorf("store key %q: unknown store type %q", s, typ)
	}
	return StoreKey{Type: t, Name: name}, nil
}

// Store is a remote, hosted or group artifact store managed through the
// built-in console views. Fields belonging to another family stay zero.
type Store struct {
	BaseModel
	Type        StoreType `gorm:"size:16;not null;uniqueIndex:idx_store_key" json:"type"`
	Name        string    `gorm:"size:100;not null;uniqueIndex:idx_store_key" json:"name"`
	Description string    `gorm:"size:255" json:"description,omitempty"`

	// Remote stores proxy URL.
	URL            string `gorm:"size:1024" json:"url,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	Passthrough    bool   `json:"passthrough"`

	// Hosted stores accept deployments.
	AllowReleases  bool `json:"allow_releases"`
	AllowSnapshots bool `json:"allow_snapshots"`

	// Group stores aggregate other stores, listed as "type:name" keys in
	// lookup order.
	Constituents []string `gorm:"serializer:json" json:"constituents,omitempty"`

	// UpdatedBy is the principal of the last write, empty when writes are
	// not authenticated.
	UpdatedBy string `gorm:"size:100" json:"updated_by,omitempty"`
}

// Key returns the store's key.
func (s *Store) Key() StoreKey {
	return StoreKey{Type: s.Type, Name: s.Name}
}

// StoreRepository defines the data access interface for stores.
type StoreRepository interface {
	Create(ctx context.Context, store *Store) error
	Get(ctx context.Context, key StoreKey) (*Store, error)
	Exists(ctx context.Context, key StoreKey) (bool, error)
	List(ctx context.Context, typ StoreType, req PageRequest) (*pagination.Pagination[Store], error)
	Update(ctx context.Context, store *Store) error
	// Delete removes the store and drops its key from every group.
	Delete(ctx context.Context, key StoreKey) error
}

// StoreService defines the business logic interface for stores. user is the
// principal recorded on writes.
type StoreService interface {
	CreateStore(ctx context.Context, store *Store, user string) (*Store, error)
	GetStore(ctx context.Context, key StoreKey) (*Store, error)
	StoreExists(ctx context.Context, key StoreKey) (bool, error)
	ListStores(ctx context.Context, typ StoreType, req PageRequest) (*pagination.Pagination[Store], error)
	UpdateStore(ctx context.Context, key StoreKey, store *Store, user string) (*Store, error)
	DeleteStore(ctx context.Context, key StoreKey) error
}
