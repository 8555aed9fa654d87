package store

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/simp-lee/pagination"
	"gorm.io/gorm"

	"github.com/simp-lee/layover/internal/domain"
	"github.com/simp-lee/layover/internal/pkg"
)

var (
	allowedSortFields   = []string{"id", "name", "created_at", "updated_at"}
	allowedFilterFields = []string{"name", "description"}
)

// storeRepository implements domain.StoreRepository using GORM.
type storeRepository struct {
	db *gorm.DB
}

// NewStoreRepository creates a new StoreRepository backed by the given GORM database.
func NewStoreRepository(db *gorm.DB) domain.StoreRepository {
	return &storeRepository{db: db}
}

func byKey(key domain.StoreKey) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("type = ? AND name = ?", key.Type, key.Name)
	}
}

// Create inserts a store.
func (r *storeRepository) Create(ctx context.Context, store *domain.Store) error {
	return mapError(r.db.WithContext(ctx).Create(store).Error)
}

// Get retrieves a store by key.
func (r *storeRepository) Get(ctx context.Context, key domain.StoreKey) (*domain.Store, error) {
	var store domain.Store
	if err := r.db.WithContext(ctx).Scopes(byKey(key)).First(&store).Error; err != nil {
		return nil, mapError(err)
	}
	return &store, nil
}

// Exists reports whether a store with key is defined.
func (r *storeRepository) Exists(ctx context.Context, key domain.StoreKey) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.Store{}).Scopes(byKey(key)).Count(&n).Error; err != nil {
		return false, mapError(err)
	}
	return n > 0, nil
}

// List returns a paginated, sorted, and filtered list of stores of one type.
func (r *storeRepository) List(ctx context.Context, typ domain.StoreType, req domain.PageRequest) (*pagination.Pagination[domain.Store], error) {
	var total int64
	base := r.db.WithContext(ctx).Model(&domain.Store{}).
		Where("type = ?", typ).
		Scopes(pkg.Filter(req, allowedFilterFields))

	if err := base.Count(&total).Error; err != nil {
		return nil, mapError(err)
	}

	var stores []domain.Store
	if err := base.Scopes(
		pkg.Sort(req, allowedSortFields),
		pkg.Paginate(req),
	).Find(&stores).Error; err != nil {
		return nil, mapError(err)
	}

	return pkg.Page(stores, total, req), nil
}

// Update saves every field of an existing store, matched by key.
func (r *storeRepository) Update(ctx context.Context, store *domain.Store) error {
	err := pkg.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		var cur domain.Store
		if err := tx.Scopes(byKey(store.Key())).First(&cur).Error; err != nil {
			return err
		}
		store.ID = cur.ID
		store.CreatedAt = cur.CreatedAt
		return tx.Save(store).Error
	})
	return mapError(err)
}

// Delete removes the store with key and drops the key from the constituents
// of every group in the same transaction.
func (r *storeRepository) Delete(ctx context.Context, key domain.StoreKey) error {
	err := pkg.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		res := tx.Scopes(byKey(key)).Delete(&domain.Store{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		var groups []domain.Store
		if err := tx.Where("type = ?", domain.StoreGroup).Find(&groups).Error; err != nil {
			return err
		}
		member := key.String()
		for i := range groups {
			g := &groups[i]
			if !slices.Contains(g.Constituents, member) {
				continue
			}
			g.Constituents = slices.DeleteFunc(g.Constituents, func(k string) bool { return k == member })
			if err := tx.Save(g).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return mapError(err)
}

// mapError converts GORM errors to domain errors. AppErrors pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewAppError(domain.CodeNotFound, "store not found", err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err) {
		return domain.NewAppError(domain.CodeAlreadyExists, "store already defined", err)
	}
	return domain.NewAppError(domain.CodeInternal, "database error", err)
}

func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
