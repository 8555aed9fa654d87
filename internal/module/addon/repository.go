package addon

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

// Allowed fields for sorting and filtering in List queries.
var (
	allowedSortFields   = []string{"id", "name", "position", "created_at", "updated_at"}
	allowedFilterFields = []string{"name"}
)

// addonRepository implements domain.AddonRepository using GORM.
type addonRepository struct {
	db *gorm.DB
}

// NewAddonRepository creates a new AddonRepository backed by the given GORM database.
func NewAddonRepository(db *gorm.DB) domain.AddonRepository {
	return &addonRepository{db: db}
}

func orderedSections(db *gorm.DB) *gorm.DB {
	return db.Order("ordinal")
}

// Create inserts the addon and its sections, placing the addon after every
// existing one. check, when not nil, runs inside the transaction against
// every existing addon and aborts the insert by returning an error.
func (r *addonRepository) Create(ctx context.Context, addon *domain.Addon, check domain.AddonCheck) error {
	err := pkg.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		var last int64
		if err := tx.Model(&domain.Addon{}).
			Select("COALESCE(MAX(position), -1)").
			Row().Scan(&last); err != nil {
			return err
		}
		addon.Position = int(last) + 1
		if err := runCheck(tx, addon.ID, check); err != nil {
			return err
		}
		numberSections(addon.Sections)
		return tx.Create(addon).Error
	})
	return mapError(err)
}

// GetByID retrieves an addon and its sections by primary key.
func (r *addonRepository) GetByID(ctx context.Context, id uint) (*domain.Addon, error) {
	var addon domain.Addon
	if err := r.db.WithContext(ctx).
		Preload("Sections", orderedSections).
		First(&addon, id).Error; err != nil {
		return nil, mapError(err)
	}
	return &addon, nil
}

// GetByName retrieves an addon and its sections by its unique name.
func (r *addonRepository) GetByName(ctx context.Context, name string) (*domain.Addon, error) {
	var addon domain.Addon
	if err := r.db.WithContext(ctx).
		Preload("Sections", orderedSections).
		Where("name = ?", name).
		First(&addon).Error; err != nil {
		return nil, mapError(err)
	}
	return &addon, nil
}

// List returns a paginated, sorted, and filtered list of addons.
func (r *addonRepository) List(ctx context.Context, req domain.PageRequest) (*pagination.Pagination[domain.Addon], error) {
	var total int64
	base := r.db.WithContext(ctx).Model(&domain.Addon{}).
		Scopes(pkg.Filter(req, allowedFilterFields))

	if err := base.Count(&total).Error; err != nil {
		return nil, mapError(err)
	}

	var addons []domain.Addon
	if err := base.Scopes(
		pkg.Sort(req, allowedSortFields),
		pkg.Paginate(req),
	).Preload("Sections", orderedSections).Find(&addons).Error; err != nil {
		return nil, mapError(err)
	}

	return pkg.Page(addons, total, req), nil
}

// All returns every addon in registration order.
func (r *addonRepository) All(ctx context.Context) ([]domain.Addon, error) {
	addons, err := allAddons(r.db.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	return addons, nil
}

func allAddons(db *gorm.DB) ([]domain.Addon, error) {
	var addons []domain.Addon
	err := db.Preload("Sections", orderedSections).
		Order("position").Order("id").
		Find(&addons).Error
	return addons, err
}

// runCheck hands check every addon but the one with id.
func runCheck(tx *gorm.DB, id uint, check domain.AddonCheck) error {
	if check == nil {
		return nil
	}
	all, err := allAddons(tx)
	if err != nil {
		return err
	}
	return check(slices.DeleteFunc(all, func(a domain.Addon) bool { return id != 0 && a.ID == id }))
}

// Update saves the addon's fields and replaces its sections. check behaves
// as in Create; the addon being updated is not among the addons it sees.
func (r *addonRepository) Update(ctx context.Context, addon *domain.Addon, check domain.AddonCheck) error {
	err := pkg.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		if err := runCheck(tx, addon.ID, check); err != nil {
			return err
		}
		res := tx.Model(&domain.Addon{}).Where("id = ?", addon.ID).Updates(map[string]any{
			"name":     addon.Name,
			"position": addon.Position,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		if err := tx.Where("addon_id = ?", addon.ID).Delete(&domain.AddonSection{}).Error; err != nil {
			return err
		}
		if len(addon.Sections) == 0 {
			return nil
		}
		for i := range addon.Sections {
			addon.Sections[i].ID = 0
			addon.Sections[i].AddonID = addon.ID
		}
		numberSections(addon.Sections)
		return tx.Create(&addon.Sections).Error
	})
	return mapError(err)
}

// Delete removes an addon and its sections by ID.
func (r *addonRepository) Delete(ctx context.Context, id uint) error {
	err := pkg.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Where("addon_id = ?", id).Delete(&domain.AddonSection{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.Addon{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	return mapError(err)
}

// Reorder assigns positions 0..n-1 to ids in the given order.
func (r *addonRepository) Reorder(ctx context.Context, ids []uint) error {
	err := pkg.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		for pos, id := range ids {
			res := tx.Model(&domain.Addon{}).Where("id = ?", id).Update("position", pos)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.NewAppError(domain.CodeNotFound, "addon not found", nil)
			}
		}
		return nil
	})
	return mapError(err)
}

func numberSections(sections []domain.AddonSection) {
	for i := range sections {
		sections[i].Ordinal = i
	}
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
		return domain.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err) {
		return domain.NewAppError(domain.CodeAlreadyExists, "addon name already registered", err)
	}
	return domain.NewAppError(domain.CodeInternal, "database error", err)
}

// isDuplicateKeyError detects unique constraint violations by message, since
// the pure-Go SQLite driver does not translate them to gorm.ErrDuplicatedKey.
func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
