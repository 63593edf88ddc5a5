package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/localstore-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository stores carts in the carts and cart_items tables.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Load(ctx context.Context, sessionKey string) (*Aggregate, error) {
	var row models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&row, "session_key = ?", sessionKey).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return fromModel(&row), nil
}

// Save upserts the header and rewrites the lines in one transaction.
func (r *Repository) Save(ctx context.Context, agg *Aggregate) error {
	row := toModel(agg)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "session_key"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"total_items", "total_amount", "last_touched_at", "expires_at", "created_at", "updated_at",
				}),
			}).
			Create(&row).
			Error
		if err != nil {
			return fmt.Errorf("upsert cart: %w", err)
		}
		if err := tx.Where("session_key = ?", agg.SessionKey).Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("clear cart items: %w", err)
		}
		if len(row.Items) == 0 {
			return nil
		}
		if err := tx.Create(&row.Items).Error; err != nil {
			return fmt.Errorf("insert cart items: %w", err)
		}
		return nil
	})
}

func (r *Repository) Delete(ctx context.Context, sessionKey string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_key = ?", sessionKey).Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("delete cart items: %w", err)
		}
		if err := tx.Where("session_key = ?", sessionKey).Delete(&models.Cart{}).Error; err != nil {
			return fmt.Errorf("delete cart: %w", err)
		}
		return nil
	})
}

// DeleteExpiredBefore removes every cart whose horizon is at or before cutoff.
func (r *Repository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoff = cutoff.UTC()
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expired := tx.Model(&models.Cart{}).Select("session_key").Where("expires_at <= ?", cutoff)
		if err := tx.Where("session_key IN (?)", expired).Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("delete expired cart items: %w", err)
		}
		res := tx.Where("expires_at <= ?", cutoff).Delete(&models.Cart{})
		if res.Error != nil {
			return fmt.Errorf("delete expired carts: %w", res.Error)
		}
		removed = res.RowsAffected
		return nil
	})
	return removed, err
}

func toModel(agg *Aggregate) models.Cart {
	row := models.Cart{
		SessionKey:    agg.SessionKey,
		TotalItems:    agg.TotalItems,
		TotalAmount:   agg.TotalAmount,
		LastTouchedAt: agg.LastTouchedAt.UTC(),
		ExpiresAt:     agg.ExpiresAt.UTC(),
		CreatedAt:     agg.CreatedAt.UTC(),
		UpdatedAt:     agg.LastTouchedAt.UTC(),
		Items:         make([]models.CartItem, 0, len(agg.Items)),
	}
	for i, item := range agg.Items {
		row.Items = append(row.Items, models.CartItem{
			SessionKey: agg.SessionKey,
			ProductID:  item.ProductID,
			Position:   i,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		})
	}
	return row
}

func fromModel(row *models.Cart) *Aggregate {
	agg := &Aggregate{
		SessionKey:    row.SessionKey,
		Items:         make([]LineItem, 0, len(row.Items)),
		TotalItems:    row.TotalItems,
		TotalAmount:   row.TotalAmount,
		LastTouchedAt: row.LastTouchedAt.UTC(),
		ExpiresAt:     row.ExpiresAt.UTC(),
		CreatedAt:     row.CreatedAt.UTC(),
	}
	for _, item := range row.Items {
		agg.Items = append(agg.Items, LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return agg
}
