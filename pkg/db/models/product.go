package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/localstore-backend/pkg/enums"
)

// Product represents a catalog listing.
type Product struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Name           string                `gorm:"column:name;size:100;not null"`
	Description    string                `gorm:"column:description;size:500;not null"`
	Price          decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null"`
	OriginalPrice  *decimal.Decimal      `gorm:"column:original_price;type:numeric(12,2)"`
	Category       enums.ProductCategory `gorm:"column:category;size:32;not null;index:idx_products_category_active,priority:1"`
	Brand          *string               `gorm:"column:brand"`
	Image          string                `gorm:"column:image;not null"`
	Images         []string              `gorm:"column:images;type:jsonb;serializer:json"`
	Rating         decimal.Decimal       `gorm:"column:rating;type:numeric(2,1);not null"`
	NumReviews     int                   `gorm:"column:num_reviews;not null"`
	Stock          int                   `gorm:"column:stock;not null"`
	IsActive       bool                  `gorm:"column:is_active;not null;index:idx_products_category_active,priority:2"`
	Featured       bool                  `gorm:"column:featured;not null"`
	Tags           []string              `gorm:"column:tags;type:jsonb;serializer:json"`
	Specifications map[string]string     `gorm:"column:specifications;type:jsonb;serializer:json"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller did not.
func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
