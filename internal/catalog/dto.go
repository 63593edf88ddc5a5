package catalog

import (
	"time"

	"github.com/angelmondragon/localstore-backend/pkg/db/models"
	"github.com/angelmondragon/localstore-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductDTO is the product payload returned to clients. Money is a fixed two-decimal string.
type ProductDTO struct {
	ID                 uuid.UUID         `json:"id"`
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	Price              string            `json:"price"`
	OriginalPrice      *string           `json:"original_price,omitempty"`
	DiscountPercentage int               `json:"discount_percentage"`
	Category           string            `json:"category"`
	Brand              *string           `json:"brand,omitempty"`
	Image              string            `json:"image"`
	Images             []string          `json:"images"`
	Rating             float64           `json:"rating"`
	NumReviews         int               `json:"num_reviews"`
	Stock              int               `json:"stock"`
	IsActive           bool              `json:"is_active"`
	Featured           bool              `json:"featured"`
	Tags               []string          `json:"tags"`
	Specifications     map[string]string `json:"specifications"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Snapshot is the slice of a product the cart needs at mutation time and
// when rendering its lines.
type Snapshot struct {
	ID       uuid.UUID
	Name     string
	Image    string
	Category enums.ProductCategory
	Price    decimal.Decimal
	Stock    int
	IsActive bool
}

func newSnapshot(p *models.Product) *Snapshot {
	return &Snapshot{
		ID:       p.ID,
		Name:     p.Name,
		Image:    p.Image,
		Category: p.Category,
		Price:    p.Price,
		Stock:    p.Stock,
		IsActive: p.IsActive,
	}
}

// NewProductDTO maps a product row to its client payload.
func NewProductDTO(p *models.Product) ProductDTO {
	dto := ProductDTO{
		ID:                 p.ID,
		Name:               p.Name,
		Description:        p.Description,
		Price:              p.Price.StringFixed(2),
		DiscountPercentage: DiscountPercentage(p.Price, p.OriginalPrice),
		Category:           p.Category.String(),
		Brand:              p.Brand,
		Image:              p.Image,
		Images:             nonNilStrings(p.Images),
		Rating:             p.Rating.InexactFloat64(),
		NumReviews:         p.NumReviews,
		Stock:              p.Stock,
		IsActive:           p.IsActive,
		Featured:           p.Featured,
		Tags:               nonNilStrings(p.Tags),
		Specifications:     p.Specifications,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	if p.OriginalPrice != nil {
		original := p.OriginalPrice.StringFixed(2)
		dto.OriginalPrice = &original
	}
	if dto.Specifications == nil {
		dto.Specifications = map[string]string{}
	}
	return dto
}

// NewProductDTOs maps a slice of rows.
func NewProductDTOs(rows []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewProductDTO(&rows[i]))
	}
	return out
}

// DiscountPercentage is the rounded markdown from original to price, or 0 when
// there is no higher original price.
func DiscountPercentage(price decimal.Decimal, original *decimal.Decimal) int {
	if original == nil || !original.GreaterThan(price) || !original.IsPositive() {
		return 0
	}
	pct := original.Sub(price).Div(*original).Mul(decimal.NewFromInt(100)).Round(0)
	return int(pct.IntPart())
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
