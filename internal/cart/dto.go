package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/localstore-backend/internal/catalog"
)

// CartDTO is the cart payload returned to clients.
type CartDTO struct {
	SessionID   string        `json:"session_id"`
	Items       []LineItemDTO `json:"items"`
	TotalItems  int           `json:"total_items"`
	TotalAmount string        `json:"total_amount"`
	TaxAmount   string        `json:"tax_amount"`
	GrandTotal  string        `json:"grand_total"`
	ExpiresAt   *time.Time    `json:"expires_at,omitempty"`
}

// LineItemDTO renders one cart line. Product is null when the catalog no
// longer has the row or was not consulted.
type LineItemDTO struct {
	ProductID uuid.UUID          `json:"product_id"`
	Product   *ProductSummaryDTO `json:"product"`
	Quantity  int                `json:"quantity"`
	UnitPrice string             `json:"unit_price"`
	LineTotal string             `json:"line_total"`
}

// ProductSummaryDTO is enough of a product to render a cart line. Price is
// the live catalog price, which may differ from the line's UnitPrice.
type ProductSummaryDTO struct {
	Name      string `json:"name"`
	Price     string `json:"price"`
	Image     string `json:"image"`
	Category  string `json:"category"`
	Available bool   `json:"available"`
}

// NewCartDTO renders agg. taxRate is a display-only fraction (0.08 for 8%).
// products, when non-nil, populates each line's product summary.
func NewCartDTO(agg *Aggregate, taxRate decimal.Decimal, products map[uuid.UUID]*catalog.Snapshot) CartDTO {
	tax := agg.TotalAmount.Mul(taxRate).Round(2)
	dto := CartDTO{
		SessionID:   agg.SessionKey,
		Items:       make([]LineItemDTO, 0, len(agg.Items)),
		TotalItems:  agg.TotalItems,
		TotalAmount: agg.TotalAmount.StringFixed(2),
		TaxAmount:   tax.StringFixed(2),
		GrandTotal:  agg.TotalAmount.Add(tax).StringFixed(2),
	}
	if !agg.ExpiresAt.IsZero() {
		expires := agg.ExpiresAt
		dto.ExpiresAt = &expires
	}
	for _, item := range agg.Items {
		dto.Items = append(dto.Items, LineItemDTO{
			ProductID: item.ProductID,
			Product:   newProductSummary(products[item.ProductID]),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			LineTotal: item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).StringFixed(2),
		})
	}
	return dto
}

func newProductSummary(p *catalog.Snapshot) *ProductSummaryDTO {
	if p == nil {
		return nil
	}
	return &ProductSummaryDTO{
		Name:      p.Name,
		Price:     p.Price.StringFixed(2),
		Image:     p.Image,
		Category:  p.Category.String(),
		Available: p.IsActive && p.Stock > 0,
	}
}
