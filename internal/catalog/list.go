package catalog

import (
	"github.com/angelmondragon/localstore-backend/pkg/enums"
	"github.com/angelmondragon/localstore-backend/pkg/pagination"
	"github.com/shopspring/decimal"
)

// ListFilters describe the supported filter knobs for the browse endpoint.
type ListFilters struct {
	Category *enums.ProductCategory
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Featured *bool
}

// ListInput captures everything needed to page through active products.
type ListInput struct {
	Filters    ListFilters
	SortBy     enums.ProductSortField
	SortOrder  enums.SortOrder
	Pagination pagination.Params
}

// ListResult is one page of products plus its position in the full set.
type ListResult struct {
	Products   []ProductDTO    `json:"products"`
	Pagination pagination.Page `json:"pagination"`
}
