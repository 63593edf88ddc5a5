package enums

import (
	"fmt"
	"strings"
)

// ProductCategory represents the canonical product categories supported by the catalog.
type ProductCategory string

const (
	ProductCategoryElectronics ProductCategory = "electronics"
	ProductCategoryClothing    ProductCategory = "clothing"
	ProductCategoryBooks       ProductCategory = "books"
	ProductCategoryHome        ProductCategory = "home"
	ProductCategorySports      ProductCategory = "sports"
	ProductCategoryBeauty      ProductCategory = "beauty"
	ProductCategoryToys        ProductCategory = "toys"
	ProductCategoryFood        ProductCategory = "food"
)

var validProductCategories = []ProductCategory{
	ProductCategoryElectronics,
	ProductCategoryClothing,
	ProductCategoryBooks,
	ProductCategoryHome,
	ProductCategorySports,
	ProductCategoryBeauty,
	ProductCategoryToys,
	ProductCategoryFood,
}

// String implements fmt.Stringer.
func (c ProductCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ProductCategory.
func (c ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseProductCategory converts raw input into a ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	for _, candidate := range validProductCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}

// ProductSortField is a column the product listing may be ordered by.
type ProductSortField string

const (
	ProductSortCreatedAt ProductSortField = "createdAt"
	ProductSortPrice     ProductSortField = "price"
	ProductSortRating    ProductSortField = "rating"
	ProductSortName      ProductSortField = "name"
)

var productSortColumns = map[ProductSortField]string{
	ProductSortCreatedAt: "created_at",
	ProductSortPrice:     "price",
	ProductSortRating:    "rating",
	ProductSortName:      "name",
}

// Column maps the field to its products table column.
func (f ProductSortField) Column() string {
	return productSortColumns[f]
}

// ParseProductSortField converts raw input into a ProductSortField.
// An empty value defaults to createdAt.
func ParseProductSortField(value string) (ProductSortField, error) {
	if value == "" {
		return ProductSortCreatedAt, nil
	}
	field := ProductSortField(value)
	if _, ok := productSortColumns[field]; !ok {
		return "", fmt.Errorf("invalid sort field %q", value)
	}
	return field, nil
}

// SortOrder is asc or desc.
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// ParseSortOrder converts raw input into a SortOrder. Empty defaults to desc.
func ParseSortOrder(value string) (SortOrder, error) {
	switch strings.ToLower(value) {
	case "", string(SortOrderDesc):
		return SortOrderDesc, nil
	case string(SortOrderAsc):
		return SortOrderAsc, nil
	}
	return "", fmt.Errorf("invalid sort order %q", value)
}
