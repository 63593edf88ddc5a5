package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/localstore-backend/pkg/config"
	"github.com/angelmondragon/localstore-backend/pkg/db/models"
	"github.com/angelmondragon/localstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/localstore-backend/pkg/errors"
	"github.com/angelmondragon/localstore-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configForTests() config.CatalogConfig {
	return config.CatalogConfig{DefaultPageSize: 12, FeaturedLimit: 2}
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, configForTests())
	require.Error(t, err)
}

func TestListProductsFiltersAndPaginates(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	mustCreateProduct(t, conn, func(p *models.Product) {
		p.Name = "Cheap Book"
		p.Category = enums.ProductCategoryBooks
		p.Price = dec("5.00")
	})
	mustCreateProduct(t, conn, func(p *models.Product) {
		p.Name = "Mid Book"
		p.Category = enums.ProductCategoryBooks
		p.Price = dec("15.00")
	})
	mustCreateProduct(t, conn, func(p *models.Product) {
		p.Name = "Pricey Book"
		p.Category = enums.ProductCategoryBooks
		p.Price = dec("40.00")
	})
	mustCreateProduct(t, conn, func(p *models.Product) {
		p.Name = "Hidden Book"
		p.Category = enums.ProductCategoryBooks
		p.IsActive = false
	})
	mustCreateProduct(t, conn, func(p *models.Product) {
		p.Name = "Sneakers"
		p.Category = enums.ProductCategorySports
		p.Price = dec("60.00")
	})

	books := enums.ProductCategoryBooks
	res, err := svc.ListProducts(ctx, ListInput{
		Filters:    ListFilters{Category: &books},
		SortBy:     enums.ProductSortPrice,
		SortOrder:  enums.SortOrderAsc,
		Pagination: pagination.Params{Page: 1, Limit: 2},
	})
	require.NoError(t, err)
	require.Len(t, res.Products, 2)
	assert.Equal(t, "Cheap Book", res.Products[0].Name)
	assert.Equal(t, "5.00", res.Products[0].Price)
	assert.Equal(t, int64(3), res.Pagination.TotalItems)
	assert.Equal(t, 2, res.Pagination.TotalPages)
	assert.True(t, res.Pagination.HasNextPage)

	minPrice, maxPrice := dec("10"), dec("50")
	res, err = svc.ListProducts(ctx, ListInput{Filters: ListFilters{MinPrice: &minPrice, MaxPrice: &maxPrice}})
	require.NoError(t, err)
	names := []string{}
	for _, p := range res.Products {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{"Mid Book", "Pricey Book"}, names)
	assert.Equal(t, 12, pagination.Params{}.Normalize(configForTests().DefaultPageSize).Limit)
}

func TestListProductsSearchMatchesNameDescriptionAndTags(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	mustCreateProduct(t, conn, func(p *models.Product) { p.Name = "Trail Runner"; p.Tags = []string{"outdoor"} })
	mustCreateProduct(t, conn, func(p *models.Product) { p.Name = "Desk Fan"; p.Description = "Quiet OUTDOOR friendly fan" })
	mustCreateProduct(t, conn, func(p *models.Product) { p.Name = "Mug"; p.Tags = []string{"kitchen"} })

	res, err := svc.ListProducts(ctx, ListInput{Filters: ListFilters{Search: "Outdoor"}})
	require.NoError(t, err)
	assert.Len(t, res.Products, 2)
}

func TestListProductsSearchTreatsWildcardsLiterally(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	mustCreateProduct(t, conn, func(p *models.Product) { p.Name = "Gift Card 50% Off"; p.Tags = nil })
	mustCreateProduct(t, conn, func(p *models.Product) { p.Name = "Gift Card 500"; p.Tags = nil })
	mustCreateProduct(t, conn, func(p *models.Product) { p.Name = "snake_case poster"; p.Tags = nil })
	mustCreateProduct(t, conn, func(p *models.Product) { p.Name = "snakeXcase poster"; p.Tags = nil })

	res, err := svc.ListProducts(ctx, ListInput{Filters: ListFilters{Search: "50%"}})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Gift Card 50% Off", res.Products[0].Name)

	res, err = svc.ListProducts(ctx, ListInput{Filters: ListFilters{Search: "snake_case"}})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "snake_case poster", res.Products[0].Name)
}

func TestGetProductsResolvesManyIncludingInactive(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	lamp := mustCreateProduct(t, conn, nil)
	retired := mustCreateProduct(t, conn, func(p *models.Product) {
		p.Name = "Old Kettle"
		p.IsActive = false
	})
	missing := uuid.New()

	got, err := svc.GetProducts(ctx, []uuid.UUID{lamp.ID, retired.ID, missing})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Desk Lamp", got[lamp.ID].Name)
	assert.Equal(t, "https://img.example/lamp.jpg", got[lamp.ID].Image)
	assert.Equal(t, enums.ProductCategoryHome, got[lamp.ID].Category)
	assert.False(t, got[retired.ID].IsActive)
	assert.NotContains(t, got, missing)

	empty, err := svc.GetProducts(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListProductsRejectsInvertedPriceRange(t *testing.T) {
	svc, _ := newTestService(t)
	minPrice, maxPrice := dec("50"), dec("10")
	_, err := svc.ListProducts(context.Background(), ListInput{Filters: ListFilters{MinPrice: &minPrice, MaxPrice: &maxPrice}})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestCategoriesAndFeatured(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, name := range []string{"Old", "Newer", "Newest"} {
		created := base.Add(time.Duration(i) * time.Minute)
		mustCreateProduct(t, conn, func(p *models.Product) {
			p.Name = name
			p.Featured = true
			p.CreatedAt = created
		})
	}
	mustCreateProduct(t, conn, func(p *models.Product) { p.Category = enums.ProductCategoryToys; p.IsActive = false })
	mustCreateProduct(t, conn, func(p *models.Product) { p.Category = enums.ProductCategoryBeauty })

	categories, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"beauty", "home"}, categories)

	featured, err := svc.FeaturedProducts(ctx)
	require.NoError(t, err)
	require.Len(t, featured, 2)
	assert.Equal(t, "Newest", featured[0].Name)
	assert.Equal(t, "Newer", featured[1].Name)
}

func TestGetProductDetailHidesInactive(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	inactive := mustCreateProduct(t, conn, func(p *models.Product) { p.IsActive = false })

	_, err := svc.GetProductDetail(ctx, inactive.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	snap, err := svc.GetProduct(ctx, inactive.ID)
	require.NoError(t, err)
	assert.False(t, snap.IsActive)
	assert.True(t, snap.Price.Equal(dec("10")))
}

func TestGetProductMissingWrapsSentinel(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetProduct(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductNotFound))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestCreateProductDefaultsAndValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	original := dec("25.00")

	created, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:          "  Headphones ",
		Description:   "Closed back",
		Price:         dec("20"),
		OriginalPrice: &original,
		Category:      enums.ProductCategoryElectronics,
		Image:         "https://img.example/hp.jpg",
		Stock:         3,
		Tags:          []string{"Audio", "audio", " "},
	})
	require.NoError(t, err)
	assert.Equal(t, "Headphones", created.Name)
	assert.Equal(t, 4.5, created.Rating)
	assert.True(t, created.IsActive)
	assert.Equal(t, 20, created.DiscountPercentage)
	assert.Equal(t, []string{"audio"}, created.Tags)
	assert.Equal(t, "25.00", *created.OriginalPrice)

	_, err = svc.CreateProduct(ctx, CreateProductInput{
		Name: "x", Description: "y", Price: dec("-1"), Category: enums.ProductCategoryFood, Image: "i",
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.CreateProduct(ctx, CreateProductInput{
		Name: "x", Description: "y", Price: dec("1"), Category: "garden", Image: "i",
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestUpdateProductAppliesPartialChanges(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	product := mustCreateProduct(t, conn, nil)

	price := dec("12.00")
	stock := 9
	updated, err := svc.UpdateProduct(ctx, product.ID, UpdateProductInput{Price: &price, Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, "12.00", updated.Price)
	assert.Equal(t, 9, updated.Stock)
	assert.Equal(t, product.Name, updated.Name)

	negative := -1
	_, err = svc.UpdateProduct(ctx, product.ID, UpdateProductInput{Stock: &negative})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.UpdateProduct(ctx, uuid.New(), UpdateProductInput{Stock: &stock})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestDeactivateProduct(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	product := mustCreateProduct(t, conn, nil)

	require.NoError(t, svc.DeactivateProduct(ctx, product.ID))
	snap, err := svc.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.False(t, snap.IsActive)

	err = svc.DeactivateProduct(ctx, uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestDiscountPercentage(t *testing.T) {
	original := dec("30")
	assert.Equal(t, 33, DiscountPercentage(dec("20"), &original))
	assert.Equal(t, 0, DiscountPercentage(dec("40"), &original))
	assert.Equal(t, 0, DiscountPercentage(dec("20"), nil))
}
