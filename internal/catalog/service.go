package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/localstore-backend/pkg/config"
	"github.com/angelmondragon/localstore-backend/pkg/db"
	"github.com/angelmondragon/localstore-backend/pkg/db/models"
	"github.com/angelmondragon/localstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/localstore-backend/pkg/errors"
	"github.com/angelmondragon/localstore-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 500
)

// ErrProductNotFound marks lookups for ids with no product row.
var ErrProductNotFound = errors.New("product not found")

var (
	defaultRating = decimal.RequireFromString("4.5")
	maxRating     = decimal.NewFromInt(5)
)

// Service exposes catalog browsing and administration.
type Service interface {
	ListProducts(ctx context.Context, input ListInput) (*ListResult, error)
	Categories(ctx context.Context) ([]string, error)
	FeaturedProducts(ctx context.Context) ([]ProductDTO, error)
	GetProductDetail(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Snapshot, error)
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Snapshot, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeactivateProduct(ctx context.Context, id uuid.UUID) error
}

// CreateProductInput holds the payload to create a product.
type CreateProductInput struct {
	Name           string
	Description    string
	Price          decimal.Decimal
	OriginalPrice  *decimal.Decimal
	Category       enums.ProductCategory
	Brand          *string
	Image          string
	Images         []string
	Rating         *decimal.Decimal
	NumReviews     int
	Stock          int
	IsActive       *bool
	Featured       bool
	Tags           []string
	Specifications map[string]string
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name           *string
	Description    *string
	Price          *decimal.Decimal
	OriginalPrice  *decimal.Decimal
	Category       *enums.ProductCategory
	Brand          *string
	Image          *string
	Images         *[]string
	Rating         *decimal.Decimal
	NumReviews     *int
	Stock          *int
	IsActive       *bool
	Featured       *bool
	Tags           *[]string
	Specifications *map[string]string
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	cfg      config.CatalogConfig
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository, dbClient *db.Client, cfg config.CatalogConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = pagination.DefaultLimit
	}
	if cfg.FeaturedLimit <= 0 {
		cfg.FeaturedLimit = 8
	}
	return &service{repo: repo, dbClient: dbClient, cfg: cfg}, nil
}

func (s *service) ListProducts(ctx context.Context, input ListInput) (*ListResult, error) {
	input.Pagination = input.Pagination.Normalize(s.cfg.DefaultPageSize)
	if input.Filters.MinPrice != nil && input.Filters.MaxPrice != nil && input.Filters.MinPrice.GreaterThan(*input.Filters.MaxPrice) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minPrice cannot exceed maxPrice")
	}

	rows, total, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return &ListResult{
		Products:   NewProductDTOs(rows),
		Pagination: pagination.Build(input.Pagination, total),
	}, nil
}

func (s *service) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		out = append(out, c.String())
	}
	return out, nil
}

func (s *service) FeaturedProducts(ctx context.Context) ([]ProductDTO, error) {
	rows, err := s.repo.Featured(ctx, s.cfg.FeaturedLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list featured products")
	}
	return NewProductDTOs(rows), nil
}

// GetProductDetail returns an active product; inactive products read as missing.
func (s *service) GetProductDetail(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, notFound(id)
	}
	dto := NewProductDTO(product)
	return &dto, nil
}

// GetProduct returns price, stock and the active flag for the cart, including inactive rows.
func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	product, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	return newSnapshot(product), nil
}

// GetProducts resolves many products in one query, keyed by id. Ids with no
// row are absent from the map.
func (s *service) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Snapshot, error) {
	rows, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	out := make(map[uuid.UUID]*Snapshot, len(rows))
	for i := range rows {
		out[rows[i].ID] = newSnapshot(&rows[i])
	}
	return out, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	product := &models.Product{
		Name:           strings.TrimSpace(input.Name),
		Description:    strings.TrimSpace(input.Description),
		Price:          input.Price,
		OriginalPrice:  input.OriginalPrice,
		Category:       input.Category,
		Brand:          trimmedPtr(input.Brand),
		Image:          strings.TrimSpace(input.Image),
		Images:         nonNilStrings(input.Images),
		Rating:         defaultRating,
		NumReviews:     input.NumReviews,
		Stock:          input.Stock,
		IsActive:       true,
		Featured:       input.Featured,
		Tags:           normalizeTags(input.Tags),
		Specifications: input.Specifications,
	}
	if input.Rating != nil {
		product.Rating = *input.Rating
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	if product.Specifications == nil {
		product.Specifications = map[string]string{}
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return nil, translateWriteError(err, "insert product")
	}
	dto := NewProductDTO(created)
	return &dto, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	var updated *models.Product
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		product, err := s.load(ctx, txRepo, id)
		if err != nil {
			return err
		}
		applyUpdate(product, input)
		if err := validateProduct(product); err != nil {
			return err
		}

		saved, err := txRepo.Save(ctx, product)
		if err != nil {
			return translateWriteError(err, "update product")
		}
		updated = saved
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	dto := NewProductDTO(updated)
	return &dto, nil
}

// DeactivateProduct soft-deletes the product; carts holding it fail later lookups as unavailable.
func (s *service) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	matched, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate product")
	}
	if !matched {
		return notFound(id)
	}
	return nil
}

func (s *service) load(ctx context.Context, repo *Repository, id uuid.UUID) (*models.Product, error) {
	product, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func notFound(id uuid.UUID) error {
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrProductNotFound, "product not found").
		WithDetails(map[string]any{"product_id": id.String()})
}

func translateWriteError(err error, op string) error {
	if pkgerrors.IsCheckViolation(err) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "product violates a catalog constraint")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: "+op)
}

func applyUpdate(p *models.Product, in UpdateProductInput) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.OriginalPrice != nil {
		original := *in.OriginalPrice
		p.OriginalPrice = &original
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.Brand != nil {
		p.Brand = trimmedPtr(in.Brand)
	}
	if in.Image != nil {
		p.Image = strings.TrimSpace(*in.Image)
	}
	if in.Images != nil {
		p.Images = nonNilStrings(*in.Images)
	}
	if in.Rating != nil {
		p.Rating = *in.Rating
	}
	if in.NumReviews != nil {
		p.NumReviews = *in.NumReviews
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if in.Featured != nil {
		p.Featured = *in.Featured
	}
	if in.Tags != nil {
		p.Tags = normalizeTags(*in.Tags)
	}
	if in.Specifications != nil {
		p.Specifications = *in.Specifications
	}
}

func validateProduct(p *models.Product) error {
	switch {
	case p.Name == "":
		return validation("name is required")
	case len([]rune(p.Name)) > maxNameLength:
		return validation(fmt.Sprintf("name cannot exceed %d characters", maxNameLength))
	case p.Description == "":
		return validation("description is required")
	case len([]rune(p.Description)) > maxDescriptionLength:
		return validation(fmt.Sprintf("description cannot exceed %d characters", maxDescriptionLength))
	case p.Price.IsNegative():
		return validation("price cannot be negative")
	case p.OriginalPrice != nil && p.OriginalPrice.IsNegative():
		return validation("original price cannot be negative")
	case !p.Category.IsValid():
		return validation(fmt.Sprintf("invalid category %q", p.Category))
	case p.Image == "":
		return validation("image is required")
	case p.Rating.IsNegative() || p.Rating.GreaterThan(maxRating):
		return validation("rating must be between 0 and 5")
	case p.NumReviews < 0:
		return validation("num_reviews cannot be negative")
	case p.Stock < 0:
		return validation("stock cannot be negative")
	}
	return nil
}

func validation(msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg)
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
