package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/localstore-backend/api/responses"
	"github.com/angelmondragon/localstore-backend/api/validators"
	"github.com/angelmondragon/localstore-backend/internal/catalog"
	"github.com/angelmondragon/localstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/localstore-backend/pkg/errors"
	"github.com/angelmondragon/localstore-backend/pkg/logger"
	"github.com/angelmondragon/localstore-backend/pkg/pagination"
)

const (
	maxSearchLength = 100
	maxPage         = 100000
)

// ListProducts serves the filtered, sorted and paged product browse.
func ListProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		input, err := parseListInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListProducts(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseListInput(r *http.Request) (catalog.ListInput, error) {
	var input catalog.ListInput
	query := r.URL.Query()

	page, err := validators.ParseQueryInt(r, "page", 1, 1, maxPage)
	if err != nil {
		return input, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
	if err != nil {
		return input, err
	}
	input.Pagination = pagination.Params{Page: page, Limit: limit}

	if raw := strings.TrimSpace(query.Get("category")); raw != "" && !strings.EqualFold(raw, "all") {
		category, err := enums.ParseProductCategory(strings.ToLower(raw))
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category").WithDetails(map[string]any{"field": "category"})
		}
		input.Filters.Category = &category
	}

	input.Filters.Search = validators.SanitizeString(query.Get("search"), maxSearchLength)

	if input.Filters.MinPrice, err = validators.ParseQueryDecimal(r, "minPrice"); err != nil {
		return input, err
	}
	if input.Filters.MaxPrice, err = validators.ParseQueryDecimal(r, "maxPrice"); err != nil {
		return input, err
	}
	if input.Filters.Featured, err = validators.ParseQueryBool(r, "featured"); err != nil {
		return input, err
	}

	if input.SortBy, err = enums.ParseProductSortField(strings.TrimSpace(query.Get("sortBy"))); err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sortBy").WithDetails(map[string]any{"field": "sortBy"})
	}
	if input.SortOrder, err = enums.ParseSortOrder(strings.TrimSpace(query.Get("sortOrder"))); err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sortOrder").WithDetails(map[string]any{"field": "sortOrder"})
	}
	return input, nil
}

func ProductCategories(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := svc.Categories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, categories)
	}
}

func FeaturedProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := svc.FeaturedProducts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

func ProductDetail(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProductDetail(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// CreateProduct handles catalog administration inserts.
func CreateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCreateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, product)
	}
}

// UpdateProduct applies a partial update; absent fields keep their value.
func UpdateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toUpdateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// DeleteProduct soft-deletes by clearing the active flag.
func DeleteProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeactivateProduct(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func productIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "productId"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	return id, nil
}

type createProductRequest struct {
	Name           string            `json:"name" validate:"required,max=100"`
	Description    string            `json:"description" validate:"required,max=500"`
	Price          *decimal.Decimal  `json:"price" validate:"required"`
	OriginalPrice  *decimal.Decimal  `json:"original_price,omitempty"`
	Category       string            `json:"category" validate:"required"`
	Brand          *string           `json:"brand,omitempty" validate:"omitempty,max=100"`
	Image          string            `json:"image" validate:"required"`
	Images         []string          `json:"images,omitempty" validate:"omitempty,dive,required"`
	Rating         *decimal.Decimal  `json:"rating,omitempty"`
	NumReviews     int               `json:"num_reviews" validate:"gte=0"`
	Stock          *int              `json:"stock" validate:"required,gte=0"`
	IsActive       *bool             `json:"is_active,omitempty"`
	Featured       bool              `json:"featured"`
	Tags           []string          `json:"tags,omitempty" validate:"omitempty,dive,required"`
	Specifications map[string]string `json:"specifications,omitempty"`
}

func (r createProductRequest) toCreateInput() (catalog.CreateProductInput, error) {
	category, err := enums.ParseProductCategory(strings.ToLower(strings.TrimSpace(r.Category)))
	if err != nil {
		return catalog.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
	}
	return catalog.CreateProductInput{
		Name:           r.Name,
		Description:    r.Description,
		Price:          *r.Price,
		OriginalPrice:  r.OriginalPrice,
		Category:       category,
		Brand:          r.Brand,
		Image:          r.Image,
		Images:         r.Images,
		Rating:         r.Rating,
		NumReviews:     r.NumReviews,
		Stock:          *r.Stock,
		IsActive:       r.IsActive,
		Featured:       r.Featured,
		Tags:           r.Tags,
		Specifications: r.Specifications,
	}, nil
}

type updateProductRequest struct {
	Name           *string            `json:"name,omitempty" validate:"omitempty,max=100"`
	Description    *string            `json:"description,omitempty" validate:"omitempty,max=500"`
	Price          *decimal.Decimal   `json:"price,omitempty"`
	OriginalPrice  *decimal.Decimal   `json:"original_price,omitempty"`
	Category       *string            `json:"category,omitempty"`
	Brand          *string            `json:"brand,omitempty" validate:"omitempty,max=100"`
	Image          *string            `json:"image,omitempty"`
	Images         *[]string          `json:"images,omitempty"`
	Rating         *decimal.Decimal   `json:"rating,omitempty"`
	NumReviews     *int               `json:"num_reviews,omitempty" validate:"omitempty,gte=0"`
	Stock          *int               `json:"stock,omitempty" validate:"omitempty,gte=0"`
	IsActive       *bool              `json:"is_active,omitempty"`
	Featured       *bool              `json:"featured,omitempty"`
	Tags           *[]string          `json:"tags,omitempty"`
	Specifications *map[string]string `json:"specifications,omitempty"`
}

func (r updateProductRequest) toUpdateInput() (catalog.UpdateProductInput, error) {
	input := catalog.UpdateProductInput{
		Name:           r.Name,
		Description:    r.Description,
		Price:          r.Price,
		OriginalPrice:  r.OriginalPrice,
		Brand:          r.Brand,
		Image:          r.Image,
		Images:         r.Images,
		Rating:         r.Rating,
		NumReviews:     r.NumReviews,
		Stock:          r.Stock,
		IsActive:       r.IsActive,
		Featured:       r.Featured,
		Tags:           r.Tags,
		Specifications: r.Specifications,
	}
	if r.Category != nil {
		category, err := enums.ParseProductCategory(strings.ToLower(strings.TrimSpace(*r.Category)))
		if err != nil {
			return catalog.UpdateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
		}
		input.Category = &category
	}
	return input, nil
}
