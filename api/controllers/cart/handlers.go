package cart

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartdto "github.com/angelmondragon/localstore-backend/api/controllers/cart/dto"
	"github.com/angelmondragon/localstore-backend/api/responses"
	"github.com/angelmondragon/localstore-backend/api/validators"
	cartsvc "github.com/angelmondragon/localstore-backend/internal/cart"
	"github.com/angelmondragon/localstore-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/localstore-backend/pkg/errors"
	"github.com/angelmondragon/localstore-backend/pkg/logger"
)

// ProductCatalog resolves the products shown on cart lines.
type ProductCatalog interface {
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*catalog.Snapshot, error)
}

// Handlers binds the cart routes to the cart service. TaxRate is the flat
// display rate applied to responses only. Products is optional; without it
// lines render without product summaries.
type Handlers struct {
	Service  cartsvc.Service
	Products ProductCatalog
	TaxRate  decimal.Decimal
	Logger   *logger.Logger
}

// Fetch returns the cart for the session, or an empty one when none is live.
func (h Handlers) Fetch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready(w, r) {
			return
		}
		sessionKey := sessionParam(r)
		ctx := h.withSession(r, sessionKey)

		agg, err := h.Service.Get(ctx, sessionKey)
		if err != nil {
			responses.WriteError(ctx, h.Logger, w, err)
			return
		}
		h.render(ctx, w, agg)
	}
}

// AddItem adds to the cart, generating a session id when the client has none.
func (h Handlers) AddItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready(w, r) {
			return
		}
		var payload cartdto.AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		ctx := h.withSession(r, payload.SessionID)

		agg, err := h.Service.AddItem(ctx, payload.SessionID, payload.ProductID, *payload.Quantity)
		if err != nil {
			responses.WriteError(ctx, h.Logger, w, err)
			return
		}
		h.render(ctx, w, agg)
	}
}

func (h Handlers) UpdateItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready(w, r) {
			return
		}
		var payload cartdto.UpdateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		ctx := h.withSession(r, payload.SessionID)

		agg, err := h.Service.UpdateItem(ctx, payload.SessionID, payload.ProductID, *payload.Quantity)
		if err != nil {
			responses.WriteError(ctx, h.Logger, w, err)
			return
		}
		h.render(ctx, w, agg)
	}
}

func (h Handlers) RemoveItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready(w, r) {
			return
		}
		var payload cartdto.RemoveItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		ctx := h.withSession(r, payload.SessionID)

		agg, err := h.Service.RemoveItem(ctx, payload.SessionID, payload.ProductID)
		if err != nil {
			responses.WriteError(ctx, h.Logger, w, err)
			return
		}
		h.render(ctx, w, agg)
	}
}

func (h Handlers) Clear() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready(w, r) {
			return
		}
		sessionKey := sessionParam(r)
		ctx := h.withSession(r, sessionKey)

		agg, err := h.Service.ClearCart(ctx, sessionKey)
		if err != nil {
			responses.WriteError(ctx, h.Logger, w, err)
			return
		}
		h.render(ctx, w, agg)
	}
}

// render writes the cart with one catalog query for every line's product. A
// failed lookup degrades to bare lines; the mutation has already committed.
func (h Handlers) render(ctx context.Context, w http.ResponseWriter, agg *cartsvc.Aggregate) {
	var products map[uuid.UUID]*catalog.Snapshot
	if h.Products != nil && len(agg.Items) > 0 {
		found, err := h.Products.GetProducts(ctx, agg.ProductIDs())
		switch {
		case err == nil:
			products = found
		case h.Logger != nil:
			h.Logger.Warn(h.Logger.WithField(ctx, "error", err.Error()), "cart product lookup failed")
		}
	}
	responses.WriteSuccess(w, cartsvc.NewCartDTO(agg, h.TaxRate, products))
}

func (h Handlers) ready(w http.ResponseWriter, r *http.Request) bool {
	if h.Service == nil {
		responses.WriteError(r.Context(), h.Logger, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
		return false
	}
	return true
}

func (h Handlers) withSession(r *http.Request, sessionKey string) context.Context {
	if h.Logger == nil || sessionKey == "" {
		return r.Context()
	}
	return h.Logger.WithSessionKey(r.Context(), sessionKey)
}

func sessionParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "sessionId"))
}
