package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/localstore-backend/internal/catalog"
	"github.com/angelmondragon/localstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/localstore-backend/pkg/errors"
	"github.com/angelmondragon/localstore-backend/pkg/logger"
	"github.com/angelmondragon/localstore-backend/pkg/metrics"
	"github.com/google/uuid"
)

// DefaultTTL is the idle horizon after which a cart is treated as gone.
const DefaultTTL = 24 * time.Hour

// ProductLookup resolves the live price and stock of a product.
type ProductLookup interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Snapshot, error)
}

// Service exposes the session cart operations.
type Service interface {
	Get(ctx context.Context, sessionKey string) (*Aggregate, error)
	AddItem(ctx context.Context, sessionKey string, productID uuid.UUID, quantity int) (*Aggregate, error)
	UpdateItem(ctx context.Context, sessionKey string, productID uuid.UUID, quantity int) (*Aggregate, error)
	RemoveItem(ctx context.Context, sessionKey string, productID uuid.UUID) (*Aggregate, error)
	ClearCart(ctx context.Context, sessionKey string) (*Aggregate, error)
}

// Options tune the cart service. Zero values fall back to defaults.
type Options struct {
	TTL     time.Duration
	Now     func() time.Time
	Metrics *metrics.CartMetrics
	Logger  *logger.Logger
}

type service struct {
	store    Store
	products ProductLookup
	locker   KeyLocker
	ttl      time.Duration
	now      func() time.Time
	metrics  *metrics.CartMetrics
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(store Store, products ProductLookup, locker KeyLocker, opts Options) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	if locker == nil {
		return nil, fmt.Errorf("key locker required")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{
		store:    store,
		products: products,
		locker:   locker,
		ttl:      opts.TTL,
		now:      opts.Now,
		metrics:  opts.Metrics,
		logg:     opts.Logger,
	}, nil
}

// Get never fails with a not-found error: a missing or expired cart reads as
// an empty, unsaved cart for the key.
func (s *service) Get(ctx context.Context, sessionKey string) (agg *Aggregate, err error) {
	defer s.observe(ctx, enums.CartOperationGet, time.Now(), &err)

	if !ValidSessionKey(sessionKey) {
		return nil, errValidation("invalid session id")
	}
	current, found, err := s.loadLive(ctx, sessionKey, s.clock())
	if err != nil {
		return nil, err
	}
	if !found {
		return NewAggregate(sessionKey), nil
	}
	return current, nil
}

// AddItem adds quantity of a product, creating the cart when needed. An empty
// sessionKey gets a freshly generated one. Existing lines keep their price.
func (s *service) AddItem(ctx context.Context, sessionKey string, productID uuid.UUID, quantity int) (agg *Aggregate, err error) {
	ctx = s.tagProduct(ctx, productID)
	defer s.observe(ctx, enums.CartOperationAdd, time.Now(), &err)

	if sessionKey == "" {
		sessionKey = NewSessionKey()
	}
	if err := validateLine(sessionKey, productID); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, errValidation("quantity must be at least 1")
	}

	return s.mutate(ctx, sessionKey, true, func(cart *Aggregate) error {
		product, err := s.resolveProduct(ctx, productID)
		if err != nil {
			return err
		}

		idx, exists := cart.FindLine(productID)
		if !exists {
			if quantity > product.Stock {
				return errInsufficientStock(productID, quantity, product.Stock)
			}
			cart.Items = append(cart.Items, LineItem{
				ProductID: productID,
				Quantity:  quantity,
				UnitPrice: product.Price,
			})
			return nil
		}

		if quantity > product.Stock-cart.Items[idx].Quantity {
			return errInsufficientStock(productID, quantity, product.Stock)
		}
		cart.Items[idx].Quantity += quantity
		return nil
	})
}

// UpdateItem sets the quantity of an existing line and refreshes its price.
// Quantity 0 removes the line.
func (s *service) UpdateItem(ctx context.Context, sessionKey string, productID uuid.UUID, quantity int) (agg *Aggregate, err error) {
	ctx = s.tagProduct(ctx, productID)
	defer s.observe(ctx, enums.CartOperationUpdate, time.Now(), &err)

	if err := validateLine(sessionKey, productID); err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, errValidation("quantity cannot be negative")
	}

	return s.mutate(ctx, sessionKey, false, func(cart *Aggregate) error {
		idx, exists := cart.FindLine(productID)
		if !exists {
			return errItemNotFound(productID)
		}
		if quantity == 0 {
			cart.RemoveLine(idx)
			return nil
		}

		product, err := s.resolveProduct(ctx, productID)
		if err != nil {
			return err
		}
		if quantity > product.Stock {
			return errInsufficientStock(productID, quantity, product.Stock)
		}
		cart.Items[idx].Quantity = quantity
		cart.Items[idx].UnitPrice = product.Price
		return nil
	})
}

func (s *service) RemoveItem(ctx context.Context, sessionKey string, productID uuid.UUID) (agg *Aggregate, err error) {
	ctx = s.tagProduct(ctx, productID)
	defer s.observe(ctx, enums.CartOperationRemove, time.Now(), &err)

	if err := validateLine(sessionKey, productID); err != nil {
		return nil, err
	}

	return s.mutate(ctx, sessionKey, false, func(cart *Aggregate) error {
		idx, exists := cart.FindLine(productID)
		if !exists {
			return errItemNotFound(productID)
		}
		cart.RemoveLine(idx)
		return nil
	})
}

// ClearCart empties the cart but keeps the record alive for another horizon.
func (s *service) ClearCart(ctx context.Context, sessionKey string) (agg *Aggregate, err error) {
	defer s.observe(ctx, enums.CartOperationClear, time.Now(), &err)

	if !ValidSessionKey(sessionKey) {
		return nil, errValidation("invalid session id")
	}

	return s.mutate(ctx, sessionKey, false, func(cart *Aggregate) error {
		cart.Items = []LineItem{}
		return nil
	})
}

// mutate runs fn on a copy of the live cart inside the per-key critical
// section, then recomputes totals and saves. Nothing is saved if fn fails.
func (s *service) mutate(ctx context.Context, sessionKey string, createIfMissing bool, fn func(*Aggregate) error) (*Aggregate, error) {
	unlock, err := s.locker.Lock(ctx, sessionKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire cart lock")
	}
	defer unlock()

	now := s.clock()
	current, found, err := s.loadLive(ctx, sessionKey, now)
	if err != nil {
		return nil, err
	}

	var working *Aggregate
	switch {
	case found:
		working = current.Clone()
	case createIfMissing:
		working = NewAggregate(sessionKey)
	default:
		if current != nil {
			s.discard(ctx, sessionKey)
		}
		return nil, errCartNotFound()
	}

	if err := fn(working); err != nil {
		return nil, err
	}

	working.Touch(now, s.ttl)
	working.Recompute()

	if err := s.store.Save(ctx, working); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return working, nil
}

// loadLive reports found only for a stored cart within its horizon. An expired
// record is still returned, with found false, so the caller can drop it.
func (s *service) loadLive(ctx context.Context, sessionKey string, now time.Time) (*Aggregate, bool, error) {
	agg, err := s.store.Load(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if agg.Expired(now) {
		return agg, false, nil
	}
	return agg, true, nil
}

// discard removes an expired record while the key lock is held. A failure
// only leaves the record for the expiry sweep.
func (s *service) discard(ctx context.Context, sessionKey string) {
	err := s.store.Delete(ctx, sessionKey)
	if err == nil || errors.Is(err, ErrNotFound) || s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "drop expired cart failed")
}

func (s *service) resolveProduct(ctx context.Context, productID uuid.UUID) (*catalog.Snapshot, error) {
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, errProductUnavailable(productID)
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup product")
	}
	if product == nil || !product.IsActive {
		return nil, errProductUnavailable(productID)
	}
	return product, nil
}

func (s *service) tagProduct(ctx context.Context, productID uuid.UUID) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithProductID(ctx, productID.String())
}

func (s *service) clock() time.Time {
	return s.now().UTC()
}

func (s *service) observe(ctx context.Context, op enums.CartOperation, started time.Time, errp *error) {
	outcome := ""
	if *errp != nil {
		outcome = string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(*errp); typed != nil {
			outcome = string(typed.Code())
		}
	}
	s.metrics.Observe(op.String(), outcome, time.Since(started))

	if s.logg == nil || *errp == nil {
		return
	}
	ctx = s.logg.WithField(ctx, "cart_op", op.String())
	if pkgerrors.HasCode(*errp, pkgerrors.CodeDependency) {
		s.logg.Error(ctx, "cart operation failed", *errp)
		return
	}
	s.logg.Debug(ctx, "cart operation rejected: "+outcome)
}

func validateLine(sessionKey string, productID uuid.UUID) error {
	if !ValidSessionKey(sessionKey) {
		return errValidation("invalid session id")
	}
	if productID == uuid.Nil {
		return errValidation("product id is required")
	}
	return nil
}
