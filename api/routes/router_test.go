package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/localstore-backend/internal/cart"
	"github.com/angelmondragon/localstore-backend/internal/catalog"
	"github.com/angelmondragon/localstore-backend/pkg/config"
	"github.com/angelmondragon/localstore-backend/pkg/db"
	"github.com/angelmondragon/localstore-backend/pkg/db/models"
	"github.com/angelmondragon/localstore-backend/pkg/enums"
	"github.com/angelmondragon/localstore-backend/pkg/logger"
	"github.com/angelmondragon/localstore-backend/pkg/metrics"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type testServer struct {
	handler http.Handler
	conn    *gorm.DB
}

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Env: "test"},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Catalog:   config.CatalogConfig{DefaultPageSize: 12, FeaturedLimit: 8},
		RateLimit: config.RateLimitConfig{CartWindow: time.Minute, CartIPLimit: 100},
	}
}

func newTestServer(t *testing.T, pinger db.Pinger) *testServer {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(models.All()...))

	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), db.NewFromGorm(conn), cfg.Catalog)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	cartSvc, err := cart.NewService(cart.NewRepository(conn), catalogSvc, cart.NewLocalLocker(), cart.Options{
		Metrics: metrics.NewCartMetrics(reg),
		Logger:  logg,
	})
	require.NoError(t, err)

	if pinger == nil {
		pinger = db.NewFromGorm(conn)
	}
	handler := NewRouter(Dependencies{
		Config:   cfg,
		Logger:   logg,
		DB:       pinger,
		Catalog:  catalogSvc,
		Cart:     cartSvc,
		TaxRate:  decimal.RequireFromString("0.10"),
		Gatherer: reg,
	})
	return &testServer{handler: handler, conn: conn}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) seedProduct(t *testing.T, price string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:        "Desk Lamp",
		Description: "Warm light",
		Price:       decimal.RequireFromString(price),
		Category:    enums.ProductCategoryHome,
		Image:       "lamp.jpg",
		Rating:      decimal.RequireFromString("4.5"),
		Stock:       stock,
		IsActive:    true,
	}
	require.NoError(t, s.conn.Create(product).Error)
	return product
}

type cartResponse struct {
	Data struct {
		SessionID   string `json:"session_id"`
		TotalItems  int    `json:"total_items"`
		TotalAmount string `json:"total_amount"`
		TaxAmount   string `json:"tax_amount"`
		GrandTotal  string `json:"grand_total"`
		Items       []struct {
			ProductID uuid.UUID `json:"product_id"`
			Quantity  int       `json:"quantity"`
			UnitPrice string    `json:"unit_price"`
		} `json:"items"`
	} `json:"data"`
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartResponse {
	t.Helper()
	var out cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	return payload.Error.Code
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, stubPinger{})

	rec := srv.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-LocalStore-Env"))

	rec = srv.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"db":"ok"`)
}

func TestReadyReportsDependencyFailure(t *testing.T) {
	srv := newTestServer(t, stubPinger{err: errors.New("connection refused")})

	rec := srv.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "DEPENDENCY_ERROR", errorCode(t, rec))
}

func TestCartFlowThroughRouter(t *testing.T) {
	srv := newTestServer(t, nil)
	product := srv.seedProduct(t, "10.00", 5)
	pid := product.ID.String()

	rec := srv.do(t, http.MethodGet, "/api/cart/sess_router", "")
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decodeCart(t, rec)
	assert.Equal(t, "sess_router", empty.Data.SessionID)
	assert.Empty(t, empty.Data.Items)
	assert.Equal(t, "0.00", empty.Data.TotalAmount)

	rec = srv.do(t, http.MethodPost, "/api/cart/add", `{"product_id":"`+pid+`","quantity":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	added := decodeCart(t, rec)
	sessionID := added.Data.SessionID
	require.True(t, strings.HasPrefix(sessionID, "sess_"))
	assert.Equal(t, 3, added.Data.TotalItems)
	assert.Equal(t, "30.00", added.Data.TotalAmount)
	assert.Equal(t, "3.00", added.Data.TaxAmount)
	assert.Equal(t, "33.00", added.Data.GrandTotal)

	rec = srv.do(t, http.MethodPost, "/api/cart/add", `{"session_id":"`+sessionID+`","product_id":"`+pid+`","quantity":3}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", errorCode(t, rec))

	require.NoError(t, srv.conn.Model(&models.Product{}).Where("id = ?", product.ID).Update("price", decimal.RequireFromString("12.00")).Error)
	rec = srv.do(t, http.MethodPut, "/api/cart/update", `{"session_id":"`+sessionID+`","product_id":"`+pid+`","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeCart(t, rec)
	require.Len(t, updated.Data.Items, 1)
	assert.Equal(t, 2, updated.Data.Items[0].Quantity)
	assert.Equal(t, "12.00", updated.Data.Items[0].UnitPrice)
	assert.Equal(t, "24.00", updated.Data.TotalAmount)

	rec = srv.do(t, http.MethodDelete, "/api/cart/remove", `{"session_id":"`+sessionID+`","product_id":"`+uuid.NewString()+`"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ITEM_NOT_FOUND", errorCode(t, rec))

	rec = srv.do(t, http.MethodDelete, "/api/cart/clear/"+sessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := decodeCart(t, rec)
	assert.Empty(t, cleared.Data.Items)
	assert.Equal(t, "0.00", cleared.Data.TotalAmount)

	rec = srv.do(t, http.MethodGet, "/api/cart/"+sessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeCart(t, rec).Data.TotalItems)

	rec = srv.do(t, http.MethodDelete, "/api/cart/clear/sess_never", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CART_NOT_FOUND", errorCode(t, rec))

	rec = srv.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cart_operations_total")
}

func TestAddUnavailableProduct(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := srv.do(t, http.MethodPost, "/api/cart/add", `{"session_id":"sess_x","product_id":"`+uuid.NewString()+`","quantity":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "PRODUCT_UNAVAILABLE", errorCode(t, rec))
}

func TestProductRoutes(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodPost, "/api/products", `{"name":"Chess Set","description":"Walnut board","price":"49.99","category":"toys","image":"chess.jpg","stock":3,"featured":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data catalog.ProductDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Data.ID.String()

	rec = srv.do(t, http.MethodGet, "/api/products?category=toys&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data catalog.ListResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data.Products, 1)
	assert.Equal(t, int64(1), list.Data.Pagination.TotalItems)

	rec = srv.do(t, http.MethodGet, "/api/products/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "toys")

	rec = srv.do(t, http.MethodGet, "/api/products/featured", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Chess Set")

	rec = srv.do(t, http.MethodPut, "/api/products/"+id, `{"stock":10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"stock":10`)

	rec = srv.do(t, http.MethodDelete, "/api/products/"+id, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/products/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, stubPinger{})
	req := httptest.NewRequest(http.MethodOptions, "/api/cart/add", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
