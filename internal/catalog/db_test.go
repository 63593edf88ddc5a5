package catalog

import (
	"testing"

	"github.com/angelmondragon/localstore-backend/pkg/db"
	"github.com/angelmondragon/localstore-backend/pkg/db/models"
	"github.com/angelmondragon/localstore-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := openTestDB(t)
	svc, err := NewService(NewRepository(conn), db.NewFromGorm(conn), configForTests())
	require.NoError(t, err)
	return svc, conn
}

func mustCreateProduct(t *testing.T, conn *gorm.DB, mutate func(*models.Product)) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:        "Desk Lamp",
		Description: "Warm light for late reading",
		Price:       decimal.RequireFromString("10.00"),
		Category:    enums.ProductCategoryHome,
		Image:       "https://img.example/lamp.jpg",
		Rating:      decimal.RequireFromString("4.5"),
		Stock:       5,
		IsActive:    true,
		Tags:        []string{"lighting"},
	}
	if mutate != nil {
		mutate(product)
	}
	require.NoError(t, conn.Create(product).Error)
	return product
}
