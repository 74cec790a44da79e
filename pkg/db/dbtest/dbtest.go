// Package dbtest opens throwaway SQLite databases with the application schema.
package dbtest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/models"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/migrate"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/types"
)

// Open returns a file-backed SQLite database with foreign keys enforced and
// the same schema the application builds on SQLite. The pool is capped at
// one connection so concurrent transactions serialize instead of failing
// with SQLITE_BUSY.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := gorm.Open(sqlite.Open("file:"+path+"?_busy_timeout=5000&_foreign_keys=1"), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.MigrateSQLite(context.Background(), conn); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

// PostgresURLEnv names the database used by OpenPostgres.
const PostgresURLEnv = "VG_TEST_DATABASE_URL"

// OpenPostgres runs the goose migrations into a throwaway schema of the
// database named by VG_TEST_DATABASE_URL and returns a connection scoped to
// it. The test is skipped when the variable is unset.
func OpenPostgres(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv(PostgresURLEnv))
	if dsn == "" {
		t.Skipf("%s not set", PostgresURLEnv)
	}

	schema := "vg_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	admin := openPostgres(t, dsn)
	if err := admin.Exec(fmt.Sprintf("CREATE SCHEMA %s", schema)).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_ = admin.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema)).Error
	})

	scopedDSN, err := withSearchPath(dsn, schema)
	if err != nil {
		t.Fatalf("scope dsn: %v", err)
	}
	conn := openPostgres(t, scopedDSN)
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	if err := migrate.Run(context.Background(), sqlDB, migrationsDir(), "up"); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return conn
}

func openPostgres(t testing.TB, dsn string) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open postgres: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// withSearchPath pins every pooled connection to schema, for both URL and
// keyword/value DSNs.
func withSearchPath(dsn, schema string) (string, error) {
	if !strings.Contains(dsn, "://") {
		return dsn + " search_path=" + schema, nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set("search_path", schema)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func migrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrate", "migrations")
}

// SeedProduct inserts a catalog product with the given price and stock.
func SeedProduct(t testing.TB, conn *gorm.DB, name, price string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:          uuid.New(),
		Name:        name,
		Category:    enums.ProductCategoryJuice,
		Price:       decimal.RequireFromString(price),
		Sizes:       types.ProductSizes{},
		Ingredients: types.StringList{},
		Benefits:    types.StringList{},
		Stock:       stock,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

// ProductStock reloads the stock counter of a product.
func ProductStock(t testing.TB, conn *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := conn.Select("stock").First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("load product stock: %v", err)
	}
	return product.Stock
}

// SeedSession inserts a pending payment session whose cart buys qty units of
// product at its catalog price.
func SeedSession(t testing.TB, conn *gorm.DB, reference string, product *models.Product, qty int) *models.PaymentSession {
	t.Helper()
	item := types.CartItem{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Quantity:  qty,
	}
	total := item.LineTotal()
	session := &models.PaymentSession{
		ID:        uuid.New(),
		Reference: reference,
		Amount:    total,
		Currency:  enums.CurrencyGHS,
		Status:    enums.SessionStatusPending,
		Customer:  types.Customer{Name: "Ama Mensah", Email: "ama@example.com", Phone: "+233200000000"},
		Items:     types.CartItems{item},
		Subtotal:  total,
		Total:     total,
		ShippingAddress: types.ShippingAddress{
			FirstName: "Ama",
			LastName:  "Mensah",
			Street:    "12 Oxford St",
			City:      "Accra",
		},
	}
	if err := conn.Create(session).Error; err != nil {
		t.Fatalf("seed payment session: %v", err)
	}
	return session
}

// SeedOrder inserts a confirmed order so a session can be bound to it.
func SeedOrder(t testing.TB, conn *gorm.DB, number string) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     number,
		Customer:        types.Customer{Name: "Ama Mensah", Email: "ama@example.com"},
		ShippingAddress: types.ShippingAddress{FirstName: "Ama", Street: "12 Oxford St", City: "Accra"},
		Currency:        enums.CurrencyGHS,
		Subtotal:        decimal.RequireFromString("10"),
		Total:           decimal.RequireFromString("10"),
		Status:          enums.OrderStatusConfirmed,
		PaymentStatus:   enums.PaymentStatusCompleted,
	}
	if err := conn.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}
