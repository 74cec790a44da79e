package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/models"
)

// sqlitePaymentSessionsDDL mirrors the payment_sessions goose migration. GORM
// tags cannot declare a deferrable foreign key, and the order claim writes
// order_id before the order row exists within the same transaction.
var sqlitePaymentSessionsDDL = []string{
	`CREATE TABLE IF NOT EXISTS payment_sessions (
		id uuid PRIMARY KEY,
		reference text NOT NULL,
		amount numeric(12,2) NOT NULL,
		currency text NOT NULL,
		status text NOT NULL,
		checkout_url text,
		customer jsonb NOT NULL,
		items jsonb NOT NULL,
		subtotal numeric(12,2) NOT NULL,
		discount numeric(12,2) NOT NULL,
		discount_rate numeric(5,4) NOT NULL,
		tax numeric(12,2) NOT NULL,
		shipping numeric(12,2) NOT NULL,
		total numeric(12,2) NOT NULL,
		shipping_address jsonb NOT NULL,
		order_id uuid,
		provider_payload jsonb,
		created_at datetime,
		updated_at datetime,
		CONSTRAINT fk_payment_sessions_order
			FOREIGN KEY (order_id) REFERENCES orders(id) DEFERRABLE INITIALLY DEFERRED,
		CONSTRAINT chk_payment_sessions_paid_has_order
			CHECK ((status = 'paid') = (order_id IS NOT NULL))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_sessions_reference ON payment_sessions (reference)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_sessions_status ON payment_sessions (status)`,
}

// MigrateSQLite builds the schema on SQLite, where the Postgres migrations do
// not apply. Tables come from the models except payment_sessions, which keeps
// the same keys and checks as production.
func MigrateSQLite(ctx context.Context, conn *gorm.DB) error {
	conn = conn.WithContext(ctx)
	var tables []any
	for _, model := range models.All() {
		if _, ok := model.(*models.PaymentSession); ok {
			continue
		}
		tables = append(tables, model)
	}
	if err := conn.AutoMigrate(tables...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}
	for _, stmt := range sqlitePaymentSessionsDDL {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("creating payment_sessions: %w", err)
		}
	}
	return nil
}
