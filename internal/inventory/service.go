// Package inventory owns the product stock counters. Every stock change in
// the application goes through this package as a single conditional update,
// never as read-modify-write.
package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/outbox"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/outbox/payloads"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/types"
)

// Line is a quantity of one product.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// Shortage describes a line that cannot be satisfied.
type Shortage struct {
	ProductID uuid.UUID `json:"productId"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the stock ledger. Methods taking a tx run inside the
// caller's transaction; a nil tx uses the base connection.
type Service interface {
	CheckAvailability(ctx context.Context, tx *gorm.DB, lines []Line) error
	Decrement(ctx context.Context, tx *gorm.DB, lines []Line) error
	Restore(ctx context.Context, tx *gorm.DB, lines []Line) (int, error)
	Restock(ctx context.Context, productID uuid.UUID, qty int) (int, error)
}

type service struct {
	repo   *Repository
	tx     txRunner
	outbox outbox.Emitter
}

// NewService wires the ledger with its repository, transaction runner and outbox.
func NewService(repo *Repository, tx txRunner, emitter outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, tx: tx, outbox: emitter}, nil
}

// LinesFromCart converts a cart snapshot into ledger lines.
func LinesFromCart(items types.CartItems) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

// CheckAvailability evaluates every line before reporting. A missing product
// wins over a shortage; otherwise all shortages are reported together.
func (s *service) CheckAvailability(ctx context.Context, tx *gorm.DB, lines []Line) error {
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, 0, len(merged))
	for _, line := range merged {
		ids = append(ids, line.ProductID)
	}
	stock, err := s.repo.WithTx(tx).StockByProduct(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product stock")
	}

	var missing error
	var short error
	shortages := []Shortage{}
	for _, line := range merged {
		available, ok := stock[line.ProductID]
		if !ok {
			missing = multierr.Append(missing, fmt.Errorf("product %s not found", line.ProductID))
			continue
		}
		if available < line.Quantity {
			short = multierr.Append(short, fmt.Errorf("product %s: requested %d, available %d", line.ProductID, line.Quantity, available))
			shortages = append(shortages, Shortage{ProductID: line.ProductID, Requested: line.Quantity, Available: available})
		}
	}
	if missing != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, missing, "product not found")
	}
	if short != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInsufficientStock, short, "insufficient stock").WithDetails(shortages)
	}
	return nil
}

// Decrement removes stock line by line. Each statement refuses to go below
// zero, so a caller that lost a race gets InsufficientStock and should roll
// back its transaction.
func (s *service) Decrement(ctx context.Context, tx *gorm.DB, lines []Line) error {
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}
	repo := s.repo.WithTx(tx)
	for _, line := range merged {
		ok, err := repo.Decrement(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
				WithDetails([]Shortage{{ProductID: line.ProductID, Requested: line.Quantity}})
		}
	}
	return nil
}

// Restore returns stock for each line and reports the number of units put
// back. Products deleted since the order was placed are skipped.
func (s *service) Restore(ctx context.Context, tx *gorm.DB, lines []Line) (int, error) {
	merged, err := mergeLines(lines)
	if err != nil {
		return 0, err
	}
	repo := s.repo.WithTx(tx)
	restored := 0
	for _, line := range merged {
		ok, err := repo.Increment(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return restored, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
		}
		if ok {
			restored += line.Quantity
		}
	}
	return restored, nil
}

// Restock adds operator-supplied stock and records a product_restocked event.
func (s *service) Restock(ctx context.Context, productID uuid.UUID, qty int) (int, error) {
	if productID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	var stock int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.Increment(ctx, productID, qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock product")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		product, err := repo.FindProduct(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product")
		}
		stock = product.Stock
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductRestocked,
			AggregateType: enums.AggregateProduct,
			AggregateID:   productID,
			Data: payloads.ProductRestockedEvent{
				ProductID: productID,
				Added:     qty,
				Stock:     stock,
			},
		})
	})
	if err != nil {
		return 0, err
	}
	return stock, nil
}

// mergeLines folds repeated products (several sizes of one product) into a
// single line and orders them by id so concurrent writers lock rows in the
// same order.
func mergeLines(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	totals := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		totals[line.ProductID] += line.Quantity
	}
	merged := make([]Line, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, Line{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ProductID.String() < merged[j].ProductID.String()
	})
	return merged, nil
}
