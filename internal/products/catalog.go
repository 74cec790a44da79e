package products

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/models"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/types"
)

//go:embed catalog.json
var catalogJSON []byte

type catalogEntry struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Category    enums.ProductCategory `json:"category"`
	Price       decimal.Decimal       `json:"price"`
	Sizes       types.ProductSizes    `json:"sizes"`
	Image       string                `json:"image"`
	Ingredients []string              `json:"ingredients"`
	Benefits    []string              `json:"benefits"`
	Featured    bool                  `json:"featured"`
}

func loadCatalog() ([]catalogEntry, error) {
	var entries []catalogEntry
	if err := json.Unmarshal(catalogJSON, &entries); err != nil {
		return nil, fmt.Errorf("decode seed catalog: %w", err)
	}
	return entries, nil
}

// SeedCatalog inserts the bundled catalog when the products table is empty.
// An existing catalog is never touched so live stock is preserved.
func (s *service) SeedCatalog(ctx context.Context) (int, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count products")
	}
	if count > 0 {
		return 0, nil
	}

	entries, err := loadCatalog()
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seed catalog")
	}
	now := s.now()
	rows := make([]models.Product, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, models.Product{
			ID:          uuid.New(),
			Name:        entry.Name,
			Description: entry.Description,
			Category:    entry.Category,
			Price:       entry.Price,
			Sizes:       nonNilSizes(entry.Sizes),
			Image:       entry.Image,
			Ingredients: cleanList(entry.Ingredients),
			Benefits:    cleanList(entry.Benefits),
			Stock:       defaultStock,
			Rating:      decimal.Zero,
			Featured:    entry.Featured,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	if err := s.repo.CreateBatch(ctx, rows); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seed catalog")
	}
	if s.logg != nil {
		s.logg.Info(ctx, fmt.Sprintf("seeded %d catalog products", len(rows)))
	}
	return len(rows), nil
}
