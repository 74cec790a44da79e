// Package products manages the storefront catalog and its reviews.
package products

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/obedyakpa0-dev/VitalAndGreen/pkg/db"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/models"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/logger"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/pagination"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/types"
)

const defaultStock = 100

// Service exposes catalog management operations.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Create(ctx context.Context, input CreateInput) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddReview(ctx context.Context, id uuid.UUID, input ReviewInput) (*models.Product, error)
	Restock(ctx context.Context, id uuid.UUID, quantity int) (*models.Product, error)
	SeedCatalog(ctx context.Context) (int, error)
}

// CreateInput holds the validated payload to create a product. Stock is only
// settable here; later changes go through restock and orders.
type CreateInput struct {
	Name        string
	Description string
	Category    enums.ProductCategory
	Price       decimal.Decimal
	Sizes       types.ProductSizes
	Image       string
	Ingredients []string
	Benefits    []string
	Stock       *int
	Featured    bool
}

// UpdateInput carries the fields to change; nil means unchanged.
type UpdateInput struct {
	Name        *string
	Description *string
	Category    *enums.ProductCategory
	Price       *decimal.Decimal
	Sizes       *types.ProductSizes
	Image       *string
	Ingredients *[]string
	Benefits    *[]string
	Featured    *bool
}

type ReviewInput struct {
	User    string
	Comment string
	Rating  int
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type restocker interface {
	Restock(ctx context.Context, productID uuid.UUID, qty int) (int, error)
}

type service struct {
	repo      *Repository
	tx        txRunner
	inventory restocker
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the catalog service.
func NewService(repo *Repository, tx txRunner, inventory restocker, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		inventory: inventory,
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Filters.Category != nil && !params.Filters.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
	}
	rows, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	if rows == nil {
		rows = []models.Product{}
	}
	return &ListResult{Products: rows, Pagination: pagination.NewPage(params.Pagination, total)}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	return mapLookup(s.repo.FindByID(ctx, id))
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	}
	category := input.Category
	if category == "" {
		category = enums.ProductCategoryJuice
	}
	if !category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	if err := validateSizes(input.Sizes); err != nil {
		return nil, err
	}
	stock := defaultStock
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
		}
		stock = *input.Stock
	}

	now := s.now()
	product := &models.Product{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Category:    category,
		Price:       input.Price,
		Sizes:       nonNilSizes(input.Sizes),
		Image:       strings.TrimSpace(input.Image),
		Ingredients: cleanList(input.Ingredients),
		Benefits:    cleanList(input.Benefits),
		Stock:       stock,
		Rating:      decimal.Zero,
		Featured:    input.Featured,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return product, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	updates, err := buildUpdates(input)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return s.Get(ctx, id)
	}
	updates["updated_at"] = s.now()

	ok, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return s.Get(ctx, id)
}

// Delete removes the product. Orders keep their own line snapshots.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	var deleted bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).Delete(ctx, id)
		deleted = ok
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

func (s *service) AddReview(ctx context.Context, id uuid.UUID, input ReviewInput) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	reviewer := strings.TrimSpace(input.User)
	if reviewer == "" {
		reviewer = "Anonymous"
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := mapLookup(repo.FindByID(ctx, id)); err != nil {
			return err
		}
		if err := repo.AddReview(ctx, &models.ProductReview{
			ID:        uuid.New(),
			ProductID: id,
			Reviewer:  reviewer,
			Comment:   strings.TrimSpace(input.Comment),
			Rating:    input.Rating,
			CreatedAt: s.now(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add review")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) Restock(ctx context.Context, id uuid.UUID, quantity int) (*models.Product, error) {
	stock, err := s.inventory.Restock(ctx, id, quantity)
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "product_id", id.String()), fmt.Sprintf("product restocked to %d", stock))
	}
	return s.Get(ctx, id)
}

func buildUpdates(input UpdateInput) (map[string]any, error) {
	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Category != nil {
		if !input.Category.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
		}
		updates["category"] = *input.Category
	}
	if input.Price != nil {
		if err := validatePrice(*input.Price); err != nil {
			return nil, err
		}
		updates["price"] = *input.Price
	}
	if input.Sizes != nil {
		if err := validateSizes(*input.Sizes); err != nil {
			return nil, err
		}
		updates["sizes"] = nonNilSizes(*input.Sizes)
	}
	if input.Image != nil {
		updates["image"] = strings.TrimSpace(*input.Image)
	}
	if input.Ingredients != nil {
		updates["ingredients"] = cleanList(*input.Ingredients)
	}
	if input.Benefits != nil {
		updates["benefits"] = cleanList(*input.Benefits)
	}
	if input.Featured != nil {
		updates["featured"] = *input.Featured
	}
	return updates, nil
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if !price.Equal(price.Round(2)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "price supports at most two decimal places")
	}
	return nil
}

func validateSizes(sizes types.ProductSizes) error {
	seen := map[string]struct{}{}
	for _, size := range sizes {
		label := strings.ToLower(strings.TrimSpace(size.Label))
		if label == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "size label is required")
		}
		if size.Price.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "size price must not be negative")
		}
		if _, ok := seen[label]; ok {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("duplicate size %q", size.Label))
		}
		seen[label] = struct{}{}
	}
	return nil
}

func nonNilSizes(sizes types.ProductSizes) types.ProductSizes {
	if sizes == nil {
		return types.ProductSizes{}
	}
	return sizes
}

func cleanList(values []string) types.StringList {
	out := types.StringList{}
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func averageRating(sum, count int64) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(count), 2)
}

func mapLookup(product *models.Product, err error) (*models.Product, error) {
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}
