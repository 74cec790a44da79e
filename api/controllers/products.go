package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/obedyakpa0-dev/VitalAndGreen/api/responses"
	"github.com/obedyakpa0-dev/VitalAndGreen/api/validators"
	productsvc "github.com/obedyakpa0-dev/VitalAndGreen/internal/products"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/logger"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/types"
)

// ProductList serves the paginated catalog.
func ProductList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		featured, err := validators.ParseQueryBool(r, "featured")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := productsvc.ListParams{Pagination: page}
		params.Filters.Featured = featured
		if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" && raw != "all" {
			category, err := enums.ParseProductCategory(strings.ToLower(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
				return
			}
			params.Filters.Category = &category
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ProductDetail(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

type productSizeRequest struct {
	Label string          `json:"label" validate:"required"`
	Price decimal.Decimal `json:"price"`
}

type createProductRequest struct {
	Name        string               `json:"name" validate:"required,max=200"`
	Description string               `json:"description" validate:"required"`
	Category    string               `json:"category" validate:"omitempty,oneof=juice smoothie blend"`
	Price       decimal.Decimal      `json:"price"`
	Sizes       []productSizeRequest `json:"sizes" validate:"omitempty,dive"`
	Image       string               `json:"image" validate:"omitempty,max=2048"`
	Ingredients []string             `json:"ingredients"`
	Benefits    []string             `json:"benefits"`
	Stock       *int                 `json:"stock,omitempty" validate:"omitempty,gte=0"`
	Featured    bool                 `json:"featured"`
}

func (p createProductRequest) toInput() productsvc.CreateInput {
	return productsvc.CreateInput{
		Name:        p.Name,
		Description: p.Description,
		Category:    enums.ProductCategory(p.Category),
		Price:       p.Price,
		Sizes:       toSizes(p.Sizes),
		Image:       p.Image,
		Ingredients: p.Ingredients,
		Benefits:    p.Benefits,
		Stock:       p.Stock,
		Featured:    p.Featured,
	}
}

// updateProductRequest has no stock field; strict decoding rejects it.
type updateProductRequest struct {
	Name        *string               `json:"name,omitempty" validate:"omitempty,max=200"`
	Description *string               `json:"description,omitempty"`
	Category    *string               `json:"category,omitempty" validate:"omitempty,oneof=juice smoothie blend"`
	Price       *decimal.Decimal      `json:"price,omitempty"`
	Sizes       *[]productSizeRequest `json:"sizes,omitempty"`
	Image       *string               `json:"image,omitempty" validate:"omitempty,max=2048"`
	Ingredients *[]string             `json:"ingredients,omitempty"`
	Benefits    *[]string             `json:"benefits,omitempty"`
	Featured    *bool                 `json:"featured,omitempty"`
}

func (p updateProductRequest) toInput() productsvc.UpdateInput {
	input := productsvc.UpdateInput{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Image:       p.Image,
		Ingredients: p.Ingredients,
		Benefits:    p.Benefits,
		Featured:    p.Featured,
	}
	if p.Category != nil {
		category := enums.ProductCategory(*p.Category)
		input.Category = &category
	}
	if p.Sizes != nil {
		sizes := toSizes(*p.Sizes)
		input.Sizes = &sizes
	}
	return input
}

func toSizes(in []productSizeRequest) types.ProductSizes {
	if in == nil {
		return nil
	}
	out := make(types.ProductSizes, 0, len(in))
	for _, size := range in {
		out = append(out, types.ProductSize{Label: size.Label, Price: size.Price})
	}
	return out
}

func ProductCreate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Create(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func ProductUpdate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Update(r.Context(), id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ProductDelete(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": true, "id": id})
	}
}

type reviewRequest struct {
	User    string `json:"user" validate:"omitempty,max=100"`
	Comment string `json:"comment" validate:"required,max=2000"`
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
}

func ProductAddReview(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload reviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.AddReview(r.Context(), id, productsvc.ReviewInput{
			User:    validators.SanitizeString(payload.User, 100),
			Comment: validators.SanitizeString(payload.Comment, 2000),
			Rating:  payload.Rating,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

type restockRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

func ProductRestock(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload restockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Restock(r.Context(), id, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}
