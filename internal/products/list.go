package products

import (
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/models"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/pagination"
)

// ListFilters describe the supported filter knobs for the catalog endpoint.
type ListFilters struct {
	Category *enums.ProductCategory `json:"category,omitempty"`
	Featured *bool                  `json:"featured,omitempty"`
}

// ListParams captures the inputs needed to paginate and filter products.
type ListParams struct {
	Filters    ListFilters
	Pagination pagination.Params
}

// ListResult is one page of the catalog.
type ListResult struct {
	Products   []models.Product `json:"products"`
	Pagination pagination.Page  `json:"pagination"`
}
