package orders

import (
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/models"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/pagination"
)

// ListFilters narrows the order listing.
type ListFilters struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	Email         string
}

// ListParams combines filters and page selection.
type ListParams struct {
	Filters    ListFilters
	Pagination pagination.Params
}

// ListResult is a page of orders.
type ListResult struct {
	Orders     []models.Order  `json:"orders"`
	Pagination pagination.Page `json:"pagination"`
}
