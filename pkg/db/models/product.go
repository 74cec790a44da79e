package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/types"
)

// Product is a catalog item. Stock is only changed through the inventory ledger.
type Product struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name        string                `gorm:"column:name;not null" json:"name"`
	Description string                `gorm:"column:description;not null;default:''" json:"description"`
	Category    enums.ProductCategory `gorm:"column:category;not null" json:"category"`
	Price       decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	Sizes       types.ProductSizes    `gorm:"column:sizes;type:jsonb;not null" json:"sizes"`
	Image       string                `gorm:"column:image;not null;default:''" json:"image"`
	Ingredients types.StringList      `gorm:"column:ingredients;type:jsonb;not null" json:"ingredients"`
	Benefits    types.StringList      `gorm:"column:benefits;type:jsonb;not null" json:"benefits"`
	Stock       int                   `gorm:"column:stock;not null" json:"stock"`
	Rating      decimal.Decimal       `gorm:"column:rating;type:numeric(3,2);not null;default:0" json:"rating"`
	NumReviews  int                   `gorm:"column:num_reviews;not null;default:0" json:"numReviews"`
	Featured    bool                  `gorm:"column:featured;not null;default:false" json:"featured"`
	Reviews     []ProductReview       `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"reviews,omitempty"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// ProductReview is a customer review attached to a product.
type ProductReview struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index" json:"productId"`
	Reviewer  string    `gorm:"column:reviewer;not null" json:"user"`
	Comment   string    `gorm:"column:comment;not null" json:"comment"`
	Rating    int       `gorm:"column:rating;not null" json:"rating"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}
