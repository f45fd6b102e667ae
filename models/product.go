package models

import "time"

type Product struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description *string          `json:"description,omitempty"`
	Price       float64          `json:"price"`
	Stock       int              `json:"stock"`
	Category    *string          `json:"category,omitempty"`
	Variants    []ProductVariant `json:"variants,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// ProductVariant carries its own price and stock, independent of the parent
// product's. When a line references a variant, the variant price wins.
type ProductVariant struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Size      *string   `json:"size,omitempty"`
	Color     *string   `json:"color,omitempty"`
	Price     float64   `json:"price"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type VariantRequest struct {
	Size  *string `json:"size"`
	Color *string `json:"color"`
	Price float64 `json:"price" binding:"required,gt=0"`
	Stock int     `json:"stock" binding:"min=0"`
}

type CreateProductRequest struct {
	Name        string           `json:"name" binding:"required"`
	Description *string          `json:"description"`
	Price       float64          `json:"price" binding:"required,gt=0"`
	Stock       int              `json:"stock" binding:"min=0"`
	Category    *string          `json:"category"`
	Variants    []VariantRequest `json:"variants" binding:"omitempty,dive"`
}

type UpdateProductRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" binding:"omitempty,gt=0"`
	Stock       *int     `json:"stock" binding:"omitempty,min=0"`
	Category    *string  `json:"category"`
}
