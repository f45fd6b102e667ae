package models

import "time"

type Banner struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Subtitle     *string   `json:"subtitle,omitempty"`
	ImageURL     string    `json:"imageUrl"`
	LinkURL      *string   `json:"linkUrl,omitempty"`
	DisplayOrder int       `json:"displayOrder"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

type CreateBannerRequest struct {
	Title        string  `json:"title" binding:"required"`
	Subtitle     *string `json:"subtitle"`
	ImageURL     string  `json:"imageUrl" binding:"required"`
	LinkURL      *string `json:"linkUrl"`
	DisplayOrder int     `json:"displayOrder"`
	IsActive     *bool   `json:"isActive"`
}

type UpdateBannerRequest struct {
	Title        *string `json:"title"`
	Subtitle     *string `json:"subtitle"`
	ImageURL     *string `json:"imageUrl"`
	LinkURL      *string `json:"linkUrl"`
	DisplayOrder *int    `json:"displayOrder"`
	IsActive     *bool   `json:"isActive"`
}
