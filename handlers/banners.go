package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"storefront-svc/models"
	"storefront-svc/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BannerHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewBannerHandler(db *sql.DB, logger *zap.Logger) *BannerHandler {
	return &BannerHandler{db: db, logger: logger}
}

const bannerColumns = "id, title, subtitle, image_url, link_url, display_order, is_active, created_at"

func scanBanner(row interface{ Scan(...any) error }) (*models.Banner, error) {
	var b models.Banner
	err := row.Scan(&b.ID, &b.Title, &b.Subtitle, &b.ImageURL, &b.LinkURL, &b.DisplayOrder, &b.IsActive, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBanners returns active banners in display order.
func (h *BannerHandler) ListBanners(c *gin.Context) {
	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT "+bannerColumns+" FROM banners WHERE is_active = TRUE ORDER BY display_order ASC")
	if err != nil {
		h.logger.Error("Failed to list banners", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer rows.Close()

	banners := []models.Banner{}
	for rows.Next() {
		b, err := scanBanner(rows)
		if err != nil {
			h.logger.Error("Failed to scan banner", zap.Error(err))
			response.Error(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		banners = append(banners, *b)
	}

	response.Success(c, http.StatusOK, banners, "")
}

// AdminListBanners returns every banner, active or not.
func (h *BannerHandler) AdminListBanners(c *gin.Context) {
	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT "+bannerColumns+" FROM banners ORDER BY display_order ASC")
	if err != nil {
		h.logger.Error("Failed to list banners", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer rows.Close()

	banners := []models.Banner{}
	for rows.Next() {
		b, err := scanBanner(rows)
		if err != nil {
			h.logger.Error("Failed to scan banner", zap.Error(err))
			response.Error(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		banners = append(banners, *b)
	}

	response.Success(c, http.StatusOK, banners, "")
}

func (h *BannerHandler) CreateBanner(c *gin.Context) {
	var req models.CreateBannerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	banner := models.Banner{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Subtitle:     req.Subtitle,
		ImageURL:     req.ImageURL,
		LinkURL:      req.LinkURL,
		DisplayOrder: req.DisplayOrder,
		IsActive:     isActive,
	}
	err := h.db.QueryRowContext(c.Request.Context(),
		`INSERT INTO banners (id, title, subtitle, image_url, link_url, display_order, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		banner.ID, banner.Title, banner.Subtitle, banner.ImageURL, banner.LinkURL,
		banner.DisplayOrder, banner.IsActive,
	).Scan(&banner.CreatedAt)
	if err != nil {
		h.logger.Error("Failed to create banner", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	response.Success(c, http.StatusCreated, banner, "Banner created successfully")
}

func (h *BannerHandler) UpdateBanner(c *gin.Context) {
	var req models.UpdateBannerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	banner, err := scanBanner(h.db.QueryRowContext(c.Request.Context(),
		`UPDATE banners SET
			title = COALESCE($1, title),
			subtitle = COALESCE($2, subtitle),
			image_url = COALESCE($3, image_url),
			link_url = COALESCE($4, link_url),
			display_order = COALESCE($5, display_order),
			is_active = COALESCE($6, is_active)
		 WHERE id = $7 RETURNING `+bannerColumns,
		req.Title, req.Subtitle, req.ImageURL, req.LinkURL, req.DisplayOrder, req.IsActive,
		c.Param("id")))
	if errors.Is(err, sql.ErrNoRows) {
		response.NotFound(c, "Banner not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to update banner", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	response.Success(c, http.StatusOK, banner, "Banner updated successfully")
}

func (h *BannerHandler) DeleteBanner(c *gin.Context) {
	res, err := h.db.ExecContext(c.Request.Context(), "DELETE FROM banners WHERE id = $1", c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to delete banner", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.NotFound(c, "Banner not found")
		return
	}

	response.Success(c, http.StatusOK, nil, "Banner deleted successfully")
}
