package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"storefront-svc/cache"
	"storefront-svc/models"
	"storefront-svc/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ProductHandler struct {
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

func NewProductHandler(db *sql.DB, redisClient *redis.Client, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{db: db, redisClient: redisClient, logger: logger}
}

const productColumns = "id, name, description, price, stock, category, created_at, updated_at"

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProducts lists the catalog, optionally filtered by category or name
// search. Items decremented to zero stock drop out of inStock=true listings.
func (h *ProductHandler) GetProducts(c *gin.Context) {
	ctx, span := otel.Tracer("storefront").Start(c.Request.Context(), "GetProducts")
	defer span.End()

	query := "SELECT " + productColumns + " FROM products"
	var (
		conds []string
		args  []any
	)
	if category := c.Query("category"); category != "" {
		args = append(args, category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if search := c.Query("search"); search != "" {
		args = append(args, "%"+search+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if c.Query("inStock") == "true" {
		conds = append(conds, "stock > 0")
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch products", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan product", zap.Error(err))
			continue
		}
		products = append(products, *p)
	}

	span.SetAttributes(attribute.Int("products.count", len(products)))
	response.Success(c, http.StatusOK, products, "")
}

// GetProduct returns one product with its variants, served from the redis
// cache when possible.
func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx, span := otel.Tracer("storefront").Start(c.Request.Context(), "GetProduct")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("product.id", id))

	if h.redisClient != nil {
		var product models.Product
		if err := cache.GetProduct(ctx, h.redisClient, id, &product); err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			response.Success(c, http.StatusOK, product, "")
			return
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	product, err := scanProduct(h.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		response.NotFound(c, "Product not found")
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch product", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := h.loadVariants(c, product); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to load variants", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if h.redisClient != nil {
		cache.SetProduct(ctx, h.redisClient, id, product)
	}

	response.Success(c, http.StatusOK, product, "")
}

func (h *ProductHandler) loadVariants(c *gin.Context, product *models.Product) error {
	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT id, product_id, size, color, price, stock, created_at, updated_at FROM product_variants WHERE product_id = $1",
		product.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var v models.ProductVariant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Size, &v.Color, &v.Price, &v.Stock, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return err
		}
		product.Variants = append(product.Variants, v)
	}
	return rows.Err()
}

// CreateProduct inserts a product and its variants.
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("storefront").Start(c.Request.Context(), "CreateProduct")
	defer span.End()

	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer tx.Rollback()

	product := models.Product{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO products (id, name, description, price, stock, category)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`,
		product.ID, product.Name, product.Description, product.Price, product.Stock, product.Category,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create product", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	for _, vr := range req.Variants {
		v := models.ProductVariant{
			ID:        uuid.NewString(),
			ProductID: product.ID,
			Size:      vr.Size,
			Color:     vr.Color,
			Price:     vr.Price,
			Stock:     vr.Stock,
		}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO product_variants (id, product_id, size, color, price, stock)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`,
			v.ID, v.ProductID, v.Size, v.Color, v.Price, v.Stock,
		).Scan(&v.CreatedAt, &v.UpdatedAt)
		if err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to create variant", zap.Error(err))
			response.Error(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		product.Variants = append(product.Variants, v)
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to commit product", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID))
	response.Success(c, http.StatusCreated, product, "Product created successfully")
}

// UpdateProduct patches the provided fields and invalidates the cache entry.
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("storefront").Start(c.Request.Context(), "UpdateProduct")
	defer span.End()

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	id := c.Param("id")
	product, err := scanProduct(h.db.QueryRowContext(ctx,
		`UPDATE products SET
			name = COALESCE($1, name),
			description = COALESCE($2, description),
			price = COALESCE($3, price),
			stock = COALESCE($4, stock),
			category = COALESCE($5, category),
			updated_at = now()
		 WHERE id = $6 RETURNING `+productColumns,
		req.Name, req.Description, req.Price, req.Stock, req.Category, id))
	if errors.Is(err, sql.ErrNoRows) {
		response.NotFound(c, "Product not found")
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update product", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if h.redisClient != nil {
		cache.DeleteProduct(ctx, h.redisClient, id)
	}

	response.Success(c, http.StatusOK, product, "Product updated successfully")
}

// DeleteProduct removes a product (variants cascade) and its cache entry.
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	ctx, span := otel.Tracer("storefront").Start(c.Request.Context(), "DeleteProduct")
	defer span.End()

	id := c.Param("id")
	res, err := h.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to delete product", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.NotFound(c, "Product not found")
		return
	}

	if h.redisClient != nil {
		cache.DeleteProduct(ctx, h.redisClient, id)
	}

	response.Success(c, http.StatusOK, nil, "Product deleted successfully")
}
