package controller

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront/internal/app/model"
	"github.com/ikkim/storefront/internal/app/service"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/gateway"
	"github.com/ikkim/storefront/internal/middleware"
	"github.com/ikkim/storefront/internal/reconciliation"
	"github.com/ikkim/storefront/internal/storage"
	"github.com/shopspring/decimal"
)

const productImageFolder = "products"

// ImageStore uploads product images.
type ImageStore interface {
	Upload(ctx context.Context, folder, filename, contentType string, body io.Reader, size int64) (*storage.UploadResult, error)
	GeneratePresignedURLWithFolder(ctx context.Context, filename, contentType, folder string) (*storage.PresignedURLResponse, error)
}

// OpenFailures lists payments still awaiting an order.
type OpenFailures interface {
	ListOpen(ctx context.Context) ([]model.ReconciliationFailure, error)
}

type AdminController struct {
	catalog gateway.CatalogAPI
	session service.SessionService
	images  ImageStore
	ledger  OpenFailures
}

func NewAdminController(catalog gateway.CatalogAPI, session service.SessionService, images ImageStore, ledger OpenFailures) *AdminController {
	return &AdminController{
		catalog: catalog,
		session: session,
		images:  images,
		ledger:  ledger,
	}
}

type VariantRequest struct {
	SKU           string `json:"sku" binding:"required"`
	Color         string `json:"color"`
	Size          string `json:"size"`
	StockQuantity int    `json:"stock_quantity" binding:"min=0"`
}

type ProductRequest struct {
	Title       string           `json:"title" binding:"required"`
	Slug        string           `json:"slug"`
	Description string           `json:"description"`
	BasePrice   decimal.Decimal  `json:"base_price"`
	IsPublished bool             `json:"is_published"`
	Images      []string         `json:"images"`
	Variants    []VariantRequest `json:"product_variants" binding:"dive"`
}

func (r ProductRequest) toModel() (*model.Product, error) {
	if !r.BasePrice.IsPositive() {
		return nil, apperrors.NewValidationError(apperrors.ValidationInvalidRange,
			"some fields are invalid", map[string]string{"base_price": "must be greater than zero"})
	}
	seen := make(map[string]bool, len(r.Variants))
	product := &model.Product{
		Title:       strings.TrimSpace(r.Title),
		Slug:        strings.TrimSpace(r.Slug),
		Description: r.Description,
		BasePrice:   r.BasePrice,
		IsPublished: r.IsPublished,
		Images:      r.Images,
	}
	if product.Images == nil {
		product.Images = []string{}
	}
	for _, v := range r.Variants {
		sku := strings.TrimSpace(v.SKU)
		if seen[sku] {
			return nil, apperrors.NewValidationError(apperrors.ValidationInvalidInput,
				"some fields are invalid", map[string]string{"product_variants": "SKU " + sku + " is listed twice"})
		}
		seen[sku] = true
		product.Variants = append(product.Variants, model.ProductVariant{
			SKU:           sku,
			Color:         v.Color,
			Size:          v.Size,
			StockQuantity: v.StockQuantity,
		})
	}
	return product, nil
}

func (ctrl *AdminController) bindProduct(c *gin.Context) (*model.Product, bool) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.GetLoggerFromContext(c).Warn("Invalid product request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.Respond(c, apperrors.FromValidation(err, apperrors.ValidationInvalidInput))
		return nil, false
	}
	product, err := req.toModel()
	if err != nil {
		apperrors.Respond(c, err)
		return nil, false
	}
	return product, true
}

// CreateProduct adds a product with its variants
// POST /api/v1/admin/products
func (ctrl *AdminController) CreateProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	product, ok := ctrl.bindProduct(c)
	if !ok {
		return
	}

	created, err := ctrl.catalog.Create(c.Request.Context(), product)
	if err != nil {
		apperrors.Respond(c, ctrl.session.HandleAuthFailure(c.Request.Context(), err))
		return
	}

	log.Info("Product created", map[string]interface{}{
		"product_id": created.ID,
		"slug":       created.Slug,
	})
	c.JSON(http.StatusCreated, gin.H{"product": created})
}

// UpdateProduct replaces a product and its variant set
// PUT /api/v1/admin/products/:id
func (ctrl *AdminController) UpdateProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	product, ok := ctrl.bindProduct(c)
	if !ok {
		return
	}

	id := c.Param("id")
	updated, err := ctrl.catalog.Update(c.Request.Context(), id, product)
	if err != nil {
		apperrors.Respond(c, ctrl.session.HandleAuthFailure(c.Request.Context(), err))
		return
	}

	log.Info("Product updated", map[string]interface{}{
		"product_id": id,
	})
	c.JSON(http.StatusOK, gin.H{"product": updated})
}

// DeleteProduct removes a product
// DELETE /api/v1/admin/products/:id
func (ctrl *AdminController) DeleteProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id := c.Param("id")
	if err := ctrl.catalog.Delete(c.Request.Context(), id); err != nil {
		apperrors.Respond(c, ctrl.session.HandleAuthFailure(c.Request.Context(), err))
		return
	}

	log.Info("Product deleted", map[string]interface{}{
		"product_id": id,
	})
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}

// UploadImage stores a product image and returns its public URL
// POST /api/v1/admin/uploads (multipart field "file")
func (ctrl *AdminController) UploadImage(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	header, err := c.FormFile("file")
	if err != nil {
		apperrors.RespondWithValidationError(c, map[string]string{"file": "is required"})
		return
	}

	file, err := header.Open()
	if err != nil {
		log.Error("Failed to open uploaded file", err)
		apperrors.InternalError(c, "")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	result, err := ctrl.images.Upload(c.Request.Context(), productImageFolder, header.Filename, contentType, file, header.Size)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"url":  result.URL,
		"key":  result.Key,
		"size": result.Size,
	})
}

type PresignedURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// GeneratePresignedURL lets the UI upload large images straight to the bucket
// POST /api/v1/admin/uploads/presigned-url
func (ctrl *AdminController) GeneratePresignedURL(c *gin.Context) {
	var req PresignedURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.FromValidation(err, apperrors.ValidationRequired))
		return
	}

	resp, err := ctrl.images.GeneratePresignedURLWithFolder(c.Request.Context(), req.Filename, req.ContentType, productImageFolder)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListReconciliation returns captured payments that still have no order
// GET /api/v1/admin/reconciliation
func (ctrl *AdminController) ListReconciliation(c *gin.Context) {
	failures, err := ctrl.ledger.ListOpen(c.Request.Context())
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"failures": failures,
		"count":    len(failures),
	})
}

// DownloadReconciliationReport exports the open failures as a workbook
// GET /api/v1/admin/reconciliation/report
func (ctrl *AdminController) DownloadReconciliationReport(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	failures, err := ctrl.ledger.ListOpen(c.Request.Context())
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	var buf bytes.Buffer
	if err := reconciliation.WriteReport(&buf, failures); err != nil {
		log.Error("Failed to build reconciliation report", err)
		apperrors.InternalError(c, "could not build the report")
		return
	}

	filename := fmt.Sprintf("reconciliation-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
