package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront/internal/app/service"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/gateway"
	"github.com/ikkim/storefront/internal/middleware"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ProductController struct {
	catalog gateway.CatalogAPI
	session service.SessionService
}

func NewProductController(catalog gateway.CatalogAPI, session service.SessionService) *ProductController {
	return &ProductController{
		catalog: catalog,
		session: session,
	}
}

// ListProducts returns one page of the catalog
// GET /api/v1/products?offset=&limit=
func (ctrl *ProductController) ListProducts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidRange, "offset must be a non-negative number")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit <= 0 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidRange, "limit must be a positive number")
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	page, err := ctrl.catalog.List(c.Request.Context(), offset, limit)
	if err != nil {
		log.Warn("Failed to list products", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.Respond(c, ctrl.session.HandleAuthFailure(c.Request.Context(), err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": page.Items,
		"total":    page.Total,
		"offset":   offset,
		"limit":    limit,
	})
}

// GetProduct returns one product with its variants
// GET /api/v1/products/:slug
func (ctrl *ProductController) GetProduct(c *gin.Context) {
	slug := c.Param("slug")
	product, err := ctrl.catalog.GetBySlug(c.Request.Context(), slug)
	if err != nil {
		apperrors.Respond(c, ctrl.session.HandleAuthFailure(c.Request.Context(), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}
