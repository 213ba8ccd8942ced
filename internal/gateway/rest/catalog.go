package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ikkim/storefront/internal/app/model"
	apperrors "github.com/ikkim/storefront/internal/errors"
)

type catalogAPI struct {
	c *Client
}

func (a *catalogAPI) List(ctx context.Context, offset, limit int) (*model.ProductPage, error) {
	if offset < 0 {
		return nil, apperrors.NewValidationError(apperrors.ValidationInvalidRange, "offset must not be negative", nil)
	}
	query := url.Values{}
	query.Set("skip", strconv.Itoa(offset))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	body, err := a.c.do(ctx, http.MethodGet, "/products/", query, nil, nil)
	if err != nil {
		return nil, err
	}

	page := &model.ProductPage{Items: []model.Product{}}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		// bare array: the total is only known up to this page
		var items []wireProduct
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, unexpected(err)
		}
		for _, w := range items {
			page.Items = append(page.Items, w.model())
		}
		page.Total = int64(offset + len(items))
		return page, nil
	}

	var wp productPage
	if err := json.Unmarshal(trimmed, &wp); err != nil {
		return nil, unexpected(err)
	}
	for _, w := range wp.Items {
		page.Items = append(page.Items, w.model())
	}
	page.Total = wp.Total
	return page, nil
}

func (a *catalogAPI) GetBySlug(ctx context.Context, slug string) (*model.Product, error) {
	var w wireProduct
	if _, err := a.c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(slug), nil, nil, &w); err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return nil, apperrors.NewNotFoundError(apperrors.ProductNotFound, "product not found")
		}
		return nil, err
	}
	p := w.model()
	return &p, nil
}

func (a *catalogAPI) Create(ctx context.Context, product *model.Product) (*model.Product, error) {
	var w wireProduct
	if _, err := a.c.do(ctx, http.MethodPost, "/products/", nil, toWireProduct(product), &w); err != nil {
		return nil, err
	}
	p := w.model()
	return &p, nil
}

func (a *catalogAPI) Update(ctx context.Context, id string, product *model.Product) (*model.Product, error) {
	var w wireProduct
	if _, err := a.c.do(ctx, http.MethodPut, "/products/"+url.PathEscape(id), nil, toWireProduct(product), &w); err != nil {
		return nil, err
	}
	p := w.model()
	if p.ID == "" {
		p.ID = id
	}
	return &p, nil
}

func (a *catalogAPI) Delete(ctx context.Context, id string) error {
	_, err := a.c.do(ctx, http.MethodDelete, "/products/"+url.PathEscape(id), nil, nil, nil)
	return err
}

func unexpected(err error) error {
	return apperrors.Wrap(apperrors.KindInternal, apperrors.InternalExternalAPI, "the server sent an unexpected response", err)
}
