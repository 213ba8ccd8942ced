// Package geocode resolves map positions to shipping addresses through a
// Nominatim server.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ikkim/storefront/internal/app/model"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/pkg/logger"
)

type Options struct {
	BaseURL   string
	UserAgent string // required by the public Nominatim usage policy
	Timeout   time.Duration
	// DefaultCountry is used when the result carries no country.
	DefaultCountry string
}

type Nominatim struct {
	opts       Options
	httpClient *http.Client
}

func NewNominatim(opts Options) *Nominatim {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://nominatim.openstreetmap.org"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Nominatim{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     struct {
		HouseNumber string `json:"house_number"`
		Road        string `json:"road"`
		Suburb      string `json:"suburb"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		State       string `json:"state"`
		Postcode    string `json:"postcode"`
		Country     string `json:"country"`
	} `json:"address"`
}

// ReverseGeocode looks up the address at a position.
func (n *Nominatim) ReverseGeocode(ctx context.Context, lat, lng float64) (*model.ShippingAddress, error) {
	query := url.Values{}
	query.Set("format", "json")
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	endpoint := n.opts.BaseURL + "/reverse?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("", err)
	}
	req.Header.Set("User-Agent", n.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("Reverse geocoding request failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, apperrors.NewTransientError("could not look up this location, enter the address manually", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("Reverse geocoding returned an error status", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return nil, apperrors.NewTransientError("could not look up this location, enter the address manually",
			fmt.Errorf("nominatim status %d", resp.StatusCode))
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, apperrors.InternalExternalAPI,
			"could not read the address for this location", err)
	}
	if body.Error != "" || (body.Address.Road == "" && body.Address.Suburb == "" && body.DisplayName == "") {
		return nil, apperrors.NewNotFoundError(apperrors.ResourceNotFound, "no address was found at this location")
	}

	return n.toAddress(body, lat, lng), nil
}

func (n *Nominatim) toAddress(body reverseResponse, lat, lng float64) *model.ShippingAddress {
	a := body.Address

	street := a.Road
	if street == "" {
		street = a.Suburb
	}
	line1 := strings.TrimSpace(a.HouseNumber + " " + street)
	if line1 == "" {
		line1 = strings.TrimSpace(strings.SplitN(body.DisplayName, ",", 2)[0])
	}

	city := a.City
	if city == "" {
		city = a.Town
	}
	if city == "" {
		city = a.Village
	}

	country := a.Country
	if country == "" {
		country = n.opts.DefaultCountry
	}

	return &model.ShippingAddress{
		AddressLine1: line1,
		City:         city,
		State:        a.State,
		ZipCode:      a.Postcode,
		Country:      country,
		Latitude:     &lat,
		Longitude:    &lng,
	}
}
