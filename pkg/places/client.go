// Package places is the client for the external place-search provider
// (Places API v1). Provider request and response shapes do not leave this package.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/ratelimit"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	DefaultBaseURL = "https://places.googleapis.com/v1"

	resourcePrefix = "places/"

	searchFieldMask = "places.id,places.displayName,places.formattedAddress,places.rating," +
		"places.userRatingCount,places.location,places.types,nextPageToken"
)

// RecoveryFieldMask is the reduced detail mask used when rebuilding lost records.
var RecoveryFieldMask = strings.Join([]string{
	"id", "displayName", "formattedAddress", "nationalPhoneNumber", "internationalPhoneNumber",
	"websiteUri", "googleMapsUri", "location", "addressComponents", "adrFormatAddress",
	"rating", "userRatingCount", "reviews", "types", "businessStatus", "priceLevel",
	"utcOffsetMinutes", "editorialSummary", "photos", "regularOpeningHours",
	"currentOpeningHours", "accessibilityOptions",
}, ",")

// FullFieldMask is the import detail mask.
var FullFieldMask = RecoveryFieldMask + "," + strings.Join([]string{
	"delivery", "dineIn", "curbsidePickup", "reservable", "takeout",
	"servesBreakfast", "servesBrunch", "servesLunch", "servesDinner",
	"servesBeer", "servesWine", "servesVegetarianFood",
}, ",")

// Limiter gates outbound calls, implemented by ratelimit.Manager.
type Limiter interface {
	Wait(ctx context.Context) error
	Backoff(ctx context.Context, d time.Duration)
}

// Doer executes HTTP requests, implemented by httpclient.Client.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*httpclient.Response, error)
}

type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxAttempts    int
	// RetryDelay is the base delay between attempts, doubled each retry.
	RetryDelay   time.Duration
	PageSize     int
	LanguageCode string
	RegionCode   string
}

func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		RequestTimeout: 15 * time.Second,
		MaxAttempts:    3,
		RetryDelay:     500 * time.Millisecond,
		PageSize:       20,
		LanguageCode:   "en",
		RegionCode:     "AE",
	}
}

type Client struct {
	http        Doer
	limiter     Limiter
	credentials CredentialSource
	cfg         Config
	logger      ectologger.Logger
}

// NewClient builds a provider client. limiter may be nil.
func NewClient(cfg Config, credentials CredentialSource, doer Doer, limiter Limiter, logger ectologger.Logger) *Client {
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = defaults.LanguageCode
	}
	if cfg.RegionCode == "" {
		cfg.RegionCode = defaults.RegionCode
	}

	return &Client{
		http:        doer,
		limiter:     limiter,
		credentials: credentials,
		cfg:         cfg,
		logger:      logger,
	}
}

// SearchText runs one page of a text search. pageToken is passed through verbatim.
func (c *Client) SearchText(ctx context.Context, query, pageToken string) (*SearchPage, error) {
	ctx, span := tracing.StartSpanWithAttributes(ctx, "PlacesClient.SearchText",
		attribute.String("places.query", query),
		attribute.Bool("places.has_page_token", pageToken != ""),
	)
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	body := wireSearchRequest{
		TextQuery:    query,
		PageSize:     c.cfg.PageSize,
		LanguageCode: c.cfg.LanguageCode,
		RegionCode:   c.cfg.RegionCode,
		PageToken:    pageToken,
	}

	var resp *httpclient.Response
	resp, err = c.call(ctx, func(ctx context.Context) (*http.Request, error) {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/places:searchText", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Goog-FieldMask", searchFieldMask)
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var decoded wireSearchResponse
	if err = resp.DecodeJSON(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	page := &SearchPage{NextPageToken: decoded.NextPageToken}
	for _, p := range decoded.Places {
		page.Results = append(page.Results, p.summary())
	}
	return page, nil
}

// GetDetails fetches one place with the given field mask.
func (c *Client) GetDetails(ctx context.Context, externalID, fieldMask string) (*Place, error) {
	ctx, span := tracing.StartSpanWithAttributes(ctx, "PlacesClient.GetDetails",
		attribute.String("places.external_id", externalID),
	)
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	var resp *httpclient.Response
	resp, err = c.call(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/"+resourceName(externalID), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Goog-FieldMask", fieldMask)
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var wire wirePlace
	if err = resp.DecodeJSON(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode place %s: %w", externalID, err)
	}
	var raw map[string]any
	if err = json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode place %s: %w", externalID, err)
	}

	place := wire.place(raw)
	if place.ExternalID == "" {
		place.ExternalID = ExtractID(externalID)
	}
	return place, nil
}

// FetchPhotoBytes downloads photo media at the given width. The provider
// redirects to the image; redirects are followed.
func (c *Client) FetchPhotoBytes(ctx context.Context, photoRef string, maxWidthPx int) ([]byte, string, error) {
	ctx, span := tracing.StartSpanWithAttributes(ctx, "PlacesClient.FetchPhotoBytes",
		attribute.Int("places.max_width_px", maxWidthPx),
	)
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	var resp *httpclient.Response
	resp, err = c.call(ctx, func(ctx context.Context) (*http.Request, error) {
		q := url.Values{}
		q.Set("maxWidthPx", strconv.Itoa(maxWidthPx))
		q.Set("key", c.key())
		return http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/"+strings.TrimPrefix(photoRef, "/")+"/media?"+q.Encode(), nil)
	})
	if err != nil {
		return nil, "", err
	}
	return resp.Body, resp.ContentType, nil
}

func (c *Client) key() string {
	if c.credentials == nil {
		return ""
	}
	return c.credentials.Current().Key
}

// call sends the request built by build with the credential, rate limit,
// timeout and retry policy applied. Non-2xx responses become typed errors.
func (c *Client) call(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*httpclient.Response, error) {
	if c.key() == "" {
		return nil, missingCredential()
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.retryDelay(attempt)); err != nil {
				return nil, err
			}
		}

		resp, retryable, err := c.attempt(ctx, build)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}

		c.logger.WithContext(ctx).WithError(err).Warnf("places request failed (attempt %d/%d)", attempt, c.cfg.MaxAttempts)
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*httpclient.Response, bool, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, false, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := build(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Goog-Api-Key", c.key())

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, ctx.Err() == nil || ctx.Err() == context.DeadlineExceeded, err
	}
	if resp.OK() {
		return resp, false, nil
	}

	provErr := decodeError(resp)
	if provErr.StatusCode == http.StatusForbidden || provErr.Status == statusPermissionDenied {
		return nil, false, permissionDenied(provErr.Message)
	}

	if resp.RateLimited() && c.limiter != nil {
		if retryAfter := resp.Headers.Get("Retry-After"); retryAfter != "" {
			if d, err := ratelimit.ParseRetryAfter(retryAfter); err == nil {
				c.limiter.Backoff(ctx, d)
			}
		}
	}
	return nil, resp.Retryable(), provErr
}

func (c *Client) retryDelay(attempt int) time.Duration {
	if c.cfg.RetryDelay <= 0 {
		return 0
	}
	return c.cfg.RetryDelay << (attempt - 2)
}

func decodeError(resp *httpclient.Response) *ProviderError {
	provErr := &ProviderError{StatusCode: resp.StatusCode}
	var body wireError
	if err := json.Unmarshal(resp.Body, &body); err == nil && body.Error != nil {
		provErr.Status = body.Error.Status
		provErr.Message = body.Error.Message
		if body.Error.Code != 0 {
			provErr.StatusCode = body.Error.Code
		}
	}
	if provErr.Message == "" {
		provErr.Message = http.StatusText(resp.StatusCode)
	}
	return provErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
