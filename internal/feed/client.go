// Package feed reads analyst rating events from the paginated rating API.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/stockgame/internal/contracts"
	"github.com/wonny/stockgame/pkg/config"
	"github.com/wonny/stockgame/pkg/httputil"
	"github.com/wonny/stockgame/pkg/logger"
)

// Client fetches rating pages
// ⭐ SSOT: 피드 API 호출은 이 클라이언트에서만
type Client struct {
	http     *httputil.Client
	baseURL  string
	token    string
	validate *validator.Validate
	logger   *logger.Logger
}

// NewClient creates a feed client. Retries are disabled on httpClient;
// the orchestrator owns retry policy.
func NewClient(cfg config.FeedConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		http:     httpClient.DisableRetry(),
		baseURL:  cfg.URL,
		token:    cfg.Token,
		validate: validator.New(),
		logger:   log.Module("feed"),
	}
}

// Fetch returns the page at cursor ("" for the first page)
func (c *Client) Fetch(ctx context.Context, cursor string) (*contracts.Page, error) {
	if c.token == "" {
		return nil, contracts.NewConfigError(errors.New("API_TOKEN environment variable is not set"))
	}

	endpoint, err := c.pageURL(cursor)
	if err != nil {
		return nil, contracts.NewConfigError(err)
	}

	resp, err := c.http.Get(ctx, endpoint, httputil.Header{
		"Authorization": "Bearer " + c.token,
		"Accept":        "application/json",
	})
	if err != nil {
		return nil, contracts.NewFetchError(err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp); err != nil {
		return nil, contracts.NewFetchError(err)
	}

	var page contracts.Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, contracts.NewFetchError(fmt.Errorf("decode page: %w", err))
	}

	page.Items = c.keepValid(page.Items, &page.Dropped)

	c.logger.WithFields(map[string]interface{}{
		"cursor":  cursor,
		"items":   len(page.Items),
		"dropped": page.Dropped,
		"next":    page.Cursor(),
	}).Debug("Fetched rating page")

	return &page, nil
}

func (c *Client) pageURL(cursor string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse API_URL: %w", err)
	}
	if cursor != "" {
		q := u.Query()
		q.Set("next_page", cursor)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// keepValid drops items missing ticker or company
func (c *Client) keepValid(items []contracts.RatingEvent, dropped *int) []contracts.RatingEvent {
	valid := items[:0]
	for _, item := range items {
		if err := c.validate.Struct(item); err != nil {
			*dropped++
			c.logger.WithTicker(item.Ticker).WithField("company", item.Company).
				WithError(err).Warn("Dropping invalid rating event")
			continue
		}
		valid = append(valid, item)
	}
	return valid
}
