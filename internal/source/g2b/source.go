// Package g2b wraps the public procurement bid-listing API.
package g2b

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"g2b_monitor/internal/domain"
)

const (
	SourceID = "g2b"

	endpointGoods   = "getBidPblancListInfoThng"
	endpointService = "getBidPblancListInfoServc"

	apiTimeLayout = "200601021504"
)

// Page is one page of raw notices plus the reported total for the window.
type Page struct {
	Items      []RawBid
	TotalCount int
}

// Config holds upstream API client configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	WindowDays int
	Timeout    time.Duration
}

// Client calls the bid-listing API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	windowDays int
	logger     *slog.Logger
}

// New creates an API client.
func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		windowDays: cfg.WindowDays,
		logger:     logger.With("source", SourceID),
	}
}

// FetchPage fetches one page of notices for a category and window, already
// normalized into the persisted schema. Transport, status and parse failures
// are returned as errors so the caller can tell "fetch failed" from
// "confirmed no data".
func (c *Client) FetchPage(ctx context.Context, category domain.Category, win domain.Window, page, rows int) ([]domain.Bid, int, error) {
	raw, err := c.fetchRaw(ctx, category, win, page, rows)
	if err != nil {
		return nil, 0, err
	}

	bids := make([]domain.Bid, 0, len(raw.Items))
	for _, item := range raw.Items {
		bids = append(bids, item.Normalize())
	}
	return bids, raw.TotalCount, nil
}

func (c *Client) fetchRaw(ctx context.Context, category domain.Category, win domain.Window, page, rows int) (*Page, error) {
	if win.IsZero() {
		win = c.defaultWindow(time.Now())
	}

	endpoint := endpointGoods
	if category == domain.CategoryService {
		endpoint = endpointService
	}

	params := url.Values{}
	params.Set("serviceKey", c.apiKey)
	params.Set("numOfRows", strconv.Itoa(rows))
	params.Set("pageNo", strconv.Itoa(page))
	params.Set("inqryDiv", "1")
	params.Set("inqryBgnDt", win.Begin.Format(apiTimeLayout))
	params.Set("inqryEndDt", win.End.Format(apiTimeLayout))
	params.Set("type", "json")

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	apiResp, err := decodeResponse(body)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if code := apiResp.Response.Header.ResultCode; code != "" && code != "00" {
		return nil, fmt.Errorf("api error %s: %s", code, apiResp.Response.Header.ResultMsg)
	}

	items := []RawBid(apiResp.Response.Body.Items)
	total := int(apiResp.Response.Body.TotalCount)
	if total == 0 {
		total = len(items)
	}

	c.logger.Debug("fetched page",
		"category", category,
		"page", page,
		"items", len(items),
		"total", total,
	)

	return &Page{Items: items, TotalCount: total}, nil
}

// decodeResponse handles bodies that arrive as a JSON document or as a
// JSON-encoded string wrapping the document.
func decodeResponse(body []byte) (*apiResponse, error) {
	data := body
	if len(data) > 0 && data[0] == '"' {
		var unwrapped string
		if err := json.Unmarshal(data, &unwrapped); err == nil {
			data = []byte(unwrapped)
		}
	}

	var apiResp apiResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return nil, err
	}
	return &apiResp, nil
}

func (c *Client) defaultWindow(now time.Time) domain.Window {
	startDay := now.AddDate(0, 0, -c.windowDays)
	endDay := now.AddDate(0, 0, 1)
	return domain.Window{
		Begin: time.Date(startDay.Year(), startDay.Month(), startDay.Day(), 0, 0, 0, 0, now.Location()),
		End:   time.Date(endDay.Year(), endDay.Month(), endDay.Day(), 0, 0, 0, 0, now.Location()),
	}
}
