package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	auth "github.com/marketsim/portal-auth"
)

// DefaultHistoryPeriod is used when History is called without a period
const DefaultHistoryPeriod = "1y"

// SearchStocks looks up stocks by symbol or name
func (c *Client) SearchStocks(ctx context.Context, query string) ([]StockQuote, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, auth.DeriveError(ErrRequestRejected, "Search query is required", nil)
	}

	var resp struct {
		Results []StockQuote `json:"results"`
	}
	if err := c.get(ctx, "/stocks/search", url.Values{"q": {query}}, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// StockInfo returns the detail of symbol. Answers are cached.
func (c *Client) StockInfo(ctx context.Context, symbol string) (*StockInfo, error) {
	var resp struct {
		Stock *StockInfo `json:"stock"`
	}
	if err := c.cachedGet(ctx, "/stocks/info/"+pathEscape(normalizeSymbol(symbol)), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Stock == nil {
		return nil, auth.DeriveError(ErrRequestRejected, "Stock not found", nil)
	}
	return resp.Stock, nil
}

// History returns the price series of symbol for period. Answers are cached.
func (c *Client) History(ctx context.Context, symbol, period string) (*History, error) {
	if period == "" {
		period = DefaultHistoryPeriod
	}
	resp := new(History)
	query := url.Values{"period": {period}}
	if err := c.cachedGet(ctx, "/stocks/historical/"+pathEscape(normalizeSymbol(symbol)), query, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Realtime returns the latest price of symbol. Never cached.
func (c *Client) Realtime(ctx context.Context, symbol string) (*RealtimePrice, error) {
	resp := new(RealtimePrice)
	if err := c.get(ctx, "/stocks/realtime/"+pathEscape(normalizeSymbol(symbol)), nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Trending returns the popular stocks. Answers are cached.
func (c *Client) Trending(ctx context.Context) ([]StockQuote, error) {
	var resp struct {
		Trending []StockQuote `json:"trending"`
	}
	if err := c.cachedGet(ctx, "/stocks/trending", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Trending, nil
}

// Watchlist returns the signed in user's watchlist
func (c *Client) Watchlist(ctx context.Context) ([]WatchlistItem, error) {
	var resp struct {
		Watchlist []WatchlistItem `json:"watchlist"`
	}
	if err := c.get(ctx, "/stocks/watchlist", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Watchlist, nil
}

// AddToWatchlist adds symbol to the watchlist
func (c *Client) AddToWatchlist(ctx context.Context, symbol string) (*WatchlistItem, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, auth.DeriveError(ErrRequestRejected, "Symbol is required", nil)
	}

	var resp struct {
		Message string         `json:"message"`
		Item    *WatchlistItem `json:"item"`
	}
	body := map[string]string{"symbol": symbol}
	if err := c.do(ctx, http.MethodPost, "/stocks/watchlist", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.Item, nil
}

// RemoveFromWatchlist deletes the watchlist entry id
func (c *Client) RemoveFromWatchlist(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/stocks/watchlist/"+strconv.FormatInt(id, 10), nil, nil, nil)
}
