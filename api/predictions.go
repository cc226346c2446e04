package api

import "context"

// DefaultPredictionHistoryLimit matches the backend page size
const DefaultPredictionHistoryLimit = 20

// Predict runs a forecast for symbol
func (c *Client) Predict(ctx context.Context, symbol string) (*Forecast, error) {
	resp := new(Forecast)
	if err := c.get(ctx, "/predictions/predict/"+pathEscape(normalizeSymbol(symbol)), nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// PredictionHistory returns stored predictions, limit <= 0 uses the default
func (c *Client) PredictionHistory(ctx context.Context, limit int) ([]PredictionRecord, error) {
	if limit <= 0 {
		limit = DefaultPredictionHistoryLimit
	}
	var resp struct {
		History []PredictionRecord `json:"history"`
	}
	if err := c.get(ctx, "/predictions/history", intQuery("limit", limit), &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// PredictionAccuracy returns the accuracy report for symbol as sent by the backend
func (c *Client) PredictionAccuracy(ctx context.Context, symbol string) (map[string]any, error) {
	resp := map[string]any{}
	if err := c.get(ctx, "/predictions/accuracy/"+pathEscape(normalizeSymbol(symbol)), nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// AdminStats is the platform overview of the admin dashboard
type AdminStats struct {
	Users struct {
		Total  int `json:"total"`
		Active int `json:"active"`
		Admins int `json:"admins"`
	} `json:"users"`
	Activity struct {
		Predictions    int `json:"predictions"`
		Trades         int `json:"trades"`
		WatchlistItems int `json:"watchlist_items"`
		Portfolios     int `json:"portfolios"`
	} `json:"activity"`
	Performance struct {
		TotalPnL float64 `json:"total_pnl"`
	} `json:"performance"`
	TopSymbols []struct {
		Symbol      string  `json:"symbol"`
		TradeCount  int     `json:"trade_count"`
		TotalVolume float64 `json:"total_volume"`
	} `json:"top_symbols"`
}

// AdminStats returns the admin overview, the backend answers 403 for non admins
func (c *Client) AdminStats(ctx context.Context) (*AdminStats, error) {
	resp := new(AdminStats)
	if err := c.get(ctx, "/admin/stats", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
