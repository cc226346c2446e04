package api

import "strings"

// StockQuote is a stock summary as returned by search and trending
type StockQuote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name,omitempty"`
	CurrentPrice  float64 `json:"current_price,omitempty"`
	ChangePercent float64 `json:"change_percent,omitempty"`
	Volume        int64   `json:"volume,omitempty"`
}

// StockInfo is the detail view of a stock
type StockInfo struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Sector        string  `json:"sector"`
	Industry      string  `json:"industry"`
	CurrentPrice  float64 `json:"current_price"`
	PreviousClose float64 `json:"previous_close"`
	Open          float64 `json:"open"`
	DayHigh       float64 `json:"day_high"`
	DayLow        float64 `json:"day_low"`
	Volume        int64   `json:"volume"`
	MarketCap     float64 `json:"market_cap"`
	PERatio       float64 `json:"pe_ratio"`
	WeekHigh52    float64 `json:"52_week_high"`
	WeekLow52     float64 `json:"52_week_low"`
	DividendYield float64 `json:"dividend_yield"`
	Beta          float64 `json:"beta"`
	Description   string  `json:"description"`
}

// Candle is one bar of historical data
type Candle struct {
	Date      string  `json:"date"`
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// History is a historical price series
type History struct {
	Symbol   string   `json:"symbol"`
	Period   string   `json:"period"`
	Interval string   `json:"interval"`
	Data     []Candle `json:"data"`
}

// RealtimePrice is the latest intraday price
type RealtimePrice struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Timestamp     int64   `json:"timestamp"`
	Volume        int64   `json:"volume"`
}

// WatchlistItem is an entry of the user's watchlist. Quote fields are filled
// when the backend enriches the entry, the outer Symbol wins over the quote's.
type WatchlistItem struct {
	ID      int64  `json:"id"`
	UserID  int64  `json:"user_id,omitempty"`
	Symbol  string `json:"symbol"`
	AddedAt string `json:"added_at,omitempty"`
	StockQuote
}

// PricePoint is one forecast day
type PricePoint struct {
	Date           string  `json:"date"`
	PredictedPrice float64 `json:"predicted_price"`
	Confidence     float64 `json:"confidence"`
	Direction      string  `json:"direction"`
}

// Forecast is the answer of the predict endpoint
type Forecast struct {
	Symbol       string       `json:"symbol"`
	CurrentPrice float64      `json:"current_price"`
	Predictions  []PricePoint `json:"predictions"`
	Model        string       `json:"model"`
	Note         string       `json:"note,omitempty"`
}

// PredictionRecord is a stored prediction
type PredictionRecord struct {
	ID              int64    `json:"id"`
	UserID          int64    `json:"user_id"`
	Symbol          string   `json:"symbol"`
	PredictionDate  string   `json:"prediction_date"`
	PredictedPrice  float64  `json:"predicted_price"`
	ActualPrice     *float64 `json:"actual_price"`
	ModelUsed       string   `json:"model_used"`
	ConfidenceScore float64  `json:"confidence_score"`
	Direction       string   `json:"direction"`
	CreatedAt       string   `json:"created_at"`
}

// Balance is the paper trading account summary
type Balance struct {
	CashBalance         float64 `json:"cash_balance"`
	TotalPortfolioValue float64 `json:"total_portfolio_value"`
	TotalInvested       float64 `json:"total_invested"`
	TotalProfitLoss     float64 `json:"total_profit_loss"`
	TotalValue          float64 `json:"total_value"`
}

// Position is a holding in the portfolio
type Position struct {
	ID            int64   `json:"id"`
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	AvgBuyPrice   float64 `json:"avg_buy_price"`
	TotalInvested float64 `json:"total_invested"`
	CurrentValue  float64 `json:"current_value"`
	ProfitLoss    float64 `json:"profit_loss"`
	CurrentPrice  float64 `json:"current_price,omitempty"`
}

// Transaction is a buy or sell
type Transaction struct {
	ID              int64   `json:"id"`
	UserID          int64   `json:"user_id"`
	Symbol          string  `json:"symbol"`
	TransactionType string  `json:"transaction_type"`
	Quantity        float64 `json:"quantity"`
	Price           float64 `json:"price"`
	TotalAmount     float64 `json:"total_amount"`
	Timestamp       string  `json:"timestamp"`
}

// TradeResult is the answer of buy and sell
type TradeResult struct {
	Message     string       `json:"message"`
	Transaction *Transaction `json:"transaction"`
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
