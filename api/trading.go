package api

import (
	"context"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	auth "github.com/marketsim/portal-auth"
)

// DefaultTransactionsLimit matches the backend page size
const DefaultTransactionsLimit = 50

// TradeRequest is a buy or sell order
type TradeRequest struct {
	Symbol   string  `form:"symbol" json:"symbol"`
	Quantity float64 `form:"quantity" json:"quantity"`
}

// Validate will run validation rules
func (r TradeRequest) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.Symbol, validation.Required, validation.Length(1, 10)),
		validation.Field(&r.Quantity, validation.Required, validation.Min(0.000001)),
	); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "Invalid order").
			WithTextCode(auth.TextCodeInvalidPayload).
			WithCode(errors.CodeBadRequest)
	}
	return nil
}

// Balance returns the paper trading balance
func (c *Client) Balance(ctx context.Context) (*Balance, error) {
	var resp struct {
		Balance *Balance `json:"balance"`
	}
	if err := c.get(ctx, "/trading/balance", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Balance == nil {
		return &Balance{}, nil
	}
	return resp.Balance, nil
}

// Buy places a buy order
func (c *Client) Buy(ctx context.Context, order TradeRequest) (*TradeResult, error) {
	return c.trade(ctx, "/trading/buy", order)
}

// Sell places a sell order
func (c *Client) Sell(ctx context.Context, order TradeRequest) (*TradeResult, error) {
	return c.trade(ctx, "/trading/sell", order)
}

func (c *Client) trade(ctx context.Context, path string, order TradeRequest) (*TradeResult, error) {
	order.Symbol = normalizeSymbol(order.Symbol)
	if err := order.Validate(); err != nil {
		return nil, err
	}

	resp := new(TradeResult)
	if err := c.do(ctx, http.MethodPost, path, nil, order, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Portfolio returns the open positions
func (c *Client) Portfolio(ctx context.Context) ([]Position, error) {
	var resp struct {
		Portfolio []Position `json:"portfolio"`
	}
	if err := c.get(ctx, "/trading/portfolio", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Portfolio, nil
}

// Transactions returns the latest trades, limit <= 0 uses the default
func (c *Client) Transactions(ctx context.Context, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = DefaultTransactionsLimit
	}
	var resp struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := c.get(ctx, "/trading/transactions", intQuery("limit", limit), &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}
