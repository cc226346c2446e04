package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-router"
	auth "github.com/marketsim/portal-auth"
	"github.com/marketsim/portal-auth/api"
)

const (
	tradingPath = "/trading"
	stocksPath  = "/stocks"
)

// TradeForm is the buy and sell form payload
type TradeForm struct {
	Symbol   string  `form:"symbol" json:"symbol"`
	Quantity float64 `form:"quantity" json:"quantity"`
}

// SymbolForm is the payload of forms that only carry a symbol
type SymbolForm struct {
	Symbol string `form:"symbol" json:"symbol"`
}

type tradeFunc func(ctx context.Context, order api.TradeRequest) (*api.TradeResult, error)

// PageActions returns the form posts of the user portal pages
func PageActions(client *api.Client) []auth.Action {
	user := auth.RoleRestricted(auth.RoleUser)

	return []auth.Action{
		{
			Name:        "trading-buy",
			Path:        "/trading/buy",
			Requirement: user,
			Fallback:    tradingPath,
			Handler:     tradeAction(client.Buy, "Bought"),
		},
		{
			Name:        "trading-sell",
			Path:        "/trading/sell",
			Requirement: user,
			Fallback:    tradingPath,
			Handler:     tradeAction(client.Sell, "Sold"),
		},
		{
			Name:        "stock-predict",
			Path:        "/stocks/:symbol/predict",
			Requirement: user,
			Fallback:    stocksPath,
			Handler:     predictAction(client),
		},
		{
			Name:        "watchlist-add",
			Path:        "/stocks/watchlist",
			Requirement: user,
			Fallback:    stocksPath,
			Handler:     watchlistAddAction(client),
		},
		{
			Name:        "watchlist-remove",
			Path:        "/stocks/watchlist/:id/delete",
			Requirement: user,
			Fallback:    stocksPath,
			Handler:     watchlistRemoveAction(client),
		},
	}
}

func tradeAction(trade tradeFunc, verb string) auth.PageAction {
	return func(ctx router.Context, _ auth.Snapshot) (auth.ActionResult, error) {
		form := new(TradeForm)
		if err := ctx.Bind(form); err != nil {
			return auth.ActionResult{}, err
		}

		order := api.TradeRequest{
			Symbol:   strings.ToUpper(strings.TrimSpace(form.Symbol)),
			Quantity: form.Quantity,
		}

		result, err := trade(ctx.Context(), order)
		if err != nil {
			return auth.ActionResult{}, err
		}

		msg := result.Message
		if msg == "" {
			msg = fmt.Sprintf("%s %s %s", verb, strconv.FormatFloat(order.Quantity, 'f', -1, 64), order.Symbol)
		}
		return auth.ActionResult{Location: tradingPath, Message: msg}, nil
	}
}

// predictAction runs a forecast, the stock page lists it from the
// prediction history afterwards
func predictAction(client *api.Client) auth.PageAction {
	return func(ctx router.Context, _ auth.Snapshot) (auth.ActionResult, error) {
		symbol := strings.ToUpper(strings.TrimSpace(ctx.Param("symbol")))
		result := auth.ActionResult{Location: stockPath(symbol)}

		forecast, err := client.Predict(ctx.Context(), symbol)
		if err != nil {
			return result, err
		}

		result.Message = fmt.Sprintf("Forecast ready for %s", forecast.Symbol)
		if n := len(forecast.Predictions); n > 0 {
			last := forecast.Predictions[n-1]
			result.Message = fmt.Sprintf("Forecast for %s: %.2f by %s (%s)",
				forecast.Symbol, last.PredictedPrice, last.Date, last.Direction)
		}
		return result, nil
	}
}

func watchlistAddAction(client *api.Client) auth.PageAction {
	return func(ctx router.Context, _ auth.Snapshot) (auth.ActionResult, error) {
		form := new(SymbolForm)
		if err := ctx.Bind(form); err != nil {
			return auth.ActionResult{}, err
		}

		item, err := client.AddToWatchlist(ctx.Context(), form.Symbol)
		if err != nil {
			return auth.ActionResult{}, err
		}

		symbol := strings.ToUpper(strings.TrimSpace(form.Symbol))
		if item != nil && item.Symbol != "" {
			symbol = item.Symbol
		}
		return auth.ActionResult{
			Location: stocksPath,
			Message:  fmt.Sprintf("%s added to your watchlist", symbol),
		}, nil
	}
}

func watchlistRemoveAction(client *api.Client) auth.PageAction {
	return func(ctx router.Context, _ auth.Snapshot) (auth.ActionResult, error) {
		id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			return auth.ActionResult{}, auth.DeriveError(api.ErrRequestRejected, "Unknown watchlist entry", map[string]any{
				"id": ctx.Param("id"),
			})
		}

		if err := client.RemoveFromWatchlist(ctx.Context(), id); err != nil {
			return auth.ActionResult{}, err
		}
		return auth.ActionResult{Location: stocksPath, Message: "Removed from your watchlist"}, nil
	}
}

func stockPath(symbol string) string {
	if symbol == "" {
		return stocksPath
	}
	return stocksPath + "/" + symbol
}
