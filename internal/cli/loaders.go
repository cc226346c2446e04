package cli

import (
	"github.com/goliatone/go-router"
	auth "github.com/marketsim/portal-auth"
	"github.com/marketsim/portal-auth/api"
)

const (
	historyPeriod    = "1mo"
	transactionLimit = 20
	predictionLimit  = 50
)

// PageLoaders returns the backend loaders for the portal pages, keyed by
// route name.
func PageLoaders(client *api.Client) map[string]auth.PageLoader {
	admin := adminStatsLoader(client)

	return map[string]auth.PageLoader{
		"dashboard":       dashboardLoader(client),
		"stocks":          stocksLoader(client),
		"stock-detail":    stockDetailLoader(client),
		"trading":         tradingLoader(client),
		"admin-dashboard": admin,
		"admin-users":     admin,
		"admin-reports":   admin,
	}
}

func dashboardLoader(client *api.Client) auth.PageLoader {
	return func(ctx router.Context, _ auth.Snapshot) (router.ViewContext, error) {
		balance, err := client.Balance(ctx.Context())
		if err != nil {
			return nil, err
		}

		portfolio, err := client.Portfolio(ctx.Context())
		if err != nil {
			return nil, err
		}

		trending, err := client.Trending(ctx.Context())
		if err != nil {
			return nil, err
		}

		return router.ViewContext{
			"balance":   balance,
			"portfolio": portfolio,
			"trending":  trending,
		}, nil
	}
}

func stocksLoader(client *api.Client) auth.PageLoader {
	return func(ctx router.Context, _ auth.Snapshot) (router.ViewContext, error) {
		query := ctx.Query("q")
		data := router.ViewContext{
			"query": query,
		}

		if query != "" {
			results, err := client.SearchStocks(ctx.Context(), query)
			if err != nil {
				return nil, err
			}
			data["results"] = results
		}

		watchlist, err := client.Watchlist(ctx.Context())
		if err != nil {
			return nil, err
		}
		data["watchlist"] = watchlist

		return data, nil
	}
}

func stockDetailLoader(client *api.Client) auth.PageLoader {
	return func(ctx router.Context, _ auth.Snapshot) (router.ViewContext, error) {
		symbol := ctx.Param("symbol")

		info, err := client.StockInfo(ctx.Context(), symbol)
		if err != nil {
			return router.ViewContext{"symbol": symbol}, err
		}

		history, err := client.History(ctx.Context(), symbol, historyPeriod)
		if err != nil {
			return nil, err
		}

		data := router.ViewContext{
			"symbol":  info.Symbol,
			"info":    info,
			"history": history,
		}

		realtime, err := client.Realtime(ctx.Context(), info.Symbol)
		if err := optional(err); err != nil {
			return nil, err
		}
		if realtime != nil {
			data["realtime"] = realtime
		}

		records, err := client.PredictionHistory(ctx.Context(), predictionLimit)
		if err := optional(err); err != nil {
			return nil, err
		}
		data["predictions"] = predictionsFor(records, info.Symbol)

		accuracy, err := client.PredictionAccuracy(ctx.Context(), info.Symbol)
		if err := optional(err); err != nil {
			return nil, err
		}
		if accuracy != nil {
			data["accuracy"] = accuracy
		}

		return data, nil
	}
}

// optional drops errors of secondary page data, a session that ended still
// counts
func optional(err error) error {
	if auth.HasTextCode(err, auth.TextCodeSessionInvalidated) {
		return err
	}
	return nil
}

func predictionsFor(records []api.PredictionRecord, symbol string) []api.PredictionRecord {
	out := make([]api.PredictionRecord, 0, len(records))
	for _, record := range records {
		if record.Symbol == symbol {
			out = append(out, record)
		}
	}
	return out
}

func tradingLoader(client *api.Client) auth.PageLoader {
	return func(ctx router.Context, _ auth.Snapshot) (router.ViewContext, error) {
		balance, err := client.Balance(ctx.Context())
		if err != nil {
			return nil, err
		}

		portfolio, err := client.Portfolio(ctx.Context())
		if err != nil {
			return nil, err
		}

		transactions, err := client.Transactions(ctx.Context(), transactionLimit)
		if err != nil {
			return nil, err
		}

		return router.ViewContext{
			"balance":      balance,
			"portfolio":    portfolio,
			"transactions": transactions,
		}, nil
	}
}

func adminStatsLoader(client *api.Client) auth.PageLoader {
	return func(ctx router.Context, _ auth.Snapshot) (router.ViewContext, error) {
		stats, err := client.AdminStats(ctx.Context())
		if err != nil {
			return nil, err
		}
		return router.ViewContext{"stats": stats}, nil
	}
}
