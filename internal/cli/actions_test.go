package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goliatone/go-router"
	auth "github.com/marketsim/portal-auth"
	"github.com/marketsim/portal-auth/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type tradingBackend struct {
	*httptest.Server

	mu       sync.Mutex
	orders   []map[string]any
	deleted  []string
	watching []string
}

func newTradingBackend(t *testing.T) *tradingBackend {
	t.Helper()

	b := &tradingBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"token": "tok-alice",
			"user":  map[string]any{"id": 7, "username": "alice", "is_active": true},
		})
	})
	trade := func(kind string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var order map[string]any
			json.NewDecoder(r.Body).Decode(&order)
			if order["symbol"] == "TSLA" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Insufficient funds"})
				return
			}
			b.mu.Lock()
			order["kind"] = kind
			b.orders = append(b.orders, order)
			b.mu.Unlock()
			writeJSON(w, http.StatusOK, map[string]any{"message": "Order filled"})
		}
	}
	mux.HandleFunc("/api/trading/buy", trade("buy"))
	mux.HandleFunc("/api/trading/sell", trade("sell"))
	mux.HandleFunc("/api/predictions/predict/AAPL", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"symbol": "AAPL",
			"predictions": []map[string]any{
				{"date": "2026-10-19", "predicted_price": 190.5, "direction": "up"},
				{"date": "2026-10-20", "predicted_price": 192.25, "direction": "up"},
			},
		})
	})
	mux.HandleFunc("/api/stocks/watchlist", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.watching = append(b.watching, body["symbol"])
		b.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"item": map[string]any{"id": 3, "symbol": body["symbol"]}})
	})
	mux.HandleFunc("/api/stocks/watchlist/3", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.deleted = append(b.deleted, r.Method)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"message": "Removed"})
	})
	mux.HandleFunc("/api/stocks/info/AAPL", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"stock": map[string]any{"symbol": "AAPL", "name": "Apple Inc."}})
	})
	mux.HandleFunc("/api/stocks/historical/AAPL", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"symbol": "AAPL", "data": []map[string]any{{"close": 189}}})
	})
	mux.HandleFunc("/api/stocks/realtime/AAPL", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Market closed"})
	})
	mux.HandleFunc("/api/predictions/history", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"history": []map[string]any{
			{"id": 1, "symbol": "AAPL", "predicted_price": 190.5},
			{"id": 2, "symbol": "MSFT", "predicted_price": 410},
		}})
	})
	mux.HandleFunc("/api/predictions/accuracy/AAPL", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"symbol": "AAPL", "accuracy": 0.62})
	})

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func signedInApp(t *testing.T, backendURL string) *App {
	t.Helper()
	app, err := NewApp(context.Background(), testConfig(backendURL))
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	_, err = app.Manager.Login(context.Background(), auth.LoginRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	return app
}

func findAction(t *testing.T, actions []auth.Action, name string) auth.Action {
	t.Helper()
	for _, action := range actions {
		if action.Name == name {
			return action
		}
	}
	t.Fatalf("action %s not registered", name)
	return auth.Action{}
}

func bindTo[T any](ctx *router.MockContext, value T) {
	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*args.Get(0).(*T) = value
	})
}

func TestPageActionsAreUserOnly(t *testing.T) {
	actions := PageActions(api.New("http://127.0.0.1:5001/api"))

	paths := map[string]string{}
	for _, action := range actions {
		paths[action.Name] = action.Path
		assert.Equal(t, auth.RoleRestricted(auth.RoleUser), action.Requirement, action.Name)
		assert.NotEmpty(t, action.Fallback, action.Name)
	}

	assert.Equal(t, map[string]string{
		"trading-buy":      "/trading/buy",
		"trading-sell":     "/trading/sell",
		"stock-predict":    "/stocks/:symbol/predict",
		"watchlist-add":    "/stocks/watchlist",
		"watchlist-remove": "/stocks/watchlist/:id/delete",
	}, paths)
}

func TestTradeActions(t *testing.T) {
	backend := newTradingBackend(t)
	app := signedInApp(t, backend.URL)
	actions := PageActions(app.Client)

	for _, name := range []string{"trading-buy", "trading-sell"} {
		ctx := mockContext()
		bindTo(ctx, TradeForm{Symbol: " aapl ", Quantity: 2})

		result, err := findAction(t, actions, name).Handler(ctx, app.Manager.Snapshot())
		require.NoError(t, err, name)
		assert.Equal(t, "/trading", result.Location)
		assert.Equal(t, "Order filled", result.Message)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.orders, 2)
	assert.Equal(t, "buy", backend.orders[0]["kind"])
	assert.Equal(t, "AAPL", backend.orders[0]["symbol"])
	assert.Equal(t, "sell", backend.orders[1]["kind"])
}

func TestTradeActionSurfacesBackendRejection(t *testing.T) {
	backend := newTradingBackend(t)
	app := signedInApp(t, backend.URL)

	ctx := mockContext()
	bindTo(ctx, TradeForm{Symbol: "TSLA", Quantity: 1000})

	_, err := findAction(t, PageActions(app.Client), "trading-buy").Handler(ctx, app.Manager.Snapshot())
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, api.TextCodeRequestRejected))
	assert.Equal(t, auth.StateAuthenticated, app.Manager.Snapshot().State)
}

func TestTradeActionValidatesOrder(t *testing.T) {
	backend := newTradingBackend(t)
	app := signedInApp(t, backend.URL)

	ctx := mockContext()
	bindTo(ctx, TradeForm{Symbol: "AAPL", Quantity: 0})

	_, err := findAction(t, PageActions(app.Client), "trading-sell").Handler(ctx, app.Manager.Snapshot())
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidPayload))

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Empty(t, backend.orders)
}

func TestPredictAction(t *testing.T) {
	backend := newTradingBackend(t)
	app := signedInApp(t, backend.URL)

	ctx := mockContext()
	ctx.ParamsM["symbol"] = "aapl"

	result, err := findAction(t, PageActions(app.Client), "stock-predict").Handler(ctx, app.Manager.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, "/stocks/AAPL", result.Location)
	assert.Equal(t, "Forecast for AAPL: 192.25 by 2026-10-20 (up)", result.Message)
}

func TestPredictActionFailureReturnsToStock(t *testing.T) {
	backend := newTradingBackend(t)
	app := signedInApp(t, backend.URL)

	ctx := mockContext()
	ctx.ParamsM["symbol"] = "ZZZZ"

	result, err := findAction(t, PageActions(app.Client), "stock-predict").Handler(ctx, app.Manager.Snapshot())
	require.Error(t, err)
	assert.Equal(t, "/stocks/ZZZZ", result.Location)
}

func TestWatchlistActions(t *testing.T) {
	backend := newTradingBackend(t)
	app := signedInApp(t, backend.URL)
	actions := PageActions(app.Client)

	add := mockContext()
	bindTo(add, SymbolForm{Symbol: "nvda"})
	result, err := findAction(t, actions, "watchlist-add").Handler(add, app.Manager.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, "/stocks", result.Location)
	assert.Equal(t, "NVDA added to your watchlist", result.Message)

	remove := mockContext()
	remove.ParamsM["id"] = "3"
	result, err = findAction(t, actions, "watchlist-remove").Handler(remove, app.Manager.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, "Removed from your watchlist", result.Message)

	bad := mockContext()
	bad.ParamsM["id"] = "abc"
	_, err = findAction(t, actions, "watchlist-remove").Handler(bad, app.Manager.Snapshot())
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, api.TextCodeRequestRejected))

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, []string{"NVDA"}, backend.watching)
	assert.Equal(t, []string{http.MethodDelete}, backend.deleted)
}

func TestStockDetailLoaderIncludesPredictions(t *testing.T) {
	backend := newTradingBackend(t)
	app := signedInApp(t, backend.URL)

	ctx := mockContext()
	ctx.ParamsM["symbol"] = "AAPL"

	data, err := PageLoaders(app.Client)["stock-detail"](ctx, app.Manager.Snapshot())
	require.NoError(t, err)

	predictions, ok := data["predictions"].([]api.PredictionRecord)
	require.True(t, ok)
	require.Len(t, predictions, 1)
	assert.Equal(t, int64(1), predictions[0].ID)

	accuracy, ok := data["accuracy"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.62, accuracy["accuracy"])

	_, ok = data["realtime"]
	assert.False(t, ok, "a closed market leaves the realtime quote out")
}
