package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	auth "github.com/marketsim/portal-auth"
	"github.com/marketsim/portal-auth/activitymap"
	"github.com/marketsim/portal-auth/api"
	"github.com/marketsim/portal-auth/internal/config"
	"github.com/marketsim/portal-auth/metrics"
	"github.com/marketsim/portal-auth/storage/bunstore"
)

// App holds the wired session stack shared by every command
type App struct {
	Config  *config.Config
	Logger  *glog.BaseLogger
	Client  *api.Client
	Manager *auth.SessionManager
	Metrics *metrics.Collector

	closers []func() error
}

// NewApp wires storage, backend client and session manager from cfg, then
// hydrates the session.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(cfg.Logging.Level),
		glog.WithName("portal"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	app := &App{
		Config: cfg,
		Logger: lgr,
	}

	storage, err := app.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	collector, err := metrics.New(nil)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Metrics = collector

	transport := auth.NewBearerTransport(nil, nil, lgr.GetLogger("auth.transport"))
	app.Client = api.New(cfg.Backend.URL,
		api.WithTransport(transport),
		api.WithTimeout(cfg.Backend.Timeout),
		api.WithCacheTTL(cfg.Backend.CacheTTL),
		api.WithLoggerProvider(lgr),
	)

	store := auth.NewSessionStore(storage, auth.WithStoreLoggerProvider(lgr))

	opts := []auth.ManagerOption{
		auth.WithManagerLoggerProvider(lgr),
		auth.WithManagerActivitySink(auth.MultiActivitySink{
			collector,
			activitymap.LogSink(lgr.GetLogger("activity")),
		}),
	}
	if cfg.Session.CheckTokenExpiry {
		opts = append(opts, auth.WithExpiredTokenCheck())
	}

	app.Manager = auth.NewSessionManager(store, app.Client, opts...)
	transport.Session = app.Manager
	app.closers = append(app.closers, app.Manager.Close)

	app.Manager.Subscribe(collector.Observe)
	app.Manager.Hydrate(ctx)

	return app, nil
}

// GetLogger returns a named logger
func (a *App) GetLogger(name string) glog.Logger {
	return a.Logger.GetLogger(name)
}

// Close releases the session manager and storage, last opened first
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func (a *App) openStorage(ctx context.Context) (auth.Storage, error) {
	cfg := a.Config.Session

	switch cfg.Storage {
	case config.StorageMemory:
		return auth.NewMemoryStorage(), nil
	case config.StorageKeyring:
		return auth.NewKeyringStorage(cfg.StoragePath, a.Config.Backend.URL)
	case config.StorageSQLite:
		path, err := storagePath(cfg.StoragePath, "session.db")
		if err != nil {
			return nil, err
		}
		db, err := bunstore.Open(ctx, "file:"+path+"?cache=shared")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return db, nil
	default:
		path, err := storagePath(cfg.StoragePath, "session.json")
		if err != nil {
			return nil, err
		}
		return auth.NewFileStorage(path), nil
	}
}

// storagePath returns path, or name next to the default session file
func storagePath(path, name string) (string, error) {
	if path != "" {
		return path, nil
	}

	def, err := auth.DefaultSessionFilePath()
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(def)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return filepath.Join(dir, name), nil
}
