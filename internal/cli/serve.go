package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-router"
	mflash "github.com/goliatone/go-router/middleware/flash"
	auth "github.com/marketsim/portal-auth"
	"github.com/marketsim/portal-auth/internal/config"
	"github.com/marketsim/portal-auth/middleware/csrf"
	"github.com/spf13/cobra"
)

const (
	anonymousSubject = "anonymous"
	shutdownTimeout  = 5 * time.Second
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	var addr string
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the user and admin portals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.ListenAddr = addr
			}

			app, err := NewApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			srv, err := NewServer(app, debug)
			if err != nil {
				return err
			}

			logger := app.GetLogger("serve")
			logger.Info("portal listening", "addr", cfg.Server.ListenAddr, "backend", cfg.Backend.URL)

			sigc := exitSignal()
			errc := make(chan error, 1)
			go func() {
				errc <- srv.Serve(cfg.Server.ListenAddr)
			}()

			select {
			case err := <-errc:
				return err
			case sig := <-sigc:
				logger.Info("shutting down", "signal", sig.String())
			}

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (or set PORTAL_LISTEN_ADDR)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Log controller payloads")

	return cmd
}

// NewServer builds the fiber backed router with views, flash, CSRF
// protection, metrics and the portal routes.
func NewServer(app *App, debug bool) (router.Server[*fiber.App], error) {
	engine := django.NewFileSystem(http.FS(auth.GetViewsFS()), ".html")

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		f := router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			StrictRouting:     false,
			PassLocalsToViews: true,
			Views:             engine,
		}))
		f.Get("/metrics", adaptor.HTTPHandler(app.Metrics.Handler()))
		return f
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	protector, err := csrf.NewProtector(csrf.Config{
		Subject: sessionSubject(app.Manager),
		Skip: func(ctx router.Context) bool {
			return ctx.Path() == "/metrics"
		},
	})
	if err != nil {
		return nil, err
	}

	srv.Router().Use(mflash.New(mflash.ConfigDefault))
	srv.Router().Use(protector.Middleware())

	opts := []auth.PortalControllerOption{
		auth.WithPortalLoggerProvider(app.Logger),
		auth.WithPortalDebug(debug),
		auth.WithProfileService(app.Client),
	}
	for name, loader := range PageLoaders(app.Client) {
		opts = append(opts, auth.WithPageLoader(name, loader))
	}
	for _, action := range PageActions(app.Client) {
		opts = append(opts, auth.WithPageAction(action))
	}

	controller := auth.NewPortalController(app.Manager, opts...)

	auth.RegisterPortalRoutes(srv.Router(), controller)

	return srv, nil
}

// sessionSubject binds CSRF tokens to the signed in user
func sessionSubject(source auth.SnapshotSource) func(router.Context) string {
	return func(router.Context) string {
		snap := source.Snapshot()
		if snap.User == nil {
			return anonymousSubject
		}
		return strconv.FormatInt(snap.User.ID, 10)
	}
}

// exitSignal is notified when the process is asked to stop
func exitSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return ch
}
