// Command example serves the handlers of ./api behind token authentication,
// together with an optional single-page web app.
//
//	JWT_SECRET=devsecret go run ./example
//	curl -d '{"user_id":"alice"}' localhost:3030/api/login
//	curl -H "Authorization: Bearer $TOKEN" -d '{"a":2,"b":3}' localhost:3030/api/sum
package main

//go:generate go run github.com/broady/surface/cmd/surface gen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/broady/surface"
	"github.com/broady/surface/middleware"
)

type config struct {
	Addr      string `help:"Listen address." env:"ADDR" default:"127.0.0.1:3030"`
	JWTSecret string `help:"Token signing secret." env:"JWT_SECRET" required:"" name:"jwt-secret"`
	WebAppDir string `help:"Directory of the web app served for unknown paths." env:"WEB_APP_DIR" name:"web-app-dir"`
	Verbose   bool   `help:"Log debug output." short:"v"`
}

func main() {
	var cfg config
	kong.Parse(&cfg,
		kong.Name("example"),
		kong.Description("Serve the example API."),
	)

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	tokens, err := surface.NewHMAC([]byte(cfg.JWTSecret))
	if err != nil {
		return err
	}
	gate := surface.NewGate(tokens).
		WithLogger(logger).
		WithMaskInternalErrors()

	app := surface.NewApp().
		WithLogger(logger).
		WithMiddleware(middleware.Recover(logger)).
		WithMiddleware(middleware.Logging(logger))
	if cfg.WebAppDir != "" {
		if fi, err := os.Stat(cfg.WebAppDir); err != nil || !fi.IsDir() {
			return fmt.Errorf("web app dir %q is not a directory", cfg.WebAppDir)
		}
		app.WithStaticDir(cfg.WebAppDir)
	}
	mountAPI(app, gate, tokens)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
