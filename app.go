// Package surface is the runtime of generated routing files.
//
// A routing file produced by "surface gen" registers every handler function
// of an API tree on a chi router. Each registration asks a Gate to
// authorize the caller, decode the payload and encode the result:
//
//	app := surface.NewApp().WithLogger(logger)
//	gate := surface.NewGate(hmac).WithLogger(logger)
//	app.Route("/api", func(r chi.Router) {
//		r.Post("/sum", func(w http.ResponseWriter, req *http.Request) { ... })
//	})
//	http.ListenAndServe(":3030", app.Handler())
package surface

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
)

// App composes the API routes, middleware and an optional static web app.
type App struct {
	mux         *chi.Mux
	middlewares []func(http.Handler) http.Handler
	logger      *slog.Logger
	static      fs.FS
}

// NewApp returns an empty App.
func NewApp() *App {
	return &App{mux: chi.NewRouter()}
}

// WithLogger sets the logger. Defaults to slog.Default().
func (a *App) WithLogger(logger *slog.Logger) *App {
	a.logger = logger
	return a
}

// WithMiddleware wraps the whole app in mw. Middleware added first is
// outermost.
func (a *App) WithMiddleware(mw func(http.Handler) http.Handler) *App {
	a.middlewares = append(a.middlewares, mw)
	return a
}

// WithStatic serves files of fsys for GET requests no route matches.
// Unknown paths fall back to index.html, so client-side routing works.
func (a *App) WithStatic(fsys fs.FS) *App {
	a.static = fsys
	return a
}

// WithStaticDir is WithStatic for a directory on disk.
func (a *App) WithStaticDir(dir string) *App {
	return a.WithStatic(os.DirFS(dir))
}

// Route mounts a sub-router at pattern.
func (a *App) Route(pattern string, fn func(r chi.Router)) *App {
	a.mux.Route(pattern, fn)
	return a
}

// Router exposes the underlying router.
func (a *App) Router() chi.Router { return a.mux }

func (a *App) log() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

// Handler returns the app as an http.Handler.
func (a *App) Handler() http.Handler {
	if a.static != nil {
		a.mux.NotFound(a.serveStatic)
	} else {
		a.mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, NewError(CodeNotFound, "route not found"), a.log())
		})
	}
	a.mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, Errorf(CodeMethodNotAllowed, "method %s not allowed", r.Method), a.log())
	})

	var h http.Handler = a.mux
	for i := len(a.middlewares) - 1; i >= 0; i-- {
		h = a.middlewares[i](h)
	}
	return h
}

func (a *App) serveStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, NewError(CodeNotFound, "route not found"), a.log())
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "index.html"
	}
	if fi, err := fs.Stat(a.static, name); err != nil || fi.IsDir() {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			a.log().WarnContext(r.Context(), "stat static file", slog.String("name", name), slog.Any("error", err))
		}
		name = "index.html"
	}
	http.ServeFileFS(w, r, a.static, name)
}

// LoginHandler returns a handler minting a token for the "user_id" of a
// JSON or form body:
//
//	{"user_id": "alice"} → {"token": "..."}
//
// A missing user_id is a 404, matching unknown users.
func LoginHandler(g *Gate, issuer Issuer) http.HandlerFunc {
	type login struct {
		UserID string `json:"user_id"`
	}
	type token struct {
		Token string `json:"token"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req login
		if !g.Decode(w, r, &req) {
			return
		}
		if req.UserID == "" {
			g.Fail(w, r, NewError(CodeNotFound, "unknown user"))
			return
		}
		tok, err := issuer.Issue(req.UserID)
		if err != nil {
			g.Fail(w, r, err)
			return
		}
		g.log().InfoContext(r.Context(), "issued token", slog.String("subject", req.UserID))
		g.Reply(w, r, token{Token: tok})
	}
}

// SecureMessage is the reply of SecureHandler.
const SecureMessage = "Access granted to secured resource."

// SecureHandler returns a handler that replies SecureMessage to authorized
// callers. It lets clients check that their token is still accepted.
func SecureHandler(g *Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := g.Authorize(w, r); !ok {
			return
		}
		g.Reply(w, r, SecureMessage)
	}
}
