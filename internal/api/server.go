package api

import (
	"context"
	"database/sql"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"veriframe/internal/api/handlers"
	"veriframe/internal/artifacts"
	"veriframe/internal/scheduler"
	"veriframe/internal/verify"
)

// Server holds the HTTP server and all handler dependencies.
type Server struct {
	addr string
	srv  *http.Server
}

// New wires all routes and returns a Server ready to Run.
func New(
	addr string,
	db *sql.DB,
	mgr *verify.Manager,
	runner *verify.Runner,
	store *artifacts.Manager,
	sched *scheduler.Scheduler,
	version string,
	templatesFS fs.FS,
	staticFS fs.FS,
) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	statusH := &handlers.StatusHandler{DB: db, Manager: mgr, Sched: sched, Version: version}
	verifyH := &handlers.VerifyHandler{Manager: mgr, Runner: runner, Store: store}
	compareH := &handlers.CompareHandler{Manager: mgr, Runner: runner, Store: store}
	progressH := &handlers.ProgressHandler{Manager: mgr}
	historyH := &handlers.HistoryHandler{DB: db}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusH.ServeHTTP)

		r.Post("/verify", verifyH.Verify)
		r.Post("/search", verifyH.Search)
		r.Post("/compare", compareH.Compare)

		r.Get("/progress", progressH.ServeHTTP)

		r.Get("/verifications", historyH.List)
		r.Get("/verifications/{id}", historyH.Get)
	})

	// Persisted comparison composites, one directory per run.
	r.Handle("/comparisons/*", http.StripPrefix("/comparisons/",
		http.FileServer(http.Dir(store.ComparisonsDir()))))

	if staticFS != nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	}
	if templatesFS != nil {
		ps := newPageServer(templatesFS, mgr)
		r.Get("/", ps.indexPage)
	}

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: r},
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		return s.srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
