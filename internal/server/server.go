package server

import (
	"net/http"
	"time"

	"github.com/sw33tLie/ghrenew/internal/utils"
	"github.com/sw33tLie/ghrenew/pkg/metrics"
	"github.com/sw33tLie/ghrenew/pkg/storage"
)

// Server exposes metrics and run history while the watch daemon is up.
type Server struct {
	DB       *storage.DB // optional
	ServerID string
	Username string
	Password string
}

func New(db *storage.DB, serverID, user, pass string) *Server {
	return &Server{
		DB:       db,
		ServerID: serverID,
		Username: user,
		Password: pass,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.basicAuthMiddleware(metrics.Handler()))

	// API Group
	mux.HandleFunc("GET /api/runs", s.basicAuth(s.handleRuns))
	mux.HandleFunc("GET /api/runs/last", s.basicAuth(s.handleLastRun))
	mux.HandleFunc("GET /api/stats", s.basicAuth(s.handleStats))

	return mux
}

func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	utils.Log.Infof("Starting status server on %s", addr)
	return srv.ListenAndServe()
}

func (s *Server) authorized(r *http.Request) bool {
	if s.Username == "" && s.Password == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	return ok && user == s.Username && pass == s.Password
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return s.basicAuth(next.ServeHTTP)
}
