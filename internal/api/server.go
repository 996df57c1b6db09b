// Package api exposes the browse service over HTTP.
//
// The routing layer is deliberately thin: it translates requests into
// browse.Service calls and errors into status codes. Listing responses
// carry an X-Cache header (HIT, MISS or BYPASS) reporting how the request
// interacted with the listing cache.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vantor/bucketscope/internal/browse"
	"github.com/vantor/bucketscope/internal/logger"
)

// Server is the HTTP front end.
type Server struct {
	svc  *browse.Service
	log  *logger.Logger
	http *http.Server
}

// New returns a server bound to listen.
func New(listen string, svc *browse.Service, log *logger.Logger) *Server {
	s := &Server{
		svc: svc,
		log: log.With().Str("component", "api").Logger(),
	}
	s.http = &http.Server{
		Addr:              listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the chi route tree. Exposed so tests can drive the API
// through httptest without binding a port.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/api/login", s.handleLogin)
	r.Post("/api/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/api/buckets", s.handleBuckets)
		r.Get("/api/buckets/{bucket}/objects", s.handleList)
		r.Get("/api/buckets/{bucket}/objects/*", s.handleDownload)
		r.Put("/api/buckets/{bucket}/objects/*", s.handleUpload)
		r.Delete("/api/buckets/{bucket}/objects/*", s.handleRemove)
		r.Delete("/api/buckets/{bucket}/prefix", s.handleRemovePrefix)
		r.Get("/api/buckets/{bucket}/presign/*", s.handlePresign)
		r.Get("/api/buckets/{bucket}/size", s.handleBucketSize)
		r.Post("/api/buckets/{bucket}/size", s.handleBucketSizeStart)
	})

	return r
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.log.Infof("listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains open connections.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// --- auth middleware ---

type ctxKey int

const tokenKey ctxKey = iota

// requireToken extracts the bearer token. Resolution against the session
// store happens inside the service layer, so an expired token fails there
// with not-authenticated; here only a missing header is rejected.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tokenKey, token)))
	})
}

func requestToken(r *http.Request) string {
	token, _ := r.Context().Value(tokenKey).(string)
	return token
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
