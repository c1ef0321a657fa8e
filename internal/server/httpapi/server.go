// Package httpapi exposes the registry over a JSON HTTP API. It owns request
// decoding, caller authentication and the mapping from service sentinel
// errors to status codes; all semantics live in the services layer.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/gorilla/mux"
)

// Registry is the slice of the registry service the transport needs.
type Registry interface {
	CreateDocument(ctx context.Context, caller, name string, keyHandle, proof []byte) (int64, error)
	UpdateDocument(ctx context.Context, caller string, id int64, newBody []byte) error
	GrantAccess(ctx context.Context, caller string, id int64, target string) error
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	IsEditor(ctx context.Context, id int64, identity string) (bool, error)
	Count(ctx context.Context) (int64, error)
	Events(ctx context.Context, id int64) ([]*models.Event, error)
}

// Server serves the registry API.
type Server struct {
	address   string
	registry  Registry
	db        *sql.DB
	logger    logging.Logger
	jwtSecret []byte
}

// NewServer constructs a Server. db is only used by the health endpoint.
func NewServer(address string, l logging.Logger, registry Registry, db *sql.DB, secretKey string) *Server {
	return &Server{
		address:   address,
		registry:  registry,
		db:        db,
		logger:    l.With("module", "httpapi"),
		jwtSecret: []byte(secretKey),
	}
}

// Router assembles all routes. Read endpoints are public: they return only
// ciphertext and metadata, so any observer may call them. Mutations require
// a bearer token carrying the caller identity.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/documents/count", s.handleCount).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id:[0-9]+}", s.handleGetDocument).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id:[0-9]+}/editors/{identity}", s.handleIsEditor).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id:[0-9]+}/events", s.handleEvents).Methods(http.MethodGet)

	api.Handle("/documents", s.requireAuth(s.handleCreateDocument)).Methods(http.MethodPost)
	api.Handle("/documents/{id:[0-9]+}", s.requireAuth(s.handleUpdateDocument)).Methods(http.MethodPut)
	api.Handle("/documents/{id:[0-9]+}/access", s.requireAuth(s.handleGrantAccess)).Methods(http.MethodPost)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
