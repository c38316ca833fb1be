package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/adapter"
	"github.com/m-mizutani/sribot/pkg/catalog"
	"github.com/m-mizutani/sribot/pkg/model"
	"github.com/m-mizutani/sribot/pkg/usecase/chat"
	"github.com/m-mizutani/sribot/pkg/utils/logging"
)

// DefaultMaxUploadSize is the largest accepted image upload
const DefaultMaxUploadSize = 5 * 1024 * 1024

// Chatter answers chat messages
type Chatter interface {
	Chat(ctx context.Context, input chat.ChatInput) *model.ChatResult
}

// MemoryLister backs the memory debug endpoint
type MemoryLister interface {
	ListAll(ctx context.Context, ns model.Namespace) ([]*model.Memory, error)
}

type Server struct {
	chat     Chatter
	catalog  catalog.Catalog
	storage  adapter.Storage
	memories MemoryLister
	metrics  *Metrics

	baseURL       string
	maxUploadSize int64
	now           func() time.Time
	validate      *validator.Validate
}

type Option func(*Server)

// WithBaseURL sets the public URL used to build image links
func WithBaseURL(url string) Option {
	return func(s *Server) {
		s.baseURL = url
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMemories enables GET /memory/{user_id}
func WithMemories(m MemoryLister) Option {
	return func(s *Server) {
		s.memories = m
	}
}

func WithMaxUploadSize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New creates the HTTP front door. storage holds uploaded images under the
// "uploads/" prefix.
func New(chatter Chatter, cat catalog.Catalog, storage adapter.Storage, opts ...Option) *Server {
	s := &Server{
		chat:          chatter,
		catalog:       cat,
		storage:       storage,
		baseURL:       "http://localhost:8000",
		maxUploadSize: DefaultMaxUploadSize,
		now:           time.Now,
		validate:      validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/chat", s.handleChat)

	r.Post("/upload-umkm", s.handleUpload(uploadTarget{
		kind:   "umkm",
		label:  "UMKM",
		field:  "umkm_id",
		name:   s.umkmName,
		update: s.catalog.UpdateUMKMImage,
	}))
	r.Post("/upload-product", s.handleUpload(uploadTarget{
		kind:   "product",
		label:  "Produk",
		field:  "product_id",
		name:   s.productName,
		update: s.catalog.UpdateProductImage,
	}))

	r.Get("/umkm/{id}", s.handleGetUMKM)
	r.Get("/product/{id}", s.handleGetProduct)
	r.Get("/uploads/*", s.handleUploads)

	if s.memories != nil {
		r.Get("/memory/{user_id}", s.handleMemory)
	}
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	return r
}

func (s *Server) umkmName(ctx context.Context, id int64) (string, error) {
	u, err := s.catalog.GetUMKM(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Name, nil
}

func (s *Server) productName(ctx context.Context, id int64) (string, error) {
	p, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return "", err
	}
	return p.Name, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Serve runs the server on addr until ctx is canceled, then shuts down
// gracefully
func (s *Server) Serve(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.From(ctx).Info("starting http server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return goerr.Wrap(err, "http server failed", goerr.V("addr", addr))
		}
		return nil
	case <-ctx.Done():
	}

	logging.From(ctx).Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return goerr.Wrap(err, "failed to shutdown http server")
	}
	return nil
}
