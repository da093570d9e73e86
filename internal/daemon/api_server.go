package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"corrflow/internal/api"
	"corrflow/internal/config"
	"corrflow/internal/logging"
	"corrflow/internal/services"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
	requestIDHeader = "X-Request-ID"
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	auth    *authenticator
	limiter *rateLimiter
	router  chi.Router

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Server.Bind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		auth:   newAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, d.corr.Actor),
	}
	if cfg.RateLimit.Enabled {
		srv.limiter = newRateLimiter(cfg.RateLimit, cfg.RateWindow())
	}
	srv.router = srv.routes()
	srv.server = &http.Server{
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestID)
	r.Use(s.recoverer)
	r.Use(s.accessLog)
	if s.limiter != nil {
		r.Use(s.limiter.middleware(s.rateLimited))
	}
	r.Use(limitBody)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.middleware(true, s.writeError))
			r.Get("/notifications/stream", s.handleNotificationStream)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.middleware(false, s.writeError))

			r.Get("/status", s.handleStatus)

			r.Route("/correspondences", func(r chi.Router) {
				r.Get("/", s.handleListCorrespondences)
				r.Post("/", s.handleCreateCorrespondence)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetCorrespondence)
					r.Put("/", s.handleUpdateCorrespondence)
					r.Delete("/", s.handleDeleteCorrespondence)
					r.Post("/submit", s.handleSubmitCorrespondence)
					r.Post("/archive", s.handleArchiveCorrespondence)
					r.Post("/sign", s.handleSign)
					r.Get("/workflow", s.handleStages)
					r.Get("/signatures", s.handleSignatures)
					r.Get("/attachments", s.handleAttachments)
					r.Get("/comments", s.handleComments)
					r.Post("/comments", s.handleAddComment)
				})
			})

			r.Get("/notifications", s.handleNotifications)
			r.Put("/notifications/read-all", s.handleMarkAllRead)
			r.Put("/notifications/{id}/read", s.handleMarkRead)

			r.Get("/statistics", s.handleStatistics)
			r.Get("/statistics/user/{userID}", s.handleUserStatistics)
			r.Get("/audit-logs", s.handleAuditLogs)

			r.Put("/org/divisions/{id}/manager", s.handleSetDivisionManager)
			r.Put("/org/departments/{id}/manager", s.handleSetDepartmentManager)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "route not found", Kind: string(services.KindNotFound)})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusMethodNotAllowed, api.ErrorResponse{Error: "method not allowed"})
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("server.bind is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	if s.limiter != nil {
		go s.limiter.run(ctx)
	}
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.WarnWithContext(s.logger, "api server shutdown incomplete", "api_shutdown_timeout",
				logging.Error(err),
				logging.String(logging.FieldImpact, "in-flight requests were cut off"),
			)
		}
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := services.WithRequestID(r.Context(), id)
		ctx = services.WithClientIP(ctx, clientAddress(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *apiServer) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "handler panic", "api_panic",
					logging.String("panic", fmt.Sprint(rec)),
					logging.String("path", r.URL.Path),
				)
				s.writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "internal error", Kind: string(services.KindInternal)})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		logging.WithContext(r.Context(), s.logger).Debug("request served",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Int("bytes", ww.BytesWritten()),
			logging.Duration("duration", time.Since(started)),
		)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) rateLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "1")
	s.writeJSON(w, http.StatusTooManyRequests, api.ErrorResponse{Error: "rate limit exceeded"})
}

// readBody reads the request body and validates it against schema.
func readBody(r *http.Request, schema gojsonschema.JSONLoader, dst any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.Wrap(services.ErrValidation, "api", "read body",
				fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit), nil)
		}
		return services.Wrap(services.ErrValidation, "api", "read body", "cannot read body", err)
	}
	if err := validateBody(schema, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return services.Wrap(services.ErrValidation, "api", "decode body", "malformed JSON", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, services.Wrap(services.ErrValidation, "api", "parse path",
			fmt.Sprintf("invalid %s %q", name, raw), nil)
	}
	return id, nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

// writeError maps err to its HTTP status. Internal failures are logged with
// the request context and reported to the client without detail.
func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "request failed", "api_request_failed",
			logging.Error(err),
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
		)
	}
	s.writeJSON(w, status, api.ErrorResponse{
		Error: services.PublicMessage(err),
		Kind:  string(services.KindOf(err)),
	})
}
