package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"fbs/internal/config"
	"fbs/internal/domain"
	"fbs/internal/metrics"
	"fbs/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ScheduleWriter renders a day schedule workbook.
type ScheduleWriter interface {
	WriteDaySchedule(ctx context.Context, w io.Writer, date string, ids []string) error
}

// Services groups what the HTTP surface delegates to.
type Services struct {
	Bookings     domain.BookingService
	Availability domain.AvailabilityService
	Auth         domain.AuthService
	Catalog      domain.FacilityCatalog
	Store        Pinger
	Exporter     ScheduleWriter
}

// HTTPServer exposes the JSON booking API.
type HTTPServer struct {
	cfg      config.APIConfig
	svc      Services
	maxIDs   int
	server   *http.Server
	limiter  *rateLimiter
	validate *validator.Validate
	log      zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, maxGlimpseIDs int, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		svc:      svc,
		maxIDs:   maxGlimpseIDs,
		limiter:  newRateLimiter(cfg.RateLimit),
		validate: newValidator(),
		log:      zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", srv.handleHealth)
	mux.HandleFunc("GET /api/facilities", srv.handleFacilities)
	mux.HandleFunc("GET /api/facilities/{id}", srv.handleFacility)
	mux.HandleFunc("GET /api/facilities/{id}/availability", srv.handleDayAvailability)
	mux.HandleFunc("GET /api/availability-glimpse", srv.handleGlimpse)
	mux.Handle("POST /api/bookings", srv.requireIdentity(http.HandlerFunc(srv.handleCreateBooking)))
	mux.HandleFunc("GET /api/bookings/{id}", srv.handleGetBooking)
	mux.HandleFunc("POST /api/auth/login", srv.handleLogin)
	mux.Handle("POST /api/auth/logout", srv.requireIdentity(http.HandlerFunc(srv.handleLogout)))
	mux.Handle("GET /api/auth/me", srv.requireIdentity(http.HandlerFunc(srv.handleMe)))
	mux.HandleFunc("GET /api/schedule.xlsx", srv.handleScheduleExport)

	handler := srv.loggingMiddleware(srv.rateLimitMiddleware(mux))

	readHeader := cfg.HTTP.ReadHeaderTimeout
	if readHeader <= 0 {
		readHeader = 5 * time.Second
	}
	write := cfg.HTTP.WriteTimeout
	if write <= 0 {
		write = 15 * time.Second
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: readHeader,
		WriteTimeout:      write,
	}

	return srv
}

// Handler returns the fully wrapped router.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type identityKey struct{}

func identityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(models.Identity)
	return id, ok
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireIdentity resolves the bearer token before the wrapped handler runs.
func (s *HTTPServer) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.svc.Auth == nil {
			s.writeDomainError(w, domain.ErrUnauthorized)
			return
		}
		identity, err := s.svc.Auth.Resolve(r.Context(), bearerToken(r))
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *HTTPServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(remoteHost(r)) {
			writeErrorBody(w, http.StatusTooManyRequests, errorBody{Kind: domain.KindRateLimited, Message: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint, recorder.status)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Str("remote", remoteHost(r)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
