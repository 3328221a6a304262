package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"bookinggate/internal/config"
	"bookinggate/internal/domain"
	"bookinggate/internal/metrics"
	"bookinggate/internal/service"
	"bookinggate/internal/upstream"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	routePrefix     = "/booking_system"
	requestIDHeader = "X-Request-ID"
	msgInternal     = "Internal server error"
)

// Services are the domain operations behind the HTTP routes.
type Services struct {
	Lookup       domain.LookupService
	Schedules    domain.ScheduleService
	Provisioning domain.ProvisioningService
	Bookings     domain.BookingService
	// Display is the zone used for exported booking times.
	Display *time.Location
}

// ReadinessCheck reports whether dependencies are reachable.
type ReadinessCheck func(ctx context.Context) error

// HTTPServer exposes the booking gateway under /booking_system plus health endpoints.
type HTTPServer struct {
	cfg     config.APIConfig
	app     config.AppConfig
	svc     Services
	ready   ReadinessCheck
	limiter *rateLimiter
	started time.Time
	server  *http.Server
	logger  zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, app config.AppConfig, svc Services, ready ReadinessCheck, logger *zerolog.Logger) *HTTPServer {
	if svc.Display == nil {
		svc.Display = time.UTC
	}
	srv := &HTTPServer{
		cfg:     cfg,
		app:     app,
		svc:     svc,
		ready:   ready,
		limiter: newRateLimiter(cfg.RateLimit),
		started: time.Now(),
		logger:  zerolog.Nop(),
	}
	if logger != nil {
		srv.logger = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	handler := srv.requestID(srv.logRequests(srv.recoverPanics(corsMiddleware(srv.limitRate(srv.limitBody(mux))))))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleLiveness)
	mux.HandleFunc("GET /readyz", s.handleReadiness)

	// bookings
	s.handle(mux, "GET", "viewAllBookings", s.handleListBookings)
	s.handle(mux, "GET", "viewFilteredBookings", s.handleFilterBookings)
	s.handle(mux, "GET", "viewBooking/{booking_id}", s.handleGetBooking)
	s.handle(mux, "POST", "createBookings", s.handleCreateBooking)
	s.handle(mux, "PATCH", "updateBooking/{booking_id}", s.handleUpdateBooking)
	s.handle(mux, "DELETE", "deleteBooking/{booking_id}", s.handleDeleteBooking)
	s.handle(mux, "GET", "exportBookings", s.handleExportBookings)

	// resources and services
	s.handle(mux, "GET", "viewAllresources", s.handleListResources)
	s.handle(mux, "GET", "viewResource/{resource_name}", s.handleGetResourceByName)
	s.handle(mux, "GET", "getResourceByName/{resource_name}", s.handleGetResourceByName)
	s.handle(mux, "POST", "createResource", s.handleCreateResource)
	s.handle(mux, "PATCH", "updateResource/{resource_id}", s.handleUpdateResource)
	s.handle(mux, "DELETE", "deleteResource/{resource_id}", s.handleDeleteResource)
	s.handle(mux, "GET", "viewServiceByServiceId/{service_id}", s.handleGetService)
	s.handle(mux, "GET", "getService/{service_id}", s.handleGetService)
	s.handle(mux, "PATCH", "updateService/{service_id}", s.handleUpdateService)
	s.handle(mux, "POST", "getServiceIdbyResourceId", s.handleServiceIDByResource)

	// schedules
	s.handle(mux, "GET", "getRecurringSchedule/{resource_id}", s.handleGetRecurringSchedule)
	s.handle(mux, "POST", "resources/{resource_id}/recurring-schedules", s.handleCreateRecurringSchedule)
	s.handle(mux, "GET", "getScheduleBlock/{resource_id}/{recurring_schedule_id}/{weekday}", s.handleBlocksForWeekday)
	s.handle(mux, "GET", "getResourceScheduleInfo/{resource_name}", s.handleResourceScheduleInfo)
	s.handle(mux, "GET", "getAllResourceScheduleBlocks/{resource_name}", s.handleWeeklySchedule)
	s.handle(mux, "GET", "getResourceWeeklySchedule/{resource_name}", s.handleWeeklySchedule)
	s.handle(mux, "GET", "getScheduleBlockIds/{resource_name}/{weekday}", s.handleBlockIDs)
	s.handle(mux, "POST", "createScheduleBlocks/{resource_id}/{recurring_schedule_id}", s.handleCreateBlocks)
	s.handle(mux, "PATCH", "updateBulkScheduleBlocks/{resource_id}/{recurring_schedule_id}", s.handleBulkUpdate)
	s.handle(mux, "PUT", "updateScheduleBlock/{resource_id}/{recurring_schedule_id}/{schedule_block_id}", s.handleReplaceBlocks)
	s.handle(mux, "DELETE", "deleteScheduleBlock/{resource_id}/{recurring_schedule_id}/{schedule_block_id}", s.handleDeleteBlock)
}

// handle registers a /booking_system route and counts its hits by endpoint name.
func (s *HTTPServer) handle(mux *http.ServeMux, method, path string, h http.HandlerFunc) {
	endpoint := path
	if i := strings.IndexByte(path, '/'); i >= 0 {
		endpoint = path[:i]
	}
	mux.HandleFunc(method+" "+routePrefix+"/"+path, func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(endpoint)
		h(w, r)
	})
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
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

func (s *HTTPServer) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": s.app.Name + " API Server",
		"version": s.app.Version,
		"status":  "running",
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"uptime":    time.Since(s.started).Seconds(),
		"memory": map[string]uint64{
			"alloc":       mem.Alloc,
			"heap_in_use": mem.HeapInuse,
			"sys":         mem.Sys,
		},
		"goroutines": runtime.NumGoroutine(),
		"pid":        os.Getpid(),
	})
}

func (s *HTTPServer) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := s.logger.With().Str("request_id", id).Logger().WithContext(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *HTTPServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		event := zerolog.Ctx(r.Context()).Info()
		if recorder.status >= http.StatusInternalServerError {
			event = zerolog.Ctx(r.Context()).Error()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *HTTPServer) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				zerolog.Ctx(r.Context()).Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("Handler panicked")
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msgInternal, "message": fmt.Sprint(rec)})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) limitBody(next http.Handler) http.Handler {
	limit := s.cfg.HTTP.MaxBodyBytes
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limit > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeServiceError maps domain and upstream errors onto the response.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve   *domain.ValidationError
		nf   *domain.NotFoundError
		ue   *upstream.Error
		step *service.StepError
	)
	body := map[string]any{}
	if errors.As(err, &step) {
		body["step"] = step.Step
		body["completed_steps"] = step.Completed
	}

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ve):
		status = ve.Status
		body["error"] = ve.Message
	case errors.As(err, &nf):
		status = http.StatusNotFound
		body["error"] = nf.Message
	case errors.As(err, &ue):
		status = ue.Status
		body["error"] = ue.JSON()
	default:
		body["error"] = msgInternal
		body["message"] = err.Error()
	}

	log := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	} else {
		log.Warn().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("Request rejected")
	}
	writeJSON(w, status, body)
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &domain.ValidationError{Status: http.StatusRequestEntityTooLarge, Message: "request body too large"}
	}
	return domain.NewValidationError("invalid JSON body")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
