// Package http exposes the presentation contract as a JSON API. It renders
// nothing: the UI collaborator reads the returned data and draws its own
// pages. Cart and pending-purchase state is session-scoped via the
// X-Session-ID header.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"roomie/internal/core"
	"roomie/internal/service"
	"roomie/internal/session"
)

const sessionHeader = "X-Session-ID"

type Server struct {
	http.Server

	svc *service.Household

	mu       sync.Mutex
	sessions map[string]*session.Session
}

func NewServer(addr string, svc *service.Household) *Server {
	s := &Server{
		svc:      svc,
		sessions: make(map[string]*session.Session),
	}
	s.Server = http.Server{
		Addr:    addr,
		Handler: requestLogging(s.routes()),
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /api/session", s.handleGetSession)
	mux.HandleFunc("POST /api/session/cat-mode", s.handleSetCatMode)
	mux.HandleFunc("POST /api/session/shopping-mode", s.handleSetShoppingMode)

	mux.HandleFunc("GET /api/state", s.handleGetState)
	mux.HandleFunc("GET /api/balances", s.handleGetBalances)

	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("POST /api/tasks/{id}/status", s.handleUpdateTaskStatus)

	mux.HandleFunc("GET /api/bills", s.handleListBills)
	mux.HandleFunc("POST /api/bills", s.handleCreateBill)

	mux.HandleFunc("GET /api/shopping", s.handleListShopping)
	mux.HandleFunc("POST /api/shopping", s.handleAddShoppingItem)
	mux.HandleFunc("POST /api/shopping/{id}/toggle", s.handleToggleShoppingItem)
	mux.HandleFunc("DELETE /api/shopping/{id}", s.handleRemoveShoppingItem)

	mux.HandleFunc("GET /api/cart", s.handleGetCart)
	mux.HandleFunc("POST /api/cart/items", s.handleAddToCart)
	mux.HandleFunc("PUT /api/cart/items/{name}", s.handleSetCartPrice)
	mux.HandleFunc("DELETE /api/cart/items/{name}", s.handleRemoveFromCart)
	mux.HandleFunc("POST /api/checkout", s.handleCheckout)

	mux.HandleFunc("GET /api/furniture", s.handleListFurniture)
	mux.HandleFunc("POST /api/furniture", s.handleAddFurniture)
	mux.HandleFunc("POST /api/furniture/{id}/purchase", s.handleBeginFurniturePurchase)
	mux.HandleFunc("POST /api/furniture/confirm", s.handleConfirmFurniturePurchase)
	mux.HandleFunc("POST /api/furniture/cancel", s.handleCancelFurniturePurchase)

	return mux
}

// sessionFor returns the caller's session, creating it on first sight.
// Requests without the header share one default session, which matches the
// single-user interaction model.
func (s *Server) sessionFor(r *http.Request) *session.Session {
	id := strings.TrimSpace(r.Header.Get(sessionHeader))
	if id == "" {
		id = "default"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = session.New()
		s.sessions[id] = sess
	}
	return sess
}

// scopeFor resolves the active context: an explicit ?context= query wins,
// otherwise the session's cat-mode toggle decides.
func (s *Server) scopeFor(r *http.Request) (core.Context, error) {
	if q := r.URL.Query().Get("context"); q != "" {
		c := core.Context(q)
		if err := c.Validate(); err != nil {
			return "", err
		}
		return c, nil
	}
	return s.sessionFor(r).Context(), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
	} else {
		slog.WarnContext(r.Context(), "Request rejected",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusUnprocessableEntity
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

// requestLogging logs every request with its status and duration.
func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if rec.status >= 500 {
			level = slog.LevelError
		} else if rec.status >= 400 {
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "HTTP request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
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
