package votes

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"goldbot/internal/metrics"
)

// StatsSource is what the admin endpoint reads. Kept narrow so tests
// can fake it.
type StatsSource interface {
	CountUsers(ctx context.Context) (int64, error)
}

// Server receives vote webhooks and serves the JWT-guarded admin
// surface.
type Server struct {
	proc      *Processor
	secret    string
	jwtSecret string
	stats     StatsSource
	limiter   *rate.Limiter
}

func NewServer(proc *Processor, secret, jwtSecret string, stats StatsSource) *Server {
	return &Server{
		proc:      proc,
		secret:    secret,
		jwtSecret: jwtSecret,
		stats:     stats,
		// The vote source delivers at human voting pace; anything
		// faster is noise or abuse.
		limiter: rate.NewLimiter(rate.Limit(20), 40),
	}
}

type votePayload struct {
	User      json.Number `json:"user"`
	Type      string      `json:"type"`
	IsWeekend bool        `json:"isWeekend"`
}

type response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Post("/webhook/vote", s.handleVote)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.jwtAuth)
		r.Get("/admin/stats", s.handleStats)
	})

	return r
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { metrics.WebhookDuration.Observe(time.Since(start).Seconds()) }()

	if !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, response{"error", "slow down"})
		return
	}

	auth := r.Header.Get("Authorization")
	if subtle.ConstantTimeCompare([]byte(auth), []byte(s.secret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, response{"error", "bad authorization"})
		return
	}

	var payload votePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("webhook: bad payload: %v", err)
		writeJSON(w, http.StatusBadRequest, response{"error", "invalid JSON"})
		return
	}

	userID, err := payload.User.Int64()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{"error", "invalid user id"})
		return
	}

	log.Printf("webhook: received vote for %d", userID)

	if _, err := s.proc.Process(r.Context(), userID, time.Now()); err != nil {
		log.Printf("webhook: vote for %d: %v", userID, err)
		writeJSON(w, http.StatusInternalServerError, response{"error", "failed to process vote"})
		return
	}

	writeJSON(w, http.StatusOK, response{"success", "vote processed"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	users, err := s.stats.CountUsers(r.Context())
	if err != nil {
		log.Printf("admin: stats: %v", err)
		writeJSON(w, http.StatusInternalServerError, response{"error", "stats unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"users":  users,
	})
}

// jwtAuth admits requests carrying a valid HS256 bearer token. The
// whole admin surface is disabled when no secret is configured.
func (s *Server) jwtAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.jwtSecret == "" {
			writeJSON(w, http.StatusNotFound, response{"error", "not found"})
			return
		}
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(s.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			writeJSON(w, http.StatusUnauthorized, response{"error", "bad token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("webhook: write response: %v", err)
	}
}

// Serve blocks serving the webhook router on addr.
func (s *Server) Serve(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Printf("webhook: listening for votes on %s", addr)
	return srv.ListenAndServe()
}
