package mockapi

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ServerConfig tunes the built-in CRM stand-in.
type ServerConfig struct {
	Port        int
	JitterMaxMs int     // random per-request delay, 0 disables
	FailureRate float64 // chance of a 500 on any authenticated endpoint
	RateLimited bool    // answer 429 on registration, for abort-path testing
}

type server struct {
	cfg ServerConfig

	mu        sync.Mutex
	users     map[string]bool // email -> activated
	customers []map[string]any

	orgID      string
	pipelineID string
}

// Handler builds the mock CRM API. Tests mount it with httptest, the mock
// subcommand serves it on a port.
func Handler(cfg ServerConfig) http.Handler {
	s := &server{
		cfg:        cfg,
		users:      make(map[string]bool),
		orgID:      uuid.New().String(),
		pipelineID: uuid.New().String(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", s.register)
	mux.HandleFunc("POST /test/activate-user", s.activate)
	mux.HandleFunc("POST /auth/login", s.login)
	mux.HandleFunc("GET /auth/profile", s.auth(s.profile))
	mux.HandleFunc("POST /auth/finish", s.auth(s.finish))
	mux.HandleFunc("POST /customers", s.auth(s.createCustomer))
	mux.HandleFunc("GET /customers", s.auth(s.listCustomers))
	mux.HandleFunc("GET /pipelines", s.auth(s.listPipelines))
	mux.HandleFunc("GET /pipelines/{id}/stages", s.auth(s.listStages))
	mux.HandleFunc("GET /ai/capabilities", s.auth(s.capabilities))
	mux.HandleFunc("POST /ai/assistant/configure", s.auth(s.configureAssistant))
	mux.HandleFunc("POST /ai/chat", s.auth(s.chat))
	return mux
}

// Start runs the mock server in the background.
func Start(cfg ServerConfig) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: Handler(cfg)}

	fmt.Printf("👻 Mock CRM API running on http://localhost%s\n", addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Mock server failed: %v\n", err)
		}
	}()

	return srv
}

func (s *server) jitter() {
	if s.cfg.JitterMaxMs > 0 {
		time.Sleep(time.Duration(rand.Intn(s.cfg.JitterMaxMs)) * time.Millisecond)
	}
}

func (s *server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			return
		}
		if s.cfg.FailureRate > 0 && rand.Float64() < s.cfg.FailureRate {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "injected failure"})
			return
		}
		s.jitter()
		next(w, r)
	}
}

func (s *server) register(w http.ResponseWriter, r *http.Request) {
	if s.cfg.RateLimited {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return
	}
	s.jitter()

	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email required"})
		return
	}

	s.mu.Lock()
	s.users[body.Email] = false
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]string{"id": uuid.New().String(), "email": body.Email})
}

func (s *server) activate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}

	s.mu.Lock()
	if _, ok := s.users[body.Email]; ok {
		s.users[body.Email] = true
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "activated"})
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	s.jitter()

	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}

	s.mu.Lock()
	activated, known := s.users[body.Email]
	s.mu.Unlock()

	if !known || !activated {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"accessToken": uuid.New().String()})
}

func (s *server) profile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"organizationId": s.orgID,
		"role":           "owner",
	})
}

func (s *server) finish(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "onboarded"})
}

func (s *server) createCustomer(w http.ResponseWriter, r *http.Request) {
	var customer map[string]any
	if err := json.NewDecoder(r.Body).Decode(&customer); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}
	customer["id"] = uuid.New().String()

	s.mu.Lock()
	s.customers = append(s.customers, customer)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, customer)
}

func (s *server) listCustomers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data := make([]map[string]any, len(s.customers))
	copy(data, s.customers)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": data, "total": len(data)})
}

func (s *server) listPipelines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"data": []map[string]any{
			{"id": s.pipelineID, "name": "Продажи"},
		},
	})
}

func (s *server) listStages(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") != s.pipelineID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "pipeline not found"})
		return
	}

	stages := []map[string]any{
		{"name": "Лиды", "order": 1},
		{"name": "Квалификация", "order": 2},
		{"name": "Предложение", "order": 3},
		{"name": "Переговоры", "order": 4},
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"stages": stages}})
}

func (s *server) capabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"capabilities": []string{"chat", "reports", "analytics"},
	})
}

func (s *server) configureAssistant(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"status": "configured"})
}

func (s *server) chat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message required"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"response": "Понял: " + body.Message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
