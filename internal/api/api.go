// CLAUDE:SUMMARY Web surface — health probe, login, and the natural-language chat endpoint
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/opaline/dbbridge/internal/auth"
	"github.com/opaline/dbbridge/internal/chat"
	"github.com/opaline/dbbridge/internal/config"
)

// maxBodySize is the maximum HTTP body size for chat requests.
const maxBodySize = 64 * 1024

// ChatRateLimiter is the rate limiter for POST /api/chat (30 req/60s).
var ChatRateLimiter = NewRateLimiter(30, 60*time.Second)

type API struct {
	chat    *chat.Service
	auth    *auth.Auth
	authCfg config.AuthConfig
	version string
}

func New(chatSvc *chat.Service, a *auth.Auth, authCfg config.AuthConfig, version string) *API {
	return &API{chat: chatSvc, auth: a, authCfg: authCfg, version: version}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("POST /api/login", a.handleLogin)
	mux.HandleFunc("POST /api/chat", RateLimitMiddleware(ChatRateLimiter, a.handleChat))
}

// handleHealth is the liveness probe: fixed payload, no side effects, no auth.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": a.version,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle   string `json:"handle"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if a.authCfg.AdminHandle == "" || a.authCfg.AdminPasswordHash == "" {
		jsonError(w, "login disabled", http.StatusForbidden)
		return
	}
	if req.Handle != a.authCfg.AdminHandle || !auth.CheckPassword(a.authCfg.AdminPasswordHash, req.Password) {
		jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := a.auth.GenerateToken(req.Handle)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, map[string]string{"token": token})
}

func (a *API) handleChat(w http.ResponseWriter, r *http.Request) {
	// Chat is open unless admin credentials are configured.
	if a.authCfg.AdminHandle != "" && a.authCfg.AdminPasswordHash != "" {
		if a.auth.ExtractClaims(r) == nil {
			jsonError(w, "authentication required", http.StatusUnauthorized)
			return
		}
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		jsonError(w, "question is required", http.StatusBadRequest)
		return
	}

	answer, err := a.chat.Ask(r.Context(), req.Question)
	if err != nil {
		slog.Error("chat failed", "error", err)
		jsonError(w, "could not answer the question", http.StatusBadGateway)
		return
	}
	jsonResp(w, http.StatusOK, answer)
}

// --- Helpers ---

func jsonResp(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
