package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/leafsii/post-api/internal/posts"
	"github.com/leafsii/post-api/internal/session"
	"go.uber.org/zap"
)

// HealthChecker reports store readiness.
type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}

type Handler struct {
	posts        *posts.Service
	sessions     *session.Manager
	auth         *session.Authenticator
	events       http.Handler
	store        HealthChecker
	logger       *zap.SugaredLogger
	maxBodyBytes int64
}

func NewHandler(
	postsSvc *posts.Service,
	sessions *session.Manager,
	auth *session.Authenticator,
	events http.Handler,
	store HealthChecker,
	logger *zap.SugaredLogger,
	maxBodyBytes int64,
) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &Handler{
		posts:        postsSvc,
		sessions:     sessions,
		auth:         auth,
		events:       events,
		store:        store,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// HandlePost serves every method on the post route.
func (h *Handler) HandlePost(w http.ResponseWriter, r *http.Request) {
	rs := h.respond(w, r)

	_, authenticated := session.FromContext(r.Context()).Get(session.KeyUser)
	body := h.readBody(w, r)

	resp := h.posts.Dispatch(r.Context(), r.Method, authenticated, body)
	rs.JSON(resp.Status, resp.Body)
}

// readBody decodes a JSON object. Anything else reads as an empty object.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) posts.Body {
	if r.Body == nil || r.Body == http.NoBody {
		return posts.Body{}
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.logger.Debugw("Failed to read request body", "request_id", middleware.GetReqID(r.Context()), "error", err)
		return posts.Body{}
	}
	if len(raw) == 0 {
		return posts.Body{}
	}

	var body posts.Body
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		h.logger.Debugw("Request body is not a JSON object", "request_id", middleware.GetReqID(r.Context()))
		return posts.Body{}
	}
	return body
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	Type       string `json:"type"`
	IsLoggedIn bool   `json:"isLoggedIn"`
	User       string `json:"user,omitempty"`
}

type errorResponse struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Text        string `json:"text,omitempty"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	rs := h.respond(w, r)

	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes)).Decode(&req); err != nil || req.Username == "" {
		rs.JSON(http.StatusBadRequest, errorResponse{Type: "error", Description: "Invalid parameters"})
		return
	}

	if err := h.auth.Verify(req.Username, req.Password); err != nil {
		h.logger.Infow("Login rejected", "request_id", middleware.GetReqID(r.Context()), "user", req.Username)
		rs.JSON(http.StatusUnauthorized, errorResponse{Type: "error", Description: "Invalid credentials"})
		return
	}

	s := session.FromContext(r.Context())
	err := h.sessions.Regenerate(r.Context(), s)
	if err == nil {
		s.Set(session.KeyUser, req.Username)
		err = h.sessions.Save(r.Context(), w, s)
	}
	if err != nil {
		h.logger.Errorw("Failed to save session", "request_id", middleware.GetReqID(r.Context()), "error", err)
		rs.JSON(http.StatusFailedDependency, errorResponse{Type: "error", Description: "Error session store", Text: err.Error()})
		return
	}

	rs.JSON(http.StatusOK, userResponse{Type: "echo", IsLoggedIn: true, User: req.Username})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	rs := h.respond(w, r)

	if err := h.sessions.Destroy(r.Context(), w, session.FromContext(r.Context())); err != nil {
		h.logger.Errorw("Failed to destroy session", "request_id", middleware.GetReqID(r.Context()), "error", err)
		rs.JSON(http.StatusFailedDependency, errorResponse{Type: "error", Description: "Error session store", Text: err.Error()})
		return
	}
	rs.JSON(http.StatusOK, userResponse{Type: "echo", IsLoggedIn: false})
}

func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	user, ok := session.FromContext(r.Context()).User()
	h.respond(w, r).JSON(http.StatusOK, userResponse{Type: "echo", IsLoggedIn: ok, User: user})
}

func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	h.events.ServeHTTP(w, r)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var problems []string
	if !h.store.IsHealthy(ctx) {
		problems = append(problems, "store")
	}
	if err := h.sessions.Ping(ctx); err != nil {
		problems = append(problems, "sessions")
	}

	if len(problems) > 0 {
		h.logger.Warnw("Readiness check failed", "unhealthy", problems)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("NOT READY"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request) *responder {
	return newResponder(w, h.logger, middleware.GetReqID(r.Context()))
}
