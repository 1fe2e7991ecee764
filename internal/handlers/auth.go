package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/studyplanner/planner/internal/services"
	"github.com/studyplanner/planner/internal/session"
	"github.com/studyplanner/planner/internal/store"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler provides session authentication endpoints.
type AuthHandler struct {
	users    *services.UserService
	sessions *session.Manager
	cookie   CookieConfig
	log      logrus.FieldLogger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(users *services.UserService, sessions *session.Manager, cookie CookieConfig, log logrus.FieldLogger) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "planner_session"
	}
	return &AuthHandler{users: users, sessions: sessions, cookie: cookie, log: log}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, h *AuthHandler) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Get("/whoami", h.WhoAmI)
}

// AccountRouter registers account routes. Callers mount it behind RequireAuth.
func AccountRouter(r chi.Router, h *AuthHandler) {
	r.Delete("/", h.DeleteAccount)
}

// RequireAuth enforces a valid session and injects its claims into context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.verify(r)
		if err != nil {
			if !errors.Is(err, session.ErrInvalidToken) && !errors.Is(err, session.ErrRevoked) && !errors.Is(err, errNoToken) {
				h.log.WithError(err).Error("session check failed")
			}
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), contextSessionKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Register creates an account and starts a session for it.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		var vErr *services.ValidationError
		switch {
		case errors.As(err, &vErr):
			writeError(w, http.StatusBadRequest, vErr.Error())
		case errors.Is(err, services.ErrEmailTaken):
			writeError(w, http.StatusConflict, "email already registered")
		default:
			h.log.WithError(err).Error("failed to create user")
			writeError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	token, err := h.startSession(w, user.ID)
	if err != nil {
		h.log.WithError(err).Error("failed to create session")
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, AuthResponse{Success: true, UserID: user.ID, Email: user.Email, Token: token})
}

// Login verifies credentials and starts a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.log.WithError(err).Error("failed to authenticate")
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	token, err := h.startSession(w, user.ID)
	if err != nil {
		h.log.WithError(err).Error("failed to create session")
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, UserID: user.ID, Email: user.Email, Token: token})
}

// Logout revokes the current session, if any, and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if claims, err := h.verify(r); err == nil {
		if err := h.sessions.Revoke(r.Context(), claims); err != nil {
			h.log.WithError(err).WithField("user_id", claims.UserID).Error("failed to revoke session")
			writeError(w, http.StatusInternalServerError, "failed to log out")
			return
		}
	}
	h.clearCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// WhoAmI reports whether the request carries a live session.
func (h *AuthHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	claims, err := h.verify(r)
	if err != nil {
		writeJSON(w, http.StatusOK, WhoAmIResponse{LoggedIn: false})
		return
	}

	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusOK, WhoAmIResponse{LoggedIn: false})
			return
		}
		h.log.WithError(err).Error("failed to load user")
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, WhoAmIResponse{LoggedIn: true, UserID: user.ID, Email: user.Email})
}

// DeleteAccount removes the user with every note and event, then ends the session.
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.users.Delete(r.Context(), claims.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		h.log.WithError(err).WithField("user_id", claims.UserID).Error("failed to delete account")
		writeError(w, http.StatusInternalServerError, "failed to delete account")
		return
	}

	if err := h.sessions.Revoke(r.Context(), claims); err != nil {
		h.log.WithError(err).WithField("user_id", claims.UserID).Warn("failed to revoke session of deleted account")
	}
	h.clearCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
	Email   string `json:"email"`
	Token   string `json:"token"`
}

type WhoAmIResponse struct {
	LoggedIn bool   `json:"loggedIn"`
	UserID   string `json:"userId,omitempty"`
	Email    string `json:"email,omitempty"`
}

var errNoToken = errors.New("missing session token")

func (h *AuthHandler) verify(r *http.Request) (session.Claims, error) {
	token, err := h.sessionToken(r)
	if err != nil {
		return session.Claims{}, err
	}
	return h.sessions.Verify(r.Context(), token)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, userID string) (string, error) {
	token, claims, err := h.sessions.Issue(userID)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt,
		MaxAge:   int(h.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionToken reads the session cookie, falling back to a Bearer header.
func (h *AuthHandler) sessionToken(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(h.cookie.Name); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return bearerToken(r)
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errNoToken
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errNoToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errNoToken
	}
	return token, nil
}
