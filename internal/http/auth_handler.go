package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjod/redclaw/internal/auth"
	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/pkg/logger"
)

type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*auth.Session, error)
	Logout(ctx context.Context, refreshToken string) error
}

type AccountService interface {
	Signup(ctx context.Context, in auth.SignupInput) (*domain.User, *auth.Session, error)
	Login(ctx context.Context, email, password string) (*domain.User, *auth.Session, error)
	Profile(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	VerifyEmail(ctx context.Context, userID uuid.UUID, code string) error
}

// CookieConfig controls the lifetime and transport of the session cookies.
type CookieConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Secure     bool
}

type AuthHandler struct {
	refresher TokenRefresher
	accounts  AccountService
	cookies   CookieConfig
	timeout   time.Duration
}

func NewAuthHandler(refresher TokenRefresher, accounts AccountService, cookies CookieConfig, timeout time.Duration) *AuthHandler {
	return &AuthHandler{
		refresher: refresher,
		accounts:  accounts,
		cookies:   cookies,
		timeout:   timeout,
	}
}

type SignupRequestDTO struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyEmailRequestDTO struct {
	Code string `json:"code"`
}

type UserDTO struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsVerified bool   `json:"isVerified"`
}

type AuthResponseDTO struct {
	UserDTO
	Message string `json:"message"`
}

func convertUser(u *domain.User) UserDTO {
	return UserDTO{
		ID:         u.ID.String(),
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		IsVerified: u.IsVerified,
	}
}

// POST /api/v1/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, session, err := h.accounts.Signup(ctx, auth.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	h.setSession(w, session)
	respondJSON(w, http.StatusCreated, AuthResponseDTO{UserDTO: convertUser(user), Message: "User created successfully"})
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, session, err := h.accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}

	h.setSession(w, session)
	respondJSON(w, http.StatusOK, AuthResponseDTO{UserDTO: convertUser(user), Message: "Login successful"})
}

// GET /api/v1/auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, err := h.accounts.Profile(ctx, userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertUser(user))
}

// POST /api/v1/auth/verify-email
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}
	var req VerifyEmailRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.accounts.VerifyEmail(ctx, userID, req.Code); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Email verified successfully"})
}

// POST /api/v1/auth/refresh-token
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := r.Cookie(RefreshTokenCookie)
	if err != nil || c.Value == "" {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "no refresh token provided")
		return
	}

	session, err := h.refresher.Refresh(ctx, c.Value)
	if err != nil {
		handleError(w, r, err)
		return
	}

	h.setSession(w, session)
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Token refreshed successfully"})
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		if err := h.refresher.Logout(ctx, c.Value); err != nil {
			// cookies are cleared regardless; the stored token expires on its own
			logger.FromContext(ctx).Error("logout failed", zap.Error(err))
		}
	}

	h.setCookie(w, AccessTokenCookie, "", -1)
	h.setCookie(w, RefreshTokenCookie, "", -1)
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) setSession(w http.ResponseWriter, session *auth.Session) {
	h.setCookie(w, AccessTokenCookie, session.AccessToken, h.cookies.AccessTTL)
	h.setCookie(w, RefreshTokenCookie, session.RefreshToken, h.cookies.RefreshTTL)
}

// setCookie writes an HttpOnly session cookie; a negative ttl deletes it.
func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	maxAge := -1
	if ttl >= 0 {
		maxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
