package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/marketloop/auth-server/accounts"
	"github.com/marketloop/auth-server/session"
)

// RegisterRequest is the signup payload.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is the login/refresh response body. The access token rides in
// the body as well as its cookie so SPA clients can hold it in memory.
type AuthResponse struct {
	AccessToken string        `json:"accessToken"`
	User        session.Actor `json:"user"`
}

// RegisterHandler creates a new account. Registration does not log the
// account in; the client follows up with a login call.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Email == "" || req.Password == "" {
			writeJSONError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		role := accounts.Role(req.Role)
		if req.Role == "" {
			role = accounts.RoleBuyer
		}
		if !accounts.ValidRole(role) {
			writeJSONError(w, http.StatusBadRequest, "invalid role")
			return
		}

		if err := accounts.ValidatePasswordStrength(req.Password); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		hash, err := accounts.HashPassword(req.Password)
		if err != nil {
			writeInternalError(w, errors.Wrap(err, "[RegisterHandler] HashPassword"))
			return
		}

		acct := &accounts.Account{
			ID:           uuid.New().String(),
			Email:        req.Email,
			PasswordHash: hash,
			Name:         req.Name,
			PrimaryRole:  role,
			Roles:        []accounts.Role{role},
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.sessions.Repos().Accounts.Create(r.Context(), acct); err != nil {
			if errors.Is(err, accounts.ErrEmailTaken) {
				writeJSONError(w, http.StatusConflict, "email already registered")
				return
			}
			writeInternalError(w, errors.Wrap(err, "[RegisterHandler] Create"))
			return
		}

		writeJSON(w, http.StatusCreated, acct)
	}
}

// LoginHandler authenticates credentials and sets the three auth cookies.
// The device fingerprint captured here is what every later refresh must
// match exactly.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Email == "" || req.Password == "" {
			writeJSONError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		creds, err := s.sessions.Login(r.Context(), session.LoginInput{
			Email:         req.Email,
			Password:      req.Password,
			IP:            clientIP(r),
			UserAgent:     r.UserAgent(),
			AnonSessionID: cookieValue(r, CookieGuestSession),
		})
		if err != nil {
			writeSessionError(w, err)
			return
		}

		setAuthCookies(w, creds)
		writeJSON(w, http.StatusOK, AuthResponse{AccessToken: creds.AccessToken, User: creds.Actor})
	}
}

// RefreshTokenHandler rotates the token pair. Cookie presence and the csrf
// double-submit check run before the service is consulted; the refresh token
// itself comes from the HttpOnly cookie, never the body.
func (s *Server) RefreshTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refreshToken := cookieValue(r, CookieRefreshToken)
		if refreshToken == "" {
			writeSessionError(w, session.ErrMissingRefreshToken)
			return
		}
		if err := session.CheckCSRF(r.Header.Get(HeaderCSRFToken), cookieValue(r, CookieCSRFToken)); err != nil {
			writeSessionError(w, err)
			return
		}

		creds, err := s.sessions.Refresh(r.Context(), session.RefreshInput{
			Token:     refreshToken,
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		})
		if err != nil {
			// The session may have been revoked server-side. Drop the client's
			// cookies too so it stops retrying with dead tokens.
			clearAuthCookies(w)
			writeSessionError(w, err)
			return
		}

		setAuthCookies(w, creds)
		writeJSON(w, http.StatusOK, AuthResponse{AccessToken: creds.AccessToken, User: creds.Actor})
	}
}

// LogoutHandler clears the server-side refresh slot and expires all auth
// cookies. The double-submit check guards it like refresh; with no csrf
// header and no cookie the comparison passes, so a cookie-less logout stays
// an idempotent success.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := session.CheckCSRF(r.Header.Get(HeaderCSRFToken), cookieValue(r, CookieCSRFToken)); err != nil {
			writeSessionError(w, err)
			return
		}

		if err := s.sessions.Logout(r.Context(), cookieValue(r, CookieRefreshToken)); err != nil {
			log.Err(err).Msg("logout slot clear failed")
		}
		clearAuthCookies(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

// MeHandler returns the normalized actor for the authenticated account.
// RequireAuth has already verified the access token and stashed the claims.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := r.Context().Value(ContextKeyAccountID).(string)
		if !ok || accountID == "" {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		actor, err := s.sessions.ActorFor(r.Context(), accountID)
		if err != nil {
			if errors.Is(err, session.ErrAccountNotFound) {
				writeJSONError(w, http.StatusNotFound, "account not found")
				return
			}
			writeInternalError(w, errors.Wrap(err, "[MeHandler] ActorFor"))
			return
		}

		writeJSON(w, http.StatusOK, actor)
	}
}

// HealthzHandler is the liveness probe.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("response encode failed")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeInternalError logs the wrapped cause and returns it in the body
// alongside a stable message, so frontend error reporting sees the detail.
func writeInternalError(w http.ResponseWriter, err error) {
	log.Err(err).Msg("internal server error")
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"message": "internal server error",
		"error":   err.Error(),
	})
}

// writeSessionError maps session errors onto HTTP statuses. Each forbidden
// sub-cause keeps its own message so clients can distinguish a revocation
// from an expired token.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrAccountNotFound):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrInvalidCredentials):
		writeJSONError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, session.ErrLoginRateLimited):
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, session.ErrMissingRefreshToken),
		errors.Is(err, session.ErrCSRFMismatch),
		errors.Is(err, session.ErrRefreshInvalid),
		errors.Is(err, session.ErrTokenReuse),
		errors.Is(err, session.ErrDeviceMismatch),
		errors.Is(err, session.ErrUsageExceeded):
		writeJSONError(w, http.StatusForbidden, err.Error())
	default:
		writeInternalError(w, err)
	}
}
