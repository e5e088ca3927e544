package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rpupo63/diary-backend/auth"
	"github.com/rpupo63/diary-backend/errs"
	"github.com/rpupo63/diary-backend/models"
	"github.com/rpupo63/diary-backend/services"
)

type authHandler struct {
	responder     Responder
	logger        zerolog.Logger
	renderer      *renderer
	accounts      *services.Accounts
	sessions      *auth.Sessions
	secureCookies bool
}

func newAuthHandler(accounts *services.Accounts, sessions *auth.Sessions, rd *renderer, secureCookies bool) authHandler {
	logger := log.With().Str("handlerName", "authHandler").Logger()

	return authHandler{
		responder:     NewResponder(logger),
		logger:        logger,
		renderer:      rd,
		accounts:      accounts,
		sessions:      sessions,
		secureCookies: secureCookies,
	}
}

type loginForm struct {
	Email string
	Next  string
}

// startSession issues a token for user and stores it in the session cookie.
func (h authHandler) startSession(w http.ResponseWriter, user *models.User) error {
	token, claims, err := h.sessions.Issue(user.ID)
	if err != nil {
		return errs.NewInternalErrorWithCause("issue session", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt.Time,
		MaxAge:   int(time.Until(claims.ExpiresAt.Time).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// login shows and handles the email/password form
func (h authHandler) login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form := loginForm{Next: r.URL.Query().Get("next")}

		if r.Method != http.MethodPost {
			h.renderer.render(w, r, http.StatusOK, "login.html", page{Title: "Log in", Data: form})
			return
		}

		if err := r.ParseForm(); err != nil {
			h.renderer.renderError(w, r, errs.NewBadRequestError("malformed form"))
			return
		}
		form.Email = r.PostForm.Get("email")
		if next := r.PostForm.Get("next"); next != "" {
			form.Next = next
		}

		user, err := h.accounts.Authenticate(r.Context(), form.Email, r.PostForm.Get("password"))
		if err != nil {
			fieldErrs, err := formErrors(err)
			if err != nil {
				h.renderer.renderError(w, r, err)
				return
			}
			h.renderer.render(w, r, http.StatusBadRequest, "login.html", page{Title: "Log in", Errors: fieldErrs, Data: form})
			return
		}

		if err := h.startSession(w, user); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		h.logger.Info().Str("userID", user.ID.String()).Msg("User logged in")
		http.Redirect(w, r, safeNext(form.Next), http.StatusFound)
	}
}

// confirmLogout asks before logging out; only the POST ends the session
func (h authHandler) confirmLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.renderer.render(w, r, http.StatusOK, "logout.html", page{Title: "Log out"})
	}
}

// logout revokes the current session and clears the cookie
func (h authHandler) logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if claims := ctxGetClaims(r.Context()); claims != nil {
			if err := h.sessions.Revoke(r.Context(), claims); err != nil {
				h.logger.Error().Err(err).Msg("Error revoking session")
			}
		}
		http.SetCookie(w, &http.Cookie{
			Name:     auth.CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.secureCookies,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// register creates an account and logs it in right away
func (h authHandler) register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			h.renderer.render(w, r, http.StatusOK, "register.html", page{Title: "Sign up", Data: loginForm{}})
			return
		}

		if err := r.ParseForm(); err != nil {
			h.renderer.renderError(w, r, errs.NewBadRequestError("malformed form"))
			return
		}
		form := services.RegistrationForm{
			Email:     r.PostForm.Get("email"),
			Password1: r.PostForm.Get("password1"),
			Password2: r.PostForm.Get("password2"),
		}

		user, err := h.accounts.Register(r.Context(), form)
		if err != nil {
			fieldErrs, err := formErrors(err)
			if err != nil {
				h.renderer.renderError(w, r, err)
				return
			}
			h.renderer.render(w, r, http.StatusBadRequest, "register.html", page{
				Title:  "Sign up",
				Errors: fieldErrs,
				Data:   loginForm{Email: form.Email},
			})
			return
		}

		if err := h.startSession(w, user); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		h.logger.Info().Str("userID", user.ID.String()).Msg("User registered")
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// issueToken exchanges email and password for a bearer token
func (h authHandler) issueToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TokenRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			h.responder.WriteError(w, errs.NewInvalidJSONError(err))
			return
		}

		user, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		token, claims, err := h.sessions.Issue(user.ID)
		if err != nil {
			h.responder.WriteError(w, errs.NewInternalErrorWithCause("issue token", err))
			return
		}

		h.responder.WriteJSON(w, TokenResponse{
			Token:     token,
			TokenType: "Bearer",
			ExpiresAt: claims.ExpiresAt.Time,
		})
	}
}
