package http

import (
	"encoding/json"
	"net/http"

	"github.com/dianalab/diana/internal/logger"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, true)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, false)
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, register bool) {
	if h.account == nil {
		writeError(w, http.StatusServiceUnavailable, "accounts are not configured")
		return
	}

	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid credentials payload")
		return
	}
	if creds.Email == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	var err error
	if register {
		_, err = h.account.SignUp(r.Context(), creds.Email, creds.Password, creds.Name)
	} else {
		_, err = h.account.SignIn(r.Context(), creds.Email, creds.Password)
	}
	if err != nil {
		logger.FromRequest(r).Warn().Err(err).Str("email", creds.Email).Msg("authentication failed")
		writeError(w, statusFromError(err), "authentication failed")
		return
	}

	// Premium may have changed with the account; the stored flag keeps
	// working offline.
	if premium := h.account.IsPremium(); premium {
		if err := h.ledger.SetPremium(true); err != nil {
			logger.FromRequest(r).Error().Err(err).Msg("premium flag persistence failed")
		}
	}

	profile, err := h.account.Profile(r.Context())
	if err != nil {
		writeError(w, statusFromError(err), "profile fetch failed")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if h.account == nil {
		writeError(w, http.StatusServiceUnavailable, "accounts are not configured")
		return
	}

	if err := h.account.SignOut(r.Context()); err != nil {
		writeError(w, statusFromError(err), "sign out failed")
		return
	}
	if err := h.ledger.SetPremium(false); err != nil {
		logger.FromRequest(r).Error().Err(err).Msg("premium flag persistence failed")
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	if h.account == nil {
		writeError(w, http.StatusServiceUnavailable, "accounts are not configured")
		return
	}

	profile, err := h.account.Profile(r.Context())
	if err != nil {
		writeError(w, statusFromError(err), "profile unavailable")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
