package handlers

import (
	"net/http"

	apierrors "github.com/pribylovaa/go-weibo-monitor/internal/errors"
	"github.com/pribylovaa/go-weibo-monitor/internal/models"
)

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in models.LoginRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, errInvalidBody())
		return
	}

	res, err := h.Session.Login(r.Context(), in.Username, in.Password, in.RememberMe)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in models.RegisterForm
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, errInvalidBody())
		return
	}

	ack, err := h.Session.Register(r.Context(), in.Input())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, ack)
}

// Logout — локальное состояние очищается даже при ошибке бэкенда.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	ack, err := h.Session.Logout(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ack)
}

func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.CheckResponse{
		Authenticated: h.Session.CheckAuthenticated(r.Context()),
	})
}

func (h *Handlers) State(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.Session.StoredUser(ctx)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.StateResponse{
		Authenticated:      h.Session.Authenticated(ctx),
		RememberedUsername: h.Session.RememberedUsername(ctx),
		User:               user,
	})
}

func (h *Handlers) User(w http.ResponseWriter, r *http.Request) {
	user, err := h.Session.CurrentUser(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var in models.ChangePasswordRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, errInvalidBody())
		return
	}

	ack, err := h.Session.ChangePassword(r.Context(), in.Username, in.NewPassword)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ack)
}
