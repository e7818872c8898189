package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/davyttu/confidance-crypto/internal/middleware"
	"github.com/davyttu/confidance-crypto/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Health reports that the API is up
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetRecurring returns a recurring payment and its event log
func (h *Handler) GetRecurring(w http.ResponseWriter, r *http.Request) {
	details, err := h.svc.GetRecurring(r.Context(), mux.Vars(r)["contract"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// GetScheduled returns a scheduled payment
func (h *Handler) GetScheduled(w http.ResponseWriter, r *http.Request) {
	payment, err := h.svc.GetScheduled(r.Context(), mux.Vars(r)["contract"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// GetWalletPayments lists the payments of a wallet
func (h *Handler) GetWalletPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.svc.GetWalletPayments(r.Context(), mux.Vars(r)["wallet"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

// GetEURRate returns the USD per EUR reference rate
func (h *Handler) GetEURRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.svc.EURRate(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

// CreatePaymentLink creates a link for the authenticated wallet
func (h *Handler) CreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	var in service.PaymentLinkInput
	if !decodeJSON(w, r, &in) {
		return
	}

	link, err := h.svc.CreatePaymentLink(r.Context(), middleware.GetWallet(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

// RegisterScheduled mirrors a scheduled payment deployed by the authenticated wallet
func (h *Handler) RegisterScheduled(w http.ResponseWriter, r *http.Request) {
	var in service.ScheduledInput
	if !decodeJSON(w, r, &in) {
		return
	}

	payment, err := h.svc.RegisterScheduled(r.Context(), middleware.GetWallet(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

// RegisterRecurring mirrors a recurring payment deployed by the authenticated wallet
func (h *Handler) RegisterRecurring(w http.ResponseWriter, r *http.Request) {
	var in service.RecurringInput
	if !decodeJSON(w, r, &in) {
		return
	}

	payment, err := h.svc.RegisterRecurring(r.Context(), middleware.GetWallet(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

// GetPaymentLink returns a payment link by id
func (h *Handler) GetPaymentLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.svc.GetPaymentLink(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

// ListNotifications returns the inbox of the authenticated wallet
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListNotifications(r.Context(), middleware.GetWallet(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// MarkNotificationRead marks one notification of the authenticated wallet as read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid notification id"})
		return
	}
	if err := h.svc.MarkNotificationRead(r.Context(), id, middleware.GetWallet(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 64 << 10

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAddress), errors.Is(err, service.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, service.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, service.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, service.ErrExpired):
		writeJSON(w, http.StatusGone, errorBody{Error: "payment link expired"})
	default:
		h.log.Errorf("%s %s failed: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
