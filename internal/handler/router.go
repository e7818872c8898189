package handler

import (
	"net/http"

	"github.com/davyttu/confidance-crypto/internal/auth"
	"github.com/davyttu/confidance-crypto/internal/middleware"
	"github.com/gorilla/mux"
)

// NewRouter registers every API route on a new router
func NewRouter(h *Handler, jwtManager *auth.JWTManager) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logging(h.log))

	// Public routes
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/recurring/{contract}", h.GetRecurring).Methods("GET")
	r.HandleFunc("/scheduled/{contract}", h.GetScheduled).Methods("GET")
	r.HandleFunc("/payments/{wallet}", h.GetWalletPayments).Methods("GET")
	r.HandleFunc("/payment-links/{id}", h.GetPaymentLink).Methods("GET")
	r.HandleFunc("/rates/eur", h.GetEURRate).Methods("GET")

	// Protected routes
	authed := middleware.AuthMiddleware(jwtManager)
	r.Handle("/scheduled", authed(http.HandlerFunc(h.RegisterScheduled))).Methods("POST")
	r.Handle("/recurring", authed(http.HandlerFunc(h.RegisterRecurring))).Methods("POST")
	r.Handle("/payment-links", authed(http.HandlerFunc(h.CreatePaymentLink))).Methods("POST")
	r.Handle("/notifications", authed(http.HandlerFunc(h.ListNotifications))).Methods("GET")
	r.Handle("/notifications/{id}/read", authed(http.HandlerFunc(h.MarkNotificationRead))).Methods("POST")

	return r
}
