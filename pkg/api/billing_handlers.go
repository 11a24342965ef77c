package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/fgb-andu/reelprompt-api/pkg/service/auth"
	"github.com/fgb-andu/reelprompt-api/pkg/service/billing"
	"go.uber.org/zap"
)

type CheckoutRequest struct {
	PlanID string `json:"planId"`
}

type CheckoutResponse struct {
	OK        bool   `json:"ok"`
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type PortalResponse struct {
	OK  bool   `json:"ok"`
	URL string `json:"url"`
}

type WebhookResponse struct {
	OK       bool `json:"ok"`
	Received bool `json:"received"`
}

func (h *Handler) HandleCreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	var req CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess, err := h.billing.CreateCheckoutSession(r.Context(), id.ID, req.PlanID)
	if err != nil {
		h.respondBillingError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, CheckoutResponse{OK: true, SessionID: sess.ID, URL: sess.URL})
}

func (h *Handler) HandlePortalSession(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	url, err := h.billing.CreatePortalSession(r.Context(), id.ID)
	if err != nil {
		h.respondBillingError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, PortalResponse{OK: true, URL: url})
}

// HandleBillingWebhook reads the raw body, since the signature covers the
// exact bytes Stripe sent.
func (h *Handler) HandleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Unable to read request body")
		return
	}

	res, err := h.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, billing.ErrInvalidSignature):
		respondWithError(w, http.StatusBadRequest, "Invalid signature")
		return
	case errors.Is(err, billing.ErrInvalidPayload):
		respondWithError(w, http.StatusBadRequest, "Invalid payload")
		return
	case err != nil:
		h.internalError(w, r, "webhook processing failed", err)
		return
	}

	h.log.Debug("webhook acknowledged", zap.String("event_type", res.EventType), zap.Bool("handled", res.Handled), zap.String("outcome", res.Outcome))
	respondWithJSON(w, http.StatusOK, WebhookResponse{OK: true, Received: true})
}

func (h *Handler) respondBillingError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *billing.ProviderError
	switch {
	case errors.Is(err, billing.ErrUnknownPlan):
		respondWithError(w, http.StatusBadRequest, "Unknown plan")
	case errors.Is(err, billing.ErrNoCustomer):
		respondWithError(w, http.StatusBadRequest, "No billing account found. Subscribe first.")
	case errors.As(err, &perr):
		respondWithError(w, http.StatusBadRequest, perr.Message)
	case errors.Is(err, billing.ErrDisabled):
		h.internalError(w, r, "billing requested but not configured", err)
	default:
		h.internalError(w, r, "billing request failed", err)
	}
}
