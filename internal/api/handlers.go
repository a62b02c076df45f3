package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/insurancepro/marketing/internal/auth"
	"github.com/insurancepro/marketing/internal/dispatch"
	"github.com/insurancepro/marketing/internal/service/campaign"
	"github.com/insurancepro/marketing/internal/service/contact"
	"github.com/insurancepro/marketing/internal/service/subscriber"
	"github.com/insurancepro/marketing/internal/token"
)

const defaultPageSize = 20

// Handlers holds the services the HTTP layer dispatches into.
type Handlers struct {
	subscribers *subscriber.Service
	campaigns   *campaign.Service
	contacts    *contact.Service
	dispatcher  *dispatch.Dispatcher
	queue       *dispatch.Queue
	codec       *token.Codec
	authManager *auth.Manager
}

// NewHandlers wires the HTTP handlers. queue may be nil, in which case the
// async send endpoint reports the background queue as unavailable.
func NewHandlers(
	subscribers *subscriber.Service,
	campaigns *campaign.Service,
	contacts *contact.Service,
	dispatcher *dispatch.Dispatcher,
	queue *dispatch.Queue,
	codec *token.Codec,
	authManager *auth.Manager,
) *Handlers {
	return &Handlers{
		subscribers: subscribers,
		campaigns:   campaigns,
		contacts:    contacts,
		dispatcher:  dispatcher,
		queue:       queue,
		codec:       codec,
		authManager: authManager,
	}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleSubscribe processes the public signup form.
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email         string `json:"email"`
		Name          string `json:"name"`
		InsuranceType string `json:"insurance_type"`
	}
	if isFormPost(r) {
		if err := r.ParseForm(); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Email = r.PostFormValue("email")
		req.Name = r.PostFormValue("name")
		req.InsuranceType = r.PostFormValue("insurance_type")
	} else if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := h.subscribers.Subscribe(r.Context(), req.Email, req.Name, req.InsuranceType)
	if err != nil {
		if errors.Is(err, subscriber.ErrInvalidEmail) {
			respondError(w, http.StatusBadRequest, "please provide a valid email address")
			return
		}
		respondError(w, http.StatusInternalServerError, "subscription failed")
		return
	}

	messages := map[subscriber.Outcome]string{
		subscriber.OutcomeSubscribed:        "Thank you for subscribing!",
		subscriber.OutcomeReactivated:       "Welcome back! Your subscription has been reactivated.",
		subscriber.OutcomeAlreadySubscribed: "You're already subscribed.",
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  string(outcome),
		"message": messages[outcome],
	})
}

// HandleUnsubscribe verifies the token from an email footer link and
// unsubscribes its recipient. The response is a small HTML page since the
// link is opened in a browser.
func (h *Handlers) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")

	email, err := h.codec.Verify(tok)
	if err != nil {
		unsubscribePage(w, http.StatusBadRequest, "This unsubscribe link is invalid or has expired.")
		return
	}

	if err := h.subscribers.Unsubscribe(r.Context(), email); err != nil {
		if errors.Is(err, subscriber.ErrNotFound) {
			unsubscribePage(w, http.StatusNotFound, "This unsubscribe link is invalid or has expired.")
			return
		}
		unsubscribePage(w, http.StatusInternalServerError, "Something went wrong. Please try again later.")
		return
	}

	unsubscribePage(w, http.StatusOK, "You have been unsubscribed. You will no longer receive emails from us.")
}

func unsubscribePage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>InsurancePro</title></head>
<body style="font-family: Arial, sans-serif; text-align: center; padding: 60px 20px;">
<h2>InsurancePro</h2>
<p>%s</p>
</body>
</html>`, message)
}

// HandleContact processes the public contact form.
func (h *Handlers) HandleContact(w http.ResponseWriter, r *http.Request) {
	var req contact.SubmitInput
	if isFormPost(r) {
		if err := r.ParseForm(); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Name = r.PostFormValue("name")
		req.Email = r.PostFormValue("email")
		req.Phone = r.PostFormValue("phone")
		req.Subject = r.PostFormValue("subject")
		req.Message = r.PostFormValue("message")
	} else if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.contacts.Submit(r.Context(), req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Thank you for your message. We'll be in touch soon.",
	})
}

// HandleSubscriberCount serves the public counter shown on the homepage.
func (h *Handlers) HandleSubscriberCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.subscribers.CountActive(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "count unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"count": n})
}

// pageParams reads ?page= style pagination, 1-based, 20 per page.
func pageParams(r *http.Request) (limit, offset int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	return defaultPageSize, (page - 1) * defaultPageSize
}
