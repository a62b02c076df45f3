package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/insurancepro/marketing/internal/auth"
	"github.com/insurancepro/marketing/internal/domain"
	"github.com/insurancepro/marketing/internal/dispatch"
	"github.com/insurancepro/marketing/internal/service/campaign"
	"github.com/insurancepro/marketing/internal/service/contact"
	"github.com/insurancepro/marketing/internal/service/subscriber"
)

// HandleAdminLogin authenticates an admin and sets the session cookie.
func (h *Handlers) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID, session, err := h.authManager.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	h.authManager.SetSessionCookie(w, sessionID)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"username": session.Username,
	})
}

// HandleAdminLogout destroys the session.
func (h *Handlers) HandleAdminLogout(w http.ResponseWriter, r *http.Request) {
	h.authManager.Logout(r)
	h.authManager.ClearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleDashboard returns the admin dashboard counters.
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	activeSubs, err := h.subscribers.CountActive(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "dashboard unavailable")
		return
	}
	totalCampaigns, sentCampaigns, err := h.campaigns.Stats(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "dashboard unavailable")
		return
	}
	unread, err := h.contacts.CountUnread(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "dashboard unavailable")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{
		"active_subscribers": activeSubs,
		"total_campaigns":    totalCampaigns,
		"sent_campaigns":     sentCampaigns,
		"unread_messages":    unread,
	})
}

// HandleListSubscribers pages through subscribers with an optional status
// filter.
func (h *Handlers) HandleListSubscribers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	subs, total, err := h.subscribers.List(r.Context(), subscriber.ListFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list subscribers")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"subscribers": subs,
		"total":       total,
		"per_page":    limit,
	})
}

// HandleListCampaigns pages through campaigns.
func (h *Handlers) HandleListCampaigns(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	campaigns, total, err := h.campaigns.List(r.Context(), campaign.ListFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaigns": campaigns,
		"total":     total,
		"per_page":  limit,
	})
}

// HandleCreateCampaign creates a draft campaign.
func (h *Handlers) HandleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaign.CreateInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.campaigns.Create(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// HandleGetCampaign returns a single campaign.
func (h *Handlers) HandleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			respondError(w, http.StatusNotFound, "campaign not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load campaign")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// HandleDeleteCampaign deletes a campaign. Sent campaigns are immutable.
func (h *Handlers) HandleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	err := h.campaigns.Delete(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, campaign.ErrNotFound):
		respondError(w, http.StatusNotFound, "campaign not found")
	case errors.Is(err, campaign.ErrImmutable):
		respondError(w, http.StatusConflict, "sent campaigns cannot be deleted")
	default:
		respondError(w, http.StatusInternalServerError, "failed to delete campaign")
	}
}

// HandleSendCampaign dispatches a campaign synchronously and reports the
// tallies. A partially failed send still returns 200: the campaign went out
// to everyone who could receive it.
func (h *Handlers) HandleSendCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tally, err := h.dispatcher.Send(r.Context(), id)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": sendMessage(tally),
			"sent":    tally.Sent,
			"failed":  tally.Failed,
		})
	case errors.Is(err, campaign.ErrNotFound):
		respondError(w, http.StatusNotFound, "campaign not found")
	case errors.Is(err, campaign.ErrAlreadySent):
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Campaign was already sent.",
			"sent":    tally.Sent,
			"failed":  tally.Failed,
		})
	case errors.Is(err, campaign.ErrNoRecipients):
		respondError(w, http.StatusBadRequest, "no active subscribers match this campaign's segment")
	case errors.Is(err, campaign.ErrNotSendable):
		respondError(w, http.StatusConflict, "campaign is not in a sendable state")
	default:
		respondError(w, http.StatusInternalServerError, "send failed")
	}
}

func sendMessage(t dispatch.Tally) string {
	if t.Failed == 0 {
		return "Campaign sent successfully."
	}
	return "Campaign sent with some failures."
}

// HandleSendCampaignAsync enqueues the campaign for background sending.
func (h *Handlers) HandleSendCampaignAsync(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		respondError(w, http.StatusServiceUnavailable, "background sending is not configured")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := h.campaigns.Get(r.Context(), id); err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			respondError(w, http.StatusNotFound, "campaign not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load campaign")
		return
	}

	if err := h.queue.Enqueue(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to enqueue campaign")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"message": "Campaign queued for sending.",
	})
}

// HandlePreviewCampaign returns the rendered email HTML with a placeholder
// unsubscribe recipient.
func (h *Handlers) HandlePreviewCampaign(w http.ResponseWriter, r *http.Request) {
	html, err := h.dispatcher.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			respondError(w, http.StatusNotFound, "campaign not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "preview failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

// HandleScheduleCampaign stamps a future send time on a draft campaign.
func (h *Handlers) HandleScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.campaigns.Schedule(r.Context(), chi.URLParam(r, "id"), req.ScheduledAt)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, campaign.ErrNotFound):
		respondError(w, http.StatusNotFound, "campaign not found")
	case errors.Is(err, campaign.ErrNotSendable):
		respondError(w, http.StatusConflict, "campaign is not in a schedulable state")
	default:
		respondError(w, http.StatusBadRequest, err.Error())
	}
}

// HandleListMessages pages through contact messages.
func (h *Handlers) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	messages, total, err := h.contacts.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if messages == nil {
		messages = []domain.ContactMessage{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"total":    total,
		"per_page": limit,
	})
}

// HandleMarkMessageRead marks a contact message as read.
func (h *Handlers) HandleMarkMessageRead(w http.ResponseWriter, r *http.Request) {
	err := h.contacts.MarkRead(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, contact.ErrNotFound):
		respondError(w, http.StatusNotFound, "message not found")
	default:
		respondError(w, http.StatusInternalServerError, "failed to mark message read")
	}
}
