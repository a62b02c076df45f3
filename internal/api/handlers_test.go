package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insurancepro/marketing/internal/auth"
	"github.com/insurancepro/marketing/internal/dispatch"
	"github.com/insurancepro/marketing/internal/domain"
	"github.com/insurancepro/marketing/internal/service/campaign"
	"github.com/insurancepro/marketing/internal/service/contact"
	"github.com/insurancepro/marketing/internal/service/subscriber"
	"github.com/insurancepro/marketing/internal/token"
)

// In-memory repositories backing the full handler stack.

type memSubRepo struct {
	mu   sync.Mutex
	subs map[string]*domain.Subscriber
}

func newMemSubRepo() *memSubRepo { return &memSubRepo{subs: make(map[string]*domain.Subscriber)} }

func (m *memSubRepo) GetByEmail(_ context.Context, email string) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[email]
	if !ok {
		return nil, subscriber.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubRepo) Create(_ context.Context, s *domain.Subscriber) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subs[s.Email] = &cp
	return s.ID, nil
}

func (m *memSubRepo) UpdateStatus(_ context.Context, email string, status domain.SubscriberStatus, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[email]
	if !ok {
		return subscriber.ErrNotFound
	}
	s.Status = status
	if name != "" {
		s.Name = name
	}
	return nil
}

func (m *memSubRepo) List(_ context.Context, f subscriber.ListFilter) ([]domain.Subscriber, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Subscriber
	for _, s := range m.subs {
		if f.Status != "" && f.Status != "all" && string(s.Status) != f.Status {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, len(out), nil
}

func (m *memSubRepo) ListBySegment(_ context.Context, seg domain.Segment) ([]domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Subscriber
	for _, s := range m.subs {
		if s.Status == domain.SubscriberActive || (seg == domain.SegmentAll && s.Status == domain.SubscriberLegacy) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSubRepo) CountActive(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.subs {
		if s.Status == domain.SubscriberActive {
			n++
		}
	}
	return n, nil
}

func (m *memSubRepo) TouchLastCampaign(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.ID == id {
			t := at
			s.LastCampaignAt = &t
		}
	}
	return nil
}

type memCampRepo struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
}

func newMemCampRepo() *memCampRepo { return &memCampRepo{campaigns: make(map[string]*domain.Campaign)} }

func (m *memCampRepo) Get(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCampRepo) List(_ context.Context, _ campaign.ListFilter) ([]domain.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memCampRepo) Create(_ context.Context, c *domain.Campaign) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.campaigns[c.ID] = &cp
	return c.ID, nil
}

func (m *memCampRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return campaign.ErrNotFound
	}
	delete(m.campaigns, id)
	return nil
}

func (m *memCampRepo) UpdateStatus(_ context.Context, id string, status domain.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *memCampRepo) MarkSending(_ context.Context, id string, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if c.Status == domain.CampaignSent {
		return campaign.ErrNotSendable
	}
	c.Status = domain.CampaignSending
	c.TotalRecipients = total
	return nil
}

func (m *memCampRepo) MarkCompleted(_ context.Context, id string, status domain.CampaignStatus, sent, failed int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	c.Status = status
	c.SentCount = sent
	c.FailedCount = failed
	t := at
	c.SentAt = &t
	return nil
}

func (m *memCampRepo) SetSchedule(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	c.Status = domain.CampaignScheduled
	t := at
	c.ScheduledAt = &t
	return nil
}

func (m *memCampRepo) DueScheduled(_ context.Context, now time.Time) ([]domain.Campaign, error) {
	return nil, nil
}

func (m *memCampRepo) Stats(_ context.Context) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total, sent := 0, 0
	for _, c := range m.campaigns {
		total++
		if c.Status == domain.CampaignSent {
			sent++
		}
	}
	return total, sent, nil
}

type memContactRepo struct {
	mu       sync.Mutex
	messages map[string]*domain.ContactMessage
}

func newMemContactRepo() *memContactRepo {
	return &memContactRepo{messages: make(map[string]*domain.ContactMessage)}
}

func (m *memContactRepo) Create(_ context.Context, msg *domain.ContactMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.messages[msg.ID] = &cp
	return msg.ID, nil
}

func (m *memContactRepo) List(_ context.Context, _, _ int) ([]domain.ContactMessage, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ContactMessage
	for _, msg := range m.messages {
		out = append(out, *msg)
	}
	return out, len(out), nil
}

func (m *memContactRepo) MarkRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return contact.ErrNotFound
	}
	msg.IsRead = true
	return nil
}

func (m *memContactRepo) CountUnread(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if !msg.IsRead {
			n++
		}
	}
	return n, nil
}

type memAdminStore struct{ admin *domain.Admin }

func (m *memAdminStore) GetByUsername(_ context.Context, username string) (*domain.Admin, error) {
	if m.admin == nil || m.admin.Username != username {
		return nil, auth.ErrAdminNotFound
	}
	return m.admin, nil
}

func (m *memAdminStore) UpdateLastLogin(_ context.Context, _ string, _ time.Time) error { return nil }

type recordingTransport struct {
	mu        sync.Mutex
	delivered []string
	fail      bool
}

func (t *recordingTransport) Deliver(_ context.Context, to, _, _, _ string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delivered = append(t.delivered, to)
	return !t.fail
}

type testEnv struct {
	handler   http.Handler
	subRepo   *memSubRepo
	campRepo  *memCampRepo
	transport *recordingTransport
	codec     *token.Codec
	auth      *auth.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	subRepo := newMemSubRepo()
	campRepo := newMemCampRepo()
	contactRepo := newMemContactRepo()

	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	adminStore := &memAdminStore{admin: &domain.Admin{
		ID: "admin-1", Username: "admin", PasswordHash: hash, IsActive: true,
	}}

	subs := subscriber.NewService(subRepo)
	camps := campaign.NewService(campRepo)
	contacts := contact.NewService(contactRepo)
	codec := token.NewCodec([]byte("test-secret"))
	transport := &recordingTransport{}
	dispatcher := dispatch.New(camps, subs, codec, transport, "https://example.com", 2)
	authManager := auth.NewManager(adminStore, "admin_session", 30*time.Minute)

	h := NewHandlers(subs, camps, contacts, dispatcher, nil, codec, authManager)
	return &testEnv{
		handler:   SetupRoutes(h, nil),
		subRepo:   subRepo,
		campRepo:  campRepo,
		transport: transport,
		codec:     codec,
		auth:      authManager,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/admin/login", map[string]string{
		"username": "admin", "password": "hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == "admin_session" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestSubscribeEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/subscribe", map[string]string{
		"email": "Jane@Example.com", "name": "Jane", "insurance_type": "auto",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "subscribed", resp["status"])

	// Stored lowercased.
	_, err := env.subRepo.GetByEmail(context.Background(), "jane@example.com")
	assert.NoError(t, err)
}

func TestSubscribeEndpointFormEncoded(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doForm(t, "/subscribe", url.Values{
		"email":          {"jane@example.com"},
		"name":           {"Jane"},
		"insurance_type": {"auto"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	s, err := env.subRepo.GetByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "auto", s.InsuranceType)
}

func TestContactEndpointFormEncoded(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doForm(t, "/contact", url.Values{
		"name":    {"Jane"},
		"email":   {"jane@example.com"},
		"subject": {"Quote"},
		"message": {"How much for auto coverage?"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Thank you")
}

func TestSubscribeEndpointInvalidEmail(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/subscribe", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnsubscribeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/subscribe", map[string]string{"email": "jane@example.com"})

	tok := env.codec.Issue("jane@example.com")
	rec := env.do(t, http.MethodGet, "/unsubscribe/"+tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsubscribed")

	s, err := env.subRepo.GetByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriberUnsubscribed, s.Status)
}

func TestUnsubscribeEndpointBadToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/unsubscribe/garbage-token", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscriberCountEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/subscribe", map[string]string{"email": "a@example.com"})
	env.do(t, http.MethodPost, "/subscribe", map[string]string{"email": "b@example.com"})

	rec := env.do(t, http.MethodGet, "/api/subscribers/count", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":2}`, rec.Body.String())
}

func TestContactEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/contact", map[string]string{
		"name": "Jane", "email": "jane@example.com",
		"subject": "Quote", "message": "How much for auto coverage?",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	cookie := env.login(t)
	rec = env.do(t, http.MethodGet, "/admin/messages", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
}

func TestAdminRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/admin/dashboard", "/admin/subscribers", "/admin/campaigns"} {
		rec := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAdminLoginBadPassword(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/admin/login", map[string]string{
		"username": "admin", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCampaignSendFlow(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		env.do(t, http.MethodPost, "/subscribe", map[string]string{"email": email})
	}

	rec := env.do(t, http.MethodPost, "/admin/campaigns", map[string]string{
		"name": "Promo", "subject": "Save now", "content": "<p>Deals!</p>",
		"template": "promotional", "segment": "all",
	}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created domain.Campaign
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = env.do(t, http.MethodPost, "/admin/campaigns/"+created.ID+"/send", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Sent    int  `json:"sent"`
		Failed  int  `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Sent)
	assert.Equal(t, 0, resp.Failed)

	c, err := env.campRepo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignSent, c.Status)

	// A second send is a no-op, not a resend.
	rec = env.do(t, http.MethodPost, "/admin/campaigns/"+created.ID+"/send", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	env.transport.mu.Lock()
	defer env.transport.mu.Unlock()
	assert.Len(t, env.transport.delivered, 3)
}

func TestResendCampaignStuckInSending(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	env.do(t, http.MethodPost, "/subscribe", map[string]string{"email": "a@example.com"})
	rec := env.do(t, http.MethodPost, "/admin/campaigns", map[string]string{
		"name": "Promo", "subject": "Save now", "content": "<p>Deals!</p>",
	}, cookie)
	var created domain.Campaign
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// A crash mid-send leaves the campaign in sending. It must still be
	// dispatchable on retry.
	require.NoError(t, env.campRepo.UpdateStatus(context.Background(), created.ID, domain.CampaignSending))

	rec = env.do(t, http.MethodPost, "/admin/campaigns/"+created.ID+"/send", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	c, err := env.campRepo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignSent, c.Status)
	assert.Equal(t, 1, c.SentCount)
}

func TestCampaignSendNoRecipients(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	rec := env.do(t, http.MethodPost, "/admin/campaigns", map[string]string{
		"name": "Promo", "subject": "Save now", "content": "<p>Deals!</p>",
	}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created domain.Campaign
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = env.do(t, http.MethodPost, "/admin/campaigns/"+created.ID+"/send", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, err := env.campRepo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignDraft, c.Status)
}

func TestDeleteSentCampaignRefused(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	env.do(t, http.MethodPost, "/subscribe", map[string]string{"email": "a@example.com"})
	rec := env.do(t, http.MethodPost, "/admin/campaigns", map[string]string{
		"name": "Promo", "subject": "Save now", "content": "<p>Deals!</p>",
	}, cookie)
	var created domain.Campaign
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	env.do(t, http.MethodPost, "/admin/campaigns/"+created.ID+"/send", nil, cookie)

	rec = env.do(t, http.MethodDelete, "/admin/campaigns/"+created.ID, nil, cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPreviewEndpoint(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	rec := env.do(t, http.MethodPost, "/admin/campaigns", map[string]string{
		"name": "Promo", "subject": "Save now", "content": "<p>Deals!</p>",
	}, cookie)
	var created domain.Campaign
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = env.do(t, http.MethodGet, "/admin/campaigns/"+created.ID+"/preview", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<p>Deals!</p>")
	assert.Contains(t, rec.Body.String(), "/unsubscribe/")
}
