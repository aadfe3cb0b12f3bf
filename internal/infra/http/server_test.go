package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chiefgate/internal/config"
	"chiefgate/internal/domain"
	"chiefgate/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPayloads struct {
	byRef map[string]domain.LicencePayload
	next  int
}

func newMemPayloads() *memPayloads {
	return &memPayloads{byRef: map[string]domain.LicencePayload{}}
}

func (m *memPayloads) Create(_ context.Context, payload domain.LicencePayload) (domain.LicencePayload, error) {
	if _, ok := m.byRef[payload.Reference]; ok {
		return domain.LicencePayload{}, domain.ErrAlreadyExists
	}
	m.next++
	payload.ID = fmt.Sprintf("payload-%d", m.next)
	payload.ReceivedAt = time.Now().UTC()
	m.byRef[payload.Reference] = payload
	return payload, nil
}

func (m *memPayloads) GetByReference(_ context.Context, reference string) (*domain.LicencePayload, error) {
	payload, ok := m.byRef[reference]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &payload, nil
}

func (m *memPayloads) FindUnprocessed(context.Context) ([]domain.LicencePayload, error) {
	return nil, nil
}

func (m *memPayloads) PreviousPayload(context.Context, string) (*domain.LicencePayload, error) {
	return nil, nil
}

func (m *memPayloads) CountUnprocessedOlderThan(context.Context, time.Duration) (int64, error) {
	var n int64
	for _, p := range m.byRef {
		if !p.IsProcessed {
			n++
		}
	}
	return n, nil
}

type stuckMails struct {
	stuck int64
}

func (s stuckMails) Get(context.Context, int64) (*domain.Mail, error) {
	return nil, domain.ErrNotFound
}
func (s stuckMails) FindOpen(context.Context) (*domain.Mail, error) { return nil, nil }
func (s stuckMails) CreateInSlot(_ context.Context, m domain.Mail) (domain.Mail, error) {
	return m, nil
}
func (s stuckMails) AcquireLease(context.Context, int64, string, time.Duration) error { return nil }
func (s stuckMails) ReleaseLease(context.Context, int64, string) error                { return nil }
func (s stuckMails) MarkSent(context.Context, int64) error                            { return nil }
func (s stuckMails) AttachResponse(context.Context, int64, string, string, string) error {
	return nil
}
func (s stuckMails) MarkReplySent(context.Context, int64) error { return nil }
func (s stuckMails) CountStuckPending(context.Context, time.Duration) (int64, error) {
	return s.stuck, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg config.Config, payloads *memPayloads) *Server {
	t.Helper()
	return NewServer(cfg, ServerDeps{
		Ingress: &usecase.LicenceIngress{Payloads: payloads, Log: testLogger()},
		Log:     testLogger(),
	})
}

func sielBody(reference string) string {
	return fmt.Sprintf(`{"licence": {
		"id": "4a2e0514-dfbc-4b2f-a674-87b2f38c67fe",
		"reference": %q,
		"action": "insert",
		"type": "siel",
		"start_date": "2020-06-02",
		"end_date": "2022-06-02",
		"organisation": {
			"name": "Organisation",
			"eori_number": "GB123456789000",
			"address": {"line_1": "1 Main St", "postcode": "AB1 2CD", "country": {"id": "GB"}}
		},
		"end_user": {"name": "End User", "address": {"line_1": "Somewhere", "country": {"id": "AU"}}},
		"goods": [{"id": "7c5b5ba6-8e0a-4b0e-b1a0-3c68fbcfa21c", "description": "Widget", "quantity": "10", "unit": "NAR"}]
	}}`, reference)
}

func postLicence(srv *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/mail/update-licence/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestUpdateLicence_IdempotentOnReference(t *testing.T) {
	payloads := newMemPayloads()
	srv := newTestServer(t, config.Config{}, payloads)

	first := postLicence(srv, sielBody("GBSIEL/2020/0000001/P"))
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	var created struct {
		PayloadID string `json:"payload_id"`
		Reference string `json:"reference"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &created))
	assert.Equal(t, "GBSIEL/2020/0000001/P", created.Reference)
	assert.NotEmpty(t, created.PayloadID)

	second := postLicence(srv, sielBody("GBSIEL/2020/0000001/P"))
	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Len(t, payloads.byRef, 1)
}

func TestUpdateLicence_AcceptsBareLicenceBody(t *testing.T) {
	srv := newTestServer(t, config.Config{}, newMemPayloads())

	bare := strings.TrimSuffix(strings.TrimSpace(sielBody("GBSIEL/2020/0000002/P")), "}")
	bare = strings.TrimPrefix(bare, `{"licence":`)

	w := postLicence(srv, bare)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestUpdateLicence_RejectsBadSubmissions(t *testing.T) {
	srv := newTestServer(t, config.Config{}, newMemPayloads())

	w := postLicence(srv, `{"licence": {"reference": "", "action": "insert", "type": "siel"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postLicence(srv, `{"licence": {"reference": "GBSIEL/1", "action": "upsert", "type": "siel"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postLicence(srv, `{"licence": {"reference": "GBSIEL/1", "action": "insert", "type": "nonsense"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "UNKNOWN_LICENCE_TYPE", resp.Code)

	w = postLicence(srv, "not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateLicence_RequiresHawkWhenConfigured(t *testing.T) {
	cfg := config.Config{IngressHawkID: "lite", IngressHawkKey: "secret"}
	srv := newTestServer(t, cfg, newMemPayloads())

	w := postLicence(srv, sielBody("GBSIEL/2020/0000003/P"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateLicence_RateLimited(t *testing.T) {
	cfg := config.Config{RateLimitRequests: 2, RateLimitWindowSeconds: 60}
	srv := newTestServer(t, cfg, newMemPayloads())

	for i := 0; i < 2; i++ {
		w := postLicence(srv, sielBody(fmt.Sprintf("GBSIEL/2020/000000%d/P", i)))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	w := postLicence(srv, sielBody("GBSIEL/2020/0000009/P"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestHealth_ReportsStuckConversations(t *testing.T) {
	payloads := newMemPayloads()
	cfg := config.Config{EmailAwaitingReplyTime: 3600, LicencePollInterval: 300}

	healthy := NewServer(cfg, ServerDeps{
		Health: &usecase.HealthReporter{Cfg: cfg, Mails: stuckMails{}, Payloads: payloads},
		Log:    testLogger(),
	})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	healthy.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var report usecase.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.True(t, report.Healthy)

	unhealthy := NewServer(cfg, ServerDeps{
		Health: &usecase.HealthReporter{Cfg: cfg, Mails: stuckMails{stuck: 2}, Payloads: payloads},
		Log:    testLogger(),
	})
	w = httptest.NewRecorder()
	unhealthy.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.False(t, report.Healthy)
	assert.EqualValues(t, 2, report.StuckPendingMail)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, config.Config{}, newMemPayloads())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
