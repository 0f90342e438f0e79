package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/ratelimit"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/store"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/store/memstore"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret = "test-secret"
	adminToken = "admin-token"
)

type server struct {
	app   *fiber.App
	store *memstore.Store
}

func newServer(t *testing.T, st store.Store) *server {
	t.Helper()
	mem, _ := st.(*memstore.Store)

	cfg := &config.Config{
		JWTSecret:       testSecret,
		AdminToken:      adminToken,
		AdminEmails:     "ops@cromos.test",
		AdminRateWindow: time.Minute,
		AdminRateMax:    5,
	}

	retention := services.NewRetentionService(st, services.DefaultGraceDays)
	lc := services.NewLifecycleService(st, retention)
	mod := services.NewModerationService(st, lc)
	admin := services.NewAdminService(st, mod)
	sweeper := services.NewRetentionSweeper(retention, lc, 0)

	app := fiber.New()
	routes.Setup(app, cfg, st, ratelimit.New(), routes.Handlers{
		Health:     handlers.NewHealthHandler(st, "memory"),
		Lifecycle:  handlers.NewLifecycleHandler(lc),
		Moderation: handlers.NewModerationHandler(mod, admin),
		Admin:      handlers.NewAdminHandler(lc, admin, sweeper),
	})
	return &server{app: app, store: mem}
}

func (s *server) user(t *testing.T, email, password string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return s.store.AddUser(models.User{Email: email, Password: string(hash)})
}

func bearer(t *testing.T, u models.User) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   u.ID.String(),
		"email": u.Email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

type call struct {
	method, path string
	body         interface{}
	auth         string
	adminToken   bool
}

func (s *server) do(t *testing.T, c call) (*http.Response, map[string]interface{}) {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	if c.auth != "" {
		req.Header.Set("Authorization", c.auth)
	}
	if c.adminToken {
		req.Header.Set("X-Admin-Token", adminToken)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	s := newServer(t, memstore.New())
	resp, body := s.do(t, call{method: http.MethodGet, path: "/api/health"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "memory", body["store"])
	assert.Equal(t, "ok", body["db"])
}

func TestDeleteListing(t *testing.T) {
	s := newServer(t, memstore.New())
	owner := s.user(t, "owner@cromos.test", "pw")
	other := s.user(t, "other@cromos.test", "pw")
	l := s.store.AddListing(models.Listing{OwnerID: owner.ID, Title: "Messi 2022"})
	path := "/api/listings/" + l.ID.String()

	t.Run("requires a token", func(t *testing.T) {
		resp, _ := s.do(t, call{method: http.MethodDelete, path: path})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects a non-owner", func(t *testing.T) {
		resp, body := s.do(t, call{method: http.MethodDelete, path: path, auth: bearer(t, other)})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, true, body["error"])
	})

	t.Run("rejects a malformed id", func(t *testing.T) {
		resp, _ := s.do(t, call{method: http.MethodDelete, path: "/api/listings/nope", auth: bearer(t, owner)})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("owner deletes and restores", func(t *testing.T) {
		resp, body := s.do(t, call{method: http.MethodDelete, path: path, auth: bearer(t, owner)})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, string(lifecycle.StatusRemoved), body["current"])
		assert.NotEmpty(t, body["scheduled_for"])

		resp, _ = s.do(t, call{method: http.MethodDelete, path: path, auth: bearer(t, owner)})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		resp, body = s.do(t, call{method: http.MethodPost, path: path + "/restore", auth: bearer(t, owner)})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, string(lifecycle.StatusActive), body["current"])
	})
}

func TestDeleteAccount_WrongPassword(t *testing.T) {
	s := newServer(t, memstore.New())
	u := s.user(t, "me@cromos.test", "correct horse")

	resp, _ := s.do(t, call{method: http.MethodDelete, path: "/api/account", auth: bearer(t, u),
		body: map[string]string{"password": "wrong"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := s.do(t, call{method: http.MethodDelete, path: "/api/account", auth: bearer(t, u),
		body: map[string]string{"password": "correct horse"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(lifecycle.StatusRemoved), body["current"])
}

func TestAdminAccess(t *testing.T) {
	s := newServer(t, memstore.New())
	plain := s.user(t, "plain@cromos.test", "pw")
	listed := s.user(t, "ops@cromos.test", "pw")
	role := s.store.AddUser(models.User{Email: "role@cromos.test", Password: "x", Role: "admin"})

	cases := []struct {
		name string
		c    call
		want int
	}{
		{"no credentials", call{}, http.StatusUnauthorized},
		{"plain user", call{auth: bearer(t, plain)}, http.StatusForbidden},
		{"configured email", call{auth: bearer(t, listed)}, http.StatusOK},
		{"admin role", call{auth: bearer(t, role)}, http.StatusOK},
		{"admin token without jwt", call{adminToken: true}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.c.method, tc.c.path = http.MethodGet, "/api/admin/suspended-users"
			resp, _ := s.do(t, tc.c)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestAdminRemoveThenHardDelete(t *testing.T) {
	s := newServer(t, memstore.New())
	owner := s.user(t, "owner@cromos.test", "pw")
	l := s.store.AddListing(models.Listing{OwnerID: owner.ID, Title: "Pele 1970"})
	base := "/api/admin/listings/" + l.ID.String()

	resp, _ := s.do(t, call{method: http.MethodDelete, path: base, adminToken: true})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "active entities cannot be hard-deleted")

	resp, body := s.do(t, call{method: http.MethodPost, path: base + "/remove", adminToken: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(lifecycle.StatusRemoved), body["current"])

	resp, body = s.do(t, call{method: http.MethodGet, path: "/api/admin/pending-deletion/listings", adminToken: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["items"], 1)

	resp, _ = s.do(t, call{method: http.MethodDelete, path: base, adminToken: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, call{method: http.MethodPost, path: base + "/restore", adminToken: true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminUnknownKind(t *testing.T) {
	s := newServer(t, memstore.New())
	resp, _ := s.do(t, call{method: http.MethodGet, path: "/api/admin/pending-deletion/chats", adminToken: true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSuspendAndUnsuspend(t *testing.T) {
	s := newServer(t, memstore.New())
	u := s.user(t, "bad@cromos.test", "pw")
	path := "/api/admin/users/" + u.ID.String() + "/suspend"

	resp, _ := s.do(t, call{method: http.MethodPost, path: path, adminToken: true, body: map[string]interface{}{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "reason is required")

	resp, body := s.do(t, call{method: http.MethodPost, path: path, adminToken: true,
		body: map[string]interface{}{"reason": "scam", "delete_after_days": 7}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "scam", body["reason"])
	assert.NotEmpty(t, body["scheduled_for"])

	resp, body = s.do(t, call{method: http.MethodGet, path: "/api/admin/suspended-users", adminToken: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["items"], 1)

	resp, _ = s.do(t, call{method: http.MethodDelete, path: path, adminToken: true})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, call{method: http.MethodDelete, path: path, adminToken: true})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestReportFlow(t *testing.T) {
	s := newServer(t, memstore.New())
	owner := s.user(t, "owner@cromos.test", "pw")
	reporter := s.user(t, "reporter@cromos.test", "pw")
	l := s.store.AddListing(models.Listing{OwnerID: owner.ID, Title: "Fake Maradona"})

	resp, body := s.do(t, call{method: http.MethodPost, path: "/api/reports", auth: bearer(t, reporter),
		body: map[string]interface{}{"entity_type": "listing", "entity_id": l.ID, "reason": "fake"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	reportID := body["id"].(string)

	resp, _ = s.do(t, call{method: http.MethodPost, path: "/api/reports", auth: bearer(t, reporter),
		body: map[string]interface{}{"entity_type": "listing", "entity_id": l.ID, "reason": "boring"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = s.do(t, call{method: http.MethodGet, path: "/api/admin/reports?limit=500", adminToken: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["items"], 1)
	assert.EqualValues(t, services.MaxReportLimit, body["limit"])
	assert.EqualValues(t, 1, body["total"])

	resp, body = s.do(t, call{method: http.MethodGet, path: "/api/admin/reports/" + reportID, adminToken: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, body["content"])

	resp, body = s.do(t, call{method: http.MethodPost, path: "/api/admin/reports/" + reportID + "/review", adminToken: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(models.ReportReviewed), body["status"])

	resp, body = s.do(t, call{method: http.MethodPut, path: "/api/admin/reports/" + reportID, adminToken: true,
		body: map[string]string{"action": "remove_content", "admin_notes": "counterfeit"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(models.ReportResolved), body["status"])

	resp, _ = s.do(t, call{method: http.MethodPut, path: "/api/admin/reports/" + reportID, adminToken: true,
		body: map[string]string{"action": "dismiss", "admin_notes": "second look"}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	got, err := s.store.GetEntity(context.Background(), lifecycle.KindListing, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusRemoved, got.Status)
}

func TestRunSweep(t *testing.T) {
	s := newServer(t, memstore.New())
	resp, body := s.do(t, call{method: http.MethodPost, path: "/api/admin/retention/sweep", adminToken: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["scanned"])
}

func TestAdminMutationsAreRateLimited(t *testing.T) {
	s := newServer(t, memstore.New())
	path := "/api/admin/templates/" + uuid.NewString() + "/restore"

	for i := 0; i < 5; i++ {
		resp, _ := s.do(t, call{method: http.MethodPost, path: path, adminToken: true})
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	}

	resp, body := s.do(t, call{method: http.MethodPost, path: path, adminToken: true})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	assert.Equal(t, true, body["error"])

	// reads are not guarded
	resp, _ = s.do(t, call{method: http.MethodGet, path: "/api/admin/suspended-users", adminToken: true})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type brokenStore struct {
	store.Store
}

func (brokenStore) ListPendingDeletion(context.Context, lifecycle.Kind) ([]store.PendingDeletion, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) ListSuspended(context.Context) ([]store.SuspendedAccount, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) ListReports(context.Context, []models.ReportStatus, int, int) ([]models.Report, int64, error) {
	return nil, 0, errors.New("connection refused")
}

func TestDegradedAdminReads(t *testing.T) {
	s := newServer(t, brokenStore{})

	for _, path := range []string{
		"/api/admin/pending-deletion/users",
		"/api/admin/suspended-users",
		"/api/admin/reports",
	} {
		t.Run(path, func(t *testing.T) {
			resp, body := s.do(t, call{method: http.MethodGet, path: path, adminToken: true})
			assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
			assert.Equal(t, []interface{}{}, body["items"])
			assert.Equal(t, true, body["error"])
		})
	}
}
