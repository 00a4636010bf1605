package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monite/monite-sdk-go/internal/app"
	"github.com/monite/monite-sdk-go/internal/audit"
	"github.com/monite/monite-sdk-go/internal/authz"
	"github.com/monite/monite-sdk-go/internal/monite"
)

const testEntityID = "9d2b4c8a-4f7e-4c1b-9a53-0c5d2e7f1a10"

// fakeMonite is an in-memory Monite API for one entity user.
type fakeMonite struct {
	mu       sync.Mutex
	grants   []monite.ActionSchema
	roleFail bool
	tags     map[string]monite.TagReadSchema
	created  []monite.CreateEntityBankAccountRequest
	deleted  []string
}

func newFakeMonite(grants map[string]string) *fakeMonite {
	f := &fakeMonite{tags: map[string]monite.TagReadSchema{
		"t-mine":   {ID: "t-mine", Name: "mine", CreatedByEntityUserID: "u1"},
		"t-theirs": {ID: "t-theirs", Name: "theirs", CreatedByEntityUserID: "u2"},
	}}
	for action, level := range grants {
		f.grants = append(f.grants, monite.ActionSchema{ActionName: action, Permission: level})
	}
	return f
}

func (f *fakeMonite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/entity_users/me":
		writeJSON(w, http.StatusOK, monite.EntityUser{ID: "u1"})
	case path == "/entity_users/my_role":
		if f.roleFail {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]string{"message": "role service down"}})
			return
		}
		writeJSON(w, http.StatusOK, monite.Role{ID: "r1", Permissions: &monite.RolePermissions{
			Objects: []monite.ObjectPermission{
				{ObjectType: "tag", Actions: f.grants},
				{ObjectType: "approval_policy", Actions: f.grants},
			},
		}})
	case path == "/tags" && r.Method == http.MethodGet:
		var out monite.TagsResponse
		owner := r.URL.Query().Get("created_by_entity_user_id")
		for _, id := range []string{"t-mine", "t-theirs"} {
			t := f.tags[id]
			if owner == "" || t.CreatedByEntityUserID == owner {
				out.Data = append(out.Data, t)
			}
		}
		writeJSON(w, http.StatusOK, out)
	case path == "/tags" && r.Method == http.MethodPost:
		var in monite.TagCreateSchema
		_ = json.NewDecoder(r.Body).Decode(&in)
		writeJSON(w, http.StatusCreated, monite.TagReadSchema{ID: "t-new", Name: in.Name, CreatedByEntityUserID: "u1"})
	case strings.HasPrefix(path, "/tags/"):
		t, ok := f.tags[strings.TrimPrefix(path, "/tags/")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Tag not found"})
			return
		}
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, t)
	case path == "/onboarding_requirements":
		writeJSON(w, http.StatusOK, monite.OnboardingRequirementsResponse{
			Requirements: []string{"bank_accounts"},
			Data: monite.OnboardingData{BankAccounts: []monite.OnboardingBankAccount{
				{ID: "ba-old", Country: &monite.OnboardingField{Value: "DE"}},
			}},
		})
	case path == "/onboarding/bank_account_masks":
		writeJSON(w, http.StatusOK, monite.OnboardingBankAccountMaskResponse{
			"EUR": {"country": true, "currency": true, "iban": true},
		})
	case path == "/bank_accounts" && r.Method == http.MethodPost:
		var in monite.CreateEntityBankAccountRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.created = append(f.created, in)
		writeJSON(w, http.StatusCreated, monite.EntityBankAccountResponse{ID: "ba-new", Country: in.Country, Currency: in.Currency})
	case strings.HasPrefix(path, "/bank_accounts/") && r.Method == http.MethodDelete:
		f.deleted = append(f.deleted, strings.TrimPrefix(path, "/bank_accounts/"))
		w.WriteHeader(http.StatusNoContent)
	case path == "/measure_units/mu-1":
		writeJSON(w, http.StatusOK, monite.UnitResponse{ID: "mu-1", Name: "kg"})
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type gateway struct {
	api    *fakeMonite
	router http.Handler
}

func newGateway(t *testing.T, grants map[string]string) *gateway {
	t.Helper()
	api := newFakeMonite(grants)
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	sdk, err := monite.New(monite.Config{
		EntityID:   testEntityID,
		FetchToken: monite.StaticToken(monite.Token{AccessToken: "tok"}),
		APIURL:     srv.URL,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps, err := app.New(app.Options{SDK: sdk, AuditLogger: audit.Nop{}, Logger: quiet})
	require.NoError(t, err)

	rl := NewRateLimiter(1000, 1000)
	t.Cleanup(rl.Close)
	return &gateway{
		api:    api,
		router: NewRouter(NewHandler(deps), rl, RouterConfig{AllowedOrigins: []string{"*"}}),
	}
}

func (g *gateway) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	g := newGateway(t, nil)

	w := g.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "en", body["locale"])
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "en", w.Header().Get("Content-Language"))
}

func TestLocaleNegotiation(t *testing.T) {
	g := newGateway(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Accept-Language", "de-CH, de;q=0.9")
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	assert.Equal(t, "de", w.Header().Get("Content-Language"))
	assert.Equal(t, "de", decode(t, w)["locale"])
}

// TestPurpose: the decision endpoint applies the own-resource rule to the
// owner passed by the widget.
func TestIsActionAllowed_OwnResource(t *testing.T) {
	g := newGateway(t, map[string]string{"create": "allowed_for_own", "read": "allowed"})

	tests := []struct {
		target  string
		allowed bool
	}{
		{"/api/v1/permissions/tag/read", true},
		{"/api/v1/permissions/tag/create?entity_user_id=u1", true},
		{"/api/v1/permissions/tag/create?entity_user_id=u2", false},
		{"/api/v1/permissions/tag/create", false},
		{"/api/v1/permissions/tag/delete?entity_user_id=u1", false},
		{"/api/v1/permissions/role/read", false},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := g.do(t, http.MethodGet, tt.target, nil)
			require.Equal(t, http.StatusOK, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.allowed, body["allowed"])
			assert.Equal(t, true, body["is_success"])
		})
	}
}

func TestIsActionAllowed_InvalidOperator(t *testing.T) {
	g := newGateway(t, nil)

	for _, target := range []string{
		"/api/v1/permissions/tag/approve",
		"/api/v1/permissions/spaceship/read",
	} {
		w := g.do(t, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}

	w := g.do(t, http.MethodGet, "/api/v1/permissions/payable/approve", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["allowed"])
}

func TestGetPermissions(t *testing.T) {
	g := newGateway(t, map[string]string{"read": "allowed"})

	w := g.do(t, http.MethodGet, "/api/v1/permissions/tag", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "u1", body["user_id_from_auth_token"])
	assert.Equal(t, []any{map[string]any{"action_name": "read", "permission": "allowed"}}, body["data"])

	w = g.do(t, http.MethodGet, "/api/v1/permissions/workflow", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode(t, w)["data"])

	w = g.do(t, http.MethodGet, "/api/v1/permissions/unknown", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = g.do(t, http.MethodGet, "/api/v1/permissions/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["objects"], 2)
}

// TestPurpose: a failed role read is reported as an error state and never
// as an allowed decision.
func TestPermissions_RoleFailureFailsClosed(t *testing.T) {
	g := newGateway(t, map[string]string{"read": "allowed"})
	g.api.mu.Lock()
	g.api.roleFail = true
	g.api.mu.Unlock()

	w := g.do(t, http.MethodGet, "/api/v1/permissions/tag/read", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["allowed"])
	assert.Equal(t, true, body["is_error"])
	assert.Equal(t, "role service down", body["error"])

	w = g.do(t, http.MethodGet, "/api/v1/permissions/tag", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode(t, w)["data"])
}

func TestTags(t *testing.T) {
	g := newGateway(t, map[string]string{
		"read":   "allowed_for_own",
		"create": "allowed",
		"update": "allowed_for_own",
		"delete": "allowed_for_own",
	})

	w := g.do(t, http.MethodGet, "/api/v1/tags", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "t-mine", data[0].(map[string]any)["id"])

	w = g.do(t, http.MethodPost, "/api/v1/tags", map[string]string{"name": "urgent"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = g.do(t, http.MethodPost, "/api/v1/tags", map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["fields"], "name")

	w = g.do(t, http.MethodPost, "/api/v1/tags", map[string]string{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = g.do(t, http.MethodDelete, "/api/v1/tags/t-theirs", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = g.do(t, http.MethodDelete, "/api/v1/tags/t-mine", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = g.do(t, http.MethodGet, "/api/v1/tags/t-theirs", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = g.do(t, http.MethodGet, "/api/v1/tags/t-missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Tag not found", decode(t, w)["error"])
}

func TestApprovalPolicies_CreateDenied(t *testing.T) {
	g := newGateway(t, map[string]string{"read": "allowed"})

	w := g.do(t, http.MethodPost, "/api/v1/approval-policies", map[string]string{
		"name":        "p",
		"description": "d",
		"trigger":     `{"all":[]}`,
		"script":      `[]`,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = g.do(t, http.MethodGet, "/api/v1/approval-policies?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOnboardingBankAccount(t *testing.T) {
	g := newGateway(t, nil)

	w := g.do(t, http.MethodGet, "/api/v1/onboarding/bank-account?currency=EUR", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []any{"EUR"}, body["currencies"])
	assert.Equal(t, "EUR", body["currency"])
	assert.Contains(t, body["fields"], "iban")

	w = g.do(t, http.MethodGet, "/api/v1/onboarding/bank-account?currency=CHF", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = g.do(t, http.MethodPost, "/api/v1/onboarding/bank-account", map[string]string{
		"country":  "DE",
		"currency": "EUR",
		"iban":     "DE89370400440532013000",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "ba-new", decode(t, w)["id"])

	g.api.mu.Lock()
	require.Len(t, g.api.created, 1)
	assert.True(t, g.api.created[0].IsDefaultForCurrency)
	assert.Equal(t, []string{"ba-old"}, g.api.deleted)
	g.api.mu.Unlock()

	w = g.do(t, http.MethodGet, "/api/v1/onboarding/requirements", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decode(t, w)["requirements"])
}

func TestOnboardingPersonMask_Disabled(t *testing.T) {
	g := newGateway(t, nil)

	w := g.do(t, http.MethodGet, "/api/v1/onboarding/person-mask?relationships=owner", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMeasureUnit(t *testing.T) {
	g := newGateway(t, nil)

	w := g.do(t, http.MethodGet, "/api/v1/measure-units/mu-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "kg", decode(t, w)["name"])
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Close()
	h := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:5000"

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "198.51.100.1:4242"
	w = httptest.NewRecorder()
	h.ServeHTTP(w, other)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestPurpose: a client that is not behind a trusted proxy cannot pick a
// new rate limit bucket by sending X-Forwarded-For.
func TestRateLimitMiddleware_ForwardedForUntrusted(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Close()
	h := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i, forwarded := range []string{"", "1.1.1.1", "2.2.2.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if i == 0 {
			assert.Equal(t, http.StatusOK, w.Code)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, w.Code, forwarded)
		}
	}
}

func TestRateLimiter_ClientIP(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Close()
	require.NoError(t, rl.SetTrustedProxies([]string{"10.0.0.0/8", "192.0.2.1"}))

	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"untrusted peer", "203.0.113.7:5000", "1.1.1.1", "203.0.113.7"},
		{"trusted peer", "10.0.0.5:5000", "198.51.100.9", "198.51.100.9"},
		{"spoofed left hop", "10.0.0.5:5000", "1.1.1.1, 198.51.100.9", "198.51.100.9"},
		{"proxy chain", "192.0.2.1:443", "198.51.100.9, 10.1.2.3", "198.51.100.9"},
		{"trusted peer without header", "10.0.0.5:5000", "", "10.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, rl.clientIP(req))
		})
	}

	assert.Error(t, rl.SetTrustedProxies([]string{"not-an-ip"}))
}

func TestRespondServiceError_UpstreamStatuses(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&monite.APIError{StatusCode: 422, Message: "bad"}, http.StatusUnprocessableEntity},
		{&monite.APIError{StatusCode: 401, Message: "expired"}, http.StatusBadGateway},
		{&monite.APIError{StatusCode: 503, Message: "down"}, http.StatusBadGateway},
		{monite.ErrMissingID, http.StatusBadRequest},
		{fmt.Errorf("%w: tag:read", authz.ErrUnresolved), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: tag:read", authz.ErrAccessDenied), http.StatusForbidden},
		{io.ErrUnexpectedEOF, http.StatusBadGateway},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		respondServiceError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
		assert.Equal(t, tt.want, w.Code, tt.err.Error())
	}
}
