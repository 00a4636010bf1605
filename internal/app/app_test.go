package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monite/monite-sdk-go/internal/audit"
	"github.com/monite/monite-sdk-go/internal/authz"
	"github.com/monite/monite-sdk-go/internal/monite"
	"github.com/monite/monite-sdk-go/internal/query"
)

const testEntityID = "9d2b4c8a-4f7e-4c1b-9a53-0c5d2e7f1a10"

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Log(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAudit) ofType(typ string) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// fakeAPI serves the entity user reads and measure units. Tokens listed in
// rejected get a 401.
type fakeAPI struct {
	meCalls  atomic.Int32
	mu       sync.Mutex
	rejected map[string]bool
}

func (f *fakeAPI) reject(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected[token] = true
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	denied := f.rejected[r.Header.Get("Authorization")]
	f.mu.Unlock()
	if denied {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]string{"message": "token expired"}})
		return
	}

	switch r.URL.Path {
	case "/entity_users/me":
		f.meCalls.Add(1)
		writeJSON(w, http.StatusOK, monite.EntityUser{ID: "u1"})
	case "/entity_users/my_role":
		writeJSON(w, http.StatusOK, monite.Role{
			ID: "r1",
			Permissions: &monite.RolePermissions{Objects: []monite.ObjectPermission{
				{ObjectType: "tag", Actions: []monite.ActionSchema{{ActionName: "read", Permission: "allowed"}}},
			}},
		})
	case "/measure_units/mu-1":
		writeJSON(w, http.StatusOK, monite.UnitResponse{ID: "mu-1", Name: "kg"})
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Object type at permissions not found"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestSDK(t *testing.T, api http.Handler, fetch monite.FetchToken) *monite.SDK {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	sdk, err := monite.New(monite.Config{
		EntityID:   testEntityID,
		FetchToken: fetch,
		APIURL:     srv.URL,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return sdk
}

func TestNew_RequiresSDK(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrMissingSDK)
}

func TestNew_QueryClientPerSDK(t *testing.T) {
	api := &fakeAPI{rejected: map[string]bool{}}
	tok := monite.StaticToken(monite.Token{AccessToken: "t1"})

	a, err := New(Options{SDK: newTestSDK(t, api, tok), AuditLogger: audit.Nop{}})
	require.NoError(t, err)
	b, err := New(Options{SDK: newTestSDK(t, api, tok), AuditLogger: audit.Nop{}})
	require.NoError(t, err)

	assert.NotSame(t, a.Queries, b.Queries)
	assert.Equal(t, DefaultLocale, a.Localizer.Default())

	ctx := context.Background()
	require.NoError(t, a.Resolver.Load(ctx))
	assert.True(t, a.Resolver.State().IsSuccess)
	assert.True(t, b.Resolver.State().IsPending)
}

// TestPurpose: a new access token drops the cached user and role so that
// permissions are re-resolved for it.
func TestNew_TokenChangeInvalidatesPermissions(t *testing.T) {
	api := &fakeAPI{rejected: map[string]bool{}}
	var n atomic.Int32
	fetch := func(context.Context) (monite.Token, error) {
		if n.Add(1) == 1 {
			return monite.Token{AccessToken: "t1"}, nil
		}
		return monite.Token{AccessToken: "t2"}, nil
	}
	rec := &recordingAudit{}
	deps, err := New(Options{SDK: newTestSDK(t, api, fetch), AuditLogger: rec})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, deps.Resolver.Load(ctx))
	require.NoError(t, deps.Resolver.Load(ctx))
	assert.Equal(t, int32(1), api.meCalls.Load())

	api.reject("Bearer t1")
	unit, err := deps.MeasureUnits.Get(ctx, "mu-1")
	require.NoError(t, err)
	assert.Equal(t, "kg", unit.Name)
	assert.Len(t, rec.ofType(audit.TypeTokenRefreshed), 1)

	require.NoError(t, deps.Resolver.Load(ctx))
	assert.Equal(t, int32(2), api.meCalls.Load())

	check := deps.Resolver.IsActionAllowed(ctx, authz.MustOperator(authz.Common(authz.MethodTag, authz.ActionRead)), "")
	assert.True(t, check.Allowed)
}

// TestPurpose: a token refresh triggered by the permission reads themselves
// does not leave the permissions unresolved or turn into a denial.
func TestNew_TokenChangeDuringPermissionLoad(t *testing.T) {
	api := &fakeAPI{rejected: map[string]bool{"Bearer t1": true}}
	var n atomic.Int32
	fetch := func(context.Context) (monite.Token, error) {
		if n.Add(1) == 1 {
			return monite.Token{AccessToken: "t1"}, nil
		}
		return monite.Token{AccessToken: "t2"}, nil
	}
	rec := &recordingAudit{}
	deps, err := New(Options{SDK: newTestSDK(t, api, fetch), AuditLogger: rec, Logger: discardLogger()})
	require.NoError(t, err)

	ctx := context.Background()
	decision, err := deps.Resolver.Authorize(ctx, authz.MustOperator(authz.Common(authz.MethodTag, authz.ActionRead)), "")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, authz.ReasonGranted, decision.Reason)

	assert.True(t, deps.Resolver.State().IsSuccess)
	assert.Len(t, rec.ofType(audit.TypeTokenRefreshed), 1)
	assert.Empty(t, rec.ofType(audit.TypePermissionDenied))

	self, err := deps.Resolver.Self(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", self)
}

func TestErrorHook(t *testing.T) {
	rec := &recordingAudit{}
	hook := ErrorHook(rec, discardLogger(), testEntityID)
	ctx := context.Background()

	hook(ctx, query.Key{"tags", "list"}, &monite.APIError{StatusCode: 404, Message: "Object type at permissions not found"})
	assert.Empty(t, rec.ofType(audit.TypeQueryFailed))

	hook(ctx, query.Key{"tags", "list"}, &monite.APIError{StatusCode: 500, Message: "boom"})
	failed := rec.ofType(audit.TypeQueryFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "tags/list", failed[0].Resource)
	assert.Equal(t, 500, failed[0].Metadata["status"])
	assert.Equal(t, "boom", failed[0].Metadata["message"])

	hook(ctx, query.Key{"mutation", "create_tag"}, errors.New("network down"))
	assert.Len(t, rec.ofType(audit.TypeMutationFailed), 1)
}

// TestPurpose: missing object type errors are dropped and mutations with
// their own handler skip the global hook.
func TestNew_QueryErrorsReachHook(t *testing.T) {
	api := &fakeAPI{rejected: map[string]bool{}}
	rec := &recordingAudit{}
	deps, err := New(Options{
		SDK:         newTestSDK(t, api, monite.StaticToken(monite.Token{AccessToken: "t1"})),
		AuditLogger: rec,
		Logger:      discardLogger(),
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = deps.MeasureUnits.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, monite.IsNotFound(err))
	assert.Empty(t, rec.ofType(audit.TypeQueryFailed))

	_, err = query.Mutate(ctx, deps.Queries, "noop", func(context.Context) (int, error) {
		return 0, errors.New("boom")
	}, query.MutationOptions[int]{OnError: func(error) {}})
	require.Error(t, err)
	assert.Empty(t, rec.ofType(audit.TypeMutationFailed))

	_, err = query.Mutate(ctx, deps.Queries, "noop", func(context.Context) (int, error) {
		return 0, errors.New("boom")
	}, query.MutationOptions[int]{})
	require.Error(t, err)
	assert.Len(t, rec.ofType(audit.TypeMutationFailed), 1)
}

func TestPersisterNamespace(t *testing.T) {
	assert.Equal(t, "monite:query:ent:u1:", PersisterNamespace("ent", "u1"))
}
