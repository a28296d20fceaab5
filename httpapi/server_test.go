package httpapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogorithm/blogorithm"
	"github.com/blogorithm/blogorithm/cms"
	"github.com/blogorithm/blogorithm/identity"
	"github.com/blogorithm/blogorithm/logger"
	"github.com/blogorithm/blogorithm/session"
)

const browserAgent = "Mozilla/5.0 (X11; Linux x86_64) Firefox/142.0"

type apiFixture struct {
	router *gin.Engine
	engine *blogorithm.Engine
	cmsMem *cms.MemoryClient
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := blogorithm.Config{}
	cfg.Session.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Session.TTL = time.Hour
	cfg.Admin.SetupKey = "setup-key"
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = true
	cfg.Throttle.MaxSignInAttempts = 100
	cfg.Throttle.SignInCooldown = time.Minute
	cfg.Throttle.MaxAccessRequests = 100
	cfg.Throttle.AccessRequestWindow = time.Minute

	engine, err := blogorithm.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityVerifier(&identity.StaticVerifier{
			Assertions: map[string]identity.Claims{
				"assert-a":     {Email: "a@x.com", Name: "Alice"},
				"assert-admin": {Email: "root@x.com", Name: "Root"},
			},
		}).
		Build()
	require.NoError(t, err)

	t.Cleanup(func() {
		engine.Close()
		mr.Close()
	})

	mem := cms.NewMemoryClient()
	srv := NewServer(engine, cms.NewPostService(mem), logger.Nop(), Config{})
	return &apiFixture{router: srv.Router(), engine: engine, cmsMem: mem}
}

type response struct {
	code   int
	body   map[string]any
	cookie string
}

func (f *apiFixture) do(t *testing.T, method, path, cookie string, body any) response {
	t.Helper()

	var buf bytes.Buffer
	contentType := ""
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		contentType = "application/json"
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("User-Agent", browserAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: cookie})
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	out := response{code: w.Code}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out.body)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			out.cookie = c.Value
		}
	}
	return out
}

func (f *apiFixture) signIn(t *testing.T, assertion string) string {
	t.Helper()

	resp := f.do(t, http.MethodPost, "/api/auth/signin", "", gin.H{"assertion": assertion})
	require.Equal(t, http.StatusOK, resp.code)
	require.NotEmpty(t, resp.cookie)
	return resp.cookie
}

func (f *apiFixture) bootstrapAdmin(t *testing.T) string {
	t.Helper()

	resp := f.do(t, http.MethodPost, "/api/setup-admin", "",
		gin.H{"setupKey": "setup-key", "email": "root@x.com", "name": "Root"})
	require.Equal(t, http.StatusOK, resp.code)
	return f.signIn(t, "assert-admin")
}

func TestSignInSetsCookieAndResolvesRole(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/auth/signin", "", gin.H{"assertion": "assert-a"})
	require.Equal(t, http.StatusOK, resp.code)
	require.NotEmpty(t, resp.cookie)

	user := resp.body["user"].(map[string]any)
	assert.Equal(t, "a@x.com", user["email"])
	assert.Equal(t, "visitor", user["role"])
}

func TestSignInRejectsBadAssertion(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/auth/signin", "", gin.H{"assertion": "junk"})
	assert.Equal(t, http.StatusUnauthorized, resp.code)
}

func TestSessionEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/api/auth/session", "", nil)
	require.Equal(t, http.StatusOK, resp.code)
	assert.Nil(t, resp.body["user"])

	cookie := f.signIn(t, "assert-a")
	resp = f.do(t, http.MethodGet, "/api/auth/session", cookie, nil)
	require.Equal(t, http.StatusOK, resp.code)
	user := resp.body["user"].(map[string]any)
	assert.Equal(t, "a@x.com", user["email"])
}

// End-to-end walk of the role lifecycle: visitor signs in, requests access,
// the probe reports drift, the refresh commits it, an admin promotes, and
// the guarded routes admit or deny off the refreshed claim.
func TestRoleLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.bootstrapAdmin(t)
	cookie := f.signIn(t, "assert-a")

	// Request access: store moves to pending, cookie stays visitor.
	resp := f.do(t, http.MethodPost, "/api/request-access", cookie, gin.H{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, resp.code)

	resp = f.do(t, http.MethodGet, "/api/auth/refresh-session", cookie, nil)
	require.Equal(t, http.StatusOK, resp.code)
	assert.Equal(t, true, resp.body["roleUpdated"])
	assert.Equal(t, "visitor", resp.body["currentRole"])
	assert.Equal(t, "pending", resp.body["updatedRole"])

	// Commit, then the probe goes quiet.
	resp = f.do(t, http.MethodPost, "/api/auth/refresh", cookie, nil)
	require.Equal(t, http.StatusOK, resp.code)
	require.NotEmpty(t, resp.cookie)
	cookie = resp.cookie

	resp = f.do(t, http.MethodGet, "/api/auth/refresh-session", cookie, nil)
	require.Equal(t, http.StatusOK, resp.code)
	assert.Equal(t, false, resp.body["roleUpdated"])

	// Admin promotes to writer; drift reappears until the next commit.
	resp = f.do(t, http.MethodPut, "/api/users/role", admin, gin.H{"email": "a@x.com", "role": "writer"})
	require.Equal(t, http.StatusOK, resp.code)

	resp = f.do(t, http.MethodGet, "/api/auth/refresh-session", cookie, nil)
	require.Equal(t, http.StatusOK, resp.code)
	assert.Equal(t, true, resp.body["roleUpdated"])
	assert.Equal(t, "writer", resp.body["updatedRole"])

	resp = f.do(t, http.MethodPost, "/api/auth/refresh", cookie, nil)
	require.Equal(t, http.StatusOK, resp.code)
	cookie = resp.cookie

	// The refreshed claim admits the write page but not the admin page.
	resp = f.do(t, http.MethodGet, "/write", cookie, nil)
	assert.Equal(t, http.StatusOK, resp.code)
	resp = f.do(t, http.MethodGet, "/authorize", cookie, nil)
	assert.Equal(t, http.StatusFound, resp.code)
}

func TestUpdateRoleRequiresAdmin(t *testing.T) {
	f := newAPIFixture(t)
	cookie := f.signIn(t, "assert-a")

	resp := f.do(t, http.MethodPut, "/api/users/role", cookie, gin.H{"email": "b@x.com", "role": "writer"})
	assert.Equal(t, http.StatusForbidden, resp.code)
}

func TestSetupAdminOneTime(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/setup-admin", "",
		gin.H{"setupKey": "wrong", "email": "root@x.com"})
	assert.Equal(t, http.StatusForbidden, resp.code)

	resp = f.do(t, http.MethodPost, "/api/setup-admin", "",
		gin.H{"setupKey": "setup-key", "email": "root@x.com", "name": "Root"})
	require.Equal(t, http.StatusOK, resp.code)

	resp = f.do(t, http.MethodPost, "/api/setup-admin", "",
		gin.H{"setupKey": "setup-key", "email": "other@x.com"})
	assert.Equal(t, http.StatusConflict, resp.code)
}

func TestAdminsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.bootstrapAdmin(t)

	resp := f.do(t, http.MethodGet, "/api/admins", admin, nil)
	require.Equal(t, http.StatusOK, resp.code)
	assert.Equal(t, "root@x.com", resp.body["primary"])

	resp = f.do(t, http.MethodPost, "/api/admins", admin, gin.H{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, resp.code)

	resp = f.do(t, http.MethodGet, "/api/admins", admin, nil)
	require.Equal(t, http.StatusOK, resp.code)
	assert.Len(t, resp.body["admins"], 2)
}

func TestInspectEndpointAdminGated(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.bootstrapAdmin(t)
	cookie := f.signIn(t, "assert-a")

	resp := f.do(t, http.MethodGet, "/api/debug/redis?email=root@x.com", cookie, nil)
	assert.Equal(t, http.StatusForbidden, resp.code)

	resp = f.do(t, http.MethodGet, "/api/debug/redis?email=root@x.com", admin, nil)
	require.Equal(t, http.StatusOK, resp.code)
	report := resp.body["report"].(map[string]any)
	assert.Equal(t, true, report["rolesMatch"])
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.code)
}

func postForm(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestPostCRUDBehindGuard(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.bootstrapAdmin(t)

	// Writers only: a visitor is rejected before the handler runs.
	body, contentType := postForm(t, map[string]string{"title": "Hello", "content": "World"})
	visitor := f.signIn(t, "assert-a")
	req := httptest.NewRequest(http.MethodPost, "/api/posts", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", browserAgent)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: visitor})
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)

	// Promote to writer and refresh the claim.
	resp := f.do(t, http.MethodPut, "/api/users/role", admin, gin.H{"email": "a@x.com", "role": "writer"})
	require.Equal(t, http.StatusOK, resp.code)
	resp = f.do(t, http.MethodPost, "/api/auth/refresh", visitor, nil)
	require.Equal(t, http.StatusOK, resp.code)
	writer := resp.cookie

	body, contentType = postForm(t, map[string]string{
		"title":   "Hello World",
		"content": "First post.",
		"status":  "PUBLISHED",
		"tags":    "go, redis",
	})
	req = httptest.NewRequest(http.MethodPost, "/api/posts", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", browserAgent)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: writer})
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created["id"].(string)
	require.NotEmpty(t, id)

	resp = f.do(t, http.MethodGet, "/api/posts/slug/hello-world", "", nil)
	require.Equal(t, http.StatusOK, resp.code)
	post := resp.body["post"].(map[string]any)
	assert.Equal(t, "Hello World", post["title"])

	resp = f.do(t, http.MethodGet, "/api/user/posts", writer, nil)
	require.Equal(t, http.StatusOK, resp.code)
	assert.Len(t, resp.body["posts"], 1)

	// Deletion is admin territory.
	resp = f.do(t, http.MethodDelete, "/api/admin/posts/"+id, writer, nil)
	assert.Equal(t, http.StatusForbidden, resp.code)
	resp = f.do(t, http.MethodDelete, "/api/admin/posts/"+id, admin, nil)
	require.Equal(t, http.StatusOK, resp.code)

	resp = f.do(t, http.MethodGet, "/api/posts/slug/hello-world", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.code)
}
