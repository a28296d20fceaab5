package middleware

import (
	"context"
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
	"github.com/blogorithm/blogorithm/identity"
	"github.com/blogorithm/blogorithm/rbac"
	"github.com/blogorithm/blogorithm/session"
)

const browserAgent = "Mozilla/5.0 (X11; Linux x86_64) Firefox/142.0"

type guardFixture struct {
	engine *blogorithm.Engine
	mr     *miniredis.Miniredis
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := blogorithm.Config{}
	engine, err := blogorithm.New().
		WithConfig(mergeDefaults(cfg)).
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

	return &guardFixture{engine: engine, mr: mr}
}

func mergeDefaults(cfg blogorithm.Config) blogorithm.Config {
	cfg.Session.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Session.TTL = time.Hour
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 16
	cfg.Audit.DropIfFull = true
	cfg.Throttle.MaxSignInAttempts = 100
	cfg.Throttle.SignInCooldown = time.Minute
	cfg.Throttle.MaxAccessRequests = 100
	cfg.Throttle.AccessRequestWindow = time.Minute
	return cfg
}

// signInAs issues a session token whose frozen claim reflects the role
// currently stored for the email.
func (f *guardFixture) signInAs(t *testing.T, assertion string) string {
	t.Helper()

	token, _, err := f.engine.SignIn(context.Background(), assertion)
	require.NoError(t, err)
	return token
}

func (f *guardFixture) pageRouter(class rbac.RouteClass) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/guarded", GuardPage(f.engine, class), func(c *gin.Context) {
		user, _ := SessionUser(c)
		c.JSON(http.StatusOK, gin.H{"email": user.Email, "role": user.Role})
	})
	return r
}

func (f *guardFixture) apiRouter(class rbac.RouteClass) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/guarded", GuardAPI(f.engine, class), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return r
}

func doGet(r *gin.Engine, path, userAgent, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: cookie})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGuardPageSystemProbesPassThrough(t *testing.T) {
	f := newGuardFixture(t)
	r := f.pageRouter(rbac.ClassAdmin)

	for _, agent := range []string{"", "Node.js v20", "Vercel Edge", "Go-http-client/1.1"} {
		w := doGet(r, "/guarded", agent, "")
		assert.Equal(t, http.StatusOK, w.Code, "agent %q should bypass the guard", agent)
	}
}

func TestGuardPageRedirectsToSignIn(t *testing.T) {
	f := newGuardFixture(t)
	r := f.pageRouter(rbac.ClassWriter)

	w := doGet(r, "/guarded?draft=1", browserAgent, "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/signin?callbackUrl=%2Fguarded%3Fdraft%3D1", w.Header().Get("Location"))
}

func TestGuardPageMalformedTokenFailsClosed(t *testing.T) {
	f := newGuardFixture(t)
	r := f.pageRouter(rbac.ClassWriter)

	w := doGet(r, "/guarded", browserAgent, "not-a-token")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, UnauthorizedPath, w.Header().Get("Location"))
}

func TestGuardPageWriterClass(t *testing.T) {
	f := newGuardFixture(t)
	r := f.pageRouter(rbac.ClassWriter)
	ctx := context.Background()

	visitor := f.signInAs(t, "assert-a")
	w := doGet(r, "/guarded", browserAgent, visitor)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, RequestAccessPath, w.Header().Get("Location"))

	// Promote and re-issue; the refreshed claim admits.
	require.NoError(t, f.engine.Store().SetRole(ctx, "a@x.com", rbac.RoleWriter))
	writer := f.signInAs(t, "assert-a")
	w = doGet(r, "/guarded", browserAgent, writer)
	assert.Equal(t, http.StatusOK, w.Code)

	// The old cookie still carries the frozen visitor claim.
	w = doGet(r, "/guarded", browserAgent, visitor)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, RequestAccessPath, w.Header().Get("Location"))
}

func TestGuardPageWriterDeniedAdminClass(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.Store().SetRole(ctx, "a@x.com", rbac.RoleWriter))
	token := f.signInAs(t, "assert-a")

	w := doGet(f.pageRouter(rbac.ClassAdmin), "/guarded", browserAgent, token)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, UnauthorizedPath, w.Header().Get("Location"))
}

func TestGuardPageAdminClassStoreOutageFailsClosed(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.Store().SetAdminEmail(ctx, "root@x.com"))
	token := f.signInAs(t, "assert-admin")
	r := f.pageRouter(rbac.ClassAdmin)

	w := doGet(r, "/guarded", browserAgent, token)
	require.Equal(t, http.StatusOK, w.Code)

	// The claim still says admin, but the live check cannot confirm it.
	f.mr.Close()
	w = doGet(r, "/guarded", browserAgent, token)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, UnauthorizedPath, w.Header().Get("Location"))
}

func TestGuardAPIUnauthenticated(t *testing.T) {
	f := newGuardFixture(t)
	r := f.apiRouter(rbac.ClassWriter)

	w := doGet(r, "/api/guarded", browserAgent, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doGet(r, "/api/guarded", browserAgent, "junk")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGuardAPIInsufficientRole(t *testing.T) {
	f := newGuardFixture(t)
	token := f.signInAs(t, "assert-a")

	w := doGet(f.apiRouter(rbac.ClassWriter), "/api/guarded", browserAgent, token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGuardAPIStaleAdminClaimDenied(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.Store().SetRole(ctx, "a@x.com", rbac.RoleAdmin))
	token := f.signInAs(t, "assert-a")
	r := f.apiRouter(rbac.ClassAdmin)

	w := doGet(r, "/api/guarded", browserAgent, token)
	require.Equal(t, http.StatusOK, w.Code)

	// Demote behind the session's back; the live check must notice.
	require.NoError(t, f.engine.Store().SetRole(ctx, "a@x.com", rbac.RoleVisitor))
	w = doGet(r, "/api/guarded", browserAgent, token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
