// Package httpapi exposes the platform over HTTP: session endpoints, the
// role-management API, guarded page routes, and post CRUD behind the guard.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blogorithm/blogorithm"
	"github.com/blogorithm/blogorithm/cms"
	"github.com/blogorithm/blogorithm/logger"
	"github.com/blogorithm/blogorithm/middleware"
	"github.com/blogorithm/blogorithm/rbac"
	"github.com/blogorithm/blogorithm/session"
)

// Config carries HTTP-layer settings.
type Config struct {
	// CookieSecure marks the session cookie Secure; leave false only for
	// local development over plain HTTP.
	CookieSecure bool
}

// Server binds the engine and the post service to a gin router.
type Server struct {
	engine *blogorithm.Engine
	posts  *cms.PostService
	log    logger.Logger
	cfg    Config
}

// NewServer wires the HTTP surface. posts may be nil when the CMS is not
// configured; the post routes then respond 503.
func NewServer(engine *blogorithm.Engine, posts *cms.PostService, log logger.Logger, cfg Config) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{engine: engine, posts: posts, log: log, cfg: cfg}
}

// Router builds the route table.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestContext())

	// Session lifecycle.
	r.POST("/api/auth/signin", s.handleSignIn)
	r.POST("/api/auth/refresh", s.handleRefresh)
	r.GET("/api/auth/session", s.handleSession)
	r.GET("/api/auth/refresh-session", s.handleSyncRole)

	// Role workflow.
	r.POST("/api/request-access", s.handleRequestAccess)
	r.GET("/api/users", s.handleListUsers)
	r.PUT("/api/users/role", s.handleUpdateRole)
	r.GET("/api/admins", s.handleAdmins)
	r.POST("/api/admins", s.handlePromoteAdmin)
	r.POST("/api/setup-admin", s.handleSetupAdmin)

	// Introspection.
	r.GET("/api/debug/redis", s.handleInspectUser)
	r.GET("/api/debug/session", s.handleDebugSession)
	r.GET("/api/redis-status", s.handleRedisStatus)
	r.GET("/healthz", s.handleHealthz)

	// Content, guarded per route class.
	r.GET("/api/posts/slug/:slug", s.handleGetPostBySlug)
	writerAPI := r.Group("/", middleware.GuardAPI(s.engine, rbac.ClassWriter))
	{
		writerAPI.POST("/api/posts", s.handleCreatePost)
		writerAPI.PUT("/api/posts/:id", s.handleUpdatePost)
		writerAPI.GET("/api/user/posts", s.handleUserPosts)
	}
	r.DELETE("/api/admin/posts/:id",
		middleware.GuardAPI(s.engine, rbac.ClassAdmin), s.handleDeletePost)

	// Browser pages. The guarded ones exist primarily to exercise the
	// page guard; a frontend would render here.
	r.GET(middleware.SignInPath, s.page("signin"))
	r.GET(middleware.RequestAccessPath, s.page("request-access"))
	r.GET(middleware.UnauthorizedPath, s.page("unauthorized"))
	r.GET("/write", middleware.GuardPage(s.engine, rbac.ClassWriter), s.page("write"))
	r.GET("/authorize", middleware.GuardPage(s.engine, rbac.ClassAdmin), s.page("authorize"))
	admin := r.Group("/admin", middleware.GuardPage(s.engine, rbac.ClassAdmin))
	{
		admin.GET("", s.page("admin"))
		admin.GET("/users", s.page("admin-users"))
		admin.GET("/posts", s.page("admin-posts"))
	}

	return r
}

// requestContext threads the logger and client metadata through the
// request context so the engine and guard can reach them.
func (s *Server) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ctx = logger.ContextWith(ctx, s.log)
		ctx = blogorithm.WithClientIP(ctx, c.ClientIP())
		ctx = blogorithm.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) page(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload := gin.H{"page": name}
		if user, ok := middleware.SessionUser(c); ok {
			payload["user"] = user
		}
		c.JSON(http.StatusOK, payload)
	}
}

// sessionCookie reads the raw session token, empty when absent.
func sessionCookie(c *gin.Context) string {
	token, err := c.Cookie(session.CookieName)
	if err != nil {
		return ""
	}
	return token
}

func (s *Server) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, token,
		int(s.engine.Sessions().TTL().Seconds()), "/", "", s.cfg.CookieSecure, true)
}
