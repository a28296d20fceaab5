package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blogorithm/blogorithm"
)

type signInRequest struct {
	Assertion string `json:"assertion" binding:"required"`
}

func (s *Server) handleSignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "assertion required"})
		return
	}

	token, user, err := s.engine.SignIn(c.Request.Context(), req.Assertion)
	if err != nil {
		respondError(c, err)
		return
	}

	s.setSessionCookie(c, token)
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// handleRefresh is the commit half of the synchronization two-step: it
// re-resolves the caller's role and replaces the session cookie.
func (s *Server) handleRefresh(c *gin.Context) {
	token := sessionCookie(c)
	if token == "" {
		respondError(c, blogorithm.ErrUnauthenticated)
		return
	}

	fresh, user, err := s.engine.RefreshSession(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}

	s.setSessionCookie(c, fresh)
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (s *Server) handleSession(c *gin.Context) {
	token := sessionCookie(c)
	if token == "" {
		// An anonymous visitor is a normal state, not an error.
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}

	user, err := s.engine.Session(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// handleSyncRole is the probe half: it reports drift between the cookie's
// frozen role and the store without touching either.
func (s *Server) handleSyncRole(c *gin.Context) {
	token := sessionCookie(c)
	if token == "" {
		respondError(c, blogorithm.ErrUnauthenticated)
		return
	}

	sync, err := s.engine.SyncRole(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"roleUpdated": sync.RoleUpdated,
		"currentRole": sync.CurrentRole,
		"updatedRole": sync.UpdatedRole,
		"session":     gin.H{"email": sync.Email},
	})
}

func (s *Server) handleDebugSession(c *gin.Context) {
	token := sessionCookie(c)
	if token == "" {
		c.JSON(http.StatusOK, gin.H{"hasSession": false})
		return
	}

	user, err := s.engine.Session(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"hasSession": false, "valid": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hasSession": true, "valid": true, "user": user})
}
