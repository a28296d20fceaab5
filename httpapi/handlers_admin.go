package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blogorithm/blogorithm"
	"github.com/blogorithm/blogorithm/rbac"
)

type requestAccessRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleRequestAccess(c *gin.Context) {
	token := sessionCookie(c)
	if token == "" {
		respondError(c, blogorithm.ErrUnauthenticated)
		return
	}

	var req requestAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "malformed body"})
		return
	}

	user, err := s.engine.RequestAccess(c.Request.Context(), token, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.engine.ListUsers(c.Request.Context(), sessionCookie(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": users})
}

type updateRoleRequest struct {
	Email string `json:"email" binding:"required"`
	Role  string `json:"role" binding:"required"`
}

func (s *Server) handleUpdateRole(c *gin.Context) {
	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "email and role required"})
		return
	}

	if err := s.engine.UpdateRole(c.Request.Context(), sessionCookie(c), req.Email, rbac.Role(req.Role)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleAdmins(c *gin.Context) {
	view, err := s.engine.Admins(c.Request.Context(), sessionCookie(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "primary": view.Primary, "admins": view.Admins})
}

type promoteAdminRequest struct {
	Email string `json:"email" binding:"required"`
}

func (s *Server) handlePromoteAdmin(c *gin.Context) {
	var req promoteAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "email required"})
		return
	}

	user, err := s.engine.PromoteAdmin(c.Request.Context(), sessionCookie(c), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

type setupAdminRequest struct {
	SetupKey string `json:"setupKey" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
}

func (s *Server) handleSetupAdmin(c *gin.Context) {
	var req setupAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "setupKey and email required"})
		return
	}

	user, err := s.engine.SetupAdmin(c.Request.Context(), req.SetupKey, req.Email, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (s *Server) handleInspectUser(c *gin.Context) {
	email := c.Query("email")
	report, err := s.engine.InspectUser(c.Request.Context(), sessionCookie(c), email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}

func (s *Server) handleRedisStatus(c *gin.Context) {
	status := s.engine.Health(c.Request.Context())
	code := http.StatusOK
	if !status.StoreUp {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

func (s *Server) handleHealthz(c *gin.Context) {
	status := s.engine.Health(c.Request.Context())
	if !status.StoreUp {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": status.Error})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
