package httpapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/blogorithm/blogorithm/cms"
	"github.com/blogorithm/blogorithm/middleware"
)

// postInputFromForm reads a multipart create/update form. The cover image
// is optional; everything else is plain form fields.
func postInputFromForm(c *gin.Context) (cms.PostInput, error) {
	input := cms.PostInput{
		Title:   c.PostForm("title"),
		Content: c.PostForm("content"),
		Summary: c.PostForm("summary"),
		Status:  c.PostForm("status"),
	}
	if tags := c.PostForm("tags"); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				input.Tags = append(input.Tags, tag)
			}
		}
	}

	file, header, err := c.Request.FormFile("coverImage")
	if err == http.ErrMissingFile || err == http.ErrNotMultipart {
		return input, nil
	}
	if err != nil {
		return input, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return input, err
	}
	input.CoverImage = data
	input.CoverName = header.Filename
	input.CoverType = header.Header.Get("Content-Type")
	return input, nil
}

func (s *Server) handleCreatePost(c *gin.Context) {
	if s.posts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "cms not configured"})
		return
	}
	user, _ := middleware.SessionUser(c)

	input, err := postInputFromForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "malformed form"})
		return
	}
	if input.Title == "" || input.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "title and content required"})
		return
	}

	id, err := s.posts.CreatePost(c.Request.Context(), cms.Author{Name: user.Name, Email: user.Email}, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "id": id})
}

func (s *Server) handleUpdatePost(c *gin.Context) {
	if s.posts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "cms not configured"})
		return
	}

	input, err := postInputFromForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "malformed form"})
		return
	}

	if err := s.posts.UpdatePost(c.Request.Context(), c.Param("id"), input); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleGetPostBySlug(c *gin.Context) {
	if s.posts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "cms not configured"})
		return
	}

	doc, err := s.posts.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "post": doc})
}

func (s *Server) handleUserPosts(c *gin.Context) {
	if s.posts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "cms not configured"})
		return
	}
	user, _ := middleware.SessionUser(c)

	docs, err := s.posts.ListByAuthor(c.Request.Context(), user.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "posts": docs})
}

func (s *Server) handleDeletePost(c *gin.Context) {
	if s.posts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "cms not configured"})
		return
	}

	if err := s.posts.DeletePost(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
