package dashboard

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/bug"
)

func bugIDParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("dashboard: bug id %q: %w", c.Param("id"), apperr.ErrMalformedInput)
	}
	return uint(id), nil
}

func handleListBugs(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		bugs, err := bug.List(s.DB.WithContext(c.Request.Context()), p, bug.ListFilter{
			Version: c.Query("version"),
			Status:  c.Query("status"),
		})
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, bugs)
	}
}

func handleCreateBug(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		var body struct {
			Title       string         `json:"title" binding:"required"`
			Description string         `json:"description"`
			Version     string         `json:"version" binding:"required"`
			Criticality string         `json:"criticality" binding:"required"`
			Status      string         `json:"status"`
			URL         string         `json:"url"`
			RelatedTo   []bug.Relation `json:"related_to" binding:"omitempty,dive"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			renderBindError(c, err)
			return
		}
		b, err := s.Bugs.Create(c.Request.Context(), p, bug.CreateOpts{
			Version:     body.Version,
			Title:       body.Title,
			Description: body.Description,
			Criticality: body.Criticality,
			Status:      body.Status,
			URL:         body.URL,
			RelatedTo:   body.RelatedTo,
		})
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

func handleGetBug(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		id, err := bugIDParam(c)
		if err != nil {
			s.renderError(c, err)
			return
		}
		b, err := bug.Get(s.DB.WithContext(c.Request.Context()), p, id)
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

func handleUpdateBug(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		id, err := bugIDParam(c)
		if err != nil {
			s.renderError(c, err)
			return
		}
		var body struct {
			Title       *string `json:"title"`
			Description *string `json:"description"`
			URL         *string `json:"url"`
			Criticality *string `json:"criticality"`
			Status      *string `json:"status"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			renderBindError(c, err)
			return
		}
		b, err := bug.Update(s.DB.WithContext(c.Request.Context()), p, id, bug.UpdateOpts{
			Title:       body.Title,
			Description: body.Description,
			URL:         body.URL,
			Criticality: body.Criticality,
			Status:      body.Status,
		})
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}
