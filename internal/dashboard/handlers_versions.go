package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/testyard/internal/project"
	"github.com/zulandar/testyard/internal/ticket"
)

func handleListVersions(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		versions, err := project.ListVersions(s.DB.WithContext(c.Request.Context()), p)
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, versions)
	}
}

func handleCreateVersion(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		var body struct {
			Version string `json:"version" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			renderBindError(c, err)
			return
		}
		v, err := project.CreateVersion(s.DB.WithContext(c.Request.Context()), p, body.Version)
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"inserted_id": v.ID})
	}
}

func handleGetVersion(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		v, err := project.GetVersion(s.DB.WithContext(c.Request.Context()), p, c.Param("version"))
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

func handleUpdateVersion(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		var body struct {
			Status      *string `json:"status"`
			Started     *string `json:"started"`
			EndForecast *string `json:"end_forecast"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			renderBindError(c, err)
			return
		}
		v, err := project.UpdateVersion(s.DB.WithContext(c.Request.Context()), p, c.Param("version"), project.UpdateVersionOpts{
			Status:      body.Status,
			Started:     body.Started,
			EndForecast: body.EndForecast,
		})
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

func handleListTickets(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		tickets, err := ticket.List(s.DB.WithContext(c.Request.Context()), p, c.Param("version"))
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, tickets)
	}
}

func handleCreateTicket(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		var body struct {
			Reference   string `json:"reference" binding:"required"`
			Description string `json:"description"`
			Status      string `json:"status"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			renderBindError(c, err)
			return
		}
		t, err := ticket.Create(s.DB.WithContext(c.Request.Context()), p, c.Param("version"), ticket.CreateOpts{
			Reference:   body.Reference,
			Description: body.Description,
			Status:      body.Status,
		})
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"inserted_id": t.ID})
	}
}

func handleGetTicket(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		t, err := ticket.Get(s.DB.WithContext(c.Request.Context()), p, c.Param("reference"))
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func handleUpdateTicket(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		var body struct {
			Description *string `json:"description"`
			Status      *string `json:"status"`
			Version     *string `json:"version"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			renderBindError(c, err)
			return
		}
		t, err := ticket.Update(s.DB.WithContext(c.Request.Context()), p, c.Param("version"), c.Param("reference"), ticket.UpdateOpts{
			Description: body.Description,
			Status:      body.Status,
			Version:     body.Version,
		})
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}
