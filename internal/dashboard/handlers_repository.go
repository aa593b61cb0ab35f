package dashboard

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/testyard/internal/repository"
)

func handleRepositoryUpload(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		f, err := openUpload(c)
		if err != nil {
			s.renderError(c, err)
			return
		}
		defer f.Close()

		rows, err := repository.ParseCSV(f)
		if err != nil {
			s.renderError(c, err)
			return
		}

		ctx := c.Request.Context()
		key, err := s.Board.Start(ctx, p.Alias, "", "", false)
		if err != nil {
			s.renderError(c, err)
			return
		}
		err = s.dispatch(ctx, importJob{
			kind:    "repository",
			project: p.Alias,
			key:     key,
			run: func(ctx context.Context) (fmt.Stringer, error) {
				return repository.Ingest(ctx, s.DB, p, rows)
			},
		})
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.Header(statusKeyHeader, key)
		c.Status(http.StatusNoContent)
	}
}

func handleListEpics(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		epics, err := repository.ListEpics(s.DB.WithContext(c.Request.Context()), p)
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, epics)
	}
}

func handleListFeatures(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		features, err := repository.ListFeatures(s.DB.WithContext(c.Request.Context()), p, c.Param("epic"))
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, features)
	}
}

func handleListScenarios(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		scenarios, err := repository.ListScenarios(s.DB.WithContext(c.Request.Context()), p, c.Param("epic"), c.Param("feature"))
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, scenarios)
	}
}

func handleDeleteScenario(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		err := repository.SoftDeleteScenario(s.DB.WithContext(c.Request.Context()), p, c.Param("epic"), c.Param("feature"), c.Param("scenario"))
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
