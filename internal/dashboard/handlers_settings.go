package dashboard

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/auth"
	"github.com/zulandar/testyard/internal/models"
	"github.com/zulandar/testyard/internal/project"
)

func handleLogin(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := s.Auth.Login(c.Request.Context(), c.PostForm("username"), c.PostForm("password"))
		if err != nil {
			s.renderError(c, err)
			return
		}
		token, err := s.Auth.Issue(c.Request.Context(), p.Username, p.Scopes)
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
	}
}

func handleLogout(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Auth.Revoke(c.Request.Context(), auth.GetPrincipal(c).Username); err != nil {
			s.renderError(c, err)
			return
		}
		c.Status(http.StatusOK)
	}
}

// loadProject resolves the ":project" parameter. On failure the error has
// been rendered and ok is false.
func (s *Server) loadProject(c *gin.Context) (*models.Project, bool) {
	p, err := project.Get(s.DB.WithContext(c.Request.Context()), s.Projects, c.Param("project"))
	if err != nil {
		s.renderError(c, err)
		return nil, false
	}
	return p, true
}

func handleListProjects(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := project.List(s.DB.WithContext(c.Request.Context()))
		if err != nil {
			s.renderError(c, err)
			return
		}
		scopes := auth.GetPrincipal(c).Scopes
		visible := []models.Project{}
		for _, p := range all {
			if auth.Right(scopes, p.Alias) != "" {
				visible = append(visible, p)
			}
		}
		c.JSON(http.StatusOK, visible)
	}
}

func handleCreateProject(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			renderBindError(c, err)
			return
		}
		p, err := project.Register(s.DB.WithContext(c.Request.Context()), s.Projects, body.Name)
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"name": p.Name})
	}
}

type userView struct {
	Username string            `json:"username"`
	Scopes   map[string]string `json:"scopes"`
}

func newUserView(u *models.User) userView {
	scopes := u.Scopes.Data()
	if scopes == nil {
		scopes = map[string]string{}
	}
	return userView{Username: u.Username, Scopes: scopes}
}

// scopeKey maps a project name in a scope grant to the alias scopes are
// keyed by.
func (s *Server) scopeKey(name string) (string, error) {
	if name == auth.Wildcard {
		return name, nil
	}
	a, ok := s.Projects.Provide(name)
	if !ok {
		return "", fmt.Errorf("dashboard: scope on %q: %w", name, apperr.ErrProjectNotRegistered)
	}
	return a, nil
}

func handleCreateUser(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Username string            `json:"username" binding:"required"`
			Password string            `json:"password" binding:"required"`
			Scopes   map[string]string `json:"scopes"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			renderBindError(c, err)
			return
		}
		scopes := make(map[string]string, len(body.Scopes))
		for name, right := range body.Scopes {
			key, err := s.scopeKey(name)
			if err != nil {
				s.renderError(c, err)
				return
			}
			scopes[key] = right
		}
		u, err := auth.CreateUser(s.DB.WithContext(c.Request.Context()), body.Username, body.Password, scopes)
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, newUserView(u))
	}
}

func handleSetScope(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Project string `json:"project" binding:"required"`
			Right   string `json:"right"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			renderBindError(c, err)
			return
		}
		key, err := s.scopeKey(body.Project)
		if err != nil {
			s.renderError(c, err)
			return
		}
		u, err := auth.SetScope(s.DB.WithContext(c.Request.Context()), c.Param("username"), key, body.Right)
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, newUserView(u))
	}
}
