package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/testyard/internal/apperr"
)

const principalKey = "testyard.principal"

// ProjectResolver maps a project name from a URL to its alias.
type ProjectResolver interface {
	Provide(name string) (string, bool)
}

// Require authenticates the bearer token and checks the caller's right on
// the project named by the ":project" path parameter. Routes without that
// parameter are checked against the wildcard project. With no rights given,
// any live session is accepted.
//
// An unregistered project resolves to no scope entry, so only wildcard
// admins get through and the handler reports the missing project.
func Require(svc *Service, projects ProjectResolver, rights ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		project := Wildcard
		if name := c.Param("project"); name != "" {
			project = ""
			if a, ok := projects.Provide(name); ok {
				project = a
			}
		}

		p, err := svc.Verify(c.Request.Context(), extractBearerToken(c), rights, project)
		if err != nil {
			c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"detail": err.Error()})
			return
		}
		SetPrincipal(c, p)
		c.Next()
	}
}

// SetPrincipal stores the authenticated caller in the request context.
func SetPrincipal(c *gin.Context, p *Principal) {
	c.Set(principalKey, p)
}

// GetPrincipal returns the caller stored by Require, or nil.
func GetPrincipal(c *gin.Context) *Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(*Principal); ok {
			return p
		}
	}
	return nil
}

// extractBearerToken returns the token of an "Authorization: Bearer" header,
// or "" when the header is missing or uses another scheme.
func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
