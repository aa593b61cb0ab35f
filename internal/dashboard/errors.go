package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/testyard/internal/apperr"
)

// renderError writes {"detail": ...} with the status mapped from err.
// Errors with no business kind are logged before the 500 goes out.
func (s *Server) renderError(c *gin.Context, err error) {
	code := apperr.HTTPStatus(err)
	if code == http.StatusInternalServerError {
		s.Logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err,
		)
	}
	c.AbortWithStatusJSON(code, gin.H{"detail": err.Error()})
}

// renderBindError reports a body that does not fit the route's schema.
func renderBindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
}
