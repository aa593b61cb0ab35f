package auth

import (
	"fmt"
	"slices"

	"github.com/zulandar/testyard/internal/apperr"
)

// Rights a principal can hold on a project.
const (
	RightAdmin = "admin"
	RightUser  = "user"
)

// Wildcard is the scope key granting a right on every project.
const Wildcard = "*"

// AnyRight is the requirement accepted by routes open to admins and users.
var AnyRight = []string{RightAdmin, RightUser}

// Right returns the right held on project. Only a wildcard admin reaches
// every project; any other right needs the project's own entry.
func Right(scopes map[string]string, project string) string {
	if scopes[Wildcard] == RightAdmin {
		return RightAdmin
	}
	return scopes[project]
}

// ValidateRight checks that right is admin or user.
func ValidateRight(right string) error {
	if right != RightAdmin && right != RightUser {
		return fmt.Errorf("auth: right %q is not admin or user: %w", right, apperr.ErrUnknownStatus)
	}
	return nil
}

// authorize checks that the right held on project is one of required.
// An empty required list accepts any authenticated principal.
func authorize(scopes map[string]string, required []string, project string) error {
	if len(required) == 0 {
		return nil
	}
	right := Right(scopes, project)
	if right == "" || !slices.Contains(required, right) {
		return fmt.Errorf("auth: project %q requires %v: %w", project, required, apperr.ErrAccessDenied)
	}
	return nil
}
