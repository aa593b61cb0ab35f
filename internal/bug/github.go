package bug

import (
	"context"
	"fmt"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// GitHubTracker opens bugs as issues in one GitHub repository.
type GitHubTracker struct {
	issues      issueService
	owner, repo string
	labels      []string
}

// issueService is the subset of github.IssuesService we use.
type issueService interface {
	Create(ctx context.Context, owner, repo string, issue *github.IssueRequest) (*github.Issue, *github.Response, error)
}

// NewGitHubTracker authenticates with a static token.
func NewGitHubTracker(ctx context.Context, token, owner, repo string) *GitHubTracker {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	return &GitHubTracker{
		issues: client.Issues,
		owner:  owner,
		repo:   repo,
		labels: []string{"bug"},
	}
}

// OpenIssue creates an issue and returns its HTML URL.
func (g *GitHubTracker) OpenIssue(ctx context.Context, title, body string) (string, error) {
	issue, _, err := g.issues.Create(ctx, g.owner, g.repo, &github.IssueRequest{
		Title:  github.Ptr(title),
		Body:   github.Ptr(body),
		Labels: &g.labels,
	})
	if err != nil {
		return "", fmt.Errorf("bug: open issue in %s/%s: %w", g.owner, g.repo, err)
	}
	return issue.GetHTMLURL(), nil
}
