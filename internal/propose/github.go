// Package propose turns an updated ledger document into a reviewable
// change: a branch off the base ref, a commit replacing the ledger file,
// and a pull request. Nothing lands on the base branch without review.
package propose

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
	"github.com/rs/zerolog"
)

// Proposer opens pull requests against the chronicle repository.
type Proposer struct {
	client     *github.Client
	owner      string
	repo       string
	baseBranch string
	ledgerPath string
	now        func() time.Time
	logger     zerolog.Logger
}

// New builds a proposer. repository is "owner/name" as GitHub Actions
// exposes it.
func New(token, repository, baseBranch, ledgerPath string, logger zerolog.Logger) (*Proposer, error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(repository), "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("repository must be owner/name, got %q", repository)
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("token is required")
	}
	if strings.TrimSpace(baseBranch) == "" {
		baseBranch = "main"
	}

	return &Proposer{
		client:     github.NewClient(nil).WithAuthToken(token),
		owner:      owner,
		repo:       repo,
		baseBranch: baseBranch,
		ledgerPath: ledgerPath,
		now:        time.Now,
		logger:     logger,
	}, nil
}

// Propose pushes the full ledger document to a fresh branch and opens a
// pull request. Returns the PR URL.
func (p *Proposer) Propose(ctx context.Context, ledgerDocument []byte, newIncidents int) (string, error) {
	baseRef, _, err := p.client.Git.GetRef(ctx, p.owner, p.repo, "heads/"+p.baseBranch)
	if err != nil {
		return "", fmt.Errorf("get base branch ref: %w", err)
	}

	branch := fmt.Sprintf("update-incidents-%s", p.now().UTC().Format("20060102-150405"))
	_, _, err = p.client.Git.CreateRef(ctx, p.owner, p.repo, &github.Reference{
		Ref:    github.Ptr("refs/heads/" + branch),
		Object: &github.GitObject{SHA: baseRef.Object.SHA},
	})
	if err != nil {
		return "", fmt.Errorf("create branch %s: %w", branch, err)
	}

	message := fmt.Sprintf("Add %d new incidents", newIncidents)
	fileOpts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: ledgerDocument,
		Branch:  github.Ptr(branch),
	}

	existing, _, resp, err := p.client.Repositories.GetContents(ctx, p.owner, p.repo, p.ledgerPath,
		&github.RepositoryContentGetOptions{Ref: p.baseBranch})
	switch {
	case err == nil && existing != nil:
		fileOpts.SHA = existing.SHA
		_, _, err = p.client.Repositories.UpdateFile(ctx, p.owner, p.repo, p.ledgerPath, fileOpts)
	case resp != nil && resp.StatusCode == http.StatusNotFound:
		_, _, err = p.client.Repositories.CreateFile(ctx, p.owner, p.repo, p.ledgerPath, fileOpts)
	case err != nil:
		return "", fmt.Errorf("get current ledger file: %w", err)
	default:
		return "", fmt.Errorf("ledger path %s is not a file", p.ledgerPath)
	}
	if err != nil {
		return "", fmt.Errorf("commit ledger update: %w", err)
	}

	pr, _, err := p.client.PullRequests.Create(ctx, p.owner, p.repo, &github.NewPullRequest{
		Title: github.Ptr(message),
		Body:  github.Ptr("Automatically detected new incidents from news sources."),
		Head:  github.Ptr(branch),
		Base:  github.Ptr(p.baseBranch),
	})
	if err != nil {
		return "", fmt.Errorf("create pull request: %w", err)
	}

	p.logger.Info().Str("url", pr.GetHTMLURL()).Int("new_incidents", newIncidents).Msg("opened change proposal")
	return pr.GetHTMLURL(), nil
}
