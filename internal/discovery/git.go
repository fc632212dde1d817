// File: internal/discovery/git.go
package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
)

// ErrCloneFailed wraps any failure to fetch a remote scan target.
var ErrCloneFailed = errors.New("failed to clone repository")

// CloneRepository makes a shallow, single-branch clone of repoURL into dir
// and returns the commit hash of HEAD.
func CloneRepository(ctx context.Context, repoURL, dir string) (string, error) {
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          repoURL,
		Depth:        1,
		Tags:         git.NoTags,
		SingleBranch: true,
	})
	if err != nil {
		return "", fmt.Errorf("%w %s: %v", ErrCloneFailed, repoURL, err)
	}
	return headCommit(repo)
}

// OpenRepository returns the HEAD commit of an existing checkout.
func OpenRepository(dir string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("failed to open repository %s: %w", dir, err)
	}
	return headCommit(repo)
}

func headCommit(repo *git.Repository) (string, error) {
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}
