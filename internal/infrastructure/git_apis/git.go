package git_apis

import (
	"context"

	"github.com/go-git/go-billy/v5"
)

// GitRepositoryClient provides access to the remote manifest repository that the GitOps
// reconciler observes.
type GitRepositoryClient interface {
	// Checkout clones the remote repository into a fresh, isolated temporary directory
	Checkout(ctx context.Context) (Workspace, error)
}

// Workspace is a handle over a single temporary clone. Close must be called on every exit path
// so repeated pipeline runs do not accumulate clones on disk.
type Workspace interface {
	// Filesystem exposes the files of the clone's worktree
	Filesystem() billy.Filesystem
	// CommitAndPush stages every change in the worktree, commits it with the supplied message,
	// and pushes to the branch the clone was taken from. It returns apperrors.ErrNoOpCommit
	// when the worktree is clean.
	CommitAndPush(ctx context.Context, message string) (string, error)
	// Close removes the temporary clone
	Close() error
}
