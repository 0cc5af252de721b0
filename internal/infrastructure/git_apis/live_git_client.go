package git_apis

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/OctopusSolutionsEngineering/GitOpsManifestUpdater/internal/domain/apperrors"
	"github.com/OctopusSolutionsEngineering/GitOpsManifestUpdater/internal/infrastructure/apploggers"
	"github.com/OctopusSolutionsEngineering/GitOpsManifestUpdater/internal/infrastructure/retry_config"
	"github.com/avast/retry-go"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const DefaultGitTimeout = time.Minute

// LiveGitClient clones, commits to, and pushes the remote manifest repository. The remote URL
// carries the write credentials injected by the pipeline's secret mechanism, so it is never
// printed or logged.
type LiveGitClient struct {
	repoURL     string
	branch      string
	authorName  string
	authorEmail string
	timeout     time.Duration
	logger      apploggers.AppLogger
}

func NewLiveGitClient() (*LiveGitClient, error) {
	if os.Getenv("MANIFEST_REPO_URL") == "" {
		return nil, apperrors.New(apperrors.PreconditionFailure, "MANIFEST_REPO_URL must be defined")
	}

	logger, err := apploggers.NewDevProdLogger()

	if err != nil {
		return nil, err
	}

	timeout := DefaultGitTimeout
	if value := os.Getenv("MANIFEST_GIT_TIMEOUT"); value != "" {
		parsed, err := time.ParseDuration(value)

		if err != nil {
			return nil, apperrors.Wrap(apperrors.PreconditionFailure, "failed to parse MANIFEST_GIT_TIMEOUT as a duration like \"60s\"", err)
		}

		timeout = parsed
	}

	authorName := os.Getenv("MANIFEST_GIT_NAME")
	if authorName == "" {
		authorName = "Manifest Updater"
	}

	authorEmail := os.Getenv("MANIFEST_GIT_EMAIL")
	if authorEmail == "" {
		authorEmail = "manifestupdater@pipeline.local"
	}

	return &LiveGitClient{
		repoURL:     os.Getenv("MANIFEST_REPO_URL"),
		branch:      os.Getenv("MANIFEST_REPO_BRANCH"),
		authorName:  authorName,
		authorEmail: authorEmail,
		timeout:     timeout,
		logger:      logger,
	}, nil
}

func (g *LiveGitClient) Checkout(ctx context.Context) (Workspace, error) {
	dir, err := os.MkdirTemp("", "manifestupdater-*")

	if err != nil {
		return nil, apperrors.Wrap(apperrors.CloneFailure, "failed to create a temporary directory for the clone", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	options := &git.CloneOptions{
		URL:          g.repoURL,
		SingleBranch: true,
	}

	if g.branch != "" {
		options.ReferenceName = plumbing.NewBranchReferenceName(g.branch)
	}

	repository, err := git.PlainCloneContext(cloneCtx, dir, false, options)

	if err != nil {
		// Best effort removal, there is nothing more to do if the directory is stuck
		os.RemoveAll(dir)
		return nil, apperrors.Wrap(apperrors.CloneFailure, "failed to clone "+redactURL(g.repoURL)+". Check the repository URL, credentials, and branch name", err)
	}

	worktree, err := repository.Worktree()

	if err != nil {
		os.RemoveAll(dir)
		return nil, apperrors.Wrap(apperrors.CloneFailure, "failed to open the worktree of the clone", err)
	}

	g.logger.GetLogger().Debug("Cloned " + redactURL(g.repoURL) + " into " + dir)

	return &gitWorkspace{
		repository:  repository,
		worktree:    worktree,
		dir:         dir,
		authorName:  g.authorName,
		authorEmail: g.authorEmail,
		timeout:     g.timeout,
	}, nil
}

type gitWorkspace struct {
	repository  *git.Repository
	worktree    *git.Worktree
	dir         string
	authorName  string
	authorEmail string
	timeout     time.Duration
}

func (w *gitWorkspace) Filesystem() billy.Filesystem {
	return w.worktree.Filesystem
}

func (w *gitWorkspace) CommitAndPush(ctx context.Context, message string) (string, error) {
	status, err := w.worktree.Status()

	if err != nil {
		return "", err
	}

	if status.IsClean() {
		return "", apperrors.ErrNoOpCommit
	}

	err = w.worktree.AddWithOptions(&git.AddOptions{All: true})

	if err != nil {
		return "", err
	}

	commit, err := w.worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  w.authorName,
			Email: w.authorEmail,
			When:  time.Now(),
		},
	})

	if err != nil {
		return "", err
	}

	pushCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	err = w.repository.PushContext(pushCtx, &git.PushOptions{})

	if err != nil {
		return "", apperrors.Wrap(apperrors.PushRejected, "the remote rejected the push. Rerun the step once the remote is reachable and the branch is in sync", err)
	}

	return commit.String(), nil
}

func (w *gitWorkspace) Close() error {
	// Removal is retried because pack files can still be held open briefly after a clone
	err := retry.Do(
		func() error {
			return os.RemoveAll(w.dir)
		}, retry_config.CleanupRetryOptions...)

	if err != nil {
		return fmt.Errorf("failed to remove the temporary clone at %s: %w", w.dir, err)
	}

	return nil
}

// redactURL strips credentials from the repository URL so they never reach logs or error messages
func redactURL(repoURL string) string {
	parsed, err := url.Parse(repoURL)

	if err != nil {
		return "the configured manifest repository"
	}

	return parsed.Redacted()
}
