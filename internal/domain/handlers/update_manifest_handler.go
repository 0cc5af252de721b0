package handlers

import (
	"context"
	"errors"
	"os"

	"github.com/OctopusSolutionsEngineering/GitOpsManifestUpdater/internal/domain/apperrors"
	"github.com/OctopusSolutionsEngineering/GitOpsManifestUpdater/internal/domain/models"
	"github.com/OctopusSolutionsEngineering/GitOpsManifestUpdater/internal/domain/tags"
	"github.com/OctopusSolutionsEngineering/GitOpsManifestUpdater/internal/infrastructure/apploggers"
	"github.com/OctopusSolutionsEngineering/GitOpsManifestUpdater/internal/infrastructure/git_apis"
	"github.com/OctopusSolutionsEngineering/GitOpsManifestUpdater/internal/infrastructure/manifests"
	"github.com/hashicorp/go-multierror"
)

// UpdateManifestHandler points a service's deployment manifest at a newly built image and
// publishes the change for the GitOps reconciler to pick up. One invocation performs at most one
// commit and push. Concurrent invocations against the same repository are not coordinated: the
// later push is rejected by the remote and the step must be rerun.
type UpdateManifestHandler struct {
	logger apploggers.AppLogger
	git    git_apis.GitRepositoryClient
	editor *manifests.DeploymentEditor
}

func NewUpdateManifestHandler() (*UpdateManifestHandler, error) {
	logger, err := apploggers.NewDevProdLogger()

	if err != nil {
		return nil, err
	}

	gitClient, err := git_apis.NewLiveGitClient()

	if err != nil {
		return nil, err
	}

	return &UpdateManifestHandler{
		logger: logger,
		git:    gitClient,
		editor: &manifests.DeploymentEditor{},
	}, nil
}

func (h *UpdateManifestHandler) UpdateManifest(ctx context.Context, request models.ManifestUpdateRequest) (result models.UpdateResult, err error) {
	if request.Service == "" {
		return models.UpdateResult{}, apperrors.New(apperrors.PreconditionFailure, "a service name must be supplied")
	}

	if request.Repository == "" {
		return models.UpdateResult{}, apperrors.New(apperrors.PreconditionFailure, "an image repository must be supplied")
	}

	if request.Tag == "" {
		return models.UpdateResult{}, apperrors.New(apperrors.PreconditionFailure, "an image tag must be supplied")
	}

	workspace, err := h.git.Checkout(ctx)

	if err != nil {
		return models.UpdateResult{}, err
	}

	// The clone is removed on every exit path. A failed removal is still an error for the
	// step, because leaked clones accumulate across pipeline runs.
	defer func() {
		if closeErr := workspace.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr).ErrorOrNil()
		}
	}()

	changed, err := h.editor.SetImage(workspace.Filesystem(), request.ManifestFileName(), request.Service, request.ImageReference())

	if errors.Is(err, os.ErrNotExist) || errors.Is(err, manifests.ErrNoContainers) {
		return models.UpdateResult{}, apperrors.Wrap(apperrors.ManifestNotFound, "no deployment manifest found for the service "+request.Service+". Expected a manifest named "+request.ManifestFileName(), err)
	}

	if err != nil {
		return models.UpdateResult{}, err
	}

	if !changed {
		h.logger.GetLogger().Info("The manifest for " + request.Service + " already references " + request.ImageReference())
		return models.UpdateResult{NoOp: true}, nil
	}

	sha, err := workspace.CommitAndPush(ctx, commitMessage(request))

	if errors.Is(err, apperrors.ErrNoOpCommit) {
		return models.UpdateResult{NoOp: true}, nil
	}

	if err != nil {
		return models.UpdateResult{}, err
	}

	h.logger.GetLogger().Info("Updated the " + request.Service + " manifest to " + request.ImageReference() + " in commit " + sha)

	return models.UpdateResult{CommitSha: sha}, nil
}

func commitMessage(request models.ManifestUpdateRequest) string {
	return "Update " + request.Service + " image to " + request.ImageReference() + " (" + string(tags.Classify(request.Tag)) + " tag)"
}
