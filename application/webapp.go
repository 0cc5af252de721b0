package main

import (
	"context"
	"net/http"
	"time"

	"github.com/OctopusSolutionsEngineering/GitOpsManifestUpdater/internal/domain/handlers"
	"github.com/OctopusSolutionsEngineering/GitOpsManifestUpdater/internal/domain/json"
	"github.com/OctopusSolutionsEngineering/GitOpsManifestUpdater/internal/domain/models"
	"github.com/OctopusSolutionsEngineering/GitOpsManifestUpdater/internal/infrastructure/apploggers"
	"github.com/allegro/bigcache/v3"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

type manifestUpdater interface {
	UpdateManifest(ctx context.Context, request models.ManifestUpdateRequest) (models.UpdateResult, error)
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the updater as a webhook endpoint for pipelines that notify over HTTP",
		RunE: func(c *cobra.Command, args []string) error {
			updateHandler, err := handlers.NewUpdateManifestHandler()

			if err != nil {
				return err
			}

			return startWebApp(updateHandler)
		},
	}
}

func startWebApp(updateHandler manifestUpdater) error {
	logger, err := apploggers.NewDevProdLogger()

	if err != nil {
		return err
	}

	// Pipelines can deliver the same notification more than once. A repeat of an update that
	// already succeeded is a no-op, so recent updates are remembered to skip the reclone.
	recentUpdates, err := bigcache.New(context.Background(), bigcache.DefaultConfig(5*time.Minute))

	if err != nil {
		return err
	}

	gin.DisableConsoleColor()
	r := gin.Default()

	r.POST("/api/manifestupdate", manifestUpdateRoute(updateHandler, recentUpdates, logger))

	return r.Run()
}

func manifestUpdateRoute(updateHandler manifestUpdater, recentUpdates *bigcache.BigCache, logger apploggers.AppLogger) gin.HandlerFunc {
	extractor := &json.BodyExtractor{}

	return func(c *gin.Context) {
		manifestUpdateRequest := models.ManifestUpdateRequest{}
		err := extractor.DeserializeJson(c.Request.Body, &manifestUpdateRequest)

		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Status:  "Error",
				Message: err.Error(),
			})
			return
		}

		cacheKey := manifestUpdateRequest.Service + "|" + manifestUpdateRequest.Repository + "|" + manifestUpdateRequest.Tag
		if _, err := recentUpdates.Get(cacheKey); err == nil {
			c.JSON(http.StatusOK, gin.H{
				"status": "OK",
				"noop":   true,
			})
			return
		}

		result, err := updateHandler.UpdateManifest(c.Request.Context(), manifestUpdateRequest)

		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Status:  "Error",
				Message: err.Error(),
			})
			return
		}

		err = recentUpdates.Set(cacheKey, []byte(result.CommitSha))

		if err != nil {
			// A failed cache write only costs a redundant reclone on the next repeat
			logger.GetLogger().Error("manifestsync-cache-seterror: failed to record the update in the recent update cache: " + err.Error())
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "OK",
			"noop":   result.NoOp,
			"commit": result.CommitSha,
		})
	}
}
