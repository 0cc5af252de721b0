package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/OctopusSolutionsEngineering/GitOpsManifestUpdater/internal/domain/apperrors"
	"github.com/OctopusSolutionsEngineering/GitOpsManifestUpdater/internal/domain/models"
	"github.com/OctopusSolutionsEngineering/GitOpsManifestUpdater/internal/infrastructure/apploggers"
	"github.com/allegro/bigcache/v3"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type mockUpdater struct {
	requests []models.ManifestUpdateRequest
	err      error
}

func (m *mockUpdater) UpdateManifest(ctx context.Context, request models.ManifestUpdateRequest) (models.UpdateResult, error) {
	m.requests = append(m.requests, request)

	if m.err != nil {
		return models.UpdateResult{}, m.err
	}

	return models.UpdateResult{CommitSha: "0123456789abcdef0123456789abcdef01234567"}, nil
}

func createRouter(t *testing.T, updater manifestUpdater) *gin.Engine {
	logger, err := apploggers.NewDevProdLogger()

	if err != nil {
		t.Fatal(err)
	}

	recentUpdates, err := bigcache.New(context.Background(), bigcache.DefaultConfig(5*time.Minute))

	if err != nil {
		t.Fatal(err)
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/manifestupdate", manifestUpdateRoute(updater, recentUpdates, logger))

	return r
}

func postUpdate(router *gin.Engine, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/manifestupdate", strings.NewReader(body))
	router.ServeHTTP(recorder, request)

	return recorder
}

func TestWebhookUpdatesManifest(t *testing.T) {
	updater := &mockUpdater{}
	router := createRouter(t, updater)

	recorder := postUpdate(router, `{"Service": "vote", "Repository": "myregistry.azurecr.io/vote", "Tag": "42"}`)

	if recorder.Code != http.StatusOK {
		t.Fatal("the webhook must accept a valid update request")
	}

	_, exists := lo.Find(updater.requests, func(item models.ManifestUpdateRequest) bool {
		return item.Service == "vote" && item.Repository == "myregistry.azurecr.io/vote" && item.Tag == "42"
	})

	if !exists {
		t.Fatal("the webhook must pass the request through to the updater")
	}
}

func TestRepeatedWebhookIsServedFromCache(t *testing.T) {
	updater := &mockUpdater{}
	router := createRouter(t, updater)

	body := `{"Service": "vote", "Repository": "myregistry.azurecr.io/vote", "Tag": "42"}`

	if recorder := postUpdate(router, body); recorder.Code != http.StatusOK {
		t.Fatal("the first update must succeed")
	}

	recorder := postUpdate(router, body)

	if recorder.Code != http.StatusOK {
		t.Fatal("a repeated update must succeed")
	}

	if len(updater.requests) != 1 {
		t.Fatal("a repeated update within the cache window must not reclone the repository")
	}
}

func TestMalformedWebhookBodyIsRejected(t *testing.T) {
	updater := &mockUpdater{}
	router := createRouter(t, updater)

	recorder := postUpdate(router, `{"Service": `)

	if recorder.Code != http.StatusBadRequest {
		t.Fatal("a malformed body must be rejected")
	}

	if len(updater.requests) != 0 {
		t.Fatal("a malformed body must not reach the updater")
	}
}

func TestWebhookFailureIsReported(t *testing.T) {
	updater := &mockUpdater{
		err: apperrors.New(apperrors.CloneFailure, "failed to clone the manifest repository"),
	}
	router := createRouter(t, updater)

	recorder := postUpdate(router, `{"Service": "vote", "Repository": "myregistry.azurecr.io/vote", "Tag": "42"}`)

	if recorder.Code != http.StatusInternalServerError {
		t.Fatal("an updater failure must be reported to the caller")
	}

	if !strings.Contains(recorder.Body.String(), string(apperrors.CloneFailure)) {
		t.Fatal("the failure category must be visible in the response")
	}

	if recorder := postUpdate(router, `{"Service": "vote", "Repository": "myregistry.azurecr.io/vote", "Tag": "42"}`); recorder.Code != http.StatusInternalServerError {
		t.Fatal("a failed update must not be remembered as applied")
	}
}
