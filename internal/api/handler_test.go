package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toman-eng/devflow-metrics/internal/aggregator"
	"github.com/toman-eng/devflow-metrics/internal/config"
	"github.com/toman-eng/devflow-metrics/internal/domain"
	apperrors "github.com/toman-eng/devflow-metrics/internal/errors"
	"github.com/toman-eng/devflow-metrics/internal/identity"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubCollector serves canned snapshots and records what it was asked
type stubCollector struct {
	lastProject string
	lastGroup   string
	lastWindow  domain.TimeWindow
	err         error
}

func (s *stubCollector) CollectProject(_ context.Context, projectPath string, window domain.TimeWindow) (*domain.Input, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lastProject = projectPath
	s.lastWindow = window
	return &domain.Input{
		Window: window,
		Commits: []domain.CommitRecord{
			{SHA: "c1", Author: "alice", Timestamp: window.Start.Add(time.Hour), Additions: 10},
		},
	}, nil
}

func (s *stubCollector) CollectGroup(_ context.Context, groupPath string, window domain.TimeWindow) ([]*domain.Input, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lastGroup = groupPath
	s.lastWindow = window
	return []*domain.Input{{Window: window}}, nil
}

func testRouter(t *testing.T, col *stubCollector) *gin.Engine {
	t.Helper()
	rules := config.DefaultRules()
	rs, err := rules.Compile()
	require.NoError(t, err)
	filter, err := identity.NewFilter(rules.BotPatterns)
	require.NoError(t, err)

	svc := aggregator.NewService(rs, filter, 365)
	handler := NewHandler(col, svc, 30, 365)
	return SetupRoutes(handler)
}

func doRequest(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	router := testRouter(t, &stubCollector{})
	w := doRequest(router, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestGetProjectReport(t *testing.T) {
	col := &stubCollector{}
	router := testRouter(t, col)

	w := doRequest(router, "/api/v1/projects/acme%2Fapp/report?days=14")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data domain.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 14, resp.Data.WindowDays)
	assert.NotNil(t, resp.Data.Flow)
	assert.NotNil(t, resp.Data.Code)
	assert.Equal(t, "acme/app", col.lastProject)
}

func TestGetProjectReport_FamilySubset(t *testing.T) {
	router := testRouter(t, &stubCollector{})

	w := doRequest(router, "/api/v1/projects/acme%2Fapp/report?families=flow,code")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data domain.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Data.Flow)
	assert.NotNil(t, resp.Data.Code)
	assert.Nil(t, resp.Data.Quality)
	assert.Nil(t, resp.Data.Pipeline)
}

func TestGetProjectReport_InvalidDays(t *testing.T) {
	router := testRouter(t, &stubCollector{})

	for _, path := range []string{
		"/api/v1/projects/acme%2Fapp/report?days=abc",
		"/api/v1/projects/acme%2Fapp/report?days=0",
		"/api/v1/projects/acme%2Fapp/report?days=-5",
		"/api/v1/projects/acme%2Fapp/report?days=9999",
	} {
		w := doRequest(router, path)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Contains(t, w.Body.String(), "BAD_REQUEST")
	}
}

func TestGetProjectReport_UnknownFamily(t *testing.T) {
	router := testRouter(t, &stubCollector{})

	w := doRequest(router, "/api/v1/projects/acme%2Fapp/report?families=velocity")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetProjectReport_CollectorErrorMapping(t *testing.T) {
	col := &stubCollector{err: apperrors.NewNotFoundError("project")}
	router := testRouter(t, col)

	w := doRequest(router, "/api/v1/projects/acme%2Fgone/report")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestGetDeveloperReport_SetsSubject(t *testing.T) {
	col := &stubCollector{}
	router := testRouter(t, col)

	w := doRequest(router, "/api/v1/projects/acme%2Fapp/developers/alice/report")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data domain.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Data.Subject)
}

func TestGetGroupReport(t *testing.T) {
	col := &stubCollector{}
	router := testRouter(t, col)

	w := doRequest(router, "/api/v1/groups/acme/report?days=7")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data domain.RollupReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "acme", resp.Data.Subject)
	assert.Equal(t, 1, resp.Data.Projects)
	assert.Equal(t, "acme", col.lastGroup)
	assert.Equal(t, 7, col.lastWindow.Days)
}

func TestRequestIDMiddleware(t *testing.T) {
	router := testRouter(t, &stubCollector{})

	w := doRequest(router, "/health")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	// A caller-supplied ID is echoed back.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	router.ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", rec.Header().Get("X-Request-ID"))
}
