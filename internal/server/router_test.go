package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"cloudbucket/internal/auth"
	"cloudbucket/internal/bucket"
	"cloudbucket/internal/config"
	"cloudbucket/internal/share"

	"github.com/gin-gonic/gin"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Metrics: config.MetricsConfig{PrometheusPath: "/metrics"},
	}
	return NewRouter(Dependencies{
		Config:        cfg,
		AuthService:   auth.NewService(nil, cfg.Auth),
		BucketService: bucket.NewService(nil, nil, nil),
		ShareService:  share.NewService(nil, nil, nil),
	})
}

func TestLivenessEndpoint(t *testing.T) {
	r := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health/live, got %d", rr.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := testRouter()

	protected := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/buckets"},
		{http.MethodPost, "/upload"},
		{http.MethodGet, "/files"},
		{http.MethodGet, "/download"},
		{http.MethodDelete, "/delete_bucket"},
		{http.MethodDelete, "/delete_files"},
		{http.MethodPost, "/share"},
		{http.MethodGet, "/shared_with_me"},
		{http.MethodGet, "/download_shared"},
	}

	for _, route := range protected {
		req := httptest.NewRequest(route.method, route.path, nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 without token, got %d", route.method, route.path, rr.Code)
		}
	}
}
