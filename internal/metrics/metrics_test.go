package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRegisterExposesMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	Register(r, "/metrics")

	Uploads.Inc()
	StoreDivergence.WithLabelValues("put_object").Inc()

	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "cloudbucket_uploads_total") {
		t.Fatalf("expected uploads counter in exposition, got:\n%s", rr.Body.String())
	}
}
