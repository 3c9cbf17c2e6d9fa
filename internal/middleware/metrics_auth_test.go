package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func setupMetricsRouter(apiKey string) *gin.Engine {
	r := gin.New()
	r.GET("/metrics", MetricsAuth(apiKey), func(c *gin.Context) {
		c.String(http.StatusOK, "# metrics")
	})
	return r
}

func TestMetricsAuth(t *testing.T) {
	tests := []struct {
		name          string
		configuredKey string
		requestKey    string
		wantStatus    int
	}{
		{name: "valid_api_key", configuredKey: "scrape-key", requestKey: "scrape-key", wantStatus: http.StatusOK},
		{name: "invalid_api_key", configuredKey: "scrape-key", requestKey: "wrong-key", wantStatus: http.StatusUnauthorized},
		{name: "missing_api_key", configuredKey: "scrape-key", wantStatus: http.StatusUnauthorized},
		{name: "open_when_unconfigured", requestKey: "anything", wantStatus: http.StatusOK},
		{name: "both_empty", wantStatus: http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
			if tc.requestKey != "" {
				req.Header.Set("X-API-Key", tc.requestKey)
			}
			rec := httptest.NewRecorder()
			setupMetricsRouter(tc.configuredKey).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			if tc.wantStatus == http.StatusUnauthorized {
				if code := errorCode(t, rec); code != "UNAUTHORIZED" {
					t.Errorf("expected UNAUTHORIZED, got %s", code)
				}
			}
		})
	}
}
