package controllers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"sefazdae/config"
)

func screenshotRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	for _, key := range []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_REGION", "AWS_S3_BUCKET"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	sc := NewScreenshotController(&config.Config{ScreenshotDir: t.TempDir()})
	r := gin.New()
	r.GET("/api/screenshots/url", sc.GetScreenshotURL)
	return r
}

func TestGetScreenshotURLRequiresKey(t *testing.T) {
	r := screenshotRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/screenshots/url", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "key is required")
}

func TestGetScreenshotURLWithoutS3(t *testing.T) {
	r := screenshotRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/screenshots/url?key=error_form.png", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not available")
}
