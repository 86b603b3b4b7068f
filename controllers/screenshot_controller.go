package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sefazdae/config"
	"sefazdae/services"
)

// ScreenshotController serves error screenshots captured during batch runs.
type ScreenshotController struct {
	screenshots *services.ScreenshotService
}

// NewScreenshotController builds the controller; S3 may be unconfigured, in
// which case every request gets a 503.
func NewScreenshotController(cfg *config.Config) *ScreenshotController {
	return &ScreenshotController{
		screenshots: services.NewScreenshotService(cfg.ScreenshotDir),
	}
}

// GetScreenshotURL returns a presigned URL for an uploaded error screenshot.
func (sc *ScreenshotController) GetScreenshotURL(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Screenshot key is required"})
		return
	}

	key = strings.TrimPrefix(key, "/")
	if !strings.HasPrefix(key, "screenshots/") {
		key = "screenshots/" + key
	}

	if !sc.screenshots.S3Available() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Screenshot storage not available"})
		return
	}

	url, err := sc.screenshots.ScreenshotURL(key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate screenshot URL", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": "1 hour", "key": key})
}
