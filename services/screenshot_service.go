package services

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// ScreenshotService captures diagnostic screenshots when a step fails.
// Captures are best-effort: a failure here is logged and never escalated,
// so it cannot mask the error that triggered it.
type ScreenshotService struct {
	dir string
	s3  *S3Service
}

// NewScreenshotService returns a service that saves under dir and, when S3
// is configured, uploads a copy for review from the API.
func NewScreenshotService(dir string) *ScreenshotService {
	s3Service, err := NewS3Service()
	if err != nil {
		log.Printf("S3 not configured, error screenshots stay local: %v", err)
		s3Service = nil
	}
	return &ScreenshotService{dir: dir, s3: s3Service}
}

// ErrorShotName generates a filename for a failed step capture.
func ErrorShotName(step, ie string) string {
	timestamp := time.Now().Format("20060102_150405")
	suffix := ""
	if ie != "" {
		suffix = "_" + sanitizeForFilename(ie)
	}
	return fmt.Sprintf("error_%s%s_%s.png", step, suffix, timestamp)
}

// CaptureError saves a screenshot of the page into the error directory and
// returns the local path, or "" when the capture itself failed.
func (s *ScreenshotService) CaptureError(page PortalPage, filename string) string {
	path, err := SaveScreenshotToDir(page, s.dir, filename)
	if err != nil {
		log.Printf("Error screenshot capture failed (ignored): %v", err)
		return ""
	}

	if s.s3 != nil {
		key := "screenshots/" + filename
		if _, err := s.s3.UploadFile(path, key); err != nil {
			log.Printf("Failed to upload error screenshot to S3 (ignored): %v", err)
		}
	}
	return path
}

// ScreenshotURL returns a presigned URL for an uploaded error screenshot.
func (s *ScreenshotService) ScreenshotURL(key string) (string, error) {
	if s.s3 == nil {
		return "", fmt.Errorf("screenshot storage not configured")
	}
	return s.s3.GeneratePresignedURL(key)
}

// S3Available reports whether uploaded screenshots can be served.
func (s *ScreenshotService) S3Available() bool {
	return s.s3 != nil
}

func sanitizeForFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
