package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractSolver runs the captcha through a local Tesseract install.
// Useful when no Anti-Captcha account is available; accuracy on distorted
// captchas is lower than the hosted service.
type TesseractSolver struct {
	whitelist string
}

// NewTesseractSolver returns a solver restricted to alphanumeric output,
// which is all the DAE captcha ever contains.
func NewTesseractSolver() *TesseractSolver {
	return &TesseractSolver{
		whitelist: "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789",
	}
}

// Resolve OCRs the image file and returns the recognized text, or "" when
// nothing was recognized.
func (t *TesseractSolver) Resolve(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("failed to load captcha image: %w", err)
	}
	if err := client.SetWhitelist(t.whitelist); err != nil {
		return "", fmt.Errorf("failed to set tesseract whitelist: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract OCR failed: %w", err)
	}

	text = strings.Join(strings.Fields(text), "")
	if text == "" {
		log.Printf("Tesseract recognized no text in the captcha")
		return "", nil
	}
	log.Printf("Tesseract recognized %d characters", len(text))
	return text, nil
}
