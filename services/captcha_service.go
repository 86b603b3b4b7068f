package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"sefazdae/config"
)

// CaptchaSolver resolves an image captcha into text. An empty string with a
// nil error means the provider returned no solution; callers treat that the
// same as a transport error.
type CaptchaSolver interface {
	Resolve(ctx context.Context, imagePath string) (string, error)
}

// NewCaptchaSolver picks the provider configured at startup.
func NewCaptchaSolver(cfg *config.Config) (CaptchaSolver, error) {
	switch cfg.CaptchaProvider {
	case config.ProviderAntiCaptcha:
		return NewAntiCaptchaClient(cfg.AntiCaptchaKey), nil
	case config.ProviderTesseract:
		return NewTesseractSolver(), nil
	default:
		return nil, fmt.Errorf("unknown captcha provider %q", cfg.CaptchaProvider)
	}
}

// AntiCaptchaClient talks to the anti-captcha.com image-to-text API:
// createTask with the base64 image, then poll getTaskResult until ready.
type AntiCaptchaClient struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	maxPolls     int
}

// NewAntiCaptchaClient returns a client for the hosted API.
func NewAntiCaptchaClient(apiKey string) *AntiCaptchaClient {
	return &AntiCaptchaClient{
		apiKey:       apiKey,
		baseURL:      "https://api.anti-captcha.com",
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: 2 * time.Second,
		maxPolls:     30,
	}
}

type antiCaptchaResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
	TaskID           int64  `json:"taskId"`
	Status           string `json:"status"`
	Solution         struct {
		Text string `json:"text"`
	} `json:"solution"`
}

// Resolve submits the captcha image and waits for the recognized text.
func (c *AntiCaptchaClient) Resolve(ctx context.Context, imagePath string) (string, error) {
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read captcha image: %w", err)
	}

	taskID, err := c.createTask(ctx, base64.StdEncoding.EncodeToString(image))
	if err != nil {
		return "", err
	}
	log.Printf("Anti-Captcha task created: %d", taskID)

	for i := 0; i < c.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}

		resp, err := c.post(ctx, "/getTaskResult", map[string]interface{}{
			"clientKey": c.apiKey,
			"taskId":    taskID,
		})
		if err != nil {
			return "", err
		}
		if resp.ErrorID != 0 {
			log.Printf("Anti-Captcha returned error %s: %s", resp.ErrorCode, resp.ErrorDescription)
			return "", nil
		}
		if resp.Status == "ready" {
			text := strings.TrimSpace(resp.Solution.Text)
			if text == "" {
				log.Printf("Anti-Captcha returned an empty solution")
				return "", nil
			}
			log.Printf("Captcha solved (%d characters)", len(text))
			return text, nil
		}
	}

	log.Printf("Anti-Captcha task %d still processing after %d polls, giving up", taskID, c.maxPolls)
	return "", nil
}

func (c *AntiCaptchaClient) createTask(ctx context.Context, imageBase64 string) (int64, error) {
	resp, err := c.post(ctx, "/createTask", map[string]interface{}{
		"clientKey": c.apiKey,
		"task": map[string]interface{}{
			"type": "ImageToTextTask",
			"body": imageBase64,
		},
	})
	if err != nil {
		return 0, err
	}
	if resp.ErrorID != 0 {
		return 0, fmt.Errorf("anti-captcha createTask failed: %s (%s)", resp.ErrorCode, resp.ErrorDescription)
	}
	return resp.TaskID, nil
}

func (c *AntiCaptchaClient) post(ctx context.Context, path string, payload map[string]interface{}) (*antiCaptchaResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anti-captcha request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anti-captcha API returned status %d", res.StatusCode)
	}

	var parsed antiCaptchaResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode anti-captcha response: %w", err)
	}
	return &parsed, nil
}
