package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sefazdae/config"
)

func testClient(serverURL string) *AntiCaptchaClient {
	client := NewAntiCaptchaClient("test-key")
	client.baseURL = serverURL
	client.pollInterval = time.Millisecond
	client.maxPolls = 5
	return client
}

func captchaImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "captcha.png")
	require.NoError(t, os.WriteFile(path, []byte("not-a-real-png"), 0o644))
	return path
}

func TestAntiCaptchaResolve(t *testing.T) {
	var polls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "test-key", payload["clientKey"])

		switch r.URL.Path {
		case "/createTask":
			task := payload["task"].(map[string]interface{})
			assert.Equal(t, "ImageToTextTask", task["type"])
			assert.NotEmpty(t, task["body"])
			json.NewEncoder(w).Encode(map[string]interface{}{"errorId": 0, "taskId": 42})
		case "/getTaskResult":
			assert.EqualValues(t, 42, payload["taskId"])
			polls++
			if polls < 2 {
				json.NewEncoder(w).Encode(map[string]interface{}{"errorId": 0, "status": "processing"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"errorId":  0,
				"status":   "ready",
				"solution": map[string]string{"text": " AB12CD "},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	text, err := testClient(server.URL).Resolve(context.Background(), captchaImage(t))
	require.NoError(t, err)
	assert.Equal(t, "AB12CD", text)
	assert.Equal(t, 2, polls)
}

func TestAntiCaptchaCreateTaskError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"errorId":          1,
			"errorCode":        "ERROR_KEY_DOES_NOT_EXIST",
			"errorDescription": "Account authorization key not found",
		})
	}))
	defer server.Close()

	_, err := testClient(server.URL).Resolve(context.Background(), captchaImage(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERROR_KEY_DOES_NOT_EXIST")
}

func TestAntiCaptchaResultErrorYieldsNoSolution(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/createTask" {
			json.NewEncoder(w).Encode(map[string]interface{}{"errorId": 0, "taskId": 7})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"errorId":   12,
			"errorCode": "ERROR_CAPTCHA_UNSOLVABLE",
		})
	}))
	defer server.Close()

	text, err := testClient(server.URL).Resolve(context.Background(), captchaImage(t))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestAntiCaptchaGivesUpAfterMaxPolls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/createTask" {
			json.NewEncoder(w).Encode(map[string]interface{}{"errorId": 0, "taskId": 7})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"errorId": 0, "status": "processing"})
	}))
	defer server.Close()

	text, err := testClient(server.URL).Resolve(context.Background(), captchaImage(t))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestAntiCaptchaContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"errorId": 0, "taskId": 7})
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := testClient(server.URL)
	client.pollInterval = time.Minute

	_, err := client.Resolve(ctx, captchaImage(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAntiCaptchaMissingImage(t *testing.T) {
	_, err := testClient("http://127.0.0.1:0").Resolve(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read captcha image")
}

func TestNewCaptchaSolverProviderSelection(t *testing.T) {
	cfg := &config.Config{CaptchaProvider: config.ProviderAntiCaptcha, AntiCaptchaKey: "k"}
	solver, err := NewCaptchaSolver(cfg)
	require.NoError(t, err)
	assert.IsType(t, &AntiCaptchaClient{}, solver)

	cfg.CaptchaProvider = "nope"
	_, err = NewCaptchaSolver(cfg)
	assert.Error(t, err)
}
